package httpinterface

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/tdex-stealth/internal/core/application/transfer"
	"github.com/tdex-network/tdex-stealth/internal/core/domain"
	"github.com/tdex-network/tdex-stealth/internal/core/ports"
	webhookpubsub "github.com/tdex-network/tdex-stealth/internal/infrastructure/pubsub/webhook"
	"github.com/tdex-network/tdex-stealth/pkg/mathutil"
)

const (
	profilesPath  = "/v1/profiles"
	transfersPath = "/v1/transfers"
	strandedPath  = "/v1/stranded"
	webhooksPath  = "/v1/webhooks"
)

type handler struct {
	transferSvc *transfer.Service
	session     ports.WalletSession
	webhooks    *webhookpubsub.Publisher
}

func (h *handler) registerRoutes(r chi.Router) {
	r.Get(profilesPath, h.listProfiles)

	r.Route(transfersPath, func(r chi.Router) {
		r.Post("/", h.createTransfer)
		r.Get("/", h.listTransfers)
		r.Get("/{id}", h.getTransfer)
		r.Post("/{id}/cancel", h.cancelTransfer)
	})

	r.Get(strandedPath, h.listStrandedFunds)
	r.Get(strandedPath+"/{id}", h.getStrandedFunds)

	if h.webhooks != nil {
		r.Route(webhooksPath, func(r chi.Router) {
			r.Post("/", h.addWebhook)
			r.Get("/", h.listWebhooks)
			r.Delete("/{id}", h.removeWebhook)
		})
	}
}

func (h *handler) listProfiles(w http.ResponseWriter, _ *http.Request) {
	profiles := domain.AllProfiles()
	resp := make([]ProfileJSON, 0, len(profiles))
	for _, p := range profiles {
		resp = append(resp, newProfileJSON(p))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) createTransfer(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var body CreateTransferRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, err.Error())
		return
	}
	req, err := body.toDomain(h.session.SenderAddress())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	if body.Async {
		id, err := h.transferSvc.StartPrivateTransaction(r.Context(), h.session, req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, StartTransferResponse{id})
		return
	}

	res, err := h.transferSvc.CreatePrivateTransaction(r.Context(), h.session, req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newResultJSON(res))
}

func (h *handler) listTransfers(w http.ResponseWriter, r *http.Request) {
	transfers, err := h.transferSvc.ListTransfers(
		r.Context(), r.URL.Query().Get("session"),
	)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	resp := make([]TransferJSON, 0, len(transfers))
	for _, t := range transfers {
		resp = append(resp, newTransferJSON(t))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) getTransfer(w http.ResponseWriter, r *http.Request) {
	t, err := h.transferSvc.GetTransfer(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newTransferJSON(t))
}

func (h *handler) cancelTransfer(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := h.transferSvc.CancelTransfer(r.Context(), id)
	if errors.Is(err, domain.ErrCancelMidSubmission) {
		writeJSON(w, http.StatusAccepted, CancelTransferResponse{
			TransferID: id,
			Message:    err.Error(),
		})
		return
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CancelTransferResponse{
		TransferID: id,
		Cancelled:  true,
	})
}

func (h *handler) listStrandedFunds(w http.ResponseWriter, r *http.Request) {
	funds, err := h.transferSvc.ListStrandedFunds(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	resp := make([]StrandedFundsJSON, 0, len(funds))
	for i := range funds {
		resp = append(resp, *newStrandedFundsJSON(&funds[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) getStrandedFunds(w http.ResponseWriter, r *http.Request) {
	funds, err := h.transferSvc.GetStrandedFunds(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newStrandedFundsJSON(funds))
}

func (h *handler) addWebhook(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var body AddWebhookRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, err.Error())
		return
	}
	id, err := h.webhooks.Subscribe(body.Topic, body.Endpoint, body.Secret)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, AddWebhookResponse{id})
}

func (h *handler) listWebhooks(w http.ResponseWriter, r *http.Request) {
	hooks, err := h.webhooks.ListWebhooks(r.URL.Query().Get("topic"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	resp := make([]WebhookJSON, 0, len(hooks))
	for _, hook := range hooks {
		resp = append(resp, newWebhookJSON(hook))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) removeWebhook(w http.ResponseWriter, r *http.Request) {
	if err := h.webhooks.Unsubscribe(chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func parseAmount(str string) (uint64, error) {
	amount, err := decimal.NewFromString(str)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid amount %q", domain.ErrInvalidRequest, str)
	}
	baseUnits, err := mathutil.ToBaseUnits(amount, mathutil.DefaultPrecision)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", domain.ErrInvalidRequest, err)
	}
	return baseUnits, nil
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case domain.IsValidationError(err),
		errors.Is(err, webhookpubsub.ErrInvalidTopic),
		errors.Is(err, webhookpubsub.ErrInvalidEndpoint):
		writeError(w, http.StatusBadRequest, codeInvalidRequest, err.Error())
	case errors.Is(err, domain.ErrTransferNotFound),
		errors.Is(err, domain.ErrStrandedFundsNotFound),
		errors.Is(err, webhookpubsub.ErrWebhookNotFound):
		writeError(w, http.StatusNotFound, codeNotFound, err.Error())
	case errors.Is(err, domain.ErrTransferTerminal),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrTransferAlreadyExists):
		writeError(w, http.StatusConflict, codeConflict, err.Error())
	default:
		log.WithError(err).Warn("http: internal error")
		writeError(w, http.StatusInternalServerError, codeInternal, err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorJSON{code, message})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint
	json.NewEncoder(w).Encode(v)
}
