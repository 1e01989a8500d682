package httprelay

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/tdex-stealth/internal/core/domain"
	"github.com/tdex-network/tdex-stealth/internal/core/ports"
)

// Handler serves the relay protocol on top of any ports.Relay.
type Handler struct {
	relay ports.Relay
}

// NewHandler ...
func NewHandler(relay ports.Relay) *Handler {
	return &Handler{relay}
}

// RegisterRoutes registers the routes of the relay protocol.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post(bundlesPath, h.submitBundle)
	r.Get(bundlesPath+"/{id}", h.getBundleStatus)
	r.Get(balancesPath+"/{address}", h.getBalance)
}

func (h *Handler) submitBundle(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var req bundleJSON
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidBundle, err.Error())
		return
	}
	bundle, err := req.toBundle()
	if err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidBundle, err.Error())
		return
	}

	resp, err := h.relay.SubmitBundle(r.Context(), *bundle)
	if err != nil {
		writeRelayError(w, err)
		return
	}

	writeJSON(w, submitResponseJSON{
		BundleID: resp.BundleID,
		Response: resp.Response.String(),
		Reason:   resp.Reason,
	})
}

func (h *Handler) getBundleStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	status, err := h.relay.GetBundleStatus(r.Context(), id)
	if err != nil {
		writeRelayError(w, err)
		return
	}
	if status.Status == domain.ConfirmationUnknown {
		writeError(w, http.StatusNotFound, codeInvalidBundle, "bundle not found")
		return
	}

	writeJSON(w, bundleStatusJSON{
		BundleID:          status.BundleID,
		Status:            status.Status.String(),
		AppliedOperations: status.AppliedOperations,
	})
}

func (h *Handler) getBalance(w http.ResponseWriter, r *http.Request) {
	addr := chi.URLParam(r, "address")
	balance, err := h.relay.GetBalance(r.Context(), addr)
	if err != nil {
		writeRelayError(w, err)
		return
	}
	writeJSON(w, balanceJSON{addr, balance})
}

func writeRelayError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInsufficientFunds):
		writeError(w, http.StatusUnprocessableEntity, codeInsufficientFunds, err.Error())
	case errors.Is(err, domain.ErrSignatureFailed):
		writeError(w, http.StatusUnprocessableEntity, codeSignatureFailed, err.Error())
	case errors.Is(err, domain.ErrInvalidBundle):
		writeError(w, http.StatusBadRequest, codeInvalidBundle, err.Error())
	case errors.Is(err, domain.ErrRelayTimeout):
		writeError(w, http.StatusGatewayTimeout, codeInternal, err.Error())
	default:
		log.WithError(err).Warn("relay: internal error")
		writeError(w, http.StatusInternalServerError, codeInternal, err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorJSON{code, message})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(v)
}
