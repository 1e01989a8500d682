package httpinterface

import (
	"github.com/tdex-network/tdex-stealth/internal/core/application/transfer"
	"github.com/tdex-network/tdex-stealth/internal/core/domain"
	webhookpubsub "github.com/tdex-network/tdex-stealth/internal/infrastructure/pubsub/webhook"
	"github.com/tdex-network/tdex-stealth/pkg/mathutil"
)

const (
	codeInvalidRequest = "invalid_request"
	codeNotFound       = "not_found"
	codeConflict       = "conflict"
	codeInternal       = "internal"
)

type errorJSON struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// CreateTransferRequest is the body of POST /v1/transfers. Amount is
// expressed in units of the ledger asset (ie. "0.1"). Sender defaults to the
// sender address of the daemon's wallet.
type CreateTransferRequest struct {
	Sender       string `json:"sender,omitempty"`
	Recipient    string `json:"recipient"`
	Amount       string `json:"amount"`
	PrivacyLevel string `json:"privacy_level"`
	Memo         string `json:"memo,omitempty"`
	Async        bool   `json:"async,omitempty"`
}

type StartTransferResponse struct {
	TransferID string `json:"transfer_id"`
}

type CancelTransferResponse struct {
	TransferID string `json:"transfer_id"`
	Cancelled  bool   `json:"cancelled"`
	Message    string `json:"message,omitempty"`
}

type SummaryJSON struct {
	Sender        string   `json:"sender"`
	Recipient     string   `json:"recipient"`
	PrivacyLevel  string   `json:"privacy_level"`
	Memo          string   `json:"memo,omitempty"`
	Amount        uint64   `json:"amount"`
	Delivered     uint64   `json:"delivered"`
	HopCount      int      `json:"hop_count"`
	ConfirmedHops int      `json:"confirmed_hops"`
	Reduced       bool     `json:"reduced"`
	Bundles       []string `json:"bundles"`
	Attempts      int      `json:"attempts"`
	DurationMs    int64    `json:"duration_ms"`
}

type CostBreakdownJSON struct {
	SenderFee        uint64 `json:"sender_fee"`
	IntermediateFees uint64 `json:"intermediate_fees"`
	TotalFees        uint64 `json:"total_fees"`
	EstimatedCost    uint64 `json:"estimated_cost"`
	Total            string `json:"total"`
	FeeBasisPoints   string `json:"fee_basis_points"`
}

type StrandedFundsJSON struct {
	TransferID     string `json:"transfer_id"`
	Address        string `json:"address"`
	DerivationPath string `json:"derivation_path"`
	HopIndex       int    `json:"hop_index"`
	ExpectedAmount uint64 `json:"expected_amount"`
	Balance        uint64 `json:"balance"`
	Reason         string `json:"reason,omitempty"`
	Timestamp      int64  `json:"timestamp"`
}

type ResultJSON struct {
	TransferID    string             `json:"transfer_id"`
	Success       bool               `json:"success"`
	Status        string             `json:"status"`
	StatusPath    []string           `json:"status_path"`
	Summary       SummaryJSON        `json:"summary"`
	FeaturesUsed  []string           `json:"features_used"`
	CostBreakdown CostBreakdownJSON  `json:"cost_breakdown"`
	Stranded      *StrandedFundsJSON `json:"stranded,omitempty"`
	Error         string             `json:"error,omitempty"`
}

// TransferJSON is the public view of a transfer. Derivation paths and
// intermediate addresses are left out.
type TransferJSON struct {
	ID              string             `json:"id"`
	SessionID       string             `json:"session_id"`
	Status          string             `json:"status"`
	StatusPath      []string           `json:"status_path"`
	PrivacyLevel    string             `json:"privacy_level"`
	Recipient       string             `json:"recipient"`
	Amount          uint64             `json:"amount"`
	HopCount        int                `json:"hop_count"`
	CurrentHop      int                `json:"current_hop"`
	ConfirmedHops   int                `json:"confirmed_hops"`
	CancelRequested bool               `json:"cancel_requested"`
	FailureReason   string             `json:"failure_reason,omitempty"`
	Stranded        *StrandedFundsJSON `json:"stranded,omitempty"`
	CreatedAt       int64              `json:"created_at"`
	UpdatedAt       int64              `json:"updated_at"`
	CompletedAt     int64              `json:"completed_at,omitempty"`
}

type ProfileJSON struct {
	Level              string   `json:"level"`
	RequiresMixing     bool     `json:"requires_mixing"`
	MinHops            int      `json:"min_hops"`
	MaxHops            int      `json:"max_hops"`
	RequiresDelay      bool     `json:"requires_delay"`
	MinDelayMs         int64    `json:"min_delay_ms"`
	MaxDelayMs         int64    `json:"max_delay_ms"`
	EstimatedCost      string   `json:"estimated_cost"`
	EstimatedLatencyMs int64    `json:"estimated_latency_ms"`
	Features           []string `json:"features"`
}

type AddWebhookRequest struct {
	Topic    string `json:"topic"`
	Endpoint string `json:"endpoint"`
	Secret   string `json:"secret,omitempty"`
}

type AddWebhookResponse struct {
	ID string `json:"id"`
}

type WebhookJSON struct {
	ID        string `json:"id"`
	Topic     string `json:"topic"`
	Endpoint  string `json:"endpoint"`
	IsSecured bool   `json:"is_secured"`
}

func (r CreateTransferRequest) toDomain(
	defaultSender string,
) (domain.TransferRequest, error) {
	amount, err := parseAmount(r.Amount)
	if err != nil {
		return domain.TransferRequest{}, err
	}
	level, err := domain.ParsePrivacyLevel(r.PrivacyLevel)
	if err != nil {
		return domain.TransferRequest{}, err
	}
	sender := r.Sender
	if sender == "" {
		sender = defaultSender
	}
	return domain.TransferRequest{
		Sender:       sender,
		Recipient:    r.Recipient,
		Amount:       amount,
		PrivacyLevel: level,
		Memo:         r.Memo,
	}, nil
}

func newResultJSON(res *transfer.Result) ResultJSON {
	bundles := res.Summary.Bundles
	if bundles == nil {
		bundles = []string{}
	}
	features := res.FeaturesUsed
	if features == nil {
		features = []string{}
	}
	return ResultJSON{
		TransferID: res.TransferID,
		Success:    res.Success,
		Status:     res.Status,
		StatusPath: res.StatusPath,
		Summary: SummaryJSON{
			Sender:        res.Summary.Sender,
			Recipient:     res.Summary.Recipient,
			PrivacyLevel:  res.Summary.PrivacyLevel,
			Memo:          res.Summary.Memo,
			Amount:        res.Summary.Amount,
			Delivered:     res.Summary.Delivered,
			HopCount:      res.Summary.HopCount,
			ConfirmedHops: res.Summary.ConfirmedHops,
			Reduced:       res.Summary.Reduced,
			Bundles:       bundles,
			Attempts:      res.Summary.Attempts,
			DurationMs:    res.Summary.Duration.Milliseconds(),
		},
		FeaturesUsed: features,
		CostBreakdown: CostBreakdownJSON{
			SenderFee:        res.CostBreakdown.SenderFee,
			IntermediateFees: res.CostBreakdown.IntermediateFees,
			TotalFees:        res.CostBreakdown.TotalFees,
			EstimatedCost:    res.CostBreakdown.EstimatedCost,
			Total:            res.CostBreakdown.Total.String(),
			FeeBasisPoints:   res.CostBreakdown.FeeBasisPoints.String(),
		},
		Stranded: newStrandedFundsJSON(res.Stranded),
		Error:    res.Error,
	}
}

func newTransferJSON(t *domain.Transfer) TransferJSON {
	hopCount := 0
	if t.Route != nil {
		hopCount = t.Route.HopCount()
	}
	return TransferJSON{
		ID:              t.ID,
		SessionID:       t.SessionID,
		Status:          t.StatusLabel(),
		StatusPath:      t.StatusPath(),
		PrivacyLevel:    t.Request.PrivacyLevel.String(),
		Recipient:       t.Request.Recipient,
		Amount:          t.Request.Amount,
		HopCount:        hopCount,
		CurrentHop:      t.CurrentHop,
		ConfirmedHops:   t.ConfirmedHops,
		CancelRequested: t.CancelRequested,
		FailureReason:   t.FailureReason,
		Stranded:        newStrandedFundsJSON(t.Stranded),
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
		CompletedAt:     t.CompletedAt,
	}
}

func newStrandedFundsJSON(s *domain.StrandedFunds) *StrandedFundsJSON {
	if s == nil {
		return nil
	}
	return &StrandedFundsJSON{
		TransferID:     s.TransferID,
		Address:        s.Address,
		DerivationPath: s.DerivationPath,
		HopIndex:       s.HopIndex,
		ExpectedAmount: s.ExpectedAmount,
		Balance:        s.Balance,
		Reason:         s.Reason,
		Timestamp:      s.Timestamp,
	}
}

func newProfileJSON(p domain.PrivacyProfile) ProfileJSON {
	return ProfileJSON{
		Level:          p.Level.String(),
		RequiresMixing: p.RequiresMixing,
		MinHops:        p.HopCountRange.Min,
		MaxHops:        p.HopCountRange.Max,
		RequiresDelay:  p.RequiresDelay,
		MinDelayMs:     p.DelayRange.Min.Milliseconds(),
		MaxDelayMs:     p.DelayRange.Max.Milliseconds(),
		EstimatedCost: mathutil.FromBaseUnits(
			p.EstimatedCost, mathutil.DefaultPrecision,
		).String(),
		EstimatedLatencyMs: p.EstimatedLatency.Milliseconds(),
		Features:           p.Features,
	}
}

func newWebhookJSON(h webhookpubsub.Webhook) WebhookJSON {
	return WebhookJSON{
		ID:        h.ID,
		Topic:     h.Topic.String(),
		Endpoint:  h.Endpoint,
		IsSecured: h.IsSecured(),
	}
}
