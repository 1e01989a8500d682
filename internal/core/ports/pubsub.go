package ports

import (
	"context"

	"github.com/tdex-network/tdex-stealth/internal/core/domain"
)

// TransferEvent is published at every status change of a transfer. It never
// carries derivation paths or intermediate addresses.
type TransferEvent struct {
	TransferID    string `json:"transfer_id"`
	SessionID     string `json:"session_id"`
	Status        string `json:"status"`
	PrivacyLevel  string `json:"privacy_level"`
	HopIndex      int    `json:"hop_index"`
	HopCount      int    `json:"hop_count"`
	FailureReason string `json:"failure_reason,omitempty"`
	Timestamp     int64  `json:"timestamp"`
}

// NewTransferEvent returns the event for the current status of the transfer.
func NewTransferEvent(t *domain.Transfer) TransferEvent {
	hopCount := 0
	if t.Route != nil {
		hopCount = t.Route.HopCount()
	}
	return TransferEvent{
		TransferID:    t.ID,
		SessionID:     t.SessionID,
		Status:        t.StatusLabel(),
		PrivacyLevel:  t.Request.PrivacyLevel.String(),
		HopIndex:      t.CurrentHop,
		HopCount:      hopCount,
		FailureReason: t.FailureReason,
		Timestamp:     t.UpdatedAt,
	}
}

// EventPublisher notifies external subscribers about transfer status changes.
type EventPublisher interface {
	PublishTransferEvent(ctx context.Context, event TransferEvent) error
	Close() error
}
