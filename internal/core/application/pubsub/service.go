package pubsub

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/tdex-stealth/internal/core/domain"
	"github.com/tdex-network/tdex-stealth/internal/core/ports"
)

const publishTimeout = 5 * time.Second

// Service notifies the configured publisher about transfer status changes.
// Publishing is best effort, failures are only logged.
type Service struct {
	publisher ports.EventPublisher
}

// NewService returns a new pubsub service. A nil publisher disables events.
func NewService(publisher ports.EventPublisher) *Service {
	return &Service{publisher}
}

func (s *Service) PublishTransferEvent(ctx context.Context, t *domain.Transfer) {
	if s.publisher == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	event := ports.NewTransferEvent(t)
	if err := s.publisher.PublishTransferEvent(ctx, event); err != nil {
		log.WithError(err).WithFields(log.Fields{
			"transfer": event.TransferID,
			"status":   event.Status,
		}).Warn("pubsub: failed to publish transfer event")
	}
}

func (s *Service) Close() error {
	if s.publisher == nil {
		return nil
	}
	return s.publisher.Close()
}
