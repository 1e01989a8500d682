package pubsub

import (
	"context"
	"errors"

	"github.com/tdex-network/tdex-stealth/internal/core/ports"
	"golang.org/x/sync/errgroup"
)

type service struct {
	publishers []ports.EventPublisher
}

// NewService returns an event publisher that forwards every event to all the
// given publishers concurrently. Nil publishers are skipped, with none left
// events are dropped.
func NewService(publishers ...ports.EventPublisher) ports.EventPublisher {
	list := make([]ports.EventPublisher, 0, len(publishers))
	for _, p := range publishers {
		if p != nil {
			list = append(list, p)
		}
	}
	return &service{list}
}

func (s *service) PublishTransferEvent(
	ctx context.Context, event ports.TransferEvent,
) error {
	eg := &errgroup.Group{}
	errs := make([]error, len(s.publishers))
	for i := range s.publishers {
		i := i
		eg.Go(func() error {
			errs[i] = s.publishers[i].PublishTransferEvent(ctx, event)
			return nil
		})
	}
	//nolint
	eg.Wait()
	return errors.Join(errs...)
}

func (s *service) Close() error {
	errs := make([]error, 0, len(s.publishers))
	for _, p := range s.publishers {
		errs = append(errs, p.Close())
	}
	return errors.Join(errs...)
}
