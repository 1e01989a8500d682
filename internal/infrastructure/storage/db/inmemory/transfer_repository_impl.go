package inmemory

import (
	"context"
	"sort"
	"sync"

	"github.com/tdex-network/tdex-stealth/internal/core/domain"
)

type transferInmemoryStore struct {
	transfers map[string]domain.Transfer
	locker    *sync.RWMutex
}

type transferRepositoryImpl struct {
	store *transferInmemoryStore
}

// NewTransferRepositoryImpl returns a new inmemory TransferRepository
// implementation.
func NewTransferRepositoryImpl() domain.TransferRepository {
	return &transferRepositoryImpl{&transferInmemoryStore{
		transfers: make(map[string]domain.Transfer),
		locker:    &sync.RWMutex{},
	}}
}

func (r *transferRepositoryImpl) AddTransfer(
	_ context.Context, transfer *domain.Transfer,
) error {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	if _, ok := r.store.transfers[transfer.ID]; ok {
		return domain.ErrTransferAlreadyExists
	}
	r.store.transfers[transfer.ID] = copyTransfer(*transfer)
	return nil
}

func (r *transferRepositoryImpl) GetTransfer(
	_ context.Context, id string,
) (*domain.Transfer, error) {
	r.store.locker.RLock()
	defer r.store.locker.RUnlock()

	return r.getTransfer(id)
}

func (r *transferRepositoryImpl) GetAllTransfers(
	_ context.Context,
) ([]*domain.Transfer, error) {
	r.store.locker.RLock()
	defer r.store.locker.RUnlock()

	return r.findTransfers(func(domain.Transfer) bool { return true }), nil
}

func (r *transferRepositoryImpl) GetAllTransfersForSession(
	_ context.Context, sessionID string,
) ([]*domain.Transfer, error) {
	r.store.locker.RLock()
	defer r.store.locker.RUnlock()

	return r.findTransfers(func(t domain.Transfer) bool {
		return t.SessionID == sessionID
	}), nil
}

func (r *transferRepositoryImpl) UpdateTransfer(
	_ context.Context,
	id string,
	updateFn func(t *domain.Transfer) (*domain.Transfer, error),
) error {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	currentTransfer, err := r.getTransfer(id)
	if err != nil {
		return err
	}

	updatedTransfer, err := updateFn(currentTransfer)
	if err != nil {
		return err
	}

	r.store.transfers[id] = copyTransfer(*updatedTransfer)
	return nil
}

func (r *transferRepositoryImpl) DeleteTransfer(_ context.Context, id string) error {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	if _, ok := r.store.transfers[id]; !ok {
		return domain.ErrTransferNotFound
	}
	delete(r.store.transfers, id)
	return nil
}

func (r *transferRepositoryImpl) getTransfer(id string) (*domain.Transfer, error) {
	transfer, ok := r.store.transfers[id]
	if !ok {
		return nil, domain.ErrTransferNotFound
	}
	t := copyTransfer(transfer)
	return &t, nil
}

func (r *transferRepositoryImpl) findTransfers(
	filter func(domain.Transfer) bool,
) []*domain.Transfer {
	transfers := make([]*domain.Transfer, 0)
	for _, transfer := range r.store.transfers {
		if filter(transfer) {
			t := copyTransfer(transfer)
			transfers = append(transfers, &t)
		}
	}
	sort.SliceStable(transfers, func(i, j int) bool {
		return transfers[i].CreatedAt < transfers[j].CreatedAt
	})
	return transfers
}

// copyTransfer makes sure the stored transfer shares no memory with the one
// held by the caller.
func copyTransfer(t domain.Transfer) domain.Transfer {
	if t.Route != nil {
		route := *t.Route
		route.Hops = append([]domain.Hop{}, t.Route.Hops...)
		route.Intermediates = append(
			[]domain.StealthAddress{}, t.Route.Intermediates...,
		)
		t.Route = &route
	}
	if t.Stranded != nil {
		stranded := *t.Stranded
		t.Stranded = &stranded
	}
	t.Profile.Features = append([]string{}, t.Profile.Features...)
	t.History = append([]domain.StatusChange{}, t.History...)
	submissions := make([]domain.BundleSubmission, 0, len(t.Submissions))
	for _, s := range t.Submissions {
		s.HopIndexes = append([]int{}, s.HopIndexes...)
		submissions = append(submissions, s)
	}
	t.Submissions = submissions
	return t
}
