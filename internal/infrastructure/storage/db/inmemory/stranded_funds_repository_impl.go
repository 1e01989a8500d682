package inmemory

import (
	"context"
	"sort"
	"sync"

	"github.com/tdex-network/tdex-stealth/internal/core/domain"
)

type strandedFundsRepositoryImpl struct {
	funds  map[string]domain.StrandedFunds
	locker *sync.RWMutex
}

// NewStrandedFundsRepositoryImpl returns a new inmemory
// StrandedFundsRepository implementation.
func NewStrandedFundsRepositoryImpl() domain.StrandedFundsRepository {
	return &strandedFundsRepositoryImpl{
		funds:  make(map[string]domain.StrandedFunds),
		locker: &sync.RWMutex{},
	}
}

func (r *strandedFundsRepositoryImpl) AddStrandedFunds(
	_ context.Context, funds domain.StrandedFunds,
) error {
	r.locker.Lock()
	defer r.locker.Unlock()

	r.funds[funds.TransferID] = funds
	return nil
}

func (r *strandedFundsRepositoryImpl) GetStrandedFunds(
	_ context.Context, transferID string,
) (*domain.StrandedFunds, error) {
	r.locker.RLock()
	defer r.locker.RUnlock()

	funds, ok := r.funds[transferID]
	if !ok {
		return nil, domain.ErrStrandedFundsNotFound
	}
	return &funds, nil
}

func (r *strandedFundsRepositoryImpl) GetAllStrandedFunds(
	_ context.Context,
) ([]domain.StrandedFunds, error) {
	r.locker.RLock()
	defer r.locker.RUnlock()

	list := make([]domain.StrandedFunds, 0, len(r.funds))
	for _, f := range r.funds {
		list = append(list, f)
	}
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].Timestamp < list[j].Timestamp
	})
	return list, nil
}
