package dbbadger

import (
	"context"

	"github.com/tdex-network/tdex-stealth/internal/core/domain"
	"github.com/timshannon/badgerhold/v4"
)

type strandedFundsRepositoryImpl struct {
	store *badgerhold.Store
}

// NewStrandedFundsRepositoryImpl returns a badger implementation of the
// domain.StrandedFundsRepository.
func NewStrandedFundsRepositoryImpl(
	store *badgerhold.Store,
) domain.StrandedFundsRepository {
	return &strandedFundsRepositoryImpl{store}
}

func (r *strandedFundsRepositoryImpl) AddStrandedFunds(
	_ context.Context, funds domain.StrandedFunds,
) error {
	return r.store.Upsert(funds.TransferID, funds)
}

func (r *strandedFundsRepositoryImpl) GetStrandedFunds(
	_ context.Context, transferID string,
) (*domain.StrandedFunds, error) {
	var funds domain.StrandedFunds
	if err := r.store.Get(transferID, &funds); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, domain.ErrStrandedFundsNotFound
		}
		return nil, err
	}
	return &funds, nil
}

func (r *strandedFundsRepositoryImpl) GetAllStrandedFunds(
	_ context.Context,
) ([]domain.StrandedFunds, error) {
	var list []domain.StrandedFunds
	query := badgerhold.Where("TransferID").Ne("").SortBy("Timestamp")
	if err := r.store.Find(&list, query); err != nil {
		return nil, err
	}
	return list, nil
}
