package dbbadger

import (
	"context"

	"github.com/dgraph-io/badger/v3"
	"github.com/tdex-network/tdex-stealth/internal/core/domain"
	"github.com/timshannon/badgerhold/v4"
)

type transferRepositoryImpl struct {
	store *badgerhold.Store
}

// NewTransferRepositoryImpl returns a badger implementation of the
// domain.TransferRepository.
func NewTransferRepositoryImpl(store *badgerhold.Store) domain.TransferRepository {
	return &transferRepositoryImpl{store}
}

func (r *transferRepositoryImpl) AddTransfer(
	_ context.Context, transfer *domain.Transfer,
) error {
	if err := r.store.Insert(transfer.ID, *transfer); err != nil {
		if err == badgerhold.ErrKeyExists {
			return domain.ErrTransferAlreadyExists
		}
		return err
	}
	return nil
}

func (r *transferRepositoryImpl) GetTransfer(
	_ context.Context, id string,
) (*domain.Transfer, error) {
	var transfer domain.Transfer
	if err := r.store.Get(id, &transfer); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, domain.ErrTransferNotFound
		}
		return nil, err
	}
	return &transfer, nil
}

func (r *transferRepositoryImpl) GetAllTransfers(
	_ context.Context,
) ([]*domain.Transfer, error) {
	return r.findTransfers(badgerhold.Where("ID").Ne("").SortBy("CreatedAt"))
}

func (r *transferRepositoryImpl) GetAllTransfersForSession(
	_ context.Context, sessionID string,
) ([]*domain.Transfer, error) {
	query := badgerhold.Where("SessionID").Eq(sessionID).SortBy("CreatedAt")
	return r.findTransfers(query)
}

func (r *transferRepositoryImpl) UpdateTransfer(
	_ context.Context,
	id string,
	updateFn func(t *domain.Transfer) (*domain.Transfer, error),
) error {
	return r.store.Badger().Update(func(tx *badger.Txn) error {
		var transfer domain.Transfer
		if err := r.store.TxGet(tx, id, &transfer); err != nil {
			if err == badgerhold.ErrNotFound {
				return domain.ErrTransferNotFound
			}
			return err
		}

		updatedTransfer, err := updateFn(&transfer)
		if err != nil {
			return err
		}

		return r.store.TxUpdate(tx, id, *updatedTransfer)
	})
}

func (r *transferRepositoryImpl) DeleteTransfer(_ context.Context, id string) error {
	if err := r.store.Delete(id, domain.Transfer{}); err != nil {
		if err == badgerhold.ErrNotFound {
			return domain.ErrTransferNotFound
		}
		return err
	}
	return nil
}

func (r *transferRepositoryImpl) findTransfers(
	query *badgerhold.Query,
) ([]*domain.Transfer, error) {
	var list []domain.Transfer
	if err := r.store.Find(&list, query); err != nil {
		return nil, err
	}

	transfers := make([]*domain.Transfer, 0, len(list))
	for i := range list {
		transfers = append(transfers, &list[i])
	}
	return transfers, nil
}
