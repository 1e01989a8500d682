package dbbadger

import (
	"context"
	"errors"

	"github.com/dgraph-io/badger/v3"
	"github.com/tdex-network/tdex-stealth/internal/core/domain"
	"github.com/tdex-network/tdex-stealth/pkg/stealth"
	"github.com/timshannon/badgerhold/v4"
)

const maxConflictRetries = 10

type pathIndex struct {
	SessionID string
	NextIndex uint32
}

type pathIndexRepositoryImpl struct {
	store *badgerhold.Store
}

// NewPathIndexRepositoryImpl returns a badger implementation of the
// domain.PathIndexRepository. Counters survive restarts.
func NewPathIndexRepositoryImpl(store *badgerhold.Store) domain.PathIndexRepository {
	return &pathIndexRepositoryImpl{store}
}

func (r *pathIndexRepositoryImpl) ReserveIndexes(
	ctx context.Context, sessionID string, n uint32,
) (uint32, error) {
	var first uint32
	reserve := func(tx *badger.Txn) error {
		index, err := r.getIndex(tx, sessionID)
		if err != nil {
			return err
		}
		if uint64(index.NextIndex)+uint64(n) > uint64(stealth.MaxIndex)+1 {
			return domain.ErrPathIndexExhausted
		}

		first = index.NextIndex
		index.NextIndex += n
		return r.store.TxUpsert(tx, sessionID, *index)
	}

	var err error
	for i := 0; i < maxConflictRetries; i++ {
		if err = ctx.Err(); err != nil {
			return 0, err
		}
		err = r.store.Badger().Update(reserve)
		if !errors.Is(err, badger.ErrConflict) {
			break
		}
	}
	if err != nil {
		return 0, err
	}
	return first, nil
}

func (r *pathIndexRepositoryImpl) GetNextIndex(
	_ context.Context, sessionID string,
) (uint32, error) {
	var next uint32
	err := r.store.Badger().View(func(tx *badger.Txn) error {
		index, err := r.getIndex(tx, sessionID)
		if err != nil {
			return err
		}
		next = index.NextIndex
		return nil
	})
	return next, err
}

func (r *pathIndexRepositoryImpl) getIndex(
	tx *badger.Txn, sessionID string,
) (*pathIndex, error) {
	var index pathIndex
	if err := r.store.TxGet(tx, sessionID, &index); err != nil {
		if err == badgerhold.ErrNotFound {
			return &pathIndex{SessionID: sessionID}, nil
		}
		return nil, err
	}
	return &index, nil
}
