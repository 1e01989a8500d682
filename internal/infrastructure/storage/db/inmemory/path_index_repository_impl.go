package inmemory

import (
	"context"
	"sync"

	"github.com/tdex-network/tdex-stealth/internal/core/domain"
	"github.com/tdex-network/tdex-stealth/pkg/stealth"
)

type pathIndexRepositoryImpl struct {
	nextIndexes map[string]uint32
	locker      *sync.Mutex
}

// NewPathIndexRepositoryImpl returns a new inmemory PathIndexRepository
// implementation. Counters are lost at restart, use it only for tests or with
// throwaway seeds.
func NewPathIndexRepositoryImpl() domain.PathIndexRepository {
	return &pathIndexRepositoryImpl{
		nextIndexes: make(map[string]uint32),
		locker:      &sync.Mutex{},
	}
}

func (r *pathIndexRepositoryImpl) ReserveIndexes(
	_ context.Context, sessionID string, n uint32,
) (uint32, error) {
	r.locker.Lock()
	defer r.locker.Unlock()

	first := r.nextIndexes[sessionID]
	if uint64(first)+uint64(n) > uint64(stealth.MaxIndex)+1 {
		return 0, domain.ErrPathIndexExhausted
	}
	r.nextIndexes[sessionID] = first + n
	return first, nil
}

func (r *pathIndexRepositoryImpl) GetNextIndex(
	_ context.Context, sessionID string,
) (uint32, error) {
	r.locker.Lock()
	defer r.locker.Unlock()

	return r.nextIndexes[sessionID], nil
}
