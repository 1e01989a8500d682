// Package allocator hands out derivation path indexes for stealth addresses.
// It's the single allocation point of the per-session counter, so that two
// concurrent transfers never receive the same path.
package allocator

import (
	"context"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/tdex-stealth/internal/core/domain"
	"github.com/tdex-network/tdex-stealth/pkg/stealth"
)

// PathAllocator reserves unused path indexes from the durable counter owned by
// the wallet layer.
type PathAllocator struct {
	repo   domain.PathIndexRepository
	locker *sync.Mutex
}

// NewPathAllocator returns a new allocator backed by the given repository.
func NewPathAllocator(repo domain.PathIndexRepository) (*PathAllocator, error) {
	if repo == nil {
		return nil, fmt.Errorf("missing path index repository")
	}
	return &PathAllocator{repo, &sync.Mutex{}}, nil
}

// Next reserves n consecutive indexes for the given session. Indexes are
// monotonically increasing and never returned twice, even if the caller
// doesn't end up using them.
func (a *PathAllocator) Next(
	ctx context.Context, sessionID string, n int,
) ([]uint32, error) {
	if n <= 0 {
		return nil, nil
	}
	if sessionID == "" {
		return nil, fmt.Errorf("missing session id")
	}

	a.locker.Lock()
	defer a.locker.Unlock()

	first, err := a.repo.ReserveIndexes(ctx, sessionID, uint32(n))
	if err != nil {
		return nil, err
	}
	if uint64(first)+uint64(n)-1 > stealth.MaxIndex {
		return nil, domain.ErrPathIndexExhausted
	}

	indexes := make([]uint32, 0, n)
	for i := 0; i < n; i++ {
		indexes = append(indexes, first+uint32(i))
	}

	log.WithField("session", sessionID).Debugf(
		"allocator: reserved path indexes [%d, %d]", first, first+uint32(n)-1,
	)
	return indexes, nil
}
