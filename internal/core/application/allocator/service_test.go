package allocator_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tdex-network/tdex-stealth/internal/core/application/allocator"
	"github.com/tdex-network/tdex-stealth/internal/core/domain"
	"github.com/tdex-network/tdex-stealth/internal/infrastructure/storage/db/inmemory"
	"github.com/tdex-network/tdex-stealth/pkg/stealth"
)

func TestPathAllocator(t *testing.T) {
	a, err := allocator.NewPathAllocator(inmemory.NewPathIndexRepositoryImpl())
	require.NoError(t, err)

	ctx := context.Background()

	indexes, err := a.Next(ctx, "session", 3)
	require.NoError(t, err)
	require.Equal(t, []uint32{0, 1, 2}, indexes)

	indexes, err = a.Next(ctx, "session", 1)
	require.NoError(t, err)
	require.Equal(t, []uint32{3}, indexes)

	indexes, err = a.Next(ctx, "session", 0)
	require.NoError(t, err)
	require.Empty(t, indexes)

	indexes, err = a.Next(ctx, "other-session", 2)
	require.NoError(t, err)
	require.Equal(t, []uint32{0, 1}, indexes)
}

func TestPathAllocatorConcurrentRequests(t *testing.T) {
	a, err := allocator.NewPathAllocator(inmemory.NewPathIndexRepositoryImpl())
	require.NoError(t, err)

	ctx := context.Background()
	numOfRequests := 50

	wg := &sync.WaitGroup{}
	lock := &sync.Mutex{}
	allocated := make(map[uint32]int)
	for i := 0; i < numOfRequests; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			indexes, err := a.Next(ctx, "session", n)
			require.NoError(t, err)

			lock.Lock()
			defer lock.Unlock()
			for _, index := range indexes {
				allocated[index]++
			}
		}(i%4 + 1)
	}
	wg.Wait()

	total := 0
	for i := 0; i < numOfRequests; i++ {
		total += i%4 + 1
	}
	require.Len(t, allocated, total)
	for index, count := range allocated {
		require.Equal(t, 1, count, "index %d allocated more than once", index)
	}
}

func TestFailingPathAllocator(t *testing.T) {
	t.Run("missing_repository", func(t *testing.T) {
		_, err := allocator.NewPathAllocator(nil)
		require.Error(t, err)
	})

	t.Run("missing_session", func(t *testing.T) {
		a, err := allocator.NewPathAllocator(inmemory.NewPathIndexRepositoryImpl())
		require.NoError(t, err)
		_, err = a.Next(context.Background(), "", 1)
		require.Error(t, err)
	})

	t.Run("exhausted", func(t *testing.T) {
		repo := &mockPathIndexRepository{}
		repo.On("ReserveIndexes", mock.Anything, "session", uint32(2)).
			Return(uint32(stealth.MaxIndex), nil)

		a, err := allocator.NewPathAllocator(repo)
		require.NoError(t, err)
		_, err = a.Next(context.Background(), "session", 2)
		require.ErrorIs(t, err, domain.ErrPathIndexExhausted)
	})
}

type mockPathIndexRepository struct {
	mock.Mock
}

func (m *mockPathIndexRepository) ReserveIndexes(
	ctx context.Context, sessionID string, n uint32,
) (uint32, error) {
	args := m.Called(ctx, sessionID, n)
	return args.Get(0).(uint32), args.Error(1)
}

func (m *mockPathIndexRepository) GetNextIndex(
	ctx context.Context, sessionID string,
) (uint32, error) {
	args := m.Called(ctx, sessionID)
	return args.Get(0).(uint32), args.Error(1)
}
