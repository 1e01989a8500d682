package db_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tdex-network/tdex-stealth/internal/core/domain"
)

func TestTransferRepositoryImplementations(t *testing.T) {
	repoManagers := createRepoManagers(t)

	for i := range repoManagers {
		repo := repoManagers[i]

		t.Run(repo.Name, func(t *testing.T) {
			t.Parallel()

			t.Run("testAddAndGetTransfer", func(t *testing.T) {
				t.Parallel()
				testAddAndGetTransfer(t, repo.DBManager.TransferRepository())
			})

			t.Run("testGetAllTransfersForSession", func(t *testing.T) {
				t.Parallel()
				testGetAllTransfersForSession(t, repo.DBManager.TransferRepository())
			})

			t.Run("testUpdateTransfer", func(t *testing.T) {
				t.Parallel()
				testUpdateTransfer(t, repo.DBManager.TransferRepository())
			})

			t.Run("testUpdateTransferRollback", func(t *testing.T) {
				t.Parallel()
				testUpdateTransferRollback(t, repo.DBManager.TransferRepository())
			})

			t.Run("testDeleteTransfer", func(t *testing.T) {
				t.Parallel()
				testDeleteTransfer(t, repo.DBManager.TransferRepository())
			})
		})
	}
}

func testAddAndGetTransfer(t *testing.T, repo domain.TransferRepository) {
	ctx := context.Background()
	transfer := makeRandomTransfer(t, randomHex(8))

	err := repo.AddTransfer(ctx, transfer)
	require.NoError(t, err)

	err = repo.AddTransfer(ctx, transfer)
	require.ErrorIs(t, err, domain.ErrTransferAlreadyExists)

	gotTransfer, err := repo.GetTransfer(ctx, transfer.ID)
	require.NoError(t, err)
	require.Equal(t, transfer.ID, gotTransfer.ID)
	require.Equal(t, transfer.Request, gotTransfer.Request)
	require.Equal(t, transfer.Profile.HopCountRange, gotTransfer.Profile.HopCountRange)
	require.Equal(t, domain.TransferStatusPending, gotTransfer.Status)

	_, err = repo.GetTransfer(ctx, randomHex(16))
	require.ErrorIs(t, err, domain.ErrTransferNotFound)
}

func testGetAllTransfersForSession(t *testing.T, repo domain.TransferRepository) {
	ctx := context.Background()
	sessionID := randomHex(8)
	otherSessionID := randomHex(8)

	for i := 0; i < 3; i++ {
		err := repo.AddTransfer(ctx, makeRandomTransfer(t, sessionID))
		require.NoError(t, err)
	}
	err := repo.AddTransfer(ctx, makeRandomTransfer(t, otherSessionID))
	require.NoError(t, err)

	transfers, err := repo.GetAllTransfersForSession(ctx, sessionID)
	require.NoError(t, err)
	require.Len(t, transfers, 3)
	for _, tr := range transfers {
		require.Equal(t, sessionID, tr.SessionID)
	}

	allTransfers, err := repo.GetAllTransfers(ctx)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(allTransfers), 4)
}

func testUpdateTransfer(t *testing.T, repo domain.TransferRepository) {
	ctx := context.Background()
	transfer := makeRandomTransfer(t, randomHex(8))
	err := repo.AddTransfer(ctx, transfer)
	require.NoError(t, err)

	route := makeRandomRoute(transfer)
	err = repo.UpdateTransfer(
		ctx, transfer.ID, func(t *domain.Transfer) (*domain.Transfer, error) {
			if err := t.Plan(route); err != nil {
				return nil, err
			}
			if err := t.ExecuteHop(0); err != nil {
				return nil, err
			}
			if err := t.ConfirmHops(0); err != nil {
				return nil, err
			}
			t.Fail(domain.ErrRelayRejected.Error())
			return t, nil
		},
	)
	require.NoError(t, err)

	gotTransfer, err := repo.GetTransfer(ctx, transfer.ID)
	require.NoError(t, err)
	require.True(t, gotTransfer.IsPartiallyFailed())
	require.NotNil(t, gotTransfer.Route)
	require.Equal(t, route.Hops, gotTransfer.Route.Hops)
	require.NotNil(t, gotTransfer.Stranded)
	require.Equal(t, route.Intermediates[0].Address, gotTransfer.Stranded.Address)
	require.Equal(t, gotTransfer.StatusPath(), []string{
		"PENDING", "PLANNED", "EXECUTING_HOP[0]", "PARTIALLY_FAILED",
	})
}

func testUpdateTransferRollback(t *testing.T, repo domain.TransferRepository) {
	ctx := context.Background()
	transfer := makeRandomTransfer(t, randomHex(8))
	err := repo.AddTransfer(ctx, transfer)
	require.NoError(t, err)

	expectedErr := fmt.Errorf("something went wrong")
	err = repo.UpdateTransfer(
		ctx, transfer.ID, func(t *domain.Transfer) (*domain.Transfer, error) {
			t.Fail("rolled back")
			return nil, expectedErr
		},
	)
	require.ErrorIs(t, err, expectedErr)

	gotTransfer, err := repo.GetTransfer(ctx, transfer.ID)
	require.NoError(t, err)
	require.Equal(t, domain.TransferStatusPending, gotTransfer.Status)

	err = repo.UpdateTransfer(
		ctx, randomHex(16), func(t *domain.Transfer) (*domain.Transfer, error) {
			return t, nil
		},
	)
	require.ErrorIs(t, err, domain.ErrTransferNotFound)
}

func testDeleteTransfer(t *testing.T, repo domain.TransferRepository) {
	ctx := context.Background()
	transfer := makeRandomTransfer(t, randomHex(8))
	err := repo.AddTransfer(ctx, transfer)
	require.NoError(t, err)

	err = repo.DeleteTransfer(ctx, transfer.ID)
	require.NoError(t, err)

	_, err = repo.GetTransfer(ctx, transfer.ID)
	require.ErrorIs(t, err, domain.ErrTransferNotFound)

	err = repo.DeleteTransfer(ctx, transfer.ID)
	require.ErrorIs(t, err, domain.ErrTransferNotFound)
}
