package db_test

import (
	"crypto/rand"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tdex-network/tdex-stealth/internal/core/domain"
	"github.com/tdex-network/tdex-stealth/internal/core/ports"
	dbbadger "github.com/tdex-network/tdex-stealth/internal/infrastructure/storage/db/badger"
	"github.com/tdex-network/tdex-stealth/internal/infrastructure/storage/db/inmemory"
)

type repoManager struct {
	Name      string
	DBManager ports.RepoManager
}

func createRepoManagers(t *testing.T) []repoManager {
	inmemoryDBManager := inmemory.NewRepoManager()
	badgerDBManager, err := dbbadger.NewRepoManager("", nil)
	require.NoError(t, err)

	t.Cleanup(func() {
		inmemoryDBManager.Close()
		badgerDBManager.Close()
	})

	return []repoManager{
		{
			Name:      "badger",
			DBManager: badgerDBManager,
		},
		{
			Name:      "inmemory",
			DBManager: inmemoryDBManager,
		},
	}
}

func makeRandomTransfer(t *testing.T, sessionID string) *domain.Transfer {
	transfer, err := domain.NewTransfer(sessionID, domain.TransferRequest{
		Sender:       randomHex(20),
		Recipient:    randomHex(20),
		Amount:       10000000,
		PrivacyLevel: domain.PrivacyLevelAdvanced,
	})
	require.NoError(t, err)
	return transfer
}

func makeRandomRoute(transfer *domain.Transfer) *domain.Route {
	req := transfer.Request
	intermediate := domain.StealthAddress{
		Address:        randomHex(20),
		DerivationPath: "0'/0/0",
	}
	return &domain.Route{
		Sender:        req.Sender,
		Recipient:     req.Recipient,
		Amount:        req.Amount,
		HopFee:        500,
		Intermediates: []domain.StealthAddress{intermediate},
		Hops: []domain.Hop{
			{
				Index:  0,
				From:   req.Sender,
				To:     intermediate.Address,
				Amount: req.Amount,
				Fee:    500,
			},
			{
				Index:    1,
				From:     intermediate.Address,
				FromPath: intermediate.DerivationPath,
				To:       req.Recipient,
				Amount:   req.Amount - 500,
				Fee:      500,
				IsFinal:  true,
			},
		},
	}
}

func randomHex(len int) string {
	return hex.EncodeToString(randomBytes(len))
}

func randomBytes(len int) []byte {
	b := make([]byte, len)
	//nolint
	rand.Read(b)
	return b
}
