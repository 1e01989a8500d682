package walletsession_test

import (
	"context"
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/require"
	walletsession "github.com/tdex-network/tdex-stealth/internal/infrastructure/wallet"
	"github.com/tdex-network/tdex-stealth/pkg/stealth"
	"github.com/vulpemventures/go-elements/network"
)

const testMnemonic = "quarter multiply swarm depth slice security flight glad arrow express worth legend wasp mobile anchor dinner mutual six sure wear section delay initial thank"

func TestSession(t *testing.T) {
	deriver, err := stealth.NewDeriver(stealth.NewDeriverOpts{Network: &network.Regtest})
	require.NoError(t, err)

	s, err := walletsession.NewSession(walletsession.NewSessionOpts{
		ID:       "session",
		Mnemonic: testMnemonic,
		Deriver:  deriver,
	})
	require.NoError(t, err)
	require.Equal(t, "session", s.ID())
	require.NotEmpty(t, s.SenderAddress())

	ctx := context.Background()
	seed, err := s.Seed(ctx)
	require.NoError(t, err)
	expectedSeed, err := stealth.SeedFromMnemonic(testMnemonic)
	require.NoError(t, err)
	require.Equal(t, expectedSeed, seed)

	// The sender never spends from a stealth address.
	for i := uint32(0); i < 10; i++ {
		path, err := stealth.NewStealthPath(0, i)
		require.NoError(t, err)
		addr, err := deriver.DeriveAddress(seed, path)
		require.NoError(t, err)
		require.NotEqual(t, s.SenderAddress(), addr)
	}

	digest := sha256.Sum256([]byte("operation"))
	pubkey, sig, err := s.SignAsSender(ctx, digest[:])
	require.NoError(t, err)
	require.True(t, stealth.VerifySignature(pubkey, digest[:], sig))

	s.Lock()
	require.True(t, s.IsLocked())
	_, err = s.Seed(ctx)
	require.ErrorIs(t, err, walletsession.ErrLocked)
	_, _, err = s.SignAsSender(ctx, digest[:])
	require.ErrorIs(t, err, walletsession.ErrLocked)
}

func TestFailingNewSession(t *testing.T) {
	deriver, err := stealth.NewDeriver(stealth.NewDeriverOpts{Network: &network.Regtest})
	require.NoError(t, err)

	tests := []struct {
		name        string
		opts        walletsession.NewSessionOpts
		expectedErr error
	}{
		{
			name:        "missing_deriver",
			opts:        walletsession.NewSessionOpts{Mnemonic: testMnemonic},
			expectedErr: walletsession.ErrNullDeriver,
		},
		{
			name:        "invalid_mnemonic",
			opts:        walletsession.NewSessionOpts{Mnemonic: "tdex tdex", Deriver: deriver},
			expectedErr: stealth.ErrInvalidSeed,
		},
		{
			name:        "empty_mnemonic",
			opts:        walletsession.NewSessionOpts{Deriver: deriver},
			expectedErr: stealth.ErrInvalidSeed,
		},
	}

	for i := range tests {
		tt := tests[i]
		t.Run(tt.name, func(t *testing.T) {
			_, err := walletsession.NewSession(tt.opts)
			require.ErrorIs(t, err, tt.expectedErr)
		})
	}
}
