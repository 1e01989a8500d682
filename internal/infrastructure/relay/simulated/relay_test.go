package simulatedrelay_test

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tdex-network/tdex-stealth/internal/core/domain"
	"github.com/tdex-network/tdex-stealth/internal/core/ports"
	simulatedrelay "github.com/tdex-network/tdex-stealth/internal/infrastructure/relay/simulated"
	"github.com/tdex-network/tdex-stealth/pkg/stealth"
	"github.com/vulpemventures/go-elements/network"
)

const (
	testMnemonic  = "quarter multiply swarm depth slice security flight glad arrow express worth legend wasp mobile anchor dinner mutual six sure wear section delay initial thank"
	testRecipient = "el1qqtestrecipient"
)

func TestSubmitBundle(t *testing.T) {
	ctx := context.Background()
	keys := newTestKeys(t, 2)
	relay := newTestRelay(t, 0, map[string]uint64{keys[0].Address: 10000})

	bundle := makeBundle(t, "b1", []ports.Operation{
		{HopIndex: 0, From: keys[0].Address, To: keys[1].Address, Amount: 5000, Fee: 500},
		{HopIndex: 1, From: keys[1].Address, To: testRecipient, Amount: 4500, Fee: 500},
	}, keys)

	resp, err := relay.SubmitBundle(ctx, bundle)
	require.NoError(t, err)
	require.Equal(t, domain.RelayResponseAccepted, resp.Response)

	status, err := relay.GetBundleStatus(ctx, "b1")
	require.NoError(t, err)
	require.Equal(t, domain.ConfirmationLanded, status.Status)
	require.Equal(t, 2, status.AppliedOperations)

	requireBalance(t, relay, keys[0].Address, 4500)
	requireBalance(t, relay, keys[1].Address, 0)
	requireBalance(t, relay, testRecipient, 4500)

	// Bundle ids can't be reused.
	_, err = relay.SubmitBundle(ctx, bundle)
	require.ErrorIs(t, err, domain.ErrInvalidBundle)
}

func TestLandingDelay(t *testing.T) {
	ctx := context.Background()
	keys := newTestKeys(t, 1)
	relay := newTestRelay(t, 20*time.Millisecond, map[string]uint64{keys[0].Address: 10000})

	bundle := makeBundle(t, "b1", []ports.Operation{
		{HopIndex: 0, From: keys[0].Address, To: testRecipient, Amount: 1000, Fee: 500},
	}, keys)
	_, err := relay.SubmitBundle(ctx, bundle)
	require.NoError(t, err)

	status, err := relay.GetBundleStatus(ctx, "b1")
	require.NoError(t, err)
	require.Equal(t, domain.ConfirmationPending, status.Status)
	requireBalance(t, relay, testRecipient, 0)

	require.Eventually(t, func() bool {
		status, err := relay.GetBundleStatus(ctx, "b1")
		return err == nil && status.Status == domain.ConfirmationLanded
	}, time.Second, 5*time.Millisecond)
	requireBalance(t, relay, testRecipient, 1000)

	status, err = relay.GetBundleStatus(ctx, "unknown")
	require.NoError(t, err)
	require.Equal(t, domain.ConfirmationUnknown, status.Status)
}

func TestFailingSubmitBundle(t *testing.T) {
	ctx := context.Background()
	keys := newTestKeys(t, 2)

	t.Run("insufficient_funds", func(t *testing.T) {
		relay := newTestRelay(t, 0, map[string]uint64{keys[0].Address: 1000})
		bundle := makeBundle(t, "b1", []ports.Operation{
			{HopIndex: 0, From: keys[0].Address, To: testRecipient, Amount: 1000, Fee: 500},
		}, keys)

		_, err := relay.SubmitBundle(ctx, bundle)
		require.ErrorIs(t, err, domain.ErrInsufficientFunds)
		requireBalance(t, relay, keys[0].Address, 1000)
	})

	t.Run("wrong_key", func(t *testing.T) {
		relay := newTestRelay(t, 0, map[string]uint64{keys[0].Address: 10000})
		bundle := makeBundle(t, "b1", []ports.Operation{
			{HopIndex: 0, From: keys[0].Address, To: testRecipient, Amount: 1000, Fee: 500},
		}, keys[1:])

		_, err := relay.SubmitBundle(ctx, bundle)
		require.ErrorIs(t, err, domain.ErrSignatureFailed)
	})

	t.Run("replayed_signature", func(t *testing.T) {
		relay := newTestRelay(t, 0, map[string]uint64{keys[0].Address: 10000})
		bundle := makeBundle(t, "b1", []ports.Operation{
			{HopIndex: 0, From: keys[0].Address, To: testRecipient, Amount: 1000, Fee: 500},
		}, keys)
		bundle.ID = "b2"

		_, err := relay.SubmitBundle(ctx, bundle)
		require.ErrorIs(t, err, domain.ErrSignatureFailed)
	})

	t.Run("amount_overflow", func(t *testing.T) {
		relay := newTestRelay(t, 0, map[string]uint64{keys[0].Address: math.MaxUint64})
		bundle := makeBundle(t, "b1", []ports.Operation{
			{HopIndex: 0, From: keys[0].Address, To: testRecipient, Amount: math.MaxUint64 - 100, Fee: 500},
		}, keys)

		_, err := relay.SubmitBundle(ctx, bundle)
		require.ErrorIs(t, err, domain.ErrInvalidBundle)
		requireBalance(t, relay, keys[0].Address, math.MaxUint64)
		requireBalance(t, relay, testRecipient, 0)
	})

	t.Run("all_or_nothing", func(t *testing.T) {
		relay := newTestRelay(t, 0, map[string]uint64{keys[0].Address: 10000})
		bundle := makeBundle(t, "b1", []ports.Operation{
			{HopIndex: 0, From: keys[0].Address, To: keys[1].Address, Amount: 5000, Fee: 500},
			{HopIndex: 1, From: keys[1].Address, To: testRecipient, Amount: 6000, Fee: 500},
		}, keys)

		_, err := relay.SubmitBundle(ctx, bundle)
		require.ErrorIs(t, err, domain.ErrInsufficientFunds)
		requireBalance(t, relay, keys[0].Address, 10000)
		requireBalance(t, relay, keys[1].Address, 0)
	})
}

func TestFaults(t *testing.T) {
	ctx := context.Background()
	keys := newTestKeys(t, 2)
	ops := []ports.Operation{
		{HopIndex: 0, From: keys[0].Address, To: keys[1].Address, Amount: 5000, Fee: 500},
		{HopIndex: 1, From: keys[1].Address, To: testRecipient, Amount: 4500, Fee: 500},
	}

	t.Run("reject", func(t *testing.T) {
		relay := newTestRelay(t, 0, map[string]uint64{keys[0].Address: 10000})
		relay.InjectFault(1, simulatedrelay.FaultReject, 1)

		resp, err := relay.SubmitBundle(ctx, makeBundle(t, "b1", ops, keys))
		require.NoError(t, err)
		require.Equal(t, domain.RelayResponseRejected, resp.Response)
		requireBalance(t, relay, keys[0].Address, 10000)

		// the fault is consumed
		resp, err = relay.SubmitBundle(ctx, makeBundle(t, "b2", ops, keys))
		require.NoError(t, err)
		require.Equal(t, domain.RelayResponseAccepted, resp.Response)
	})

	t.Run("partial", func(t *testing.T) {
		relay := newTestRelay(t, 0, map[string]uint64{keys[0].Address: 10000})
		relay.InjectFault(0, simulatedrelay.FaultPartial, 1)

		_, err := relay.SubmitBundle(ctx, makeBundle(t, "b1", ops, keys))
		require.NoError(t, err)

		status, err := relay.GetBundleStatus(ctx, "b1")
		require.NoError(t, err)
		require.Equal(t, domain.ConfirmationPartial, status.Status)
		require.Equal(t, 1, status.AppliedOperations)
		requireBalance(t, relay, keys[1].Address, 5000)
		requireBalance(t, relay, testRecipient, 0)
	})

	t.Run("timeout_landed", func(t *testing.T) {
		relay := newTestRelay(t, 0, map[string]uint64{keys[0].Address: 10000})
		relay.InjectFault(0, simulatedrelay.FaultTimeoutLanded, 1)

		_, err := relay.SubmitBundle(ctx, makeBundle(t, "b1", ops, keys))
		require.ErrorIs(t, err, domain.ErrRelayTimeout)
		requireBalance(t, relay, testRecipient, 4500)
	})

	t.Run("timeout_lost", func(t *testing.T) {
		relay := newTestRelay(t, 0, map[string]uint64{keys[0].Address: 10000})
		relay.InjectFault(0, simulatedrelay.FaultTimeoutLost, 1)

		_, err := relay.SubmitBundle(ctx, makeBundle(t, "b1", ops, keys))
		require.ErrorIs(t, err, domain.ErrRelayTimeout)
		require.Empty(t, relay.Submitted())

		status, err := relay.GetBundleStatus(ctx, "b1")
		require.NoError(t, err)
		require.Equal(t, domain.ConfirmationUnknown, status.Status)
	})
}

func newTestRelay(
	t *testing.T, landingDelay time.Duration, balances map[string]uint64,
) *simulatedrelay.Relay {
	relay, err := simulatedrelay.NewRelay(simulatedrelay.Options{
		Network:      &network.Regtest,
		LandingDelay: landingDelay,
		Balances:     balances,
	})
	require.NoError(t, err)
	return relay
}

func newTestKeys(t *testing.T, n int) []*stealth.Key {
	deriver, err := stealth.NewDeriver(stealth.NewDeriverOpts{Network: &network.Regtest})
	require.NoError(t, err)
	seed, err := stealth.SeedFromMnemonic(testMnemonic)
	require.NoError(t, err)

	keys := make([]*stealth.Key, 0, n)
	for i := 0; i < n; i++ {
		path, err := stealth.NewStealthPath(0, uint32(i))
		require.NoError(t, err)
		key, err := deriver.Derive(seed, path)
		require.NoError(t, err)
		keys = append(keys, key)
	}
	return keys
}

// makeBundle signs every operation with the key at the same position.
func makeBundle(
	t *testing.T, id string, ops []ports.Operation, keys []*stealth.Key,
) ports.Bundle {
	bundle := ports.Bundle{ID: id}
	for i, op := range ops {
		key := keys[i%len(keys)]
		sig, err := key.Sign(op.Digest(id))
		require.NoError(t, err)
		op.PublicKey = key.PublicKey()
		op.Signature = sig
		bundle.Operations = append(bundle.Operations, op)
	}
	return bundle
}

func requireBalance(t *testing.T, relay *simulatedrelay.Relay, addr string, expected uint64) {
	balance, err := relay.GetBalance(context.Background(), addr)
	require.NoError(t, err)
	require.Equal(t, expected, balance)
}
