package planner_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tdex-network/tdex-stealth/internal/core/application/allocator"
	"github.com/tdex-network/tdex-stealth/internal/core/application/planner"
	"github.com/tdex-network/tdex-stealth/internal/core/domain"
	"github.com/tdex-network/tdex-stealth/internal/infrastructure/storage/db/inmemory"
	walletsession "github.com/tdex-network/tdex-stealth/internal/infrastructure/wallet"
	"github.com/tdex-network/tdex-stealth/pkg/randutil"
	"github.com/tdex-network/tdex-stealth/pkg/stealth"
	"github.com/vulpemventures/go-elements/network"
)

const (
	testMnemonic  = "quarter multiply swarm depth slice security flight glad arrow express worth legend wasp mobile anchor dinner mutual six sure wear section delay initial thank"
	testRecipient = "el1qqtestrecipient"
	testAmount    = uint64(10000000) // 0.1
)

func TestPlanDirectRoute(t *testing.T) {
	svc, session, pathIndexes := newTestService(t, randutil.NewDeterministicSource(1))
	profile := mustProfile(t, domain.PrivacyLevelBasic)

	route, err := svc.Plan(context.Background(), planner.PlanRequest{
		Sender:    session.SenderAddress(),
		Recipient: testRecipient,
		Amount:    testAmount,
		Profile:   profile,
		Session:   session,
	})
	require.NoError(t, err)
	require.Equal(t, 1, route.HopCount())
	require.Empty(t, route.Intermediates)
	require.False(t, route.Reduced)

	hop := route.Hops[0]
	require.Equal(t, session.SenderAddress(), hop.From)
	require.Equal(t, testRecipient, hop.To)
	require.Equal(t, testAmount, hop.Amount)
	require.True(t, hop.IsFinal)
	require.True(t, hop.IsFromSender())
	require.Equal(t, testAmount, route.Delivered())

	// No derivation path is consumed without mixing.
	next, err := pathIndexes.GetNextIndex(context.Background(), session.ID())
	require.NoError(t, err)
	require.Zero(t, next)
}

func TestPlanHopCountInRange(t *testing.T) {
	svc, session, _ := newTestService(t, randutil.NewDeterministicSource(42))
	maxDrift := svc.MaxDrift(testAmount)

	for _, level := range []domain.PrivacyLevel{
		domain.PrivacyLevelAdvanced, domain.PrivacyLevelMaximum,
	} {
		profile := mustProfile(t, level)
		seen := make(map[int]bool)

		for i := 0; i < 50; i++ {
			route, err := svc.Plan(context.Background(), planner.PlanRequest{
				Sender:    session.SenderAddress(),
				Recipient: testRecipient,
				Amount:    testAmount,
				Profile:   profile,
				Session:   session,
			})
			require.NoError(t, err)
			require.True(
				t, profile.HopCountRange.Contains(route.HopCount()),
				"%s: hop count %d out of range", level, route.HopCount(),
			)
			require.Len(t, route.Intermediates, route.HopCount()-1)
			require.False(t, route.Reduced)

			// amounts round trip within drift tolerance
			require.Equal(t, testAmount, route.Delivered()+route.IntermediateFees())
			require.LessOrEqual(t, testAmount-route.Delivered(), maxDrift)
			require.NoError(t, route.Validate(maxDrift))
			for _, hop := range route.Hops {
				require.NotZero(t, hop.Amount)
			}
			seen[route.HopCount()] = true
		}

		// every value of the range is eventually drawn
		for h := profile.HopCountRange.Min; h <= profile.HopCountRange.Max; h++ {
			require.True(t, seen[h], "%s: hop count %d never drawn", level, h)
		}
	}
}

func TestPlanIntermediates(t *testing.T) {
	src := &randutil.FixedSource{Ints: []int64{2}}
	svc, session, pathIndexes := newTestService(t, src)
	profile := mustProfile(t, domain.PrivacyLevelMaximum)
	ctx := context.Background()

	route, err := svc.Plan(ctx, planner.PlanRequest{
		Sender:    session.SenderAddress(),
		Recipient: testRecipient,
		Amount:    testAmount,
		Profile:   profile,
		Session:   session,
	})
	require.NoError(t, err)
	require.Equal(t, 5, route.HopCount())

	seed, err := session.Seed(ctx)
	require.NoError(t, err)
	deriver := newTestDeriver(t)

	for i, intermediate := range route.Intermediates {
		require.Equal(t, uint32(i), intermediate.CreatedAtIndex)

		path, err := stealth.ParseDerivationPath(intermediate.DerivationPath)
		require.NoError(t, err)
		addr, err := deriver.DeriveAddress(seed, path)
		require.NoError(t, err)
		require.Equal(t, intermediate.Address, addr)

		require.Equal(t, intermediate.Address, route.Hops[i].To)
		require.Equal(t, intermediate.Address, route.Hops[i+1].From)
		require.Equal(t, intermediate.DerivationPath, route.Hops[i+1].FromPath)
	}

	fee := svc.Config().HopFee
	for i, hop := range route.Hops {
		require.Equal(t, testAmount-uint64(i)*fee, hop.Amount)
	}

	next, err := pathIndexes.GetNextIndex(ctx, session.ID())
	require.NoError(t, err)
	require.Equal(t, uint32(4), next)

	// A new plan never reuses the addresses of the previous one.
	other, err := svc.Plan(ctx, planner.PlanRequest{
		Sender:    session.SenderAddress(),
		Recipient: testRecipient,
		Amount:    testAmount,
		Profile:   profile,
		Session:   session,
	})
	require.NoError(t, err)
	used := make(map[string]bool)
	for _, a := range route.Intermediates {
		used[a.Address] = true
	}
	for _, a := range other.Intermediates {
		require.False(t, used[a.Address])
	}
}

func TestPlanBoundaries(t *testing.T) {
	tests := []struct {
		name             string
		level            domain.PrivacyLevel
		amount           uint64
		expectedHopCount int
		expectedReduced  bool
		expectedErr      error
	}{
		{
			name:             "advanced_reduced_to_direct",
			level:            domain.PrivacyLevelAdvanced,
			amount:           1500,
			expectedHopCount: 1,
			expectedReduced:  true,
		},
		{
			name:             "maximum_reduced_to_direct",
			level:            domain.PrivacyLevelMaximum,
			amount:           planner.DefaultMinHopAmount,
			expectedHopCount: 1,
			expectedReduced:  true,
		},
		{
			name:             "maximum_reduced_under_range",
			level:            domain.PrivacyLevelMaximum,
			amount:           60000,
			expectedHopCount: 2,
			expectedReduced:  true,
		},
		{
			name:             "basic_at_min_amount",
			level:            domain.PrivacyLevelBasic,
			amount:           planner.DefaultMinHopAmount,
			expectedHopCount: 1,
		},
		{
			name:        "maximum_under_min_amount",
			level:       domain.PrivacyLevelMaximum,
			amount:      planner.DefaultMinHopAmount - 1,
			expectedErr: domain.ErrAmountTooSmallForRoute,
		},
	}

	for i := range tests {
		tt := tests[i]
		t.Run(tt.name, func(t *testing.T) {
			src := &randutil.FixedSource{Ints: []int64{0}}
			svc, session, _ := newTestService(t, src)

			route, err := svc.Plan(context.Background(), planner.PlanRequest{
				Sender:    session.SenderAddress(),
				Recipient: testRecipient,
				Amount:    tt.amount,
				Profile:   mustProfile(t, tt.level),
				Session:   session,
			})
			if tt.expectedErr != nil {
				require.ErrorIs(t, err, tt.expectedErr)
				require.Nil(t, route)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.expectedHopCount, route.HopCount())
			require.Equal(t, tt.expectedReduced, route.Reduced)
			for _, hop := range route.Hops {
				require.GreaterOrEqual(
					t, hop.Amount, uint64(planner.DefaultMinHopAmount),
				)
			}
		})
	}
}

func TestFailingPlan(t *testing.T) {
	svc, session, _ := newTestService(t, randutil.NewDeterministicSource(1))

	for _, level := range []domain.PrivacyLevel{
		domain.PrivacyLevelBasic,
		domain.PrivacyLevelAdvanced,
		domain.PrivacyLevelMaximum,
	} {
		_, err := svc.Plan(context.Background(), planner.PlanRequest{
			Sender:    session.SenderAddress(),
			Recipient: testRecipient,
			Amount:    planner.DefaultMinHopAmount - 1,
			Profile:   mustProfile(t, level),
			Session:   session,
		})
		require.ErrorIs(t, err, domain.ErrAmountTooSmallForRoute)
	}

	_, err := svc.Plan(context.Background(), planner.PlanRequest{
		Sender:    session.SenderAddress(),
		Recipient: testRecipient,
		Amount:    testAmount,
		Profile:   mustProfile(t, domain.PrivacyLevelBasic),
	})
	require.Error(t, err)
}

func TestFailingNewService(t *testing.T) {
	deriver := newTestDeriver(t)
	pathAllocator, err := allocator.NewPathAllocator(inmemory.NewPathIndexRepositoryImpl())
	require.NoError(t, err)
	src := randutil.NewSecureSource()

	_, err = planner.NewService(nil, pathAllocator, src, planner.DefaultConfig())
	require.Error(t, err)
	_, err = planner.NewService(deriver, nil, src, planner.DefaultConfig())
	require.Error(t, err)
	_, err = planner.NewService(deriver, pathAllocator, nil, planner.DefaultConfig())
	require.Error(t, err)

	cfg := planner.DefaultConfig()
	cfg.MinHopAmount = 0
	_, err = planner.NewService(deriver, pathAllocator, src, cfg)
	require.Error(t, err)

	cfg = planner.DefaultConfig()
	cfg.FeeDriftBps = 10001
	_, err = planner.NewService(deriver, pathAllocator, src, cfg)
	require.Error(t, err)
}

func newTestService(
	t *testing.T, src randutil.Source,
) (*planner.Service, *walletsession.Session, domain.PathIndexRepository) {
	deriver := newTestDeriver(t)
	repo := inmemory.NewPathIndexRepositoryImpl()
	pathAllocator, err := allocator.NewPathAllocator(repo)
	require.NoError(t, err)

	svc, err := planner.NewService(deriver, pathAllocator, src, planner.DefaultConfig())
	require.NoError(t, err)

	session, err := walletsession.NewSession(walletsession.NewSessionOpts{
		ID:       "test-session",
		Mnemonic: testMnemonic,
		Deriver:  deriver,
	})
	require.NoError(t, err)
	return svc, session, repo
}

func newTestDeriver(t *testing.T) *stealth.Deriver {
	deriver, err := stealth.NewDeriver(stealth.NewDeriverOpts{Network: &network.Regtest})
	require.NoError(t, err)
	return deriver
}

func mustProfile(t *testing.T, level domain.PrivacyLevel) domain.PrivacyProfile {
	profile, err := domain.ProfileFor(level)
	require.NoError(t, err)
	return profile
}
