package domain_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tdex-network/tdex-stealth/internal/core/domain"
)

const (
	testSender    = "el1qqsender"
	testRecipient = "el1qqrecipient"
	testAmount    = uint64(10000000)
	testHopFee    = uint64(500)
)

func TestRouteValidate(t *testing.T) {
	t.Run("direct", func(t *testing.T) {
		route := newTestRoute(1)
		require.NoError(t, route.Validate(0))
		require.Equal(t, testAmount, route.Delivered())
		require.Zero(t, route.IntermediateFees())
		require.Equal(t, testHopFee, route.TotalFees())
	})

	t.Run("multi_hop", func(t *testing.T) {
		route := newTestRoute(4)
		maxDrift := testAmount / 100
		require.NoError(t, route.Validate(maxDrift))
		require.Equal(t, testAmount-3*testHopFee, route.Delivered())
		require.Equal(t, testAmount, route.Delivered()+route.IntermediateFees())
		require.Equal(t, 4*testHopFee, route.TotalFees())
	})
}

func TestFailingRouteValidate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(r *domain.Route)
		maxDrift    uint64
		expectedErr error
	}{
		{
			name:        "no_hops",
			mutate:      func(r *domain.Route) { r.Hops = nil },
			maxDrift:    testAmount,
			expectedErr: domain.ErrInvalidRoute,
		},
		{
			name:        "wrong_recipient",
			mutate:      func(r *domain.Route) { r.Hops[2].To = "el1qqother" },
			maxDrift:    testAmount,
			expectedErr: domain.ErrInvalidRoute,
		},
		{
			name:        "disconnected",
			mutate:      func(r *domain.Route) { r.Hops[1].From = "el1qqother" },
			maxDrift:    testAmount,
			expectedErr: domain.ErrInvalidRoute,
		},
		{
			name: "address_reused",
			mutate: func(r *domain.Route) {
				r.Hops[1].To = r.Hops[0].To
				r.Hops[2].From = r.Hops[0].To
			},
			maxDrift:    testAmount,
			expectedErr: domain.ErrInvalidRoute,
		},
		{
			name:        "zero_value_hop",
			mutate:      func(r *domain.Route) { r.Hops[2].Amount = 0 },
			maxDrift:    testAmount,
			expectedErr: domain.ErrInvalidRoute,
		},
		{
			name:        "value_not_forwarded",
			mutate:      func(r *domain.Route) { r.Hops[1].Amount -= 1 },
			maxDrift:    testAmount,
			expectedErr: domain.ErrInvalidRoute,
		},
		{
			name:        "excessive_drift",
			mutate:      func(r *domain.Route) {},
			maxDrift:    testHopFee,
			expectedErr: domain.ErrAmountTooSmallForRoute,
		},
	}

	for i := range tests {
		tt := tests[i]
		t.Run(tt.name, func(t *testing.T) {
			route := newTestRoute(3)
			tt.mutate(route)
			err := route.Validate(tt.maxDrift)
			require.ErrorIs(t, err, tt.expectedErr)
		})
	}
}

func newTestRoute(numOfHops int) *domain.Route {
	route := &domain.Route{
		Sender:    testSender,
		Recipient: testRecipient,
		Amount:    testAmount,
		HopFee:    testHopFee,
	}
	from, fromPath := testSender, ""
	amount := testAmount
	for i := 0; i < numOfHops; i++ {
		to := testRecipient
		isFinal := i == numOfHops-1
		if !isFinal {
			to = randomAddress()
			route.Intermediates = append(route.Intermediates, domain.StealthAddress{
				Address:        to,
				DerivationPath: fmt.Sprintf("0'/0/%d", i),
				CreatedAtIndex: uint32(i),
			})
		}
		route.Hops = append(route.Hops, domain.Hop{
			Index:    i,
			From:     from,
			FromPath: fromPath,
			To:       to,
			Amount:   amount,
			Fee:      testHopFee,
			IsFinal:  isFinal,
		})
		from = to
		fromPath = fmt.Sprintf("0'/0/%d", i)
		amount -= testHopFee
	}
	return route
}
