package bundle_test

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/tdex-network/tdex-stealth/internal/core/ports"
)

// **** Relay ****

type mockRelay struct {
	mock.Mock
}

func (m *mockRelay) SubmitBundle(
	ctx context.Context, bundle ports.Bundle,
) (*ports.SubmitResponse, error) {
	args := m.Called(ctx, bundle)

	var res *ports.SubmitResponse
	switch a := args.Get(0).(type) {
	case *ports.SubmitResponse:
		res = a
	case func(context.Context, ports.Bundle) *ports.SubmitResponse:
		res = a(ctx, bundle)
	}
	return res, args.Error(1)
}

func (m *mockRelay) GetBundleStatus(
	ctx context.Context, bundleID string,
) (*ports.BundleStatus, error) {
	args := m.Called(ctx, bundleID)

	var res *ports.BundleStatus
	switch a := args.Get(0).(type) {
	case *ports.BundleStatus:
		res = a
	case func(context.Context, string) *ports.BundleStatus:
		res = a(ctx, bundleID)
	}
	return res, args.Error(1)
}

func (m *mockRelay) GetBalance(ctx context.Context, addr string) (uint64, error) {
	args := m.Called(ctx, addr)

	var res uint64
	if a := args.Get(0); a != nil {
		res = a.(uint64)
	}
	return res, args.Error(1)
}
