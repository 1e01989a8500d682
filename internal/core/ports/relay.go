package ports

import "context"

// Relay is the private relay of the ledger the engine submits bundles to.
// Its implementations map their failures to the domain errors:
// ErrRelayRejected when the bundle was dropped without being applied,
// ErrRelayTimeout when its final state is unknown, ErrInsufficientFunds,
// ErrSignatureFailed and ErrInvalidBundle when the content is refused.
// Any other error is regarded as a timeout.
type Relay interface {
	// SubmitBundle sends the bundle to the relay.
	SubmitBundle(ctx context.Context, bundle Bundle) (*SubmitResponse, error)
	// GetBundleStatus returns the confirmation status of a submitted bundle.
	GetBundleStatus(ctx context.Context, bundleID string) (*BundleStatus, error)
	// GetBalance returns the confirmed balance of the given address.
	GetBalance(ctx context.Context, address string) (uint64, error)
}
