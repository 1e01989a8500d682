package ports

import "context"

// WalletSession is the unlocked session of the wallet layer on behalf of which
// transfers are made. The seed is supplied only for the duration of a
// derivation and must never be retained by the caller.
type WalletSession interface {
	// ID identifies the session. Derivation indexes are allocated per session.
	ID() string
	// Account is the hardened account under which stealth addresses are
	// derived.
	Account() uint32
	// Seed returns the master seed of the wallet.
	Seed(ctx context.Context) ([]byte, error)
	// SenderAddress returns the address the session spends funds from.
	SenderAddress() string
	// SignAsSender signs the given digest with the key of the sender address
	// and returns the public key and the DER signature.
	SignAsSender(ctx context.Context, digest []byte) ([]byte, []byte, error)
}
