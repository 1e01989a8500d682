package domain

import "context"

// TransferRepository is the abstraction for any kind of database intended to
// persist Transfers.
type TransferRepository interface {
	// AddTransfer stores a new transfer, failing if one with the same id
	// already exists.
	AddTransfer(ctx context.Context, transfer *Transfer) error
	// GetTransfer returns the transfer with the given id.
	GetTransfer(ctx context.Context, id string) (*Transfer, error)
	// GetAllTransfers returns all the stored transfers.
	GetAllTransfers(ctx context.Context) ([]*Transfer, error)
	// GetAllTransfersForSession returns the transfers of the given wallet
	// session.
	GetAllTransfersForSession(ctx context.Context, sessionID string) ([]*Transfer, error)
	// UpdateTransfer allows to commit multiple changes to the same transfer in
	// a transactional way.
	UpdateTransfer(
		ctx context.Context,
		id string,
		updateFn func(t *Transfer) (*Transfer, error),
	) error
	// DeleteTransfer removes the transfer with the given id.
	DeleteTransfer(ctx context.Context, id string) error
}

// PathIndexRepository is the durable per-session counter of the derivation
// indexes already used for stealth addresses.
type PathIndexRepository interface {
	// ReserveIndexes atomically advances the counter of the session by n and
	// returns the first of the reserved indexes.
	ReserveIndexes(ctx context.Context, sessionID string, n uint32) (uint32, error)
	// GetNextIndex returns the next index that would be reserved.
	GetNextIndex(ctx context.Context, sessionID string) (uint32, error)
}

// StrandedFundsRepository persists the funds left behind by partially failed
// transfers for recovery tooling.
type StrandedFundsRepository interface {
	// AddStrandedFunds stores the funds stranded by a partially failed transfer.
	AddStrandedFunds(ctx context.Context, funds StrandedFunds) error
	// GetStrandedFunds returns the stranded funds of the given transfer.
	GetStrandedFunds(ctx context.Context, transferID string) (*StrandedFunds, error)
	// GetAllStrandedFunds returns every stored record of stranded funds.
	GetAllStrandedFunds(ctx context.Context) ([]StrandedFunds, error)
}
