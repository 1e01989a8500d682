package ports

import "github.com/tdex-network/tdex-stealth/internal/core/domain"

// RepoManager interface defines the methods to access the repositories of the
// engine.
type RepoManager interface {
	TransferRepository() domain.TransferRepository
	PathIndexRepository() domain.PathIndexRepository
	StrandedFundsRepository() domain.StrandedFundsRepository

	Close()
}
