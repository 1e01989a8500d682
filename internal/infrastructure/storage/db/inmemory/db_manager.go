package inmemory

import (
	"github.com/tdex-network/tdex-stealth/internal/core/domain"
	"github.com/tdex-network/tdex-stealth/internal/core/ports"
)

type repoManager struct {
	transferRepository      domain.TransferRepository
	pathIndexRepository     domain.PathIndexRepository
	strandedFundsRepository domain.StrandedFundsRepository
}

// NewRepoManager returns a RepoManager keeping everything in memory.
func NewRepoManager() ports.RepoManager {
	return &repoManager{
		transferRepository:      NewTransferRepositoryImpl(),
		pathIndexRepository:     NewPathIndexRepositoryImpl(),
		strandedFundsRepository: NewStrandedFundsRepositoryImpl(),
	}
}

func (r *repoManager) TransferRepository() domain.TransferRepository {
	return r.transferRepository
}

func (r *repoManager) PathIndexRepository() domain.PathIndexRepository {
	return r.pathIndexRepository
}

func (r *repoManager) StrandedFundsRepository() domain.StrandedFundsRepository {
	return r.strandedFundsRepository
}

func (r *repoManager) Close() {}
