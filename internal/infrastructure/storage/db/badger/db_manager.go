package dbbadger

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/dgraph-io/badger/v3/options"
	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/tdex-stealth/internal/core/domain"
	"github.com/tdex-network/tdex-stealth/internal/core/ports"
	"github.com/timshannon/badgerhold/v4"
)

type repoManager struct {
	transferStore  *badgerhold.Store
	pathIndexStore *badgerhold.Store

	transferRepository      domain.TransferRepository
	pathIndexRepository     domain.PathIndexRepository
	strandedFundsRepository domain.StrandedFundsRepository
}

// NewRepoManager opens (or creates if not exists) the badger stores in the
// given base directory, one for the transfers and the stranded funds and one
// for the path index counters. Everything is kept in memory if baseDbDir is
// empty.
func NewRepoManager(baseDbDir string, logger badger.Logger) (ports.RepoManager, error) {
	var transfersDir, indexesDir string
	if len(baseDbDir) > 0 {
		transfersDir = filepath.Join(baseDbDir, "transfers")
		indexesDir = filepath.Join(baseDbDir, "indexes")
	}

	transferStore, err := createDb(transfersDir, logger)
	if err != nil {
		return nil, fmt.Errorf("opening transfers db: %w", err)
	}

	pathIndexStore, err := createDb(indexesDir, logger)
	if err != nil {
		transferStore.Close()
		return nil, fmt.Errorf("opening indexes db: %w", err)
	}

	return &repoManager{
		transferStore:           transferStore,
		pathIndexStore:          pathIndexStore,
		transferRepository:      NewTransferRepositoryImpl(transferStore),
		pathIndexRepository:     NewPathIndexRepositoryImpl(pathIndexStore),
		strandedFundsRepository: NewStrandedFundsRepositoryImpl(transferStore),
	}, nil
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

func (r *repoManager) Close() {
	r.transferStore.Close()
	r.pathIndexStore.Close()
}

func createDb(dbDir string, logger badger.Logger) (*badgerhold.Store, error) {
	isInMemory := len(dbDir) <= 0

	opts := badger.DefaultOptions(dbDir)
	opts.Logger = logger

	if isInMemory {
		opts.InMemory = true
	} else {
		opts.Compression = options.ZSTD
	}

	db, err := badgerhold.Open(badgerhold.Options{
		Encoder:          badgerhold.DefaultEncode,
		Decoder:          badgerhold.DefaultDecode,
		SequenceBandwith: 100,
		Options:          opts,
	})
	if err != nil {
		return nil, err
	}

	if !isInMemory {
		ticker := time.NewTicker(30 * time.Minute)

		go func() {
			for {
				<-ticker.C
				if err := db.Badger().RunValueLogGC(0.5); err != nil &&
					err != badger.ErrNoRewrite {
					log.Error(err)
				}
			}
		}()
	}

	return db, nil
}
