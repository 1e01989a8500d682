// Package walletsession implements the wallet session of the engine on top of
// a BIP39 mnemonic held in memory.
package walletsession

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/tdex-network/tdex-stealth/internal/core/ports"
	"github.com/tdex-network/tdex-stealth/pkg/stealth"
)

var _ ports.WalletSession = (*Session)(nil)

var (
	// ErrLocked ...
	ErrLocked = errors.New("wallet session is locked")
	// ErrNullDeriver ...
	ErrNullDeriver = errors.New("deriver must not be null")
)

// NewSessionOpts is the struct given to the NewSession method. ID defaults to
// a random uuid. Sessions with the same ID share the same path index counter,
// so make sure to reuse it across restarts.
type NewSessionOpts struct {
	ID       string
	Mnemonic string
	Account  uint32
	Deriver  *stealth.Deriver
}

func (o NewSessionOpts) validate() error {
	if o.Deriver == nil {
		return ErrNullDeriver
	}
	if o.Account > stealth.MaxHardenedValue {
		return stealth.ErrOutOfRangeAccount
	}
	return nil
}

// Session is a ports.WalletSession backed by an in-memory seed.
type Session struct {
	id            string
	account       uint32
	deriver       *stealth.Deriver
	senderAddress string

	lock *sync.RWMutex
	seed []byte
}

// NewSession returns an unlocked session spending from the first key of the
// spending branch of the given account.
func NewSession(opts NewSessionOpts) (*Session, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	seed, err := stealth.SeedFromMnemonic(opts.Mnemonic)
	if err != nil {
		return nil, err
	}

	id := opts.ID
	if id == "" {
		id = uuid.New().String()
	}

	s := &Session{
		id:      id,
		account: opts.Account,
		deriver: opts.Deriver,
		lock:    &sync.RWMutex{},
		seed:    seed,
	}

	key, err := s.senderKey(seed)
	if err != nil {
		return nil, err
	}
	defer key.Zero()
	s.senderAddress = key.Address

	return s, nil
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) Account() uint32 {
	return s.account
}

func (s *Session) SenderAddress() string {
	return s.senderAddress
}

// Seed returns a copy of the seed.
func (s *Session) Seed(ctx context.Context) ([]byte, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	if s.seed == nil {
		return nil, ErrLocked
	}
	return append([]byte{}, s.seed...), nil
}

func (s *Session) SignAsSender(
	ctx context.Context, digest []byte,
) ([]byte, []byte, error) {
	seed, err := s.Seed(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer zero(seed)

	key, err := s.senderKey(seed)
	if err != nil {
		return nil, nil, err
	}
	defer key.Zero()

	sig, err := key.Sign(digest)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to sign as sender: %w", err)
	}
	return key.PublicKey(), sig, nil
}

// Lock wipes the seed from memory. Any later call requiring it fails with
// ErrLocked.
func (s *Session) Lock() {
	s.lock.Lock()
	defer s.lock.Unlock()

	zero(s.seed)
	s.seed = nil
}

// IsLocked ...
func (s *Session) IsLocked() bool {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return s.seed == nil
}

func (s *Session) senderKey(seed []byte) (*stealth.Key, error) {
	path, err := stealth.NewSpendingPath(s.account, 0)
	if err != nil {
		return nil, err
	}
	return s.deriver.Derive(seed, path)
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
