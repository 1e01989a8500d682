package transfer

import (
	"context"
	"fmt"
	"time"
)

const (
	// DefaultTransferTimeout is the ceiling to the whole execution of a
	// transfer, inter-hop delays included.
	DefaultTransferTimeout = 15 * time.Minute
	// DefaultBalanceTimeout bounds the queries to the relay about the bundles
	// and stranded funds of a stopped transfer.
	DefaultBalanceTimeout = 10 * time.Second
)

// SleepFunc suspends a transfer between hops. It must return early if ctx is
// done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Config ...
type Config struct {
	// TransferTimeout is the max duration of a transfer, 0 means no limit.
	TransferTimeout time.Duration
	BalanceTimeout  time.Duration
	// Sleep defaults to scheduler.Wait.
	Sleep SleepFunc
}

// DefaultConfig ...
func DefaultConfig() Config {
	return Config{
		TransferTimeout: DefaultTransferTimeout,
		BalanceTimeout:  DefaultBalanceTimeout,
	}
}

func (c Config) validate() error {
	if c.TransferTimeout < 0 {
		return fmt.Errorf("transfer timeout must not be negative")
	}
	if c.BalanceTimeout <= 0 {
		return fmt.Errorf("balance timeout must be greater than zero")
	}
	return nil
}
