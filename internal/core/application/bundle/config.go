package bundle

import (
	"fmt"
	"time"
)

const (
	DefaultMaxAttempts    = 4
	DefaultBaseBackoff    = 500 * time.Millisecond
	DefaultMaxBackoff     = 8 * time.Second
	DefaultSubmitTimeout  = 10 * time.Second
	DefaultConfirmTimeout = 60 * time.Second
	DefaultPollInterval   = time.Second
)

// Config holds the retry and timeout policy of the submitter.
type Config struct {
	// MaxAttempts is the max number of bundles submitted for the same hops.
	MaxAttempts int
	// BaseBackoff is the wait before the first retry, doubled at every next
	// one up to MaxBackoff.
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	// SubmitTimeout bounds every single submission call to the relay.
	SubmitTimeout time.Duration
	// ConfirmTimeout bounds the polling of the status of a bundle.
	ConfirmTimeout time.Duration
	PollInterval   time.Duration
}

// DefaultConfig ...
func DefaultConfig() Config {
	return Config{
		MaxAttempts:    DefaultMaxAttempts,
		BaseBackoff:    DefaultBaseBackoff,
		MaxBackoff:     DefaultMaxBackoff,
		SubmitTimeout:  DefaultSubmitTimeout,
		ConfirmTimeout: DefaultConfirmTimeout,
		PollInterval:   DefaultPollInterval,
	}
}

func (c Config) validate() error {
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("max attempts must be greater than zero")
	}
	if c.BaseBackoff < 0 || c.MaxBackoff < c.BaseBackoff {
		return fmt.Errorf("backoff must be in range [0, max backoff]")
	}
	if c.SubmitTimeout <= 0 {
		return fmt.Errorf("submit timeout must be greater than zero")
	}
	if c.ConfirmTimeout <= 0 {
		return fmt.Errorf("confirm timeout must be greater than zero")
	}
	if c.PollInterval <= 0 || c.PollInterval > c.ConfirmTimeout {
		return fmt.Errorf("poll interval must be in range (0, confirm timeout]")
	}
	return nil
}

func (c Config) backoff(attempt int) time.Duration {
	d := c.BaseBackoff
	for i := 1; i < attempt-1; i++ {
		d *= 2
		if d >= c.MaxBackoff {
			return c.MaxBackoff
		}
	}
	return d
}
