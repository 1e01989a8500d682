package transfer

import (
	"context"
	"sync"

	"github.com/tdex-network/tdex-stealth/internal/core/domain"
	"github.com/tdex-network/tdex-stealth/internal/core/ports"
)

// run is the execution of a transfer. The transfer is owned by the goroutine
// executing it, other goroutines only interact through the methods below.
type run struct {
	transfer *domain.Transfer
	session  ports.WalletSession
	done     chan struct{}

	lock            *sync.Mutex
	cancel          context.CancelCauseFunc
	inFlight        bool
	cancelRequested bool
}

func newRun(
	t *domain.Transfer, session ports.WalletSession, cancel context.CancelCauseFunc,
) *run {
	return &run{
		transfer: t,
		session:  session,
		done:     make(chan struct{}),
		lock:     &sync.Mutex{},
		cancel:   cancel,
	}
}

// beginSubmission is the suspension point before every bundle submission: it
// returns the reason why the transfer must stop, if any, or marks a bundle as
// in flight.
func (r *run) beginSubmission(ctx context.Context) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if err := context.Cause(ctx); err != nil {
		return err
	}
	r.inFlight = true
	return nil
}

func (r *run) endSubmission() {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.inFlight = false
}

// requestCancel stops the run at the next suspension point and returns whether
// a bundle is in flight, meaning the cancellation is deferred until it
// settles.
func (r *run) requestCancel() bool {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.cancelRequested = true
	r.cancel(domain.ErrTransferCancelled)
	return r.inFlight
}

func (r *run) isCancelRequested() bool {
	r.lock.Lock()
	defer r.lock.Unlock()

	return r.cancelRequested
}
