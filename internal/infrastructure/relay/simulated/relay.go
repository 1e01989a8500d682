// Package simulatedrelay is an in-process ledger with a private relay in
// front of it. It verifies and applies bundles atomically and allows to
// inject faults, for local runs and tests.
package simulatedrelay

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/tdex-network/tdex-stealth/internal/core/domain"
	"github.com/tdex-network/tdex-stealth/internal/core/ports"
	"github.com/tdex-network/tdex-stealth/pkg/mathutil"
	"github.com/tdex-network/tdex-stealth/pkg/stealth"
	"github.com/vulpemventures/go-elements/network"
	"github.com/vulpemventures/go-elements/payment"
)

// Fault is a failure the relay can be instructed to simulate.
type Fault int

const (
	// FaultReject drops the bundle at submission.
	FaultReject Fault = iota
	// FaultTimeoutLanded makes the submission time out although the bundle
	// gets applied.
	FaultTimeoutLanded
	// FaultTimeoutLost makes the submission time out and the bundle never
	// reach the relay.
	FaultTimeoutLost
	// FaultDrop accepts the bundle and then drops it without applying it.
	FaultDrop
	// FaultPartial accepts the bundle and applies only its first operation.
	FaultPartial
	// FaultStuck accepts the bundle that then stays pending forever.
	FaultStuck
)

type fault struct {
	hopIndex int
	fault    Fault
	times    int
}

type bundleState struct {
	bundle  ports.Bundle
	status  domain.ConfirmationStatus
	landAt  time.Time
	applied int
}

// Options ...
type Options struct {
	// Network is used to check that operation keys own the From address.
	Network *network.Network
	// LandingDelay is the time an accepted bundle takes to land.
	LandingDelay time.Duration
	// Balances are the initial balances of the ledger.
	Balances map[string]uint64
}

// Relay is a ports.Relay backed by an in-memory ledger.
type Relay struct {
	network      *network.Network
	landingDelay time.Duration

	lock      *sync.Mutex
	balances  map[string]uint64
	bundles   map[string]*bundleState
	submitted []ports.Bundle
	faults    []*fault
}

// NewRelay returns a new simulated relay.
func NewRelay(opts Options) (*Relay, error) {
	if opts.Network == nil {
		return nil, fmt.Errorf("missing network")
	}
	if opts.LandingDelay < 0 {
		return nil, fmt.Errorf("landing delay must not be negative")
	}
	balances := make(map[string]uint64)
	for addr, amount := range opts.Balances {
		balances[addr] = amount
	}
	return &Relay{
		network:      opts.Network,
		landingDelay: opts.LandingDelay,
		lock:         &sync.Mutex{},
		balances:     balances,
		bundles:      make(map[string]*bundleState),
	}, nil
}

// Fund credits the given address.
func (r *Relay) Fund(addr string, amount uint64) {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.balances[addr] += amount
}

// InjectFault makes the next n bundles including the given hop fail with the
// given fault. A negative n makes them fail forever.
func (r *Relay) InjectFault(hopIndex int, f Fault, n int) {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.faults = append(r.faults, &fault{hopIndex, f, n})
}

// Submitted returns the bundles received so far, in order.
func (r *Relay) Submitted() []ports.Bundle {
	r.lock.Lock()
	defer r.lock.Unlock()

	return append([]ports.Bundle{}, r.submitted...)
}

func (r *Relay) SubmitBundle(
	ctx context.Context, bundle ports.Bundle,
) (*ports.SubmitResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrRelayTimeout, err)
	}

	r.lock.Lock()
	defer r.lock.Unlock()

	r.settle()

	if len(bundle.Operations) <= 0 {
		return nil, fmt.Errorf("%w: bundle has no operations", domain.ErrInvalidBundle)
	}
	if _, ok := r.bundles[bundle.ID]; ok {
		return nil, fmt.Errorf("%w: duplicated bundle %s", domain.ErrInvalidBundle, bundle.ID)
	}

	f := r.popFault(bundle)
	if f != nil && *f == FaultTimeoutLost {
		return nil, fmt.Errorf("%w: no answer from relay", domain.ErrRelayTimeout)
	}

	r.submitted = append(r.submitted, bundle)

	if f != nil && *f == FaultReject {
		return &ports.SubmitResponse{
			BundleID: bundle.ID,
			Response: domain.RelayResponseRejected,
			Reason:   "bundle not included",
		}, nil
	}

	for _, op := range bundle.Operations {
		if err := r.verifyOperation(bundle.ID, op); err != nil {
			return nil, err
		}
	}
	if err := r.checkBalances(bundle.Operations); err != nil {
		return nil, err
	}

	state := &bundleState{
		bundle: bundle,
		status: domain.ConfirmationPending,
		landAt: time.Now().Add(r.landingDelay),
	}
	r.bundles[bundle.ID] = state

	if f != nil {
		switch *f {
		case FaultDrop:
			state.status = domain.ConfirmationDropped
		case FaultPartial:
			r.apply(bundle.Operations[:1])
			state.applied = 1
			state.status = domain.ConfirmationPartial
		case FaultStuck:
			state.landAt = time.Time{}
		case FaultTimeoutLanded:
			r.land(state)
			return nil, fmt.Errorf("%w: no answer from relay", domain.ErrRelayTimeout)
		}
	}

	r.settle()

	return &ports.SubmitResponse{
		BundleID: bundle.ID,
		Response: domain.RelayResponseAccepted,
	}, nil
}

func (r *Relay) GetBundleStatus(
	_ context.Context, bundleID string,
) (*ports.BundleStatus, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.settle()

	state, ok := r.bundles[bundleID]
	if !ok {
		return &ports.BundleStatus{
			BundleID: bundleID,
			Status:   domain.ConfirmationUnknown,
		}, nil
	}
	return &ports.BundleStatus{
		BundleID:          bundleID,
		Status:            state.status,
		AppliedOperations: state.applied,
	}, nil
}

func (r *Relay) GetBalance(_ context.Context, addr string) (uint64, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.settle()

	return r.balances[addr], nil
}

// settle lands the pending bundles whose landing time has come. Balances are
// checked again at landing, a bundle that cannot be applied as a whole fails.
func (r *Relay) settle() {
	now := time.Now()
	for _, state := range r.bundles {
		if state.status != domain.ConfirmationPending || state.landAt.IsZero() {
			continue
		}
		if now.Before(state.landAt) {
			continue
		}
		r.land(state)
	}
}

func (r *Relay) land(state *bundleState) {
	if err := r.checkBalances(state.bundle.Operations); err != nil {
		state.status = domain.ConfirmationFailed
		return
	}
	r.apply(state.bundle.Operations)
	state.applied = len(state.bundle.Operations)
	state.status = domain.ConfirmationLanded
}

// checkBalances simulates the operations in order, so that an operation can
// spend what a previous one of the same bundle credited.
func (r *Relay) checkBalances(ops []ports.Operation) error {
	balances := make(map[string]uint64)
	for _, op := range ops {
		if _, ok := balances[op.From]; !ok {
			balances[op.From] = r.balances[op.From]
		}
		if _, ok := balances[op.To]; !ok {
			balances[op.To] = r.balances[op.To]
		}
		spent, overflow := mathutil.Add(op.Amount, op.Fee)
		if overflow {
			return fmt.Errorf(
				"%w: amount and fee of operation %d overflow", domain.ErrInvalidBundle,
				op.HopIndex,
			)
		}
		if balances[op.From] < spent {
			return fmt.Errorf(
				"%w: address %s has %d, operation %d requires %d",
				domain.ErrInsufficientFunds, op.From, balances[op.From],
				op.HopIndex, spent,
			)
		}
		balances[op.From] -= spent
		credited, overflow := mathutil.Add(balances[op.To], op.Amount)
		if overflow {
			return fmt.Errorf(
				"%w: operation %d overflows the balance of %s", domain.ErrInvalidBundle,
				op.HopIndex, op.To,
			)
		}
		balances[op.To] = credited
	}
	return nil
}

func (r *Relay) apply(ops []ports.Operation) {
	for _, op := range ops {
		r.balances[op.From] -= op.Amount + op.Fee
		r.balances[op.To] += op.Amount
	}
}

func (r *Relay) verifyOperation(bundleID string, op ports.Operation) error {
	if op.Amount == 0 {
		return fmt.Errorf("%w: operation %d moves zero value", domain.ErrInvalidBundle, op.HopIndex)
	}
	pubkey, err := btcec.ParsePubKey(op.PublicKey)
	if err != nil {
		return fmt.Errorf("%w: invalid public key: %s", domain.ErrSignatureFailed, err)
	}
	addr, err := payment.FromPublicKey(pubkey, r.network, nil).WitnessPubKeyHash()
	if err != nil || addr != op.From {
		return fmt.Errorf(
			"%w: key of operation %d does not own %s",
			domain.ErrSignatureFailed, op.HopIndex, op.From,
		)
	}
	if !stealth.VerifySignature(op.PublicKey, op.Digest(bundleID), op.Signature) {
		return fmt.Errorf(
			"%w: invalid signature for operation %d", domain.ErrSignatureFailed, op.HopIndex,
		)
	}
	return nil
}

func (r *Relay) popFault(bundle ports.Bundle) *Fault {
	for i, f := range r.faults {
		if !includesHop(bundle, f.hopIndex) {
			continue
		}
		kind := f.fault
		if f.times > 0 {
			f.times--
			if f.times == 0 {
				r.faults = append(r.faults[:i], r.faults[i+1:]...)
			}
		}
		return &kind
	}
	return nil
}

func includesHop(bundle ports.Bundle, hopIndex int) bool {
	for _, op := range bundle.Operations {
		if op.HopIndex == hopIndex {
			return true
		}
	}
	return false
}
