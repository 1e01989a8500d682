package domain

import (
	"errors"
	"fmt"

	"github.com/tdex-network/tdex-stealth/pkg/stealth"
)

// Validation errors. A transfer failing for any of these never leaves the
// Pending status.
var (
	// ErrInvalidPath is returned for malformed or out of range derivation paths.
	ErrInvalidPath = stealth.ErrInvalidPath
	// ErrInvalidSeed is returned if the wallet seed fails the format checks.
	ErrInvalidSeed = stealth.ErrInvalidSeed
	// ErrUnknownPrivacyLevel ...
	ErrUnknownPrivacyLevel = errors.New("unknown privacy level")
	// ErrAmountTooSmallForRoute is returned if the amount cannot be routed
	// even through a single hop.
	ErrAmountTooSmallForRoute = errors.New("amount too small for route")
	// ErrInvalidRequest ...
	ErrInvalidRequest = errors.New("invalid transfer request")
	// ErrInvalidRoute ...
	ErrInvalidRoute = errors.New("invalid route")
	// ErrPathIndexExhausted is returned when a session has no more unused
	// derivation indexes.
	ErrPathIndexExhausted = errors.New("derivation path indexes exhausted")
)

// Submission errors, retried with a fresh bundle up to the retry budget.
var (
	// ErrRelayRejected means the bundle was dropped and nothing was applied.
	ErrRelayRejected = errors.New("bundle rejected by relay")
	// ErrRelayTimeout means the final state of the bundle is unknown.
	ErrRelayTimeout = errors.New("relay timed out")
)

// Fatal errors, never retried.
var (
	// ErrInsufficientFunds ...
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrSignatureFailed ...
	ErrSignatureFailed = errors.New("signature failure")
	// ErrInvalidBundle is returned when the relay refuses the bundle content.
	ErrInvalidBundle = errors.New("invalid bundle")
	// ErrPartialApply means the relay applied only part of a bundle.
	ErrPartialApply = errors.New("bundle partially applied")
)

// Transfer lifecycle errors.
var (
	// ErrTransferNotFound ...
	ErrTransferNotFound = errors.New("transfer not found")
	// ErrTransferAlreadyExists ...
	ErrTransferAlreadyExists = errors.New("transfer already exists")
	// ErrInvalidTransition is returned for any status change not allowed by
	// the transfer state machine.
	ErrInvalidTransition = errors.New("invalid transfer status transition")
	// ErrTransferTerminal ...
	ErrTransferTerminal = errors.New("transfer is in a terminal status")
	// ErrCancelMidSubmission is returned when trying to cancel a transfer
	// while one of its bundles is in flight.
	ErrCancelMidSubmission = errors.New("cannot cancel while a bundle is in flight")
	// ErrTransferCancelled ...
	ErrTransferCancelled = errors.New("transfer cancelled")
	// ErrTransferTimeout is returned if the transfer exceeds its ceiling.
	ErrTransferTimeout = errors.New("transfer timed out")
	// ErrStrandedFundsNotFound ...
	ErrStrandedFundsNotFound = errors.New("stranded funds not found")
)

// IsValidationError returns whether err is a request/planning error.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidPath) ||
		errors.Is(err, ErrInvalidSeed) ||
		errors.Is(err, ErrUnknownPrivacyLevel) ||
		errors.Is(err, ErrAmountTooSmallForRoute) ||
		errors.Is(err, ErrInvalidRequest)
}

// IsRetryable returns whether a submission failing with err can be retried
// with a fresh bundle.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRelayRejected) || errors.Is(err, ErrRelayTimeout)
}

// IsFatal returns whether err must abort the transfer immediately.
func IsFatal(err error) bool {
	return errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrSignatureFailed) ||
		errors.Is(err, ErrInvalidBundle) ||
		errors.Is(err, ErrPartialApply)
}

// HopError carries the context of a failed hop submission.
type HopError struct {
	HopIndex int
	Address  string
	Attempts int
	Err      error
}

func (e *HopError) Error() string {
	return fmt.Sprintf(
		"hop %d from %s failed after %d attempt(s): %s",
		e.HopIndex, e.Address, e.Attempts, e.Err,
	)
}

func (e *HopError) Unwrap() error {
	return e.Err
}
