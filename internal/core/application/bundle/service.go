// Package bundle submits the hops of a route to the private relay as atomic
// bundles, retrying with fresh bundles when it's safe to.
package bundle

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/tdex-stealth/internal/core/application/scheduler"
	"github.com/tdex-network/tdex-stealth/internal/core/domain"
	"github.com/tdex-network/tdex-stealth/internal/core/ports"
	"github.com/tdex-network/tdex-stealth/pkg/stealth"
	"github.com/thanhpk/randstr"
)

// SubmissionResult is the outcome of Service.Submit.
type SubmissionResult struct {
	// BundleID is the id of the landed bundle, if any.
	BundleID    string
	HopIndexes  []int
	Submissions []domain.BundleSubmission
}

// Attempts ...
func (r *SubmissionResult) Attempts() int {
	return len(r.Submissions)
}

// Service is the bundle submitter.
type Service struct {
	deriver *stealth.Deriver
	cfg     Config
}

// NewService returns a new submitter signing operations of intermediate hops
// with keys derived by the given deriver.
func NewService(deriver *stealth.Deriver, cfg Config) (*Service, error) {
	if deriver == nil {
		return nil, fmt.Errorf("missing stealth address deriver")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Service{deriver, cfg}, nil
}

// Config ...
func (s *Service) Config() Config {
	return s.cfg
}

// Group splits the hops of a route into the bundles to submit in sequence.
// Without mixing every hop goes into one atomic bundle, otherwise every hop
// is a bundle on its own so that delays between hops are observable on-chain.
func Group(profile domain.PrivacyProfile, hops []domain.Hop) [][]domain.Hop {
	if len(hops) <= 0 {
		return nil
	}
	if profile.BatchesHops() {
		return [][]domain.Hop{append([]domain.Hop{}, hops...)}
	}
	groups := make([][]domain.Hop, 0, len(hops))
	for _, hop := range hops {
		groups = append(groups, []domain.Hop{hop})
	}
	return groups
}

// SubmitOption customizes a single call to Service.Submit.
type SubmitOption func(a *attempter)

// WithBeforeSend registers fn to be called with the record of every bundle
// right before it's sent to the relay, so that callers can persist the ids of
// bundles that might land.
func WithBeforeSend(fn func(submission domain.BundleSubmission)) SubmitOption {
	return func(a *attempter) {
		a.beforeSend = fn
	}
}

// Submit sends the given hops to the relay as a single atomic bundle and
// waits for it to land. Rejected bundles and bundles in unknown state are
// retried with a fresh bundle, up to MaxAttempts, with exponential backoff.
// Partial application, missing funds and invalid content abort immediately.
//
// Submission is detached from ctx cancellation: once the first bundle is on
// its way, Submit returns only with a definite outcome or with the retry
// budget exhausted. Every error returned is a *domain.HopError.
func (s *Service) Submit(
	ctx context.Context,
	relay ports.Relay,
	session ports.WalletSession,
	hops []domain.Hop,
	opts ...SubmitOption,
) (*SubmissionResult, error) {
	if len(hops) <= 0 {
		return nil, fmt.Errorf("%w: no hops to submit", domain.ErrInvalidBundle)
	}
	if relay == nil || session == nil {
		return nil, fmt.Errorf("missing relay or wallet session")
	}

	ctx = context.WithoutCancel(ctx)
	a := &attempter{
		svc:     s,
		relay:   relay,
		session: session,
		hops:    hops,
		result: &SubmissionResult{
			HopIndexes: hopIndexes(hops),
		},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a.run(ctx)
}

type attempter struct {
	svc     *Service
	relay   ports.Relay
	session ports.WalletSession
	hops    []domain.Hop
	result  *SubmissionResult

	beforeSend func(submission domain.BundleSubmission)

	// ids of the bundles whose final state is still unknown
	inFlight []string
}

func (a *attempter) run(ctx context.Context) (*SubmissionResult, error) {
	cfg := a.svc.cfg
	logger := log.WithField("hops", a.result.HopIndexes)

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			// A bundle that timed out may have landed in the meanwhile.
			done, err := a.checkInFlight(ctx)
			if err != nil {
				return a.result, a.hopError(err)
			}
			if done {
				return a.result, nil
			}

			backoff := cfg.backoff(attempt)
			logger.WithError(lastErr).Debugf(
				"bundle: retrying in %s (attempt %d/%d)", backoff, attempt, cfg.MaxAttempts,
			)
			_ = scheduler.Wait(ctx, backoff)
		}

		submission, err := a.attempt(ctx, attempt)
		a.result.Submissions = append(a.result.Submissions, submission)
		if err == nil {
			a.result.BundleID = submission.BundleID
			logger.WithField("bundle", submission.BundleID).Debugf(
				"bundle: landed at attempt %d", attempt,
			)
			return a.result, nil
		}
		if !domain.IsRetryable(err) {
			logger.WithError(err).Warn("bundle: submission aborted")
			return a.result, a.hopError(err)
		}
		lastErr = err
	}

	done, err := a.checkInFlight(ctx)
	if err != nil {
		return a.result, a.hopError(err)
	}
	if done {
		return a.result, nil
	}

	logger.WithError(lastErr).Warnf(
		"bundle: giving up after %d attempts", cfg.MaxAttempts,
	)
	return a.result, a.hopError(lastErr)
}

// attempt builds, submits and confirms a fresh bundle.
func (a *attempter) attempt(
	ctx context.Context, attempt int,
) (domain.BundleSubmission, error) {
	bundle, err := a.svc.buildBundle(ctx, a.session, a.hops)
	if err != nil {
		submission := domain.NewBundleSubmission("", a.result.HopIndexes, attempt)
		submission.ConfirmationStatus = domain.ConfirmationFailed
		submission.Error = err.Error()
		return submission, err
	}

	submission := domain.NewBundleSubmission(bundle.ID, a.result.HopIndexes, attempt)
	if a.beforeSend != nil {
		a.beforeSend(submission)
	}

	submitErr := a.submit(ctx, *bundle)
	switch {
	case submitErr == nil:
		submission.RelayResponse = domain.RelayResponseAccepted
	case errors.Is(submitErr, domain.ErrRelayRejected):
		submission.RelayResponse = domain.RelayResponseRejected
		submission.ConfirmationStatus = domain.ConfirmationDropped
		submission.Error = submitErr.Error()
		return submission, submitErr
	case errors.Is(submitErr, domain.ErrRelayTimeout):
		submission.RelayResponse = domain.RelayResponseTimeout
	default:
		submission.RelayResponse = domain.RelayResponseError
		if errors.Is(submitErr, domain.ErrPartialApply) {
			submission.RelayResponse = domain.RelayResponsePartial
			submission.ConfirmationStatus = domain.ConfirmationPartial
		} else {
			submission.ConfirmationStatus = domain.ConfirmationFailed
		}
		submission.Error = submitErr.Error()
		return submission, submitErr
	}

	// Either accepted or in unknown state: the bundle may have applied, its
	// status must be polled before doing anything else.
	status := a.waitConfirmation(ctx, bundle.ID)
	submission.ConfirmationStatus = status

	switch status {
	case domain.ConfirmationLanded:
		return submission, nil
	case domain.ConfirmationPartial:
		err = domain.ErrPartialApply
	case domain.ConfirmationFailed, domain.ConfirmationDropped:
		err = fmt.Errorf("%w: bundle %s %s", domain.ErrRelayRejected, bundle.ID, status)
	default:
		a.inFlight = append(a.inFlight, bundle.ID)
		err = fmt.Errorf(
			"%w: bundle %s still %s after %s",
			domain.ErrRelayTimeout, bundle.ID, status, a.svc.cfg.ConfirmTimeout,
		)
	}
	submission.Error = err.Error()
	return submission, err
}

// submit sends the bundle to the relay and maps its verdict to an error.
// Errors unknown to the domain are regarded as timeouts since the bundle
// might have reached the relay anyway.
func (a *attempter) submit(ctx context.Context, bundle ports.Bundle) error {
	ctx, cancel := context.WithTimeout(ctx, a.svc.cfg.SubmitTimeout)
	defer cancel()

	resp, err := a.relay.SubmitBundle(ctx, bundle)
	if err != nil {
		if domain.IsRetryable(err) || domain.IsFatal(err) {
			return err
		}
		return fmt.Errorf("%w: %s", domain.ErrRelayTimeout, err)
	}
	if resp == nil {
		return fmt.Errorf("%w: empty relay response", domain.ErrRelayTimeout)
	}

	switch resp.Response {
	case domain.RelayResponseAccepted:
		return nil
	case domain.RelayResponseRejected:
		return fmt.Errorf("%w: %s", domain.ErrRelayRejected, resp.Reason)
	case domain.RelayResponsePartial:
		return fmt.Errorf("%w: %s", domain.ErrPartialApply, resp.Reason)
	case domain.RelayResponseError:
		return fmt.Errorf("%w: %s", domain.ErrInvalidBundle, resp.Reason)
	default:
		return fmt.Errorf("%w: %s", domain.ErrRelayTimeout, resp.Reason)
	}
}

// waitConfirmation polls the status of the bundle until it's final or
// ConfirmTimeout expires.
func (a *attempter) waitConfirmation(
	ctx context.Context, bundleID string,
) domain.ConfirmationStatus {
	cfg := a.svc.cfg
	ctx, cancel := context.WithTimeout(ctx, cfg.ConfirmTimeout)
	defer cancel()

	status := domain.ConfirmationUnknown
	ticker := time.NewTicker(cfg.PollInterval)
	defer ticker.Stop()

	for {
		if s, ok := a.getStatus(ctx, bundleID); ok {
			status = s
			if status.IsFinal() {
				return status
			}
		}

		select {
		case <-ctx.Done():
			return status
		case <-ticker.C:
		}
	}
}

// checkInFlight polls once the bundles of previous attempts whose outcome is
// unknown. It returns true if one of them landed.
func (a *attempter) checkInFlight(ctx context.Context) (bool, error) {
	pending := make([]string, 0, len(a.inFlight))
	for _, bundleID := range a.inFlight {
		status, ok := a.getStatus(ctx, bundleID)
		if !ok {
			pending = append(pending, bundleID)
			continue
		}

		switch status {
		case domain.ConfirmationLanded:
			a.markSubmission(bundleID, status)
			a.result.BundleID = bundleID
			a.inFlight = nil
			return true, nil
		case domain.ConfirmationPartial:
			a.markSubmission(bundleID, status)
			return false, fmt.Errorf("%w: bundle %s", domain.ErrPartialApply, bundleID)
		case domain.ConfirmationFailed, domain.ConfirmationDropped:
			a.markSubmission(bundleID, status)
		default:
			pending = append(pending, bundleID)
		}
	}
	a.inFlight = pending
	return false, nil
}

func (a *attempter) getStatus(
	ctx context.Context, bundleID string,
) (domain.ConfirmationStatus, bool) {
	ctx, cancel := context.WithTimeout(ctx, a.svc.cfg.SubmitTimeout)
	defer cancel()

	status, err := a.relay.GetBundleStatus(ctx, bundleID)
	if err != nil || status == nil {
		log.WithError(err).WithField("bundle", bundleID).Debug(
			"bundle: failed to get status",
		)
		return domain.ConfirmationUnknown, false
	}
	return status.Status, true
}

func (a *attempter) markSubmission(bundleID string, status domain.ConfirmationStatus) {
	for i := range a.result.Submissions {
		if a.result.Submissions[i].BundleID == bundleID {
			a.result.Submissions[i].ConfirmationStatus = status
			if status == domain.ConfirmationLanded {
				a.result.Submissions[i].Error = ""
			}
		}
	}
}

func (a *attempter) hopError(err error) error {
	first := a.hops[0]
	return &domain.HopError{
		HopIndex: first.Index,
		Address:  first.From,
		Attempts: len(a.result.Submissions),
		Err:      err,
	}
}

// buildBundle returns a new bundle with a fresh id, its operations signed by
// the sender or by the stealth key of the intermediate address they spend
// from.
func (s *Service) buildBundle(
	ctx context.Context, session ports.WalletSession, hops []domain.Hop,
) (*ports.Bundle, error) {
	bundle := &ports.Bundle{
		ID:         randstr.Hex(16),
		Operations: make([]ports.Operation, 0, len(hops)),
	}

	var seed []byte
	defer func() {
		for i := range seed {
			seed[i] = 0
		}
	}()

	for _, hop := range hops {
		op := ports.Operation{
			HopIndex: hop.Index,
			From:     hop.From,
			To:       hop.To,
			Amount:   hop.Amount,
			Fee:      hop.Fee,
		}
		digest := op.Digest(bundle.ID)

		if hop.IsFromSender() {
			pubkey, sig, err := session.SignAsSender(ctx, digest)
			if err != nil {
				return nil, fmt.Errorf("%w: %s", domain.ErrSignatureFailed, err)
			}
			op.PublicKey, op.Signature = pubkey, sig
		} else {
			if seed == nil {
				var err error
				if seed, err = session.Seed(ctx); err != nil {
					return nil, fmt.Errorf("%w: %s", domain.ErrSignatureFailed, err)
				}
			}
			pubkey, sig, err := s.signWithStealthKey(seed, hop, digest)
			if err != nil {
				return nil, err
			}
			op.PublicKey, op.Signature = pubkey, sig
		}

		bundle.Operations = append(bundle.Operations, op)
	}
	return bundle, nil
}

func (s *Service) signWithStealthKey(
	seed []byte, hop domain.Hop, digest []byte,
) ([]byte, []byte, error) {
	path, err := stealth.ParseDerivationPath(hop.FromPath)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s", domain.ErrSignatureFailed, err)
	}
	key, err := s.deriver.Derive(seed, path)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s", domain.ErrSignatureFailed, err)
	}
	defer key.Zero()

	if key.Address != hop.From {
		return nil, nil, fmt.Errorf(
			"%w: key at %s does not match address of hop %d",
			domain.ErrSignatureFailed, hop.FromPath, hop.Index,
		)
	}

	sig, err := key.Sign(digest)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s", domain.ErrSignatureFailed, err)
	}
	return key.PublicKey(), sig, nil
}

func hopIndexes(hops []domain.Hop) []int {
	indexes := make([]int, 0, len(hops))
	for _, h := range hops {
		indexes = append(indexes, h.Index)
	}
	return indexes
}
