// Package transfer orchestrates private transfers: it plans the route,
// submits one bundle after the other waiting random delays in between, and
// tracks the state machine of every transfer up to its final status.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/tdex-stealth/internal/core/application/bundle"
	"github.com/tdex-network/tdex-stealth/internal/core/application/planner"
	"github.com/tdex-network/tdex-stealth/internal/core/application/pubsub"
	"github.com/tdex-network/tdex-stealth/internal/core/application/scheduler"
	"github.com/tdex-network/tdex-stealth/internal/core/domain"
	"github.com/tdex-network/tdex-stealth/internal/core/ports"
)

var (
	// ErrInterrupted is the failure reason of transfers found not terminal at
	// startup.
	ErrInterrupted = errors.New("transfer interrupted by a restart")
)

// Service is the transfer orchestrator.
type Service struct {
	repoManager ports.RepoManager
	relay       ports.Relay
	planner     *planner.Service
	scheduler   *scheduler.Service
	submitter   *bundle.Service
	pubsub      *pubsub.Service
	cfg         Config

	lock *sync.RWMutex
	runs map[string]*run
}

// NewService returns a new orchestrator.
func NewService(
	repoManager ports.RepoManager,
	relay ports.Relay,
	plannerSvc *planner.Service,
	schedulerSvc *scheduler.Service,
	submitterSvc *bundle.Service,
	pubsubSvc *pubsub.Service,
	cfg Config,
) (*Service, error) {
	if repoManager == nil {
		return nil, fmt.Errorf("missing repo manager")
	}
	if relay == nil {
		return nil, fmt.Errorf("missing relay")
	}
	if plannerSvc == nil {
		return nil, fmt.Errorf("missing route planner")
	}
	if schedulerSvc == nil {
		return nil, fmt.Errorf("missing delay scheduler")
	}
	if submitterSvc == nil {
		return nil, fmt.Errorf("missing bundle submitter")
	}
	if pubsubSvc == nil {
		pubsubSvc = pubsub.NewService(nil)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.Sleep == nil {
		cfg.Sleep = scheduler.Wait
	}

	return &Service{
		repoManager: repoManager,
		relay:       relay,
		planner:     plannerSvc,
		scheduler:   schedulerSvc,
		submitter:   submitterSvc,
		pubsub:      pubsubSvc,
		cfg:         cfg,
		lock:        &sync.RWMutex{},
		runs:        make(map[string]*run),
	}, nil
}

// CreatePrivateTransaction makes a private transfer on behalf of the given
// session and waits for its final status. Invalid requests and routes that
// cannot be planned are returned as errors, without any transfer being
// recorded. Failures during the execution are reported in the result
// instead.
//
// If ctx is done before the transfer completes, the transfer keeps running
// and can be looked up with GetTransfer.
func (s *Service) CreatePrivateTransaction(
	ctx context.Context, session ports.WalletSession, req domain.TransferRequest,
) (*Result, error) {
	r, err := s.start(ctx, session, req)
	if err != nil {
		return nil, err
	}

	select {
	case <-r.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	res := NewResult(r.transfer)
	s.evict(ctx, r.transfer.ID)
	return res, nil
}

// StartPrivateTransaction plans the transfer and executes it in background.
// It returns the id of the transfer.
func (s *Service) StartPrivateTransaction(
	ctx context.Context, session ports.WalletSession, req domain.TransferRequest,
) (string, error) {
	r, err := s.start(ctx, session, req)
	if err != nil {
		return "", err
	}
	return r.transfer.ID, nil
}

// GetTransfer returns the transfer with the given id. Terminal transfers are
// removed once returned.
func (s *Service) GetTransfer(ctx context.Context, id string) (*domain.Transfer, error) {
	t, err := s.repoManager.TransferRepository().GetTransfer(ctx, id)
	if err != nil {
		return nil, err
	}

	if r := s.getRun(id); r != nil {
		t.CancelRequested = t.CancelRequested || r.isCancelRequested()
		return t, nil
	}

	if t.Status.IsTerminal() {
		s.evict(ctx, id)
	}
	return t, nil
}

// ListTransfers returns the transfers of the given session, or all of them
// if sessionID is empty.
func (s *Service) ListTransfers(
	ctx context.Context, sessionID string,
) ([]*domain.Transfer, error) {
	repo := s.repoManager.TransferRepository()

	var transfers []*domain.Transfer
	var err error
	if sessionID == "" {
		transfers, err = repo.GetAllTransfers(ctx)
	} else {
		transfers, err = repo.GetAllTransfersForSession(ctx, sessionID)
	}
	if err != nil {
		return nil, err
	}

	for _, t := range transfers {
		if r := s.getRun(t.ID); r != nil {
			t.CancelRequested = t.CancelRequested || r.isCancelRequested()
		}
	}
	return transfers, nil
}

// CancelTransfer stops the transfer with the given id. A transfer waiting
// between hops is cancelled right away, while if a bundle is in flight the
// cancellation is recorded and ErrCancelMidSubmission is returned: the
// transfer stops once the bundle settles, unless that was the last one.
func (s *Service) CancelTransfer(ctx context.Context, id string) error {
	if r := s.getRun(id); r != nil {
		if deferred := r.requestCancel(); deferred {
			return fmt.Errorf(
				"%w: transfer will stop once the current hop settles",
				domain.ErrCancelMidSubmission,
			)
		}

		select {
		case <-r.done:
		case <-ctx.Done():
			return ctx.Err()
		}
		if r.transfer.FailureReason != domain.ErrTransferCancelled.Error() {
			return domain.ErrTransferTerminal
		}
		return nil
	}

	var cancelled *domain.Transfer
	if err := s.repoManager.TransferRepository().UpdateTransfer(
		ctx, id, func(t *domain.Transfer) (*domain.Transfer, error) {
			now, err := t.RequestCancel()
			if err != nil {
				return nil, err
			}
			if !now {
				return nil, domain.ErrCancelMidSubmission
			}
			if err := t.Cancel(); err != nil {
				return nil, err
			}
			cancelled = t
			return t, nil
		},
	); err != nil {
		return err
	}

	s.onTerminated(ctx, cancelled)
	return nil
}

// ListStrandedFunds returns the funds left behind by partially failed
// transfers.
func (s *Service) ListStrandedFunds(ctx context.Context) ([]domain.StrandedFunds, error) {
	return s.repoManager.StrandedFundsRepository().GetAllStrandedFunds(ctx)
}

// GetStrandedFunds returns the funds left behind by the given transfer.
func (s *Service) GetStrandedFunds(
	ctx context.Context, transferID string,
) (*domain.StrandedFunds, error) {
	return s.repoManager.StrandedFundsRepository().GetStrandedFunds(ctx, transferID)
}

// FailInterruptedTransfers terminates the stored transfers that are not
// running nor terminal, left behind by a previous process. The bundles that
// were in flight are looked up on the relay first: the hops of one that
// landed are confirmed, so that stranded funds are reported where they
// actually are.
func (s *Service) FailInterruptedTransfers(ctx context.Context) error {
	transfers, err := s.repoManager.TransferRepository().GetAllTransfers(ctx)
	if err != nil {
		return err
	}

	for _, t := range transfers {
		if t.Status.IsTerminal() || s.getRun(t.ID) != nil {
			continue
		}

		s.settleInFlight(ctx, t)
		if t.IsConfirmed() {
			log.WithField("transfer", t.ID).Info(
				"transfer: interrupted transfer found confirmed",
			)
			s.onTerminated(ctx, t)
			continue
		}

		t.Fail(ErrInterrupted.Error())
		log.WithFields(log.Fields{
			"transfer": t.ID,
			"status":   t.StatusLabel(),
		}).Warn("transfer: interrupted transfer marked as failed")
		s.onTerminated(ctx, t)
	}
	return nil
}

// settleInFlight queries the relay for the bundles of the current hop whose
// outcome was never recorded, and confirms the hops of the one that landed.
func (s *Service) settleInFlight(ctx context.Context, t *domain.Transfer) {
	for _, submission := range t.UnsettledSubmissions() {
		queryCtx, cancel := context.WithTimeout(ctx, s.cfg.BalanceTimeout)
		status, err := s.relay.GetBundleStatus(queryCtx, submission.BundleID)
		cancel()
		if err != nil || status == nil {
			log.WithError(err).WithFields(log.Fields{
				"transfer": t.ID,
				"bundle":   submission.BundleID,
			}).Warn("transfer: failed to get status of interrupted bundle")
			continue
		}

		submission.ConfirmationStatus = status.Status
		t.AddSubmission(submission)
		if status.Status != domain.ConfirmationLanded {
			continue
		}

		lastHop := submission.HopIndexes[len(submission.HopIndexes)-1]
		if err := t.ConfirmHops(lastHop); err != nil {
			log.WithError(err).WithField("transfer", t.ID).Warn(
				"transfer: failed to confirm hops of landed bundle",
			)
		}
		return
	}
}

func (s *Service) start(
	ctx context.Context, session ports.WalletSession, req domain.TransferRequest,
) (*run, error) {
	if session == nil {
		return nil, fmt.Errorf("missing wallet session")
	}

	t, err := domain.NewTransfer(session.ID(), req)
	if err != nil {
		return nil, err
	}
	if req.Sender != session.SenderAddress() {
		return nil, fmt.Errorf(
			"%w: sender does not belong to the wallet session", domain.ErrInvalidRequest,
		)
	}

	route, err := s.planner.Plan(ctx, planner.PlanRequest{
		Sender:    req.Sender,
		Recipient: req.Recipient,
		Amount:    req.Amount,
		Profile:   t.Profile,
		Session:   session,
	})
	if err != nil {
		return nil, err
	}
	if err := t.Plan(route); err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancelCause(context.WithoutCancel(ctx))
	r := newRun(t, session, cancel)

	s.lock.Lock()
	s.runs[t.ID] = r
	s.lock.Unlock()

	if err := s.repoManager.TransferRepository().AddTransfer(ctx, t); err != nil {
		s.removeRun(t.ID)
		cancel(nil)
		return nil, err
	}

	log.WithFields(log.Fields{
		"transfer": t.ID,
		"level":    t.Request.PrivacyLevel,
		"hops":     route.HopCount(),
	}).Info("transfer: started")
	s.pubsub.PublishTransferEvent(ctx, t)

	go s.execute(runCtx, r)
	return r, nil
}

// execute drives the transfer from Planned to its final status. Every hop, or
// every group of hops batched in one bundle, is preceded by a suspension
// point where cancellation and timeout are honoured.
func (s *Service) execute(ctx context.Context, r *run) {
	t := r.transfer
	defer func() {
		r.cancel(nil)
		s.removeRun(t.ID)
		close(r.done)
	}()

	if s.cfg.TransferTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(
			ctx, s.cfg.TransferTimeout, domain.ErrTransferTimeout,
		)
		defer cancel()
	}

	logger := log.WithField("transfer", t.ID)

	for i, hops := range bundle.Group(t.Profile, t.Route.Hops) {
		if i > 0 {
			if delay := s.scheduler.NextDelay(t.Profile); delay > 0 {
				logger.Debugf("transfer: waiting %s before hop %d", delay, hops[0].Index)
				// stopping early is handled right below
				_ = s.cfg.Sleep(ctx, delay)
			}
		}

		if err := r.beginSubmission(ctx); err != nil {
			s.stop(ctx, t, err)
			return
		}

		if err := t.ExecuteHop(hops[0].Index); err != nil {
			r.endSubmission()
			s.stop(ctx, t, err)
			return
		}
		s.update(ctx, t)

		res, err := s.submitter.Submit(
			ctx, s.relay, r.session, hops,
			bundle.WithBeforeSend(func(submission domain.BundleSubmission) {
				// the bundle must be known after a restart in case it lands
				t.AddSubmission(submission)
				s.persist(ctx, t)
			}),
		)
		r.endSubmission()
		if res != nil {
			for _, submission := range res.Submissions {
				t.AddSubmission(submission)
			}
		}
		if err != nil {
			logger.WithError(err).Warnf("transfer: hop %d failed", hops[0].Index)
			s.stop(ctx, t, err)
			return
		}

		if err := t.ConfirmHops(hops[len(hops)-1].Index); err != nil {
			s.stop(ctx, t, err)
			return
		}
		if t.IsConfirmed() {
			break
		}
		s.update(ctx, t)
	}

	logger.WithField("bundles", len(t.Submissions)).Info("transfer: confirmed")
	s.onTerminated(ctx, t)
}

// stop terminates the transfer for the given reason.
func (s *Service) stop(ctx context.Context, t *domain.Transfer, reason error) {
	if errors.Is(reason, domain.ErrTransferCancelled) {
		if err := t.Cancel(); err != nil {
			t.Fail(reason.Error())
		}
	} else {
		t.Fail(reason.Error())
	}

	log.WithFields(log.Fields{
		"transfer": t.ID,
		"status":   t.StatusLabel(),
		"reason":   t.FailureReason,
	}).Warn("transfer: stopped")
	s.onTerminated(ctx, t)
}

// onTerminated stores the final state of the transfer. For partially failed
// transfers the balance left at the stranded address is looked up and the
// stranded funds are recorded for recovery.
func (s *Service) onTerminated(ctx context.Context, t *domain.Transfer) {
	if t.Stranded != nil {
		ctx, cancel := context.WithTimeout(
			context.WithoutCancel(ctx), s.cfg.BalanceTimeout,
		)
		balance, err := s.relay.GetBalance(ctx, t.Stranded.Address)
		cancel()
		if err != nil {
			log.WithError(err).WithField("transfer", t.ID).Warn(
				"transfer: failed to get balance of stranded funds",
			)
		} else {
			t.Stranded.Balance = balance
		}

		if err := s.repoManager.StrandedFundsRepository().AddStrandedFunds(
			context.WithoutCancel(ctx), *t.Stranded,
		); err != nil {
			log.WithError(err).WithField("transfer", t.ID).Error(
				"transfer: failed to store stranded funds",
			)
		}
		log.WithFields(log.Fields{
			"transfer": t.ID,
			"hop":      t.Stranded.HopIndex,
			"balance":  t.Stranded.Balance,
		}).Warn("transfer: funds stranded at intermediate address")
	}
	s.update(ctx, t)
}

// update stores the current state of the transfer and notifies subscribers.
func (s *Service) update(ctx context.Context, t *domain.Transfer) {
	ctx = context.WithoutCancel(ctx)
	s.persist(ctx, t)
	s.pubsub.PublishTransferEvent(ctx, t)
}

// persist stores the current state of the transfer.
func (s *Service) persist(ctx context.Context, t *domain.Transfer) {
	if err := s.repoManager.TransferRepository().UpdateTransfer(
		context.WithoutCancel(ctx), t.ID,
		func(_ *domain.Transfer) (*domain.Transfer, error) {
			return t, nil
		},
	); err != nil {
		log.WithError(err).WithField("transfer", t.ID).Error(
			"transfer: failed to update transfer",
		)
	}
}

func (s *Service) evict(ctx context.Context, id string) {
	if err := s.repoManager.TransferRepository().DeleteTransfer(
		context.WithoutCancel(ctx), id,
	); err != nil && !errors.Is(err, domain.ErrTransferNotFound) {
		log.WithError(err).WithField("transfer", id).Warn(
			"transfer: failed to evict terminated transfer",
		)
	}
}

func (s *Service) getRun(id string) *run {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return s.runs[id]
}

func (s *Service) removeRun(id string) {
	s.lock.Lock()
	defer s.lock.Unlock()

	delete(s.runs, id)
}

// ActiveTransfers returns the number of transfers currently running.
func (s *Service) ActiveTransfers() int {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return len(s.runs)
}

// Wait blocks until every running transfer completes or ctx is done.
func (s *Service) Wait(ctx context.Context) error {
	for {
		s.lock.RLock()
		var r *run
		for _, rr := range s.runs {
			r = rr
			break
		}
		s.lock.RUnlock()

		if r == nil {
			return nil
		}
		select {
		case <-r.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
