package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// MaxMemoLength ...
	MaxMemoLength = 256
)

// TransferRequest is what the wallet asks the engine to do.
type TransferRequest struct {
	Sender       string
	Recipient    string
	Amount       uint64
	PrivacyLevel PrivacyLevel
	Memo         string
}

// Validate ...
func (r TransferRequest) Validate() error {
	if strings.TrimSpace(r.Sender) == "" {
		return fmt.Errorf("%w: missing sender", ErrInvalidRequest)
	}
	if strings.TrimSpace(r.Recipient) == "" {
		return fmt.Errorf("%w: missing recipient", ErrInvalidRequest)
	}
	if r.Sender == r.Recipient {
		return fmt.Errorf("%w: sender and recipient must differ", ErrInvalidRequest)
	}
	if r.Amount == 0 {
		return fmt.Errorf("%w: amount must be greater than zero", ErrInvalidRequest)
	}
	if len(r.Memo) > MaxMemoLength {
		return fmt.Errorf(
			"%w: memo must be at most %d bytes", ErrInvalidRequest, MaxMemoLength,
		)
	}
	if !r.PrivacyLevel.IsValid() {
		return fmt.Errorf("%w: %d", ErrUnknownPrivacyLevel, int(r.PrivacyLevel))
	}
	return nil
}

// StrandedFunds describes value left at an intermediate stealth address
// because a later hop did not complete.
type StrandedFunds struct {
	TransferID     string
	SessionID      string
	Address        string
	DerivationPath string
	HopIndex       int
	ExpectedAmount uint64
	Balance        uint64
	Reason         string
	Timestamp      int64
}

// Transfer is the state of a private transfer. It's mutated only by the
// orchestrator through the methods below, each one being a transition of the
// state machine:
//
//	PENDING -> PLANNED -> EXECUTING_HOP[0] -> ... -> EXECUTING_HOP[n-1] -> CONFIRMED
//
// with FAILED reachable while no hop confirmed, and PARTIALLY_FAILED
// afterwards.
type Transfer struct {
	ID              string
	SessionID       string
	Request         TransferRequest
	Profile         PrivacyProfile
	Route           *Route
	CurrentHop      int
	ConfirmedHops   int
	Status          TransferStatus
	History         []StatusChange
	Submissions     []BundleSubmission
	Stranded        *StrandedFunds
	FailureReason   string
	CancelRequested bool
	CreatedAt       int64
	UpdatedAt       int64
	CompletedAt     int64
}

// NewTransfer validates the request and returns a Pending transfer.
func NewTransfer(sessionID string, req TransferRequest) (*Transfer, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	profile, err := ProfileFor(req.PrivacyLevel)
	if err != nil {
		return nil, err
	}

	now := time.Now().Unix()
	t := &Transfer{
		ID:         uuid.New().String(),
		SessionID:  sessionID,
		Request:    req,
		Profile:    profile,
		CurrentHop: -1,
		Status:     TransferStatusPending,
		CreatedAt:  now,
	}
	t.addHistory()
	return t, nil
}

// Plan brings a Pending transfer to Planned with the given route.
func (t *Transfer) Plan(route *Route) error {
	if t.Status != TransferStatusPending {
		return t.invalidTransition(TransferStatusPlanned)
	}
	if route == nil || route.HopCount() <= 0 {
		return ErrInvalidRoute
	}
	if route.Sender != t.Request.Sender || route.Recipient != t.Request.Recipient ||
		route.Amount != t.Request.Amount {
		return fmt.Errorf("%w: route does not match request", ErrInvalidRoute)
	}

	t.Route = route
	t.Status = TransferStatusPlanned
	t.addHistory()
	return nil
}

// ExecuteHop moves the transfer to the execution of the given hop. Hop 0
// follows Planned, any other hop requires the previous one to be confirmed.
func (t *Transfer) ExecuteHop(index int) error {
	switch t.Status {
	case TransferStatusPlanned:
		if index != 0 {
			return t.invalidTransition(TransferStatusExecutingHop)
		}
	case TransferStatusExecutingHop:
		if index != t.CurrentHop+1 || t.ConfirmedHops != index {
			return t.invalidTransition(TransferStatusExecutingHop)
		}
	default:
		return t.invalidTransition(TransferStatusExecutingHop)
	}
	if index >= t.Route.HopCount() {
		return t.invalidTransition(TransferStatusExecutingHop)
	}

	t.CurrentHop = index
	t.Status = TransferStatusExecutingHop
	t.addHistory()
	return nil
}

// ConfirmHops marks as confirmed all the hops up to the given index, which
// must be equal or greater than the current one. Bundles grouping more hops
// confirm them all at once. The transfer is Confirmed once the final hop is.
func (t *Transfer) ConfirmHops(upTo int) error {
	if t.Status != TransferStatusExecutingHop {
		return t.invalidTransition(TransferStatusConfirmed)
	}
	if upTo < t.CurrentHop || upTo >= t.Route.HopCount() {
		return fmt.Errorf(
			"%w: cannot confirm hop %d while executing hop %d",
			ErrInvalidTransition, upTo, t.CurrentHop,
		)
	}

	t.ConfirmedHops = upTo + 1
	t.CurrentHop = upTo
	if t.ConfirmedHops == t.Route.HopCount() {
		t.Status = TransferStatusConfirmed
		t.CompletedAt = time.Now().Unix()
		t.addHistory()
		return nil
	}
	t.touch()
	return nil
}

// IsBetweenHops returns whether the transfer has no bundle in flight, that is
// it's either not started or the current hop has been confirmed.
func (t *Transfer) IsBetweenHops() bool {
	switch t.Status {
	case TransferStatusPending, TransferStatusPlanned:
		return true
	case TransferStatusExecutingHop:
		return t.ConfirmedHops == t.CurrentHop+1
	default:
		return false
	}
}

// AddSubmission records a bundle submission attempt, replacing the previous
// record of the same bundle if any.
func (t *Transfer) AddSubmission(s BundleSubmission) {
	defer t.touch()

	if s.BundleID != "" {
		for i := range t.Submissions {
			if t.Submissions[i].BundleID == s.BundleID {
				t.Submissions[i] = s
				return
			}
		}
	}
	t.Submissions = append(t.Submissions, s)
}

// UnsettledSubmissions returns the submissions of the hop in execution that
// might have landed, latest first. It's empty if no bundle is in flight.
func (t *Transfer) UnsettledSubmissions() []BundleSubmission {
	if t.Status != TransferStatusExecutingHop || t.IsBetweenHops() {
		return nil
	}

	unsettled := make([]BundleSubmission, 0)
	for i := len(t.Submissions) - 1; i >= 0; i-- {
		s := t.Submissions[i]
		if s.BundleID == "" || !s.includesHop(t.CurrentHop) {
			continue
		}
		switch s.ConfirmationStatus {
		case ConfirmationFailed, ConfirmationDropped, ConfirmationPartial:
			continue
		}
		unsettled = append(unsettled, s)
	}
	return unsettled
}

// RequestCancel marks the transfer to be cancelled at the next suspension
// point. It returns whether the transfer can be cancelled right away.
func (t *Transfer) RequestCancel() (bool, error) {
	if t.Status.IsTerminal() {
		return false, ErrTransferTerminal
	}
	t.CancelRequested = true
	t.touch()
	return t.IsBetweenHops(), nil
}

// Cancel terminates the transfer. It's allowed only in Pending, Planned or
// between hops: a transfer with confirmed hops ends up PartiallyFailed.
func (t *Transfer) Cancel() error {
	if t.Status.IsTerminal() {
		return ErrTransferTerminal
	}
	if !t.IsBetweenHops() {
		return ErrCancelMidSubmission
	}
	t.CancelRequested = true
	t.Fail(ErrTransferCancelled.Error())
	return nil
}

// Fail terminates the transfer. Without confirmed hops nothing moved and the
// transfer is Failed, otherwise the funds sit at the source of the first
// unconfirmed hop and the transfer is PartiallyFailed.
func (t *Transfer) Fail(reason string) {
	if t.Status.IsTerminal() {
		return
	}

	t.FailureReason = reason
	t.CompletedAt = time.Now().Unix()
	if t.ConfirmedHops <= 0 || t.Route == nil {
		t.Status = TransferStatusFailed
		t.addHistory()
		return
	}

	stuckHop := t.Route.Hops[t.ConfirmedHops]
	t.Stranded = &StrandedFunds{
		TransferID:     t.ID,
		SessionID:      t.SessionID,
		Address:        stuckHop.From,
		DerivationPath: stuckHop.FromPath,
		HopIndex:       stuckHop.Index,
		ExpectedAmount: t.Route.Hops[t.ConfirmedHops-1].Amount,
		Reason:         reason,
		Timestamp:      t.CompletedAt,
	}
	t.Status = TransferStatusPartiallyFailed
	t.addHistory()
}

// IsConfirmed ...
func (t *Transfer) IsConfirmed() bool {
	return t.Status == TransferStatusConfirmed
}

// IsFailed ...
func (t *Transfer) IsFailed() bool {
	return t.Status == TransferStatusFailed
}

// IsPartiallyFailed ...
func (t *Transfer) IsPartiallyFailed() bool {
	return t.Status == TransferStatusPartiallyFailed
}

// StatusLabel returns the current status name, EXECUTING_HOP[i] included.
func (t *Transfer) StatusLabel() string {
	return StatusChange{Status: t.Status, HopIndex: t.CurrentHop}.Label()
}

// StatusPath returns the labels of the status history.
func (t *Transfer) StatusPath() []string {
	path := make([]string, 0, len(t.History))
	for _, c := range t.History {
		path = append(path, c.Label())
	}
	return path
}

func (t *Transfer) invalidTransition(to TransferStatus) error {
	if t.Status.IsTerminal() {
		return ErrTransferTerminal
	}
	return fmt.Errorf(
		"%w: from %s to %s", ErrInvalidTransition, t.StatusLabel(), to,
	)
}

func (t *Transfer) addHistory() {
	t.touch()
	t.History = append(t.History, StatusChange{
		Status:    t.Status,
		HopIndex:  t.CurrentHop,
		Timestamp: t.UpdatedAt,
	})
}

func (t *Transfer) touch() {
	t.UpdatedAt = time.Now().Unix()
}
