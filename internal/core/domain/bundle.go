package domain

import "time"

// RelayResponse is the outcome of a bundle submission as reported by the
// relay.
type RelayResponse int

const (
	RelayResponseUnknown RelayResponse = iota
	RelayResponseAccepted
	RelayResponseRejected
	RelayResponseTimeout
	RelayResponsePartial
	RelayResponseError
)

var relayResponseToString = map[RelayResponse]string{
	RelayResponseUnknown:  "UNKNOWN",
	RelayResponseAccepted: "ACCEPTED",
	RelayResponseRejected: "REJECTED",
	RelayResponseTimeout:  "TIMEOUT",
	RelayResponsePartial:  "PARTIAL",
	RelayResponseError:    "ERROR",
}

func (r RelayResponse) String() string {
	return relayResponseToString[r]
}

// ConfirmationStatus is the on-chain status of a submitted bundle.
type ConfirmationStatus int

const (
	ConfirmationPending ConfirmationStatus = iota
	ConfirmationLanded
	ConfirmationFailed
	ConfirmationDropped
	ConfirmationPartial
	ConfirmationUnknown
)

var confirmationStatusToString = map[ConfirmationStatus]string{
	ConfirmationPending: "PENDING",
	ConfirmationLanded:  "LANDED",
	ConfirmationFailed:  "FAILED",
	ConfirmationDropped: "DROPPED",
	ConfirmationPartial: "PARTIAL",
	ConfirmationUnknown: "UNKNOWN",
}

func (c ConfirmationStatus) String() string {
	return confirmationStatusToString[c]
}

// IsFinal returns whether the status can't change anymore.
func (c ConfirmationStatus) IsFinal() bool {
	return c == ConfirmationLanded || c == ConfirmationFailed ||
		c == ConfirmationDropped || c == ConfirmationPartial
}

// BundleSubmission records a single attempt of submitting some hops to the
// relay. A retry produces a new submission with a fresh bundle id.
type BundleSubmission struct {
	BundleID           string
	HopIndexes         []int
	Attempt            int
	SubmittedAt        int64
	RelayResponse      RelayResponse
	ConfirmationStatus ConfirmationStatus
	Error              string
}

// NewBundleSubmission ...
func NewBundleSubmission(bundleID string, hopIndexes []int, attempt int) BundleSubmission {
	return BundleSubmission{
		BundleID:           bundleID,
		HopIndexes:         append([]int{}, hopIndexes...),
		Attempt:            attempt,
		SubmittedAt:        time.Now().Unix(),
		ConfirmationStatus: ConfirmationPending,
	}
}

// IsLanded ...
func (s BundleSubmission) IsLanded() bool {
	return s.ConfirmationStatus == ConfirmationLanded
}

func (s BundleSubmission) includesHop(index int) bool {
	for _, i := range s.HopIndexes {
		if i == index {
			return true
		}
	}
	return false
}
