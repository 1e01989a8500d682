package domain

import "fmt"

// TransferStatus is the status of a transfer state machine.
type TransferStatus int

const (
	TransferStatusPending TransferStatus = iota
	TransferStatusPlanned
	TransferStatusExecutingHop
	TransferStatusConfirmed
	TransferStatusFailed
	TransferStatusPartiallyFailed
)

var transferStatusToString = map[TransferStatus]string{
	TransferStatusPending:         "PENDING",
	TransferStatusPlanned:         "PLANNED",
	TransferStatusExecutingHop:    "EXECUTING_HOP",
	TransferStatusConfirmed:       "CONFIRMED",
	TransferStatusFailed:          "FAILED",
	TransferStatusPartiallyFailed: "PARTIALLY_FAILED",
}

func (s TransferStatus) String() string {
	if label, ok := transferStatusToString[s]; ok {
		return label
	}
	return fmt.Sprintf("TransferStatus(%d)", int(s))
}

// IsTerminal returns whether no more transitions are allowed from s.
func (s TransferStatus) IsTerminal() bool {
	return s == TransferStatusConfirmed ||
		s == TransferStatusFailed ||
		s == TransferStatusPartiallyFailed
}

// StatusChange is an entry of the status history of a transfer.
type StatusChange struct {
	Status    TransferStatus
	HopIndex  int
	Timestamp int64
}

// Label returns the status name, EXECUTING_HOP[i] for hop executions.
func (c StatusChange) Label() string {
	if c.Status == TransferStatusExecutingHop {
		return fmt.Sprintf("%s[%d]", c.Status, c.HopIndex)
	}
	return c.Status.String()
}
