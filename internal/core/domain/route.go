package domain

import "fmt"

// Hop is a single funds movement of a route. Fee is the network fee paid by
// the From address on top of Amount.
type Hop struct {
	Index    int
	From     string
	FromPath string
	To       string
	Amount   uint64
	Fee      uint64
	IsFinal  bool
}

// IsFromSender returns whether the hop spends the sender's funds.
func (h Hop) IsFromSender() bool {
	return h.FromPath == ""
}

// Route is the ordered list of hops moving the funds from sender to
// recipient. Every intermediate address pays the fee of the hop it originates
// out of what it received, so hop k carries Amount - k*HopFee.
type Route struct {
	Sender        string
	Recipient     string
	Amount        uint64
	HopFee        uint64
	Hops          []Hop
	Intermediates []StealthAddress
	// Reduced is true if the hop count has been lowered under the profile's
	// range because of the amount being too small.
	Reduced bool
}

// HopCount ...
func (r *Route) HopCount() int {
	return len(r.Hops)
}

// Delivered returns the amount the recipient receives.
func (r *Route) Delivered() uint64 {
	if len(r.Hops) <= 0 {
		return 0
	}
	return r.Hops[len(r.Hops)-1].Amount
}

// IntermediateFees returns the fees paid out of the transferred amount by the
// intermediate addresses.
func (r *Route) IntermediateFees() uint64 {
	var fees uint64
	for _, h := range r.Hops {
		if !h.IsFromSender() {
			fees += h.Fee
		}
	}
	return fees
}

// SenderFee returns the fee the sender pays on top of the amount.
func (r *Route) SenderFee() uint64 {
	if len(r.Hops) <= 0 {
		return 0
	}
	return r.Hops[0].Fee
}

// TotalFees ...
func (r *Route) TotalFees() uint64 {
	return r.SenderFee() + r.IntermediateFees()
}

// Validate checks the route invariants: the chain of addresses is connected
// from sender to recipient, no address is reused, no hop moves zero
// value, every intermediate forwards what it received minus its fee, and the
// delivered amount drifts from the requested one at most by maxDrift.
func (r *Route) Validate(maxDrift uint64) error {
	if len(r.Hops) <= 0 {
		return fmt.Errorf("%w: route has no hops", ErrInvalidRoute)
	}
	if r.Hops[0].From != r.Sender || !r.Hops[0].IsFromSender() {
		return fmt.Errorf("%w: first hop must spend sender funds", ErrInvalidRoute)
	}
	if r.Hops[0].Amount != r.Amount {
		return fmt.Errorf("%w: first hop must carry the whole amount", ErrInvalidRoute)
	}
	last := r.Hops[len(r.Hops)-1]
	if last.To != r.Recipient || !last.IsFinal {
		return fmt.Errorf("%w: last hop must reach the recipient", ErrInvalidRoute)
	}

	seen := map[string]bool{r.Sender: true}
	for i, h := range r.Hops {
		if h.Index != i {
			return fmt.Errorf("%w: hop %d has index %d", ErrInvalidRoute, i, h.Index)
		}
		if h.Amount == 0 {
			return fmt.Errorf("%w: hop %d moves zero value", ErrInvalidRoute, i)
		}
		if i > 0 {
			prev := r.Hops[i-1]
			if h.From != prev.To {
				return fmt.Errorf("%w: hop %d is not connected", ErrInvalidRoute, i)
			}
			if h.IsFromSender() {
				return fmt.Errorf(
					"%w: hop %d spends from a non stealth address", ErrInvalidRoute, i,
				)
			}
			if prev.Amount != h.Amount+h.Fee {
				return fmt.Errorf(
					"%w: hop %d does not forward the amount received", ErrInvalidRoute, i,
				)
			}
		}
		if h.IsFinal != (i == len(r.Hops)-1) {
			return fmt.Errorf("%w: only the last hop can be final", ErrInvalidRoute)
		}
		if !h.IsFinal {
			if seen[h.To] {
				return fmt.Errorf("%w: address reused at hop %d", ErrInvalidRoute, i)
			}
			seen[h.To] = true
		}
	}

	if r.Delivered()+r.IntermediateFees() != r.Amount {
		return fmt.Errorf("%w: fees do not reconstruct the amount", ErrInvalidRoute)
	}
	if r.Amount-r.Delivered() > maxDrift {
		return fmt.Errorf(
			"%w: delivered amount drifts by %d, max is %d",
			ErrAmountTooSmallForRoute, r.Amount-r.Delivered(), maxDrift,
		)
	}
	return nil
}
