package transfer

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/tdex-network/tdex-stealth/internal/core/domain"
	"github.com/tdex-network/tdex-stealth/pkg/mathutil"
)

// Result is what CreatePrivateTransaction reports to the caller.
type Result struct {
	TransferID    string
	Success       bool
	Summary       Summary
	FeaturesUsed  []string
	CostBreakdown CostBreakdown
	Status        string
	StatusPath    []string
	Stranded      *domain.StrandedFunds
	Error         string
}

// Summary describes the route a transfer went through. Intermediate addresses
// are never included.
type Summary struct {
	Sender        string
	Recipient     string
	PrivacyLevel  string
	Memo          string
	Amount        uint64
	Delivered     uint64
	HopCount      int
	ConfirmedHops int
	Reduced       bool
	Bundles       []string
	Attempts      int
	Duration      time.Duration
}

// CostBreakdown details the fees paid by a transfer. Amounts are in base
// units, Total is TotalFees in units of the ledger asset.
type CostBreakdown struct {
	SenderFee        uint64
	IntermediateFees uint64
	TotalFees        uint64
	EstimatedCost    uint64
	Total            decimal.Decimal
	// FeeBasisPoints is the ratio between the fees and the amount.
	FeeBasisPoints decimal.Decimal
}

// NewResult returns the result for the current state of the transfer.
func NewResult(t *domain.Transfer) *Result {
	res := &Result{
		TransferID: t.ID,
		Success:    t.IsConfirmed(),
		Status:     t.StatusLabel(),
		StatusPath: t.StatusPath(),
		Error:      t.FailureReason,
		Summary: Summary{
			Sender:        t.Request.Sender,
			Recipient:     t.Request.Recipient,
			PrivacyLevel:  t.Request.PrivacyLevel.String(),
			Memo:          t.Request.Memo,
			Amount:        t.Request.Amount,
			ConfirmedHops: t.ConfirmedHops,
			Attempts:      len(t.Submissions),
		},
		FeaturesUsed: featuresUsed(t),
		CostBreakdown: CostBreakdown{
			EstimatedCost:  t.Profile.EstimatedCost,
			Total:          decimal.Zero,
			FeeBasisPoints: decimal.Zero,
		},
	}
	if t.Stranded != nil {
		stranded := *t.Stranded
		res.Stranded = &stranded
	}
	if t.CompletedAt > 0 {
		res.Summary.Duration = time.Duration(t.CompletedAt-t.CreatedAt) * time.Second
	}
	for _, s := range t.Submissions {
		if s.IsLanded() {
			res.Summary.Bundles = append(res.Summary.Bundles, s.BundleID)
		}
	}

	route := t.Route
	if route == nil {
		return res
	}
	res.Summary.HopCount = route.HopCount()
	res.Summary.Reduced = route.Reduced
	if t.IsConfirmed() {
		res.Summary.Delivered = route.Delivered()
	}

	// Only the fees of confirmed hops have been paid.
	for _, hop := range route.Hops[:t.ConfirmedHops] {
		if hop.IsFromSender() {
			res.CostBreakdown.SenderFee += hop.Fee
		} else {
			res.CostBreakdown.IntermediateFees += hop.Fee
		}
	}
	fees := res.CostBreakdown.SenderFee + res.CostBreakdown.IntermediateFees
	res.CostBreakdown.TotalFees = fees
	res.CostBreakdown.Total = mathutil.FromBaseUnits(fees, mathutil.DefaultPrecision)
	res.CostBreakdown.FeeBasisPoints = mathutil.ToBasisPoints(fees, t.Request.Amount)
	return res
}

// featuresUsed returns the privacy features actually applied, which can be
// less than those of the profile if the route was reduced or the transfer
// stopped early.
func featuresUsed(t *domain.Transfer) []string {
	if t.ConfirmedHops <= 0 {
		return []string{}
	}
	features := []string{domain.FeatureAtomicBundle}
	if t.Route == nil || t.Route.HopCount() <= 1 {
		return features
	}
	features = append(
		features, domain.FeatureStealthAddresses, domain.FeatureMultiHopMixing,
	)
	// delays are waited before every hop but the first
	if t.Profile.RequiresDelay && !t.Profile.BatchesHops() && t.CurrentHop > 0 {
		features = append(features, domain.FeatureTimingDelays)
	}
	return features
}
