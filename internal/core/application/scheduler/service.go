// Package scheduler draws the random delays honored between the hops of a
// transfer.
package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tdex-network/tdex-stealth/internal/core/domain"
	"github.com/tdex-network/tdex-stealth/pkg/randutil"
)

// Distribution is the shape of the delays drawn from a profile range.
type Distribution int

const (
	// DistributionUniform draws every delay of the range with the same
	// probability.
	DistributionUniform Distribution = iota
	// DistributionSkewed favors the lower bound of the range, while still
	// reaching the upper one.
	DistributionSkewed
)

var distributionToString = map[Distribution]string{
	DistributionUniform: "uniform",
	DistributionSkewed:  "skewed",
}

// ParseDistribution returns the distribution with the given name.
func ParseDistribution(str string) (Distribution, error) {
	name := strings.ToLower(strings.TrimSpace(str))
	for d, label := range distributionToString {
		if label == name {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown delay distribution %q", str)
}

func (d Distribution) String() string {
	if label, ok := distributionToString[d]; ok {
		return label
	}
	return fmt.Sprintf("Distribution(%d)", int(d))
}

// Service computes inter-hop delays. It never blocks, Wait is provided for
// the caller to suspend.
type Service struct {
	rand         randutil.Source
	distribution Distribution
}

// NewService returns a new scheduler drawing from the given random source.
func NewService(rand randutil.Source, distribution Distribution) (*Service, error) {
	if rand == nil {
		return nil, fmt.Errorf("missing random source")
	}
	if _, ok := distributionToString[distribution]; !ok {
		return nil, fmt.Errorf("unknown delay distribution %d", int(distribution))
	}
	return &Service{rand, distribution}, nil
}

// NextDelay returns the delay to honor before the next hop of a transfer with
// the given profile, zero if the profile requires none.
func (s *Service) NextDelay(profile domain.PrivacyProfile) time.Duration {
	if !profile.RequiresDelay {
		return 0
	}

	r := profile.DelayRange
	if r.Max <= r.Min {
		return r.Min
	}

	u := s.rand.Float64()
	if s.distribution == DistributionSkewed {
		u = u * u
	}
	span := float64(r.Max - r.Min)
	return r.Clamp(r.Min + time.Duration(u*span))
}

// Wait suspends the caller for d, returning early with the context error if
// ctx is done before.
func Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
