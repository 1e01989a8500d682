package domain

import (
	"fmt"
	"strings"
	"time"
)

// PrivacyLevel selects the privacy features applied to a transfer.
type PrivacyLevel int

const (
	// PrivacyLevelBasic submits the transfer as a single atomic bundle.
	PrivacyLevelBasic PrivacyLevel = iota + 1
	// PrivacyLevelAdvanced routes the transfer through a few stealth
	// addresses with short random delays between hops.
	PrivacyLevelAdvanced
	// PrivacyLevelMaximum routes the transfer through a longer chain of
	// stealth addresses with long random delays between hops.
	PrivacyLevelMaximum
)

const (
	FeatureAtomicBundle     = "atomic_bundle"
	FeatureStealthAddresses = "stealth_addresses"
	FeatureMultiHopMixing   = "multi_hop_mixing"
	FeatureTimingDelays     = "timing_delays"
)

var privacyLevelToString = map[PrivacyLevel]string{
	PrivacyLevelBasic:    "BASIC",
	PrivacyLevelAdvanced: "ADVANCED",
	PrivacyLevelMaximum:  "MAXIMUM",
}

// ParsePrivacyLevel returns the level matching the given case-insensitive
// name.
func ParsePrivacyLevel(str string) (PrivacyLevel, error) {
	name := strings.ToUpper(strings.TrimSpace(str))
	for level, label := range privacyLevelToString {
		if label == name {
			return level, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownPrivacyLevel, str)
}

func (l PrivacyLevel) String() string {
	if label, ok := privacyLevelToString[l]; ok {
		return label
	}
	return fmt.Sprintf("PrivacyLevel(%d)", int(l))
}

// IsValid returns whether the level is one of the known ones.
func (l PrivacyLevel) IsValid() bool {
	_, ok := privacyLevelToString[l]
	return ok
}

func (l PrivacyLevel) MarshalText() ([]byte, error) {
	if !l.IsValid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownPrivacyLevel, int(l))
	}
	return []byte(l.String()), nil
}

func (l *PrivacyLevel) UnmarshalText(text []byte) error {
	level, err := ParsePrivacyLevel(string(text))
	if err != nil {
		return err
	}
	*l = level
	return nil
}

// HopCountRange is the closed interval of hops a route can be made of.
type HopCountRange struct {
	Min int
	Max int
}

// Contains returns whether n is in the closed interval.
func (r HopCountRange) Contains(n int) bool {
	return n >= r.Min && n <= r.Max
}

// DelayRange is the closed interval an inter-hop delay is drawn from.
type DelayRange struct {
	Min time.Duration
	Max time.Duration
}

// Clamp returns d bounded to the closed interval.
func (r DelayRange) Clamp(d time.Duration) time.Duration {
	if d < r.Min {
		return r.Min
	}
	if d > r.Max {
		return r.Max
	}
	return d
}

// PrivacyProfile bundles the features required by a privacy level together
// with their expected cost (in base units) and latency.
type PrivacyProfile struct {
	Level            PrivacyLevel
	RequiresMixing   bool
	HopCountRange    HopCountRange
	RequiresDelay    bool
	DelayRange       DelayRange
	EstimatedCost    uint64
	EstimatedLatency time.Duration
	Features         []string
}

// BatchesHops returns whether all the hops of a route are submitted in one
// single bundle. Without mixing there's no on-chain delay to observe between
// hops.
func (p PrivacyProfile) BatchesHops() bool {
	return !p.RequiresMixing
}

// HasFeature ...
func (p PrivacyProfile) HasFeature(feature string) bool {
	for _, f := range p.Features {
		if f == feature {
			return true
		}
	}
	return false
}

var privacyProfiles = map[PrivacyLevel]PrivacyProfile{
	PrivacyLevelBasic: {
		Level:            PrivacyLevelBasic,
		RequiresMixing:   false,
		HopCountRange:    HopCountRange{1, 1},
		RequiresDelay:    false,
		EstimatedCost:    10000,
		EstimatedLatency: 2 * time.Second,
		Features:         []string{FeatureAtomicBundle},
	},
	PrivacyLevelAdvanced: {
		Level:          PrivacyLevelAdvanced,
		RequiresMixing: true,
		HopCountRange:  HopCountRange{2, 3},
		RequiresDelay:  true,
		DelayRange: DelayRange{
			Min: 1 * time.Second, Max: 5 * time.Second,
		},
		EstimatedCost:    25000,
		EstimatedLatency: 15 * time.Second,
		Features: []string{
			FeatureAtomicBundle, FeatureStealthAddresses,
			FeatureMultiHopMixing, FeatureTimingDelays,
		},
	},
	PrivacyLevelMaximum: {
		Level:          PrivacyLevelMaximum,
		RequiresMixing: true,
		HopCountRange:  HopCountRange{3, 5},
		RequiresDelay:  true,
		DelayRange: DelayRange{
			Min: 5 * time.Second, Max: 30 * time.Second,
		},
		EstimatedCost:    60000,
		EstimatedLatency: 2 * time.Minute,
		Features: []string{
			FeatureAtomicBundle, FeatureStealthAddresses,
			FeatureMultiHopMixing, FeatureTimingDelays,
		},
	},
}

// ProfileFor returns the privacy profile of the given level.
func ProfileFor(level PrivacyLevel) (PrivacyProfile, error) {
	profile, ok := privacyProfiles[level]
	if !ok {
		return PrivacyProfile{}, fmt.Errorf("%w: %d", ErrUnknownPrivacyLevel, int(level))
	}
	profile.Features = append([]string{}, profile.Features...)
	return profile, nil
}

// AllProfiles returns the profiles of every level, sorted by level.
func AllProfiles() []PrivacyProfile {
	profiles := make([]PrivacyProfile, 0, len(privacyProfiles))
	for _, level := range []PrivacyLevel{
		PrivacyLevelBasic, PrivacyLevelAdvanced, PrivacyLevelMaximum,
	} {
		profile, _ := ProfileFor(level)
		profiles = append(profiles, profile)
	}
	return profiles
}
