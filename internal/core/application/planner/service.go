// Package planner builds the multi-hop route of a private transfer through
// freshly derived stealth addresses.
package planner

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/tdex-stealth/internal/core/application/allocator"
	"github.com/tdex-network/tdex-stealth/internal/core/domain"
	"github.com/tdex-network/tdex-stealth/internal/core/ports"
	"github.com/tdex-network/tdex-stealth/pkg/mathutil"
	"github.com/tdex-network/tdex-stealth/pkg/randutil"
	"github.com/tdex-network/tdex-stealth/pkg/stealth"
)

const (
	// DefaultHopFee is the network fee paid for every hop, in base units.
	DefaultHopFee = 500
	// DefaultMinHopAmount is the min amount a hop can move, in base units.
	DefaultMinHopAmount = 1000
	// DefaultFeeDriftBps is the max share of the amount, in basis points, that
	// intermediate fees can take from what the recipient receives.
	DefaultFeeDriftBps = 100
)

// Config holds the fee model of the routes.
type Config struct {
	HopFee       uint64
	MinHopAmount uint64
	FeeDriftBps  uint64
}

func (c Config) validate() error {
	if c.MinHopAmount == 0 {
		return fmt.Errorf("min hop amount must be greater than zero")
	}
	if c.FeeDriftBps > mathutil.TenThousands {
		return fmt.Errorf(
			"fee drift must be in range [0, %d] basis points", mathutil.TenThousands,
		)
	}
	return nil
}

// DefaultConfig ...
func DefaultConfig() Config {
	return Config{
		HopFee:       DefaultHopFee,
		MinHopAmount: DefaultMinHopAmount,
		FeeDriftBps:  DefaultFeeDriftBps,
	}
}

// PlanRequest is the input of Service.Plan.
type PlanRequest struct {
	Sender    string
	Recipient string
	Amount    uint64
	Profile   domain.PrivacyProfile
	Session   ports.WalletSession
}

// Service is the route planner. Apart from the path allocator it holds no
// mutable state and can be used concurrently.
type Service struct {
	deriver   *stealth.Deriver
	allocator *allocator.PathAllocator
	rand      randutil.Source
	cfg       Config
}

// NewService returns a new planner. Hop counts are drawn from the given
// random source.
func NewService(
	deriver *stealth.Deriver,
	pathAllocator *allocator.PathAllocator,
	rand randutil.Source,
	cfg Config,
) (*Service, error) {
	if deriver == nil {
		return nil, fmt.Errorf("missing stealth address deriver")
	}
	if pathAllocator == nil {
		return nil, fmt.Errorf("missing path allocator")
	}
	if rand == nil {
		return nil, fmt.Errorf("missing random source")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Service{deriver, pathAllocator, rand, cfg}, nil
}

// Config returns the fee model of the planner.
func (s *Service) Config() Config {
	return s.cfg
}

// MaxDrift returns the max amount intermediate fees can take from amount.
func (s *Service) MaxDrift(amount uint64) uint64 {
	return mathutil.BasisPointsOf(amount, s.cfg.FeeDriftBps)
}

// Plan returns the route for the given request. Without mixing the route is a
// single direct hop, otherwise the hop count is drawn uniformly from the
// profile range and lowered to the largest feasible value if the amount
// cannot afford it. Fresh path indexes are reserved for every intermediate
// stealth address.
func (s *Service) Plan(ctx context.Context, req PlanRequest) (*domain.Route, error) {
	if req.Session == nil {
		return nil, fmt.Errorf("missing wallet session")
	}
	if req.Amount == 0 {
		return nil, fmt.Errorf("%w: amount must be greater than zero", domain.ErrInvalidRequest)
	}

	hopCount := 1
	if req.Profile.RequiresMixing {
		hopCount = randutil.IntInRange(
			s.rand, req.Profile.HopCountRange.Min, req.Profile.HopCountRange.Max,
		)
	}

	feasibleHopCount := s.maxFeasibleHopCount(req.Amount, hopCount)
	if feasibleHopCount <= 0 {
		return nil, fmt.Errorf(
			"%w: amount %d is below the min hop amount %d",
			domain.ErrAmountTooSmallForRoute, req.Amount, s.cfg.MinHopAmount,
		)
	}

	intermediates, err := s.deriveIntermediates(ctx, req.Session, feasibleHopCount-1)
	if err != nil {
		return nil, err
	}

	route := buildRoute(req, s.cfg.HopFee, intermediates)
	route.Reduced = feasibleHopCount < hopCount
	if err := route.Validate(s.MaxDrift(req.Amount)); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"session": req.Session.ID(),
		"level":   req.Profile.Level,
		"hops":    route.HopCount(),
		"reduced": route.Reduced,
	}).Debug("planner: route planned")
	return route, nil
}

// maxFeasibleHopCount returns the largest hop count not greater than
// hopCount for which every hop moves at least MinHopAmount and intermediate
// fees stay within drift tolerance. It returns 0 if not even a direct hop is
// feasible.
func (s *Service) maxFeasibleHopCount(amount uint64, hopCount int) int {
	maxDrift := s.MaxDrift(amount)
	for h := hopCount; h >= 1; h-- {
		fees, overflow := mathutil.Mul(uint64(h-1), s.cfg.HopFee)
		if overflow || fees >= amount {
			continue
		}
		if fees > maxDrift {
			continue
		}
		if amount-fees < s.cfg.MinHopAmount {
			continue
		}
		return h
	}
	return 0
}

func (s *Service) deriveIntermediates(
	ctx context.Context, session ports.WalletSession, n int,
) ([]domain.StealthAddress, error) {
	if n <= 0 {
		return nil, nil
	}

	indexes, err := s.allocator.Next(ctx, session.ID(), n)
	if err != nil {
		return nil, err
	}

	seed, err := session.Seed(ctx)
	if err != nil {
		return nil, err
	}

	intermediates := make([]domain.StealthAddress, 0, n)
	for _, index := range indexes {
		path, err := stealth.NewStealthPath(session.Account(), index)
		if err != nil {
			return nil, err
		}
		key, err := s.deriver.Derive(seed, path)
		if err != nil {
			return nil, err
		}
		key.Zero()

		intermediates = append(intermediates, domain.StealthAddress{
			Address:        key.Address,
			DerivationPath: path.String(),
			CreatedAtIndex: index,
		})
	}
	return intermediates, nil
}

// buildRoute chains sender, intermediates and recipient. Hop 0 carries the
// whole amount, the sender paying its fee on top, while every intermediate
// pays the fee of the hop it originates out of what it received.
func buildRoute(
	req PlanRequest, hopFee uint64, intermediates []domain.StealthAddress,
) *domain.Route {
	hopCount := len(intermediates) + 1
	route := &domain.Route{
		Sender:        req.Sender,
		Recipient:     req.Recipient,
		Amount:        req.Amount,
		HopFee:        hopFee,
		Hops:          make([]domain.Hop, 0, hopCount),
		Intermediates: intermediates,
	}

	from, fromPath := req.Sender, ""
	amount := req.Amount
	for i := 0; i < hopCount; i++ {
		hop := domain.Hop{
			Index:    i,
			From:     from,
			FromPath: fromPath,
			Amount:   amount,
			Fee:      hopFee,
			IsFinal:  i == hopCount-1,
		}
		if hop.IsFinal {
			hop.To = req.Recipient
		} else {
			hop.To = intermediates[i].Address
			from, fromPath = intermediates[i].Address, intermediates[i].DerivationPath
			amount -= hopFee
		}
		route.Hops = append(route.Hops, hop)
	}
	return route
}
