// Package optimization computes risk-adjusted allocations across bazaar items.
package optimization

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/aristath/bazaar-tracker/internal/domain"
	"github.com/aristath/bazaar-tracker/internal/events"
	"github.com/aristath/bazaar-tracker/internal/utils"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// DefaultTimeout bounds an allocation run when the request does not set one
const DefaultTimeout = 10 * time.Second

// AllocationRequest describes one optimizer run
type AllocationRequest struct {
	Items        []string      `json:"items"`
	Period       domain.Period `json:"period"`
	RiskAversion float64       `json:"risk_aversion"`
	Timeout      time.Duration `json:"-"`
}

// AllocationResult is the outcome of a successful run
type AllocationResult struct {
	RunID              string             `json:"run_id"`
	Items              []string           `json:"items"`
	Weights            map[string]float64 `json:"weights"`
	ExpectedReturn     float64            `json:"expected_return"`
	ExpectedVolatility float64            `json:"expected_volatility"`
	RiskAversion       float64            `json:"risk_aversion"`
	Observations       int                `json:"observations"`
	Method             string             `json:"method"`
	Status             string             `json:"status"`
}

// Service fetches price histories and runs the mean-variance optimizer
type Service struct {
	source    domain.MarketDataSource
	held      domain.HeldItemsProvider
	optimizer *MVOptimizer
	events    *events.Manager
	timeout   time.Duration
	log       zerolog.Logger
}

// NewService creates the allocation service. held may be nil when AllocateHoldings is unused.
func NewService(
	source domain.MarketDataSource,
	held domain.HeldItemsProvider,
	optimizer *MVOptimizer,
	eventManager *events.Manager,
	log zerolog.Logger,
) *Service {
	return &Service{
		source:    source,
		held:      held,
		optimizer: optimizer,
		events:    eventManager,
		timeout:   DefaultTimeout,
		log:       log.With().Str("service", "optimization").Logger(),
	}
}

// SetDefaultTimeout overrides DefaultTimeout
func (s *Service) SetDefaultTimeout(d time.Duration) {
	if d > 0 {
		s.timeout = d
	}
}

// Allocate validates the request, fetches sell-price histories concurrently
// and solves for the allocation.
func (s *Service) Allocate(ctx context.Context, req AllocationRequest) (*AllocationResult, error) {
	items := utils.Unique(req.Items)
	if len(items) < 2 {
		return nil, fmt.Errorf("%w: %d distinct items, need at least 2", domain.ErrInsufficientItems, len(items))
	}
	if err := validateRiskAversion(req.RiskAversion); err != nil {
		return nil, err
	}
	period := req.Period
	if period == "" {
		period = domain.PeriodDay
	}
	if period != domain.PeriodDay && period != domain.PeriodWeek {
		return nil, fmt.Errorf("%w: period %q must be day or week", domain.ErrInvalidInput, period)
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = s.timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	stop := utils.OperationTimer("allocate", timeout/2, s.log)
	defer stop()

	prices := make([][]float64, len(items))
	g, gctx := errgroup.WithContext(ctx)
	for i, item := range items {
		g.Go(func() error {
			points, err := s.source.GetHistory(gctx, item, period)
			if err != nil {
				return fmt.Errorf("history for %s: %w", item, err)
			}
			if len(points) == 0 {
				return fmt.Errorf("%w: empty history for %s", domain.ErrDataUnavailable, item)
			}
			prices[i] = domain.SellPrices(points)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.log.Warn().Err(err).Strs("items", items).Msg("Failed to fetch histories")
		return nil, err
	}

	result, err := s.AllocateFromPrices(ctx, items, prices, req.RiskAversion)
	if err != nil {
		s.log.Error().Err(err).Strs("items", items).Msg("Allocation failed")
		s.events.EmitError("optimization", err, "allocate")
		return nil, err
	}

	s.events.Emit("optimization", &events.AllocationComputedData{
		Weights:            result.Weights,
		RunID:              result.RunID,
		ExpectedReturn:     result.ExpectedReturn,
		ExpectedVolatility: result.ExpectedVolatility,
		RiskAversion:       result.RiskAversion,
	})

	s.log.Info().
		Str("run_id", result.RunID).
		Strs("items", items).
		Str("period", string(period)).
		Float64("risk_aversion", req.RiskAversion).
		Int("observations", result.Observations).
		Msg("Allocation computed")

	return result, nil
}

// AllocateHoldings allocates across the distinct items currently held
func (s *Service) AllocateHoldings(ctx context.Context, period domain.Period, riskAversion float64) (*AllocationResult, error) {
	if s.held == nil {
		return nil, fmt.Errorf("%w: no holdings provider configured", domain.ErrInvalidInput)
	}
	items, err := s.held.HeldItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list held items: %w", err)
	}
	return s.Allocate(ctx, AllocationRequest{Items: items, Period: period, RiskAversion: riskAversion})
}

// AllocateFromPrices runs alignment, return estimation and the solver on
// already-fetched price series. prices[i] belongs to items[i].
func (s *Service) AllocateFromPrices(ctx context.Context, items []string, prices [][]float64, riskAversion float64) (*AllocationResult, error) {
	if len(items) != len(prices) {
		return nil, fmt.Errorf("%w: %d items but %d price series", domain.ErrInvalidInput, len(items), len(prices))
	}
	if len(items) < 2 {
		return nil, fmt.Errorf("%w: %d items, need at least 2", domain.ErrInsufficientItems, len(items))
	}
	if err := validateRiskAversion(riskAversion); err != nil {
		return nil, err
	}

	moments, err := EstimateMoments(prices)
	if err != nil {
		return nil, err
	}

	solved, err := s.optimizer.Optimize(ctx, moments.Mu, moments.Cov, riskAversion)
	if err != nil {
		return nil, err
	}

	weights := make(map[string]float64, len(items))
	for i, item := range items {
		weights[item] = solved.Weights[i]
	}

	return &AllocationResult{
		RunID:              uuid.NewString(),
		Items:              append([]string(nil), items...),
		Weights:            weights,
		ExpectedReturn:     solved.ExpectedReturn,
		ExpectedVolatility: solved.ExpectedVolatility,
		RiskAversion:       riskAversion,
		Observations:       moments.Observations,
		Method:             solved.Method,
		Status:             solved.Status,
	}, nil
}

func validateRiskAversion(lambda float64) error {
	if math.IsNaN(lambda) || lambda < 0 || lambda > 1 {
		return fmt.Errorf("%w: risk aversion %v outside [0, 1]", domain.ErrInvalidInput, lambda)
	}
	return nil
}
