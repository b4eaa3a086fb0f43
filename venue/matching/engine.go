package matching

import (
	"fmt"

	"github.com/gridmarket/lem/order"
	"github.com/shopspring/decimal"
)

// Config bundles every option that influences how a round is cleared. The
// output of the engine is a pure function of the orders of a round and this
// configuration.
type Config struct {
	// Rule selects the pricing mechanism.
	Rule PricingRule

	// TieBreak decides the order of equally priced orders.
	TieBreak TieBreak

	// PriceSide selects the side of the last executed segment that
	// defines the uniform clearing price.
	PriceSide PriceSide

	// Boundary is the McAfee boundary policy.
	Boundary BoundaryPolicy

	// SelfTrade decides whether self-trades are filtered or rejected.
	SelfTrade SelfTradePolicy

	// Tolerance is the accepted turnover reconciliation drift.
	Tolerance decimal.Decimal

	// StrictReconciliation turns reconciliation drift beyond the
	// tolerance into an error.
	StrictReconciliation bool
}

// DefaultConfig returns the configuration of a pay-as-clear market with all
// policies at their defaults.
func DefaultConfig() Config {
	return Config{
		Rule:      PayAsClearRule,
		TieBreak:  TieBreakSubmission,
		PriceSide: PriceFromBid,
		Boundary:  BoundaryPayAsClear,
		SelfTrade: SelfTradeFilter,
		Tolerance: DefaultTolerance,
	}
}

// String returns a human-readable version of the configuration.
func (c Config) String() string {
	return fmt.Sprintf("rule=%v tiebreak=%v priceside=%v boundary=%v "+
		"selftrade=%v tolerance=%v strict=%v", c.Rule, c.TieBreak,
		c.PriceSide, c.Boundary, c.SelfTrade, c.Tolerance,
		c.StrictReconciliation)
}

// Engine clears rounds of a single market. It holds no state besides its
// immutable configuration, so one engine can clear any number of rounds and
// independent engines can be used in parallel.
type Engine struct {
	cfg       Config
	mechanism PricingMechanism
}

// NewEngine creates a new clearing engine for the given configuration.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Tolerance.IsNegative() {
		return nil, fmt.Errorf("negative tolerance %v", cfg.Tolerance)
	}

	mechanism, err := NewPricingMechanism(cfg.Rule, &MechanismConfig{
		Tolerance:            cfg.Tolerance,
		StrictReconciliation: cfg.StrictReconciliation,
		Boundary:             cfg.Boundary,
	})
	if err != nil {
		return nil, err
	}

	return &Engine{
		cfg:       cfg,
		mechanism: mechanism,
	}, nil
}

// Config returns the configuration of the engine.
func (e *Engine) Config() Config {
	return e.cfg
}

// Clear clears a single round. It either returns a complete result or an
// error, never a partially computed result. A round in which nothing
// trades is a valid result with the type NoExecution.
func (e *Engine) Clear(bids, offers []order.Order) (*ClearingResult, error) {
	if err := order.Validate(bids, offers); err != nil {
		return nil, err
	}

	segments, err := e.Curve(bids, offers)
	if err != nil {
		return nil, err
	}

	result, err := e.Price(segments, e.Classify(segments))
	if err != nil {
		return nil, err
	}

	result.TotalDemand, result.TotalSupply = DemandSupply(bids, offers)

	return result, nil
}

// Curve builds the tradeable segments of a round.
func (e *Engine) Curve(bids, offers []order.Order) ([]Segment, error) {
	return BuildCurve(bids, offers, e.cfg.TieBreak, e.cfg.SelfTrade)
}

// Classify classifies the given segments.
func (e *Engine) Classify(segments []Segment) Clearing {
	return Classify(segments, e.cfg.PriceSide)
}

// Price prices the classified segments with the configured mechanism and
// makes sure the result is internally consistent.
func (e *Engine) Price(segments []Segment,
	clearing Clearing) (*ClearingResult, error) {

	result, err := e.mechanism.Price(segments, clearing)
	if err != nil {
		return nil, fmt.Errorf("unable to price round with %v: %w",
			e.cfg.Rule, err)
	}

	traded := result.TradedQuantity()
	if !traded.Equal(result.Quantity) {
		return nil, fmt.Errorf("traded quantity %v doesn't match "+
			"clearing quantity %v", traded, result.Quantity)
	}

	result.Segments = segments

	log.Debugf("Cleared round with %v: type=%v quantity=%v price=%v "+
		"trades=%d", e.cfg.Rule, result.Type, result.Quantity,
		result.Price, len(result.TradePairs))

	return result, nil
}

// DemandSupply returns the total quantity of all bids and all offers and
// logs which side of the market is long.
func DemandSupply(bids, offers []order.Order) (decimal.Decimal,
	decimal.Decimal) {

	demand := order.TotalQuantity(bids)
	supply := order.TotalQuantity(offers)

	switch demand.Cmp(supply) {
	case 1:
		log.Debugf("Demand %v exceeds supply %v", demand, supply)

	case -1:
		log.Debugf("Supply %v exceeds demand %v", supply, demand)

	default:
		log.Debugf("Demand and supply balanced at %v", demand)
	}

	return demand, supply
}
