package matching

import (
	"github.com/shopspring/decimal"
)

// PayAsClear is the uniform price mechanism. Every executed segment trades
// at the clearing price found by the classification.
type PayAsClear struct {
	cfg *MechanismConfig
}

// A compile-time constraint to ensure PayAsClear implements
// PricingMechanism.
var _ PricingMechanism = (*PayAsClear)(nil)

// Rule returns the pricing rule this mechanism implements.
//
// NOTE: This is part of the PricingMechanism interface.
func (p *PayAsClear) Rule() PricingRule {
	return PayAsClearRule
}

// Price prices the given classified segments.
//
// NOTE: This is part of the PricingMechanism interface.
func (p *PayAsClear) Price(segments []Segment,
	clearing Clearing) (*ClearingResult, error) {

	if clearing.Type == NoExecution {
		return newEmptyResult(PayAsClearRule, clearing), nil
	}

	return priceUniform(
		p.cfg, PayAsClearRule, clearing,
		segments[:clearing.BreakEvenIndex+1], clearing.Price,
		clearing.Quantity,
	)
}

// priceUniform creates a result in which every executed segment trades at
// the same rate. The turnover is reconciled against the expected quantity
// traded at that rate.
func priceUniform(cfg *MechanismConfig, rule PricingRule, clearing Clearing,
	executed []Segment, rate,
	expectedQuantity decimal.Decimal) (*ClearingResult, error) {

	trades, quantity, turnover := uniformTrades(executed, rate)

	err := reconcile(cfg, rule, expectedQuantity.Mul(rate), turnover)
	if err != nil {
		return nil, err
	}

	result := newEmptyResult(rule, clearing)
	result.Quantity = quantity
	result.Price = rate
	result.SellPrice = rate
	result.TotalTurnover = turnover
	result.SellerRevenue = turnover
	result.Surplus = decimal.Zero
	result.TradePairs = trades

	return result, nil
}
