package matching

import (
	"github.com/shopspring/decimal"
)

// PayAsBid is the discriminatory mechanism. Every buyer pays exactly its own
// bid, the reported price is the volume weighted average of all buyer rates.
type PayAsBid struct {
	cfg *MechanismConfig
}

// A compile-time constraint to ensure PayAsBid implements PricingMechanism.
var _ PricingMechanism = (*PayAsBid)(nil)

// Rule returns the pricing rule this mechanism implements.
//
// NOTE: This is part of the PricingMechanism interface.
func (p *PayAsBid) Rule() PricingRule {
	return PayAsBidRule
}

// Price prices the given classified segments.
//
// NOTE: This is part of the PricingMechanism interface.
func (p *PayAsBid) Price(segments []Segment,
	clearing Clearing) (*ClearingResult, error) {

	result := newEmptyResult(PayAsBidRule, clearing)
	if clearing.Type == NoExecution {
		return result, nil
	}

	executed := segments[:clearing.BreakEvenIndex+1]
	trades, quantity, turnover := rateTrades(
		executed, func(s Segment) decimal.Decimal {
			return s.BidPrice.Decimal
		},
	)

	var vwap decimal.Decimal
	if quantity.IsPositive() {
		vwap = turnover.Div(quantity)
	}

	// The average is rounded by the division, so the turnover it implies
	// is only equal to the real one within the tolerance.
	err := reconcile(p.cfg, PayAsBidRule, vwap.Mul(quantity), turnover)
	if err != nil {
		return nil, err
	}

	result.Quantity = quantity
	result.Price = vwap
	result.SellPrice = vwap
	result.TotalTurnover = turnover
	result.SellerRevenue = turnover
	result.Surplus = decimal.Zero
	result.TradePairs = trades

	return result, nil
}
