package matching

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// BoundaryPolicy decides what the McAfee mechanism does if there is no
// segment after the break-even point to derive its price from, not even
// after moving the break-even point one segment to the left.
type BoundaryPolicy uint8

const (
	// BoundaryPayAsClear degrades to pay-as-clear pricing on the segments
	// the classification executed.
	BoundaryPayAsClear BoundaryPolicy = iota

	// BoundaryNoTrade treats the round as one in which nothing trades.
	BoundaryNoTrade

	// BoundaryReject fails the round with ErrUnderdeterminedBoundary.
	BoundaryReject
)

// String returns the configuration name of the boundary policy.
func (b BoundaryPolicy) String() string {
	switch b {
	case BoundaryPayAsClear:
		return "pay_as_clear"

	case BoundaryNoTrade:
		return "no_trade"

	case BoundaryReject:
		return "reject"

	default:
		return fmt.Sprintf("<unknown_boundary=%d>", uint8(b))
	}
}

// ParseBoundaryPolicy parses the configuration name of a boundary policy.
func ParseBoundaryPolicy(s string) (BoundaryPolicy, error) {
	switch s {
	case "pay_as_clear", "":
		return BoundaryPayAsClear, nil

	case "no_trade":
		return BoundaryNoTrade, nil

	case "reject":
		return BoundaryReject, nil

	default:
		return 0, fmt.Errorf("unknown boundary policy %q", s)
	}
}

// McAfee is the budget-balanced double auction. It derives a candidate price
// from the first segment after the break-even point. If that price lies
// within the spread of the break-even segment, all executed segments trade
// at it. Otherwise the marginal segment is dropped, sellers receive the
// break-even offer and buyers pay the break-even bid. The difference is the
// surplus swept by the market operator.
type McAfee struct {
	cfg *MechanismConfig
}

// A compile-time constraint to ensure McAfee implements PricingMechanism.
var _ PricingMechanism = (*McAfee)(nil)

// Rule returns the pricing rule this mechanism implements.
//
// NOTE: This is part of the PricingMechanism interface.
func (m *McAfee) Rule() PricingRule {
	return McAfeeRule
}

// Price prices the given classified segments.
//
// NOTE: This is part of the PricingMechanism interface.
func (m *McAfee) Price(segments []Segment,
	clearing Clearing) (*ClearingResult, error) {

	if clearing.Type == NoExecution {
		return newEmptyResult(McAfeeRule, clearing), nil
	}

	// Without a segment after the break-even point we move the break-even
	// point one segment to the left, which then becomes the next segment.
	k := clearing.BreakEvenIndex
	if k+1 >= len(segments) {
		k--
	}
	if k < 0 {
		return m.boundary(segments, clearing)
	}

	var (
		bidK       = segments[k].BidPrice.Decimal
		offerK     = segments[k].OfferPrice.Decimal
		bidNext    = segments[k+1].BidPrice.Decimal
		offerNext  = segments[k+1].OfferPrice.Decimal
		candidateP = bidNext.Add(offerNext).Div(decimal.NewFromInt(2))
	)

	log.Debugf("McAfee break-even k=%d: bid_k=%v offer_k=%v p0=%v", k,
		bidK, offerK, candidateP)

	if offerK.LessThanOrEqual(candidateP) &&
		candidateP.LessThanOrEqual(bidK) {

		executed := segments[:k+1]
		result, err := priceUniform(
			m.cfg, McAfeeRule, clearing, executed, candidateP,
			executed[len(executed)-1].CumulativeQuantity,
		)
		if err != nil {
			return nil, err
		}
		result.BudgetBalanced = true

		return result, nil
	}

	// The candidate price is outside the spread, so the marginal segment
	// k is dropped and both sides trade at their own break-even price.
	executed := segments[:k]
	trades := make([]TradePair, 0, len(executed))
	quantity := decimal.Zero
	turnover, revenue := decimal.Zero, decimal.Zero
	for _, s := range executed {
		if isDegenerate(s) {
			continue
		}

		t := TradePair{
			Seller:        s.Seller,
			Buyer:         s.Buyer,
			Quantity:      s.Quantity,
			SellerRate:    offerK,
			BuyerRate:     bidK,
			SellerRevenue: s.Quantity.Mul(offerK),
			BuyerPayment:  s.Quantity.Mul(bidK),
		}
		t.BudgetBalanced = t.SellerRevenue.Equal(t.BuyerPayment)
		trades = append(trades, t)

		quantity = quantity.Add(s.Quantity)
		turnover = turnover.Add(t.BuyerPayment)
		revenue = revenue.Add(t.SellerRevenue)
	}

	if err := checkBudget(trades, m.cfg.Tolerance); err != nil {
		return nil, err
	}

	result := newEmptyResult(McAfeeRule, clearing)
	result.Quantity = quantity
	result.Price = bidK
	result.SellPrice = offerK
	result.TotalTurnover = turnover
	result.SellerRevenue = revenue
	result.Surplus = turnover.Sub(revenue)
	result.BudgetBalanced = result.Surplus.IsZero()
	result.TradePairs = trades

	log.Debugf("McAfee dropped marginal segment %d, surplus of %v swept",
		k, result.Surplus)

	return result, nil
}

// boundary applies the configured boundary policy.
func (m *McAfee) boundary(segments []Segment,
	clearing Clearing) (*ClearingResult, error) {

	log.Debugf("McAfee price undetermined for %d segments, applying "+
		"boundary policy %v", len(segments), m.cfg.Boundary)

	switch m.cfg.Boundary {
	case BoundaryPayAsClear:
		result, err := priceUniform(
			m.cfg, McAfeeRule, clearing,
			segments[:clearing.BreakEvenIndex+1], clearing.Price,
			clearing.Quantity,
		)
		if err != nil {
			return nil, err
		}
		result.BudgetBalanced = true
		result.BoundaryFallback = true

		return result, nil

	case BoundaryNoTrade:
		result := newEmptyResult(McAfeeRule, noClearing)
		result.BoundaryFallback = true

		return result, nil

	case BoundaryReject:
		return nil, ErrUnderdeterminedBoundary

	default:
		return nil, fmt.Errorf("unknown boundary policy %v",
			m.cfg.Boundary)
	}
}
