package matching

import (
	"fmt"

	"github.com/gridmarket/lem/order"
	"github.com/shopspring/decimal"
)

// PricingRule is the configuration surface that selects the pricing
// mechanism of the market.
type PricingRule uint8

const (
	// PayAsClearRule settles all trades at one uniform clearing price.
	PayAsClearRule PricingRule = iota

	// PayAsBidRule lets every buyer pay exactly its own bid.
	PayAsBidRule

	// McAfeeRule is the budget-balanced McAfee double auction.
	McAfeeRule
)

// String returns the configuration name of the pricing rule.
func (p PricingRule) String() string {
	switch p {
	case PayAsClearRule:
		return "pay_as_clear"

	case PayAsBidRule:
		return "pay_as_bid"

	case McAfeeRule:
		return "mcafee"

	default:
		return fmt.Sprintf("<unknown_rule=%d>", uint8(p))
	}
}

// ParsePricingRule parses the configuration name of a pricing rule. The
// short names of the historical configuration files are accepted as well.
func ParsePricingRule(s string) (PricingRule, error) {
	switch s {
	case "pay_as_clear", "pac":
		return PayAsClearRule, nil

	case "pay_as_bid", "pab":
		return PayAsBidRule, nil

	case "mcafee":
		return McAfeeRule, nil

	default:
		return 0, fmt.Errorf("unknown pricing rule %q", s)
	}
}

// TradePair is a single executed trade between one seller and one buyer.
// Under the uniform mechanisms both rates are equal and so are the seller
// revenue and the buyer payment. Only a McAfee round that is not budget
// balanced lets them diverge.
type TradePair struct {
	// Seller is the participant that delivers the energy.
	Seller order.ParticipantID

	// Buyer is the participant that receives the energy.
	Buyer order.ParticipantID

	// Quantity is the amount of energy traded.
	Quantity decimal.Decimal

	// SellerRate is the per unit price the seller receives.
	SellerRate decimal.Decimal

	// BuyerRate is the per unit price the buyer pays.
	BuyerRate decimal.Decimal

	// SellerRevenue is the total amount the seller receives.
	SellerRevenue decimal.Decimal

	// BuyerPayment is the total amount the buyer pays.
	BuyerPayment decimal.Decimal

	// BudgetBalanced is true if the seller revenue equals the buyer
	// payment.
	BudgetBalanced bool
}

// Rate returns the per unit price the buyer pays.
func (t TradePair) Rate() decimal.Decimal {
	return t.BuyerRate
}

// Payment returns the total amount the buyer pays.
func (t TradePair) Payment() decimal.Decimal {
	return t.BuyerPayment
}

// Imbalance returns the part of the buyer payment that doesn't reach the
// seller.
func (t TradePair) Imbalance() decimal.Decimal {
	return t.BuyerPayment.Sub(t.SellerRevenue)
}

// String returns a human-readable version of the trade pair.
func (t TradePair) String() string {
	return fmt.Sprintf("%v->%v q=%v pay=%v recv=%v", t.Seller, t.Buyer,
		t.Quantity, t.BuyerPayment, t.SellerRevenue)
}

// ClearingResult is the complete and internally consistent outcome of
// clearing a single round.
type ClearingResult struct {
	// Rule is the pricing rule the round was cleared with.
	Rule PricingRule

	// Type is how much of the curve executed.
	Type ExecutionType

	// Quantity is the total traded quantity. It always equals the sum
	// of the trade pair quantities.
	Quantity decimal.Decimal

	// Price is the per unit price buyers pay. For pay-as-bid this is the
	// volume weighted average buyer rate and only informational.
	Price decimal.Decimal

	// SellPrice is the per unit price sellers receive. It only differs
	// from Price in a McAfee round that isn't budget balanced.
	SellPrice decimal.Decimal

	// TotalTurnover is the sum of all buyer payments.
	TotalTurnover decimal.Decimal

	// SellerRevenue is the sum of all seller revenues.
	SellerRevenue decimal.Decimal

	// Surplus is the difference between buyer payments and seller
	// revenue. It is swept by the market operator and never paid back
	// to participants.
	Surplus decimal.Decimal

	// BreakEvenIndex is the index of the last executing segment as found
	// by the classification, or -1 if nothing executed.
	BreakEvenIndex int

	// BudgetBalanced is true if buyer payments equal seller revenue.
	BudgetBalanced bool

	// BoundaryFallback is true if the McAfee price couldn't be derived
	// and the configured boundary policy was applied instead.
	BoundaryFallback bool

	// TradePairs are the executed trades.
	TradePairs []TradePair

	// Segments is the merged curve the round was cleared on.
	Segments []Segment

	// TotalDemand is the total quantity of all bids.
	TotalDemand decimal.Decimal

	// TotalSupply is the total quantity of all offers.
	TotalSupply decimal.Decimal
}

// Executed returns true if at least one trade was made.
func (r *ClearingResult) Executed() bool {
	return len(r.TradePairs) > 0
}

// TradedQuantity returns the sum of all trade pair quantities.
func (r *ClearingResult) TradedQuantity() decimal.Decimal {
	total := decimal.Zero
	for _, t := range r.TradePairs {
		total = total.Add(t.Quantity)
	}

	return total
}

// PricingMechanism turns the executed part of a classified curve into
// concrete trade pairs.
type PricingMechanism interface {
	// Rule returns the pricing rule this mechanism implements.
	Rule() PricingRule

	// Price prices the given classified segments. If nothing executes
	// an empty result is returned, never an error.
	Price(segments []Segment, clearing Clearing) (*ClearingResult, error)
}

// NewPricingMechanism returns the mechanism for the given rule.
func NewPricingMechanism(rule PricingRule,
	cfg *MechanismConfig) (PricingMechanism, error) {

	switch rule {
	case PayAsClearRule:
		return &PayAsClear{cfg: cfg}, nil

	case PayAsBidRule:
		return &PayAsBid{cfg: cfg}, nil

	case McAfeeRule:
		return &McAfee{cfg: cfg}, nil

	default:
		return nil, fmt.Errorf("unknown pricing rule %v", rule)
	}
}

// MechanismConfig holds the settings shared by the pricing mechanisms.
type MechanismConfig struct {
	// Tolerance is the maximum drift between the turnover of the trade
	// pairs and the turnover derived from the clearing that is accepted
	// silently.
	Tolerance decimal.Decimal

	// StrictReconciliation turns a drift beyond the tolerance into an
	// error instead of a warning.
	StrictReconciliation bool

	// Boundary is the policy McAfee applies if it can't find the segment
	// it derives its price from.
	Boundary BoundaryPolicy
}

// newEmptyResult returns the result of a round in which nothing traded.
func newEmptyResult(rule PricingRule, clearing Clearing) *ClearingResult {
	return &ClearingResult{
		Rule:           rule,
		Type:           clearing.Type,
		BreakEvenIndex: clearing.BreakEvenIndex,
		BudgetBalanced: true,
		TradePairs:     []TradePair{},
	}
}

// uniformTrades creates one trade pair per executed segment, all settling
// at the same rate. It returns the trades together with the total traded
// quantity and turnover.
func uniformTrades(executed []Segment, rate decimal.Decimal) ([]TradePair,
	decimal.Decimal, decimal.Decimal) {

	return rateTrades(executed, func(Segment) decimal.Decimal {
		return rate
	})
}

// rateTrades creates one trade pair per executed segment, the buyer and the
// seller both settling at the rate returned by rateFn.
func rateTrades(executed []Segment,
	rateFn func(Segment) decimal.Decimal) ([]TradePair, decimal.Decimal,
	decimal.Decimal) {

	trades := make([]TradePair, 0, len(executed))
	quantity, turnover := decimal.Zero, decimal.Zero
	for _, s := range executed {
		if isDegenerate(s) {
			continue
		}

		rate := rateFn(s)
		payment := s.Quantity.Mul(rate)
		trades = append(trades, TradePair{
			Seller:         s.Seller,
			Buyer:          s.Buyer,
			Quantity:       s.Quantity,
			SellerRate:     rate,
			BuyerRate:      rate,
			SellerRevenue:  payment,
			BuyerPayment:   payment,
			BudgetBalanced: true,
		})

		quantity = quantity.Add(s.Quantity)
		turnover = turnover.Add(payment)
	}

	return trades, quantity, turnover
}

// isDegenerate returns true for segments that can't result in a trade.
func isDegenerate(s Segment) bool {
	return s.Buyer == "" || s.Seller == "" || !s.Quantity.IsPositive()
}
