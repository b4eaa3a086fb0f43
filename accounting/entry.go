package accounting

import (
	"time"

	"github.com/google/uuid"
	"github.com/gridmarket/lem/venue"
	"github.com/gridmarket/lem/venue/matching"
	"github.com/shopspring/decimal"
)

type RoundEntry struct {
	// RoundID is the id of the round this entry refers to.
	RoundID uuid.UUID

	// Sequence is the sequence number of the round.
	Sequence uint64

	// Timestamp is the start of the trading interval of the round.
	Timestamp time.Time

	// Rule is the pricing rule the round was cleared with.
	Rule matching.PricingRule

	// Type is how much of the curve executed.
	Type matching.ExecutionType

	// Quantity is the traded volume.
	Quantity decimal.Decimal

	// Price is the reported clearing price.
	Price decimal.Decimal

	// Turnover is the total amount paid by buyers.
	Turnover decimal.Decimal

	// SellerRevenue is the total amount received by sellers.
	SellerRevenue decimal.Decimal

	// Surplus is the amount swept by the market operator. It's only
	// non-zero for McAfee rounds that aren't budget balanced.
	Surplus decimal.Decimal

	// Trades is the number of trade pairs of the round.
	Trades int

	// BudgetBalanced is true if buyer payments equal seller revenue.
	BudgetBalanced bool

	// BoundaryFallback is true if the McAfee boundary policy was applied.
	BoundaryFallback bool
}

// Traded returns true if at least one trade was made in the round.
func (e *RoundEntry) Traded() bool {
	return e.Trades > 0
}

// extractRoundEntry returns a new reporting entry line for the given round.
func extractRoundEntry(outcome *venue.RoundOutcome,
	timestamp time.Time) *RoundEntry {

	result := outcome.Result

	return &RoundEntry{
		RoundID:          outcome.ID,
		Sequence:         outcome.Sequence,
		Timestamp:        timestamp,
		Rule:             result.Rule,
		Type:             result.Type,
		Quantity:         result.Quantity,
		Price:            result.Price,
		Turnover:         result.TotalTurnover,
		SellerRevenue:    result.SellerRevenue,
		Surplus:          result.Surplus,
		Trades:           len(result.TradePairs),
		BudgetBalanced:   result.BudgetBalanced,
		BoundaryFallback: result.BoundaryFallback,
	}
}
