package matching

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrUnderdeterminedBoundary is returned by the McAfee mechanism if
	// the segment its price is derived from doesn't exist and the market
	// is configured to reject such rounds.
	ErrUnderdeterminedBoundary = errors.New("mcafee price undetermined at " +
		"curve boundary")

	// ErrBudgetDeficit is returned if a priced trade would pay the seller
	// more than the buyer pays. This can only be caused by a bug in the
	// pricing logic.
	ErrBudgetDeficit = errors.New("seller revenue exceeds buyer payment")
)

// NumericToleranceWarning is produced when the turnover of the priced trade
// pairs drifts from the turnover derived from the clearing by more than the
// configured tolerance. It is logged only, unless the engine runs with
// strict reconciliation.
type NumericToleranceWarning struct {
	// Rule is the pricing rule that produced the drift.
	Rule PricingRule

	// Expected is the turnover derived from the clearing.
	Expected decimal.Decimal

	// Actual is the sum of all trade pair payments.
	Actual decimal.Decimal

	// Tolerance is the configured maximum drift.
	Tolerance decimal.Decimal
}

// Drift returns the absolute difference between the expected and the
// actual turnover.
func (w *NumericToleranceWarning) Drift() decimal.Decimal {
	return w.Expected.Sub(w.Actual).Abs()
}

// Error implements the error interface.
func (w *NumericToleranceWarning) Error() string {
	return fmt.Sprintf("%v turnover drift %v exceeds tolerance %v "+
		"(expected=%v, actual=%v)", w.Rule, w.Drift(), w.Tolerance,
		w.Expected, w.Actual)
}

// ErrBudgetViolation is returned when a single trade breaks the budget
// invariant.
type ErrBudgetViolation struct {
	// Trade is the offending trade pair.
	Trade TradePair
}

// Error implements the error interface.
func (e *ErrBudgetViolation) Error() string {
	return fmt.Sprintf("trade %v: %v", e.Trade, ErrBudgetDeficit)
}

// Unwrap returns the sentinel error of the violation.
func (e *ErrBudgetViolation) Unwrap() error {
	return ErrBudgetDeficit
}
