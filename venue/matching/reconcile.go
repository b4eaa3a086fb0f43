package matching

import (
	"github.com/shopspring/decimal"
)

// DefaultTolerance is the turnover drift that is accepted without a warning.
var DefaultTolerance = decimal.New(1, -3)

// reconcile compares the turnover derived from the clearing with the sum of
// the priced trade payments. Drift within the tolerance is only logged at
// debug level, larger drift is logged as a warning and only turned into an
// error in strict mode.
func reconcile(cfg *MechanismConfig, rule PricingRule, expected,
	actual decimal.Decimal) error {

	tolerance := cfg.Tolerance
	if tolerance.IsNegative() {
		tolerance = decimal.Zero
	}

	drift := expected.Sub(actual).Abs()
	if drift.IsZero() {
		return nil
	}

	if drift.LessThanOrEqual(tolerance) {
		log.Debugf("%v turnover drift %v within tolerance %v", rule,
			drift, tolerance)
		return nil
	}

	warning := &NumericToleranceWarning{
		Rule:      rule,
		Expected:  expected,
		Actual:    actual,
		Tolerance: tolerance,
	}
	if cfg.StrictReconciliation {
		return warning
	}

	log.Warnf("NumericToleranceWarning: %v", warning)
	return nil
}

// checkBudget makes sure no trade pays a seller more than its buyer paid.
func checkBudget(trades []TradePair, tolerance decimal.Decimal) error {
	for _, t := range trades {
		if t.BuyerPayment.Add(tolerance).LessThan(t.SellerRevenue) {
			return &ErrBudgetViolation{Trade: t}
		}
	}

	return nil
}
