package matching

import (
	"fmt"
	"strings"
	"testing"
	"testing/quick"

	"github.com/davecgh/go-spew/spew"
	"github.com/gridmarket/lem/order"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T, rule PricingRule) *Engine {
	t.Helper()

	cfg := DefaultConfig()
	cfg.Rule = rule
	cfg.StrictReconciliation = true

	engine, err := NewEngine(cfg)
	require.NoError(t, err)

	return engine
}

// TestEngineScenarios clears the reference order books with every pricing
// rule.
func TestEngineScenarios(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name          string
		rule          PricingRule
		bids          []order.Order
		offers        []order.Order
		expectedType  ExecutionType
		expectedQty   string
		expectedPrice string
		trades        []expectedTrade
	}{{
		// The third unit pairs the 40 bid with the 51 offer, so only
		// two units clear at the highest executed bid.
		name: "two step book pay as clear",
		rule: PayAsClearRule,
		bids: []order.Order{
			bid(60, 1, "A"), bid(40, 2, "B"),
		},
		offers: []order.Order{
			offer(39, 2, "X"), offer(51, 1, "Y"),
		},
		expectedType:  PartialExecution,
		expectedQty:   "2",
		expectedPrice: "40",
		trades: []expectedTrade{
			{"A", "X", "1", "40", "40"},
			{"B", "X", "1", "40", "40"},
		},
	}, {
		name: "full execution pay as clear",
		rule: PayAsClearRule,
		bids: []order.Order{
			bid(60, 1, "A"), bid(40, 2, "B"),
		},
		offers: []order.Order{
			offer(39, 2, "X"), offer(35, 1, "Y"),
		},
		expectedType:  FullExecution,
		expectedQty:   "3",
		expectedPrice: "40",
		trades: []expectedTrade{
			{"A", "Y", "1", "40", "40"},
			{"B", "X", "2", "40", "40"},
		},
	}, {
		name: "full execution pay as bid",
		rule: PayAsBidRule,
		bids: []order.Order{
			bid(60, 1, "A"), bid(40, 2, "B"),
		},
		offers: []order.Order{
			offer(39, 2, "X"), offer(35, 1, "Y"),
		},
		expectedType:  FullExecution,
		expectedQty:   "3",
		expectedPrice: "46.6666666666666667",
		trades: []expectedTrade{
			{"A", "Y", "1", "60", "60"},
			{"B", "X", "2", "40", "40"},
		},
	}, {
		// The McAfee price derived from the last segment is 39.5,
		// which lies within the spread of the first one.
		name: "full execution mcafee",
		rule: McAfeeRule,
		bids: []order.Order{
			bid(60, 1, "A"), bid(40, 2, "B"),
		},
		offers: []order.Order{
			offer(39, 2, "X"), offer(35, 1, "Y"),
		},
		expectedType:  FullExecution,
		expectedQty:   "1",
		expectedPrice: "39.5",
		trades: []expectedTrade{
			{"A", "Y", "1", "39.5", "39.5"},
		},
	}, {
		name:          "no execution",
		rule:          PayAsClearRule,
		bids:          []order.Order{bid(30, 1, "A")},
		offers:        []order.Order{offer(51, 1, "X")},
		expectedType:  NoExecution,
		expectedQty:   "0",
		expectedPrice: "0",
	}, {
		name:          "no execution mcafee",
		rule:          McAfeeRule,
		bids:          []order.Order{bid(30, 1, "A")},
		offers:        []order.Order{offer(51, 1, "X")},
		expectedType:  NoExecution,
		expectedQty:   "0",
		expectedPrice: "0",
	}, {
		name: "partial execution pay as clear",
		rule: PayAsClearRule,
		bids: []order.Order{
			bid(54, 1, "A"), bid(53, 2, "B"), bid(38, 2, "C"),
		},
		offers: []order.Order{
			offer(39, 6, "X"), offer(51, 1, "Y"),
		},
		expectedType:  PartialExecution,
		expectedQty:   "3",
		expectedPrice: "53",
		trades: []expectedTrade{
			{"A", "X", "1", "53", "53"},
			{"B", "X", "2", "53", "53"},
		},
	}, {
		name: "partial execution mcafee",
		rule: McAfeeRule,
		bids: []order.Order{
			bid(54, 1, "A"), bid(53, 2, "B"), bid(38, 2, "C"),
		},
		offers: []order.Order{
			offer(39, 6, "X"), offer(51, 1, "Y"),
		},
		expectedType:  PartialExecution,
		expectedQty:   "1",
		expectedPrice: "53",
		trades: []expectedTrade{
			{"A", "X", "1", "53", "39"},
		},
	}, {
		name: "self-trade filtered",
		rule: PayAsClearRule,
		bids: []order.Order{bid(50, 2, "X")},
		offers: []order.Order{
			offer(40, 1, "X"), offer(42, 1, "Y"),
		},
		expectedType:  FullExecution,
		expectedQty:   "1",
		expectedPrice: "50",
		trades: []expectedTrade{
			{"X", "Y", "1", "50", "50"},
		},
	}}

	for _, tc := range testCases {
		tc := tc

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			engine := newTestEngine(t, tc.rule)
			result, err := engine.Clear(tc.bids, tc.offers)
			require.NoError(t, err)

			require.Equal(t, tc.rule, result.Rule)
			require.Equal(t, tc.expectedType, result.Type)
			requireDec(t, tc.expectedQty, result.Quantity)
			requireDec(t, tc.expectedPrice, result.Price)
			requireTrades(t, tc.trades, result.TradePairs)
			require.True(
				t, result.TotalDemand.Equal(
					order.TotalQuantity(tc.bids),
				),
			)
			require.True(
				t, result.TotalSupply.Equal(
					order.TotalQuantity(tc.offers),
				),
			)

			for _, trade := range result.TradePairs {
				require.NotEqual(t, trade.Buyer, trade.Seller)
			}
		})
	}
}

// TestEngineValidation makes sure malformed rounds are rejected before
// anything is cleared.
func TestEngineValidation(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(t, PayAsClearRule)

	_, err := engine.Clear(
		[]order.Order{bid(50, 0, "A")}, []order.Order{offer(40, 1, "X")},
	)
	require.ErrorIs(t, err, order.ErrNonPositiveQuantity)

	_, err = engine.Clear(
		[]order.Order{bid(50, 1, "")}, []order.Order{offer(40, 1, "X")},
	)
	require.ErrorIs(t, err, order.ErrMissingParticipant)

	cfg := DefaultConfig()
	cfg.SelfTrade = SelfTradeReject
	engine, err = NewEngine(cfg)
	require.NoError(t, err)

	_, err = engine.Clear(
		[]order.Order{bid(50, 2, "X")},
		[]order.Order{offer(40, 1, "X"), offer(42, 1, "Y")},
	)
	require.ErrorIs(t, err, order.ErrSelfTrade)

	cfg = DefaultConfig()
	cfg.Rule = McAfeeRule
	cfg.Boundary = BoundaryReject
	engine, err = NewEngine(cfg)
	require.NoError(t, err)

	_, err = engine.Clear(
		[]order.Order{bid(50, 1, "A")}, []order.Order{offer(40, 1, "X")},
	)
	require.ErrorIs(t, err, ErrUnderdeterminedBoundary)

	cfg = DefaultConfig()
	cfg.Rule = PricingRule(42)
	_, err = NewEngine(cfg)
	require.Error(t, err)
}

// resultDigest renders every field of a result that is visible to callers
// so two results can be compared value by value.
func resultDigest(r *ClearingResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%v %v q=%v p=%v sp=%v to=%v rev=%v sur=%v k=%d "+
		"bb=%v fb=%v d=%v s=%v\n", r.Rule, r.Type, r.Quantity, r.Price,
		r.SellPrice, r.TotalTurnover, r.SellerRevenue, r.Surplus,
		r.BreakEvenIndex, r.BudgetBalanced, r.BoundaryFallback,
		r.TotalDemand, r.TotalSupply)
	for _, t := range r.TradePairs {
		fmt.Fprintf(&b, "%v %v %v %v %v\n", t, t.BuyerRate,
			t.SellerRate, t.SellerRevenue, t.BudgetBalanced)
	}
	for _, s := range r.Segments {
		fmt.Fprintf(&b, "%v\n", s)
	}

	return b.String()
}

// priceMatchesTurnover returns true if the reported price of an executed
// round is the turnover per traded unit.
func priceMatchesTurnover(r *ClearingResult) bool {
	if !r.Quantity.IsPositive() {
		return true
	}

	drift := r.Price.Mul(r.Quantity).Sub(r.TotalTurnover).Abs()

	return drift.LessThanOrEqual(DefaultTolerance)
}

// paysOwnBid returns true if every trade of a pay-as-bid result settles at
// the bid price of the segment it was created from.
func paysOwnBid(r *ClearingResult) bool {
	if r.Type == NoExecution {
		return len(r.TradePairs) == 0
	}

	var executed []Segment
	for _, s := range r.Segments[:r.BreakEvenIndex+1] {
		if !isDegenerate(s) {
			executed = append(executed, s)
		}
	}
	if len(executed) != len(r.TradePairs) {
		return false
	}

	for i, trade := range r.TradePairs {
		s := executed[i]
		switch {
		case trade.Buyer != s.Buyer, trade.Seller != s.Seller:
			return false

		case !trade.Quantity.Equal(s.Quantity):
			return false

		case !trade.BuyerRate.Equal(s.BidPrice.Decimal):
			return false

		case !trade.SellerRate.Equal(trade.BuyerRate):
			return false
		}
	}

	return true
}

// TestEngineProperties checks volume conservation, the uniform price of
// pay-as-clear, the own bid payments of pay-as-bid, the price/turnover
// relation, the budget invariant of McAfee and the determinism of the
// engine for random order books.
func TestEngineProperties(t *testing.T) {
	t.Parallel()

	engines := []*Engine{
		newTestEngine(t, PayAsClearRule),
		newTestEngine(t, PayAsBidRule),
		newTestEngine(t, McAfeeRule),
	}

	scenario := func(book orderBook) bool {
		for _, engine := range engines {
			result, err := engine.Clear(book.Bids, book.Offers)
			if err != nil {
				t.Logf("unable to clear %v: %v", spew.Sdump(book),
					err)
				return false
			}

			if !result.TradedQuantity().Equal(result.Quantity) {
				t.Logf("volume not conserved: %v",
					spew.Sdump(result))
				return false
			}
			if result.Type == NoExecution && result.Executed() {
				t.Logf("trades without execution")
				return false
			}

			for _, trade := range result.TradePairs {
				balanced := trade.BuyerPayment.Equal(
					trade.SellerRevenue,
				)
				switch {
				case trade.BuyerPayment.LessThan(
					trade.SellerRevenue,
				):
					t.Logf("budget deficit: %v", trade)
					return false

				case balanced != trade.BudgetBalanced:
					t.Logf("wrong budget flag: %v", trade)
					return false

				case engine.Config().Rule == PayAsClearRule &&
					!trade.BuyerRate.Equal(result.Price):

					t.Logf("non uniform price: %v", trade)
					return false
				}
			}

			if !priceMatchesTurnover(result) {
				t.Logf("price doesn't match turnover: %v",
					spew.Sdump(result))
				return false
			}
			if engine.Config().Rule == PayAsBidRule &&
				!paysOwnBid(result) {

				t.Logf("buyer doesn't pay its bid: %v",
					spew.Sdump(result))
				return false
			}

			again, err := engine.Clear(book.Bids, book.Offers)
			if err != nil {
				return false
			}
			if resultDigest(result) != resultDigest(again) {
				t.Logf("clearing not deterministic")
				return false
			}
		}

		return true
	}

	quickCfg := quick.Config{
		MaxCount: 500,
		Values:   genOrderBook,
	}
	if err := quick.Check(scenario, &quickCfg); err != nil {
		t.Fatalf("clearing property violated: %v", err)
	}
}
