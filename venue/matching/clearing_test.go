package matching

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestClassify tests the classification of curves into full, partial and no
// execution.
func TestClassify(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name          string
		segments      []Segment
		side          PriceSide
		expectedType  ExecutionType
		expectedQty   string
		expectedPrice string
		expectedBreak int
	}{{
		name:          "no segments",
		expectedType:  NoExecution,
		expectedQty:   "0",
		expectedPrice: "0",
		expectedBreak: -1,
	}, {
		name: "no bid meets an offer",
		segments: []Segment{
			seg(1, 1, 30, 51, "A", "X"),
		},
		expectedType:  NoExecution,
		expectedQty:   "0",
		expectedPrice: "0",
		expectedBreak: -1,
	}, {
		name: "all segments cross",
		segments: []Segment{
			seg(1, 1, 60, 35, "A", "Y"),
			seg(3, 2, 40, 39, "B", "X"),
		},
		expectedType:  FullExecution,
		expectedQty:   "3",
		expectedPrice: "40",
		expectedBreak: 1,
	}, {
		name: "all segments cross, offer side",
		segments: []Segment{
			seg(1, 1, 60, 35, "A", "Y"),
			seg(3, 2, 40, 39, "B", "X"),
		},
		side:          PriceFromOffer,
		expectedType:  FullExecution,
		expectedQty:   "3",
		expectedPrice: "39",
		expectedBreak: 1,
	}, {
		name: "curves cross",
		segments: []Segment{
			seg(1, 1, 54, 39, "A", "X"),
			seg(3, 2, 53, 39, "B", "X"),
			seg(5, 2, 38, 39, "C", "X"),
		},
		expectedType:  PartialExecution,
		expectedQty:   "3",
		expectedPrice: "53",
		expectedBreak: 1,
	}, {
		name: "curves cross, offer side",
		segments: []Segment{
			seg(1, 1, 54, 39, "A", "X"),
			seg(3, 2, 53, 39, "B", "X"),
			seg(5, 2, 38, 39, "C", "X"),
		},
		side:          PriceFromOffer,
		expectedType:  PartialExecution,
		expectedQty:   "3",
		expectedPrice: "39",
		expectedBreak: 1,
	}, {
		name: "equal bid and offer executes",
		segments: []Segment{
			seg(2, 2, 45, 45, "A", "X"),
			seg(3, 1, 44, 46, "B", "Y"),
		},
		expectedType:  PartialExecution,
		expectedQty:   "2",
		expectedPrice: "45",
		expectedBreak: 0,
	}}

	for _, tc := range testCases {
		tc := tc

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			clearing := Classify(tc.segments, tc.side)
			require.Equal(t, tc.expectedType, clearing.Type)
			require.Equal(t, tc.expectedBreak, clearing.BreakEvenIndex)
			requireDec(t, tc.expectedQty, clearing.Quantity)
			requireDec(t, tc.expectedPrice, clearing.Price)
		})
	}
}

// TestPolicyNames makes sure every configurable policy round trips through
// its configuration name.
func TestPolicyNames(t *testing.T) {
	t.Parallel()

	for _, rule := range []PricingRule{
		PayAsClearRule, PayAsBidRule, McAfeeRule,
	} {
		parsed, err := ParsePricingRule(rule.String())
		require.NoError(t, err)
		require.Equal(t, rule, parsed)
	}
	for _, side := range []PriceSide{PriceFromBid, PriceFromOffer} {
		parsed, err := ParsePriceSide(side.String())
		require.NoError(t, err)
		require.Equal(t, side, parsed)
	}
	for _, tb := range []TieBreak{TieBreakSubmission, TieBreakParticipant} {
		parsed, err := ParseTieBreak(tb.String())
		require.NoError(t, err)
		require.Equal(t, tb, parsed)
	}
	for _, p := range []SelfTradePolicy{SelfTradeFilter, SelfTradeReject} {
		parsed, err := ParseSelfTradePolicy(p.String())
		require.NoError(t, err)
		require.Equal(t, p, parsed)
	}
	for _, b := range []BoundaryPolicy{
		BoundaryPayAsClear, BoundaryNoTrade, BoundaryReject,
	} {
		parsed, err := ParseBoundaryPolicy(b.String())
		require.NoError(t, err)
		require.Equal(t, b, parsed)
	}

	_, err := ParsePricingRule("vickrey")
	require.Error(t, err)
	require.Equal(t, "<unknown_rule=9>", PricingRule(9).String())
	require.Equal(t, "<unknown_execution=7>", ExecutionType(7).String())
}
