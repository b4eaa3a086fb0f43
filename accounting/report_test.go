package accounting

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gridmarket/lem/order"
	"github.com/gridmarket/lem/venue"
	"github.com/gridmarket/lem/venue/matching"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// safeDecimal parses a string and returns a new decimal.Decimal without
// checking its value.
func safeDecimal(n string) decimal.Decimal {
	v, _ := decimal.NewFromString(n)
	return v
}

var start = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

// newRoundEntry returns a new round entry to test the report summary.
func newRoundEntry(minute int, trades int, qty, turnover, revenue string,
	fallback bool) *RoundEntry {

	return &RoundEntry{
		RoundID:          uuid.New(),
		Timestamp:        start.Add(time.Duration(minute) * time.Minute),
		Trades:           trades,
		Quantity:         safeDecimal(qty),
		Turnover:         safeDecimal(turnover),
		SellerRevenue:    safeDecimal(revenue),
		Surplus:          safeDecimal(turnover).Sub(safeDecimal(revenue)),
		BudgetBalanced:   turnover == revenue,
		BoundaryFallback: fallback,
	}
}

var summarizeTestCases = []struct {
	name              string
	report            Report
	expectedRounds    int
	expectedNoTrade   int
	expectedImbalance int
	expectedFallback  int
	expectedTrades    int
	expectedVolume    decimal.Decimal
	expectedTurnover  decimal.Decimal
	expectedRevenue   decimal.Decimal
	expectedSurplus   decimal.Decimal
	expectedAverage   decimal.Decimal
}{{
	name:            "empty report",
	report:          Report{},
	expectedVolume:  decimal.Zero,
	expectedSurplus: decimal.Zero,
	expectedAverage: decimal.Zero,
}, {
	name: "mixed rounds",
	report: Report{
		RoundEntries: []*RoundEntry{
			newRoundEntry(0, 2, "3", "159", "159", false),
			newRoundEntry(15, 0, "0", "0", "0", false),
			newRoundEntry(30, 1, "1", "53", "39", false),
			newRoundEntry(45, 1, "1", "50", "50", true),
		},
	},
	expectedRounds:    4,
	expectedNoTrade:   1,
	expectedImbalance: 1,
	expectedFallback:  1,
	expectedTrades:    4,
	expectedVolume:    safeDecimal("5"),
	expectedTurnover:  safeDecimal("262"),
	expectedRevenue:   safeDecimal("248"),
	expectedSurplus:   safeDecimal("14"),
	expectedAverage:   safeDecimal("52.4"),
}}

func TestSummarize(t *testing.T) {
	for _, tc := range summarizeTestCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			s := tc.report.Summarize()
			require.Equal(t, tc.expectedRounds, s.Rounds)
			require.Equal(t, tc.expectedNoTrade, s.NoTradeRounds)
			require.Equal(t, tc.expectedImbalance, s.ImbalancedRounds)
			require.Equal(t, tc.expectedFallback, s.FallbackRounds)
			require.Equal(t, tc.expectedTrades, s.Trades)
			require.True(t, tc.expectedVolume.Equal(s.Volume))
			require.True(t, tc.expectedTurnover.Equal(s.Turnover))
			require.True(t, tc.expectedRevenue.Equal(s.SellerRevenue))
			require.True(t, tc.expectedSurplus.Equal(s.Surplus))
			require.True(t, tc.expectedAverage.Equal(s.AveragePrice))
		})
	}
}

// TestRecorderReport records rounds cleared by the venue and creates a
// report for a sub period.
func TestRecorderReport(t *testing.T) {
	t.Parallel()

	now := start
	recorder := NewRecorder(func() time.Time {
		return now
	})

	cfg := matching.DefaultConfig()
	cfg.Rule = matching.McAfeeRule
	engine, err := matching.NewEngine(cfg)
	require.NoError(t, err)

	executor := venue.NewRoundExecutor(&venue.ExecutorConfig{
		Engine:      engine,
		RoundStorer: recorder,
	})

	bid := func(p, q int64, id string) order.Order {
		return order.NewBid(
			decimal.NewFromInt(p), decimal.NewFromInt(q),
			order.ParticipantID(id),
		)
	}
	offer := func(p, q int64, id string) order.Order {
		return order.NewOffer(
			decimal.NewFromInt(p), decimal.NewFromInt(q),
			order.ParticipantID(id),
		)
	}

	rounds := []struct {
		bids, offers []order.Order
	}{{
		bids: []order.Order{
			bid(54, 1, "A"), bid(53, 2, "B"), bid(38, 2, "C"),
		},
		offers: []order.Order{offer(39, 6, "X"), offer(51, 1, "Y")},
	}, {
		bids:   []order.Order{bid(30, 1, "A")},
		offers: []order.Order{offer(51, 1, "X")},
	}, {
		bids: []order.Order{
			bid(60, 1, "A"), bid(50, 1, "B"), bid(44, 1, "C"),
		},
		offers: []order.Order{
			offer(30, 1, "X"), offer(40, 1, "Y"), offer(46, 1, "Z"),
		},
	}}

	for i, r := range rounds {
		now = start.Add(time.Duration(i) * 15 * time.Minute)
		_, err := executor.Execute(context.Background(), r.bids, r.offers)
		require.NoError(t, err)
	}

	entries, err := recorder.Rounds(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 3)
	require.Equal(t, uint64(3), entries[2].Sequence)

	// The report only covers the last two rounds.
	report, err := CreateReport(&Config{
		Start:     start.Add(time.Minute),
		End:       start.Add(time.Hour),
		GetRounds: recorder.Rounds,
	})
	require.NoError(t, err)
	require.Len(t, report.RoundEntries, 2)
	require.Equal(t, matching.NoExecution, report.RoundEntries[0].Type)

	s := report.Summarize()
	require.Equal(t, 2, s.Rounds)
	require.Equal(t, 1, s.NoTradeRounds)
	require.Equal(t, 0, s.ImbalancedRounds)
	require.True(t, s.Volume.Equal(safeDecimal("2")))
	require.True(t, s.Turnover.Equal(safeDecimal("90")))
	require.True(t, s.AveragePrice.Equal(safeDecimal("45")))
}
