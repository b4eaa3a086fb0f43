package accounting

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Report contains all the market data needed by accounting for a given
// period of time.
type Report struct {
	// Start is the time from which our report will be created, inclusive.
	Start time.Time

	// End is the time until which our report will be created, exclusive.
	End time.Time

	// RoundEntries contain the information of every round included in
	// the report, ordered by time.
	RoundEntries []*RoundEntry
}

// CreateReport creates an accounting report for a given period of time. A
// zero start or end leaves that side of the period open.
func CreateReport(cfg *Config) (*Report, error) {
	ctx := context.Background()

	rounds, err := cfg.GetRounds(ctx)
	if err != nil {
		return nil, err
	}

	report := &Report{
		Start:        cfg.Start,
		End:          cfg.End,
		RoundEntries: make([]*RoundEntry, 0, len(rounds)),
	}

	for _, entry := range rounds {
		if !cfg.Start.IsZero() && entry.Timestamp.Before(cfg.Start) {
			continue
		}
		if !cfg.End.IsZero() && !entry.Timestamp.Before(cfg.End) {
			continue
		}

		report.RoundEntries = append(report.RoundEntries, entry)
	}

	sort.SliceStable(report.RoundEntries, func(i, j int) bool {
		a, b := report.RoundEntries[i], report.RoundEntries[j]
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		return a.Sequence < b.Sequence
	})

	log.Debugf("Created report with %d of %d rounds",
		len(report.RoundEntries), len(rounds))

	return report, nil
}

// Summary aggregates all rounds of a report.
type Summary struct {
	// Rounds is the number of rounds in the report.
	Rounds int

	// NoTradeRounds is the number of rounds in which nothing traded.
	NoTradeRounds int

	// ImbalancedRounds is the number of rounds that were not budget
	// balanced.
	ImbalancedRounds int

	// FallbackRounds is the number of rounds in which the McAfee
	// boundary policy was applied.
	FallbackRounds int

	// Trades is the total number of trade pairs.
	Trades int

	// Volume is the total traded quantity.
	Volume decimal.Decimal

	// Turnover is the total amount paid by buyers.
	Turnover decimal.Decimal

	// SellerRevenue is the total amount received by sellers.
	SellerRevenue decimal.Decimal

	// Surplus is the total amount swept by the market operator.
	Surplus decimal.Decimal

	// AveragePrice is the volume weighted average price paid by buyers.
	AveragePrice decimal.Decimal
}

// Summarize aggregates the entries of the report.
func (r *Report) Summarize() *Summary {
	s := &Summary{
		Rounds: len(r.RoundEntries),
	}

	for _, entry := range r.RoundEntries {
		if !entry.Traded() {
			s.NoTradeRounds++
		}
		if !entry.BudgetBalanced {
			s.ImbalancedRounds++
		}
		if entry.BoundaryFallback {
			s.FallbackRounds++
		}

		s.Trades += entry.Trades
		s.Volume = s.Volume.Add(entry.Quantity)
		s.Turnover = s.Turnover.Add(entry.Turnover)
		s.SellerRevenue = s.SellerRevenue.Add(entry.SellerRevenue)
		s.Surplus = s.Surplus.Add(entry.Surplus)
	}

	if s.Volume.IsPositive() {
		s.AveragePrice = s.Turnover.Div(s.Volume)
	}

	return s
}
