package main

import (
	"fmt"

	"github.com/gridmarket/lem/accounting"
)

// printSummary prints the aggregate of all replayed rounds.
func printSummary(s *accounting.Summary, failures uint64) {
	fmt.Printf("rounds:            %d\n", s.Rounds)
	fmt.Printf("failed rounds:     %d\n", failures)
	fmt.Printf("no trade rounds:   %d\n", s.NoTradeRounds)
	fmt.Printf("imbalanced rounds: %d\n", s.ImbalancedRounds)
	fmt.Printf("fallback rounds:   %d\n", s.FallbackRounds)
	fmt.Printf("trades:            %d\n", s.Trades)
	fmt.Printf("volume:            %v\n", s.Volume)
	fmt.Printf("turnover:          %v\n", s.Turnover)
	fmt.Printf("seller revenue:    %v\n", s.SellerRevenue)
	fmt.Printf("surplus:           %v\n", s.Surplus)
	fmt.Printf("average price:     %v\n", s.AveragePrice)
}
