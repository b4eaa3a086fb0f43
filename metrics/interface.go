package metrics

import (
	"context"
	"time"

	"github.com/gridmarket/lem/accounting"
	"github.com/gridmarket/lem/order"
	"github.com/shopspring/decimal"
)

// RoundMetric is the struct used for generating insights about the rounds
// cleared within a time window.
type RoundMetric struct {
	// Rounds is the number of rounds in the window.
	Rounds int

	// TradedRounds is the number of rounds in which at least one trade
	// was made.
	TradedRounds int

	// TotalVolume is the quantity traded in the window.
	TotalVolume decimal.Decimal

	// TotalTurnover is the amount buyers paid in the window.
	TotalTurnover decimal.Decimal

	// TotalSurplus is the amount swept by the operator in the window.
	TotalSurplus decimal.Decimal

	// MedianPrice is the median buyer price of all traded rounds.
	MedianPrice float64

	// MeanPrice is the mean buyer price of all traded rounds.
	MeanPrice float64

	// PriceStdDev is the standard deviation of the buyer price of all
	// traded rounds.
	PriceStdDev float64

	// MedianVolume is the median traded quantity of all traded rounds.
	MedianVolume float64
}

// ExecutionRate returns the share of rounds that traded.
func (m *RoundMetric) ExecutionRate() float64 {
	if m.Rounds == 0 {
		return 0
	}

	return float64(m.TradedRounds) / float64(m.Rounds)
}

// BookMetric is the struct used for generating insights about an order book.
type BookMetric struct {
	// NumBids is the number of bids in the book.
	NumBids int64

	// NumOffers is the number of offers in the book.
	NumOffers int64

	// BidVolume is the total quantity demanded.
	BidVolume decimal.Decimal

	// OfferVolume is the total quantity supplied.
	OfferVolume decimal.Decimal
}

// Manager interface for obtaining metrics.
type Manager interface {
	// GenerateBookMetric calculates the relevant BookMetric for the
	// orders of a single round.
	GenerateBookMetric(bids, offers []order.Order) *BookMetric

	// GenerateRoundMetric calculates the RoundMetric of all rounds
	// recorded within the given window, counted back from now. A zero
	// window covers all rounds.
	GenerateRoundMetric(ctx context.Context,
		window time.Duration) (*RoundMetric, error)

	// GenerateRoundMetrics calculates a RoundMetric for each of the
	// configured time duration buckets.
	GenerateRoundMetrics(ctx context.Context) (
		map[time.Duration]*RoundMetric, error)

	// GetRounds returns the cached rounds, refreshing them if they are
	// older than the refresh rate.
	GetRounds(ctx context.Context) ([]*accounting.RoundEntry, error)

	// GetTimeDurations returns the configured time duration buckets.
	GetTimeDurations() []time.Duration

	// GetRefreshRate returns the rate at which the round cache is
	// refreshed.
	GetRefreshRate() time.Duration

	// SetRefreshRate sets the rate at which the round cache is
	// refreshed.
	SetRefreshRate(newTimeDuration time.Duration)
}
