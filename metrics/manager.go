package metrics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gridmarket/lem/accounting"
	"github.com/gridmarket/lem/order"
	"github.com/montanaflynn/stats"
)

// ManagerConfig contains all of the required dependencies for the Manager
// to carry out its duties.
type ManagerConfig struct {
	// Rounds returns all rounds recorded by the market.
	Rounds func(context.Context) ([]*accounting.RoundEntry, error)

	// Clock returns the current time. The wall clock is used if nil.
	Clock func() time.Time

	// RefreshRate is the rate at which we'll repopulate the round cache.
	RefreshRate time.Duration

	// TimeDurationBuckets signify the windows we'll generate metrics
	// for. Ex: 1 day, 1 week, etc...
	TimeDurationBuckets []time.Duration
}

// manager is responsible for the management of metrics.
type manager struct {
	cfg ManagerConfig

	mu          sync.Mutex
	rounds      []*accounting.RoundEntry
	lastUpdated time.Time
}

// Compile time assertion that manager implements the Manager interface.
var _ Manager = (*manager)(nil)

// NewManager instantiates a new Manager backed by the given config.
func NewManager(cfg *ManagerConfig) (Manager, error) {
	if cfg.Rounds == nil {
		return nil, fmt.Errorf("metrics manager needs a round source")
	}

	m := &manager{
		cfg: *cfg,
	}
	if m.cfg.Clock == nil {
		m.cfg.Clock = time.Now
	}

	return m, nil
}

// needsRefresh returns true if the round cache is stale.
//
// NOTE: The mutex must be held when calling this method.
func (m *manager) needsRefresh() bool {
	return m.rounds == nil ||
		m.cfg.Clock().Sub(m.lastUpdated) >= m.cfg.RefreshRate
}

// GetRounds returns the cached rounds, refreshing them if they are older than
// the refresh rate.
//
// NOTE: This is part of the Manager interface.
func (m *manager) GetRounds(ctx context.Context) ([]*accounting.RoundEntry,
	error) {

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.needsRefresh() {
		return m.rounds, nil
	}

	rounds, err := m.cfg.Rounds(ctx)
	if err != nil {
		return nil, err
	}
	if rounds == nil {
		rounds = []*accounting.RoundEntry{}
	}

	m.rounds = rounds
	m.lastUpdated = m.cfg.Clock()

	log.Tracef("Refreshed metrics cache with %d rounds", len(rounds))

	return m.rounds, nil
}

// GenerateBookMetric calculates the relevant BookMetric for the orders of a
// single round.
//
// NOTE: This is part of the Manager interface.
func (m *manager) GenerateBookMetric(bids, offers []order.Order) *BookMetric {
	return &BookMetric{
		NumBids:     int64(len(bids)),
		NumOffers:   int64(len(offers)),
		BidVolume:   order.TotalQuantity(bids),
		OfferVolume: order.TotalQuantity(offers),
	}
}

// GenerateRoundMetric calculates the RoundMetric of all rounds recorded within
// the given window.
//
// NOTE: This is part of the Manager interface.
func (m *manager) GenerateRoundMetric(ctx context.Context,
	window time.Duration) (*RoundMetric, error) {

	rounds, err := m.GetRounds(ctx)
	if err != nil {
		return nil, err
	}

	var cutoff time.Time
	if window > 0 {
		cutoff = m.cfg.Clock().Add(-window)
	}

	var inWindow []*accounting.RoundEntry
	for _, entry := range rounds {
		if !cutoff.IsZero() && entry.Timestamp.Before(cutoff) {
			continue
		}
		inWindow = append(inWindow, entry)
	}

	return GenerateRoundMetric(inWindow)
}

// GenerateRoundMetrics calculates a RoundMetric for each of the configured
// time duration buckets.
//
// NOTE: This is part of the Manager interface.
func (m *manager) GenerateRoundMetrics(ctx context.Context) (
	map[time.Duration]*RoundMetric, error) {

	result := make(map[time.Duration]*RoundMetric)
	for _, window := range m.cfg.TimeDurationBuckets {
		metric, err := m.GenerateRoundMetric(ctx, window)
		if err != nil {
			return nil, err
		}
		result[window] = metric
	}

	return result, nil
}

// GetTimeDurations gets the config's time durations.
//
// NOTE: This is part of the Manager interface.
func (m *manager) GetTimeDurations() []time.Duration {
	return m.cfg.TimeDurationBuckets
}

// GetRefreshRate gets the config's cache refresh rate.
//
// NOTE: This is part of the Manager interface.
func (m *manager) GetRefreshRate() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.cfg.RefreshRate
}

// SetRefreshRate sets the config's refresh rate.
//
// NOTE: This is part of the Manager interface.
func (m *manager) SetRefreshRate(newTimeDuration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cfg.RefreshRate = newTimeDuration
}

// GenerateRoundMetric aggregates the given rounds. Price and volume
// statistics only take rounds into account that traded.
func GenerateRoundMetric(rounds []*accounting.RoundEntry) (*RoundMetric,
	error) {

	metric := &RoundMetric{
		Rounds: len(rounds),
	}

	var prices, volumes []float64
	for _, entry := range rounds {
		metric.TotalVolume = metric.TotalVolume.Add(entry.Quantity)
		metric.TotalTurnover = metric.TotalTurnover.Add(entry.Turnover)
		metric.TotalSurplus = metric.TotalSurplus.Add(entry.Surplus)

		if !entry.Traded() {
			continue
		}
		metric.TradedRounds++

		price, _ := entry.Price.Float64()
		volume, _ := entry.Quantity.Float64()
		prices = append(prices, price)
		volumes = append(volumes, volume)
	}

	if len(prices) == 0 {
		return metric, nil
	}

	var err error
	metric.MedianPrice, err = stats.Median(prices)
	if err != nil {
		return nil, fmt.Errorf("error generating median price: %v", err)
	}
	metric.MeanPrice, err = stats.Mean(prices)
	if err != nil {
		return nil, fmt.Errorf("error generating mean price: %v", err)
	}
	metric.PriceStdDev, err = stats.StandardDeviation(prices)
	if err != nil {
		return nil, fmt.Errorf("error generating price deviation: %v",
			err)
	}
	metric.MedianVolume, err = stats.Median(volumes)
	if err != nil {
		return nil, fmt.Errorf("error generating median volume: %v",
			err)
	}

	return metric, nil
}
