package monitoring

import (
	"context"
	"time"

	"github.com/gridmarket/lem/venue/matching"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

const (
	// roundCollectorName is the name of the MetricGroup for the
	// roundCollector.
	roundCollectorName = "round"

	// roundCount is the number of rounds that were recorded up to this
	// point in time.
	roundCount = "round_count"

	// roundQuantity is the traded quantity of the last recorded round.
	roundQuantity = "round_quantity"

	// roundClearingPrice is the price buyers paid in the last recorded
	// round.
	roundClearingPrice = "round_clearing_price"

	// roundTurnover is the amount buyers paid in the last recorded round.
	roundTurnover = "round_turnover"

	// roundSurplus is the amount swept by the operator in the last
	// recorded round.
	roundSurplus = "round_surplus"

	// roundNumTrades is the number of trade pairs of the last recorded
	// round.
	roundNumTrades = "round_num_trades"

	// roundTotalVolume is the volume traded over all recorded rounds.
	roundTotalVolume = "round_total_volume"

	// roundTotalTurnover is the amount paid by buyers over all recorded
	// rounds.
	roundTotalTurnover = "round_total_turnover"

	// roundTotalSurplus is the surplus swept over all recorded rounds.
	roundTotalSurplus = "round_total_surplus"

	// roundClearAttempts counts how often we tried to clear a round.
	roundClearAttempts = "round_clear_attempts"

	// roundOutcomes counts the cleared rounds by execution type.
	roundOutcomes = "round_outcomes"

	// roundFailures counts the rounds that failed to clear or settle.
	roundFailures = "round_failures"

	// roundClearTime is a histogram of the time it takes to clear and
	// settle a round.
	roundClearTime = "round_clear_time_ms"

	labelRule   = "rule"
	labelType   = "execution_type"
	labelState  = "round_state"
	labelReason = "reason"
)

// roundCollector is a collector that keeps track of the cleared rounds.
type roundCollector struct {
	cfg *PrometheusConfig

	g gauges

	permGauges gauges

	attemptCounter *prometheus.CounterVec

	outcomeCounter *prometheus.CounterVec

	failureCounter *prometheus.CounterVec

	latencyHisto *prometheus.HistogramVec
}

// newRoundCollector makes a new roundCollector instance.
func newRoundCollector(cfg *PrometheusConfig) *roundCollector {
	baseLabels := []string{labelRule, labelType}

	g := make(gauges)
	g.addGauge(roundCount, "number of recorded rounds", nil)
	g.addGauge(roundQuantity, "traded quantity of the last round", baseLabels)
	g.addGauge(
		roundClearingPrice, "price paid by buyers in the last round",
		baseLabels,
	)
	g.addGauge(
		roundTurnover, "amount paid by buyers in the last round",
		baseLabels,
	)
	g.addGauge(
		roundSurplus, "amount swept by the operator in the last round",
		baseLabels,
	)
	g.addGauge(
		roundNumTrades, "number of trade pairs of the last round",
		baseLabels,
	)

	// The totals are recomputed from all recorded rounds on every scrape.
	permGauges := make(gauges)
	permGauges.addGauge(roundTotalVolume, "total traded volume", nil)
	permGauges.addGauge(roundTotalTurnover, "total buyer payments", nil)
	permGauges.addGauge(roundTotalSurplus, "total operator surplus", nil)

	return &roundCollector{
		cfg:        cfg,
		g:          g,
		permGauges: permGauges,
		attemptCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: roundClearAttempts,
				Help: "counter that tracks clearing attempts",
			},
			[]string{labelRule},
		),
		outcomeCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: roundOutcomes,
				Help: "counter that tracks cleared rounds",
			},
			baseLabels,
		),
		failureCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: roundFailures,
				Help: "a counter that's incremented each time a " +
					"round fails",
			},
			[]string{labelState, labelReason},
		),
		latencyHisto: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: roundClearTime,
				Help: "time in ms it takes to clear a round",
				// Buckets: [1 2 4 8 16 32 64 128 256 512 1024
				// 2048 4096].
				Buckets: prometheus.ExponentialBuckets(
					1, 2, 13,
				),
			},
			[]string{labelRule},
		),
	}
}

// Name is the name of the metric group. When exported to prometheus, it's
// expected that all metric under this group have the same prefix.
//
// NOTE: Part of the MetricGroup interface.
func (c *roundCollector) Name() string {
	return roundCollectorName
}

// Describe sends the super-set of all possible descriptors of metrics
// collected by this Collector to the provided channel and returns once the
// last descriptor has been sent.
//
// NOTE: Part of the prometheus.Collector interface.
func (c *roundCollector) Describe(ch chan<- *prometheus.Desc) {
	c.g.describe(ch)
	c.permGauges.describe(ch)
}

// Collect is called by the Prometheus registry when collecting metrics.
//
// NOTE: Part of the prometheus.Collector interface.
func (c *roundCollector) Collect(ch chan<- prometheus.Metric) {
	// We must reset our metrics that we collect from the recorder here,
	// otherwise stale label combinations would stay around.
	c.g.reset()
	c.permGauges.reset()

	if c.cfg.Rounds == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	rounds, err := c.cfg.Rounds(ctx)
	if err != nil {
		log.Errorf("could not query recorded rounds: %v", err)
		return
	}

	c.g[roundCount].With(nil).Set(float64(len(rounds)))

	var totalVolume, totalTurnover, totalSurplus decimal.Decimal
	for _, entry := range rounds {
		totalVolume = totalVolume.Add(entry.Quantity)
		totalTurnover = totalTurnover.Add(entry.Turnover)
		totalSurplus = totalSurplus.Add(entry.Surplus)
	}
	c.permGauges[roundTotalVolume].With(nil).Set(toFloat(totalVolume))
	c.permGauges[roundTotalTurnover].With(nil).Set(toFloat(totalTurnover))
	c.permGauges[roundTotalSurplus].With(nil).Set(toFloat(totalSurplus))

	// Only the last round is exported, Prometheus itself will add the
	// time factor by scraping periodically.
	if len(rounds) > 0 {
		last := rounds[len(rounds)-1]
		labels := prometheus.Labels{
			labelRule: last.Rule.String(),
			labelType: last.Type.String(),
		}

		c.g[roundQuantity].With(labels).Set(toFloat(last.Quantity))
		c.g[roundClearingPrice].With(labels).Set(toFloat(last.Price))
		c.g[roundTurnover].With(labels).Set(toFloat(last.Turnover))
		c.g[roundSurplus].With(labels).Set(toFloat(last.Surplus))
		c.g[roundNumTrades].With(labels).Set(float64(last.Trades))
	}

	// Finally, collect the metrics into the prometheus collect channel.
	c.g.collect(ch)
	c.permGauges.collect(ch)
}

// RegisterMetricFuncs signals to the underlying hybrid collector that it
// should register all metrics that it aims to export with the given
// registerer.
//
// NOTE: Part of the MetricGroup interface.
func (c *roundCollector) RegisterMetricFuncs(reg prometheus.Registerer) error {
	// We'll also need to register our counters now individually.
	if err := reg.Register(c.attemptCounter); err != nil {
		return err
	}
	if err := reg.Register(c.outcomeCounter); err != nil {
		return err
	}
	if err := reg.Register(c.failureCounter); err != nil {
		return err
	}
	if err := reg.Register(c.latencyHisto); err != nil {
		return err
	}

	return reg.Register(c)
}

// fetchRoundCollector is a helper function that we'll use to allow those at
// the package level to obtain an active pointer to the current roundCollector
// instance.
func fetchRoundCollector() *roundCollector {
	group := fetchGroup(roundCollectorName)
	if group == nil {
		return nil
	}

	return group.(*roundCollector)
}

// ObserveRoundAttempt increments the counter that tracks how often we attempt
// to clear a round with the given rule.
func ObserveRoundAttempt(rule matching.PricingRule) {
	c := fetchRoundCollector()
	if c == nil {
		return
	}

	c.attemptCounter.With(prometheus.Labels{
		labelRule: rule.String(),
	}).Inc()
}

// ObserveRoundOutcome exports a cleared round together with the time it took
// to clear and settle it.
func ObserveRoundOutcome(result *matching.ClearingResult, t time.Duration) {
	c := fetchRoundCollector()
	if c == nil {
		return
	}

	c.outcomeCounter.With(prometheus.Labels{
		labelRule: result.Rule.String(),
		labelType: result.Type.String(),
	}).Inc()

	c.latencyHisto.With(prometheus.Labels{
		labelRule: result.Rule.String(),
	}).Observe(float64(t.Milliseconds()))
}

// ObserveRoundFailure observes an instance wherein we attempted to clear a
// round but failed in the given state.
func ObserveRoundFailure(state, reason string) {
	c := fetchRoundCollector()
	if c == nil {
		return
	}

	c.failureCounter.With(prometheus.Labels{
		labelState:  state,
		labelReason: reason,
	}).Inc()
}

// A compile time flag to ensure the roundCollector satisfies the MetricGroup
// interface.
var _ MetricGroup = (*roundCollector)(nil)

func init() {
	metricsMtx.Lock()
	metricGroups[roundCollectorName] = func(cfg *PrometheusConfig) (
		MetricGroup, error) {

		return newRoundCollector(cfg), nil
	}
	metricsMtx.Unlock()
}
