package monitoring

import (
	"github.com/gridmarket/lem/order"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	// bookCollectorName is the name of the MetricGroup for the
	// bookCollector.
	bookCollectorName = "book"

	// bookNumOrders is a gauge of the number of orders per side submitted
	// for the last round.
	bookNumOrders = "book_num_orders"

	// bookVolume is a gauge of the quantity per side submitted for the
	// last round.
	bookVolume = "book_volume"

	// bookParticipants is a gauge of the number of distinct participants
	// of the last round.
	bookParticipants = "book_participants"

	// ordersReceived counts all orders ever submitted per side.
	ordersReceived = "orders_received"

	labelOrderKind = "order_kind"
)

// bookCollector is a collector dedicated to the order books submitted to the
// market. All of its values are pushed by observations.
type bookCollector struct {
	cfg *PrometheusConfig

	g gauges

	receivedCounter *prometheus.CounterVec
}

// newBookCollector returns a new instance of the book collector.
func newBookCollector(cfg *PrometheusConfig) *bookCollector {
	kindLabels := []string{labelOrderKind}

	g := make(gauges)
	g.addGauge(bookNumOrders, "number of orders in the last book", kindLabels)
	g.addGauge(bookVolume, "quantity offered in the last book", kindLabels)
	g.addGauge(
		bookParticipants, "number of participants in the last book",
		nil,
	)

	return &bookCollector{
		cfg: cfg,
		g:   g,
		receivedCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: ordersReceived,
				Help: "counter incremented with each order",
			},
			kindLabels,
		),
	}
}

// Name is the name of the metric group. When exported to prometheus, it's
// expected that all metric under this group have the same prefix.
//
// NOTE: Part of the MetricGroup interface.
func (b *bookCollector) Name() string {
	return bookCollectorName
}

// Describe sends the super-set of all possible descriptors of metrics
// collected by this Collector to the provided channel and returns once the
// last descriptor has been sent.
//
// NOTE: Part of the prometheus.Collector interface.
func (b *bookCollector) Describe(ch chan<- *prometheus.Desc) {
	b.g.describe(ch)
}

// Collect is called by the Prometheus registry when collecting metrics.
//
// NOTE: Part of the prometheus.Collector interface.
func (b *bookCollector) Collect(ch chan<- prometheus.Metric) {
	b.g.collect(ch)
}

// RegisterMetricFuncs signals to the underlying hybrid collector that it
// should register all metrics that it aims to export with the given
// registerer.
//
// NOTE: Part of the MetricGroup interface.
func (b *bookCollector) RegisterMetricFuncs(reg prometheus.Registerer) error {
	if err := reg.Register(b.receivedCounter); err != nil {
		return err
	}

	return reg.Register(b)
}

// fetchBookCollector is a helper function that we'll use to allow those at
// the package level to obtain an active pointer to the current bookCollector
// instance.
func fetchBookCollector() *bookCollector {
	group := fetchGroup(bookCollectorName)
	if group == nil {
		return nil
	}

	return group.(*bookCollector)
}

// ObserveOrderBook is called with the orders submitted for a round before it
// is cleared.
func ObserveOrderBook(bids, offers []order.Order) {
	b := fetchBookCollector()
	if b == nil {
		return
	}

	participants := make(map[order.ParticipantID]struct{})
	sides := []struct {
		kind   order.Kind
		orders []order.Order
	}{
		{kind: order.KindBid, orders: bids},
		{kind: order.KindOffer, orders: offers},
	}
	for _, side := range sides {
		labels := prometheus.Labels{
			labelOrderKind: side.kind.String(),
		}

		for _, o := range side.orders {
			participants[o.Participant] = struct{}{}
		}

		b.g[bookNumOrders].With(labels).Set(float64(len(side.orders)))
		b.g[bookVolume].With(labels).Set(
			toFloat(order.TotalQuantity(side.orders)),
		)
		b.receivedCounter.With(labels).Add(float64(len(side.orders)))
	}

	b.g[bookParticipants].With(nil).Set(float64(len(participants)))
}

// A compile time flag to ensure the bookCollector satisfies the MetricGroup
// interface.
var _ MetricGroup = (*bookCollector)(nil)

func init() {
	metricsMtx.Lock()
	metricGroups[bookCollectorName] = func(cfg *PrometheusConfig) (
		MetricGroup, error) {

		return newBookCollector(cfg), nil
	}
	metricsMtx.Unlock()
}
