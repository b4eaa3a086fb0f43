package monitoring

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gridmarket/lem/account"
	"github.com/gridmarket/lem/accounting"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

const (
	// storeTimeout is the default timeout for reading recorded rounds.
	storeTimeout = 20 * time.Second

	// shutdownTimeout is the time we give the metrics server to finish
	// in-flight scrapes.
	shutdownTimeout = 5 * time.Second
)

// MetricGroupCreator is a factory method that given the primary prometheus
// config, will create a new MetricGroup that will be managed by the main
// PrometheusExporter.
type MetricGroupCreator func(*PrometheusConfig) (MetricGroup, error)

var (
	// metricGroups is a global variable of all registered metrics
	// projected by the mutex below. All new MetricGroups should add
	// themselves to this map within the init() method of their file.
	metricGroups = make(map[string]MetricGroupCreator)

	// activeGroups is a global map of all active metric groups. This can
	// be used by some of the "static' package level methods to look up the
	// target metric group to export observations.
	activeGroups = make(map[string]MetricGroup)

	metricsMtx sync.Mutex
)

// MetricGroup is the primary interface of this package. The main exporter (in
// this case the PrometheusExporter), will manage these directly, ensuring that
// all MetricGroups are registered before the main prometheus exporter starts
// and any additional tracing is added.
type MetricGroup interface {
	// Name is the name of the metric group. When exported to prometheus,
	// it's expected that all metric under this group have the same prefix.
	Name() string

	// RegisterMetricFuncs signals to the underlying hybrid collector that
	// it should register all metrics that it aims to export with the
	// given registerer. Rather than using the series of "MustRegister"
	// directives, implementers of this interface should instead propagate
	// back any errors related to metric registration.
	RegisterMetricFuncs(reg prometheus.Registerer) error
}

// PrometheusConfig is the set of configuration data that specifies if
// Prometheus metric exporting is activated, and if so the listening address of
// the Prometheus server.
type PrometheusConfig struct {
	// Active, if true, then Prometheus metrics will be exported.
	Active bool `long:"active" description:"if true prometheus metrics will be exported"`

	// ListenAddr is the listening address that we should use to allow the
	// main Prometheus server to scrape our metrics.
	ListenAddr string `long:"listenaddr" description:"the interface we should listen on for prometheus"`

	// Rounds returns all rounds recorded by the market so far.
	Rounds func(context.Context) ([]*accounting.RoundEntry, error)

	// Accounts returns a snapshot of all ledger accounts.
	Accounts func() []*account.Account

	// Surplus returns the amount of money the market operator has swept
	// from imbalanced rounds.
	Surplus func() decimal.Decimal
}

// PrometheusExporter is a metric exporter that uses Prometheus directly. The
// market daemon will interact with this struct in order to export relevant
// metrics such as the volume and turnover of all cleared rounds.
type PrometheusExporter struct {
	config *PrometheusConfig

	registry *prometheus.Registry

	listener net.Listener
	server   *http.Server
	wg       sync.WaitGroup
}

// NewPrometheusExporter makes a new instance of the PrometheusExporter given
// the config.
func NewPrometheusExporter(cfg *PrometheusConfig) *PrometheusExporter {
	return &PrometheusExporter{
		config:   cfg,
		registry: prometheus.NewRegistry(),
	}
}

// Registry returns the registry all metric groups are registered with.
func (p *PrometheusExporter) Registry() *prometheus.Registry {
	return p.registry
}

// Addr returns the address the metrics server is listening on, or nil if
// the exporter isn't serving.
func (p *PrometheusExporter) Addr() net.Addr {
	if p.listener == nil {
		return nil
	}

	return p.listener.Addr()
}

// Start registers all relevant metrics with the Prometheus library, then
// launches the HTTP server that Prometheus will hit to scrape our metrics.
func (p *PrometheusExporter) Start() error {
	// If we're not active, then there's nothing more to do.
	if !p.config.Active {
		return nil
	}

	// Next, we'll attempt to register all our metrics. If we fail to
	// register ANY metric, then we'll fail all together.
	if err := p.registerMetrics(); err != nil {
		return err
	}

	// Finally, we'll launch the HTTP server that Prometheus will use to
	// scape our metrics.
	listener, err := net.Listen("tcp", p.config.ListenAddr)
	if err != nil {
		p.unregisterMetrics()
		return err
	}
	p.listener = listener

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(
		p.registry, promhttp.HandlerOpts{},
	))
	p.server = &http.Server{Handler: mux}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		err := p.server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("Prometheus server stopped: %v", err)
		}
	}()

	log.Infof("Prometheus exporter listening on %v", listener.Addr())

	return nil
}

// Stop shuts down the metrics server and deactivates all metric groups so
// package level observations become no-ops again.
func (p *PrometheusExporter) Stop() error {
	if !p.config.Active || p.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(
		context.Background(), shutdownTimeout,
	)
	defer cancel()

	err := p.server.Shutdown(ctx)
	p.wg.Wait()
	p.unregisterMetrics()

	return err
}

// registerMetrics iterates through all the registered metric groups and
// attempts to register each one. If any of the MetricGroups fail to register,
// then an error will be returned.
func (p *PrometheusExporter) registerMetrics() error {
	metricsMtx.Lock()
	defer metricsMtx.Unlock()

	for _, metricGroupFunc := range metricGroups {
		metricGroup, err := metricGroupFunc(p.config)
		if err != nil {
			return err
		}

		if err := metricGroup.RegisterMetricFuncs(p.registry); err != nil {
			return err
		}

		activeGroups[metricGroup.Name()] = metricGroup
	}

	return nil
}

// unregisterMetrics removes all active metric groups.
func (p *PrometheusExporter) unregisterMetrics() {
	metricsMtx.Lock()
	defer metricsMtx.Unlock()

	for name := range activeGroups {
		delete(activeGroups, name)
	}
}

// fetchGroup returns the active metric group with the given name.
func fetchGroup(name string) MetricGroup {
	metricsMtx.Lock()
	defer metricsMtx.Unlock()

	return activeGroups[name]
}

// gauges is a map type that maps a gauge to its unique name.
type gauges map[string]*prometheus.GaugeVec

// addGauge adds a new gauge vector to the map.
func (g gauges) addGauge(name, help string, labels []string) {
	g[name] = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: name,
			Help: help,
		},
		labels,
	)
}

// describe describes all gauges contained in the map to the given channel.
func (g gauges) describe(ch chan<- *prometheus.Desc) {
	for _, gauge := range g {
		gauge.Describe(ch)
	}
}

// collect collects all metrics of the map's gauges to the given channel.
func (g gauges) collect(ch chan<- prometheus.Metric) {
	for _, gauge := range g {
		gauge.Collect(ch)
	}
}

// reset resets all gauges in the map.
func (g gauges) reset() {
	for _, gauge := range g {
		gauge.Reset()
	}
}

// toFloat converts a decimal to the float Prometheus expects.
func toFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}
