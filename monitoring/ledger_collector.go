package monitoring

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// ledgerCollectorName is the name of the MetricGroup for the
	// ledgerCollector.
	ledgerCollectorName = "ledger"

	// accountCount is a gauge that keeps track of the total number of all
	// accounts there are.
	accountCount = "account_count"

	// accountBalance is a gauge that keeps track of the balance of each
	// account.
	accountBalance = "account_balance"

	// accountRevenue is a gauge of the revenue each account received from
	// selling energy.
	accountRevenue = "account_revenue"

	// accountPayments is a gauge of the payments each account made for
	// buying energy.
	accountPayments = "account_payments"

	// accountEnergyBought is a gauge of the energy each account bought.
	accountEnergyBought = "account_energy_bought"

	// accountEnergySold is a gauge of the energy each account sold.
	accountEnergySold = "account_energy_sold"

	// ledgerSurplus is a gauge of the surplus swept by the operator.
	ledgerSurplus = "ledger_surplus"

	labelAccountState = "acct_state"
	labelParticipant  = "participant"
)

// ledgerCollector is a collector that keeps track of the ledger accounts.
type ledgerCollector struct {
	collectMx sync.Mutex

	cfg *PrometheusConfig

	g gauges
}

// newLedgerCollector makes a new ledgerCollector instance.
func newLedgerCollector(cfg *PrometheusConfig) *ledgerCollector {
	acctLabels := []string{labelParticipant, labelAccountState}

	g := make(gauges)
	g.addGauge(
		accountCount, "total number of accounts",
		[]string{labelAccountState},
	)
	g.addGauge(accountBalance, "balance of the account", acctLabels)
	g.addGauge(
		accountRevenue, "total revenue of the account", acctLabels,
	)
	g.addGauge(
		accountPayments, "total payments of the account", acctLabels,
	)
	g.addGauge(
		accountEnergyBought, "total energy bought by the account",
		acctLabels,
	)
	g.addGauge(
		accountEnergySold, "total energy sold by the account",
		acctLabels,
	)
	g.addGauge(ledgerSurplus, "surplus swept by the operator", nil)

	return &ledgerCollector{
		cfg: cfg,
		g:   g,
	}
}

// Name is the name of the metric group. When exported to prometheus, it's
// expected that all metric under this group have the same prefix.
//
// NOTE: Part of the MetricGroup interface.
func (c *ledgerCollector) Name() string {
	return ledgerCollectorName
}

// Describe sends the super-set of all possible descriptors of metrics
// collected by this Collector to the provided channel and returns once the
// last descriptor has been sent.
//
// NOTE: Part of the prometheus.Collector interface.
func (c *ledgerCollector) Describe(ch chan<- *prometheus.Desc) {
	c.collectMx.Lock()
	defer c.collectMx.Unlock()

	c.g.describe(ch)
}

// Collect is called by the Prometheus registry when collecting metrics.
//
// NOTE: Part of the prometheus.Collector interface.
func (c *ledgerCollector) Collect(ch chan<- prometheus.Metric) {
	c.collectMx.Lock()
	defer c.collectMx.Unlock()

	// We must reset our metrics here, otherwise closed accounts would
	// keep their old label combination.
	c.g.reset()

	if c.cfg.Accounts != nil {
		for _, acct := range c.cfg.Accounts() {
			state := acct.State.String()
			labels := prometheus.Labels{
				labelParticipant:  string(acct.Participant),
				labelAccountState: state,
			}

			c.g[accountCount].With(prometheus.Labels{
				labelAccountState: state,
			}).Inc()
			c.g[accountBalance].With(labels).Set(
				toFloat(acct.Balance),
			)
			c.g[accountRevenue].With(labels).Set(
				toFloat(acct.Revenue),
			)
			c.g[accountPayments].With(labels).Set(
				toFloat(acct.Payments),
			)
			c.g[accountEnergyBought].With(labels).Set(
				toFloat(acct.EnergyBought),
			)
			c.g[accountEnergySold].With(labels).Set(
				toFloat(acct.EnergySold),
			)
		}
	}

	if c.cfg.Surplus != nil {
		c.g[ledgerSurplus].With(nil).Set(toFloat(c.cfg.Surplus()))
	}

	c.g.collect(ch)
}

// RegisterMetricFuncs signals to the underlying hybrid collector that it
// should register all metrics that it aims to export with the given
// registerer.
//
// NOTE: Part of the MetricGroup interface.
func (c *ledgerCollector) RegisterMetricFuncs(reg prometheus.Registerer) error {
	return reg.Register(c)
}

// A compile time flag to ensure the ledgerCollector satisfies the MetricGroup
// interface.
var _ MetricGroup = (*ledgerCollector)(nil)

func init() {
	metricsMtx.Lock()
	metricGroups[ledgerCollectorName] = func(cfg *PrometheusConfig) (
		MetricGroup, error) {

		return newLedgerCollector(cfg), nil
	}
	metricsMtx.Unlock()
}
