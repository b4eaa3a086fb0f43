package lem

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gridmarket/lem/account"
	"github.com/gridmarket/lem/accounting"
	"github.com/gridmarket/lem/build"
	"github.com/gridmarket/lem/metrics"
	"github.com/gridmarket/lem/monitoring"
	"github.com/gridmarket/lem/venue"
	"github.com/gridmarket/lem/venue/matching"
	"github.com/lightningnetwork/lnd/ticker"
)

var (
	// defaultMetricWindows are the trailing windows round statistics are
	// generated for. The zero window covers all rounds.
	defaultMetricWindows = []time.Duration{
		0, time.Hour, 24 * time.Hour, 7 * 24 * time.Hour,
	}
)

// Server is the main market server. It wires the clearing engine, the
// settlement ledger and the round recorder into a market that clears one
// round per trading interval, and exposes the results through the REST API
// and the Prometheus exporter.
type Server struct {
	cfg *Config

	scenario *Scenario

	engine *matching.Engine

	ledger *account.Ledger

	recorder *accounting.Recorder

	executor *venue.RoundExecutor

	market *Market

	metricsManager metrics.Manager

	exporter *monitoring.PrometheusExporter

	restServer *restServer

	startOnce sync.Once
	stopOnce  sync.Once
}

// NewServer returns a new market server that replays the given scenario.
// Unless the config asks for a replay, one interval is cleared at every
// interval boundary once the server is started.
func NewServer(cfg *Config, scenario *Scenario) (*Server, error) {
	// First, we'll set up our logging infrastructure so all operations
	// below can be logged.
	if err := initLogging(cfg); err != nil {
		return nil, fmt.Errorf("unable to init logging: %w", err)
	}

	// Print the version before we do any more set up to ensure we output
	// it.
	log.Infof("Version: %v", build.VersionWithCommit())

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	engineCfg, err := cfg.Matching.EngineConfig()
	if err != nil {
		return nil, err
	}
	engine, err := matching.NewEngine(engineCfg)
	if err != nil {
		return nil, fmt.Errorf("unable to create engine: %w", err)
	}
	log.Infof("Clearing engine: %v", engineCfg)

	if scenario.Interval == 0 {
		scenario.Interval = cfg.Interval
	}
	if scenario.Start.IsZero() {
		scenario.Start = time.Now().Truncate(scenario.Interval)
	}

	var utility *Utility
	if cfg.Utility.Active {
		utility, err = NewUtility(cfg.Utility)
		if err != nil {
			return nil, err
		}
	}

	s := &Server{
		cfg:      cfg,
		scenario: scenario,
		engine:   engine,
		ledger:   account.NewLedger(cfg.Ledger.ledgerConfig()),
	}

	// Every round is recorded with the start of the interval it was
	// cleared for, which is only known to the market.
	s.recorder = accounting.NewRecorder(func() time.Time {
		return s.market.ClearingStart()
	})

	s.executor = venue.NewRoundExecutor(&venue.ExecutorConfig{
		Engine:      engine,
		Settler:     s.ledger,
		RoundStorer: s.recorder,
	})

	var intervalTicker ticker.Ticker
	if !cfg.Replay {
		intervalTicker = NewIntervalTicker(scenario.Interval)
	}
	s.market = NewMarket(MarketConfig{
		Executor:      s.executor,
		Rule:          engineCfg.Rule,
		Source:        scenario,
		Utility:       utility,
		Ticker:        intervalTicker,
		IntervalStart: scenario.IntervalStart,
	})

	s.metricsManager, err = metrics.NewManager(&metrics.ManagerConfig{
		Rounds:              s.recorder.Rounds,
		RefreshRate:         cfg.MetricsRefreshCacheInterval,
		TimeDurationBuckets: defaultMetricWindows,
	})
	if err != nil {
		return nil, err
	}

	cfg.Prometheus.Rounds = s.recorder.Rounds
	cfg.Prometheus.Accounts = s.ledger.Snapshot
	cfg.Prometheus.Surplus = s.ledger.Surplus
	s.exporter = monitoring.NewPrometheusExporter(cfg.Prometheus)

	if cfg.REST.Active {
		s.restServer = newRestServer(&restServerConfig{
			Listen:      cfg.REST.Listen,
			CORSOrigins: cfg.REST.CORSOrigins,
			Engine:      engine,
			Ledger:      s.ledger,
			Metrics:     s.metricsManager,
			Market:      s.market,
			Interval:    scenario.Interval,
		})
	}

	return s, nil
}

// Start starts all subsystems of the server. Outside of replay mode the
// market begins clearing at the next interval boundary.
func (s *Server) Start() error {
	var startErr error

	s.startOnce.Do(func() {
		log.Infof("Starting market server with %d intervals of %v "+
			"starting %v", len(s.scenario.Rounds),
			s.scenario.Interval, s.scenario.Start)

		if err := s.exporter.Start(); err != nil {
			startErr = fmt.Errorf("unable to start prometheus "+
				"exporter: %w", err)
			return
		}

		if s.restServer != nil {
			if err := s.restServer.Start(); err != nil {
				startErr = fmt.Errorf("unable to start REST "+
					"server: %w", err)
				return
			}
		}

		if !s.cfg.Replay {
			if err := s.market.Start(); err != nil {
				startErr = fmt.Errorf("unable to start market: "+
					"%w", err)
				return
			}
		}
	})

	return startErr
}

// Stop shuts down all subsystems of the server.
func (s *Server) Stop() error {
	log.Info("Received shutdown signal, stopping server")

	var stopErr error

	s.stopOnce.Do(func() {
		if err := s.market.Stop(); err != nil {
			stopErr = fmt.Errorf("unable to stop market: %w", err)
			return
		}

		if s.restServer != nil {
			if err := s.restServer.Stop(); err != nil {
				stopErr = fmt.Errorf("unable to stop REST "+
					"server: %w", err)
				return
			}
		}

		if err := s.exporter.Stop(); err != nil {
			stopErr = fmt.Errorf("unable to stop prometheus "+
				"exporter: %w", err)
			return
		}
	})

	return stopErr
}

// Replay clears all remaining intervals of the scenario back to back and
// returns the summary of all rounds.
func (s *Server) Replay(ctx context.Context) (*accounting.Summary, error) {
	if err := s.market.RunAll(ctx); err != nil {
		return nil, err
	}

	return s.Summary(time.Time{}, time.Time{})
}

// Summary aggregates all recorded rounds of intervals starting within the
// given period. A zero start or end leaves that side of the period open.
func (s *Server) Summary(start, end time.Time) (*accounting.Summary, error) {
	report, err := accounting.CreateReport(&accounting.Config{
		Start:     start,
		End:       end,
		GetRounds: s.recorder.Rounds,
	})
	if err != nil {
		return nil, err
	}

	return report.Summarize(), nil
}

// Market returns the market driven by the server.
func (s *Server) Market() *Market {
	return s.market
}

// Ledger returns the settlement ledger of the server.
func (s *Server) Ledger() *account.Ledger {
	return s.ledger
}

// Done returns a channel that is closed once all intervals of the scenario
// are cleared.
func (s *Server) Done() <-chan struct{} {
	return s.market.Done()
}
