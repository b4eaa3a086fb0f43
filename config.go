package lem

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gridmarket/lem/account"
	"github.com/gridmarket/lem/monitoring"
	"github.com/gridmarket/lem/venue/matching"
	"github.com/lightningnetwork/lnd/build"
	"github.com/shopspring/decimal"
)

const (
	// defaultLogLevel is the default log level that is used for all loggers
	// and sub systems.
	defaultLogLevel = "info"

	// defaultLogDirname is the default directory name where the log files
	// will be stored.
	defaultLogDirname = "logs"

	// defaultLogFilename is the default file name for the market log file.
	defaultLogFilename = "marketd.log"

	// defaultMaxLogFiles is the default number of log files to keep.
	defaultMaxLogFiles = 3

	// defaultMaxLogFileSize is the default file size of 10 MB that a log
	// file can grow to before it is rotated.
	defaultMaxLogFileSize = 10

	// defaultInterval is the default length of a trading interval.
	defaultInterval = 15 * time.Minute

	// defaultMetricsRefreshCacheInterval is the time interval at which
	// we re-populate the rounds within the metrics manager.
	defaultMetricsRefreshCacheInterval = time.Minute

	// defaultUtilityID is the participant id of the utility grid.
	defaultUtilityID = "utility"

	// defaultUtilitySellRate is the constant price the utility grid sells
	// energy at.
	defaultUtilitySellRate = "9"
)

var (
	// DefaultBaseDir is the default root data directory where marketd will
	// store all its data. Below this directory the logs directory will be
	// created.
	DefaultBaseDir = appDataDir(".marketd")

	defaultLogDir = filepath.Join(DefaultBaseDir, defaultLogDirname)
)

// MatchingConfig holds the named policy options of the clearing engine.
type MatchingConfig struct {
	Rule                 string  `long:"rule" description:"pricing mechanism of the market" choice:"pay_as_clear" choice:"pac" choice:"pay_as_bid" choice:"pab" choice:"mcafee"`
	TieBreak             string  `long:"tiebreak" description:"ordering of orders with equal price" choice:"submission" choice:"participant"`
	PriceSide            string  `long:"priceside" description:"side of the last executed segment that defines the uniform price" choice:"bid" choice:"offer"`
	Boundary             string  `long:"boundary" description:"McAfee behavior if the break-even segment is the first one" choice:"pay_as_clear" choice:"no_trade" choice:"reject"`
	SelfTrade            string  `long:"selftrade" description:"handling of segments that match a participant with itself" choice:"filter" choice:"reject"`
	Tolerance            float64 `long:"tolerance" description:"maximum drift between a mechanism's expected and reconciled turnover"`
	StrictReconciliation bool    `long:"strict" description:"fail a round instead of logging a warning if the turnover drift exceeds the tolerance"`
}

// EngineConfig parses the named options into the config of the clearing
// engine.
func (m *MatchingConfig) EngineConfig() (matching.Config, error) {
	cfg := matching.DefaultConfig()

	var err error
	if m.Rule != "" {
		cfg.Rule, err = matching.ParsePricingRule(m.Rule)
		if err != nil {
			return cfg, err
		}
	}
	if m.TieBreak != "" {
		cfg.TieBreak, err = matching.ParseTieBreak(m.TieBreak)
		if err != nil {
			return cfg, err
		}
	}
	if m.PriceSide != "" {
		cfg.PriceSide, err = matching.ParsePriceSide(m.PriceSide)
		if err != nil {
			return cfg, err
		}
	}
	if m.Boundary != "" {
		cfg.Boundary, err = matching.ParseBoundaryPolicy(m.Boundary)
		if err != nil {
			return cfg, err
		}
	}
	if m.SelfTrade != "" {
		cfg.SelfTrade, err = matching.ParseSelfTradePolicy(m.SelfTrade)
		if err != nil {
			return cfg, err
		}
	}
	if m.Tolerance < 0 {
		return cfg, fmt.Errorf("tolerance must not be negative")
	}
	if m.Tolerance > 0 {
		cfg.Tolerance = decimal.NewFromFloat(m.Tolerance)
	}
	cfg.StrictReconciliation = m.StrictReconciliation

	return cfg, nil
}

// LedgerConfig holds the options of the settlement ledger.
type LedgerConfig struct {
	AutoOpen       bool    `long:"autoopen" description:"open an account for unknown participants on their first trade"`
	AllowOverdraft bool    `long:"allowoverdraft" description:"allow balances to become negative"`
	InitialBalance float64 `long:"initialbalance" description:"balance of every newly opened account"`
}

// ledgerConfig converts the options into the config of the ledger.
func (l *LedgerConfig) ledgerConfig() account.LedgerConfig {
	return account.LedgerConfig{
		AllowOverdraft: l.AllowOverdraft,
		AutoOpen:       l.AutoOpen,
		InitialBalance: decimal.NewFromFloat(l.InitialBalance),
	}
}

// UtilityConfig holds the options of the utility grid market maker.
type UtilityConfig struct {
	Active   bool   `long:"active" description:"let the utility grid supply all unmet demand"`
	ID       string `long:"id" description:"participant id of the utility grid"`
	SellRate string `long:"sellrate" description:"constant price the utility grid sells energy at"`
	BuyRate  string `long:"buyrate" description:"feed-in price the utility grid buys all surplus energy at, empty to disable"`
	Profile  string `long:"profile" description:"comma separated sell rates per interval, overrides sellrate while it lasts"`
}

// RESTConfig holds the options of the read-only REST API.
type RESTConfig struct {
	Active      bool     `long:"active" description:"serve the REST API"`
	Listen      string   `long:"listen" description:"address to listen on for REST clients"`
	CORSOrigins []string `long:"corsorigin" description:"origin allowed to query the REST API, can be specified multiple times"`
}

// Config is the main configuration of the market daemon.
type Config struct {
	BaseDir string `long:"basedir" description:"The base directory where marketd stores all its data"`

	Scenario string        `long:"scenario" description:"YAML file with the order books of all trading intervals to replay"`
	Interval time.Duration `long:"interval" description:"length of a trading interval"`
	Replay   bool          `long:"replay" description:"clear all intervals back to back instead of waiting for the interval ticker"`

	LogDir         string `long:"logdir" description:"Directory to log output."`
	MaxLogFiles    int    `long:"maxlogfiles" description:"Maximum logfiles to keep (0 for no rotation)"`
	MaxLogFileSize int    `long:"maxlogfilesize" description:"Maximum logfile size in MB"`
	DebugLevel     string `short:"d" long:"debuglevel" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical} -- You may also specify <subsystem>=<level>,<subsystem2>=<level>,... to set the log level for individual subsystems -- Use show to list available subsystems"`

	MetricsRefreshCacheInterval time.Duration `long:"metricsrefreshcacheinterval" description:"the refresh interval of the round metrics: 5s, 5m, etc"`

	Matching   *MatchingConfig              `group:"matching" namespace:"matching"`
	Ledger     *LedgerConfig                `group:"ledger" namespace:"ledger"`
	Utility    *UtilityConfig               `group:"utility" namespace:"utility"`
	REST       *RESTConfig                  `group:"rest" namespace:"rest"`
	Prometheus *monitoring.PrometheusConfig `group:"prometheus" namespace:"prometheus"`
}

// DefaultConfig returns the default config for a market daemon.
func DefaultConfig() *Config {
	return &Config{
		BaseDir:                     DefaultBaseDir,
		Interval:                    defaultInterval,
		LogDir:                      defaultLogDir,
		MaxLogFiles:                 defaultMaxLogFiles,
		MaxLogFileSize:              defaultMaxLogFileSize,
		DebugLevel:                  defaultLogLevel,
		MetricsRefreshCacheInterval: defaultMetricsRefreshCacheInterval,
		Matching: &MatchingConfig{
			Rule:      matching.PayAsClearRule.String(),
			TieBreak:  matching.TieBreakSubmission.String(),
			PriceSide: matching.PriceFromBid.String(),
			Boundary:  matching.BoundaryPayAsClear.String(),
			SelfTrade: matching.SelfTradeFilter.String(),
		},
		Ledger: &LedgerConfig{
			AutoOpen:       true,
			AllowOverdraft: true,
		},
		Utility: &UtilityConfig{
			ID:       defaultUtilityID,
			SellRate: defaultUtilitySellRate,
		},
		REST: &RESTConfig{
			Listen: "localhost:8480",
		},
		Prometheus: &monitoring.PrometheusConfig{
			ListenAddr: "localhost:8989",
		},
	}
}

// Validate checks the config for consistency.
func (c *Config) Validate() error {
	if c.Interval <= 0 {
		return fmt.Errorf("interval must be positive")
	}
	if c.MaxLogFiles < 0 || c.MaxLogFileSize < 0 {
		return fmt.Errorf("log rotation limits must not be negative")
	}
	if _, err := c.Matching.EngineConfig(); err != nil {
		return fmt.Errorf("invalid matching config: %w", err)
	}
	if c.Ledger.InitialBalance < 0 {
		return fmt.Errorf("initial balance must not be negative")
	}
	if c.Utility.Active {
		if _, err := NewUtility(c.Utility); err != nil {
			return fmt.Errorf("invalid utility config: %w", err)
		}
	}
	if c.REST.Active && c.REST.Listen == "" {
		return fmt.Errorf("REST API needs a listen address")
	}
	if c.Prometheus.Active && c.Prometheus.ListenAddr == "" {
		return fmt.Errorf("prometheus exporter needs a listen address")
	}

	return nil
}

// appDataDir returns the default data directory below the home directory of
// the current user.
func appDataDir(name string) string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return name
	}

	return filepath.Join(home, strings.TrimPrefix(name, "/"))
}

// initLogging initializes the log file rotator and sets the log levels of all
// registered subsystems.
func initLogging(cfg *Config) error {
	// Without a log directory we only log to stdout.
	if cfg.LogDir != "" {
		err := logWriter.InitLogRotator(
			filepath.Join(cfg.LogDir, defaultLogFilename),
			cfg.MaxLogFileSize, cfg.MaxLogFiles,
		)
		if err != nil {
			return err
		}
	}

	return build.ParseAndSetDebugLevels(cfg.DebugLevel, logWriter)
}
