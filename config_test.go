package lem

import (
	"testing"

	"github.com/gridmarket/lem/account"
	"github.com/gridmarket/lem/venue"
	"github.com/gridmarket/lem/venue/matching"
	"github.com/lightningnetwork/lnd/build"
	"github.com/lightningnetwork/lnd/signal"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// TestDefaultConfigValid makes sure the default config passes validation and
// selects a pay-as-clear engine.
func TestDefaultConfigValid(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	engineCfg, err := cfg.Matching.EngineConfig()
	require.NoError(t, err)
	require.Equal(t, matching.DefaultConfig(), engineCfg)
}

// TestConfigValidate tests that inconsistent configs are rejected.
func TestConfigValidate(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name   string
		modify func(*Config)
	}{{
		name: "zero interval",
		modify: func(c *Config) {
			c.Interval = 0
		},
	}, {
		name: "negative log files",
		modify: func(c *Config) {
			c.MaxLogFiles = -1
		},
	}, {
		name: "unknown rule",
		modify: func(c *Config) {
			c.Matching.Rule = "vickrey"
		},
	}, {
		name: "negative tolerance",
		modify: func(c *Config) {
			c.Matching.Tolerance = -0.1
		},
	}, {
		name: "negative initial balance",
		modify: func(c *Config) {
			c.Ledger.InitialBalance = -5
		},
	}, {
		name: "utility buys above its sell rate",
		modify: func(c *Config) {
			c.Utility.Active = true
			c.Utility.BuyRate = "10"
		},
	}, {
		name: "REST without address",
		modify: func(c *Config) {
			c.REST.Active = true
			c.REST.Listen = ""
		},
	}, {
		name: "prometheus without address",
		modify: func(c *Config) {
			c.Prometheus.Active = true
			c.Prometheus.ListenAddr = ""
		},
	}}

	for _, tc := range testCases {
		tc := tc

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			cfg := DefaultConfig()
			tc.modify(cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

// TestMatchingEngineConfig tests that the named policy options are parsed
// into the engine config.
func TestMatchingEngineConfig(t *testing.T) {
	t.Parallel()

	m := &MatchingConfig{
		Rule:                 "pab",
		TieBreak:             "participant",
		PriceSide:            "offer",
		Boundary:             "no_trade",
		SelfTrade:            "reject",
		Tolerance:            0.01,
		StrictReconciliation: true,
	}

	cfg, err := m.EngineConfig()
	require.NoError(t, err)
	require.Equal(t, matching.PayAsBidRule, cfg.Rule)
	require.Equal(t, matching.TieBreakParticipant, cfg.TieBreak)
	require.Equal(t, matching.PriceFromOffer, cfg.PriceSide)
	require.Equal(t, matching.BoundaryNoTrade, cfg.Boundary)
	require.Equal(t, matching.SelfTradeReject, cfg.SelfTrade)
	require.True(t, cfg.Tolerance.Equal(decimal.New(1, -2)))
	require.True(t, cfg.StrictReconciliation)

	// Empty options keep the defaults.
	cfg, err = (&MatchingConfig{Rule: "mcafee"}).EngineConfig()
	require.NoError(t, err)
	require.Equal(t, matching.McAfeeRule, cfg.Rule)
	require.Equal(t, matching.BoundaryPayAsClear, cfg.Boundary)
	require.True(t, cfg.Tolerance.Equal(matching.DefaultTolerance))
}

// TestInitLogging tests that the log file is created below the log directory.
func TestInitLogging(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LogDir = t.TempDir()
	cfg.DebugLevel = "debug"
	require.NoError(t, initLogging(cfg))

	cfg.DebugLevel = "chatty"
	require.Error(t, initLogging(cfg))
}

// TestSetupLoggers tests that every subsystem is registered with the root
// log writer and that the debug level can be set per subsystem.
func TestSetupLoggers(t *testing.T) {
	root := build.NewRotatingLogWriter()
	SetupLoggers(root, signal.Interceptor{})

	subsystems := root.SupportedSubsystems()
	for _, subsystem := range []string{
		Subsystem, "REST", matching.Subsystem, venue.Subsystem,
		account.Subsystem,
	} {
		require.Contains(t, subsystems, subsystem)
	}

	require.NoError(t, build.ParseAndSetDebugLevels(
		"info,MTCH=debug,VENU=trace", root,
	))
	require.Error(t, build.ParseAndSetDebugLevels("NOPE=debug", root))

	cfg := DefaultConfig()
	cfg.LogDir = ""
	cfg.DebugLevel = "ACCT=debug"
	require.NoError(t, initLogging(cfg))
}
