package lem

import (
	"github.com/btcsuite/btclog"
	"github.com/gridmarket/lem/account"
	"github.com/gridmarket/lem/accounting"
	"github.com/gridmarket/lem/metrics"
	"github.com/gridmarket/lem/monitoring"
	"github.com/gridmarket/lem/order"
	"github.com/gridmarket/lem/venue"
	"github.com/gridmarket/lem/venue/matching"
	"github.com/lightningnetwork/lnd/build"
	"github.com/lightningnetwork/lnd/signal"
)

const Subsystem = "MRKT"

var (
	logWriter = build.NewRotatingLogWriter()
	log       = build.NewSubLogger(Subsystem, nil)
	restLog   = build.NewSubLogger("REST", nil)
)

// SetupLoggers initializes all package-global logger variables.
func SetupLoggers(root *build.RotatingLogWriter, intercept signal.Interceptor) {
	genLogger := genSubLogger(root, intercept)

	logWriter = root
	log = build.NewSubLogger(Subsystem, genLogger)
	restLog = build.NewSubLogger("REST", genLogger)

	setSubLogger(root, Subsystem, log, nil)
	setSubLogger(root, "REST", restLog, nil)
	addSubLogger(root, "SGNL", intercept, signal.UseLogger)
	addSubLogger(root, order.Subsystem, intercept, order.UseLogger)
	addSubLogger(root, matching.Subsystem, intercept, matching.UseLogger)
	addSubLogger(root, venue.Subsystem, intercept, venue.UseLogger)
	addSubLogger(root, account.Subsystem, intercept, account.UseLogger)
	addSubLogger(root, accounting.Subsystem, intercept, accounting.UseLogger)
	addSubLogger(root, metrics.Subsystem, intercept, metrics.UseLogger)
	addSubLogger(root, monitoring.Subsystem, intercept, monitoring.UseLogger)
}

// genSubLogger creates a logger for a subsystem. We provide an instance of
// a signal.Interceptor to be able to shutdown in the case of a critical error.
func genSubLogger(root *build.RotatingLogWriter,
	interceptor signal.Interceptor) func(string) btclog.Logger {

	// Create a shutdown function which will request shutdown from our
	// interceptor if it is listening.
	shutdown := func() {
		if !interceptor.Listening() {
			return
		}

		interceptor.RequestShutdown()
	}

	// Return a function which will create a sublogger from our root
	// logger without shutdown fn.
	return func(tag string) btclog.Logger {
		return root.GenSubLogger(tag, shutdown)
	}
}

// addSubLogger is a helper method to conveniently create and register the
// logger of a sub system.
func addSubLogger(root *build.RotatingLogWriter, subsystem string,
	interceptor signal.Interceptor, useLogger func(btclog.Logger)) {

	logger := build.NewSubLogger(subsystem, genSubLogger(root, interceptor))
	setSubLogger(root, subsystem, logger, useLogger)
}

// setSubLogger is a helper method to conveniently register the logger of a sub
// system.
func setSubLogger(root *build.RotatingLogWriter, subsystem string,
	logger btclog.Logger, useLogger func(btclog.Logger)) {

	root.RegisterSubLogger(subsystem, logger)
	if useLogger != nil {
		useLogger(logger)
	}
}
