package main

import (
	"context"
	"fmt"
	"os"

	"github.com/gridmarket/lem"
	"github.com/lightningnetwork/lnd/build"
	"github.com/lightningnetwork/lnd/signal"
)

type daemonCommand struct {
	cfg *lem.Config
}

func (x *daemonCommand) Execute(_ []string) error {
	// Hook interceptor for os signals.
	shutdownInterceptor, err := signal.Intercept()
	if err != nil {
		return err
	}

	logWriter := build.NewRotatingLogWriter()
	lem.SetupLoggers(logWriter, shutdownInterceptor)

	// Special show command to list supported subsystems and exit.
	if x.cfg.DebugLevel == "show" {
		fmt.Printf("Supported subsystems: %v\n",
			logWriter.SupportedSubsystems())
		os.Exit(0)
	}

	if x.cfg.Scenario == "" {
		return fmt.Errorf("a scenario file is required")
	}
	scenario, err := lem.ReadScenarioFile(x.cfg.Scenario)
	if err != nil {
		return fmt.Errorf("unable to read scenario: %v", err)
	}

	server, err := lem.NewServer(x.cfg, scenario)
	if err != nil {
		return fmt.Errorf("unable to create server: %v", err)
	}

	if err := server.Start(); err != nil {
		return fmt.Errorf("unable to start server: %v", err)
	}

	if x.cfg.Replay {
		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			<-shutdownInterceptor.ShutdownChannel()
			cancel()
		}()

		summary, err := server.Replay(ctx)
		cancel()
		if err != nil {
			_ = server.Stop()
			return fmt.Errorf("unable to replay scenario: %v", err)
		}
		printSummary(summary, server.Market().Failures())

		// Keep serving the results if anybody can query them.
		if !x.cfg.REST.Active && !x.cfg.Prometheus.Active {
			return server.Stop()
		}
	}

	// Wait for any external interrupt signal.
	<-shutdownInterceptor.ShutdownChannel()

	return server.Stop()
}
