package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gridmarket/lem"
	"github.com/jessevdk/go-flags"
)

var (
	// defaultConfigFilename is the default file name for the configuration
	// file of the market daemon.
	defaultConfigFilename = "marketd.conf"
)

func main() {
	err := start()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func start() error {
	// Pre-parse command line so that cfg.BaseDir is set.
	cfg, err := preParse()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.BaseDir, os.ModePerm); err != nil {
		return err
	}

	configFile := filepath.Join(cfg.BaseDir, defaultConfigFilename)
	if err := flags.IniParse(configFile, cfg); err != nil {
		// If it's a parsing related error, then we'll return
		// immediately, otherwise we can proceed as possibly the cfg
		// file doesn't exist which is OK.
		if _, ok := err.(*flags.IniError); ok {
			return err
		}
	}

	// Parse command line flags again to restore flags overwritten by ini
	// file and execute command.
	parser := getParser(cfg)
	_, err = parser.Parse()

	return err
}

// getParser returns a parser with the required options for marketd.
func getParser(cfg *lem.Config) *flags.Parser {
	parser := flags.NewParser(cfg, flags.Default)

	_, _ = parser.AddCommand(
		"daemon", "Run the market daemon", "Clears one round per "+
			"trading interval of the configured scenario",
		&daemonCommand{cfg: cfg},
	)

	return parser
}

// preParse parses the command line to make the base directory option
// available. This is required to find the correct config file path.
func preParse() (*lem.Config, error) {
	cfg := lem.DefaultConfig()
	preParser := getParser(cfg)

	// Don't execute commands during pre-parsing.
	preParser.CommandHandler = func(command flags.Commander,
		args []string) error {

		return nil
	}
	_, err := preParser.Parse()
	if e, ok := err.(*flags.Error); ok && e.Type == flags.ErrHelp {
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}
	return cfg, nil
}
