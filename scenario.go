package lem

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/gridmarket/lem/order"
	"gopkg.in/yaml.v3"
)

// Scenario is a sequence of order books, one per trading interval, that the
// market replays.
type Scenario struct {
	// Start is the start of the first trading interval.
	Start time.Time `yaml:"start"`

	// Interval is the length of a trading interval. If zero, the interval
	// of the daemon config is used.
	Interval time.Duration `yaml:"interval"`

	// Rounds are the order books of the consecutive trading intervals.
	Rounds []order.Book `yaml:"rounds"`
}

// IntervalStart returns the start time of the given trading interval.
func (s *Scenario) IntervalStart(interval int) time.Time {
	return s.Start.Add(time.Duration(interval) * s.Interval)
}

// DecodeScenario reads a YAML encoded scenario from the given reader.
func DecodeScenario(r io.Reader) (*Scenario, error) {
	var scenario Scenario
	if err := yaml.NewDecoder(r).Decode(&scenario); err != nil {
		return nil, fmt.Errorf("unable to decode scenario: %w", err)
	}

	if scenario.Interval < 0 {
		return nil, fmt.Errorf("scenario interval must not be negative")
	}

	return &scenario, nil
}

// ReadScenarioFile reads a YAML encoded scenario from the file at the given
// path.
func ReadScenarioFile(path string) (*Scenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return DecodeScenario(f)
}
