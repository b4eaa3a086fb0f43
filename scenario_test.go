package lem

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testScenario = `
start: 2021-06-01T00:00:00Z
interval: 15m
rounds:
  - bids: [[30, 2, b1]]
    offers: [[20, 2, s1]]
  - bids: []
    offers: [[20, 1, s1]]
  - bids: [[25, 1, b1], [24, 1.5, b2]]
    offers: [[10, 1, s1], [22, 1, s2]]
`

// TestDecodeScenario tests that a scenario is decoded with all its rounds.
func TestDecodeScenario(t *testing.T) {
	t.Parallel()

	scenario, err := DecodeScenario(strings.NewReader(testScenario))
	require.NoError(t, err)

	start := time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC)
	require.True(t, scenario.Start.Equal(start))
	require.Equal(t, 15*time.Minute, scenario.Interval)
	require.Len(t, scenario.Rounds, 3)
	require.Len(t, scenario.Rounds[2].Bids, 2)
	require.Equal(t, "1.5", scenario.Rounds[2].Bids[1].Quantity.String())
	require.Empty(t, scenario.Rounds[1].Bids)

	require.True(t, scenario.IntervalStart(2).Equal(
		start.Add(30*time.Minute),
	))

	book, ok, err := scenario.NextBook(0)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, book.Offers, 1)

	_, ok, err = scenario.NextBook(3)
	require.NoError(t, err)
	require.False(t, ok)
}

// TestDecodeScenarioInvalid tests that malformed scenarios are rejected.
func TestDecodeScenarioInvalid(t *testing.T) {
	t.Parallel()

	_, err := DecodeScenario(strings.NewReader("interval: -15m\n"))
	require.Error(t, err)

	_, err = DecodeScenario(strings.NewReader(
		"rounds:\n  - bids: [[30, 2]]\n",
	))
	require.Error(t, err)
}

// TestReadScenarioFile tests reading a scenario from disk.
func TestReadScenarioFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testScenario), 0600))

	scenario, err := ReadScenarioFile(path)
	require.NoError(t, err)
	require.Len(t, scenario.Rounds, 3)

	_, err = ReadScenarioFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
