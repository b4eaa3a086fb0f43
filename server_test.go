package lem

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestServerConfig() *Config {
	cfg := DefaultConfig()
	cfg.LogDir = ""
	cfg.REST.Listen = "127.0.0.1:0"
	cfg.Prometheus.ListenAddr = "127.0.0.1:0"

	return cfg
}

func httpGet(t *testing.T, url string) []byte {
	t.Helper()

	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return body
}

// TestServerReplay replays a scenario through the fully wired server and
// checks the results are exposed by the REST API and the exporter.
func TestServerReplay(t *testing.T) {
	cfg := newTestServerConfig()
	cfg.Replay = true
	cfg.REST.Active = true
	cfg.Prometheus.Active = true

	scenario, err := DecodeScenario(strings.NewReader(testScenario))
	require.NoError(t, err)

	server, err := NewServer(cfg, scenario)
	require.NoError(t, err)
	require.NoError(t, server.Start())
	defer func() {
		require.NoError(t, server.Stop())
	}()

	summary, err := server.Replay(context.Background())
	require.NoError(t, err)

	require.Equal(t, 3, summary.Rounds)
	require.Equal(t, 1, summary.NoTradeRounds)
	require.Equal(t, 3, summary.Trades)
	require.True(t, summary.Volume.Equal(d("4")))
	require.True(t, summary.Turnover.Equal(d("108")))
	require.Zero(t, server.Market().Failures())

	select {
	case <-server.Done():
	default:
		t.Fatalf("scenario not exhausted")
	}

	acct, err := server.Ledger().Account("b2")
	require.NoError(t, err)
	require.True(t, acct.Balance.Equal(d("-24")))

	restAddr := "http://" + server.restServer.Addr().String()
	var rounds []RoundResponse
	body := httpGet(t, restAddr+"/v1/rounds")
	require.NoError(t, json.Unmarshal(body, &rounds))
	require.Len(t, rounds, 3)
	require.True(t, rounds[2].Timestamp.Equal(scenario.IntervalStart(2)))
	require.True(t, rounds[2].Price.Equal(d("24")))

	metricsAddr := "http://" + server.exporter.Addr().String()
	body = httpGet(t, metricsAddr+"/metrics")
	require.Contains(t, string(body), "round_count 3")
	require.Contains(t, string(body), "round_total_volume 4")
}

// TestServerLifecycle tests that a server clearing at interval boundaries
// can be started and stopped.
func TestServerLifecycle(t *testing.T) {
	cfg := newTestServerConfig()

	scenario, err := DecodeScenario(strings.NewReader(testScenario))
	require.NoError(t, err)

	server, err := NewServer(cfg, scenario)
	require.NoError(t, err)
	require.NoError(t, server.Start())
	require.NoError(t, server.Stop())

	// Stopping twice is a no-op.
	require.NoError(t, server.Stop())

	summary, err := server.Summary(scenario.Start, scenario.IntervalStart(3))
	require.NoError(t, err)
	require.Zero(t, summary.Rounds)
}

// TestNewServerInvalidConfig tests that an invalid config is rejected before
// any subsystem is created.
func TestNewServerInvalidConfig(t *testing.T) {
	cfg := newTestServerConfig()
	cfg.Matching.Rule = "vickrey"

	_, err := NewServer(cfg, &Scenario{})
	require.Error(t, err)
}
