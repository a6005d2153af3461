package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setMinimalEnv supplies the pool and model settings every command needs,
// so the tests run without a config file on disk.
func setMinimalEnv(t *testing.T) {
	t.Helper()
	t.Setenv("MBS_RATES_KIND", "vasicek")
	t.Setenv("MBS_RATES_KAPPA", "0.15")
	t.Setenv("MBS_RATES_THETA", "0.05")
	t.Setenv("MBS_RATES_SIGMA", "0.01")
	t.Setenv("MBS_RATES_R0", "0.05")
	t.Setenv("MBS_PREPAYMENT_KIND", "constant")
	t.Setenv("MBS_PREPAYMENT_CPR", "0.06")
	t.Setenv("MBS_POOL_ORIGINAL_BALANCE", "100000")
	t.Setenv("MBS_POOL_NOTE_RATE", "0.06")
	t.Setenv("MBS_POOL_TERM_MONTHS", "360")
}

// execute runs the root command with args and returns the combined output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func TestWALCommandText(t *testing.T) {
	setMinimalEnv(t)

	out, err := execute(t, "wal", "--cpr", "0.06")
	require.NoError(t, err)
	assert.Contains(t, out, "WAL:")
	assert.Contains(t, out, "Total principal:")
}

func TestWALCommandJSON(t *testing.T) {
	setMinimalEnv(t)

	out, err := execute(t, "wal", "--cpr", "0", "--output", "json")
	require.NoError(t, err)

	var report walReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Zero(t, report.CPR)
	assert.InDelta(t, 100000.0, report.TotalPrincipal, 1e-3)
	assert.Equal(t, 360, report.Periods)
	assert.Greater(t, report.WALYears, 15.0)
}

func TestWALCommandRejectsBadCPR(t *testing.T) {
	setMinimalEnv(t)

	_, err := execute(t, "wal", "--cpr", "1.5")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cpr must be in [0,1]")
}

func TestPriceCommand(t *testing.T) {
	setMinimalEnv(t)

	out, err := execute(t, "price", "--paths", "8", "--seed", "42")
	require.NoError(t, err)
	assert.Contains(t, out, "Market value:")
	assert.Contains(t, out, "Paths used:      8")
}

func TestPriceCommandJSON(t *testing.T) {
	setMinimalEnv(t)

	out, err := execute(t, "price", "--paths", "4", "-o", "json")
	require.NoError(t, err)

	var payload struct {
		Valuation struct {
			MarketValue float64 `json:"MarketValue"`
			PathsUsed   int     `json:"PathsUsed"`
		} `json:"valuation"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &payload))
	assert.Equal(t, 4, payload.Valuation.PathsUsed)
	assert.Greater(t, payload.Valuation.MarketValue, 0.0)
}

func TestRejectsUnknownOutputFormat(t *testing.T) {
	setMinimalEnv(t)

	_, err := execute(t, "wal", "--output", "yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown output format")
}

func TestGetCLIContextUninitialized(t *testing.T) {
	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())
	_, err := GetCLIContext(cmd)
	require.Error(t, err)
}

func TestMissingPoolConfigFails(t *testing.T) {
	// No MBS_POOL_* settings: config validation rejects the run before any
	// command logic executes.
	t.Setenv("MBS_RATES_KIND", "vasicek")
	_, err := execute(t, "wal")
	require.Error(t, err)
}
