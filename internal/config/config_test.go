package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfolio/mbsengine/internal/domain/loan"
	"github.com/quantfolio/mbsengine/internal/domain/prepay"
	"github.com/quantfolio/mbsengine/internal/domain/rates"
)

func validConfig() *Config {
	cfg := &Config{
		Rates: rates.ModelParams{
			Kind:  rates.Vasicek,
			Kappa: 0.15,
			Theta: 0.05,
			Sigma: 0.01,
			R0:    0.05,
		},
		Prepayment: prepay.Params{Kind: prepay.Constant, CPR: 0.06},
		Pool: loan.Pool{
			OriginalBalance: 100000,
			NoteRate:        0.06,
			TermMonths:      360,
		},
	}
	ApplyDefaults(cfg)
	return cfg
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.Pool.TermMonths = 240
	ApplyDefaults(cfg)

	assert.Equal(t, rates.Vasicek, cfg.Rates.Kind)
	assert.Equal(t, rates.PolicyTruncation, cfg.Rates.Policy)
	assert.Equal(t, prepay.Constant, cfg.Prepayment.Kind)
	assert.Equal(t, 1.0, cfg.Pool.PoolFactor)
	assert.Equal(t, DefaultNumPaths, cfg.MonteCarlo.NumPaths)
	assert.Equal(t, uint64(DefaultSeed), cfg.MonteCarlo.Seed)
	assert.InDelta(t, 1.0/12, cfg.MonteCarlo.Dt, 1e-12)
	assert.InDelta(t, 20.0, cfg.MonteCarlo.HorizonYears, 1e-12)
	assert.Equal(t, DefaultLogLevel, cfg.Log.Level)
	assert.Equal(t, DefaultLogFormat, cfg.Log.Format)
	assert.Equal(t, DefaultMetricsNamespace, cfg.Metrics.Namespace)
}

func TestApplyDefaultsPreservesExplicitValues(t *testing.T) {
	cfg := &Config{}
	cfg.Pool.TermMonths = 360
	cfg.MonteCarlo.NumPaths = 50
	cfg.MonteCarlo.HorizonYears = 5
	cfg.Log.Level = "debug"
	ApplyDefaults(cfg)

	assert.Equal(t, 50, cfg.MonteCarlo.NumPaths)
	assert.Equal(t, 5.0, cfg.MonteCarlo.HorizonYears)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestApplyDefaultsRichardRollCoefficients(t *testing.T) {
	cfg := &Config{}
	cfg.Prepayment.Kind = prepay.RichardRoll
	cfg.Pool.TermMonths = 360
	ApplyDefaults(cfg)

	assert.Equal(t, prepay.DefaultRichardRollParams(), cfg.Prepayment.RichardRoll)
}

func TestApplyDefaultsNilConfig(t *testing.T) {
	assert.NotPanics(t, func() { ApplyDefaults(nil) })
}

func TestValidateAcceptsValidConfig(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad rates", func(c *Config) { c.Rates.Kappa = -1 }, "rates section"},
		{"bad prepayment", func(c *Config) { c.Prepayment.CPR = 2 }, "prepayment section"},
		{"bad pool", func(c *Config) { c.Pool.TermMonths = 0 }, "pool section"},
		{"zero paths", func(c *Config) { c.MonteCarlo.NumPaths = 0 }, "num_paths"},
		{"zero dt", func(c *Config) { c.MonteCarlo.Dt = 0 }, "monte_carlo.dt"},
		{"zero horizon", func(c *Config) { c.MonteCarlo.HorizonYears = 0 }, "horizon_years"},
		{"negative workers", func(c *Config) { c.MonteCarlo.Workers = -2 }, "workers"},
		{"bad log level", func(c *Config) { c.Log.Level = "verbose" }, "log.level"},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"no namespace", func(c *Config) { c.Metrics.Namespace = "" }, "metrics.namespace"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
