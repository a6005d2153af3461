// Package config provides configuration loading, defaults, and validation
// for the pricing engine.
package config

import (
	"github.com/quantfolio/mbsengine/internal/domain/loan"
	"github.com/quantfolio/mbsengine/internal/domain/prepay"
	"github.com/quantfolio/mbsengine/internal/domain/rates"
)

// Default value constants.
const (
	DefaultModelKind = rates.Vasicek

	DefaultNumPaths = 1000
	DefaultSeed     = 42
	DefaultDt       = 1.0 / loan.PeriodsPerYear

	DefaultPoolFactor = 1.0

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultMetricsNamespace = "mbs"
)

// ApplyDefaults fills every zero-value field in cfg with the engine default.
// Fields that have already been set by the caller (non-zero values) are left
// unchanged so that explicit configuration always wins.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	// Rates
	if cfg.Rates.Kind == "" {
		cfg.Rates.Kind = DefaultModelKind
	}
	if cfg.Rates.Policy == "" {
		cfg.Rates.Policy = rates.PolicyTruncation
	}

	// Prepayment
	if cfg.Prepayment.Kind == "" {
		cfg.Prepayment.Kind = prepay.Constant
	}
	if cfg.Prepayment.Kind == prepay.RichardRoll && cfg.Prepayment.RichardRoll == (prepay.RichardRollParams{}) {
		cfg.Prepayment.RichardRoll = prepay.DefaultRichardRollParams()
	}

	// Pool
	if cfg.Pool.PoolFactor == 0 {
		cfg.Pool.PoolFactor = DefaultPoolFactor
	}

	// Monte Carlo
	if cfg.MonteCarlo.NumPaths == 0 {
		cfg.MonteCarlo.NumPaths = DefaultNumPaths
	}
	if cfg.MonteCarlo.Seed == 0 {
		cfg.MonteCarlo.Seed = DefaultSeed
	}
	if cfg.MonteCarlo.Dt == 0 {
		cfg.MonteCarlo.Dt = DefaultDt
	}
	if cfg.MonteCarlo.HorizonYears == 0 && cfg.Pool.TermMonths > 0 {
		cfg.MonteCarlo.HorizonYears = float64(cfg.Pool.TermMonths) / loan.PeriodsPerYear
	}
	// Workers 0 means GOMAXPROCS and is resolved by the pricing service.

	// Log
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}

	// Metrics
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}
}
