// Package config defines all configuration structures for the pricing
// engine.  No I/O or parsing logic lives here — only plain data types and
// validation.
package config

import (
	"fmt"
	"math"

	"github.com/quantfolio/mbsengine/internal/domain/loan"
	"github.com/quantfolio/mbsengine/internal/domain/prepay"
	"github.com/quantfolio/mbsengine/internal/domain/rates"
	"github.com/quantfolio/mbsengine/internal/infrastructure/monitoring/logging"
	"github.com/quantfolio/mbsengine/internal/infrastructure/monitoring/prometheus"
)

// MonteCarloConfig holds the simulation run tunables.
type MonteCarloConfig struct {
	NumPaths     int     `mapstructure:"num_paths"`
	Seed         uint64  `mapstructure:"seed"`
	Dt           float64 `mapstructure:"dt"`
	HorizonYears float64 `mapstructure:"horizon_years"`
	Workers      int     `mapstructure:"workers"`
	KeepPaths    bool    `mapstructure:"keep_paths"`
}

// Config is the root configuration structure for the engine.  The rate
// model, prepayment model, and pool sections unmarshal directly into their
// domain parameter types.
type Config struct {
	Rates      rates.ModelParams          `mapstructure:"rates"`
	Prepayment prepay.Params              `mapstructure:"prepayment"`
	Pool       loan.Pool                  `mapstructure:"pool"`
	MonteCarlo MonteCarloConfig           `mapstructure:"monte_carlo"`
	Log        logging.Config             `mapstructure:"log"`
	Metrics    prometheus.CollectorConfig `mapstructure:"metrics"`
}

// Validate performs semantic validation of the fully-populated Config.
// It returns the first error encountered; callers should treat any error as
// fatal and refuse to start the application.
func (c *Config) Validate() error {
	if err := c.Rates.Validate(); err != nil {
		return fmt.Errorf("config: rates section invalid: %w", err)
	}
	if err := c.Prepayment.Validate(); err != nil {
		return fmt.Errorf("config: prepayment section invalid: %w", err)
	}
	if err := c.Pool.Validate(); err != nil {
		return fmt.Errorf("config: pool section invalid: %w", err)
	}

	mc := c.MonteCarlo
	if mc.NumPaths < 1 {
		return fmt.Errorf("config: monte_carlo.num_paths must be ≥ 1, got %d", mc.NumPaths)
	}
	if mc.Dt <= 0 || math.IsNaN(mc.Dt) {
		return fmt.Errorf("config: monte_carlo.dt must be positive, got %g", mc.Dt)
	}
	if mc.HorizonYears <= 0 || math.IsNaN(mc.HorizonYears) {
		return fmt.Errorf("config: monte_carlo.horizon_years must be positive, got %g", mc.HorizonYears)
	}
	if mc.Workers < 0 {
		return fmt.Errorf("config: monte_carlo.workers must be ≥ 0, got %d", mc.Workers)
	}

	switch c.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log.level %q is invalid; expected debug|info|warn|error", c.Log.Level)
	}
	switch c.Log.Format {
	case "", "json", "console":
	default:
		return fmt.Errorf("config: log.format %q is invalid; expected json|console", c.Log.Format)
	}

	if c.Metrics.Namespace == "" {
		return fmt.Errorf("config: metrics.namespace is required")
	}

	return nil
}
