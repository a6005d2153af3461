// Package config provides configuration loading, defaults, and validation
// for the pricing engine.
package config

import (
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// envPrefix is the environment variable prefix used by all engine settings.
const envPrefix = "MBS"

// configKeys lists every flat configuration key.  Viper only unmarshals
// keys it knows about, so each one is bound explicitly; without this,
// settings supplied purely through the environment would be silently
// dropped.
var configKeys = []string{
	"rates.kind", "rates.kappa", "rates.theta", "rates.sigma", "rates.r0", "rates.policy",
	"prepayment.kind", "prepayment.cpr",
	"prepayment.richard_roll.base", "prepayment.richard_roll.slope",
	"prepayment.richard_roll.steepness", "prepayment.richard_roll.threshold",
	"prepayment.richard_roll.seasoning_months", "prepayment.richard_roll.burnout_factor",
	"prepayment.richard_roll.max_cpr",
	"pool.original_balance", "pool.note_rate", "pool.term_months", "pool.pool_factor",
	"monte_carlo.num_paths", "monte_carlo.seed", "monte_carlo.dt",
	"monte_carlo.horizon_years", "monte_carlo.workers", "monte_carlo.keep_paths",
	"log.level", "log.format",
	"metrics.namespace", "metrics.subsystem", "metrics.enable_go_metrics",
}

// newViper builds a pre-configured Viper instance with the engine's standard
// settings: YAML file type, MBS_ env prefix, automatic env binding, and a
// key replacer that maps "." → "_" so that nested keys like
// "monte_carlo.num_paths" resolve to "MBS_MONTE_CARLO_NUM_PATHS".
func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range configKeys {
		_ = v.BindEnv(key)
	}
	return v
}

// Load reads the YAML file at configPath, merges any MBS_* environment
// variable overrides, applies engine defaults for unset fields, and
// validates the result.  It returns a fully-populated *Config or a
// descriptive error.
func Load(configPath string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: failed to read config file %q: %w", configPath, err)
	}

	return unmarshalAndFinalize(v)
}

// LoadFromEnv builds a Config entirely from MBS_* environment variables,
// with no config file required.  This is the preferred loading strategy for
// containerised deployments.
//
// Environment variable naming convention:
//
//	MBS_<SECTION>_<FIELD>   e.g.  MBS_RATES_KAPPA, MBS_POOL_TERM_MONTHS
func LoadFromEnv() (*Config, error) {
	v := newViper()
	// No config file — rely solely on env vars and defaults.
	return unmarshalAndFinalize(v)
}

// unmarshalAndFinalize unmarshals viper state into a Config struct, applies
// defaults, and validates the result.
func unmarshalAndFinalize(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal configuration: %w", err)
	}

	ApplyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}

	return cfg, nil
}

// Watch monitors configPath for changes and invokes onChange with the newly
// parsed Config whenever the file is modified on disk.  It is intended for
// hot-reloading non-critical settings such as the log level; callers are
// responsible for applying only the safe subset of changes at runtime.
//
// Watch is non-blocking; it starts a background goroutine managed by viper.
// If the changed file fails to parse or validate, onChange is not called.
func Watch(configPath string, onChange func(*Config)) {
	v := newViper()
	v.SetConfigFile(configPath)

	// Initial read — errors are ignored here; callers should call Load first.
	_ = v.ReadInConfig()

	v.WatchConfig()
	v.OnConfigChange(func(_ fsnotify.Event) {
		cfg, err := unmarshalAndFinalize(v)
		if err != nil {
			// A change that no longer parses or validates is skipped so the
			// application never enters a broken state.
			return
		}
		onChange(cfg)
	})
}

// MustLoad is a convenience wrapper around Load that panics on any error.
// It is intended for use in main() where a config-load failure is always
// fatal.
func MustLoad(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		panic(fmt.Sprintf("config: MustLoad failed: %v", err))
	}
	return cfg
}
