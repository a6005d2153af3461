// Package rates implements the stochastic short-rate models (Vasicek and
// Cox–Ingersoll–Ross) and the Monte Carlo path simulator built on them.
package rates

import (
	"math"

	"github.com/quantfolio/mbsengine/pkg/errors"
)

// ModelKind selects the short-rate process.
type ModelKind string

const (
	Vasicek ModelKind = "vasicek"
	CIR     ModelKind = "cir"
)

// NegativePolicy is the CIR non-negativity rule applied after each Euler
// update.  It is configuration, not an implementation detail: the choice
// biases valuation and must be visible to callers.
type NegativePolicy string

const (
	// PolicyTruncation floors the updated rate at zero.
	PolicyTruncation NegativePolicy = "truncation"

	// PolicyReflection reflects a negative updated rate about zero.
	PolicyReflection NegativePolicy = "reflection"
)

// ModelParams holds the short-rate model specification.  The struct is
// immutable for the duration of a run and safe to share across path workers.
type ModelParams struct {
	// Kind selects Vasicek or CIR dynamics.
	Kind ModelKind `mapstructure:"kind"`

	// Kappa is the mean-reversion speed κ.
	Kappa float64 `mapstructure:"kappa"`

	// Theta is the long-run mean level θ.
	Theta float64 `mapstructure:"theta"`

	// Sigma is the instantaneous volatility σ.
	Sigma float64 `mapstructure:"sigma"`

	// R0 is the initial short rate.
	R0 float64 `mapstructure:"r0"`

	// Policy is the CIR non-negativity rule; ignored for Vasicek.  Empty
	// defaults to truncation.
	Policy NegativePolicy `mapstructure:"policy"`
}

// Validate checks the model parameters.  Violations are invalid-parameter
// errors raised before any simulation starts.  The Feller condition is
// deliberately not validated here: it is a warning, not an error (see
// FellerSatisfied).
func (p ModelParams) Validate() error {
	switch p.Kind {
	case Vasicek, CIR:
	default:
		return errors.Newf(errors.CodeInvalidParam, "rates: unknown model kind %q", p.Kind)
	}
	for _, v := range []struct {
		name string
		val  float64
	}{
		{"kappa", p.Kappa},
		{"theta", p.Theta},
		{"sigma", p.Sigma},
		{"r0", p.R0},
	} {
		if math.IsNaN(v.val) || math.IsInf(v.val, 0) {
			return errors.Newf(errors.CodeInvalidParam, "rates: %s must be finite", v.name)
		}
	}
	if p.Kappa < 0 {
		return errors.InvalidParam("rates: kappa must be non-negative")
	}
	if p.Sigma < 0 {
		return errors.InvalidParam("rates: sigma must be non-negative")
	}
	if p.Kind == CIR {
		switch p.Policy {
		case "", PolicyTruncation, PolicyReflection:
		default:
			return errors.Newf(errors.CodeInvalidParam, "rates: unknown negative-rate policy %q", p.Policy)
		}
		if p.R0 < 0 {
			return errors.InvalidParam("rates: CIR initial rate must be non-negative")
		}
	}
	return nil
}

// FellerSatisfied reports whether 2κθ ≥ σ², the condition under which the
// continuous-time CIR process stays strictly positive.  Always true for
// Vasicek.  A violation is reported by the simulator as a warning because the
// discretisation proceeds regardless under the configured policy.
func (p ModelParams) FellerSatisfied() bool {
	if p.Kind != CIR {
		return true
	}
	return 2*p.Kappa*p.Theta >= p.Sigma*p.Sigma
}

// EffectivePolicy resolves the configured policy, defaulting to truncation.
func (p ModelParams) EffectivePolicy() NegativePolicy {
	if p.Policy == "" {
		return PolicyTruncation
	}
	return p.Policy
}
