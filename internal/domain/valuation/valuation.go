// Package valuation discounts per-path cash flows along the path's own
// simulated rates and reduces the cross-path results into a market value,
// Monte Carlo standard error, and weighted-average life.
package valuation

import (
	"math"

	"github.com/quantfolio/mbsengine/internal/domain/cashflow"
	"github.com/quantfolio/mbsengine/internal/domain/rates"
	"github.com/quantfolio/mbsengine/pkg/errors"
	"github.com/quantfolio/mbsengine/pkg/numeric"
)

// PathResult bundles one completed path: the rates it was driven by, the cash
// flows it produced, and their discounted present value.  It is owned by the
// aggregator until reduced, then discarded unless the caller asked to keep
// paths for diagnostics.
type PathResult struct {
	Index int
	Rates rates.Path
	Flows []cashflow.PeriodCashFlow
	PV    float64
}

// ValuationResult is the immutable final output of a Monte Carlo run.
type ValuationResult struct {
	// MarketValue is the arithmetic mean of per-path discounted present
	// values.
	MarketValue float64

	// StandardError is the sample standard deviation of per-path present
	// values divided by √numPaths.
	StandardError float64

	// WAL is the principal-weighted average time to principal return, pooled
	// across paths, in years.
	WAL float64

	// PathsUsed is the number of paths incorporated into the estimates.
	PathsUsed int
}

// DiscountFactors returns the cumulative discrete discount factors for a rate
// path: dfs[0] = 1 and dfs[i] = ∏_{j=1..i} 1/(1 + r_j·Δt), the factor
// applying to a cash flow at the end of period i.
func DiscountFactors(path rates.Path, dt float64) []float64 {
	dfs := make([]float64, len(path))
	if len(dfs) == 0 {
		return dfs
	}
	dfs[0] = 1
	for i := 1; i < len(path); i++ {
		dfs[i] = dfs[i-1] / (1 + path[i]*dt)
	}
	return dfs
}

// PresentValue discounts each period's total cash flow by that period's
// cumulative discount factor.  Cash flows beyond the rate horizon keep
// compounding at the path's final rate.
func PresentValue(flows []cashflow.PeriodCashFlow, path rates.Path, dt float64) float64 {
	dfs := DiscountFactors(path, dt)
	var lastRate float64
	if len(path) > 0 {
		lastRate = path[len(path)-1]
	}

	pv := 0.0
	df := 1.0
	for _, f := range flows {
		if f.Period < len(dfs) {
			df = dfs[f.Period]
		} else {
			df /= 1 + lastRate*dt
		}
		pv += f.Total * df
	}
	return pv
}

// NewPathResult computes the discounted present value and wraps the path.
func NewPathResult(index int, path rates.Path, flows []cashflow.PeriodCashFlow, dt float64) PathResult {
	return PathResult{
		Index: index,
		Rates: path,
		Flows: flows,
		PV:    PresentValue(flows, path, dt),
	}
}

// walComponents returns the WAL numerator (Σ tᵢ·principalᵢ, in years) and
// denominator (Σ principalᵢ) for one path's flows.
func walComponents(flows []cashflow.PeriodCashFlow, dt float64) (num, den float64) {
	for _, f := range flows {
		p := f.Principal()
		num += float64(f.Period) * dt * p
		den += p
	}
	return num, den
}

// WAL is the weighted-average life of a single path's flows in years: the
// principal-weighted mean time at which principal comes back.
func WAL(flows []cashflow.PeriodCashFlow, dt float64) float64 {
	num, den := walComponents(flows, dt)
	if den == 0 {
		return 0
	}
	return num / den
}

// ImpliedYield solves for the flat annual rate y whose constant-rate discount
// curve ∏ 1/(1+y·Δt) reprices the flows to targetPV.  The search brackets
// y ∈ [lo, hi]; a target unreachable inside the bracket is an
// invalid-parameter error.
func ImpliedYield(flows []cashflow.PeriodCashFlow, dt, targetPV float64) (float64, error) {
	if len(flows) == 0 {
		return 0, errors.InsufficientData("valuation: no cash flows to solve against")
	}
	if targetPV <= 0 || math.IsNaN(targetPV) {
		return 0, errors.InvalidParam("valuation: target value must be positive")
	}

	objective := func(y float64) float64 {
		pv := 0.0
		df := 1.0
		for _, f := range flows {
			df /= 1 + y*dt
			pv += f.Total * df
		}
		return pv - targetPV
	}

	const lo, hi = -0.5, 5.0
	res, err := numeric.Brent(objective, lo, hi, 1e-10, numeric.DefaultMaxIterations)
	if err != nil {
		return 0, errors.Wrap(err, errors.CodeInvalidParam, "valuation: implied yield not bracketed")
	}
	return res.Root, nil
}
