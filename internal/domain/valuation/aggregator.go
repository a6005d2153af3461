package valuation

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/quantfolio/mbsengine/pkg/errors"
)

// Aggregator folds PathResults into the summary statistics.  The fold is
// commutative and associative (per-path PVs plus pooled WAL components), so
// partial aggregators built by independent workers can be merged in any
// order via Merge.
//
// An Aggregator is not safe for concurrent Add; give each worker its own and
// merge, or serialise Add behind the fan-in channel.
type Aggregator struct {
	pvs    []float64
	walNum float64
	walDen float64
	keep   bool
	kept   []PathResult
}

// NewAggregator returns an empty fold.  When keepPaths is set, every added
// PathResult is retained for diagnostics; otherwise only the summary scalars
// survive and the path becomes garbage immediately.
func NewAggregator(keepPaths bool) *Aggregator {
	return &Aggregator{keep: keepPaths}
}

// Add folds one completed path into the accumulator.
func (a *Aggregator) Add(pr PathResult, dt float64) {
	a.pvs = append(a.pvs, pr.PV)
	num, den := walComponents(pr.Flows, dt)
	a.walNum += num
	a.walDen += den
	if a.keep {
		a.kept = append(a.kept, pr)
	}
}

// Merge absorbs another accumulator, leaving other unusable.
func (a *Aggregator) Merge(other *Aggregator) {
	a.pvs = append(a.pvs, other.pvs...)
	a.walNum += other.walNum
	a.walDen += other.walDen
	if a.keep {
		a.kept = append(a.kept, other.kept...)
	}
}

// Count returns the number of paths folded so far.
func (a *Aggregator) Count() int { return len(a.pvs) }

// Paths returns the retained PathResults (nil unless keepPaths was set).
func (a *Aggregator) Paths() []PathResult { return a.kept }

// Result reduces the accumulator into the final ValuationResult.  Zero
// folded paths is an insufficient-data error: an estimate from nothing is
// never silently substituted.
func (a *Aggregator) Result() (ValuationResult, error) {
	n := len(a.pvs)
	if n == 0 {
		return ValuationResult{}, errors.InsufficientData("valuation: zero paths supplied to aggregator")
	}

	mean := stat.Mean(a.pvs, nil)
	stderr := 0.0
	if n > 1 {
		stderr = stat.StdDev(a.pvs, nil) / math.Sqrt(float64(n))
	}

	wal := 0.0
	if a.walDen > 0 {
		wal = a.walNum / a.walDen
	}

	return ValuationResult{
		MarketValue:   mean,
		StandardError: stderr,
		WAL:           wal,
		PathsUsed:     n,
	}, nil
}
