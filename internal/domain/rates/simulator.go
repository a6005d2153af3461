package rates

import (
	"context"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/quantfolio/mbsengine/internal/infrastructure/monitoring/logging"
	"github.com/quantfolio/mbsengine/pkg/errors"
)

// Path is one discrete-time sample path of the short rate: Path[0] is r₀ and
// Path[i] is the rate over the i-th period of length Δt.  A Path has exactly
// one owner and is never mutated after generation.
type Path []float64

// pathSeedMix decorrelates per-path seeds; the constant is the 64-bit golden
// ratio used by splitmix-style generators.
const pathSeedMix = 0x9E3779B97F4A7C15

// Simulator generates short-rate paths under a Vasicek or CIR model using
// Euler discretisation.
//
// Discretisation notes:
//   - Vasicek: r ← r + κ(θ−r)Δt + σ√Δt·Z.  Rates may go negative; that is
//     a property of the model and is allowed.
//   - CIR: r ← r + κ(θ−r)Δt + σ√(max(r,0))·√Δt·Z, followed by the
//     configured NegativePolicy, so stored CIR paths are non-negative at
//     every step under either policy.
//
// Draws are reproducible: path i is generated from a dedicated source seeded
// by (seed, i) only, so the same seed and path index yield a bit-identical
// path regardless of how paths are scheduled across workers, and distinct
// paths are independent.
type Simulator struct {
	params   ModelParams
	dt       float64
	steps    int
	numPaths int
	seed     uint64
	logger   logging.Logger
}

// NewSimulator validates the inputs and builds a Simulator for numPaths paths
// on a Δt grid covering horizon years.  Invalid inputs fail here, before any
// simulation work.  A CIR parameter set violating the Feller condition is
// logged as a warning and accepted.
func NewSimulator(params ModelParams, dt, horizon float64, numPaths int, seed uint64, logger logging.Logger) (*Simulator, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if dt <= 0 || math.IsNaN(dt) || math.IsInf(dt, 0) {
		return nil, errors.InvalidParam("rates: dt must be positive")
	}
	if horizon <= 0 || math.IsNaN(horizon) || math.IsInf(horizon, 0) {
		return nil, errors.InvalidParam("rates: horizon must be positive")
	}
	if numPaths <= 0 {
		return nil, errors.Newf(errors.CodeInvalidParam, "rates: numPaths must be positive, got %d", numPaths)
	}

	steps := int(math.Round(horizon / dt))
	if steps < 1 {
		return nil, errors.InvalidParam("rates: horizon must cover at least one step")
	}

	if !params.FellerSatisfied() {
		logger.Warn("CIR Feller condition violated; proceeding under non-negativity policy",
			logging.Float64("kappa", params.Kappa),
			logging.Float64("theta", params.Theta),
			logging.Float64("sigma", params.Sigma),
			logging.String("policy", string(params.EffectivePolicy())),
		)
	}

	return &Simulator{
		params:   params,
		dt:       dt,
		steps:    steps,
		numPaths: numPaths,
		seed:     seed,
		logger:   logger.Named("rates"),
	}, nil
}

// Steps returns the number of Δt steps per path; generated paths have
// Steps()+1 points including r₀.
func (s *Simulator) Steps() int { return s.steps }

// NumPaths returns the configured path count.
func (s *Simulator) NumPaths() int { return s.numPaths }

// Dt returns the discretisation step in years.
func (s *Simulator) Dt() float64 { return s.dt }

// Params returns the model parameters.
func (s *Simulator) Params() ModelParams { return s.params }

// SimulatePath generates the path with the given index.  The index must be in
// [0, NumPaths).  The call is deterministic in (seed, index) and safe to
// invoke concurrently from multiple workers.
func (s *Simulator) SimulatePath(index int) Path {
	src := rand.NewSource(s.seed ^ (uint64(index+1) * pathSeedMix))
	normal := distuv.Normal{Mu: 0, Sigma: 1, Src: src}

	p := s.params
	sqrtDt := math.Sqrt(s.dt)
	path := make(Path, s.steps+1)
	path[0] = p.R0

	r := p.R0
	for i := 1; i <= s.steps; i++ {
		z := normal.Rand()
		switch p.Kind {
		case CIR:
			floored := math.Max(r, 0)
			r += p.Kappa*(p.Theta-r)*s.dt + p.Sigma*math.Sqrt(floored)*sqrtDt*z
			if r < 0 {
				if p.EffectivePolicy() == PolicyReflection {
					r = -r
				} else {
					r = 0
				}
			}
		default: // Vasicek
			r += p.Kappa*(p.Theta-r)*s.dt + p.Sigma*sqrtDt*z
		}
		path[i] = r
	}
	return path
}

// Simulate generates all configured paths in index order, checking ctx
// between paths.  Callers wanting parallel generation fan out over
// SimulatePath themselves; the result is identical either way because each
// path depends only on (seed, index).
func (s *Simulator) Simulate(ctx context.Context) ([]Path, error) {
	paths := make([]Path, 0, s.numPaths)
	for i := 0; i < s.numPaths; i++ {
		select {
		case <-ctx.Done():
			return nil, errors.Cancelled("rates: simulation cancelled").WithCause(ctx.Err())
		default:
		}
		paths = append(paths, s.SimulatePath(i))
	}
	return paths, nil
}
