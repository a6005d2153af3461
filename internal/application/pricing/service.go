// Package pricing orchestrates a full Monte Carlo valuation run: simulate
// rate paths, run each through the cash-flow engine, discount, and fold the
// results into a market value with diagnostics.
package pricing

import (
	"context"
	"math"
	"runtime"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/quantfolio/mbsengine/internal/domain/cashflow"
	"github.com/quantfolio/mbsengine/internal/domain/loan"
	"github.com/quantfolio/mbsengine/internal/domain/prepay"
	"github.com/quantfolio/mbsengine/internal/domain/rates"
	"github.com/quantfolio/mbsengine/internal/domain/valuation"
	"github.com/quantfolio/mbsengine/internal/infrastructure/monitoring/logging"
	"github.com/quantfolio/mbsengine/internal/infrastructure/monitoring/prometheus"
	"github.com/quantfolio/mbsengine/pkg/errors"
	"github.com/quantfolio/mbsengine/pkg/types/common"
)

// Discard reasons reported in diagnostics and metrics labels.
const (
	ReasonNumericalInstability = "numerical_instability"
)

// Run terminal statuses reported to metrics.
const (
	statusCompleted = "completed"
	statusFailed    = "failed"
	statusCancelled = "cancelled"
)

// Request specifies one valuation run.  Zero values for Dt, HorizonYears and
// Workers select the defaults (monthly grid, pool term, GOMAXPROCS).
type Request struct {
	Pool         loan.Pool
	RateParams   rates.ModelParams
	PrepayParams prepay.Params

	// Dt is the simulation step in years.  Defaults to 1/12.
	Dt float64

	// HorizonYears is the simulated horizon.  Defaults to the pool term.
	HorizonYears float64

	// NumPaths is the Monte Carlo path count; must be positive.
	NumPaths int

	// Seed drives the per-path generators; the same seed reproduces the
	// run bit for bit.
	Seed uint64

	// Workers bounds concurrent path workers.  Zero means GOMAXPROCS.
	Workers int

	// KeepPaths retains every per-path result on the Result for
	// diagnostics.  Memory grows linearly with NumPaths when set.
	KeepPaths bool
}

// DiscardedPath identifies a path dropped mid-run and why.
type DiscardedPath struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

// Result is the outcome of one valuation run.
type Result struct {
	RunID     common.ID                 `json:"run_id"`
	Valuation valuation.ValuationResult `json:"valuation"`

	// Discarded lists paths excluded from the fold, ordered by index.
	Discarded []DiscardedPath `json:"discarded,omitempty"`

	// Paths holds the per-path results when Request.KeepPaths was set.
	Paths []valuation.PathResult `json:"-"`

	Elapsed time.Duration `json:"elapsed"`
}

// Service wires the domain pipeline together.  It is stateless across runs
// and safe for concurrent use.
type Service struct {
	scheduler loan.ScheduleProvider
	logger    logging.Logger
	metrics   *prometheus.EngineMetrics
}

// NewService constructs a pricing service.  metrics may be nil, in which
// case instrumentation is skipped.
func NewService(scheduler loan.ScheduleProvider, logger logging.Logger, metrics *prometheus.EngineMetrics) *Service {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Service{
		scheduler: scheduler,
		logger:    logger.Named("pricing"),
		metrics:   metrics,
	}
}

// normalize applies the Request defaults without touching the caller's copy.
func (r Request) normalize() Request {
	if r.Dt == 0 {
		r.Dt = 1.0 / loan.PeriodsPerYear
	}
	if r.HorizonYears == 0 && r.Pool.TermMonths > 0 {
		r.HorizonYears = float64(r.Pool.TermMonths) / loan.PeriodsPerYear
	}
	if r.Workers == 0 {
		r.Workers = runtime.GOMAXPROCS(0)
	}
	return r
}

func (r Request) validate() error {
	if r.NumPaths <= 0 {
		return errors.Newf(errors.CodeInvalidParam, "pricing: num paths must be positive, got %d", r.NumPaths)
	}
	if r.Workers < 0 {
		return errors.Newf(errors.CodeInvalidParam, "pricing: workers must be non-negative, got %d", r.Workers)
	}
	if r.Dt < 0 || math.IsNaN(r.Dt) {
		return errors.Newf(errors.CodeInvalidParam, "pricing: dt must be non-negative, got %g", r.Dt)
	}
	if r.HorizonYears < 0 || math.IsNaN(r.HorizonYears) {
		return errors.Newf(errors.CodeInvalidParam, "pricing: horizon must be non-negative, got %g", r.HorizonYears)
	}
	if err := r.Pool.Validate(); err != nil {
		return err
	}
	if err := r.RateParams.Validate(); err != nil {
		return err
	}
	return r.PrepayParams.Validate()
}

// shard is the slice of per-worker accumulation merged after the fan-out.
type shard struct {
	agg       *valuation.Aggregator
	discarded []DiscardedPath
}

// Run executes one Monte Carlo valuation.  Every parameter is validated
// before the first path is simulated.  Paths that hit numerical instability
// are discarded individually; the run fails only when cancelled, when a
// non-discardable error occurs, or when no path survives.
func (s *Service) Run(ctx context.Context, req Request) (*Result, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	req = req.normalize()

	runID := common.NewID()
	model := string(req.RateParams.Kind)
	log := s.logger.With(
		logging.String("run_id", runID.String()),
		logging.String("model", model),
	)

	sim, err := rates.NewSimulator(req.RateParams, req.Dt, req.HorizonYears, req.NumPaths, req.Seed, log)
	if err != nil {
		return nil, err
	}
	prepayModel, err := prepay.NewModel(req.PrepayParams)
	if err != nil {
		return nil, err
	}
	engine := cashflow.NewEngine(s.scheduler)

	log.Info("valuation run starting",
		logging.Int("num_paths", req.NumPaths),
		logging.Int("workers", req.Workers),
		logging.Int("steps", sim.Steps()),
	)

	start := time.Now()
	shards := make([]shard, req.Workers)

	g, gctx := errgroup.WithContext(ctx)
	var next int64
	var mu sync.Mutex
	nextIndex := func() int {
		mu.Lock()
		defer mu.Unlock()
		i := int(next)
		next++
		return i
	}

	for w := 0; w < req.Workers; w++ {
		sh := &shards[w]
		sh.agg = valuation.NewAggregator(req.KeepPaths)
		g.Go(func() error {
			s.metrics.WorkerStarted(model)
			defer s.metrics.WorkerFinished(model)
			for {
				i := nextIndex()
				if i >= req.NumPaths {
					return nil
				}
				if err := gctx.Err(); err != nil {
					return errors.Cancelled("pricing: run cancelled").WithCause(err)
				}
				if err := s.runPath(gctx, req, sim, engine, prepayModel, i, sh, log); err != nil {
					return err
				}
			}
		})
	}

	err = g.Wait()
	elapsed := time.Since(start)

	if err != nil {
		status := statusFailed
		if errors.IsCode(err, errors.CodeCancelled) {
			status = statusCancelled
		}
		s.metrics.ObserveRun(model, status, elapsed)
		log.Error("valuation run aborted",
			logging.Err(err),
			logging.Duration("elapsed", elapsed),
		)
		return nil, err
	}

	total := shards[0].agg
	discarded := append([]DiscardedPath(nil), shards[0].discarded...)
	for _, sh := range shards[1:] {
		total.Merge(sh.agg)
		discarded = append(discarded, sh.discarded...)
	}
	sort.Slice(discarded, func(a, b int) bool { return discarded[a].Index < discarded[b].Index })

	res, err := total.Result()
	if err != nil {
		s.metrics.ObserveRun(model, statusFailed, elapsed)
		log.Error("valuation run produced no usable paths",
			logging.Int("discarded", len(discarded)),
		)
		return nil, errors.Wrap(err, errors.CodeInsufficientData,
			"pricing: every path was discarded")
	}

	s.metrics.ObserveRun(model, statusCompleted, elapsed)
	log.Info("valuation run completed",
		logging.Int("paths_used", res.PathsUsed),
		logging.Int("discarded", len(discarded)),
		logging.Float64("market_value", res.MarketValue),
		logging.Float64("standard_error", res.StandardError),
		logging.Float64("wal_years", res.WAL),
		logging.Duration("elapsed", elapsed),
	)

	return &Result{
		RunID:     runID,
		Valuation: res,
		Discarded: discarded,
		Paths:     total.Paths(),
		Elapsed:   elapsed,
	}, nil
}

// runPath executes the full pipeline for one path index and folds the
// outcome into the worker's shard.  Numerical instability discards the path
// and returns nil so the run continues.
func (s *Service) runPath(ctx context.Context, req Request, sim *rates.Simulator, engine *cashflow.Engine, model prepay.Model, index int, sh *shard, log logging.Logger) error {
	pathStart := time.Now()
	path := sim.SimulatePath(index)

	flows, err := engine.RunPath(ctx, req.Pool, model, path)
	if err != nil {
		if errors.IsCode(err, errors.CodeNumericalInstability) {
			sh.discarded = append(sh.discarded, DiscardedPath{
				Index:  index,
				Reason: ReasonNumericalInstability,
			})
			s.metrics.ObserveDiscard(string(req.RateParams.Kind), ReasonNumericalInstability)
			log.Warn("path discarded",
				logging.Int("path_index", index),
				logging.String("reason", ReasonNumericalInstability),
				logging.Err(err),
			)
			return nil
		}
		return err
	}

	sh.agg.Add(valuation.NewPathResult(index, path, flows, req.Dt), req.Dt)
	s.metrics.ObservePath(string(req.RateParams.Kind), time.Since(pathStart))
	return nil
}
