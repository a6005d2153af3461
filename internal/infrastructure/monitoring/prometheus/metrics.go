package prometheus

import "time"

// EngineMetrics holds every metric emitted by the pricing engine.
type EngineMetrics struct {
	// RunsTotal counts valuation runs by rate model and terminal status
	// ("completed", "failed", "cancelled").
	RunsTotal CounterVec

	// RunDuration observes wall-clock seconds per valuation run.
	RunDuration HistogramVec

	// PathsSimulatedTotal counts Monte Carlo paths that completed the full
	// simulate → cashflow → discount pipeline.
	PathsSimulatedTotal CounterVec

	// PathsDiscardedTotal counts paths dropped mid-run, labelled by reason
	// ("numerical_instability", "cancelled").
	PathsDiscardedTotal CounterVec

	// PathDuration observes per-path computation seconds.
	PathDuration HistogramVec

	// ActiveWorkers tracks the number of in-flight path workers.
	ActiveWorkers GaugeVec
}

// Histogram buckets tuned for the engine's two time scales: full Monte Carlo
// runs (up to minutes) and single paths (sub-second for monthly grids).
var (
	DefaultRunDurationBuckets  = []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120}
	DefaultPathDurationBuckets = []float64{.0001, .00025, .0005, .001, .0025, .005, .01, .025, .05, .1}
)

// NewEngineMetrics registers the engine metric set on the collector.
func NewEngineMetrics(collector MetricsCollector) *EngineMetrics {
	return &EngineMetrics{
		RunsTotal:           collector.RegisterCounter("runs_total", "Valuation runs by model and status", "model", "status"),
		RunDuration:         collector.RegisterHistogram("run_duration_seconds", "Valuation run duration", DefaultRunDurationBuckets, "model"),
		PathsSimulatedTotal: collector.RegisterCounter("paths_simulated_total", "Completed Monte Carlo paths", "model"),
		PathsDiscardedTotal: collector.RegisterCounter("paths_discarded_total", "Discarded Monte Carlo paths", "model", "reason"),
		PathDuration:        collector.RegisterHistogram("path_duration_seconds", "Per-path computation duration", DefaultPathDurationBuckets, "model"),
		ActiveWorkers:       collector.RegisterGauge("active_workers", "In-flight path workers", "model"),
	}
}

// ObserveRun records the terminal state and duration of one valuation run.
func (m *EngineMetrics) ObserveRun(model, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(model, status).Inc()
	m.RunDuration.WithLabelValues(model).Observe(elapsed.Seconds())
}

// ObservePath records one path that completed the full pipeline.
func (m *EngineMetrics) ObservePath(model string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.PathsSimulatedTotal.WithLabelValues(model).Inc()
	m.PathDuration.WithLabelValues(model).Observe(elapsed.Seconds())
}

// ObserveDiscard records one path dropped mid-run.
func (m *EngineMetrics) ObserveDiscard(model, reason string) {
	if m == nil {
		return
	}
	m.PathsDiscardedTotal.WithLabelValues(model, reason).Inc()
}

// WorkerStarted and WorkerFinished bracket a path worker's lifetime.
func (m *EngineMetrics) WorkerStarted(model string) {
	if m == nil {
		return
	}
	m.ActiveWorkers.WithLabelValues(model).Inc()
}

func (m *EngineMetrics) WorkerFinished(model string) {
	if m == nil {
		return
	}
	m.ActiveWorkers.WithLabelValues(model).Dec()
}
