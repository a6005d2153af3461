// Package prometheus provides the metrics-collection interface used by the
// pricing engine and its prometheus/client_golang implementation.  Components
// depend on MetricsCollector rather than on client_golang directly, mirroring
// the logging package's interface-first layout.
package prometheus

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/quantfolio/mbsengine/internal/infrastructure/monitoring/logging"
)

// MetricsCollector registers and serves engine metrics.
type MetricsCollector interface {
	RegisterCounter(name, help string, labels ...string) CounterVec
	RegisterGauge(name, help string, labels ...string) GaugeVec
	RegisterHistogram(name, help string, buckets []float64, labels ...string) HistogramVec
	Handler() http.Handler
}

// CounterVec wraps prometheus.CounterVec.
type CounterVec interface {
	WithLabelValues(lvs ...string) Counter
}

// Counter wraps prometheus.Counter.
type Counter interface {
	Inc()
	Add(delta float64)
}

// GaugeVec wraps prometheus.GaugeVec.
type GaugeVec interface {
	WithLabelValues(lvs ...string) Gauge
}

// Gauge wraps prometheus.Gauge.
type Gauge interface {
	Set(value float64)
	Inc()
	Dec()
	Add(delta float64)
	Sub(delta float64)
}

// HistogramVec wraps prometheus.HistogramVec.
type HistogramVec interface {
	WithLabelValues(lvs ...string) Histogram
}

// Histogram wraps prometheus.Histogram.
type Histogram interface {
	Observe(value float64)
}

// CollectorConfig holds construction parameters for the collector.
type CollectorConfig struct {
	// Namespace prefixes every metric name; required.
	Namespace string `mapstructure:"namespace"`

	// Subsystem optionally groups metrics below the namespace.
	Subsystem string `mapstructure:"subsystem"`

	// EnableGoMetrics adds the standard Go runtime collectors.
	EnableGoMetrics bool `mapstructure:"enable_go_metrics"`

	// ConstLabels are attached to every metric.
	ConstLabels map[string]string `mapstructure:"const_labels"`
}

type prometheusCollector struct {
	registry   *prometheus.Registry
	config     CollectorConfig
	registered map[string]prometheus.Collector
	mu         sync.Mutex
	logger     logging.Logger
}

// NewMetricsCollector creates a MetricsCollector with its own registry.
func NewMetricsCollector(cfg CollectorConfig, logger logging.Logger) (MetricsCollector, error) {
	if cfg.Namespace == "" {
		return nil, fmt.Errorf("prometheus: namespace is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	registry := prometheus.NewRegistry()
	if cfg.EnableGoMetrics {
		registry.MustRegister(collectors.NewGoCollector())
		registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}

	return &prometheusCollector{
		registry:   registry,
		config:     cfg,
		registered: make(map[string]prometheus.Collector),
		logger:     logger.Named("metrics"),
	}, nil
}

func (c *prometheusCollector) RegisterCounter(name, help string, labels ...string) CounterVec {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.registered[name]; ok {
		return &counterVec{v: existing.(*prometheus.CounterVec)}
	}
	v := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   c.config.Namespace,
		Subsystem:   c.config.Subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: c.config.ConstLabels,
	}, labels)
	c.registry.MustRegister(v)
	c.registered[name] = v
	return &counterVec{v: v}
}

func (c *prometheusCollector) RegisterGauge(name, help string, labels ...string) GaugeVec {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.registered[name]; ok {
		return &gaugeVec{v: existing.(*prometheus.GaugeVec)}
	}
	v := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   c.config.Namespace,
		Subsystem:   c.config.Subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: c.config.ConstLabels,
	}, labels)
	c.registry.MustRegister(v)
	c.registered[name] = v
	return &gaugeVec{v: v}
}

func (c *prometheusCollector) RegisterHistogram(name, help string, buckets []float64, labels ...string) HistogramVec {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.registered[name]; ok {
		return &histogramVec{v: existing.(*prometheus.HistogramVec)}
	}
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}
	v := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   c.config.Namespace,
		Subsystem:   c.config.Subsystem,
		Name:        name,
		Help:        help,
		Buckets:     buckets,
		ConstLabels: c.config.ConstLabels,
	}, labels)
	c.registry.MustRegister(v)
	c.registered[name] = v
	return &histogramVec{v: v}
}

func (c *prometheusCollector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ── thin wrappers over client_golang vectors ─────────────────────────────────

type counterVec struct{ v *prometheus.CounterVec }

func (c *counterVec) WithLabelValues(lvs ...string) Counter {
	return c.v.WithLabelValues(lvs...)
}

type gaugeVec struct{ v *prometheus.GaugeVec }

func (g *gaugeVec) WithLabelValues(lvs ...string) Gauge {
	return g.v.WithLabelValues(lvs...)
}

type histogramVec struct{ v *prometheus.HistogramVec }

func (h *histogramVec) WithLabelValues(lvs ...string) Histogram {
	return h.v.WithLabelValues(lvs...)
}
