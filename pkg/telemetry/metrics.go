package telemetry

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for Gonnet.
type Metrics struct {
	config MetricsConfig

	// Evaluation metrics
	evaluations        *prometheus.CounterVec
	evaluationDuration *prometheus.HistogramVec
	manifestBytes      prometheus.Histogram

	// Import metrics
	importsResolved *prometheus.CounterVec
	importCacheHits prometheus.Counter

	// Native extension metrics
	nativeCalls *prometheus.CounterVec

	// Policy metrics
	policyChecks     *prometheus.CounterVec
	policyViolations *prometheus.CounterVec

	// Watch metrics
	watchReloads  *prometheus.CounterVec
	activeWatches prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		// Return a no-op metrics instance
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	// Create a new registry
	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		// Evaluation metrics
		evaluations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "evaluations_total",
				Help:      "Total number of evaluations performed",
			},
			[]string{"kind", "status"},
		),
		evaluationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "evaluation_duration_seconds",
				Help:      "Duration of evaluations in seconds",
				Buckets:   buckets,
			},
			[]string{"kind"},
		),
		manifestBytes: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "manifest_bytes",
				Help:      "Size of manifested output in bytes",
				Buckets:   prometheus.ExponentialBuckets(256, 4, 10),
			},
		),

		// Import metrics
		importsResolved: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "imports_resolved_total",
				Help:      "Total number of import resolutions",
			},
			[]string{"resolver", "result"},
		),
		importCacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "import_cache_hits_total",
				Help:      "Total number of import resolutions served from the content cache",
			},
		),

		// Native extension metrics
		nativeCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "native_calls_total",
				Help:      "Total number of native extension invocations",
			},
			[]string{"name", "status"},
		),

		// Policy metrics
		policyChecks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "policy_checks_total",
				Help:      "Total number of policy checks",
			},
			[]string{"decision"},
		),
		policyViolations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "policy_violations_total",
				Help:      "Total number of policy violations",
			},
			[]string{"severity"},
		),

		// Watch metrics
		watchReloads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "watch_reloads_total",
				Help:      "Total number of re-evaluations triggered by file changes",
			},
			[]string{"status"},
		),
		activeWatches: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_watches",
				Help:      "Current number of watched source files",
			},
		),
	}

	// Register all metrics
	registry.MustRegister(
		m.evaluations,
		m.evaluationDuration,
		m.manifestBytes,
		m.importsResolved,
		m.importCacheHits,
		m.nativeCalls,
		m.policyChecks,
		m.policyViolations,
		m.watchReloads,
		m.activeWatches,
	)

	return m, nil
}

// Evaluation Metrics

// RecordEvaluation records a completed evaluation with its kind, status, and duration.
func (m *Metrics) RecordEvaluation(kind, status string, duration time.Duration) {
	if m.evaluations == nil {
		return
	}
	m.evaluations.WithLabelValues(kind, status).Inc()
	m.evaluationDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordManifestBytes records the size of a manifested document.
func (m *Metrics) RecordManifestBytes(n int) {
	if m.manifestBytes == nil {
		return
	}
	m.manifestBytes.Observe(float64(n))
}

// Import Metrics

// RecordImportResolved records an import resolution attempt.
func (m *Metrics) RecordImportResolved(resolver, result string) {
	if m.importsResolved == nil {
		return
	}
	m.importsResolved.WithLabelValues(resolver, result).Inc()
}

// RecordImportCacheHit records an import served from the content cache.
func (m *Metrics) RecordImportCacheHit() {
	if m.importCacheHits == nil {
		return
	}
	m.importCacheHits.Inc()
}

// Native Extension Metrics

// RecordNativeCall records an invocation of a registered native extension.
func (m *Metrics) RecordNativeCall(name, status string) {
	if m.nativeCalls == nil {
		return
	}
	m.nativeCalls.WithLabelValues(name, status).Inc()
}

// Policy Metrics

// RecordPolicyCheck records the outcome of a policy check.
func (m *Metrics) RecordPolicyCheck(decision string) {
	if m.policyChecks == nil {
		return
	}
	m.policyChecks.WithLabelValues(decision).Inc()
}

// RecordPolicyViolation records a single policy violation.
func (m *Metrics) RecordPolicyViolation(severity string) {
	if m.policyViolations == nil {
		return
	}
	m.policyViolations.WithLabelValues(severity).Inc()
}

// Watch Metrics

// RecordWatchReload records a re-evaluation triggered by a file change.
func (m *Metrics) RecordWatchReload(status string) {
	if m.watchReloads == nil {
		return
	}
	m.watchReloads.WithLabelValues(status).Inc()
}

// SetActiveWatches sets the current number of watched source files.
func (m *Metrics) SetActiveWatches(count float64) {
	if m.activeWatches == nil {
		return
	}
	m.activeWatches.Set(count)
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// StartMetricsServer starts an HTTP server to expose metrics.
func (m *Metrics) StartMetricsServer() error {
	if !m.config.Enabled {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(m.config.Path, m.Handler())

	server := &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			// Log error but don't fail the application
			fmt.Printf("metrics server error: %v\n", err)
		}
	}()

	return nil
}
