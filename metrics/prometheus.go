package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Manager owns every agenda metric. It satisfies agenda.Recorder.
type Manager struct {
	namespace        string
	histogramBuckets []float64
	registry         *prometheus.Registry
	runtime          bool

	// Admission
	admissions        *prometheus.CounterVec
	admissionDuration prometheus.Histogram

	// Imports
	importBatches *prometheus.CounterVec
	importRows    *prometheus.CounterVec

	// Storage and cache
	cacheLookups  *prometheus.CounterVec
	storageErrors *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// NewManager creates a Manager on its own registry unless one is given.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "agenda",
		histogramBuckets: prometheus.DefBuckets,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.registry == nil {
		m.registry = prometheus.NewRegistry()
	}
	if m.runtime {
		m.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.admissions = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "admissions_total",
		Help:      "Admission attempts by outcome",
	}, []string{"outcome"})

	m.admissionDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Name:      "admission_duration_seconds",
		Help:      "Time spent admitting one reservation, both reads included",
		Buckets:   m.histogramBuckets,
	})

	m.importBatches = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "import_batches_total",
		Help:      "Completed bulk imports by table and mode",
	}, []string{"table", "mode"})

	m.importRows = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "import_rows_total",
		Help:      "Imported rows by table and result (appended, duplicate, dropped)",
	}, []string{"table", "result"})

	m.cacheLookups = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "cache_lookups_total",
		Help:      "Read cache lookups by cache and result",
	}, []string{"cache", "result"})

	m.storageErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "storage_errors_total",
		Help:      "Record store failures by operation",
	}, []string{"op"})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by route, method and status code",
	}, []string{"route", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration by route and method",
		Buckets:   m.histogramBuckets,
	}, []string{"route", "method"})
}

// =============================================================================
// RECORDER
// =============================================================================

// ObserveAdmission counts an admission outcome.
func (m *Manager) ObserveAdmission(outcome string, elapsed time.Duration) {
	m.admissions.WithLabelValues(outcome).Inc()
	m.admissionDuration.Observe(elapsed.Seconds())
}

// ObserveImport counts a finished import batch.
func (m *Manager) ObserveImport(table, mode string, appended, duplicates, dropped int) {
	m.importBatches.WithLabelValues(table, mode).Inc()
	m.importRows.WithLabelValues(table, "appended").Add(float64(appended))
	m.importRows.WithLabelValues(table, "duplicate").Add(float64(duplicates))
	m.importRows.WithLabelValues(table, "dropped").Add(float64(dropped))
}

// ObserveCache counts a cache hit or miss.
func (m *Manager) ObserveCache(name string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(name, result).Inc()
}

// ObserveStorageError counts a failed store operation.
func (m *Manager) ObserveStorageError(op string) {
	m.storageErrors.WithLabelValues(op).Inc()
}

// ObserveHTTP records one served request. route is the router pattern,
// not the raw path, to keep label cardinality bounded.
func (m *Manager) ObserveHTTP(route, method string, status int, elapsed time.Duration) {
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

// =============================================================================
// EXPOSITION
// =============================================================================

// Registry is the registry metrics live on.
func (m *Manager) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format.
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
