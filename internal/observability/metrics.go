package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Histogram bucket definitions.
var (
	httpDurationBuckets     = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
	upstreamDurationBuckets = []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}
	bodySizeBuckets         = []float64{100, 1024, 10240, 102400, 1048576}
)

// Metrics holds all Prometheus metric instruments for the BFF.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal     *prometheus.CounterVec
	HTTPRequestDuration   *prometheus.HistogramVec
	HTTPRequestSizeBytes  *prometheus.HistogramVec
	HTTPResponseSizeBytes *prometheus.HistogramVec

	// Create command metrics
	CreateExecutionsTotal    *prometheus.CounterVec
	CreateDuration           *prometheus.HistogramVec
	CreateValidationFailures *prometheus.CounterVec

	// Wizard metrics
	WizardStartsTotal      *prometheus.CounterVec
	WizardAdvancesTotal    *prometheus.CounterVec
	WizardCompletionsTotal *prometheus.CounterVec
	WizardActiveSessions   *prometheus.GaugeVec
	WizardExpirationsTotal *prometheus.CounterVec

	// Upstream collection metrics
	UpstreamRequestsTotal       *prometheus.CounterVec
	UpstreamRequestDuration     *prometheus.HistogramVec
	UpstreamCircuitBreakerState prometheus.Gauge
	UpstreamRetriesTotal        *prometheus.CounterVec

	// Cache metrics
	ListCacheHitsTotal        *prometheus.CounterVec
	ListCacheMissesTotal      *prometheus.CounterVec
	ListCacheInvalidatesTotal *prometheus.CounterVec

	// System metrics
	DefinitionsLoaded   prometheus.Gauge
	RecordsDroppedTotal *prometheus.CounterVec
}

// InitMetrics creates and registers all Prometheus metric instruments.
func InitMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		// HTTP
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mercura_http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path_pattern", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mercura_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: httpDurationBuckets,
		}, []string{"method", "path_pattern"}),
		HTTPRequestSizeBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mercura_http_request_size_bytes",
			Help:    "HTTP request body size in bytes.",
			Buckets: bodySizeBuckets,
		}, []string{"method", "path_pattern"}),
		HTTPResponseSizeBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mercura_http_response_size_bytes",
			Help:    "HTTP response body size in bytes.",
			Buckets: bodySizeBuckets,
		}, []string{"method", "path_pattern"}),

		// Creates
		CreateExecutionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mercura_create_executions_total",
			Help: "Total number of create command executions.",
		}, []string{"form_id", "status"}),
		CreateDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mercura_create_duration_seconds",
			Help:    "Create command duration in seconds.",
			Buckets: upstreamDurationBuckets,
		}, []string{"form_id"}),
		CreateValidationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mercura_create_validation_failures_total",
			Help: "Total number of create validation failures.",
		}, []string{"form_id"}),

		// Wizards
		WizardStartsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mercura_wizard_starts_total",
			Help: "Total number of wizard session starts.",
		}, []string{"form_id"}),
		WizardAdvancesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mercura_wizard_advances_total",
			Help: "Total number of wizard advances.",
		}, []string{"form_id", "event"}),
		WizardCompletionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mercura_wizard_completions_total",
			Help: "Total number of wizard session completions.",
		}, []string{"form_id", "final_status"}),
		WizardActiveSessions: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "mercura_wizard_active_sessions",
			Help: "Number of active wizard sessions.",
		}, []string{"form_id"}),
		WizardExpirationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mercura_wizard_expirations_total",
			Help: "Total number of wizard session expirations.",
		}, []string{"form_id"}),

		// Upstream
		UpstreamRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mercura_upstream_requests_total",
			Help: "Total number of upstream collection requests.",
		}, []string{"method", "path", "status"}),
		UpstreamRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mercura_upstream_request_duration_seconds",
			Help:    "Upstream request duration in seconds.",
			Buckets: upstreamDurationBuckets,
		}, []string{"method", "path"}),
		UpstreamCircuitBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mercura_upstream_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open).",
		}),
		UpstreamRetriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mercura_upstream_retries_total",
			Help: "Total number of upstream request retries.",
		}, []string{"path"}),

		// Cache
		ListCacheHitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mercura_list_cache_hits_total",
			Help: "Total list cache hits.",
		}, []string{"path"}),
		ListCacheMissesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mercura_list_cache_misses_total",
			Help: "Total list cache misses.",
		}, []string{"path"}),
		ListCacheInvalidatesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mercura_list_cache_invalidates_total",
			Help: "Total list cache invalidations.",
		}, []string{"path"}),

		// System
		DefinitionsLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mercura_definitions_loaded",
			Help: "Number of loaded resource definitions.",
		}),
		RecordsDroppedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mercura_records_dropped_total",
			Help: "Total upstream records dropped during schema normalization.",
		}, []string{"resource"}),
	}

	reg.MustRegister(
		// HTTP
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestSizeBytes,
		m.HTTPResponseSizeBytes,
		// Creates
		m.CreateExecutionsTotal,
		m.CreateDuration,
		m.CreateValidationFailures,
		// Wizards
		m.WizardStartsTotal,
		m.WizardAdvancesTotal,
		m.WizardCompletionsTotal,
		m.WizardActiveSessions,
		m.WizardExpirationsTotal,
		// Upstream
		m.UpstreamRequestsTotal,
		m.UpstreamRequestDuration,
		m.UpstreamCircuitBreakerState,
		m.UpstreamRetriesTotal,
		// Cache
		m.ListCacheHitsTotal,
		m.ListCacheMissesTotal,
		m.ListCacheInvalidatesTotal,
		// System
		m.DefinitionsLoaded,
		m.RecordsDroppedTotal,
	)

	return m
}

// --- Recording helpers ---

// RecordHTTPRequest records HTTP request metrics.
func (m *Metrics) RecordHTTPRequest(method, pathPattern string, status int, duration time.Duration, reqSize, respSize int) {
	statusStr := strconv.Itoa(status)
	m.HTTPRequestsTotal.WithLabelValues(method, pathPattern, statusStr).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, pathPattern).Observe(duration.Seconds())
	m.HTTPRequestSizeBytes.WithLabelValues(method, pathPattern).Observe(float64(reqSize))
	m.HTTPResponseSizeBytes.WithLabelValues(method, pathPattern).Observe(float64(respSize))
}

// RecordCreateExecution records create command metrics.
func (m *Metrics) RecordCreateExecution(formID, status string, duration time.Duration) {
	m.CreateExecutionsTotal.WithLabelValues(formID, status).Inc()
	m.CreateDuration.WithLabelValues(formID).Observe(duration.Seconds())
}

// RecordCreateValidationFailure records a create validation failure.
func (m *Metrics) RecordCreateValidationFailure(formID string) {
	m.CreateValidationFailures.WithLabelValues(formID).Inc()
}

// RecordWizardStart records a wizard session start.
func (m *Metrics) RecordWizardStart(formID string) {
	m.WizardStartsTotal.WithLabelValues(formID).Inc()
	m.WizardActiveSessions.WithLabelValues(formID).Inc()
}

// RecordWizardAdvance records a wizard advance event.
func (m *Metrics) RecordWizardAdvance(formID, event string) {
	m.WizardAdvancesTotal.WithLabelValues(formID, event).Inc()
}

// RecordWizardCompletion records a terminal wizard status.
func (m *Metrics) RecordWizardCompletion(formID, finalStatus string) {
	m.WizardCompletionsTotal.WithLabelValues(formID, finalStatus).Inc()
	m.WizardActiveSessions.WithLabelValues(formID).Dec()
}

// RecordWizardExpiration records a wizard session expiry.
func (m *Metrics) RecordWizardExpiration(formID string) {
	m.WizardExpirationsTotal.WithLabelValues(formID).Inc()
}

// RecordUpstreamRequest records an upstream collection request.
func (m *Metrics) RecordUpstreamRequest(method, path string, status int, duration time.Duration) {
	m.UpstreamRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.UpstreamRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// SetUpstreamCircuitBreakerState sets the breaker gauge.
// State: 0=closed, 1=half-open, 2=open.
func (m *Metrics) SetUpstreamCircuitBreakerState(state float64) {
	m.UpstreamCircuitBreakerState.Set(state)
}

// RecordUpstreamRetry records an upstream request retry.
func (m *Metrics) RecordUpstreamRetry(path string) {
	m.UpstreamRetriesTotal.WithLabelValues(path).Inc()
}

// RecordListCacheHit records a list cache hit.
func (m *Metrics) RecordListCacheHit(path string) {
	m.ListCacheHitsTotal.WithLabelValues(path).Inc()
}

// RecordListCacheMiss records a list cache miss.
func (m *Metrics) RecordListCacheMiss(path string) {
	m.ListCacheMissesTotal.WithLabelValues(path).Inc()
}

// RecordListCacheInvalidate records a cache invalidation.
func (m *Metrics) RecordListCacheInvalidate(path string) {
	m.ListCacheInvalidatesTotal.WithLabelValues(path).Inc()
}

// SetDefinitionsLoaded sets the number of loaded resource definitions.
func (m *Metrics) SetDefinitionsLoaded(count float64) {
	m.DefinitionsLoaded.Set(count)
}

// RecordRecordsDropped counts records dropped during normalization.
func (m *Metrics) RecordRecordsDropped(resource string, count int) {
	m.RecordsDroppedTotal.WithLabelValues(resource).Add(float64(count))
}

// --- HTTP Middleware ---

// MetricsMiddleware returns HTTP middleware that records request metrics using
// chi's route pattern (not the actual URL path) to avoid label cardinality
// explosion.
func (m *Metrics) MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &metricsResponseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		duration := time.Since(start)
		pathPattern := routePattern(r)
		reqSize := 0
		if r.ContentLength > 0 {
			reqSize = int(r.ContentLength)
		}

		m.RecordHTTPRequest(r.Method, pathPattern, sw.status, duration, reqSize, sw.bytes)
	})
}

// Handler returns the Prometheus HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// routePattern extracts chi's route pattern from the request context.
// Falls back to the raw URL path if no pattern is found.
func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return r.URL.Path
	}
	pattern := strings.Join(rctx.RoutePatterns, "")
	// chi route patterns have trailing /*, remove it.
	pattern = strings.TrimSuffix(pattern, "/*")
	if pattern == "" {
		return r.URL.Path
	}
	return pattern
}

// metricsResponseWriter wraps http.ResponseWriter to capture status and bytes.
type metricsResponseWriter struct {
	http.ResponseWriter
	status  int
	bytes   int
	written bool
}

func (w *metricsResponseWriter) WriteHeader(code int) {
	if !w.written {
		w.status = code
		w.written = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *metricsResponseWriter) Write(b []byte) (int, error) {
	if !w.written {
		w.written = true
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}
