package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Billing metrics
	BillingRunsTotal         *prometheus.CounterVec
	BillingRunDuration       *prometheus.HistogramVec
	BillingPeriodsAdvanced   prometheus.Counter
	BillingRecordsCreated    prometheus.Counter
	BillingRecordDuplicates  prometheus.Counter
	BillingSubscriptionsHit  prometheus.Counter
	BillingSubscriptionFails prometheus.Counter

	// FX metrics
	FXLookupsTotal   *prometheus.CounterVec
	FXCacheHitsTotal *prometheus.CounterVec

	// Database metrics
	DBConnectionsOpen  prometheus.Gauge
	DBConnectionsInUse prometheus.Gauge
	DBConnectionsIdle  prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "subledger_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "subledger_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),

		BillingRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "subledger_billing_runs_total",
				Help: "Total number of billing simulation runs",
			},
			[]string{"mode", "status"},
		),
		BillingRunDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "subledger_billing_run_duration_seconds",
				Help:    "Billing simulation run duration in seconds",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"mode"},
		),
		BillingPeriodsAdvanced: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "subledger_billing_periods_advanced_total",
				Help: "Total number of billing periods advanced",
			},
		),
		BillingRecordsCreated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "subledger_billing_records_created_total",
				Help: "Total number of ledger entries inserted",
			},
		),
		BillingRecordDuplicates: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "subledger_billing_record_duplicates_total",
				Help: "Total number of ledger inserts skipped because the period was already recorded",
			},
		),
		BillingSubscriptionsHit: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "subledger_billing_max_periods_hit_total",
				Help: "Total number of subscriptions that stopped at the per-run period limit",
			},
		),
		BillingSubscriptionFails: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "subledger_billing_subscription_failures_total",
				Help: "Total number of subscriptions rolled back during a run",
			},
		),

		FXLookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "subledger_fx_lookups_total",
				Help: "Total number of exchange rate lookups",
			},
			[]string{"pair", "status"},
		),
		FXCacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "subledger_fx_cache_hits_total",
				Help: "Total number of exchange rate cache hits",
			},
			[]string{"tier"},
		),

		DBConnectionsOpen: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "subledger_db_connections_open",
				Help: "Number of open database connections",
			},
		),
		DBConnectionsInUse: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "subledger_db_connections_in_use",
				Help: "Number of database connections in use",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "subledger_db_connections_idle",
				Help: "Number of idle database connections",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.BillingRunsTotal,
		m.BillingRunDuration,
		m.BillingPeriodsAdvanced,
		m.BillingRecordsCreated,
		m.BillingRecordDuplicates,
		m.BillingSubscriptionsHit,
		m.BillingSubscriptionFails,
		m.FXLookupsTotal,
		m.FXCacheHitsTotal,
		m.DBConnectionsOpen,
		m.DBConnectionsInUse,
		m.DBConnectionsIdle,
	)

	return m
}

// The helpers below are nil-safe so packages can run without metrics.

// ObserveBillingRun records one simulation run
func (m *Metrics) ObserveBillingRun(dryRun bool, err error, duration time.Duration) {
	if m == nil {
		return
	}
	mode := "commit"
	if dryRun {
		mode = "dry_run"
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.BillingRunsTotal.WithLabelValues(mode, status).Inc()
	m.BillingRunDuration.WithLabelValues(mode).Observe(duration.Seconds())
}

// ObserveAdvancement records the outcome of one subscription advancement
func (m *Metrics) ObserveAdvancement(periods, created int, hitLimit bool) {
	if m == nil {
		return
	}
	m.BillingPeriodsAdvanced.Add(float64(periods))
	m.BillingRecordsCreated.Add(float64(created))
	if hitLimit {
		m.BillingSubscriptionsHit.Inc()
	}
}

// IncRecordDuplicate counts a ledger insert that hit the idempotency key
func (m *Metrics) IncRecordDuplicate() {
	if m == nil {
		return
	}
	m.BillingRecordDuplicates.Inc()
}

// IncSubscriptionFailure counts a subscription rolled back during a run
func (m *Metrics) IncSubscriptionFailure() {
	if m == nil {
		return
	}
	m.BillingSubscriptionFails.Inc()
}

// ObserveFXLookup records an exchange rate lookup
func (m *Metrics) ObserveFXLookup(base, quote, status string) {
	if m == nil {
		return
	}
	m.FXLookupsTotal.WithLabelValues(base+"/"+quote, status).Inc()
}

// IncFXCacheHit counts a cache hit on the given tier ("memory" or "redis")
func (m *Metrics) IncFXCacheHit(tier string) {
	if m == nil {
		return
	}
	m.FXCacheHitsTotal.WithLabelValues(tier).Inc()
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// routeLabel returns the mux route template to keep label cardinality bounded
func routeLabel(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics
func HTTPMetricsMiddleware(metrics *Metrics) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			route := routeLabel(r)
			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rw.statusCode)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(mux *http.ServeMux, gatherer prometheus.Gatherer) {
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
}
