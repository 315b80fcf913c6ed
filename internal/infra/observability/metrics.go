package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
	"github.com/zenbilling/zenbilling-edge-go/internal/domain"
)

// Gate decision outcomes, used as label values.
const (
	OutcomeAllow             = "allow"
	OutcomeRedirectLogin     = "redirect_login"
	OutcomeRedirectSelectOrg = "redirect_select_organization"
	OutcomeRedirectHome      = "redirect_home"
)

// Session lookup results, used as label values.
const (
	LookupHit         = "hit"
	LookupMiss        = "miss"
	LookupUnavailable = "unavailable"
)

// Metrics holds all Prometheus metrics for the edge gateway.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	gateDecisions   *prometheus.CounterVec
	sessionLookups  *prometheus.CounterVec
	upstreamErrors  *prometheus.CounterVec
	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "zen_edge_request_duration_seconds",
				Help:    "Duration of requests by operation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		gateDecisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zen_edge_gate_decisions_total",
				Help: "Total edge gate decisions by outcome.",
			},
			[]string{"outcome"},
		),
		sessionLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zen_edge_session_lookups_total",
				Help: "Total backend session lookups by result.",
			},
			[]string{"result"},
		),
		upstreamErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zen_edge_upstream_errors_total",
				Help: "Total errors from upstream services.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zen_edge_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zen_edge_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrGateDecision increments the gate decision counter.
func (m *Metrics) IncrGateDecision(outcome string) {
	m.gateDecisions.WithLabelValues(outcome).Inc()
}

// IncrSessionLookup increments the session lookup counter.
func (m *Metrics) IncrSessionLookup(result string) {
	m.sessionLookups.WithLabelValues(result).Inc()
}

// IncrUpstreamError increments the upstream error counter.
func (m *Metrics) IncrUpstreamError(service string) {
	m.upstreamErrors.WithLabelValues(service).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// GetGateSnapshot returns a snapshot of gate-related counters suitable
// for the GET /v1/metrics/gate endpoint.
func (m *Metrics) GetGateSnapshot() *domain.GateMetrics {
	allowed := getCounterValue(m.gateDecisions, OutcomeAllow)
	toLogin := getCounterValue(m.gateDecisions, OutcomeRedirectLogin)
	toSelectOrg := getCounterValue(m.gateDecisions, OutcomeRedirectSelectOrg)
	toHome := getCounterValue(m.gateDecisions, OutcomeRedirectHome)

	lookups := getCounterValue(m.sessionLookups, LookupHit) +
		getCounterValue(m.sessionLookups, LookupMiss) +
		getCounterValue(m.sessionLookups, LookupUnavailable)
	unavailable := getCounterValue(m.sessionLookups, LookupUnavailable)

	cacheHits := getCounterValue(m.cacheHits, "user")
	cacheMisses := getCounterValue(m.cacheMisses, "user")

	cacheHitRate := float64(0)
	if cacheHits+cacheMisses > 0 {
		cacheHitRate = cacheHits / (cacheHits + cacheMisses)
	}

	return &domain.GateMetrics{
		DecisionsTotal:      int64(allowed + toLogin + toSelectOrg + toHome),
		Allowed:             int64(allowed),
		RedirectedLogin:     int64(toLogin),
		RedirectedSelectOrg: int64(toSelectOrg),
		RedirectedHome:      int64(toHome),
		SessionLookups:      int64(lookups),
		SessionUnavailable:  int64(unavailable),
		CacheHitRate:        cacheHitRate,
		Period:              "all_time",
	}
}

// getCounterValue extracts the current float64 value from a CounterVec for a given label.
func getCounterValue(cv *prometheus.CounterVec, label string) float64 {
	counter := cv.WithLabelValues(label)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
