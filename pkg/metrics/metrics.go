// Package metrics holds the Prometheus collectors of the API and worker.
package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the collectors.
type Metrics struct {
	requests         *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	transitions      *prometheus.CounterVec
	registrations    *prometheus.CounterVec
	promoValidations *prometheus.CounterVec
	gatewayRequests  *prometheus.CounterVec
	jobsProcessed    *prometheus.CounterVec
	expired          prometheus.Counter
}

var (
	defaultOnce sync.Once
	shared      *Metrics
)

// Default returns the instance registered with the global registry.
func Default() *Metrics {
	defaultOnce.Do(func() {
		shared = MustNew(prometheus.DefaultRegisterer)
	})
	return shared
}

// MustNew builds and registers the collectors on reg; tests pass a fresh registry.
func MustNew(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "learnhub", Subsystem: "http", Name: "requests_total",
			Help: "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "learnhub", Subsystem: "http", Name: "request_duration_seconds",
			Help: "HTTP request latency.", Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "learnhub", Name: "status_transitions_total",
			Help: "Accepted status transitions by subject kind.",
		}, []string{"kind", "from", "to"}),
		registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "learnhub", Name: "event_registrations_total",
			Help: "Event registration attempts by result.",
		}, []string{"result"}),
		promoValidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "learnhub", Name: "promo_validations_total",
			Help: "Promo code validations by result.",
		}, []string{"result"}),
		gatewayRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "learnhub", Name: "payment_gateway_requests_total",
			Help: "Outbound payment gateway calls by result.",
		}, []string{"result"}),
		jobsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "learnhub", Subsystem: "worker", Name: "jobs_processed_total",
			Help: "Background jobs by type and result.",
		}, []string{"type", "result"}),
		expired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "learnhub", Subsystem: "worker", Name: "expired_transactions_total",
			Help: "Course transactions moved to expired by the sweeper.",
		}),
	}
	reg.MustRegister(m.requests, m.requestDuration, m.transitions, m.registrations,
		m.promoValidations, m.gatewayRequests, m.jobsProcessed, m.expired)
	return m
}

// Middleware records request count and latency per matched route.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.requests.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		m.requestDuration.WithLabelValues(route, c.Request.Method).Observe(time.Since(start).Seconds())
	}
}

// Transition counts an accepted status change. Nil receivers are no-ops so
// services can run without metrics in tests.
func (m *Metrics) Transition(kind, from, to string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(kind, from, to).Inc()
}

// Registration counts an event registration attempt.
func (m *Metrics) Registration(result string) {
	if m == nil {
		return
	}
	m.registrations.WithLabelValues(result).Inc()
}

// PromoValidation counts a promo validation.
func (m *Metrics) PromoValidation(result string) {
	if m == nil {
		return
	}
	m.promoValidations.WithLabelValues(result).Inc()
}

// GatewayRequest counts a payment gateway call.
func (m *Metrics) GatewayRequest(result string) {
	if m == nil {
		return
	}
	m.gatewayRequests.WithLabelValues(result).Inc()
}

// JobProcessed counts a worker job outcome.
func (m *Metrics) JobProcessed(jobType, result string) {
	if m == nil {
		return
	}
	m.jobsProcessed.WithLabelValues(jobType, result).Inc()
}

// TransactionsExpired adds n to the sweeper counter.
func (m *Metrics) TransactionsExpired(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.expired.Add(float64(n))
}
