// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Auth operation and outcome labels.
const (
	OpRegister     = "register"
	OpLogin        = "login"
	OpAuthenticate = "authenticate"

	ResultOK       = "ok"
	ResultInvalid  = "invalid"
	ResultConflict = "conflict"
	ResultDenied   = "denied"
	ResultError    = "error"
)

var (
	authOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tasktracker_auth_outcomes_total",
		Help: "Auth operations by operation and result",
	}, []string{"op", "result"})

	rateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tasktracker_rate_limited_total",
		Help: "Requests rejected by the auth rate limiter",
	})

	authzDenied = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tasktracker_authz_denied_total",
		Help: "Task requests rejected because the caller does not own the task",
	})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tasktracker_http_request_duration_seconds",
		Help:    "HTTP request latency by route pattern and status code",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "code"})
)

// AuthOutcome counts one auth operation result.
func AuthOutcome(op, result string) {
	authOutcomes.WithLabelValues(op, result).Inc()
}

// RateLimited counts one limiter rejection.
func RateLimited() { rateLimited.Inc() }

// AuthzDenied counts one ownership rejection.
func AuthzDenied() { authzDenied.Inc() }

// ObserveRequest records the latency of a served request. route must be the
// mux pattern, not the raw path, to keep label cardinality bounded.
func ObserveRequest(route, code string, d time.Duration) {
	requestDuration.WithLabelValues(route, code).Observe(d.Seconds())
}
