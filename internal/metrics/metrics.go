// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Completion attempt outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeEmpty   = "empty"
	OutcomeError   = "error"
)

var (
	completionAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aether_completion_attempts_total",
			Help: "Provider calls by model and outcome",
		},
		[]string{"model", "outcome"},
	)
	affordabilityRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aether_affordability_retries_total",
			Help: "Same-model retries with a reduced token ceiling",
		},
		[]string{"model"},
	)
	creditRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aether_credit_refreshes_total",
			Help: "Daily credit refresh checks by result",
		},
		[]string{"result"},
	)
	revisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aether_revisions_total",
			Help: "Generation requests by outcome",
		},
		[]string{"outcome"},
	)
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "aether_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

// RecordAttempt counts one provider call.
func RecordAttempt(model, outcome string) {
	completionAttempts.WithLabelValues(model, outcome).Inc()
}

func RecordAffordabilityRetry(model string) {
	affordabilityRetries.WithLabelValues(model).Inc()
}

// RecordRefresh counts a refresh check.  result is one of "refreshed",
// "current", "skipped" or "error".
func RecordRefresh(result string) {
	creditRefreshes.WithLabelValues(result).Inc()
}

func RecordRevision(outcome string) {
	revisions.WithLabelValues(outcome).Inc()
}

// Middleware records request duration labelled by the matched route
// pattern.
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				}
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			httpRequestDuration.
				WithLabelValues(c.Request().Method, route, strconv.Itoa(status)).
				Observe(time.Since(start).Seconds())
			return err
		}
	}
}
