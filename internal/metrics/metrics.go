package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors of one process. Collectors are registered
// on the registry handed to New so tests can use a private one.
type Metrics struct {
	requests      *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	operations    *prometheus.CounterVec
	compensations *prometheus.CounterVec
	reconciled    *prometheus.CounterVec
	gatherer      prometheus.Gatherer
}

// New creates and registers the collectors.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orgmanager_provisioning_operations_total",
				Help: "Provisioning operations by outcome",
			},
			[]string{"operation", "outcome"},
		),
		compensations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orgmanager_saga_compensations_total",
				Help: "Compensating actions run after a partial failure",
			},
			[]string{"operation"},
		),
		reconciled: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orgmanager_reconciled_total",
				Help: "Records repaired by the reconciliation pass",
			},
			[]string{"kind"},
		),
		gatherer: reg,
	}
	reg.MustRegister(m.requests, m.duration, m.operations, m.compensations, m.reconciled)
	return m
}

// NewNoop returns collectors registered on a throwaway registry.
func NewNoop() *Metrics {
	return New(prometheus.NewRegistry())
}

// RecordOperation counts one provisioning operation. A nil error is a success.
func (m *Metrics) RecordOperation(operation string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.operations.WithLabelValues(operation, outcome).Inc()
}

// RecordCompensation counts one compensating action.
func (m *Metrics) RecordCompensation(operation string) {
	m.compensations.WithLabelValues(operation).Inc()
}

// RecordReconciled counts n repaired records of the given kind.
func (m *Metrics) RecordReconciled(kind string, n int) {
	m.reconciled.WithLabelValues(kind).Add(float64(n))
}

// Middleware records request count and latency.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			status := strconv.Itoa(c.Response().Status)
			method := c.Request().Method
			path := c.Path()
			m.requests.WithLabelValues(method, path, status).Inc()
			m.duration.WithLabelValues(method, path, status).Observe(time.Since(start).Seconds())

			return err
		}
	}
}

// Handler exposes the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
