package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the server's Prometheus collectors.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	SolvesTotal     *prometheus.CounterVec
	SolveDuration   *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lattice",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status",
		}, []string{"method", "route", "status"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "lattice",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		SolvesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lattice",
			Subsystem: "pde",
			Name:      "solves_total",
			Help:      "PDE solves by product and outcome",
		}, []string{"product", "outcome"}),
		SolveDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "lattice",
			Subsystem: "pde",
			Name:      "solve_duration_seconds",
			Help:      "PDE solve duration in seconds",
			Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 5, 10},
		}, []string{"product"}),
	}
	reg.MustRegister(m.RequestsTotal, m.RequestDuration, m.SolvesTotal, m.SolveDuration)
	return m
}

// Handler records request counts and latencies by route template.
func (m *Metrics) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.RequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.RequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// ObserveSolve records one solve. A nil Metrics records nothing.
func (m *Metrics) ObserveSolve(product string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		_, outcome = Classify(err)
	}
	m.SolvesTotal.WithLabelValues(product, outcome).Inc()
	m.SolveDuration.WithLabelValues(product).Observe(elapsed.Seconds())
}
