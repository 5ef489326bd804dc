package sandbox

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for script execution.
// Registered on a custom registry — no global state.
type Metrics struct {
	Registry *prometheus.Registry

	ExecutionsTotal    *prometheus.CounterVec
	ExecutionDuration  *prometheus.HistogramVec
	SecurityRejections *prometheus.CounterVec
}

// NewMetrics creates a Metrics collector with all metrics registered on a
// fresh prometheus.Registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,

		ExecutionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scriptbox",
			Subsystem: "sandbox",
			Name:      "executions_total",
			Help:      "Total script executions by language and terminal status.",
		}, []string{"language", "status"}),

		ExecutionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "scriptbox",
			Subsystem: "sandbox",
			Name:      "execution_duration_seconds",
			Help:      "Script execution duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"language"}),

		SecurityRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scriptbox",
			Subsystem: "security",
			Name:      "rejections_total",
			Help:      "Scripts rejected by the deny-list scan.",
		}, []string{"language"}),
	}

	reg.MustRegister(m.ExecutionsTotal, m.ExecutionDuration, m.SecurityRejections)
	return m
}

// ObserveExecution records one finished execution.
func (m *Metrics) ObserveExecution(lang Language, status Status, d time.Duration) {
	m.ExecutionsTotal.WithLabelValues(string(lang), string(status)).Inc()
	m.ExecutionDuration.WithLabelValues(string(lang)).Observe(d.Seconds())
}

// ObserveSecurityRejection records one deny-list rejection.
func (m *Metrics) ObserveSecurityRejection(lang Language) {
	m.SecurityRejections.WithLabelValues(string(lang)).Inc()
}
