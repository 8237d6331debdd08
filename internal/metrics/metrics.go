// Package metrics records booking decisions and calendar backend latency.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sdr_agent"

// Recorder owns a private registry so several instances can coexist.
type Recorder struct {
	registry      *prometheus.Registry
	decisions     *prometheus.CounterVec
	confirmations *prometheus.CounterVec
	storeDuration *prometheus.HistogramVec
}

func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_decisions_total",
			Help:      "Booking operations by operation and outcome.",
		}, []string{"operation", "outcome"}),
		confirmations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "confirmations_total",
			Help:      "Human confirmation answers by result.",
		}, []string{"result"}),
		storeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "calendar_request_duration_seconds",
			Help:      "Calendar backend call latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "result"}),
	}
	r.registry.MustRegister(
		r.decisions,
		r.confirmations,
		r.storeDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Decision counts one finished operation.
func (r *Recorder) Decision(operation, outcome string) {
	if r == nil {
		return
	}
	r.decisions.WithLabelValues(operation, outcome).Inc()
}

// Confirmation counts one answer: "approved", "refused" or "error".
func (r *Recorder) Confirmation(result string) {
	if r == nil {
		return
	}
	r.confirmations.WithLabelValues(result).Inc()
}

// ObserveStore records a backend call that started at start.
func (r *Recorder) ObserveStore(method string, start time.Time, err error) {
	if r == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.storeDuration.WithLabelValues(method, result).Observe(time.Since(start).Seconds())
}

// Handler exposes the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Registry is exposed for tests and for embedding into another exporter.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}
