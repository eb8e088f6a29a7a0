package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type ServerMetrics struct {
	Requests  *prometheus.CounterVec
	LatencyMS *prometheus.HistogramVec
}

func NewServerMetrics(service string) *ServerMetrics {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ecom",
		Subsystem: service,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"handler", "status"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "ecom",
		Subsystem: service,
		Name:      "http_request_duration_ms",
		Help:      "HTTP request latency in milliseconds.",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"handler"})

	prometheus.MustRegister(requests, latency)
	return &ServerMetrics{Requests: requests, LatencyMS: latency}
}

// OpsMetrics counts core operations (place_order, cancel_order,
// outbox_publish) by outcome.
type OpsMetrics struct {
	Ops       *prometheus.CounterVec
	LatencyMS *prometheus.HistogramVec
}

func NewOpsMetrics(service string) *OpsMetrics {
	return NewOpsMetricsOn(prometheus.DefaultRegisterer, service)
}

// NewOpsMetricsOn registers on reg instead of the default registerer, so
// tests can use a fresh registry per case.
func NewOpsMetricsOn(reg prometheus.Registerer, service string) *OpsMetrics {
	ops := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ecom",
		Subsystem: service,
		Name:      "operations_total",
		Help:      "Total number of core operations by outcome.",
	}, []string{"op", "status"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "ecom",
		Subsystem: service,
		Name:      "operation_duration_ms",
		Help:      "Core operation latency in milliseconds.",
		Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
	}, []string{"op"})

	reg.MustRegister(ops, latency)
	return &OpsMetrics{Ops: ops, LatencyMS: latency}
}

func Handler() http.Handler {
	return promhttp.Handler()
}
