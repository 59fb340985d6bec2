package provider

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "langtutor"

var (
	requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      "Total number of provider API calls",
		},
		[]string{"service", "provider", "op", "status"}, // status: success, error
	)

	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_request_duration_seconds",
			Help:      "Duration of provider API calls in seconds",
			Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"service", "provider", "op"},
	)

	errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_errors_total",
			Help:      "Provider errors by kind",
		},
		[]string{"service", "provider", "kind"},
	)
)

var registry = newRegistry()

func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(requestsTotal, requestDuration, errorsTotal)
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

// Registry returns the registry holding the provider metrics.
func Registry() *prometheus.Registry {
	return registry
}

// MetricsHandler serves the registry in the Prometheus exposition format.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// Observe records one provider call. Call it deferred with the call's start
// time and final error.
func Observe(service, providerName, op string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
		kind := KindOf(err)
		if kind == "" {
			kind = KindUnknown
		}
		errorsTotal.WithLabelValues(service, providerName, string(kind)).Inc()
	}
	requestsTotal.WithLabelValues(service, providerName, op, status).Inc()
	requestDuration.WithLabelValues(service, providerName, op).Observe(time.Since(start).Seconds())
}
