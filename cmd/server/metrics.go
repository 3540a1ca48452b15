package main

import (
	"context"
	"net/http"

	"github.com/lychee-technology/erpgate/internal"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Collector turns gateway telemetry into Prometheus metrics.
type Collector struct {
	registry *prometheus.Registry

	backendLatency *prometheus.HistogramVec
	cacheEvents    *prometheus.CounterVec
	responses      *prometheus.CounterVec
	breakerOpened  prometheus.Counter
}

// NewCollector creates the gateway metrics in their own registry, next to
// the Go runtime and process collectors.
func NewCollector(namespace string) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		backendLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backend_call_duration_seconds",
			Help:      "Latency of backend object calls",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "outcome"}),
		cacheEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_cache_events_total",
			Help:      "Model metadata cache hits, misses and failed refreshes",
		}, []string{"model", "event"}),
		responses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_responses_total",
			Help:      "Responses by status code and error kind",
		}, []string{"status", "kind"}),
		breakerOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_breaker_opened_total",
			Help:      "Times the backend circuit breaker opened",
		}),
	}

	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.backendLatency,
		c.cacheEvents,
		c.responses,
		c.breakerOpened,
	)
	return c
}

// Emit is the telemetry emitter registered with the gateway.
func (c *Collector) Emit(ctx context.Context, name string, labels map[string]string, value any) {
	switch name {
	case internal.MetricBackendLatency:
		if ms, ok := value.(float64); ok {
			c.backendLatency.WithLabelValues(labels["method"], labels["outcome"]).Observe(ms / 1000)
		}
	case internal.MetricCacheEvents:
		c.cacheEvents.WithLabelValues(labels["model"], labels["event"]).Inc()
	case internal.MetricResponses:
		c.responses.WithLabelValues(labels["status"], labels["kind"]).Inc()
	case internal.MetricBreakerOpened:
		c.breakerOpened.Inc()
	default:
		zap.S().Debugw("dropping unknown metric", "name", name)
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
