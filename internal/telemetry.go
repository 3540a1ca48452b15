package internal

import (
	"context"
	"strconv"
	"sync"
)

// Telemetry hook layer. The gateway code calls the Emit* functions; the
// server binary registers an emitter that feeds its metrics registry. By
// default the emitter is a no-op.

type telemetryEmitter func(ctx context.Context, name string, labels map[string]string, value any)

// Metric names passed to the registered emitter.
const (
	MetricBackendLatency = "backend_call_duration_ms"
	MetricCacheEvents    = "model_cache_events_total"
	MetricResponses      = "http_responses_total"
	MetricBreakerOpened  = "backend_breaker_opened_total"
)

var (
	teleMu   sync.Mutex
	teleImpl telemetryEmitter = func(ctx context.Context, name string, labels map[string]string, value any) {}
)

// RegisterTelemetryEmitter registers a custom emitter function. Passing nil
// restores the no-op emitter.
func RegisterTelemetryEmitter(fn telemetryEmitter) {
	teleMu.Lock()
	defer teleMu.Unlock()
	if fn == nil {
		teleImpl = func(ctx context.Context, name string, labels map[string]string, value any) {}
		return
	}
	teleImpl = fn
}

func emitter() telemetryEmitter {
	teleMu.Lock()
	defer teleMu.Unlock()
	return teleImpl
}

// EmitLatency records the duration of one backend call in milliseconds.
func EmitLatency(ctx context.Context, method, outcome string, ms float64) {
	labels := map[string]string{"method": method, "outcome": outcome}
	emitter()(ctx, MetricBackendLatency, labels, ms)
}

// EmitCacheEvent counts model cache hits, misses, refreshes and soft failures.
func EmitCacheEvent(ctx context.Context, model, event string) {
	labels := map[string]string{"model": model, "event": event}
	emitter()(ctx, MetricCacheEvents, labels, int64(1))
}

// EmitResponse counts responses per status code and error kind. kind is
// empty for successful responses.
func EmitResponse(ctx context.Context, status int, kind string) {
	labels := map[string]string{"status": strconv.Itoa(status), "kind": kind}
	emitter()(ctx, MetricResponses, labels, int64(1))
}

// EmitBreakerOpened counts transitions of the backend breaker into the open state.
func EmitBreakerOpened(threshold int) {
	labels := map[string]string{"threshold": strconv.Itoa(threshold)}
	emitter()(context.Background(), MetricBreakerOpened, labels, int64(1))
}
