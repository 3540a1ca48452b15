package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/lychee-technology/erpgate"
	"go.uber.org/zap"
)

const requestIDHeader = "X-Request-Id"

// statusRecorder captures the status code written by the wrapped handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// withRequestID propagates the caller's request id or assigns a new one.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
			r.Header.Set(requestIDHeader, id)
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

// withLogging logs one line per request.
func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		if rec.status == 0 {
			rec.status = http.StatusOK
		}
		zap.S().Infow("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
			"requestID", r.Header.Get(requestIDHeader),
		)
	})
}

// withRecover turns a handler panic into a 500 response.
func withRecover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if p := recover(); p != nil {
				zap.S().Errorw("handler panic", "panic", p, "path", r.URL.Path, "requestID", r.Header.Get(requestIDHeader))
				http.Error(w, "Internal server error.", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// gatewayHandler wraps the dispatcher with the request middleware.
func gatewayHandler(h http.Handler) http.Handler {
	return withRequestID(withLogging(withRecover(h)))
}

// adminHandler serves /healthz and, when metrics is set, /metrics.
func adminHandler(backend erpgate.Backend, metrics http.Handler, timeout time.Duration) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		handleHealth(w, r, backend, timeout)
	})
	if metrics != nil {
		mux.Handle("/metrics", metrics)
	}
	return mux
}

func handleHealth(w http.ResponseWriter, r *http.Request, backend erpgate.Backend, timeout time.Duration) {
	status := map[string]any{"status": "ok"}
	code := http.StatusOK

	if reporter, ok := backend.(erpgate.VersionReporter); ok {
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		version, err := reporter.Version(ctx)
		if err != nil {
			status["status"] = "unavailable"
			status["error"] = err.Error()
			code = http.StatusServiceUnavailable
		} else {
			status["backend"] = version
		}
	}
	if b, ok := backend.(interface{ BreakerState() string }); ok {
		status["breaker"] = b.BreakerState()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(status)
}
