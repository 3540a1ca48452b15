package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/lychee-technology/erpgate"
	"go.uber.org/zap"
)

// DatabaseContext groups the model handlers of one database. Handlers are
// created on first use and kept for the life of the dispatcher.
type DatabaseContext struct {
	name    string
	backend erpgate.Backend
	opts    HandlerOptions

	mu     sync.Mutex
	models map[string]*ModelHandler
	closed bool
}

func newDatabaseContext(name string, backend erpgate.Backend, opts HandlerOptions) *DatabaseContext {
	return &DatabaseContext{
		name:    name,
		backend: backend,
		opts:    opts,
		models:  make(map[string]*ModelHandler),
	}
}

// Model returns the handler of model, creating it if needed. It returns
// nil once the context is closed.
func (d *DatabaseContext) Model(model string) *ModelHandler {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	h, ok := d.models[model]
	if !ok {
		h = NewModelHandler(d.name, model, d.backend, d.opts)
		d.models[model] = h
		zap.S().Debugw("created model handler", "database", d.name, "model", model)
	}
	return h
}

func (d *DatabaseContext) close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	for _, h := range d.models {
		h.Close()
	}
}

// Dispatcher is the gateway's HTTP entry point. It checks that credentials
// are present, resolves /{db}/{model}/... and hands the request to the
// model's handler.
type Dispatcher struct {
	backend erpgate.Backend
	opts    HandlerOptions
	baseURL string

	mu        sync.Mutex
	databases map[string]*DatabaseContext
	closed    bool
}

// NewDispatcher creates a dispatcher. An empty baseURL means links are
// derived from each request's Host header.
func NewDispatcher(backend erpgate.Backend, baseURL string, opts HandlerOptions) *Dispatcher {
	if opts.Realm == "" {
		opts.Realm = "OpenERP"
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	return &Dispatcher{
		backend:   backend,
		opts:      opts,
		baseURL:   strings.TrimRight(baseURL, "/"),
		databases: make(map[string]*DatabaseContext),
	}
}

// Database returns the context of name, creating it if needed. It returns
// nil once the dispatcher is closed.
func (d *Dispatcher) Database(name string) *DatabaseContext {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	db, ok := d.databases[name]
	if !ok {
		db = newDatabaseContext(name, d.backend, d.opts)
		d.databases[name] = db
	}
	return db
}

// Close stops the cache timers of every model handler.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.closed = true
	for _, db := range d.databases {
		db.close()
	}
}

func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// backend calls outlive a client disconnect
	ctx := context.WithoutCancel(r.Context())

	user, password, ok := r.BasicAuth()
	creds := erpgate.Credentials{User: user, Password: password}
	if !ok || !creds.Present() {
		writeError(ctx, w, erpgate.NewUnauthenticatedError(), d.opts.Realm)
		return
	}

	segments := splitPath(r.URL.Path)
	if len(segments) == 0 {
		writeError(ctx, w, erpgate.NewMethodNotAllowedError(r.Method), d.opts.Realm)
		return
	}
	db := d.Database(segments[0])
	if db == nil {
		writeError(ctx, w, errShuttingDown(), d.opts.Realm)
		return
	}
	if len(segments) == 1 {
		writeError(ctx, w, erpgate.NewMethodNotAllowedError(r.Method), d.opts.Realm)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, d.opts.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			err = fmt.Errorf("request body exceeds %d bytes", tooLarge.Limit)
		}
		writeError(ctx, w, erpgate.NewMalformedXMLError(err), d.opts.Realm)
		return
	}

	rc := &erpgate.RequestContext{
		Database:    segments[0],
		Model:       segments[1],
		Remainder:   segments[2:],
		Query:       r.URL.Query(),
		Credentials: creds,
		Body:        body,
		BaseURL:     d.requestBaseURL(r),
		Method:      r.Method,
		Accept:      r.Header.Get("Accept"),
	}
	h := db.Model(rc.Model)
	if h == nil {
		writeError(ctx, w, errShuttingDown(), d.opts.Realm)
		return
	}
	h.Handle(ctx, w, rc)
}

func errShuttingDown() *erpgate.Error {
	return erpgate.NewError(erpgate.KindUnavailable, "Gateway is shutting down.")
}

func (d *Dispatcher) requestBaseURL(r *http.Request) string {
	if d.baseURL != "" {
		return d.baseURL
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return scheme + "://" + r.Host
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}
