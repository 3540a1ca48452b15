package internal

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/lychee-technology/erpgate"
	"go.uber.org/zap"
)

// DefaultMaxBodyBytes bounds request bodies when HandlerOptions leaves it unset.
const DefaultMaxBodyBytes int64 = 10 << 20

// HandlerOptions configures model handlers.
type HandlerOptions struct {
	CacheTTL     time.Duration
	MaxSessions  int
	Realm        string
	MaxBodyBytes int64
	Now          func() time.Time
}

// ModelHandler serves every request below /{db}/{model}. It owns the
// metadata cache of its model; all other state is per request.
type ModelHandler struct {
	database string
	model    string
	backend  erpgate.Backend
	cache    *ModelCache
	gate     WorkflowGate
	realm    string
	now      func() time.Time
}

func NewModelHandler(database, model string, backend erpgate.Backend, opts HandlerOptions) *ModelHandler {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &ModelHandler{
		database: database,
		model:    model,
		backend:  backend,
		cache:    NewModelCache(opts.CacheTTL, opts.MaxSessions),
		realm:    opts.Realm,
		now:      now,
	}
}

// Close releases the handler's cache timer.
func (h *ModelHandler) Close() {
	h.cache.Close()
}

// Handle writes exactly one response for rc.
func (h *ModelHandler) Handle(ctx context.Context, w http.ResponseWriter, rc *erpgate.RequestContext) {
	if err := h.serve(ctx, w, rc); err != nil {
		writeError(ctx, w, erpgate.AsError(err, rc.Model, rc.Path()), h.realm)
	}
}

func (h *ModelHandler) serve(ctx context.Context, w http.ResponseWriter, rc *erpgate.RequestContext) error {
	if len(rc.Remainder) > 2 {
		return erpgate.NewNoChildResourcesError(rc.Path())
	}
	switch rc.Method {
	case http.MethodGet, http.MethodPost, http.MethodPut:
	default:
		return erpgate.NewMethodNotAllowedError(rc.Method)
	}

	s, err := h.login(ctx, rc)
	if err != nil {
		return err
	}
	snap, err := h.refresh(ctx, s)
	if err != nil {
		return err
	}
	fb := NewFeedBuilder(rc.BaseURL, h.database, h.model, h.now)

	switch rc.Method {
	case http.MethodGet:
		return h.get(ctx, w, rc, s, snap, fb)
	case http.MethodPost:
		return h.post(ctx, w, rc, s, snap, fb)
	default:
		return h.put(ctx, w, rc, s, snap, fb)
	}
}

func (h *ModelHandler) login(ctx context.Context, rc *erpgate.RequestContext) (*modelSession, error) {
	uid, err := h.backend.Login(ctx, h.database, rc.Credentials.User, rc.Credentials.Password)
	if err != nil {
		return nil, err
	}
	if uid <= 0 {
		return nil, erpgate.NewForbiddenError()
	}
	return &modelSession{
		backend:  h.backend,
		database: h.database,
		model:    h.model,
		uid:      uid,
		password: rc.Credentials.Password,
	}, nil
}

// refresh fills the cache entries the request may need. Descriptors are
// mandatory; buttons and defaults are best effort and retried on the next
// request when they fail.
func (h *ModelHandler) refresh(ctx context.Context, s *modelSession) (CacheSnapshot, error) {
	snap := h.cache.Snapshot(s.uid)

	if snap.Descriptors == nil {
		descriptors, err := loadDescriptors(ctx, s)
		if err != nil {
			return snap, err
		}
		h.cache.SetDescriptors(descriptors)
		snap.Descriptors = descriptors
		EmitCacheEvent(ctx, h.model, "miss")
	} else {
		EmitCacheEvent(ctx, h.model, "hit")
	}

	if snap.Buttons == nil {
		buttons, err := loadButtons(ctx, s)
		if err != nil {
			zap.S().Warnw("failed to load workflow buttons", "database", h.database, "model", h.model, "error", err)
			EmitCacheEvent(ctx, h.model, "buttons_failed")
		} else {
			h.cache.SetButtons(buttons)
			snap.Buttons = buttons
		}
	}

	if !snap.HasDefaults {
		defaults, err := loadDefaults(ctx, s, snap.Descriptors)
		if err != nil {
			zap.S().Warnw("failed to load defaults", "database", h.database, "model", h.model, "uid", s.uid, "error", err)
			EmitCacheEvent(ctx, h.model, "defaults_failed")
		} else {
			h.cache.SetDefaults(s.uid, defaults)
			snap.Defaults = defaults
			snap.HasDefaults = true
		}
	}
	return snap, nil
}

func (h *ModelHandler) get(ctx context.Context, w http.ResponseWriter, rc *erpgate.RequestContext, s *modelSession, snap CacheSnapshot, fb *FeedBuilder) error {
	switch len(rc.Remainder) {
	case 0:
		return h.list(ctx, w, rc, s, snap, fb)
	case 1:
		switch rc.Remainder[0] {
		case "schema":
			return h.schema(ctx, w, rc, snap, fb)
		case "defaults":
			return writeXML(ctx, w, http.StatusOK, contentTypeEntry, fb.DefaultsEntry(snap.Defaults, snap.Descriptors))
		}
		id, ok := parseRecordID(rc.Remainder[0])
		if !ok {
			return erpgate.NewNoSuchRecordError(h.model, rc.Remainder[0])
		}
		return h.item(ctx, w, s, snap, fb, id)
	default:
		return erpgate.NewNoChildResourcesError(rc.Path())
	}
}

func (h *ModelHandler) list(ctx context.Context, w http.ResponseWriter, rc *erpgate.RequestContext, s *modelSession, snap CacheSnapshot, fb *FeedBuilder) error {
	domain, err := erpgate.ConditionsFromQuery(rc.Query).ToDomain(snap.Descriptors)
	if err != nil {
		return err
	}
	raw, err := s.call(ctx, "search", domain)
	if err != nil {
		return err
	}

	var records []erpgate.Record
	if ids := toIntSlice(raw); len(ids) > 0 {
		raw, err = s.call(ctx, "read", ids, listFields(snap.Descriptors))
		if err != nil {
			return err
		}
		if records, err = toRecords(raw); err != nil {
			return erpgate.NewContractError(err.Error())
		}
	}
	return writeXML(ctx, w, http.StatusOK, contentTypeFeed, fb.Feed(records))
}

// listFields are the fields needed to render feed entries.
func listFields(fields erpgate.ModelDescriptors) []string {
	names := []string{}
	for _, name := range []string{"name", "write_date", "create_date"} {
		if fields.Has(name) {
			names = append(names, name)
		}
	}
	return names
}

func (h *ModelHandler) item(ctx context.Context, w http.ResponseWriter, s *modelSession, snap CacheSnapshot, fb *FeedBuilder, id int) error {
	rec, err := h.readRecord(ctx, s, id, snap.Descriptors.Names())
	if err != nil {
		return err
	}
	doc, updated := fb.Entry(rec, snap.Descriptors, snap.Buttons)
	w.Header().Set("Last-Modified", updated.UTC().Format(http.TimeFormat))
	return writeXML(ctx, w, http.StatusOK, contentTypeEntry, doc)
}

func (h *ModelHandler) schema(ctx context.Context, w http.ResponseWriter, rc *erpgate.RequestContext, snap CacheSnapshot, fb *FeedBuilder) error {
	if strings.Contains(rc.Accept, contentTypeSchemaJSON) {
		return writeJSON(ctx, w, http.StatusOK, contentTypeSchemaJSON, BuildJSONSchema(fb.Namespace(), h.model, snap.Descriptors))
	}
	doc := NewSchemaGenerator(rc.BaseURL, h.database).Generate(h.model, snap.Descriptors)
	return writeXML(ctx, w, http.StatusOK, contentTypeXML, doc)
}

func (h *ModelHandler) post(ctx context.Context, w http.ResponseWriter, rc *erpgate.RequestContext, s *modelSession, snap CacheSnapshot, fb *FeedBuilder) error {
	switch len(rc.Remainder) {
	case 0:
		return h.create(ctx, w, rc, s, snap, fb)
	case 2:
		id, ok := parseRecordID(rc.Remainder[0])
		if !ok {
			return erpgate.NewNoSuchRecordError(h.model, rc.Remainder[0])
		}
		return h.workflow(ctx, w, rc, s, snap, fb, id, rc.Remainder[1])
	default:
		return erpgate.NewInvalidPathError(rc.Method, rc.Path())
	}
}

func (h *ModelHandler) create(ctx context.Context, w http.ResponseWriter, rc *erpgate.RequestContext, s *modelSession, snap CacheSnapshot, fb *FeedBuilder) error {
	reference := fb.ModelElement(0, snap.Defaults, snap.Descriptors, false)
	changes, err := h.changes(rc, snap, fb, reference)
	if err != nil {
		return err
	}

	raw, err := s.call(ctx, "create", changes)
	if err != nil {
		return err
	}
	id, ok := toInt(raw)
	if !ok {
		return erpgate.NewContractError("create returned no record id")
	}
	zap.S().Infow("record created", "database", h.database, "model", h.model, "id", id, "fields", len(changes))

	w.Header().Set("Location", fb.Codec().RecordURL(h.model, id))
	return writeStatus(ctx, w, http.StatusCreated)
}

func (h *ModelHandler) put(ctx context.Context, w http.ResponseWriter, rc *erpgate.RequestContext, s *modelSession, snap CacheSnapshot, fb *FeedBuilder) error {
	if len(rc.Remainder) != 1 {
		return erpgate.NewInvalidPathError(rc.Method, rc.Path())
	}
	id, err := strconv.Atoi(rc.Remainder[0])
	if err != nil {
		return erpgate.NewInvalidPathError(rc.Method, rc.Path())
	}
	if id <= 0 {
		return erpgate.NewNoSuchRecordError(h.model, rc.Remainder[0])
	}

	rec, err := h.readRecord(ctx, s, id, snap.Descriptors.Names())
	if err != nil {
		return err
	}
	reference := fb.ModelElement(id, map[string]any(rec), snap.Descriptors, true)
	changes, err := h.changes(rc, snap, fb, reference)
	if err != nil {
		return err
	}

	if len(changes) > 0 {
		if _, err := s.call(ctx, "write", []any{id}, changes); err != nil {
			return err
		}
		zap.S().Infow("record updated", "database", h.database, "model", h.model, "id", id, "fields", SortedKeys(changes))
	}
	return writeStatus(ctx, w, http.StatusNoContent)
}

// changes parses and validates the request document and diffs it against
// reference.
func (h *ModelHandler) changes(rc *erpgate.RequestContext, snap CacheSnapshot, fb *FeedBuilder, reference *etree.Element) (map[string]any, error) {
	doc, err := parseDocument(rc.Body)
	if err != nil {
		return nil, err
	}
	candidate := modelElement(doc)

	validator, err := NewDocumentValidator(fb.Namespace(), h.model, snap.Descriptors)
	if err != nil {
		return nil, erpgate.NewInternalError("failed to compile document schema", err)
	}
	if err := validator.Validate(candidate); err != nil {
		return nil, err
	}
	return NewDocumentDiff(fb.Codec()).Diff(snap.Descriptors, candidate, reference)
}

func (h *ModelHandler) workflow(ctx context.Context, w http.ResponseWriter, rc *erpgate.RequestContext, s *modelSession, snap CacheSnapshot, fb *FeedBuilder, id int, action string) error {
	fields := []string{}
	if snap.Descriptors.Has("state") {
		fields = append(fields, "state")
	}
	rec, err := h.readRecord(ctx, s, id, fields)
	if err != nil {
		return err
	}
	state, _ := rec["state"].(string)

	if err := h.gate.Execute(ctx, s, snap.Buttons, id, state, action, rc.Body); err != nil {
		return err
	}
	w.Header().Set("Location", fb.Codec().RecordURL(h.model, id))
	return writeStatus(ctx, w, http.StatusNoContent)
}

// readRecord reads one record; a missing record is reported as such.
func (h *ModelHandler) readRecord(ctx context.Context, s *modelSession, id int, fields []string) (erpgate.Record, error) {
	raw, err := s.call(ctx, "read", []any{id}, fields)
	if err != nil {
		return nil, err
	}
	records, err := toRecords(raw)
	if err != nil {
		return nil, erpgate.NewContractError(err.Error())
	}
	if len(records) == 0 {
		return nil, erpgate.NewNoSuchRecordError(h.model, strconv.Itoa(id))
	}
	return records[0], nil
}
