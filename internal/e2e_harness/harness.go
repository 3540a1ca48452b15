package e2e_harness

import (
	"context"
	"fmt"
	"net/http/httptest"
	"sort"
	"sync"
	"time"

	"github.com/lychee-technology/erpgate"
	"github.com/lychee-technology/erpgate/internal"
)

const datetimeLayout = "2006-01-02 15:04:05"

// FakeModel is one model of the in-memory backend. Record values are kept
// in backend shape except relations: many2one as an int id, to-many as []int.
type FakeModel struct {
	Fields        map[string]map[string]any
	Arch          string
	Defaults      map[string]any
	Records       map[int]map[string]any
	Transitions   map[string]string
	ObjectMethods map[string]bool
	NextID        int
}

// FakeCall records one object call.
type FakeCall struct {
	UID    erpgate.SessionID
	Model  string
	Method string
	Args   []any
}

// FakeBackend is an in-memory stand-in for the ERP server implementing
// erpgate.Backend. Safe for concurrent use.
type FakeBackend struct {
	mu sync.Mutex

	Database  string
	Passwords map[string]string
	UIDs      map[string]erpgate.SessionID
	Models    map[string]*FakeModel
	Calls     []FakeCall
	// Failures makes the named method fail with the given error.
	Failures map[string]error
	Now      func() time.Time
}

var _ erpgate.Backend = (*FakeBackend)(nil)
var _ erpgate.VersionReporter = (*FakeBackend)(nil)

func (b *FakeBackend) Login(ctx context.Context, database, user, password string) (erpgate.SessionID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if database != b.Database {
		return 0, &erpgate.Fault{Code: fmt.Sprintf("FATAL:  database \"%s\" does not exist", database)}
	}
	if pw, ok := b.Passwords[user]; !ok || pw != password {
		return 0, nil
	}
	return b.UIDs[user], nil
}

func (b *FakeBackend) Version(ctx context.Context) (map[string]any, error) {
	return map[string]any{"server_version": "6.1-fake", "protocol_version": int64(1)}, nil
}

// CallCount returns how often method was called on model.
func (b *FakeBackend) CallCount(model, method string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, c := range b.Calls {
		if c.Model == model && c.Method == method {
			n++
		}
	}
	return n
}

// LastCall returns the most recent call of method on model.
func (b *FakeBackend) LastCall(model, method string) (FakeCall, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := len(b.Calls) - 1; i >= 0; i-- {
		if c := b.Calls[i]; c.Model == model && c.Method == method {
			return c, true
		}
	}
	return FakeCall{}, false
}

// Record returns a copy of a stored record.
func (b *FakeBackend) Record(model string, id int) (map[string]any, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	m, ok := b.Models[model]
	if !ok {
		return nil, false
	}
	rec, ok := m.Records[id]
	if !ok {
		return nil, false
	}
	out := make(map[string]any, len(rec))
	for k, v := range rec {
		out[k] = v
	}
	return out, true
}

func (b *FakeBackend) authorize(database string, uid erpgate.SessionID, password string) error {
	if database != b.Database {
		return &erpgate.Fault{Code: "AccessDenied"}
	}
	for user, id := range b.UIDs {
		if id == uid && b.Passwords[user] == password {
			return nil
		}
	}
	return &erpgate.Fault{Code: "AccessDenied"}
}

func (b *FakeBackend) Call(ctx context.Context, database string, uid erpgate.SessionID, password, model, method string, args ...any) (any, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Calls = append(b.Calls, FakeCall{UID: uid, Model: model, Method: method, Args: args})

	if err := b.authorize(database, uid, password); err != nil {
		return nil, err
	}
	if err, ok := b.Failures[method]; ok {
		return nil, err
	}
	m, ok := b.Models[model]
	if !ok {
		return nil, &erpgate.Fault{Code: "warning -- Object Error\n\nObject " + model + " doesn't exist"}
	}

	switch method {
	case "fields_get":
		fields := make(map[string]any, len(m.Fields))
		for name, attrs := range m.Fields {
			fields[name] = attrs
		}
		return fields, nil
	case "fields_view_get":
		return map[string]any{"arch": m.Arch, "model": model}, nil
	case "default_get":
		defaults := make(map[string]any, len(m.Defaults))
		for k, v := range m.Defaults {
			defaults[k] = v
		}
		return defaults, nil
	case "search":
		return b.search(m, arg(args, 0))
	case "read":
		return b.read(m, arg(args, 0), arg(args, 1))
	case "create":
		return b.create(m, arg(args, 0))
	case "write":
		return b.write(m, arg(args, 0), arg(args, 1))
	}
	if m.ObjectMethods[method] {
		return true, nil
	}
	return nil, &erpgate.Fault{Code: "AttributeError", Message: fmt.Sprintf("'%s' object has no attribute '%s'", model, method)}
}

func (b *FakeBackend) ExecWorkflow(ctx context.Context, database string, uid erpgate.SessionID, password, model, action string, id int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Calls = append(b.Calls, FakeCall{UID: uid, Model: model, Method: "exec_workflow", Args: []any{action, id}})

	if err := b.authorize(database, uid, password); err != nil {
		return err
	}
	m, ok := b.Models[model]
	if !ok {
		return &erpgate.Fault{Code: "warning -- Object Error\n\nObject " + model + " doesn't exist"}
	}
	rec, ok := m.Records[id]
	if !ok {
		return &erpgate.Fault{Code: "AccessError", Message: "Record does not exist"}
	}
	if next, ok := m.Transitions[action]; ok {
		rec["state"] = next
		rec["write_date"] = b.now()
	}
	return nil
}

func (b *FakeBackend) now() string {
	if b.Now != nil {
		return b.Now().UTC().Format(datetimeLayout)
	}
	return time.Now().UTC().Format(datetimeLayout)
}

func arg(args []any, i int) any {
	if i < len(args) {
		return args[i]
	}
	return nil
}

func (b *FakeBackend) search(m *FakeModel, domain any) (any, error) {
	terms, _ := domain.([]any)
	ids := make([]int, 0, len(m.Records))
	for id, rec := range m.Records {
		if matches(id, rec, terms) {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = int64(id)
	}
	return out, nil
}

func matches(id int, rec map[string]any, terms []any) bool {
	for _, t := range terms {
		term, ok := t.([]any)
		if !ok || len(term) != 3 {
			return false
		}
		field, _ := term[0].(string)
		var value any = id
		if field != "id" {
			value = rec[field]
		}
		switch term[1] {
		case "=":
			if !equalValue(value, term[2]) {
				return false
			}
		case "in":
			candidates, _ := term[2].([]any)
			found := false
			for _, c := range candidates {
				if equalValue(value, c) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func equalValue(stored, wanted any) bool {
	return fmt.Sprint(stored) == fmt.Sprint(wanted)
}

func toIDs(v any) []int {
	switch s := v.(type) {
	case []int:
		return s
	case []any:
		ids := make([]int, 0, len(s))
		for _, item := range s {
			switch n := item.(type) {
			case int:
				ids = append(ids, n)
			case int64:
				ids = append(ids, int(n))
			}
		}
		return ids
	}
	return nil
}

func (b *FakeBackend) read(m *FakeModel, idsArg, fieldsArg any) (any, error) {
	var fields []string
	switch f := fieldsArg.(type) {
	case []string:
		fields = f
	case []any:
		for _, name := range f {
			if s, ok := name.(string); ok {
				fields = append(fields, s)
			}
		}
	}
	if len(fields) == 0 {
		for name := range m.Fields {
			fields = append(fields, name)
		}
	}

	out := []any{}
	for _, id := range toIDs(idsArg) {
		rec, ok := m.Records[id]
		if !ok {
			continue
		}
		row := map[string]any{"id": int64(id)}
		for _, name := range fields {
			row[name] = b.readValue(m, name, rec[name])
		}
		out = append(out, row)
	}
	return out, nil
}

func (b *FakeBackend) readValue(m *FakeModel, field string, value any) any {
	attrs := m.Fields[field]
	switch attrs["type"] {
	case "many2one":
		id, ok := value.(int)
		if !ok || id == 0 {
			return false
		}
		label := ""
		if rel, ok := b.Models[attrs["relation"].(string)]; ok {
			if target, ok := rel.Records[id]; ok {
				label, _ = target["name"].(string)
			}
		}
		return []any{int64(id), label}
	case "one2many", "many2many":
		ids := toIDs(value)
		out := make([]any, len(ids))
		for i, id := range ids {
			out[i] = int64(id)
		}
		return out
	}
	if value == nil {
		return false
	}
	return value
}

func (b *FakeBackend) storeValue(m *FakeModel, field string, value any) any {
	switch m.Fields[field]["type"] {
	case "many2one":
		switch n := value.(type) {
		case int:
			return n
		case int64:
			return int(n)
		}
		return 0
	case "one2many", "many2many":
		// [[6, 0, ids]]
		cmds, _ := value.([]any)
		for _, c := range cmds {
			if cmd, ok := c.([]any); ok && len(cmd) == 3 {
				return toIDs(cmd[2])
			}
		}
		return []int{}
	}
	return value
}

func (b *FakeBackend) create(m *FakeModel, valuesArg any) (any, error) {
	values, ok := valuesArg.(map[string]any)
	if !ok {
		return nil, &erpgate.Fault{Code: "TypeError", Message: "create expects a dictionary"}
	}
	rec := make(map[string]any)
	for k, v := range m.Defaults {
		rec[k] = b.storeValue(m, k, v)
	}
	for k, v := range values {
		if _, declared := m.Fields[k]; !declared {
			return nil, &erpgate.Fault{Code: "ValueError", Message: "unknown field " + k}
		}
		rec[k] = b.storeValue(m, k, v)
	}
	for name, attrs := range m.Fields {
		if attrs["required"] == true {
			if v, ok := rec[name]; !ok || v == false || v == "" || v == 0 {
				return nil, &erpgate.Fault{Code: "ValidateError", Message: "Field " + name + " is required"}
			}
		}
	}
	now := b.now()
	rec["create_date"] = now
	rec["write_date"] = now

	m.NextID++
	id := m.NextID
	m.Records[id] = rec
	return int64(id), nil
}

func (b *FakeBackend) write(m *FakeModel, idsArg, valuesArg any) (any, error) {
	values, ok := valuesArg.(map[string]any)
	if !ok {
		return nil, &erpgate.Fault{Code: "TypeError", Message: "write expects a dictionary"}
	}
	for _, id := range toIDs(idsArg) {
		rec, ok := m.Records[id]
		if !ok {
			return nil, &erpgate.Fault{Code: "AccessError", Message: "Record does not exist"}
		}
		for k, v := range values {
			rec[k] = b.storeValue(m, k, v)
		}
		rec["write_date"] = b.now()
	}
	return true, nil
}

// TestHarness runs a gateway dispatcher in front of a FakeBackend.
type TestHarness struct {
	Backend    *FakeBackend
	Dispatcher *internal.Dispatcher
	Server     *httptest.Server
}

// Start creates a fresh backend seeded with the fixtures and serves the
// gateway on a local test server.
func Start(opts internal.HandlerOptions) *TestHarness {
	backend := NewFixtureBackend()
	if opts.CacheTTL == 0 {
		opts.CacheTTL = time.Hour
	}
	dispatcher := internal.NewDispatcher(backend, "", opts)
	return &TestHarness{
		Backend:    backend,
		Dispatcher: dispatcher,
		Server:     httptest.NewServer(dispatcher),
	}
}

// Stop shuts down the server and the dispatcher's cache timers.
func (h *TestHarness) Stop() {
	h.Server.Close()
	h.Dispatcher.Close()
}
