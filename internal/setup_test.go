package internal

import (
	"context"
	"fmt"
	"testing"

	"github.com/beevik/etree"
	"github.com/lychee-technology/erpgate"
	"github.com/stretchr/testify/require"
)

const testBase = "http://gw.example.com"

func partnerDescriptors() erpgate.ModelDescriptors {
	return erpgate.ModelDescriptors{
		"name":         {Name: "name", Type: erpgate.FieldTypeChar, Required: true, Label: "Name"},
		"comment":      {Name: "comment", Type: erpgate.FieldTypeText},
		"active":       {Name: "active", Type: erpgate.FieldTypeBoolean},
		"credit_limit": {Name: "credit_limit", Type: erpgate.FieldTypeFloat},
		"color":        {Name: "color", Type: erpgate.FieldTypeInteger},
		"type":         {Name: "type", Type: erpgate.FieldTypeSelection},
		"create_date":  {Name: "create_date", Type: erpgate.FieldTypeDatetime},
		"parent_id":    {Name: "parent_id", Type: erpgate.FieldTypeMany2One, Relation: "res.partner"},
		"category_id":  {Name: "category_id", Type: erpgate.FieldTypeMany2Many, Relation: "res.partner.category"},
	}
}

func partnerRecord() erpgate.Record {
	return erpgate.Record{
		"id":           int64(7),
		"name":         "Agrolait",
		"comment":      false,
		"active":       true,
		"credit_limit": 250.5,
		"color":        int64(3),
		"type":         "default",
		"create_date":  "2026-01-05 10:00:00",
		"parent_id":    []any{int64(1), "Holding"},
		"category_id":  []any{int64(2), int64(5)},
	}
}

// parseElement parses a single XML element.
func parseElement(t *testing.T, s string) *etree.Element {
	t.Helper()
	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromString(s))
	require.NotNil(t, doc.Root())
	return doc.Root()
}

// roundTrip serializes el with indentation and parses it back, the way a
// client would receive and resubmit it.
func roundTrip(t *testing.T, el *etree.Element) *etree.Element {
	t.Helper()
	doc := newDocument(el.Copy())
	s, err := doc.WriteToString()
	require.NoError(t, err)
	return parseElement(t, s)
}

// stubBackend answers Call with a canned function and records workflow
// signals.
type stubBackend struct {
	uid       erpgate.SessionID
	loginErr  error
	call      func(model, method string, args []any) (any, error)
	calls     []string
	workflows []string
}

func (b *stubBackend) Login(ctx context.Context, database, user, password string) (erpgate.SessionID, error) {
	return b.uid, b.loginErr
}

func (b *stubBackend) Call(ctx context.Context, database string, uid erpgate.SessionID, password, model, method string, args ...any) (any, error) {
	b.calls = append(b.calls, method)
	if b.call == nil {
		return nil, nil
	}
	return b.call(model, method, args)
}

func (b *stubBackend) ExecWorkflow(ctx context.Context, database string, uid erpgate.SessionID, password, model, action string, id int) error {
	b.workflows = append(b.workflows, fmt.Sprintf("%s/%d/%s", model, id, action))
	return nil
}

func newStubSession(b *stubBackend, model string) *modelSession {
	return &modelSession{backend: b, database: "demo", model: model, uid: 1, password: "admin"}
}
