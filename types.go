package erpgate

import (
	"net/url"
	"regexp"
	"strings"
)

// SessionID is the identity returned by a successful backend login.
type SessionID int

// Credentials are the HTTP Basic credentials passed through to the backend.
type Credentials struct {
	User     string
	Password string
}

// Present reports whether both user and password were supplied.
func (c Credentials) Present() bool {
	return c.User != "" && c.Password != ""
}

// RequestContext carries everything a model handler needs for one request.
// Created fresh per request, never shared.
type RequestContext struct {
	Database    string
	Model       string
	Remainder   []string
	Query       url.Values
	Credentials Credentials
	Body        []byte
	BaseURL     string
	Method      string
	Accept      string
}

// Path is the request path below the base URL.
func (r *RequestContext) Path() string {
	parts := append([]string{"", r.Database, r.Model}, r.Remainder...)
	return strings.Join(parts, "/")
}

// CollectionURL builds {base}/{db}/{model}.
func CollectionURL(base, database, model string) string {
	return strings.TrimRight(base, "/") + "/" + database + "/" + model
}

// SchemaNamespace is the XML namespace of a model's documents.
func SchemaNamespace(base, database, model string) string {
	return CollectionURL(base, database, model) + "/schema"
}

// ButtonKind distinguishes workflow signals from object-method buttons.
type ButtonKind string

const (
	ButtonKindPlain  ButtonKind = "plain"
	ButtonKindObject ButtonKind = "object"
)

var numericName = regexp.MustCompile(`^[0-9]+$`)

// WorkflowButton is a named, state-gated action declared in the form view.
type WorkflowButton struct {
	Name   string
	States []string
	Kind   ButtonKind
	Label  string
}

// Actionable reports whether the button can be triggered at all. Purely
// numeric names denote UI elements (for example action ids), not actions.
func (b WorkflowButton) Actionable() bool {
	return b.Name != "" && !numericName.MatchString(b.Name)
}

// AllowedIn reports whether the button applies to a record in state.
func (b WorkflowButton) AllowedIn(state string) bool {
	if b.States == nil {
		return true
	}
	for _, s := range b.States {
		if s == state {
			return true
		}
	}
	return false
}

// Record is one backend record as returned by read: field name to value.
type Record map[string]any

// Defaults is a mapping of field name to default value.
type Defaults map[string]any
