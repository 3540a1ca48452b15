package erpgate

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorKind is the closed set of failure categories the gateway reports.
type ErrorKind string

const (
	KindUnauthenticated   ErrorKind = "unauthenticated"
	KindForbidden         ErrorKind = "forbidden"
	KindNoSuchResource    ErrorKind = "no_such_resource"
	KindNoSuchCollection  ErrorKind = "no_such_collection"
	KindNoSuchRecord      ErrorKind = "no_such_record"
	KindNoChildResources  ErrorKind = "no_child_resources"
	KindInvalidFilter     ErrorKind = "invalid_filter"
	KindMalformedXML      ErrorKind = "malformed_xml"
	KindInvalidXML        ErrorKind = "invalid_xml"
	KindInvalidPath       ErrorKind = "invalid_path"
	KindWorkflowForbidden ErrorKind = "workflow_not_allowed"
	KindMethodNotAllowed  ErrorKind = "method_not_allowed"
	KindUnimplemented     ErrorKind = "unimplemented"
	KindContract          ErrorKind = "contract"
	KindBackend           ErrorKind = "backend"
	KindUnavailable       ErrorKind = "unavailable"
	KindInternal          ErrorKind = "internal"
)

// statusByKind maps every ErrorKind to the HTTP status it is reported with.
var statusByKind = map[ErrorKind]int{
	KindUnauthenticated:   http.StatusUnauthorized,
	KindForbidden:         http.StatusForbidden,
	KindNoSuchResource:    http.StatusNotFound,
	KindNoSuchCollection:  http.StatusNotFound,
	KindNoSuchRecord:      http.StatusNotFound,
	KindNoChildResources:  http.StatusNotFound,
	KindInvalidFilter:     http.StatusBadRequest,
	KindMalformedXML:      http.StatusBadRequest,
	KindInvalidXML:        http.StatusBadRequest,
	KindInvalidPath:       http.StatusBadRequest,
	KindWorkflowForbidden: http.StatusBadRequest,
	KindMethodNotAllowed:  http.StatusMethodNotAllowed,
	KindUnimplemented:     http.StatusInternalServerError,
	KindContract:          http.StatusInternalServerError,
	KindBackend:           http.StatusInternalServerError,
	KindUnavailable:       http.StatusServiceUnavailable,
	KindInternal:          http.StatusInternalServerError,
}

// Kinds returns every known ErrorKind.
func Kinds() []ErrorKind {
	kinds := make([]ErrorKind, 0, len(statusByKind))
	for kind := range statusByKind {
		kinds = append(kinds, kind)
	}
	return kinds
}

// Status returns the HTTP status code for the kind.
func (k ErrorKind) Status() int {
	if status, ok := statusByKind[k]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// Error is the gateway's tagged error. Message is what the client sees.
type Error struct {
	Kind    ErrorKind      `json:"kind"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	Cause   error          `json:"-"`
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Status returns the HTTP status code the error is reported with.
func (e *Error) Status() int {
	return e.Kind.Status()
}

// WithCause adds a cause to the error
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithDetail adds a single detail to the error
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// NewError creates an error of the given kind.
func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// NewErrorf creates an error of the given kind with a formatted message.
func NewErrorf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// ============================================================================
// Constructors with fixed message templates
// ============================================================================

func NewUnauthenticatedError() *Error {
	return NewError(KindUnauthenticated, "Use HTTP Basic Authentication to access resources.")
}

func NewForbiddenError() *Error {
	return NewError(KindForbidden, "Bad credentials.")
}

func NewNoSuchResourceError(path string) *Error {
	return NewErrorf(KindNoSuchResource, "No such resource: %s", path).WithDetail("path", path)
}

func NewNoSuchCollectionError(model string) *Error {
	return NewErrorf(KindNoSuchCollection, "No such collection: %s", model).WithDetail("model", model)
}

func NewNoSuchRecordError(model string, id string) *Error {
	return NewErrorf(KindNoSuchRecord, "No such resource: %s/%s", model, id).
		WithDetail("model", model).
		WithDetail("id", id)
}

func NewNoChildResourcesError(path string) *Error {
	return NewError(KindNoChildResources, "No child resources.").WithDetail("path", path)
}

func NewInvalidFilterError(field string) *Error {
	return NewErrorf(KindInvalidFilter, "Invalid filter field: %s", field).WithDetail("field", field)
}

func NewMalformedXMLError(cause error) *Error {
	return NewErrorf(KindMalformedXML, "malformed XML:\n%v", cause).WithCause(cause)
}

func NewInvalidXMLError(cause error) *Error {
	return NewErrorf(KindInvalidXML, "invalid XML:\n%v", cause).WithCause(cause)
}

func NewInvalidPathError(method, path string) *Error {
	return NewErrorf(KindInvalidPath, "%s is not allowed on %s", method, path).
		WithDetail("method", method).
		WithDetail("path", path)
}

func NewWorkflowNotAllowedError(action, state string) *Error {
	return NewErrorf(KindWorkflowForbidden, "Workflow action '%s' is not allowed in state '%s'", action, state).
		WithDetail("action", action).
		WithDetail("state", state)
}

func NewMethodNotAllowedError(method string) *Error {
	return NewErrorf(KindMethodNotAllowed, "Method %s not allowed here.", method)
}

func NewUnimplementedError(message string) *Error {
	return NewError(KindUnimplemented, message)
}

func NewContractError(message string) *Error {
	return NewError(KindContract, message)
}

func NewUnavailableError(cause error) *Error {
	return NewError(KindUnavailable, "Backend temporarily unavailable.").WithCause(cause)
}

func NewInternalError(message string, cause error) *Error {
	return NewError(KindInternal, message).WithCause(cause)
}

// ============================================================================
// Backend faults
// ============================================================================

// Fault is a remote fault raised by the backend. Code is the backend's
// exception name when known (for example "AccessDenied").
type Fault struct {
	Code    string
	Message string
}

func (f *Fault) Error() string {
	if f.Message == "" || f.Message == f.Code {
		return f.Code
	}
	return fmt.Sprintf("%s: %s", f.Code, f.Message)
}

func (f *Fault) text() string {
	return f.Code + "\n" + f.Message
}

// IsAccessDenied reports a rejected login or password.
func (f *Fault) IsAccessDenied() bool {
	t := f.text()
	return f.Code == "AccessDenied" || strings.Contains(t, "AccessDenied") || strings.Contains(t, "Access Denied")
}

// IsAccessError reports an access rule violation or a missing record.
// Older servers spell it with a space.
func (f *Fault) IsAccessError() bool {
	t := f.text()
	return strings.Contains(t, "AccessError") || strings.Contains(t, "Access Error")
}

// IsObjectError reports an unknown model.
func (f *Fault) IsObjectError() bool {
	t := f.text()
	return strings.Contains(t, "Object Error") || strings.Contains(t, "ObjectError")
}

// TranslateFault maps a backend fault onto the gateway error taxonomy.
func TranslateFault(f *Fault, model, path string) *Error {
	switch {
	case f.IsAccessDenied():
		return NewForbiddenError().WithCause(f)
	case f.IsAccessError():
		return NewNoSuchResourceError(path).WithCause(f)
	case f.IsObjectError():
		return NewNoSuchCollectionError(model).WithCause(f)
	default:
		return NewErrorf(KindBackend, "An error occured:\n%s", f.Error()).WithCause(f)
	}
}

// AsError converts any error into a gateway Error. Faults are translated,
// Errors are returned as is, everything else becomes KindInternal.
func AsError(err error, model, path string) *Error {
	if err == nil {
		return nil
	}
	var gwErr *Error
	if errors.As(err, &gwErr) {
		return gwErr
	}
	var fault *Fault
	if errors.As(err, &fault) {
		return TranslateFault(fault, model, path)
	}
	return NewInternalError(err.Error(), err)
}

// HTTPStatus returns the status code for an arbitrary error.
func HTTPStatus(err error) int {
	var gwErr *Error
	if errors.As(err, &gwErr) {
		return gwErr.Status()
	}
	return http.StatusInternalServerError
}
