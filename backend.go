package erpgate

import (
	"context"
)

// Backend is the remote object-call interface of the ERP server.
//
// Login returns 0 when the credentials are rejected without a fault.
// Call invokes method on model; args are passed positionally. Remote
// faults are returned as *Fault.
type Backend interface {
	Login(ctx context.Context, database, user, password string) (SessionID, error)
	Call(ctx context.Context, database string, uid SessionID, password, model, method string, args ...any) (any, error)
	ExecWorkflow(ctx context.Context, database string, uid SessionID, password, model, action string, id int) error
}

// VersionReporter is implemented by backends that can report the server
// version without credentials. Used for health probing.
type VersionReporter interface {
	Version(ctx context.Context) (map[string]any, error)
}
