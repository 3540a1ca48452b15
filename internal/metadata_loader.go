package internal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lychee-technology/erpgate"
	"go.uber.org/zap"
)

// modelSession binds the backend to one authenticated caller and one model.
type modelSession struct {
	backend  erpgate.Backend
	database string
	model    string
	uid      erpgate.SessionID
	password string
}

// call invokes method on the session's model and records its latency.
func (s *modelSession) call(ctx context.Context, method string, args ...any) (any, error) {
	start := time.Now()
	result, err := s.backend.Call(ctx, s.database, s.uid, s.password, s.model, method, args...)
	EmitLatency(ctx, method, outcome(err), float64(time.Since(start).Microseconds())/1000)
	return result, err
}

func (s *modelSession) execWorkflow(ctx context.Context, action string, id int) error {
	start := time.Now()
	err := s.backend.ExecWorkflow(ctx, s.database, s.uid, s.password, s.model, action, id)
	EmitLatency(ctx, "exec_workflow", outcome(err), float64(time.Since(start).Microseconds())/1000)
	return err
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	var fault *erpgate.Fault
	if errors.As(err, &fault) {
		return "fault"
	}
	return "error"
}

// loadDescriptors fetches the field descriptors of the session's model. A
// model without fields is treated as unknown.
func loadDescriptors(ctx context.Context, s *modelSession) (erpgate.ModelDescriptors, error) {
	raw, err := s.call(ctx, "fields_get")
	if err != nil {
		return nil, err
	}
	descriptors, err := parseFieldDescriptors(s.model, raw)
	if err != nil {
		return nil, erpgate.NewContractError(err.Error()).WithCause(err)
	}
	delete(descriptors, "id")
	if len(descriptors) == 0 {
		return nil, erpgate.NewNoSuchCollectionError(s.model)
	}
	zap.S().Debugw("loaded field descriptors", "database", s.database, "model", s.model, "count", len(descriptors))
	return descriptors, nil
}

// loadButtons fetches the workflow buttons declared in the form view.
func loadButtons(ctx context.Context, s *modelSession) ([]erpgate.WorkflowButton, error) {
	raw, err := s.call(ctx, "fields_view_get", false, "form")
	if err != nil {
		return nil, err
	}
	buttons, err := parseWorkflowButtons(s.model, raw)
	if err != nil {
		return nil, erpgate.NewContractError(err.Error()).WithCause(err)
	}
	return buttons, nil
}

// loadDefaults fetches the default values for the caller.
func loadDefaults(ctx context.Context, s *modelSession, fields erpgate.ModelDescriptors) (erpgate.Defaults, error) {
	raw, err := s.call(ctx, "default_get", fields.Names())
	if err != nil {
		return nil, err
	}
	values, ok := raw.(map[string]any)
	if !ok {
		if isEmptyValue(raw) {
			return erpgate.Defaults{}, nil
		}
		return nil, fmt.Errorf("unexpected default_get result for %s: %T", s.model, raw)
	}
	return erpgate.Defaults(values), nil
}
