package internal

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/beevik/etree"
	"github.com/lychee-technology/erpgate"
	"go.uber.org/zap"
)

// allowedButtons returns the actionable buttons applicable in state. When
// a name is declared more than once the first applicable declaration wins.
func allowedButtons(buttons []erpgate.WorkflowButton, state string) []erpgate.WorkflowButton {
	allowed := make([]erpgate.WorkflowButton, 0, len(buttons))
	seen := NewSet[string]()
	for _, b := range buttons {
		if !b.Actionable() || !b.AllowedIn(state) || seen.Contains(b.Name) {
			continue
		}
		seen.Add(b.Name)
		allowed = append(allowed, b)
	}
	return allowed
}

// selectButton finds the button named action that may run in state.
func selectButton(buttons []erpgate.WorkflowButton, action, state string) (erpgate.WorkflowButton, error) {
	for _, b := range allowedButtons(buttons, state) {
		if b.Name == action {
			return b, nil
		}
	}
	return erpgate.WorkflowButton{}, erpgate.NewWorkflowNotAllowedError(action, state)
}

// activeReference identifies the record an object-typed button acts for.
type activeReference struct {
	Model string
	ID    int
}

// parseActiveReference reads the record reference from a workflow request
// body. The body is either a record URL or an XML element whose href
// attribute or text holds one.
func parseActiveReference(body []byte) (activeReference, error) {
	raw := strings.TrimSpace(string(body))
	if raw == "" {
		return activeReference{}, fmt.Errorf("request body holds no record reference")
	}
	if strings.HasPrefix(raw, "<") {
		doc := etree.NewDocument()
		if err := doc.ReadFromBytes(bytes.TrimSpace(body)); err != nil || doc.Root() == nil {
			return activeReference{}, fmt.Errorf("request body holds no record reference")
		}
		root := doc.Root()
		raw = root.SelectAttrValue("href", "")
		if raw == "" {
			if link := root.SelectElement("link"); link != nil {
				raw = link.SelectAttrValue("href", "")
			}
		}
		if raw == "" {
			raw = strings.TrimSpace(root.Text())
		}
	}

	segments := strings.Split(strings.Trim(urlPath(raw), "/"), "/")
	if len(segments) < 2 {
		return activeReference{}, fmt.Errorf("%q does not reference a record", raw)
	}
	id, ok := parseRecordID(segments[len(segments)-1])
	if !ok {
		return activeReference{}, fmt.Errorf("%q does not reference a record", raw)
	}
	return activeReference{Model: segments[len(segments)-2], ID: id}, nil
}

// WorkflowGate checks and executes workflow actions on records.
type WorkflowGate struct{}

// Execute triggers action on record id, which is in state. Plain buttons
// fire a workflow signal; object buttons call the model method with the
// record referenced by body as active record.
func (g *WorkflowGate) Execute(ctx context.Context, s *modelSession, buttons []erpgate.WorkflowButton, id int, state, action string, body []byte) error {
	button, err := selectButton(buttons, action, state)
	if err != nil {
		return err
	}

	if button.Kind != erpgate.ButtonKindObject {
		zap.S().Infow("executing workflow signal", "model", s.model, "id", id, "action", action)
		return s.execWorkflow(ctx, action, id)
	}

	ref, err := parseActiveReference(body)
	if err != nil {
		return erpgate.NewUnimplementedError(fmt.Sprintf("Cannot run object action %s: %v", action, err))
	}
	actionContext := map[string]any{
		"active_model": ref.Model,
		"active_id":    ref.ID,
		"active_ids":   []any{ref.ID},
	}
	zap.S().Infow("executing object action", "model", s.model, "id", id, "action", action, "active_model", ref.Model, "active_id", ref.ID)
	_, err = s.call(ctx, action, []any{id}, actionContext)
	return err
}
