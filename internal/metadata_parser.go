package internal

import (
	"fmt"
	"strings"

	"github.com/beevik/etree"
	"github.com/lychee-technology/erpgate"
)

// parseFieldDescriptors converts a fields_get result into descriptors. The
// model argument is used for readable errors.
func parseFieldDescriptors(model string, raw any) (erpgate.ModelDescriptors, error) {
	fieldsMap, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("unexpected fields_get result for %s: %T", model, raw)
	}

	descriptors := make(erpgate.ModelDescriptors, len(fieldsMap))
	for name, data := range fieldsMap {
		attrs, ok := data.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("invalid descriptor for field %s in %s", name, model)
		}
		desc, err := parseFieldDescriptor(name, attrs, model)
		if err != nil {
			return nil, err
		}
		descriptors[name] = desc
	}
	return descriptors, nil
}

func parseFieldDescriptor(name string, attrs map[string]any, model string) (erpgate.FieldDescriptor, error) {
	rawType, ok := attrs["type"].(string)
	if !ok || rawType == "" {
		return erpgate.FieldDescriptor{}, fmt.Errorf("invalid or missing type for field %s in %s", name, model)
	}

	desc := erpgate.FieldDescriptor{
		Name:    name,
		Type:    erpgate.ParseFieldType(rawType),
		RawType: rawType,
	}
	desc.Required, _ = attrs["required"].(bool)
	desc.Label, _ = attrs["string"].(string)

	if desc.Type.IsRelational() {
		desc.Relation, _ = attrs["relation"].(string)
		if desc.Relation == "" {
			return erpgate.FieldDescriptor{}, fmt.Errorf("missing relation for %s field %s in %s", rawType, name, model)
		}
	}
	return desc, nil
}

// parseWorkflowButtons extracts the buttons of a fields_view_get form
// result in declaration order. A name may repeat with different states.
func parseWorkflowButtons(model string, raw any) ([]erpgate.WorkflowButton, error) {
	view, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("unexpected fields_view_get result for %s: %T", model, raw)
	}
	arch, _ := view["arch"].(string)
	if strings.TrimSpace(arch) == "" {
		return []erpgate.WorkflowButton{}, nil
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromString(arch); err != nil {
		return nil, fmt.Errorf("failed to parse form view of %s: %w", model, err)
	}

	buttons := []erpgate.WorkflowButton{}
	for _, el := range doc.FindElements("//button") {
		name := el.SelectAttrValue("name", "")
		if name == "" {
			continue
		}

		kind := erpgate.ButtonKindPlain
		if el.SelectAttrValue("type", "") == "object" {
			kind = erpgate.ButtonKindObject
		}
		buttons = append(buttons, erpgate.WorkflowButton{
			Name:   name,
			States: parseStates(el.SelectAttr("states")),
			Kind:   kind,
			Label:  el.SelectAttrValue("string", name),
		})
	}
	return buttons, nil
}

// parseStates splits a comma separated states attribute. An absent
// attribute yields nil, meaning every state.
func parseStates(attr *etree.Attr) []string {
	if attr == nil {
		return nil
	}
	states := []string{}
	for _, s := range strings.Split(attr.Value, ",") {
		if s = strings.TrimSpace(s); s != "" {
			states = append(states, s)
		}
	}
	return states
}
