package internal

import (
	"testing"

	"github.com/lychee-technology/erpgate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFieldDescriptors(t *testing.T) {
	tests := []struct {
		name      string
		raw       any
		expectErr string
		expect    func(t *testing.T, d erpgate.ModelDescriptors)
	}{
		{
			name: "scalar and relational fields",
			raw: map[string]any{
				"name":      map[string]any{"type": "char", "required": true, "string": "Name"},
				"parent_id": map[string]any{"type": "many2one", "relation": "res.partner", "string": "Parent"},
				"amount":    map[string]any{"type": "monetary"},
				"body":      map[string]any{"type": "html"},
			},
			expect: func(t *testing.T, d erpgate.ModelDescriptors) {
				require.Len(t, d, 4)
				assert.Equal(t, erpgate.FieldDescriptor{Name: "name", Type: erpgate.FieldTypeChar, RawType: "char", Required: true, Label: "Name"}, d["name"])
				assert.Equal(t, "res.partner", d["parent_id"].Relation)
				assert.False(t, d["parent_id"].Required)
				assert.Equal(t, erpgate.FieldTypeFloat, d["amount"].Type)
				assert.Equal(t, "monetary", d["amount"].RawType)
				assert.Equal(t, erpgate.FieldTypeText, d["body"].Type)
			},
		},
		{
			name: "unknown type falls back to char",
			raw:  map[string]any{"file": map[string]any{"type": "binary"}},
			expect: func(t *testing.T, d erpgate.ModelDescriptors) {
				assert.Equal(t, erpgate.FieldTypeChar, d["file"].Type)
			},
		},
		{
			name:      "not a mapping",
			raw:       []any{"name"},
			expectErr: "unexpected fields_get result",
		},
		{
			name:      "descriptor not a mapping",
			raw:       map[string]any{"name": "char"},
			expectErr: "invalid descriptor for field name",
		},
		{
			name:      "missing type",
			raw:       map[string]any{"name": map[string]any{"string": "Name"}},
			expectErr: "missing type for field name",
		},
		{
			name:      "relational without relation",
			raw:       map[string]any{"tag_ids": map[string]any{"type": "many2many"}},
			expectErr: "missing relation for many2many field tag_ids",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := parseFieldDescriptors("res.partner", tt.raw)
			if tt.expectErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.expectErr)
				return
			}
			require.NoError(t, err)
			tt.expect(t, d)
		})
	}
}

const orderArch = `<form string="Sales Order">
  <header>
    <button name="order_confirm" states="draft" string="Confirm Order"/>
    <button name="action_cancel" states="draft, progress" string="Cancel" type="object"/>
    <button name="42" string="Print" type="action"/>
  </header>
  <sheet>
    <group>
      <button name="action_view_invoice" type="object"/>
      <button name="order_confirm" states="manual" string="Confirm again"/>
      <button string="Unnamed"/>
    </group>
  </sheet>
</form>`

func TestParseWorkflowButtons(t *testing.T) {
	buttons, err := parseWorkflowButtons("sale.order", map[string]any{"arch": orderArch, "type": "form"})
	require.NoError(t, err)

	assert.Equal(t, []erpgate.WorkflowButton{
		{Name: "order_confirm", States: []string{"draft"}, Kind: erpgate.ButtonKindPlain, Label: "Confirm Order"},
		{Name: "action_cancel", States: []string{"draft", "progress"}, Kind: erpgate.ButtonKindObject, Label: "Cancel"},
		{Name: "42", States: nil, Kind: erpgate.ButtonKindPlain, Label: "Print"},
		{Name: "action_view_invoice", States: nil, Kind: erpgate.ButtonKindObject, Label: "action_view_invoice"},
		{Name: "order_confirm", States: []string{"manual"}, Kind: erpgate.ButtonKindPlain, Label: "Confirm again"},
	}, buttons)
}

func TestParseWorkflowButtonsEdgeCases(t *testing.T) {
	buttons, err := parseWorkflowButtons("res.partner", map[string]any{"arch": ""})
	require.NoError(t, err)
	assert.NotNil(t, buttons)
	assert.Empty(t, buttons)

	buttons, err = parseWorkflowButtons("res.partner", map[string]any{"arch": `<form><field name="name"/></form>`})
	require.NoError(t, err)
	assert.Empty(t, buttons)

	_, err = parseWorkflowButtons("res.partner", map[string]any{"arch": `<form><button`})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse form view of res.partner")

	_, err = parseWorkflowButtons("res.partner", "arch")
	require.Error(t, err)
}

func TestParseStates(t *testing.T) {
	assert.Nil(t, parseStates(nil))

	el := parseElement(t, `<button states=" draft,,sent "/>`)
	assert.Equal(t, []string{"draft", "sent"}, parseStates(el.SelectAttr("states")))

	el = parseElement(t, `<button states=""/>`)
	states := parseStates(el.SelectAttr("states"))
	assert.NotNil(t, states)
	assert.Empty(t, states)
}
