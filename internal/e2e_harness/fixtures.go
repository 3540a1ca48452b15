package e2e_harness

import (
	"time"

	"github.com/lychee-technology/erpgate"
)

// Fixture credentials and database.
const (
	Database      = "demo"
	AdminUser     = "admin"
	AdminPassword = "admin"
	DemoUser      = "demo"
	DemoPassword  = "demo"
)

// FixtureTime is the clock of the fixture backend.
var FixtureTime = time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

func field(typ, label string, required bool) map[string]any {
	return map[string]any{"type": typ, "string": label, "required": required, "readonly": false}
}

func relation(typ, label, target string, required bool) map[string]any {
	f := field(typ, label, required)
	f["relation"] = target
	return f
}

const saleOrderArch = `<?xml version="1.0"?>
<form string="Sales Order">
  <group col="6" colspan="4">
    <field name="name"/>
    <field name="partner_id"/>
  </group>
  <group col="13" colspan="4">
    <field name="state"/>
    <button name="order_confirm" states="draft" string="Confirm Order"/>
    <button name="action_cancel" states="draft,progress" string="Cancel Order" type="object"/>
    <button name="42" string="Print Order" type="action"/>
    <button name="action_view_invoice" string="View Invoice" type="object"/>
    <button name="order_confirm" states="manual" string="Duplicate"/>
  </group>
</form>`

// NewFixtureBackend returns a backend holding res.partner,
// res.partner.category and sale.order records.
func NewFixtureBackend() *FakeBackend {
	return &FakeBackend{
		Database:  Database,
		Passwords: map[string]string{AdminUser: AdminPassword, DemoUser: DemoPassword},
		UIDs:      map[string]erpgate.SessionID{AdminUser: 1, DemoUser: 5},
		Now:       func() time.Time { return FixtureTime },
		Models: map[string]*FakeModel{
			"res.partner": {
				Fields: map[string]map[string]any{
					"name":         field("char", "Name", true),
					"ref":          field("char", "Reference", false),
					"comment":      field("text", "Notes", false),
					"active":       field("boolean", "Active", false),
					"customer":     field("boolean", "Customer", false),
					"credit_limit": field("float", "Credit Limit", false),
					"color":        field("integer", "Color Index", false),
					"type":         field("selection", "Address Type", false),
					"date":         field("date", "Date", false),
					"create_date":  field("datetime", "Created on", false),
					"write_date":   field("datetime", "Last Updated on", false),
					"parent_id":    relation("many2one", "Parent Partner", "res.partner", false),
					"child_ids":    relation("one2many", "Contacts", "res.partner", false),
					"category_id":  relation("many2many", "Categories", "res.partner.category", false),
				},
				Arch: `<form string="Partners"><field name="name"/><field name="parent_id"/></form>`,
				Defaults: map[string]any{
					"active":   true,
					"customer": true,
					"color":    int64(0),
					"type":     "contact",
				},
				Records: map[int]map[string]any{
					1: {
						"name": "Agrolait", "ref": "AGR", "active": true, "customer": true,
						"credit_limit": 1500.0, "color": int64(2), "type": "default",
						"comment": "Main customer", "child_ids": []int{3}, "category_id": []int{1, 2},
						"create_date": "2026-01-05 10:00:00", "write_date": "2026-02-01 08:30:00",
					},
					2: {
						"name": "ASUStek", "active": true, "customer": false, "credit_limit": 0.0,
						"color": int64(0), "type": "default", "child_ids": []int{}, "category_id": []int{1},
						"create_date": "2026-01-06 11:00:00", "write_date": "2026-01-06 11:00:00",
					},
					3: {
						"name": "Michel Fletcher", "active": true, "customer": true, "color": int64(0),
						"type": "contact", "parent_id": 1, "child_ids": []int{}, "category_id": []int{},
						"create_date": "2026-01-07 12:00:00",
					},
				},
				NextID: 3,
			},
			"res.partner.category": {
				Fields: map[string]map[string]any{
					"name":      field("char", "Category Name", true),
					"parent_id": relation("many2one", "Parent Category", "res.partner.category", false),
				},
				Defaults: map[string]any{},
				Records: map[int]map[string]any{
					1: {"name": "Supplier"},
					2: {"name": "Prospect"},
				},
				NextID: 2,
			},
			"sale.order": {
				Fields: map[string]map[string]any{
					"name":         field("char", "Order Reference", true),
					"state":        field("selection", "Order State", false),
					"partner_id":   relation("many2one", "Customer", "res.partner", true),
					"amount_total": field("float", "Total", false),
					"note":         field("text", "Terms and conditions", false),
					"date_order":   field("date", "Date", false),
					"create_date":  field("datetime", "Creation Date", false),
					"write_date":   field("datetime", "Last Update", false),
				},
				Arch:     saleOrderArch,
				Defaults: map[string]any{"state": "draft", "name": "/"},
				Records: map[int]map[string]any{
					1: {
						"name": "SO001", "state": "draft", "partner_id": 1, "amount_total": 120.5,
						"create_date": "2026-02-10 09:00:00", "write_date": "2026-02-10 09:00:00",
					},
					2: {
						"name": "SO002", "state": "progress", "partner_id": 2, "amount_total": 80.0,
						"create_date": "2026-02-11 09:00:00", "write_date": "2026-02-12 15:45:00",
					},
					3: {
						"name": "SO003", "state": "manual", "partner_id": 1, "amount_total": 42.0,
						"create_date": "2026-02-13 10:00:00", "write_date": "2026-02-13 10:00:00",
					},
				},
				Transitions:   map[string]string{"order_confirm": "progress"},
				ObjectMethods: map[string]bool{"action_cancel": true, "action_view_invoice": true},
				NextID:        3,
			},
		},
	}
}
