package erpgate

import (
	"sort"
	"strings"
)

// FieldType is the declared type of a model field.
type FieldType string

const (
	FieldTypeChar      FieldType = "char"
	FieldTypeText      FieldType = "text"
	FieldTypeSelection FieldType = "selection"
	FieldTypeDatetime  FieldType = "datetime"
	FieldTypeFloat     FieldType = "float"
	FieldTypeInteger   FieldType = "integer"
	FieldTypeBoolean   FieldType = "boolean"
	FieldTypeMany2One  FieldType = "many2one"
	FieldTypeOne2Many  FieldType = "one2many"
	FieldTypeMany2Many FieldType = "many2many"
)

// ParseFieldType maps a backend type name onto the gateway vocabulary.
// Unknown types are treated as char.
func ParseFieldType(raw string) FieldType {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "char", "reference":
		return FieldTypeChar
	case "text", "html":
		return FieldTypeText
	case "selection":
		return FieldTypeSelection
	case "datetime", "date":
		return FieldTypeDatetime
	case "float", "monetary":
		return FieldTypeFloat
	case "integer", "int":
		return FieldTypeInteger
	case "boolean", "bool":
		return FieldTypeBoolean
	case "many2one":
		return FieldTypeMany2One
	case "one2many":
		return FieldTypeOne2Many
	case "many2many":
		return FieldTypeMany2Many
	default:
		return FieldTypeChar
	}
}

// IsRelational reports whether values of this type reference other records.
func (t FieldType) IsRelational() bool {
	return t == FieldTypeMany2One || t == FieldTypeOne2Many || t == FieldTypeMany2Many
}

// IsToMany reports one2many and many2many.
func (t FieldType) IsToMany() bool {
	return t == FieldTypeOne2Many || t == FieldTypeMany2Many
}

// IsTextual reports types whose wire form is the raw string.
func (t FieldType) IsTextual() bool {
	switch t {
	case FieldTypeChar, FieldTypeText, FieldTypeSelection, FieldTypeDatetime:
		return true
	}
	return false
}

// IsNumeric reports float and integer.
func (t FieldType) IsNumeric() bool {
	return t == FieldTypeFloat || t == FieldTypeInteger
}

// FieldDescriptor describes one model attribute. Immutable once fetched.
type FieldDescriptor struct {
	Name     string    `json:"name"`
	Type     FieldType `json:"type"`
	RawType  string    `json:"rawType,omitempty"`
	Required bool      `json:"required"`
	Relation string    `json:"relation,omitempty"`
	Label    string    `json:"label,omitempty"`
}

// ModelDescriptors maps field name to descriptor for one (database, model).
type ModelDescriptors map[string]FieldDescriptor

// Names returns the field names in sorted order.
func (d ModelDescriptors) Names() []string {
	names := make([]string, 0, len(d))
	for name := range d {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Sorted returns the descriptors ordered by field name.
func (d ModelDescriptors) Sorted() []FieldDescriptor {
	fields := make([]FieldDescriptor, 0, len(d))
	for _, name := range d.Names() {
		fields = append(fields, d[name])
	}
	return fields
}

// Has reports whether the model declares the field.
func (d ModelDescriptors) Has(name string) bool {
	_, ok := d[name]
	return ok
}

// ElementName converts a model name into its XML element name.
func ElementName(model string) string {
	return strings.ReplaceAll(model, ".", "_")
}
