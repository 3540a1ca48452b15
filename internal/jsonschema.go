package internal

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/beevik/etree"
	"github.com/google/jsonschema-go/jsonschema"
	"github.com/lychee-technology/erpgate"
)

const jsonSchemaDialect = "https://json-schema.org/draft/2020-12/schema"

func intPtr(v int) *int { return &v }

// BuildJSONSchema describes a model document as JSON Schema. It carries
// the same constraints as the RelaxNG grammar, expressed over the instance
// built by DocumentValidator: each field element becomes one property.
func BuildJSONSchema(namespace, model string, fields erpgate.ModelDescriptors) *jsonschema.Schema {
	schema := &jsonschema.Schema{
		Schema:      jsonSchemaDialect,
		Title:       erpgate.ElementName(model),
		Description: namespace,
		Type:        "object",
		Properties:  make(map[string]*jsonschema.Schema, len(fields)+1),
		Required:    []string{"id"},
	}
	// additionalProperties: false
	schema.AdditionalProperties = &jsonschema.Schema{Not: &jsonschema.Schema{}}
	schema.Properties["id"] = &jsonschema.Schema{Type: "integer", Minimum: floatPtr(0)}

	for _, field := range fields.Sorted() {
		if field.Name == "id" {
			continue
		}
		schema.Properties[field.Name] = fieldSchema(field)
		schema.Required = append(schema.Required, field.Name)
	}
	return schema
}

func floatPtr(v float64) *float64 { return &v }

func fieldSchema(field erpgate.FieldDescriptor) *jsonschema.Schema {
	s := &jsonschema.Schema{Title: field.Label}
	if field.Type.IsTextual() {
		s.Type = "string"
		if field.Required {
			s.MinLength = intPtr(1)
		}
		return s
	}

	switch field.Type {
	case erpgate.FieldTypeFloat:
		s.Types = nullable("number", field.Required)
	case erpgate.FieldTypeInteger:
		s.Types = nullable("integer", field.Required)
	case erpgate.FieldTypeBoolean:
		s.Type = "string"
		s.Enum = []any{"True", "False"}
		if !field.Required {
			s.Enum = append(s.Enum, "")
		}
	case erpgate.FieldTypeMany2One:
		s.Types = nullable("string", field.Required)
		s.Format = "uri-reference"
	case erpgate.FieldTypeOne2Many, erpgate.FieldTypeMany2Many:
		s.Type = "array"
		s.Items = &jsonschema.Schema{Type: "string", Format: "uri-reference"}
		if field.Required {
			s.MinItems = intPtr(1)
		}
	}
	return s
}

func nullable(typ string, required bool) []string {
	if required {
		return []string{typ}
	}
	return []string{typ, "null"}
}

// DocumentValidator checks submitted model documents. Structural rules
// (root element, relation attributes, link cardinality) are checked on the
// XML directly; value rules are checked by validating an instance built
// from the document against BuildJSONSchema.
type DocumentValidator struct {
	namespace string
	model     string
	fields    erpgate.ModelDescriptors
	resolved  *jsonschema.Resolved
}

// NewDocumentValidator compiles the schema of model.
func NewDocumentValidator(namespace, model string, fields erpgate.ModelDescriptors) (*DocumentValidator, error) {
	schema := BuildJSONSchema(namespace, model, fields)
	resolved, err := schema.Resolve(&jsonschema.ResolveOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to resolve schema for %s: %w", model, err)
	}
	return &DocumentValidator{namespace: namespace, model: model, fields: fields, resolved: resolved}, nil
}

// Validate returns an invalid-XML error describing the first problem found.
func (v *DocumentValidator) Validate(el *etree.Element) error {
	expected := erpgate.ElementName(v.model)
	if el.Tag != expected {
		return erpgate.NewInvalidXMLError(fmt.Errorf("expecting element %s, got %s", expected, el.Tag))
	}
	if ns := el.NamespaceURI(); ns != "" && ns != v.namespace {
		return erpgate.NewInvalidXMLError(fmt.Errorf("element %s must be in namespace %s, got %s", expected, v.namespace, ns))
	}

	instance, err := v.instance(el)
	if err != nil {
		return erpgate.NewInvalidXMLError(err)
	}
	if err := v.resolved.Validate(instance); err != nil {
		return erpgate.NewInvalidXMLError(err)
	}
	return nil
}

func (v *DocumentValidator) instance(el *etree.Element) (map[string]any, error) {
	instance := make(map[string]any)
	for _, child := range el.ChildElements() {
		name := child.Tag
		if _, dup := instance[name]; dup {
			return nil, fmt.Errorf("element %s appears more than once", name)
		}
		text := strings.TrimSpace(elementText(child))

		if name == "id" {
			instance[name] = numberOrText(text, true)
			continue
		}
		field, ok := v.fields[name]
		if !ok {
			instance[name] = text
			continue
		}

		if field.Type.IsRelational() {
			if rel := child.SelectAttrValue("relation", ""); rel != field.Relation {
				return nil, fmt.Errorf("element %s: relation attribute must be %q, got %q", name, field.Relation, rel)
			}
			hrefs := linkHrefs(child)
			if field.Type == erpgate.FieldTypeMany2One {
				switch len(hrefs) {
				case 0:
					instance[name] = nil
				case 1:
					instance[name] = hrefs[0]
				default:
					return nil, fmt.Errorf("element %s accepts at most one link", name)
				}
				continue
			}
			links := make([]any, 0, len(hrefs))
			for _, h := range hrefs {
				links = append(links, h)
			}
			instance[name] = links
			continue
		}

		switch field.Type {
		case erpgate.FieldTypeFloat:
			instance[name] = numberOrText(text, false)
		case erpgate.FieldTypeInteger:
			instance[name] = numberOrText(text, true)
		case erpgate.FieldTypeBoolean:
			instance[name] = text
		default:
			instance[name] = text
		}
	}
	return instance, nil
}

// numberOrText returns nil for empty text, the parsed number when text is
// numeric and the raw text otherwise so schema validation reports it.
func numberOrText(text string, integer bool) any {
	if text == "" {
		return nil
	}
	if integer {
		if i, err := strconv.ParseInt(text, 10, 64); err == nil {
			return float64(i)
		}
		return text
	}
	if f, err := strconv.ParseFloat(text, 64); err == nil {
		return f
	}
	return text
}
