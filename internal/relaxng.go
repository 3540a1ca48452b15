package internal

import (
	"github.com/beevik/etree"
	"github.com/lychee-technology/erpgate"
)

// SchemaGenerator renders the RelaxNG grammar of a model's documents.
type SchemaGenerator struct {
	baseURL  string
	database string
}

func NewSchemaGenerator(baseURL, database string) *SchemaGenerator {
	return &SchemaGenerator{baseURL: baseURL, database: database}
}

// Generate returns a grammar whose root element is the model element in the
// model's namespace. Every declared field appears exactly once, in any
// order; the field's required flag decides whether its content may be empty.
func (g *SchemaGenerator) Generate(model string, fields erpgate.ModelDescriptors) *etree.Document {
	root := etree.NewElement("element")
	root.CreateAttr("xmlns", relaxNGNS)
	root.CreateAttr("datatypeLibrary", xsdDatatypesLib)
	root.CreateAttr("name", erpgate.ElementName(model))
	root.CreateAttr("ns", erpgate.SchemaNamespace(g.baseURL, g.database, model))

	interleave := root.CreateElement("interleave")

	id := interleave.CreateElement("element")
	id.CreateAttr("name", "id")
	id.CreateElement("data").CreateAttr("type", "decimal")

	for _, field := range fields.Sorted() {
		if field.Name == "id" {
			continue
		}
		g.fieldPattern(interleave, field)
	}
	return newDocument(root)
}

func (g *SchemaGenerator) fieldPattern(parent *etree.Element, field erpgate.FieldDescriptor) {
	el := parent.CreateElement("element")
	el.CreateAttr("name", field.Name)

	// content is what goes inside the field element, wrapped in optional
	// when the field is not required
	content := el
	if !field.Required && !field.Type.IsToMany() {
		content = el.CreateElement("optional")
	}

	if field.Type.IsTextual() {
		if field.Required {
			data := content.CreateElement("data")
			data.CreateAttr("type", "string")
			param := data.CreateElement("param")
			param.CreateAttr("name", "minLength")
			param.SetText("1")
		} else {
			content.CreateElement("text")
		}
		return
	}

	switch field.Type {
	case erpgate.FieldTypeFloat:
		content.CreateElement("data").CreateAttr("type", "float")
	case erpgate.FieldTypeInteger:
		content.CreateElement("data").CreateAttr("type", "integer")
	case erpgate.FieldTypeBoolean:
		choice := content.CreateElement("choice")
		choice.CreateElement("value").SetText("True")
		choice.CreateElement("value").SetText("False")
	case erpgate.FieldTypeMany2One:
		g.relationAttribute(el, field)
		g.linkPattern(content)
	case erpgate.FieldTypeOne2Many, erpgate.FieldTypeMany2Many:
		g.relationAttribute(el, field)
		repeat := "zeroOrMore"
		if field.Required {
			repeat = "oneOrMore"
		}
		g.linkPattern(el.CreateElement(repeat))
	}
}

func (g *SchemaGenerator) relationAttribute(el *etree.Element, field erpgate.FieldDescriptor) {
	attr := el.CreateElement("attribute")
	attr.CreateAttr("name", "relation")
	attr.CreateElement("value").SetText(field.Relation)
}

func (g *SchemaGenerator) linkPattern(parent *etree.Element) {
	link := parent.CreateElement("element")
	link.CreateAttr("name", "link")
	href := link.CreateElement("attribute")
	href.CreateAttr("name", "href")
	href.CreateElement("data").CreateAttr("type", "anyURI")
	title := link.CreateElement("optional").CreateElement("attribute")
	title.CreateAttr("name", "title")
	link.CreateElement("empty")
}
