package internal

import (
	"testing"

	"github.com/lychee-technology/erpgate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaGenerator(t *testing.T) {
	doc := NewSchemaGenerator(testBase, "demo").Generate("res.partner", partnerDescriptors())
	root := doc.Root()
	require.NotNil(t, root)

	assert.Equal(t, "element", root.Tag)
	assert.Equal(t, relaxNGNS, root.SelectAttrValue("xmlns", ""))
	assert.Equal(t, "res_partner", root.SelectAttrValue("name", ""))
	assert.Equal(t, partnerNS, root.SelectAttrValue("ns", ""))

	interleave := root.SelectElement("interleave")
	require.NotNil(t, interleave)
	elements := interleave.SelectElements("element")
	require.Len(t, elements, len(partnerDescriptors())+1)
	assert.Equal(t, "id", elements[0].SelectAttrValue("name", ""))
	assert.Equal(t, "decimal", elements[0].SelectElement("data").SelectAttrValue("type", ""))

	byName := map[string]int{}
	for i, el := range elements {
		byName[el.SelectAttrValue("name", "")] = i
	}
	field := func(name string) int { return byName[name] }

	name := elements[field("name")]
	param := name.FindElement("data/param")
	require.NotNil(t, param)
	assert.Equal(t, "minLength", param.SelectAttrValue("name", ""))
	assert.Equal(t, "1", param.Text())

	assert.NotNil(t, elements[field("comment")].FindElement("optional/text"))
	assert.NotNil(t, elements[field("credit_limit")].FindElement("optional/data[@type='float']"))
	assert.NotNil(t, elements[field("color")].FindElement("optional/data[@type='integer']"))

	values := elements[field("active")].FindElements("optional/choice/value")
	require.Len(t, values, 2)
	assert.Equal(t, "True", values[0].Text())
	assert.Equal(t, "False", values[1].Text())

	parent := elements[field("parent_id")]
	assert.Equal(t, "res.partner", parent.FindElement("attribute[@name='relation']/value").Text())
	assert.NotNil(t, parent.FindElement("optional/element[@name='link']"))

	categories := elements[field("category_id")]
	assert.Equal(t, "res.partner.category", categories.FindElement("attribute/value").Text())
	assert.NotNil(t, categories.FindElement("zeroOrMore/element[@name='link']"))
}

func TestSchemaGeneratorRequiredRelations(t *testing.T) {
	fields := erpgate.ModelDescriptors{
		"partner_id": {Name: "partner_id", Type: erpgate.FieldTypeMany2One, Relation: "res.partner", Required: true},
		"line_ids":   {Name: "line_ids", Type: erpgate.FieldTypeOne2Many, Relation: "sale.order.line", Required: true},
		"active":     {Name: "active", Type: erpgate.FieldTypeBoolean, Required: true},
	}
	root := NewSchemaGenerator(testBase, "demo").Generate("sale.order", fields).Root()

	assert.Equal(t, "sale_order", root.SelectAttrValue("name", ""))
	assert.NotNil(t, root.FindElement("//element[@name='partner_id']/element[@name='link']"))
	assert.Nil(t, root.FindElement("//element[@name='partner_id']/optional"))
	assert.NotNil(t, root.FindElement("//element[@name='line_ids']/oneOrMore/element[@name='link']"))
	assert.NotNil(t, root.FindElement("//element[@name='active']/choice"))
}

func TestSchemaGeneratorRequiredTextualFields(t *testing.T) {
	root := NewSchemaGenerator(testBase, "demo").Generate("sale.order", requiredOrderDescriptors()).Root()

	for _, name := range []string{"name", "state", "date_order"} {
		param := root.FindElement("//element[@name='" + name + "']/data[@type='string']/param[@name='minLength']")
		require.NotNil(t, param, name)
		assert.Equal(t, "1", param.Text(), name)
		assert.Nil(t, root.FindElement("//element[@name='"+name+"']/text"), name)
	}
	assert.NotNil(t, root.FindElement("//element[@name='note']/optional/text"))
}
