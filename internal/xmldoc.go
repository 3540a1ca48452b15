package internal

import (
	"errors"
	"sort"
	"strings"

	"github.com/beevik/etree"
	"github.com/lychee-technology/erpgate"
)

const (
	atomNamespace   = "http://www.w3.org/2005/Atom"
	relaxNGNS       = "http://relaxng.org/ns/structure/1.0"
	xsdDatatypesLib = "http://www.w3.org/2001/XMLSchema-datatypes"
)

// parseDocument parses a request body. Any well-formedness problem, an
// empty body included, is reported as malformed XML.
func parseDocument(body []byte) (*etree.Document, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(body); err != nil {
		return nil, erpgate.NewMalformedXMLError(err)
	}
	if doc.Root() == nil {
		return nil, erpgate.NewMalformedXMLError(errors.New("document has no root element"))
	}
	return doc, nil
}

// modelElement returns the model element of a submitted document. Clients
// may post the bare element or the Atom entry that wraps it.
func modelElement(doc *etree.Document) *etree.Element {
	root := doc.Root()
	if root.Tag != "entry" {
		return root
	}
	content := root.SelectElement("content")
	if content == nil {
		return root
	}
	if children := content.ChildElements(); len(children) > 0 {
		return children[0]
	}
	return root
}

// newDocument wraps root in a document with an XML declaration.
func newDocument(root *etree.Element) *etree.Document {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	doc.SetRoot(root)
	doc.Indent(2)
	return doc
}

// childIndex maps local names to the first child element carrying them.
func childIndex(el *etree.Element) map[string]*etree.Element {
	index := make(map[string]*etree.Element)
	for _, child := range el.ChildElements() {
		if _, seen := index[child.Tag]; !seen {
			index[child.Tag] = child
		}
	}
	return index
}

// elementText concatenates the direct character data of el, skipping
// comments and child elements.
func elementText(el *etree.Element) string {
	var sb strings.Builder
	for _, tok := range el.Child {
		if cd, ok := tok.(*etree.CharData); ok {
			sb.WriteString(cd.Data)
		}
	}
	return sb.String()
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// canonicalForm renders el for equivalence checks: local names only,
// namespace declarations and comments dropped, attributes sorted and text
// whitespace collapsed.
func canonicalForm(el *etree.Element) string {
	var sb strings.Builder
	writeCanonical(&sb, el)
	return sb.String()
}

func writeCanonical(sb *strings.Builder, el *etree.Element) {
	sb.WriteString("<")
	sb.WriteString(el.Tag)

	attrs := make([]string, 0, len(el.Attr))
	for _, a := range el.Attr {
		if a.Space == "xmlns" || (a.Space == "" && a.Key == "xmlns") {
			continue
		}
		attrs = append(attrs, a.Key+"="+a.Value)
	}
	sort.Strings(attrs)
	for _, a := range attrs {
		sb.WriteString(" ")
		sb.WriteString(a)
	}
	sb.WriteString(">")

	var text strings.Builder
	flush := func() {
		if t := collapseSpace(text.String()); t != "" {
			sb.WriteString(t)
		}
		text.Reset()
	}
	for _, tok := range el.Child {
		switch t := tok.(type) {
		case *etree.CharData:
			text.WriteString(t.Data)
		case *etree.Element:
			flush()
			writeCanonical(sb, t)
		}
	}
	flush()
	sb.WriteString("</")
	sb.WriteString(el.Tag)
	sb.WriteString(">")
}

// linkHrefs returns the href attribute of every link child of el.
func linkHrefs(el *etree.Element) []string {
	var hrefs []string
	for _, link := range el.SelectElements("link") {
		hrefs = append(hrefs, link.SelectAttrValue("href", ""))
	}
	return hrefs
}
