package internal

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/lychee-technology/erpgate"
)

// BackendDatetimeLayout is the datetime format used by the backend.
const BackendDatetimeLayout = "2006-01-02 15:04:05"

var datetimeLayouts = []string{
	BackendDatetimeLayout,
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02",
}

// FieldCodec converts single field values between the backend
// representation and XML elements. Relational values are rendered as link
// children pointing at the related records.
type FieldCodec struct {
	baseURL  string
	database string
}

// NewFieldCodec creates a codec producing links below baseURL/database.
func NewFieldCodec(baseURL, database string) *FieldCodec {
	return &FieldCodec{baseURL: baseURL, database: database}
}

// RecordURL is the canonical URL of a record.
func (c *FieldCodec) RecordURL(model string, id int) string {
	return erpgate.CollectionURL(c.baseURL, c.database, model) + "/" + strconv.Itoa(id)
}

// Encode renders value as the element for field. Empty values produce a
// placeholder element; with withComment set the placeholder carries the raw
// backend value as a comment.
func (c *FieldCodec) Encode(field erpgate.FieldDescriptor, value any, withComment bool) *etree.Element {
	el := etree.NewElement(field.Name)

	switch {
	case field.Type == erpgate.FieldTypeMany2One:
		el.CreateAttr("relation", field.Relation)
		if id, label, ok := toRelated(value); ok {
			link := el.CreateElement("link")
			link.CreateAttr("href", c.RecordURL(field.Relation, id))
			if label != "" {
				link.CreateAttr("title", label)
			}
		}
	case field.Type.IsToMany():
		el.CreateAttr("relation", field.Relation)
		for _, id := range toIntSlice(value) {
			link := el.CreateElement("link")
			link.CreateAttr("href", c.RecordURL(field.Relation, id))
		}
	case field.Type == erpgate.FieldTypeBoolean:
		if value != nil {
			el.SetText(formatRaw(value == true))
		}
	default:
		if !isEmptyValue(value) {
			el.SetText(formatRaw(value))
		}
	}

	if withComment && value != nil && len(el.Child) == 0 {
		if raw := formatRaw(value); raw != "" {
			el.CreateComment(" " + strings.ReplaceAll(raw, "--", "- -") + " ")
		}
	}
	return el
}

// Decode converts a submitted element back into the backend value for field.
// Empty scalar elements decode to false, the backend's null.
func (c *FieldCodec) Decode(field erpgate.FieldDescriptor, el *etree.Element) (any, error) {
	trimmed := strings.TrimSpace(elementText(el))

	switch field.Type {
	case erpgate.FieldTypeMany2One:
		ids, err := c.LinkIDs(field, el)
		if err != nil {
			return nil, err
		}
		switch len(ids) {
		case 0:
			return false, nil
		case 1:
			return ids[0], nil
		default:
			return nil, erpgate.NewInvalidXMLError(fmt.Errorf("field %s accepts at most one link", field.Name))
		}
	case erpgate.FieldTypeOne2Many, erpgate.FieldTypeMany2Many:
		ids, err := c.LinkIDs(field, el)
		if err != nil {
			return nil, err
		}
		values := make([]any, 0, len(ids))
		for _, id := range ids {
			values = append(values, id)
		}
		// replace the whole set
		return []any{[]any{6, 0, values}}, nil
	case erpgate.FieldTypeFloat:
		if trimmed == "" {
			return false, nil
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return nil, erpgate.NewInvalidXMLError(fmt.Errorf("field %s: %q is not a number", field.Name, trimmed))
		}
		return f, nil
	case erpgate.FieldTypeInteger:
		if trimmed == "" {
			return false, nil
		}
		i, err := strconv.Atoi(trimmed)
		if err != nil {
			return nil, erpgate.NewInvalidXMLError(fmt.Errorf("field %s: %q is not an integer", field.Name, trimmed))
		}
		return i, nil
	case erpgate.FieldTypeBoolean:
		return trimmed == "True", nil
	default:
		// surrounding whitespace comes from indentation
		if trimmed == "" {
			return false, nil
		}
		return trimmed, nil
	}
}

// LinkIDs extracts the record ids referenced by the link children of el.
// Every link must point at a record of the field's relation.
func (c *FieldCodec) LinkIDs(field erpgate.FieldDescriptor, el *etree.Element) ([]int, error) {
	hrefs := linkHrefs(el)
	ids := make([]int, 0, len(hrefs))
	for _, href := range hrefs {
		id, err := parseRecordLink(href, field.Relation)
		if err != nil {
			return nil, erpgate.NewInvalidXMLError(fmt.Errorf("field %s: %w", field.Name, err))
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// parseRecordLink accepts any URL whose path ends in /{relation}/{id}.
func parseRecordLink(href, relation string) (int, error) {
	u, err := url.Parse(strings.TrimSpace(href))
	if err != nil || href == "" {
		return 0, fmt.Errorf("invalid link %q", href)
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segments) < 2 {
		return 0, fmt.Errorf("link %q does not reference a record", href)
	}
	id, ok := parseRecordID(segments[len(segments)-1])
	if !ok {
		return 0, fmt.Errorf("link %q does not reference a record", href)
	}
	if model := segments[len(segments)-2]; model != relation {
		return 0, fmt.Errorf("link %q references %s, expected %s", href, model, relation)
	}
	return id, nil
}

// Equal compares two scalar elements of field by value: numbers
// numerically, booleans by truth, datetimes as instants and text after
// trimming surrounding whitespace.
func (c *FieldCodec) Equal(field erpgate.FieldDescriptor, a, b *etree.Element) bool {
	ta := strings.TrimSpace(elementText(a))
	tb := strings.TrimSpace(elementText(b))
	if ta == tb {
		return true
	}

	switch {
	case field.Type.IsNumeric():
		fa, errA := strconv.ParseFloat(ta, 64)
		fb, errB := strconv.ParseFloat(tb, 64)
		if errA != nil || errB != nil {
			return false
		}
		return fa == fb || math.Abs(fa-fb) < 1e-9
	case field.Type == erpgate.FieldTypeBoolean:
		return (ta == "True") == (tb == "True")
	case field.Type == erpgate.FieldTypeDatetime:
		da, okA := parseDatetime(ta)
		db, okB := parseDatetime(tb)
		return okA && okB && da.Equal(db)
	default:
		return false
	}
}

func parseDatetime(s string) (time.Time, bool) {
	for _, layout := range datetimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
