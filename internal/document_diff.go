package internal

import (
	"fmt"

	"github.com/beevik/etree"
	"github.com/lychee-technology/erpgate"
)

// fields the backend maintains itself
var unwritableFields = map[string]bool{
	"id":          true,
	"create_date": true,
}

// DocumentDiff computes the fields a client changed relative to a reference
// rendering produced by the gateway.
type DocumentDiff struct {
	codec *FieldCodec
}

func NewDocumentDiff(codec *FieldCodec) *DocumentDiff {
	return &DocumentDiff{codec: codec}
}

// Diff returns field name to decoded value for every field whose candidate
// element differs from the reference. Fields missing from the candidate are
// left unchanged. A relational element whose relation attribute disagrees
// with the reference is a contract violation.
func (d *DocumentDiff) Diff(fields erpgate.ModelDescriptors, candidate, reference *etree.Element) (map[string]any, error) {
	changes := make(map[string]any)
	submitted := childIndex(candidate)

	for _, ref := range reference.ChildElements() {
		name := ref.Tag
		if unwritableFields[name] {
			continue
		}
		field, ok := fields[name]
		if !ok {
			continue
		}
		cand, ok := submitted[name]
		if !ok {
			continue
		}
		if canonicalForm(cand) == canonicalForm(ref) {
			continue
		}

		changed, err := d.fieldChanged(field, cand, ref)
		if err != nil {
			return nil, err
		}
		if !changed {
			continue
		}
		value, err := d.codec.Decode(field, cand)
		if err != nil {
			return nil, err
		}
		changes[name] = value
	}
	return changes, nil
}

func (d *DocumentDiff) fieldChanged(field erpgate.FieldDescriptor, cand, ref *etree.Element) (bool, error) {
	if !field.Type.IsRelational() {
		return !d.codec.Equal(field, cand, ref), nil
	}

	candRel := cand.SelectAttrValue("relation", "")
	refRel := ref.SelectAttrValue("relation", "")
	if candRel != refRel {
		return false, erpgate.NewContractError(fmt.Sprintf(
			"relation mismatch on field %s: document has %q, server has %q", field.Name, candRel, refRel))
	}

	refIDs, err := d.codec.LinkIDs(field, ref)
	if err != nil {
		return false, erpgate.NewContractError(fmt.Sprintf("reference rendering of %s is unreadable: %v", field.Name, err))
	}
	candIDs, err := d.codec.LinkIDs(field, cand)
	if err != nil {
		return false, err
	}

	if field.Type == erpgate.FieldTypeMany2One {
		if len(candIDs) != len(refIDs) {
			return true, nil
		}
		return len(candIDs) > 0 && candIDs[0] != refIDs[0], nil
	}
	return !NewSet(candIDs...).Equal(NewSet(refIDs...)), nil
}
