package erpgate

import (
	"sort"
	"strconv"
	"strings"
)

// KvCondition is one equality filter taken from the query string. Several
// values turn it into an "in" filter.
type KvCondition struct {
	Attr   string
	Values []string
}

// CompositeCondition is the conjunction of all filters of a list request.
type CompositeCondition struct {
	Conditions []KvCondition
}

// ConditionsFromQuery builds a condition from query parameters. Keys are
// processed in sorted order so the resulting domain is deterministic.
func ConditionsFromQuery(query map[string][]string) *CompositeCondition {
	keys := make([]string, 0, len(query))
	for key := range query {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	c := &CompositeCondition{}
	for _, key := range keys {
		values := query[key]
		if len(values) == 0 {
			continue
		}
		c.Conditions = append(c.Conditions, KvCondition{Attr: key, Values: values})
	}
	return c
}

// ToDomain converts the condition into a backend search domain. Every
// filtered attribute must be a declared field (or "id").
func (c *CompositeCondition) ToDomain(fields ModelDescriptors) ([]any, error) {
	domain := make([]any, 0, len(c.Conditions))
	for _, kv := range c.Conditions {
		term, err := kv.ToDomain(fields)
		if err != nil {
			return nil, err
		}
		domain = append(domain, term)
	}
	return domain, nil
}

// ToDomain converts a single filter into a domain term.
func (kv *KvCondition) ToDomain(fields ModelDescriptors) ([]any, error) {
	fieldType := FieldTypeInteger
	if kv.Attr != "id" {
		field, ok := fields[kv.Attr]
		if !ok {
			return nil, NewInvalidFilterError(kv.Attr)
		}
		fieldType = field.Type
	}

	if len(kv.Values) == 1 {
		return []any{kv.Attr, "=", filterValue(fieldType, kv.Values[0])}, nil
	}
	values := make([]any, 0, len(kv.Values))
	for _, v := range kv.Values {
		values = append(values, filterValue(fieldType, v))
	}
	return []any{kv.Attr, "in", values}, nil
}

// filterValue converts a query string value to the field's backend type.
// Values that do not parse are passed through as strings and left to the
// backend to reject.
func filterValue(fieldType FieldType, raw string) any {
	switch fieldType {
	case FieldTypeInteger, FieldTypeMany2One, FieldTypeOne2Many, FieldTypeMany2Many:
		if i, err := strconv.Atoi(raw); err == nil {
			return i
		}
	case FieldTypeFloat:
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return f
		}
	case FieldTypeBoolean:
		switch strings.ToLower(raw) {
		case "true", "1":
			return true
		case "false", "0":
			return false
		}
	}
	return raw
}
