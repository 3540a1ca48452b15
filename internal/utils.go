package internal

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/lychee-technology/erpgate"
)

// The backend transport decodes integers as int64 and may hand out floats
// for numbers in some code paths, so every numeric helper accepts both.

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		if n == float64(int(n)) {
			return int(n), true
		}
	case erpgate.SessionID:
		return int(n), true
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		return i, err == nil
	}
	return 0, false
}

func toIntSlice(v any) []int {
	switch s := v.(type) {
	case []int:
		return s
	case []any:
		ids := make([]int, 0, len(s))
		for _, item := range s {
			if id, ok := toInt(item); ok {
				ids = append(ids, id)
			}
		}
		return ids
	}
	return nil
}

// toRelated unpacks a many2one value, which the backend sends as
// [id, display name] or false.
func toRelated(v any) (int, string, bool) {
	pair, ok := v.([]any)
	if !ok || len(pair) == 0 {
		if id, ok := toInt(v); ok && id > 0 {
			return id, "", true
		}
		return 0, "", false
	}
	id, ok := toInt(pair[0])
	if !ok {
		return 0, "", false
	}
	label := ""
	if len(pair) > 1 {
		label, _ = pair[1].(string)
	}
	return id, label, true
}

// isEmptyValue reports values the backend uses for "not set".
func isEmptyValue(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case bool:
		return !x
	case string:
		return x == ""
	case []any:
		return len(x) == 0
	case []int:
		return len(x) == 0
	}
	return false
}

// formatRaw renders a backend value the way the backend itself prints it.
func formatRaw(v any) string {
	switch x := v.(type) {
	case nil:
		return "None"
	case bool:
		if x {
			return "True"
		}
		return "False"
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case string:
		return x
	default:
		return fmt.Sprintf("%v", x)
	}
}

func toRecords(v any) ([]erpgate.Record, error) {
	list, ok := v.([]any)
	if !ok {
		if v == nil {
			return nil, nil
		}
		return nil, fmt.Errorf("unexpected read result of type %T", v)
	}
	records := make([]erpgate.Record, 0, len(list))
	for i, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("unexpected record %d of type %T", i, item)
		}
		records = append(records, erpgate.Record(m))
	}
	return records, nil
}

// parseRecordID accepts strictly positive decimal ids.
func parseRecordID(s string) (int, bool) {
	id, err := strconv.Atoi(s)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// urlPath returns the path of raw, or raw itself when it does not parse.
func urlPath(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return u.Path
}
