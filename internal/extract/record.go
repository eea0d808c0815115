package extract

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Record is an untyped product object recovered from page markup. Platform
// specific field names are preserved as-is; callers project records into
// typed output during reconciliation.
type Record map[string]any

// String returns the first non-empty string value among the given keys.
func (r Record) String(keys ...string) string {
	for _, k := range keys {
		v, ok := r[k]
		if !ok || v == nil {
			continue
		}
		if s, ok := v.(string); ok {
			s = strings.TrimSpace(s)
			if s != "" {
				return s
			}
		}
	}
	return ""
}

// Float returns the first numeric value among the given keys. Accepts JSON
// numbers as well as numeric strings, which some payloads use for prices.
func (r Record) Float(keys ...string) (float64, bool) {
	for _, k := range keys {
		v, ok := r[k]
		if !ok || v == nil {
			continue
		}
		switch n := v.(type) {
		case float64:
			return n, true
		case int:
			return float64(n), true
		case json.Number:
			if f, err := n.Float64(); err == nil {
				return f, true
			}
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(n), 64); err == nil {
				return f, true
			}
		}
	}
	return 0, false
}

// Bool reports whether the key holds a truthy value. JSON booleans and the
// numeric flags some payloads use (1/0) both count.
func (r Record) Bool(key string) bool {
	v, ok := r[key]
	if !ok || v == nil {
		return false
	}
	switch b := v.(type) {
	case bool:
		return b
	case float64:
		return b != 0
	case string:
		return b == "true" || b == "1"
	}
	return false
}

// Has reports whether the key is present with a non-nil value.
func (r Record) Has(key string) bool {
	v, ok := r[key]
	return ok && v != nil
}

// DetailScore is the serialized length of the record, used to rank multiple
// candidates describing different products on the same page. The largest
// object is assumed to be the primary product rather than a related or
// recommended one. This is a heuristic carried over from observed page
// layouts, not a guaranteed rule.
func (r Record) DetailScore() int {
	data, err := json.Marshal(r)
	if err != nil {
		return 0
	}
	return len(data)
}
