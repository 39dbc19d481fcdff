package adapter

import (
	"fmt"
	"sort"
	"time"
)

// NormalizeForJSON recursively normalizes a decoded API response so it
// round-trips losslessly through encoding/json when stored as a
// candidate's raw snapshot: datetimes become RFC3339 strings, sets (here:
// nothing Go decodes as a set, covered for symmetry with the source this
// was ported from) and anything unexpected falls back to its %v string
// form rather than failing to marshal.
func NormalizeForJSON(data interface{}) interface{} {
	switch v := data.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for key, value := range v {
			out[key] = NormalizeForJSON(value)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, value := range v {
			out[i] = NormalizeForJSON(value)
		}
		return out
	case time.Time:
		return v.Format(time.RFC3339)
	case string, int, int64, float64, bool, nil:
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}

// sortStrings returns a sorted copy of in. No mapper in this package
// currently calls it.
func sortStrings(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}
