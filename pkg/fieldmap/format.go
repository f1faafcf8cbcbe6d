package fieldmap

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// FormatValue renders an extracted value as the string written into a PDF
// form field:
//
//   - nil        -> ""
//   - bool       -> "Yes" / "Off" (AcroForm checkbox on/off states)
//   - list       -> elements joined with newlines (multiline text fields)
//   - map        -> "k: v" pairs joined with ", ", keys sorted
//   - otherwise  -> the value's string form
func FormatValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case bool:
		if v {
			return "Yes"
		}
		return "Off"
	case string:
		return v
	case []string:
		return strings.Join(v, "\n")
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			parts = append(parts, FormatValue(item))
		}
		return strings.Join(parts, "\n")
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s: %s", k, FormatValue(v[k])))
		}
		return strings.Join(parts, ", ")
	case float64:
		// JSON numbers decode as float64; render 42 as "42", not "42.000000".
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	default:
		return fmt.Sprintf("%v", v)
	}
}
