package extract

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Flatten collapses a nested document into a single-level map with
// underscore-joined keys for tabular display. Lists are rendered as
// indented JSON rather than exploded into rows.
func Flatten(doc map[string]any) map[string]any {
	out := make(map[string]any, len(doc))
	flattenInto(out, doc, "")
	return out
}

func flattenInto(out map[string]any, doc map[string]any, prefix string) {
	for key, value := range doc {
		flat := key
		if prefix != "" {
			flat = prefix + "_" + key
		}
		switch val := value.(type) {
		case map[string]any:
			flattenInto(out, val, flat)
		case []any:
			if data, err := json.MarshalIndent(val, "", "  "); err == nil {
				out[flat] = string(data)
			} else {
				out[flat] = fmt.Sprintf("%v", val)
			}
		default:
			out[flat] = value
		}
	}
}

// LimitDepth caps nesting at two levels: anything deeper is collapsed
// into a newline-joined "key: value" string, which renders cleanly in
// tabular displays.
func LimitDepth(doc map[string]any) map[string]any {
	out := make(map[string]any, len(doc))
	for key, value := range doc {
		switch val := value.(type) {
		case map[string]any:
			inner := make(map[string]any, len(val))
			for k, v := range val {
				if isContainer(v) && !isEmptyContainer(v) {
					inner[k] = flattenDeep(v, k)
				} else {
					inner[k] = v
				}
			}
			out[key] = inner
		case []any:
			list := make([]any, 0, len(val))
			for _, item := range val {
				if isContainer(item) {
					list = append(list, flattenDeep(item, key))
				} else {
					list = append(list, item)
				}
			}
			out[key] = list
		default:
			out[key] = value
		}
	}
	return out
}

// flattenDeep renders a nested structure as "key: value" lines. Nested
// containers contribute their own lines with underscore-joined keys.
func flattenDeep(value any, key string) string {
	switch val := value.(type) {
	case map[string]any:
		lines := make([]string, 0, len(val))
		for _, k := range sortedKeys(val) {
			v := val[k]
			if isContainer(v) {
				nestedKey := key + "_" + k
				nested := flattenDeep(v, nestedKey)
				if strings.Contains(nested, "\n") {
					lines = append(lines, nested)
				} else {
					lines = append(lines, nestedKey+": "+nested)
				}
				continue
			}
			lines = append(lines, k+": "+scalarString(v))
		}
		return strings.Join(lines, "\n")
	case []any:
		lines := make([]string, 0, len(val))
		for i, item := range val {
			itemKey := key + "_" + strconv.Itoa(i)
			if isContainer(item) {
				nested := flattenDeep(item, itemKey)
				if strings.Contains(nested, "\n") {
					lines = append(lines, nested)
				} else {
					lines = append(lines, itemKey+": "+nested)
				}
				continue
			}
			lines = append(lines, itemKey+": "+scalarString(item))
		}
		return strings.Join(lines, "\n")
	default:
		return scalarString(value)
	}
}

func isContainer(v any) bool {
	switch v.(type) {
	case map[string]any, []any:
		return true
	default:
		return false
	}
}

func isEmptyContainer(v any) bool {
	switch val := v.(type) {
	case map[string]any:
		return len(val) == 0
	case []any:
		return len(val) == 0
	default:
		return false
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func scalarString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case nil:
		return "null"
	default:
		return fmt.Sprintf("%v", val)
	}
}
