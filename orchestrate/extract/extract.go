// Package extract post-processes generated text for display: pulling an
// embedded JSON object out of surrounding prose, separating reference-like
// fields, and collapsing deep nesting into shallow structures.
package extract

import (
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// JSONFromText extracts the outermost JSON object embedded in prose.
// It returns the parsed document, the raw JSON slice and whether parsing
// succeeded. On failure the raw slice is still returned so callers can
// display it rather than hide the output.
func JSONFromText(text string) (map[string]any, string, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end <= start {
		return nil, text, false
	}
	raw := text[start : end+1]
	if !gjson.Valid(raw) {
		return nil, raw, false
	}
	doc, ok := gjson.Parse(raw).Value().(map[string]any)
	if !ok {
		return nil, raw, false
	}
	return doc, raw, true
}

// Field is one extracted field occurrence.
type Field struct {
	Path  string `json:"path"`
	Value string `json:"value"`

	jsonPath string
}

// Fields recursively collects every field with the given name
// (case-insensitive) from a raw JSON document, with underscore-joined
// paths for display.
func Fields(raw, name string) []Field {
	var out []Field
	walk(gjson.Parse(raw), "", "", name, &out)
	return out
}

// References returns all "reference" fields with their paths.
func References(raw string) []Field {
	return Fields(raw, "reference")
}

// URLs returns all "url" fields with their paths.
func URLs(raw string) []Field {
	return Fields(raw, "url")
}

// Strip removes the given fields from a raw JSON document, returning the
// cleaned document for separate display of content and references.
func Strip(raw string, fields []Field) string {
	cleaned := raw
	// Delete in reverse so array indexes collected earlier stay valid.
	for i := len(fields) - 1; i >= 0; i-- {
		if fields[i].jsonPath == "" {
			continue
		}
		if next, err := sjson.Delete(cleaned, fields[i].jsonPath); err == nil {
			cleaned = next
		}
	}
	return cleaned
}

func walk(node gjson.Result, displayPath, jsonPath, name string, out *[]Field) {
	if node.IsObject() {
		node.ForEach(func(key, value gjson.Result) bool {
			k := key.String()
			dp := joinPath(displayPath, k)
			jp := joinJSONPath(jsonPath, escapeKey(k))
			if strings.EqualFold(k, name) {
				*out = append(*out, Field{Path: dp, Value: fieldValue(value), jsonPath: jp})
			}
			if value.IsObject() || value.IsArray() {
				walk(value, dp, jp, name, out)
			}
			return true
		})
		return
	}
	if node.IsArray() {
		idx := 0
		node.ForEach(func(_, value gjson.Result) bool {
			dp := joinPath(displayPath, strconv.Itoa(idx))
			jp := joinJSONPath(jsonPath, strconv.Itoa(idx))
			if value.IsObject() || value.IsArray() {
				walk(value, dp, jp, name, out)
			}
			idx++
			return true
		})
	}
}

func fieldValue(value gjson.Result) string {
	if value.Type == gjson.String {
		return value.Str
	}
	return value.Raw
}

func joinPath(base, part string) string {
	if base == "" {
		return part
	}
	return base + "_" + part
}

func joinJSONPath(base, part string) string {
	if base == "" {
		return part
	}
	return base + "." + part
}

func escapeKey(key string) string {
	replacer := strings.NewReplacer(".", `\.`, "*", `\*`, "?", `\?`, "#", `\#`, "|", `\|`)
	return replacer.Replace(key)
}
