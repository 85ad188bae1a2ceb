package extract

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/catalog-updater/internal/model"
)

// ErrNoJSON is returned when a response holds no parseable JSON object.
var ErrNoJSON = eris.New("no valid JSON object found in model output")

// Parse pulls a JSON object out of raw model output. Markdown fences are
// dropped first; when the remainder is not valid JSON on its own, the first
// '{' that opens a complete object is used and anything after that object is
// ignored.
func Parse(raw string) (map[string]any, error) {
	cleaned := strings.ReplaceAll(raw, "```json", "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	cleaned = strings.TrimSpace(cleaned)

	if obj, err := decodeObject(cleaned); err == nil {
		return obj, nil
	}

	for i := strings.IndexByte(cleaned, '{'); i >= 0; {
		if obj, err := leadingObject(cleaned[i:]); err == nil {
			return obj, nil
		}
		next := strings.IndexByte(cleaned[i+1:], '{')
		if next < 0 {
			break
		}
		i += next + 1
	}
	return nil, ErrNoJSON
}

// leadingObject decodes the object at the start of s, ignoring what follows.
func leadingObject(s string) (map[string]any, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()

	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, eris.New("JSON value is not an object")
	}
	return obj, nil
}

func decodeObject(s string) (map[string]any, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, eris.New("trailing data after JSON value")
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, eris.New("JSON value is not an object")
	}
	return obj, nil
}

// Normalize maps a decoded object onto the schema. Non-string values are
// stringified, whitespace is collapsed, missing or empty values become the
// sentinel, and unknown keys are dropped.
func Normalize(obj map[string]any) model.Record {
	r := model.NewRecord()
	for _, f := range model.Fields() {
		v, ok := obj[f.Key()]
		if !ok {
			continue
		}
		r = r.With(f, stringify(v))
	}
	return r
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		if t {
			return "true"
		}
		return "false"
	default:
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(t); err != nil {
			return ""
		}
		return strings.TrimSpace(buf.String())
	}
}
