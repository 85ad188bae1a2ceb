package model

import (
	"encoding/json"
	"strings"
)

// Record is a schema-complete set of dataset metadata extracted from one
// source document. The zero value is not valid; use NewRecord.
type Record struct {
	values   [numFields]string
	Category string
}

// NewRecord returns a record with every field set to NotSpecified.
func NewRecord() Record {
	var r Record
	for i := range r.values {
		r.values[i] = NotSpecified
	}
	return r
}

// RecordFromStrings builds a record from key/value pairs. Unknown keys are
// dropped and values are normalized.
func RecordFromStrings(values map[string]string) Record {
	r := NewRecord()
	for k, v := range values {
		if f, ok := FieldByKey(k); ok {
			r.values[f] = NormalizeValue(v)
		}
	}
	return r
}

// Get returns the value of f.
func (r Record) Get(f Field) string {
	if !f.Valid() {
		return ""
	}
	if r.values[f] == "" {
		return NotSpecified
	}
	return r.values[f]
}

// With returns a copy of r with f set to the normalized value v.
func (r Record) With(f Field, v string) Record {
	if f.Valid() {
		r.values[f] = NormalizeValue(v)
	}
	return r
}

// WithCategory returns a copy of r tagged with category.
func (r Record) WithCategory(category string) Record {
	r.Category = category
	return r
}

// Specified reports whether f holds an extracted value.
func (r Record) Specified(f Field) bool {
	return IsSpecified(r.Get(f))
}

// SpecifiedCount returns how many fields hold extracted values.
func (r Record) SpecifiedCount() int {
	n := 0
	for i := range r.values {
		if r.Specified(Field(i)) {
			n++
		}
	}
	return n
}

// Name returns the dataset_name identity value.
func (r Record) Name() string { return r.Get(FieldDatasetName) }

// DOI returns the doi identity value.
func (r Record) DOI() string { return r.Get(FieldDOI) }

// URL returns the url identity value.
func (r Record) URL() string { return r.Get(FieldURL) }

// Values returns the field values in schema order.
func (r Record) Values() []string {
	out := make([]string, numFields)
	for i := range out {
		out[i] = r.Get(Field(i))
	}
	return out
}

// Map returns the record as a key/value map, including Category when set.
func (r Record) Map() map[string]string {
	m := make(map[string]string, numFields+1)
	for i, s := range schema {
		m[s.Key] = r.Get(Field(i))
	}
	if r.Category != "" {
		m["Category"] = r.Category
	}
	return m
}

// MarshalJSON encodes the record as a flat object.
func (r Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Map())
}

// UnmarshalJSON decodes a flat object; missing fields become NotSpecified.
func (r *Record) UnmarshalJSON(data []byte) error {
	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	*r = RecordFromStrings(m)
	r.Category = m["Category"]
	return nil
}

// NormalizeValue collapses internal whitespace and maps empty values to
// NotSpecified.
func NormalizeValue(v string) string {
	v = strings.Join(strings.Fields(v), " ")
	if v == "" {
		return NotSpecified
	}
	return v
}

// IsSpecified reports whether v is a real value rather than the sentinel or
// blank.
func IsSpecified(v string) bool {
	v = strings.TrimSpace(v)
	return v != "" && v != NotSpecified
}
