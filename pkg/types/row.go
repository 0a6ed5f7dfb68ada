// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// DefaultSentinel is the value substituted for a feature that is missing or
// cannot be coerced to a float on the single feature-dict prediction path.
const DefaultSentinel = 50.0

// Field is one named cell of a RawRow.
type Field struct {
	Name  string
	Value any
}

// RawRow is an ordered mapping from field name to a scalar of unknown type
// (numeric, string, bool, or nil for missing). Rows come from CSV records or
// JSON bodies and are never assumed to match a FeatureSchema.
//
// Setting an existing name replaces its value in place and keeps its position.
type RawRow struct {
	fields []Field
	index  map[string]int
}

// NewRawRow builds a row from fields in order.
func NewRawRow(fields ...Field) RawRow {
	var r RawRow
	for _, f := range fields {
		r.Set(f.Name, f.Value)
	}
	return r
}

// RowFromMap builds a row from a map. Go maps carry no order, so fields are
// added in the order given by names; names absent from m are skipped.
func RowFromMap(m map[string]any, names []string) RawRow {
	var r RawRow
	for _, n := range names {
		if v, ok := m[n]; ok {
			r.Set(n, v)
		}
	}
	return r
}

// Set assigns value to name.
func (r *RawRow) Set(name string, value any) {
	if r.index == nil {
		r.index = make(map[string]int)
	}
	if i, ok := r.index[name]; ok {
		r.fields[i].Value = value
		return
	}
	r.index[name] = len(r.fields)
	r.fields = append(r.fields, Field{Name: name, Value: value})
}

// Get returns the value stored under name.
func (r RawRow) Get(name string) (any, bool) {
	i, ok := r.index[name]
	if !ok {
		return nil, false
	}
	return r.fields[i].Value, true
}

// Len returns the number of fields.
func (r RawRow) Len() int { return len(r.fields) }

// Fields returns a copy of the fields in insertion order.
func (r RawRow) Fields() []Field {
	out := make([]Field, len(r.fields))
	copy(out, r.fields)
	return out
}

// Names returns the field names in insertion order.
func (r RawRow) Names() []string {
	out := make([]string, len(r.fields))
	for i, f := range r.fields {
		out[i] = f.Name
	}
	return out
}

// UnmarshalJSON decodes a JSON object keeping key order. Numbers are kept
// as json.Number so integer and float literals survive unchanged.
func (r *RawRow) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("decoding row: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("decoding row: expected JSON object, got %v", tok)
	}

	*r = RawRow{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("decoding row key: %w", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("decoding row: unexpected key %v", keyTok)
		}
		var value any
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("decoding row value for %q: %w", key, err)
		}
		switch value.(type) {
		case map[string]any, []any:
			return fmt.Errorf("decoding row: field %q is not a scalar", key)
		}
		r.Set(key, value)
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("decoding row: %w", err)
	}
	return nil
}

// MarshalJSON encodes the row as a JSON object in field order.
func (r RawRow) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r.fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(jsonSafe(f.Value))
		if err != nil {
			return nil, fmt.Errorf("encoding field %q: %w", f.Name, err)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// jsonSafe maps NaN and infinities to null, which encoding/json rejects.
func jsonSafe(v any) any {
	if f, ok := v.(float64); ok && (math.IsNaN(f) || math.IsInf(f, 0)) {
		return nil
	}
	return v
}

// IsNumeric reports whether v is a numeric scalar: a Go integer or float
// kind, a json.Number, or a bool (counted as 0/1). Strings are never numeric,
// even when they look like numbers; a string is a category label.
func IsNumeric(v any) bool {
	switch v.(type) {
	case float64, float32, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64, json.Number, bool:
		return true
	}
	return false
}

// IsMissing reports whether v represents an absent cell: nil or a NaN float.
func IsMissing(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case float64:
		return math.IsNaN(x)
	case float32:
		return math.IsNaN(float64(x))
	}
	return false
}

// NumericValue converts a numeric scalar (see IsNumeric) to float64.
// The second result is false for non-numeric values.
func NumericValue(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int8:
		return float64(x), true
	case int16:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint:
		return float64(x), true
	case uint8:
		return float64(x), true
	case uint16:
		return float64(x), true
	case uint32:
		return float64(x), true
	case uint64:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

// ToFloatOrDefault coerces v to a finite float64. Numeric scalars convert
// directly and strings are parsed. Missing values, unparseable strings,
// other types, and NaN fall back to def.
func ToFloatOrDefault(v any, def float64) float64 {
	if s, ok := v.(string); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil || math.IsNaN(f) {
			return def
		}
		return f
	}
	f, ok := NumericValue(v)
	if !ok || math.IsNaN(f) {
		return def
	}
	return f
}
