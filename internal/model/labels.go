// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package model

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// LabelMap resolves class indices to class names.
type LabelMap struct {
	labels map[int]string
}

// NewLabelMap builds a map from class names in index order. Blank and
// "nan" entries are left unmapped.
func NewLabelMap(classes []string) LabelMap {
	m := LabelMap{labels: make(map[int]string, len(classes))}
	for i, c := range classes {
		if label, ok := normalizeLabel(c); ok {
			m.labels[i] = label
		}
	}
	return m
}

// Resolve returns the label for idx, or "class_<idx>" when idx is unmapped.
func (m LabelMap) Resolve(idx int) string {
	if label, ok := m.labels[idx]; ok {
		return label
	}
	return "class_" + strconv.Itoa(idx)
}

// Len returns the number of mapped indices.
func (m LabelMap) Len() int { return len(m.labels) }

// Labels returns the mapped labels ordered by index.
func (m LabelMap) Labels() []string {
	idx := make([]int, 0, len(m.labels))
	for i := range m.labels {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	out := make([]string, len(idx))
	for i, k := range idx {
		out[i] = m.labels[k]
	}
	return out
}

// DecodeLabelMap parses a label artifact in any of three shapes:
//
//	{"0": "Healthy", "1": "Worn contacts"}   index -> name object
//	{"classes": ["Healthy", "Worn contacts"]} label encoder export
//	["Healthy", "Worn contacts"]              bare class list
func DecodeLabelMap(data []byte) (LabelMap, error) {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var classes []string
		if err := json.Unmarshal(data, &classes); err != nil {
			return LabelMap{}, fmt.Errorf("decoding class list: %w", err)
		}
		return checkLabels(NewLabelMap(classes))
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return LabelMap{}, fmt.Errorf("decoding label map: %w", err)
	}

	if classesRaw, ok := raw["classes"]; ok {
		var classes []any
		if err := json.Unmarshal(classesRaw, &classes); err != nil {
			return LabelMap{}, fmt.Errorf("decoding label encoder classes: %w", err)
		}
		names := make([]string, len(classes))
		for i, c := range classes {
			names[i] = labelText(c)
		}
		return checkLabels(NewLabelMap(names))
	}

	m := LabelMap{labels: make(map[int]string, len(raw))}
	for k, v := range raw {
		idx, err := strconv.Atoi(strings.TrimSpace(k))
		if err != nil {
			return LabelMap{}, fmt.Errorf("label map key %q is not a class index", k)
		}
		var value any
		if err := json.Unmarshal(v, &value); err != nil {
			return LabelMap{}, fmt.Errorf("decoding label %q: %w", k, err)
		}
		if label, ok := normalizeLabel(labelText(value)); ok {
			m.labels[idx] = label
		}
	}
	return checkLabels(m)
}

func checkLabels(m LabelMap) (LabelMap, error) {
	if m.Len() == 0 {
		return LabelMap{}, fmt.Errorf("label map has no usable labels")
	}
	return m, nil
}

func labelText(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}

func normalizeLabel(s string) (string, bool) {
	text := strings.TrimSpace(s)
	if text == "" || strings.EqualFold(text, "nan") {
		return "", false
	}
	return text, true
}
