// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FeatureSchema is the ordered, immutable list of feature names a model was
// trained on. Position i of every AlignedVector corresponds to At(i).
type FeatureSchema struct {
	names []string
	index map[string]int
}

// NewFeatureSchema validates names (non-empty, unique, no blank names) and
// returns a schema holding its own copy.
func NewFeatureSchema(names []string) (FeatureSchema, error) {
	if len(names) == 0 {
		return FeatureSchema{}, fmt.Errorf("feature schema is empty")
	}
	s := FeatureSchema{
		names: make([]string, len(names)),
		index: make(map[string]int, len(names)),
	}
	for i, n := range names {
		if strings.TrimSpace(n) == "" {
			return FeatureSchema{}, fmt.Errorf("feature %d has a blank name", i)
		}
		if j, dup := s.index[n]; dup {
			return FeatureSchema{}, fmt.Errorf("feature %q appears at positions %d and %d", n, j, i)
		}
		s.names[i] = n
		s.index[n] = i
	}
	return s, nil
}

// Len returns the number of features.
func (s FeatureSchema) Len() int { return len(s.names) }

// IsEmpty reports whether the schema holds no features.
func (s FeatureSchema) IsEmpty() bool { return len(s.names) == 0 }

// At returns the feature name at position i.
func (s FeatureSchema) At(i int) string { return s.names[i] }

// Index returns the position of name, or -1.
func (s FeatureSchema) Index(name string) int {
	if i, ok := s.index[name]; ok {
		return i
	}
	return -1
}

// Names returns a copy of the ordered feature names.
func (s FeatureSchema) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// MarshalJSON encodes the schema as a JSON array of names.
func (s FeatureSchema) MarshalJSON() ([]byte, error) {
	if s.names == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s.names)
}

// UnmarshalJSON decodes and validates a JSON array of names.
func (s *FeatureSchema) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return fmt.Errorf("decoding feature names: %w", err)
	}
	parsed, err := NewFeatureSchema(names)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
