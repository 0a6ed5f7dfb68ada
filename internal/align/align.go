// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package align turns raw input rows into the fixed-order vectors a model
// was trained on.
package align

import (
	"fmt"

	"github.com/pdiddy/dcrm-diagnostics/internal/model"
	"github.com/pdiddy/dcrm-diagnostics/pkg/types"
)

// DroppedColumns are identifier and target columns removed before encoding.
var DroppedColumns = []string{
	"breaker_id",
	"bay_id",
	"raw_timeseries_id",
	"operation_count_total",
	"overall_health",
}

// MissingPolicy says what a feature becomes when the input has no usable
// value for it.
type MissingPolicy int

const (
	// MissingAsZero is used on the row path: absent and NaN features are 0.
	MissingAsZero MissingPolicy = iota
	// SentinelDefault is used on the feature-dict path: absent, NaN and
	// unparseable features take a sentinel value.
	SentinelDefault
)

func (p MissingPolicy) String() string {
	switch p {
	case MissingAsZero:
		return "missing-as-zero"
	case SentinelDefault:
		return "sentinel-default"
	default:
		return fmt.Sprintf("MissingPolicy(%d)", int(p))
	}
}

var dropped = func() map[string]bool {
	m := make(map[string]bool, len(DroppedColumns))
	for _, c := range DroppedColumns {
		m[c] = true
	}
	return m
}()

// Align encodes row against schema under MissingAsZero and applies scaler.
// String fields expand to "<name>_<value>" indicators, numeric fields pass
// through, schema features the row does not supply are 0 and row fields
// outside the schema are ignored. The result always has schema.Len()
// entries. A nil scaler leaves the vector unscaled.
func Align(row types.RawRow, schema types.FeatureSchema, scaler model.Scaler) ([]float64, error) {
	x, err := Unscaled(row, schema)
	if err != nil {
		return nil, err
	}
	return scale(x, scaler)
}

// Unscaled performs the encoding steps of Align without scaling.
func Unscaled(row types.RawRow, schema types.FeatureSchema) ([]float64, error) {
	if schema.IsEmpty() {
		return nil, types.PredictionFailed("align", fmt.Errorf("feature schema is empty"))
	}
	x := make([]float64, schema.Len())
	for _, f := range row.Fields() {
		if dropped[f.Name] || types.IsMissing(f.Value) {
			continue
		}
		name, value := f.Name, 0.0
		if s, ok := f.Value.(string); ok {
			name, value = f.Name+"_"+s, 1
		} else if v, ok := types.NumericValue(f.Value); ok {
			value = v
		} else {
			continue
		}
		if i := schema.Index(name); i >= 0 {
			x[i] = value
		}
	}
	return x, nil
}

// AlignFeatures encodes a single feature dictionary under SentinelDefault.
// Each schema feature is coerced to a float; anything that cannot be, or is
// absent, becomes sentinel. No categorical expansion happens on this path.
func AlignFeatures(features types.RawRow, schema types.FeatureSchema, scaler model.Scaler, sentinel float64) ([]float64, error) {
	if schema.IsEmpty() {
		return nil, types.PredictionFailed("align", fmt.Errorf("feature schema is empty"))
	}
	x := make([]float64, schema.Len())
	for i, name := range schema.Names() {
		v, ok := features.Get(name)
		if !ok {
			x[i] = sentinel
			continue
		}
		x[i] = types.ToFloatOrDefault(v, sentinel)
	}
	return scale(x, scaler)
}

func scale(x []float64, scaler model.Scaler) ([]float64, error) {
	if scaler == nil {
		return x, nil
	}
	if d := scaler.Dim(); d >= 0 && d != len(x) {
		return nil, types.PredictionFailed("align",
			fmt.Errorf("scaler expects %d features, vector has %d", d, len(x)))
	}
	out, err := scaler.Transform(x)
	if err != nil {
		return nil, types.PredictionFailed("align", err)
	}
	return out, nil
}
