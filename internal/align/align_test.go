// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package align

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/dcrm-diagnostics/internal/model"
	"github.com/pdiddy/dcrm-diagnostics/internal/testfixture"
	"github.com/pdiddy/dcrm-diagnostics/pkg/types"
)

func schema(t *testing.T, names ...string) types.FeatureSchema {
	t.Helper()
	s, err := types.NewFeatureSchema(names)
	require.NoError(t, err)
	return s
}

var approx = cmpopts.EquateApprox(0, 1e-12)

func TestUnscaled(t *testing.T) {
	s := schema(t, testfixture.AdvancedFeatures...)

	tests := []struct {
		name string
		row  types.RawRow
		want []float64
	}{
		{
			name: "mixed row",
			row: types.NewRawRow(
				types.Field{Name: "breaker_id", Value: "B-17"},
				types.Field{Name: "main_contact_resistance", Value: 60},
				types.Field{Name: "travel_mm", Value: json.Number("50")},
				types.Field{Name: "coil_current_a", Value: nil},
				types.Field{Name: "breaker_type", Value: "SF6"},
				types.Field{Name: "humidity", Value: 3.5},
				types.Field{Name: "overall_health", Value: "Good"},
			),
			want: []float64{60, 50, 0, 0, 1, 0},
		},
		{
			name: "unknown category and NaN",
			row: types.NewRawRow(
				types.Field{Name: "main_contact_resistance", Value: math.NaN()},
				types.Field{Name: "breaker_type", Value: "Oil"},
				types.Field{Name: "operating_time_ms", Value: float32(31)},
			),
			want: []float64{0, 0, 0, 31, 0, 0},
		},
		{
			name: "numeric-looking string is a category",
			row: types.NewRawRow(
				types.Field{Name: "travel_mm", Value: "50"},
				types.Field{Name: "breaker_type", Value: "Vacuum"},
			),
			want: []float64{0, 0, 0, 0, 0, 1},
		},
		{
			name: "empty row",
			row:  types.NewRawRow(),
			want: []float64{0, 0, 0, 0, 0, 0},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Unscaled(tt.row, s)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got, approx); diff != "" {
				t.Errorf("Unscaled mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestUnscaled_BoolAndDroppedSchemaFeature(t *testing.T) {
	s := schema(t, "energised", "bay_id")
	row := types.NewRawRow(
		types.Field{Name: "energised", Value: true},
		types.Field{Name: "bay_id", Value: 4},
	)
	got, err := Unscaled(row, s)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0}, got)
}

func TestAlign_Scales(t *testing.T) {
	s := schema(t, testfixture.AdvancedFeatures...)
	scaler := &model.StandardScaler{Mean: testfixture.AdvancedMean, Scale: testfixture.AdvancedScale}
	row := types.NewRawRow(
		types.Field{Name: "main_contact_resistance", Value: 60.0},
		types.Field{Name: "travel_mm", Value: 50},
		types.Field{Name: "breaker_type", Value: "SF6"},
	)

	got, err := Align(row, s, scaler)
	require.NoError(t, err)
	want := []float64{-0.8, 0, -2.5, -3, 1, 0}
	if diff := cmp.Diff(want, got, approx); diff != "" {
		t.Errorf("Align mismatch (-want +got):\n%s", diff)
	}

	again, err := Align(row, s, scaler)
	require.NoError(t, err)
	assert.Equal(t, got, again, "alignment is deterministic")
}

func TestAlign_ScalerMismatch(t *testing.T) {
	s := schema(t, "a", "b", "c")
	scaler := &model.StandardScaler{Mean: []float64{0, 0}, Scale: []float64{1, 1}}

	_, err := Align(types.NewRawRow(), s, scaler)
	var pf *types.PredictionFailedError
	require.ErrorAs(t, err, &pf)
	assert.Equal(t, "align", pf.Stage)
	assert.True(t, errors.Is(err, types.ErrPredictionFailed))
}

func TestAlign_EmptySchema(t *testing.T) {
	_, err := Align(types.NewRawRow(), types.FeatureSchema{}, nil)
	assert.True(t, errors.Is(err, types.ErrPredictionFailed))
	_, err = AlignFeatures(types.NewRawRow(), types.FeatureSchema{}, nil, 0)
	assert.True(t, errors.Is(err, types.ErrPredictionFailed))
}

func TestAlignFeatures(t *testing.T) {
	s := schema(t, testfixture.DCRMFeatures...)
	features := types.NewRawRow(
		types.Field{Name: "contact_resistance_uohm", Value: " 120.5 "},
		types.Field{Name: "opening_time_ms", Value: "abc"},
		types.Field{Name: "closing_time_ms", Value: math.NaN()},
		types.Field{Name: "breaker_type", Value: "SF6"},
	)

	tests := []struct {
		name     string
		sentinel float64
		want     []float64
	}{
		{"default sentinel", types.DefaultSentinel, []float64{120.5, 50, 50, 50}},
		{"zero sentinel", 0, []float64{120.5, 0, 0, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := AlignFeatures(features, s, model.IdentityScaler{}, tt.sentinel)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMissingPolicy_String(t *testing.T) {
	assert.Equal(t, "missing-as-zero", MissingAsZero.String())
	assert.Equal(t, "sentinel-default", SentinelDefault.String())
	assert.Equal(t, "MissingPolicy(9)", MissingPolicy(9).String())
}
