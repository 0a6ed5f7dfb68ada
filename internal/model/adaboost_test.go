// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package model

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func skStump(feature int, threshold float64, leftValue, rightValue []float64, samples []float64) map[string]any {
	root := make([]float64, len(leftValue))
	for i := range root {
		root[i] = leftValue[i] + rightValue[i]
	}
	st := map[string]any{
		"children_left":  []int{1, -1, -1},
		"children_right": []int{2, -1, -1},
		"feature":        []int{feature, -2, -2},
		"threshold":      []float64{threshold, -2, -2},
		"value":          [][]float64{root, leftValue, rightValue},
	}
	if samples != nil {
		st["n_node_samples"] = samples
	}
	return st
}

func adaJSON(t *testing.T, classes int, weights []float64, estimators ...map[string]any) []byte {
	t.Helper()
	data, err := json.Marshal(map[string]any{
		"algorithm":         "SAMME",
		"n_classes":         classes,
		"estimator_weights": weights,
		"estimators":        estimators,
	})
	require.NoError(t, err)
	return data
}

func binaryAda(t *testing.T) *AdaBoost {
	t.Helper()
	m, err := DecodeAdaBoost(adaJSON(t, 2, []float64{1.0, 0.5},
		skStump(0, 1.5, []float64{5, 1}, []float64{0, 4}, []float64{10, 6, 4}),
		skStump(1, 0.5, []float64{1, 3}, []float64{4, 2}, []float64{10, 4, 6}),
	))
	require.NoError(t, err)
	return m
}

func TestAdaBoost_Binary(t *testing.T) {
	m := binaryAda(t)
	assert.Equal(t, 2, m.NumClasses())

	// Tree 1 votes 0, tree 2 votes 1: shares are 2/3 and 1/3.
	x := []float64{1, 0}
	class, err := m.Predict(x)
	require.NoError(t, err)
	assert.Equal(t, 0, class)

	proba, err := m.PredictProba(x)
	require.NoError(t, err)
	assert.InDelta(t, sigmoid(1.0/3), proba[0], 1e-12)
	assert.InDelta(t, 1.0, proba[0]+proba[1], 1e-12)
}

func TestAdaBoost_ThresholdIsInclusive(t *testing.T) {
	m := binaryAda(t)

	// x0 == 1.5 goes left (vote 0); x1 > 0.5 goes right (vote 0).
	class, err := m.Predict([]float64{1.5, 0.6})
	require.NoError(t, err)
	assert.Equal(t, 0, class)

	proba, err := m.PredictProba([]float64{1.5, 0.6})
	require.NoError(t, err)
	assert.InDelta(t, sigmoid(1), proba[0], 1e-12)
}

func TestAdaBoost_MultiClass(t *testing.T) {
	m, err := DecodeAdaBoost(adaJSON(t, 3, []float64{1},
		skStump(0, 0.5, []float64{0, 0, 3}, []float64{2, 1, 0}, []float64{6, 3, 3}),
	))
	require.NoError(t, err)

	class, err := m.Predict([]float64{0})
	require.NoError(t, err)
	assert.Equal(t, 2, class)

	proba, err := m.PredictProba([]float64{0})
	require.NoError(t, err)
	want := softmax([]float64{0, 0, 0.5})
	for i := range want {
		assert.InDelta(t, want[i], proba[i], 1e-12)
	}
}

func TestAdaBoost_Explain(t *testing.T) {
	m := binaryAda(t)

	phi, err := m.Explain([]float64{1, 0})
	require.NoError(t, err)
	require.Len(t, phi, 2)
	assert.InDelta(t, 2.0/3-0.4, phi[0], 1e-12)
	assert.InDelta(t, -0.2, phi[1], 1e-12)
}

func TestAdaBoost_ExplainWithoutSamples(t *testing.T) {
	m, err := DecodeAdaBoost(adaJSON(t, 2, []float64{1},
		skStump(0, 1.5, []float64{5, 1}, []float64{0, 4}, nil),
	))
	require.NoError(t, err)

	_, err = m.Explain([]float64{1})
	assert.True(t, errors.Is(err, ErrIncompatibleStructure))
}

func TestAdaBoost_NestedValueLayout(t *testing.T) {
	st := skStump(0, 1.5, []float64{5, 1}, []float64{0, 4}, []float64{10, 6, 4})
	st["value"] = [][][]float64{{{5, 5}}, {{5, 1}}, {{0, 4}}}
	m, err := DecodeAdaBoost(adaJSON(t, 2, []float64{1}, st))
	require.NoError(t, err)

	class, err := m.Predict([]float64{3})
	require.NoError(t, err)
	assert.Equal(t, 1, class)
}

func TestDecodeAdaBoost_Errors(t *testing.T) {
	stump := skStump(0, 1.5, []float64{5, 1}, []float64{0, 4}, nil)
	tests := []struct {
		name string
		data []byte
	}{
		{"not json", []byte("[]")},
		{"single class", adaJSON(t, 1, []float64{1}, stump)},
		{"weight count", adaJSON(t, 2, []float64{1, 1}, stump)},
		{"zero weights", adaJSON(t, 2, []float64{0}, stump)},
		{"no estimators", adaJSON(t, 2, []float64{})},
		{"wrong class width", adaJSON(t, 3, []float64{1}, stump)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeAdaBoost(tt.data)
			assert.Error(t, err)
		})
	}

	data, err := json.Marshal(map[string]any{"algorithm": "SAMME.R", "n_classes": 2})
	require.NoError(t, err)
	_, err = DecodeAdaBoost(data)
	assert.ErrorContains(t, err, "SAMME.R")
}
