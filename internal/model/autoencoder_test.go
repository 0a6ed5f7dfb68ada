// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeAutoencoder_Forward(t *testing.T) {
	data := []byte(`{"layers": [
		{"type": "dense", "activation": "relu", "kernel": [[1, -1], [0, 1]], "bias": [0, 0]},
		{"type": "dropout"},
		{"type": "dense", "activation": "linear", "kernel": [[1, 0], [0, 1]], "bias": [0.5, 0]}
	]}`)
	ae, err := DecodeAutoencoder(data)
	require.NoError(t, err)
	assert.Equal(t, 2, ae.InputDim())

	// h = relu([x0, -x0 + x1]); y = h + [0.5, 0]
	y, err := ae.Reconstruct([]float64{2, 1})
	require.NoError(t, err)
	assert.Equal(t, []float64{2.5, 0}, y)
}

func TestAutoencoder_Activations(t *testing.T) {
	tests := []struct {
		activation string
		in, want   float64
	}{
		{"linear", -2, -2},
		{"relu", -2, 0},
		{"sigmoid", 0, 0.5},
		{"tanh", 0, 0},
		{"elu", 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.activation, func(t *testing.T) {
			data := []byte(`{"layers": [{"activation": "` + tt.activation + `", "kernel": [[1]], "bias": [0]}]}`)
			ae, err := DecodeAutoencoder(data)
			require.NoError(t, err)
			y, err := ae.Reconstruct([]float64{tt.in})
			require.NoError(t, err)
			assert.InDelta(t, tt.want, y[0], 1e-12)
		})
	}
}

func TestDecodeAutoencoder_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"no layers", `{"layers": []}`},
		{"unknown activation", `{"layers": [{"activation": "swish", "kernel": [[1]], "bias": [0]}]}`},
		{"unknown layer", `{"layers": [{"type": "conv1d"}]}`},
		{"ragged kernel", `{"layers": [{"kernel": [[1, 2], [1]], "bias": [0, 0]}]}`},
		{"chain mismatch", `{"layers": [{"kernel": [[1, 2]], "bias": [0, 0]}, {"kernel": [[1]], "bias": [0]}]}`},
		{"not square", `{"layers": [{"kernel": [[1, 2]], "bias": [0, 0]}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeAutoencoder([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestAutoencoder_ShapeMismatch(t *testing.T) {
	ae, err := DecodeAutoencoder([]byte(`{"layers": [{"kernel": [[1]], "bias": [0]}]}`))
	require.NoError(t, err)
	_, err = ae.Reconstruct([]float64{1, 2})
	var shape *ShapeError
	assert.ErrorAs(t, err, &shape)
}

func TestDecodeThreshold(t *testing.T) {
	tests := []struct {
		data    string
		want    float64
		wantErr bool
	}{
		{data: `0.25`, want: 0.25},
		{data: `{"threshold": 1.5}`, want: 1.5},
		{data: `{"value": 1}`, wantErr: true},
		{data: `-1`, wantErr: true},
		{data: `"x"`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.data, func(t *testing.T) {
			got, err := DecodeThreshold([]byte(tt.data))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
