// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package model

import (
	"encoding/json"
	"fmt"
)

// Scaler applies the feature transform fitted at training time.
type Scaler interface {
	// Dim returns the expected vector length, or -1 for any length.
	Dim() int
	// Transform returns a new, scaled copy of x.
	Transform(x []float64) ([]float64, error)
}

// StandardScaler computes (x - Mean) / Scale. A zero Scale entry is treated
// as 1, matching constant features at training time.
type StandardScaler struct {
	Mean  []float64
	Scale []float64
}

func (s *StandardScaler) Dim() int { return len(s.Mean) }

func (s *StandardScaler) Transform(x []float64) ([]float64, error) {
	if len(x) != len(s.Mean) {
		return nil, &ShapeError{Model: "standard scaler", Want: len(s.Mean), Got: len(x)}
	}
	out := make([]float64, len(x))
	for i, v := range x {
		scale := s.Scale[i]
		if scale == 0 {
			scale = 1
		}
		out[i] = (v - s.Mean[i]) / scale
	}
	return out, nil
}

// MinMaxScaler computes x*Scale + Min.
type MinMaxScaler struct {
	Min   []float64
	Scale []float64
}

func (s *MinMaxScaler) Dim() int { return len(s.Min) }

func (s *MinMaxScaler) Transform(x []float64) ([]float64, error) {
	if len(x) != len(s.Min) {
		return nil, &ShapeError{Model: "minmax scaler", Want: len(s.Min), Got: len(x)}
	}
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = v*s.Scale[i] + s.Min[i]
	}
	return out, nil
}

// IdentityScaler passes vectors through unchanged. It stands in for artifact
// sets that were trained on raw features.
type IdentityScaler struct{}

func (IdentityScaler) Dim() int { return -1 }

func (IdentityScaler) Transform(x []float64) ([]float64, error) {
	out := make([]float64, len(x))
	copy(out, x)
	return out, nil
}

type scalerDocument struct {
	Kind  string    `json:"kind"`
	Mean  []float64 `json:"mean"`
	Min   []float64 `json:"min"`
	Scale []float64 `json:"scale"`
}

// DecodeScaler parses a scaler artifact. Kind "standard" (the default when
// omitted) needs mean and scale; kind "minmax" needs min and scale.
func DecodeScaler(data []byte) (Scaler, error) {
	var doc scalerDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding scaler: %w", err)
	}
	switch doc.Kind {
	case "", "standard":
		if len(doc.Mean) == 0 || len(doc.Mean) != len(doc.Scale) {
			return nil, fmt.Errorf("standard scaler: mean has %d entries, scale has %d", len(doc.Mean), len(doc.Scale))
		}
		return &StandardScaler{Mean: doc.Mean, Scale: doc.Scale}, nil
	case "minmax":
		if len(doc.Min) == 0 || len(doc.Min) != len(doc.Scale) {
			return nil, fmt.Errorf("minmax scaler: min has %d entries, scale has %d", len(doc.Min), len(doc.Scale))
		}
		return &MinMaxScaler{Min: doc.Min, Scale: doc.Scale}, nil
	default:
		return nil, fmt.Errorf("unsupported scaler kind %q", doc.Kind)
	}
}
