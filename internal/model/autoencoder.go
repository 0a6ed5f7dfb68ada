// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package model

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

type activation func(float64) float64

var activations = map[string]activation{
	"":        func(v float64) float64 { return v },
	"linear":  func(v float64) float64 { return v },
	"relu":    func(v float64) float64 { return math.Max(0, v) },
	"sigmoid": sigmoid,
	"tanh":    math.Tanh,
	"elu": func(v float64) float64 {
		if v > 0 {
			return v
		}
		return math.Exp(v) - 1
	},
}

type denseLayer struct {
	kernel [][]float64 // [in][out]
	bias   []float64
	act    activation
}

func (l denseLayer) in() int  { return len(l.kernel) }
func (l denseLayer) out() int { return len(l.bias) }

func (l denseLayer) forward(x []float64) []float64 {
	y := make([]float64, l.out())
	copy(y, l.bias)
	for i, xi := range x {
		row := l.kernel[i]
		for j := range y {
			y[j] += xi * row[j]
		}
	}
	for j := range y {
		y[j] = l.act(y[j])
	}
	return y
}

// Autoencoder is a feed-forward network of dense layers whose output width
// equals its input width.
type Autoencoder struct {
	layers []denseLayer
}

type aeDocument struct {
	Layers []struct {
		Type       string      `json:"type"`
		Activation string      `json:"activation"`
		Kernel     [][]float64 `json:"kernel"`
		Bias       []float64   `json:"bias"`
	} `json:"layers"`
}

// DecodeAutoencoder parses a layer list exported from a Keras Sequential
// model. Dense layers carry kernel [in][out] and bias [out]; dropout and
// input layers are identities at inference and are skipped.
func DecodeAutoencoder(data []byte) (*Autoencoder, error) {
	var doc aeDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding autoencoder: %w", err)
	}
	ae := &Autoencoder{}
	for i, l := range doc.Layers {
		switch strings.ToLower(l.Type) {
		case "dropout", "input", "inputlayer":
			continue
		case "", "dense":
		default:
			return nil, fmt.Errorf("autoencoder layer %d: unsupported type %q", i, l.Type)
		}
		act, ok := activations[strings.ToLower(l.Activation)]
		if !ok {
			return nil, fmt.Errorf("autoencoder layer %d: unsupported activation %q", i, l.Activation)
		}
		layer := denseLayer{kernel: l.Kernel, bias: l.Bias, act: act}
		if layer.in() == 0 || layer.out() == 0 {
			return nil, fmt.Errorf("autoencoder layer %d is empty", i)
		}
		for r, row := range l.Kernel {
			if len(row) != layer.out() {
				return nil, fmt.Errorf("autoencoder layer %d: kernel row %d has %d columns, bias has %d", i, r, len(row), layer.out())
			}
		}
		if n := len(ae.layers); n > 0 && ae.layers[n-1].out() != layer.in() {
			return nil, fmt.Errorf("autoencoder layer %d takes %d inputs, previous layer gives %d", i, layer.in(), ae.layers[n-1].out())
		}
		ae.layers = append(ae.layers, layer)
	}
	if len(ae.layers) == 0 {
		return nil, fmt.Errorf("autoencoder has no dense layers")
	}
	if in, out := ae.layers[0].in(), ae.layers[len(ae.layers)-1].out(); in != out {
		return nil, fmt.Errorf("autoencoder maps %d inputs to %d outputs", in, out)
	}
	return ae, nil
}

func (a *Autoencoder) InputDim() int { return a.layers[0].in() }

func (a *Autoencoder) Reconstruct(x []float64) ([]float64, error) {
	if len(x) != a.InputDim() {
		return nil, &ShapeError{Model: "autoencoder", Want: a.InputDim(), Got: len(x)}
	}
	y := x
	for _, l := range a.layers {
		y = l.forward(y)
	}
	if err := checkFinite("autoencoder", y); err != nil {
		return nil, err
	}
	return y, nil
}

// DecodeThreshold parses an anomaly threshold written either as a bare
// number or as {"threshold": n}.
func DecodeThreshold(data []byte) (float64, error) {
	var v float64
	if err := json.Unmarshal(data, &v); err == nil {
		return checkThreshold(v)
	}
	var doc struct {
		Threshold *float64 `json:"threshold"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return 0, fmt.Errorf("decoding threshold: %w", err)
	}
	if doc.Threshold == nil {
		return 0, fmt.Errorf("threshold document has no threshold field")
	}
	return checkThreshold(*doc.Threshold)
}

func checkThreshold(v float64) (float64, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0, fmt.Errorf("invalid anomaly threshold %v", v)
	}
	return v, nil
}
