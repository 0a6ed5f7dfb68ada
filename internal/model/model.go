// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package model evaluates trained artifacts: feature scalers, label maps,
// gradient-boosted and AdaBoost tree ensembles, and dense autoencoders. It
// also computes exact path-dependent TreeSHAP attributions for tree models.
//
// Models are immutable after decoding and safe for concurrent use.
package model

import (
	"errors"
	"fmt"
	"math"
)

// ErrIncompatibleStructure is returned by Explain when a model's internal
// structure cannot support tree attribution (for example, missing covers).
var ErrIncompatibleStructure = errors.New("model structure incompatible with tree attribution")

// LabelPredictor predicts a class index for one aligned vector.
type LabelPredictor interface {
	Predict(x []float64) (int, error)
}

// ProbabilisticClassifier also exposes the full class distribution.
type ProbabilisticClassifier interface {
	LabelPredictor

	// NumClasses returns the length of the PredictProba output.
	NumClasses() int

	// PredictProba returns one probability per class, summing to 1.
	PredictProba(x []float64) ([]float64, error)
}

// Reconstructor maps a vector back onto its own space.
type Reconstructor interface {
	InputDim() int
	Reconstruct(x []float64) ([]float64, error)
}

// TreeExplainer attributes a model's output for its predicted class to
// each input feature. The returned slice has len(x) entries.
type TreeExplainer interface {
	Explain(x []float64) ([]float64, error)
}

// ShapeError reports an input vector of the wrong length.
type ShapeError struct {
	Model string
	Want  int
	Got   int
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("%s: input has %d features, need at least %d", e.Model, e.Got, e.Want)
}

func argmax(v []float64) int {
	best := 0
	for i := 1; i < len(v); i++ {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}

// softmax returns exp(v)/Σexp(v), shifted by the max for stability.
func softmax(v []float64) []float64 {
	out := make([]float64, len(v))
	if len(v) == 0 {
		return out
	}
	m := v[argmax(v)]
	var sum float64
	for i, x := range v {
		out[i] = math.Exp(x - m)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

func checkFinite(name string, v []float64) error {
	for i, f := range v {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("%s: non-finite output at position %d", name, i)
		}
	}
	return nil
}
