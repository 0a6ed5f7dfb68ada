// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package fusion runs the primary and secondary classifiers on one aligned
// vector and reconciles them into a single verdict.
package fusion

import (
	"fmt"

	"github.com/pdiddy/dcrm-diagnostics/internal/model"
	"github.com/pdiddy/dcrm-diagnostics/pkg/types"
)

// Engine pairs an authoritative primary classifier with an advisory
// secondary one. Status is derived from the primary label only.
type Engine struct {
	Primary   model.ProbabilisticClassifier
	Secondary model.LabelPredictor
	Labels    model.LabelMap
}

// Classify returns the fused verdict for x. A failure in either classifier
// fails the whole call with *types.PredictionFailedError.
func (e Engine) Classify(x []float64) (types.FusionVerdict, error) {
	if e.Primary == nil {
		return types.FusionVerdict{}, types.PredictionFailed("primary", fmt.Errorf("no primary classifier"))
	}
	proba, err := e.Primary.PredictProba(x)
	if err != nil {
		return types.FusionVerdict{}, types.PredictionFailed("primary", err)
	}
	primary := e.verdict(proba)

	var secondary types.ClassVerdict
	switch s := e.Secondary.(type) {
	case nil:
	case model.ProbabilisticClassifier:
		p, err := s.PredictProba(x)
		if err != nil {
			return types.FusionVerdict{}, types.PredictionFailed("secondary", err)
		}
		secondary = e.verdict(p)
	default:
		idx, err := s.Predict(x)
		if err != nil {
			return types.FusionVerdict{}, types.PredictionFailed("secondary", err)
		}
		secondary = types.ClassVerdict{Label: e.Labels.Resolve(idx)}
	}

	return types.FusionVerdict{
		Primary:   primary,
		Secondary: secondary,
		Status:    StatusFor(primary.Label),
	}, nil
}

// verdict picks the argmax class and reports probabilities as percentages.
// Two classes resolving to the same label have their shares summed.
func (e Engine) verdict(proba []float64) types.ClassVerdict {
	best := 0
	for i := range proba {
		if proba[i] > proba[best] {
			best = i
		}
	}
	probs := make(map[string]float64, len(proba))
	for i, p := range proba {
		probs[e.Labels.Resolve(i)] += p * 100
	}
	v := types.ClassVerdict{Label: e.Labels.Resolve(best), Probabilities: probs}
	if len(proba) > 0 {
		v.Confidence = proba[best] * 100
	}
	return v
}

// StatusFor maps a primary label to a health status.
func StatusFor(label string) string {
	if label == types.HealthyLabel {
		return types.StatusHealthy
	}
	return types.StatusFaulty
}
