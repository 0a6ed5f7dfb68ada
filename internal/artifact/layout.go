// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package artifact

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pdiddy/dcrm-diagnostics/pkg/types"
)

// Layout names the files that make up one artifact set. An empty file name
// means the set does not use that artifact.
type Layout struct {
	Name          string
	Features      string
	Scaler        string
	Labels        string
	Primary       string
	Secondary     string
	Reconstructor string
	Threshold     string

	// ScalerOptional lets the set load without its scaler file, in which
	// case features pass through unscaled.
	ScalerOptional bool
}

// Layout names.
const (
	LayoutDCRM        = "dcrm"
	LayoutAdvanced    = "advanced"
	LayoutAttribution = "attribution"
)

// DCRMLayout is the classifier pair behind the single feature-dict path. It
// has no scaler.
func DCRMLayout() Layout {
	return Layout{
		Name:      LayoutDCRM,
		Features:  "feature_names.json",
		Labels:    "label_map.json",
		Primary:   "xgb_dcrm_model.json",
		Secondary: "adaboost_dcrm_model.json",
	}
}

// AdvancedLayout is the full row pipeline with the anomaly detector.
func AdvancedLayout() Layout {
	return Layout{
		Name:          LayoutAdvanced,
		Features:      "feature_names.json",
		Scaler:        "scaler.json",
		Labels:        "label_encoder.json",
		Primary:       "xgboost_model.json",
		Secondary:     "adaboost_model.json",
		Reconstructor: "autoencoder_model.json",
		Threshold:     "ae_threshold.json",
	}
}

// AttributionLayout holds the models trained on per-window features.
func AttributionLayout() Layout {
	return Layout{
		Name:           LayoutAttribution,
		Features:       "shap_feature_names.json",
		Scaler:         "shap_scaler.json",
		ScalerOptional: true,
		Primary:        "xgb_shap_model.json",
		Secondary:      "ada_shap_model.json",
	}
}

// LayoutByName returns the built-in layout called name.
func LayoutByName(name string) (Layout, error) {
	switch strings.ToLower(name) {
	case LayoutDCRM:
		return DCRMLayout(), nil
	case LayoutAdvanced:
		return AdvancedLayout(), nil
	case LayoutAttribution:
		return AttributionLayout(), nil
	default:
		return Layout{}, fmt.Errorf("unknown artifact layout %q (want dcrm, advanced or attribution)", name)
	}
}

// decodeSchema accepts a bare name list or an object with a "features" or
// "feature_names" list.
func decodeSchema(data []byte) (types.FeatureSchema, error) {
	var names []string
	if err := json.Unmarshal(data, &names); err == nil {
		return types.NewFeatureSchema(names)
	}
	var doc struct {
		Features     []string `json:"features"`
		FeatureNames []string `json:"feature_names"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return types.FeatureSchema{}, fmt.Errorf("decoding feature names: %w", err)
	}
	if len(doc.Features) > 0 {
		return types.NewFeatureSchema(doc.Features)
	}
	return types.NewFeatureSchema(doc.FeatureNames)
}
