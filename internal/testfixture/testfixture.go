// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package testfixture writes small, internally consistent artifact
// directories for tests. The models are hand-built stumps whose outputs can
// be worked out on paper.
package testfixture

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"testing"
)

// Class labels shared by the dcrm and advanced fixtures.
const (
	LabelHealthy     = "Healthy"
	LabelContactWear = "Contact Wear"
	LabelCoilFault   = "Coil Fault"
)

// AdvancedFeatures is the advanced schema. breaker_type is one-hot encoded.
var AdvancedFeatures = []string{
	"main_contact_resistance",
	"travel_mm",
	"coil_current_a",
	"operating_time_ms",
	"breaker_type_SF6",
	"breaker_type_Vacuum",
}

// AdvancedMean and AdvancedScale are the standard scaler parameters. The
// classifiers split at 0 in scaled space, so resistance < 100 and coil
// current < 5 are the healthy side.
var (
	AdvancedMean  = []float64{100, 50, 5, 30, 0, 0}
	AdvancedScale = []float64{50, 10, 2, 10, 1, 1}
)

// AdvancedThreshold is the anomaly threshold. The autoencoder outputs
// zeros, so the reconstruction error is the mean squared scaled feature.
const AdvancedThreshold = 1.0

// DCRMFeatures is the feature-dict schema.
var DCRMFeatures = []string{
	"contact_resistance_uohm",
	"opening_time_ms",
	"closing_time_ms",
	"coil_current_a",
}

// AttributionFeatures is the per-window schema.
var AttributionFeatures = []string{
	"window_mean_resistance",
	"window_std_resistance",
	"window_max_resistance",
	"window_mean_travel",
	"window_std_travel",
	"window_max_travel",
	"window_mean_current",
	"window_std_current",
	"Rp_avg",
	"Ra_ta",
	"T_overlap",
}

// WriteAdvanced writes a complete advanced layout into dir.
func WriteAdvanced(tb testing.TB, dir string) {
	tb.Helper()
	n := len(AdvancedFeatures)
	writeJSON(tb, dir, "feature_names.json", AdvancedFeatures)
	writeJSON(tb, dir, "scaler.json", map[string]any{"kind": "standard", "mean": AdvancedMean, "scale": AdvancedScale})
	writeJSON(tb, dir, "label_encoder.json", map[string]any{"classes": []string{LabelHealthy, LabelContactWear, LabelCoilFault}})
	writeJSON(tb, dir, "xgboost_model.json", XGBoost("multi:softprob", 3, n, []int{0, 1, 2},
		Stump(0, 0, 2, -1),
		Stump(0, 0, -1, 2),
		Stump(2, 0, -1, 3),
	))
	writeJSON(tb, dir, "adaboost_model.json", AdaBoost(3, []float64{1, 0.8},
		AdaStump(0, 0, 3, 0, 1),
		AdaStump(2, 0, 3, 0, 2),
	))

	kernel := make([][]float64, n)
	for i := range kernel {
		kernel[i] = make([]float64, n)
	}
	writeJSON(tb, dir, "autoencoder_model.json", map[string]any{"layers": []any{
		map[string]any{"type": "dense", "activation": "linear", "kernel": kernel, "bias": make([]float64, n)},
	}})
	writeJSON(tb, dir, "ae_threshold.json", AdvancedThreshold)
}

// WriteDCRM writes a complete dcrm layout into dir. With every feature at
// the default sentinel (50) the verdict is Healthy.
func WriteDCRM(tb testing.TB, dir string) {
	tb.Helper()
	writeJSON(tb, dir, "feature_names.json", DCRMFeatures)
	writeJSON(tb, dir, "label_map.json", map[string]string{"0": LabelHealthy, "1": LabelContactWear, "2": LabelCoilFault})
	writeJSON(tb, dir, "xgb_dcrm_model.json", XGBoost("multi:softprob", 3, len(DCRMFeatures), []int{0, 1, 2},
		Stump(0, 100, 2, -1),
		Stump(0, 100, -1, 2),
		Stump(3, 60, -1, 3),
	))
	writeJSON(tb, dir, "adaboost_dcrm_model.json", AdaBoost(3, []float64{1, 0.5},
		AdaStump(0, 100, 3, 0, 1),
		AdaStump(3, 60, 3, 0, 2),
	))
}

// WriteAttribution writes an attribution layout into dir. The XGBoost model
// splits on window_mean_resistance at 100; the AdaBoost model splits on
// window_mean_travel at 5.
func WriteAttribution(tb testing.TB, dir string) {
	tb.Helper()
	n := len(AttributionFeatures)
	writeJSON(tb, dir, "shap_feature_names.json", AttributionFeatures)
	writeJSON(tb, dir, "xgb_shap_model.json", XGBoost("binary:logistic", 0, n, []int{0}, Stump(0, 100, -1, 1)))
	writeJSON(tb, dir, "ada_shap_model.json", AdaBoost(2, []float64{1}, AdaStump(3, 5, 2, 0, 1)))
}

// Stump is an XGBoost tree with one split. The left leaf covers 6 and the
// right leaf 4.
func Stump(feature int, threshold, left, right float64) map[string]any {
	return map[string]any{
		"left_children":    []int{1, -1, -1},
		"right_children":   []int{2, -1, -1},
		"parents":          []int{2147483647, 0, 0},
		"split_indices":    []int{feature, 0, 0},
		"split_conditions": []float64{threshold, left, right},
		"default_left":     []int{0, 0, 0},
		"sum_hessian":      []float64{10, 6, 4},
		"base_weights":     []float64{0, left, right},
	}
}

// XGBoost wraps trees in the native JSON model document.
func XGBoost(objective string, numClass, numFeature int, treeInfo []int, trees ...map[string]any) map[string]any {
	return map[string]any{
		"learner": map[string]any{
			"learner_model_param": map[string]any{
				"base_score":  "5E-1",
				"num_class":   strconv.Itoa(numClass),
				"num_feature": strconv.Itoa(numFeature),
			},
			"objective": map[string]any{"name": objective},
			"gradient_booster": map[string]any{
				"name": "gbtree",
				"model": map[string]any{
					"tree_info": treeInfo,
					"trees":     trees,
				},
			},
		},
	}
}

// AdaStump is a scikit-learn tree with one split. With k classes, the left
// leaf votes leftClass and the right leaf votes rightClass; the left leaf
// holds 6 samples and the right 4.
func AdaStump(feature int, threshold float64, k, leftClass, rightClass int) map[string]any {
	left := make([]float64, k)
	right := make([]float64, k)
	root := make([]float64, k)
	left[leftClass] = 6
	right[rightClass] = 4
	for i := range root {
		root[i] = left[i] + right[i]
	}
	return map[string]any{
		"children_left":  []int{1, -1, -1},
		"children_right": []int{2, -1, -1},
		"feature":        []int{feature, -2, -2},
		"threshold":      []float64{threshold, -2, -2},
		"value":          [][]float64{root, left, right},
		"n_node_samples": []int{10, 6, 4},
	}
}

// AdaBoost wraps estimators in the SAMME export document.
func AdaBoost(classes int, weights []float64, estimators ...map[string]any) map[string]any {
	return map[string]any{
		"algorithm":         "SAMME",
		"n_classes":         classes,
		"estimator_weights": weights,
		"estimators":        estimators,
	}
}

// WriteJSON marshals v into dir/name, creating dir as needed.
func WriteJSON(tb testing.TB, dir, name string, v any) {
	tb.Helper()
	writeJSON(tb, dir, name, v)
}

func writeJSON(tb testing.TB, dir, name string, v any) {
	tb.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		tb.Fatalf("creating %s: %v", dir, err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		tb.Fatalf("encoding %s: %v", name, err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		tb.Fatalf("writing %s: %v", name, err)
	}
}
