// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// XGBoost is a gradient-boosted tree ensemble decoded from XGBoost's native
// JSON model format (Booster.save_model("model.json")).
type XGBoost struct {
	trees      []*tree
	leafValue  [][]float64
	groups     []int
	numGroups  int
	baseMargin []float64
	objective  string
	numFeature int
	maxFeature int
	coverOK    bool
}

type xgbDocument struct {
	Learner struct {
		FeatureNames      []string `json:"feature_names"`
		LearnerModelParam struct {
			BaseScore  string `json:"base_score"`
			NumClass   string `json:"num_class"`
			NumFeature string `json:"num_feature"`
		} `json:"learner_model_param"`
		Objective struct {
			Name string `json:"name"`
		} `json:"objective"`
		GradientBooster struct {
			Name  string `json:"name"`
			Model struct {
				Trees    []xgbTree `json:"trees"`
				TreeInfo []int     `json:"tree_info"`
			} `json:"model"`
		} `json:"gradient_booster"`
	} `json:"learner"`
}

type xgbTree struct {
	LeftChildren    []int     `json:"left_children"`
	RightChildren   []int     `json:"right_children"`
	SplitIndices    []int     `json:"split_indices"`
	SplitConditions []float64 `json:"split_conditions"`
	DefaultLeft     flexBools `json:"default_left"`
	SumHessian      []float64 `json:"sum_hessian"`
	BaseWeights     []float64 `json:"base_weights"`
}

// flexBools decodes an array of booleans written either as true/false or
// as 0/1, both of which appear across XGBoost versions.
type flexBools []bool

func (f *flexBools) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make([]bool, len(raw))
	for i, r := range raw {
		switch s := string(bytes.TrimSpace(r)); s {
		case "true", "1":
			out[i] = true
		case "false", "0":
			out[i] = false
		default:
			return fmt.Errorf("default_left[%d]: unexpected value %s", i, s)
		}
	}
	*f = out
	return nil
}

// DecodeXGBoost parses an XGBoost JSON model. Supported objectives are
// binary:logistic, binary:logitraw, reg:logistic, multi:softprob and
// multi:softmax on the gbtree booster.
func DecodeXGBoost(data []byte) (*XGBoost, error) {
	var doc xgbDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding xgboost model: %w", err)
	}
	l := doc.Learner
	if name := l.GradientBooster.Name; name != "" && name != "gbtree" {
		return nil, fmt.Errorf("unsupported xgboost booster %q", name)
	}

	m := &XGBoost{objective: l.Objective.Name, coverOK: true, maxFeature: -1}
	switch m.objective {
	case "binary:logistic", "binary:logitraw", "reg:logistic":
		m.numGroups = 1
	case "multi:softprob", "multi:softmax":
		k, err := parseIntParam(l.LearnerModelParam.NumClass)
		if err != nil || k < 2 {
			return nil, fmt.Errorf("xgboost %s needs num_class >= 2, got %q", m.objective, l.LearnerModelParam.NumClass)
		}
		m.numGroups = k
	default:
		return nil, fmt.Errorf("unsupported xgboost objective %q", m.objective)
	}
	if nf, err := parseIntParam(l.LearnerModelParam.NumFeature); err == nil {
		m.numFeature = nf
	}

	base, err := parseBaseScore(l.LearnerModelParam.BaseScore)
	if err != nil {
		return nil, err
	}
	m.baseMargin = make([]float64, m.numGroups)
	for g := range m.baseMargin {
		b := base[0]
		if len(base) == m.numGroups {
			b = base[g]
		}
		if m.numGroups == 1 && m.objective != "binary:logitraw" {
			b = logit(b)
		}
		m.baseMargin[g] = b
	}

	raw := l.GradientBooster.Model.Trees
	if len(raw) == 0 {
		return nil, fmt.Errorf("xgboost model has no trees")
	}
	info := l.GradientBooster.Model.TreeInfo
	if len(info) != 0 && len(info) != len(raw) {
		return nil, fmt.Errorf("xgboost tree_info has %d entries for %d trees", len(info), len(raw))
	}

	for i, rt := range raw {
		t := &tree{
			left:        rt.LeftChildren,
			right:       rt.RightChildren,
			feature:     rt.SplitIndices,
			threshold:   rt.SplitConditions,
			defaultLeft: []bool(rt.DefaultLeft),
			cover:       rt.SumHessian,
			rule:        splitLess,
		}
		if err := t.validate(); err != nil {
			return nil, fmt.Errorf("xgboost tree %d: %w", i, err)
		}
		group := i % m.numGroups
		if len(info) > 0 {
			group = info[i]
		}
		if group < 0 || group >= m.numGroups {
			return nil, fmt.Errorf("xgboost tree %d assigned to group %d of %d", i, group, m.numGroups)
		}
		// Leaf outputs live in split_conditions.
		m.trees = append(m.trees, t)
		m.leafValue = append(m.leafValue, rt.SplitConditions)
		m.groups = append(m.groups, group)
		if t.maxFeature > m.maxFeature {
			m.maxFeature = t.maxFeature
		}
		m.coverOK = m.coverOK && t.coverOK
	}
	if m.numFeature == 0 {
		m.numFeature = m.maxFeature + 1
	}
	return m, nil
}

// NumClasses returns 2 for binary objectives and num_class otherwise.
func (m *XGBoost) NumClasses() int {
	if m.numGroups == 1 {
		return 2
	}
	return m.numGroups
}

// NumFeatures returns the feature count recorded in the model.
func (m *XGBoost) NumFeatures() int { return m.numFeature }

// Margins returns the raw per-group scores before the link function.
func (m *XGBoost) Margins(x []float64) ([]float64, error) {
	if len(x) <= m.maxFeature {
		return nil, &ShapeError{Model: "xgboost", Want: m.maxFeature + 1, Got: len(x)}
	}
	out := make([]float64, m.numGroups)
	copy(out, m.baseMargin)
	for i, t := range m.trees {
		out[m.groups[i]] += m.leafValue[i][t.leaf(x)]
	}
	return out, nil
}

func (m *XGBoost) PredictProba(x []float64) ([]float64, error) {
	margins, err := m.Margins(x)
	if err != nil {
		return nil, err
	}
	var proba []float64
	if m.numGroups == 1 {
		p := sigmoid(margins[0])
		proba = []float64{1 - p, p}
	} else {
		proba = softmax(margins)
	}
	if err := checkFinite("xgboost", proba); err != nil {
		return nil, err
	}
	return proba, nil
}

func (m *XGBoost) Predict(x []float64) (int, error) {
	proba, err := m.PredictProba(x)
	if err != nil {
		return 0, err
	}
	return argmax(proba), nil
}

// Explain attributes the margin of the predicted group. For binary models
// that is the single logit, so positive values push towards class 1.
func (m *XGBoost) Explain(x []float64) ([]float64, error) {
	if !m.coverOK {
		return nil, ErrIncompatibleStructure
	}
	margins, err := m.Margins(x)
	if err != nil {
		return nil, err
	}
	target := 0
	if m.numGroups > 1 {
		target = argmax(margins)
	}
	phi := make([]float64, len(x))
	for i, t := range m.trees {
		if m.groups[i] != target {
			continue
		}
		values := m.leafValue[i]
		treeSHAP(t, x, phi, func(leaf int) float64 { return values[leaf] })
	}
	return phi, nil
}

func parseIntParam(s string) (int, error) {
	return strconv.Atoi(strings.TrimSpace(s))
}

// parseBaseScore accepts "5E-1" as well as the bracketed vector form
// "[5E-1]" written by newer releases. Empty means 0.5.
func parseBaseScore(s string) ([]float64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(strings.TrimPrefix(s, "["), "]")
	if strings.TrimSpace(s) == "" {
		return []float64{0.5}, nil
	}
	parts := strings.Split(s, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("xgboost base_score %q: %w", s, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func logit(p float64) float64 {
	if p <= 0 || p >= 1 {
		return 0
	}
	return math.Log(p / (1 - p))
}
