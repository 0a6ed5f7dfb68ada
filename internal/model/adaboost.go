// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package model

import (
	"encoding/json"
	"fmt"
)

// AdaBoost is a SAMME ensemble of scikit-learn decision trees. Each tree
// votes for the class with the largest leaf value, weighted by its
// estimator weight.
type AdaBoost struct {
	trees      []*tree
	votes      [][]int
	weights    []float64
	sumWeight  float64
	numClasses int
	maxFeature int
	coverOK    bool
}

type adaDocument struct {
	Algorithm        string        `json:"algorithm"`
	NClasses         int           `json:"n_classes"`
	EstimatorWeights []float64     `json:"estimator_weights"`
	Estimators       []sklearnTree `json:"estimators"`
}

// sklearnTree mirrors the arrays of sklearn.tree._tree.Tree.
type sklearnTree struct {
	ChildrenLeft         []int           `json:"children_left"`
	ChildrenRight        []int           `json:"children_right"`
	Feature              []int           `json:"feature"`
	Threshold            []float64       `json:"threshold"`
	Value                json.RawMessage `json:"value"`
	NNodeSamples         []float64       `json:"n_node_samples"`
	WeightedNNodeSamples []float64       `json:"weighted_n_node_samples"`
}

// nodeValues decodes value as [node][class] or as the raw
// [node][output][class] layout, keeping the first output.
func (s sklearnTree) nodeValues() ([][]float64, error) {
	var flat [][]float64
	if err := json.Unmarshal(s.Value, &flat); err == nil {
		return flat, nil
	}
	var nested [][][]float64
	if err := json.Unmarshal(s.Value, &nested); err != nil {
		return nil, fmt.Errorf("decoding node values: %w", err)
	}
	flat = make([][]float64, len(nested))
	for i, v := range nested {
		if len(v) == 0 {
			return nil, fmt.Errorf("node %d has no outputs", i)
		}
		flat[i] = v[0]
	}
	return flat, nil
}

// DecodeAdaBoost parses an AdaBoostClassifier export. Only the SAMME
// algorithm is supported.
func DecodeAdaBoost(data []byte) (*AdaBoost, error) {
	var doc adaDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding adaboost model: %w", err)
	}
	if doc.Algorithm != "" && doc.Algorithm != "SAMME" {
		return nil, fmt.Errorf("unsupported adaboost algorithm %q", doc.Algorithm)
	}
	if doc.NClasses < 2 {
		return nil, fmt.Errorf("adaboost needs n_classes >= 2, got %d", doc.NClasses)
	}
	if len(doc.Estimators) == 0 {
		return nil, fmt.Errorf("adaboost model has no estimators")
	}
	if len(doc.EstimatorWeights) != len(doc.Estimators) {
		return nil, fmt.Errorf("adaboost has %d weights for %d estimators", len(doc.EstimatorWeights), len(doc.Estimators))
	}

	m := &AdaBoost{numClasses: doc.NClasses, weights: doc.EstimatorWeights, maxFeature: -1, coverOK: true}
	for i, est := range doc.Estimators {
		values, err := est.nodeValues()
		if err != nil {
			return nil, fmt.Errorf("adaboost estimator %d: %w", i, err)
		}
		cover := est.WeightedNNodeSamples
		if len(cover) == 0 {
			cover = est.NNodeSamples
		}
		t := &tree{
			left:      est.ChildrenLeft,
			right:     est.ChildrenRight,
			feature:   est.Feature,
			threshold: est.Threshold,
			cover:     cover,
			rule:      splitLessEqual,
		}
		if err := t.validate(); err != nil {
			return nil, fmt.Errorf("adaboost estimator %d: %w", i, err)
		}
		if len(values) != len(t.left) {
			return nil, fmt.Errorf("adaboost estimator %d: %d node values for %d nodes", i, len(values), len(t.left))
		}
		votes := make([]int, len(values))
		for n, v := range values {
			if !t.isLeaf(n) {
				continue
			}
			if len(v) != doc.NClasses {
				return nil, fmt.Errorf("adaboost estimator %d: leaf %d has %d class values, want %d", i, n, len(v), doc.NClasses)
			}
			votes[n] = argmax(v)
		}
		m.trees = append(m.trees, t)
		m.votes = append(m.votes, votes)
		m.sumWeight += doc.EstimatorWeights[i]
		if t.maxFeature > m.maxFeature {
			m.maxFeature = t.maxFeature
		}
		m.coverOK = m.coverOK && t.coverOK
	}
	if !(m.sumWeight > 0) {
		return nil, fmt.Errorf("adaboost estimator weights sum to %v", m.sumWeight)
	}
	return m, nil
}

func (m *AdaBoost) NumClasses() int { return m.numClasses }

// NumFeatures returns one past the highest feature index any tree splits on.
func (m *AdaBoost) NumFeatures() int { return m.maxFeature + 1 }

// decision returns the normalised weighted vote per class.
func (m *AdaBoost) decision(x []float64) ([]float64, error) {
	if len(x) <= m.maxFeature {
		return nil, &ShapeError{Model: "adaboost", Want: m.maxFeature + 1, Got: len(x)}
	}
	pred := make([]float64, m.numClasses)
	for i, t := range m.trees {
		pred[m.votes[i][t.leaf(x)]] += m.weights[i]
	}
	for k := range pred {
		pred[k] /= m.sumWeight
	}
	return pred, nil
}

func (m *AdaBoost) Predict(x []float64) (int, error) {
	pred, err := m.decision(x)
	if err != nil {
		return 0, err
	}
	return argmax(pred), nil
}

// PredictProba follows scikit-learn's SAMME probability estimate: the binary
// decision d becomes [-d/2, d/2], otherwise votes are divided by K-1, and the
// result is passed through softmax.
func (m *AdaBoost) PredictProba(x []float64) ([]float64, error) {
	pred, err := m.decision(x)
	if err != nil {
		return nil, err
	}
	dec := make([]float64, m.numClasses)
	if m.numClasses == 2 {
		d := pred[1] - pred[0]
		dec[0], dec[1] = -d/2, d/2
	} else {
		for k, v := range pred {
			dec[k] = v / float64(m.numClasses-1)
		}
	}
	return softmax(dec), nil
}

// Explain attributes the weighted vote share of the predicted class.
func (m *AdaBoost) Explain(x []float64) ([]float64, error) {
	if !m.coverOK {
		return nil, ErrIncompatibleStructure
	}
	pred, err := m.decision(x)
	if err != nil {
		return nil, err
	}
	target := argmax(pred)
	phi := make([]float64, len(x))
	for i, t := range m.trees {
		votes := m.votes[i]
		scale := m.weights[i] / m.sumWeight
		treeSHAP(t, x, phi, func(leaf int) float64 {
			if votes[leaf] == target {
				return scale
			}
			return 0
		})
	}
	return phi, nil
}
