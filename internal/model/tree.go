// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package model

import (
	"fmt"
	"math"
)

// splitRule is the comparison that sends a sample to the left child.
type splitRule int

const (
	// splitLess sends x < threshold left (XGBoost).
	splitLess splitRule = iota
	// splitLessEqual sends x <= threshold left (scikit-learn).
	splitLessEqual
)

// tree is a binary decision tree stored as parallel node arrays. A node is a
// leaf when its left child is negative.
type tree struct {
	left        []int
	right       []int
	feature     []int
	threshold   []float64
	defaultLeft []bool
	cover       []float64
	rule        splitRule

	maxFeature int
	// coverOK is true when every reachable node has a positive cover and
	// the tree can be attributed with TreeSHAP.
	coverOK bool
}

// validate checks array shapes and that child indices point forward, which
// rules out cycles. It fills maxFeature and coverOK.
func (t *tree) validate() error {
	n := len(t.left)
	if n == 0 {
		return fmt.Errorf("tree has no nodes")
	}
	if len(t.right) != n || len(t.feature) != n || len(t.threshold) != n {
		return fmt.Errorf("tree arrays disagree: left=%d right=%d feature=%d threshold=%d",
			n, len(t.right), len(t.feature), len(t.threshold))
	}
	if t.defaultLeft != nil && len(t.defaultLeft) != n {
		return fmt.Errorf("tree default_left has %d entries, want %d", len(t.defaultLeft), n)
	}

	t.maxFeature = -1
	t.coverOK = len(t.cover) == n
	stack := []int{0}
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if t.coverOK && !(t.cover[i] > 0) {
			t.coverOK = false
		}
		if t.isLeaf(i) {
			continue
		}
		l, r := t.left[i], t.right[i]
		if l <= i || r <= i || l >= n || r >= n {
			return fmt.Errorf("node %d has invalid children %d, %d", i, l, r)
		}
		if t.feature[i] < 0 {
			return fmt.Errorf("node %d splits on negative feature %d", i, t.feature[i])
		}
		if t.feature[i] > t.maxFeature {
			t.maxFeature = t.feature[i]
		}
		stack = append(stack, l, r)
	}
	return nil
}

func (t *tree) isLeaf(i int) bool { return t.left[i] < 0 }

// next returns the child of node i that x follows. NaN follows default_left
// when present, otherwise the right branch.
func (t *tree) next(i int, x []float64) int {
	v := x[t.feature[i]]
	if math.IsNaN(v) {
		if t.defaultLeft != nil && t.defaultLeft[i] {
			return t.left[i]
		}
		return t.right[i]
	}
	var goLeft bool
	switch t.rule {
	case splitLessEqual:
		goLeft = v <= t.threshold[i]
	default:
		goLeft = v < t.threshold[i]
	}
	if goLeft {
		return t.left[i]
	}
	return t.right[i]
}

// leaf returns the index of the leaf x lands in.
func (t *tree) leaf(x []float64) int {
	i := 0
	for !t.isLeaf(i) {
		i = t.next(i, x)
	}
	return i
}
