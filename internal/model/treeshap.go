// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package model

// Exact path-dependent TreeSHAP (Lundberg et al., "Consistent Individualized
// Feature Attribution for Tree Ensembles", Algorithm 2). Covers weight the
// branches not taken by x.

type pathElement struct {
	feature int
	zero    float64
	one     float64
	weight  float64
}

// treeSHAP adds the attribution of one tree's output for x into phi.
// leafValue maps a leaf index to the output being explained.
func treeSHAP(t *tree, x []float64, phi []float64, leafValue func(leaf int) float64) {
	shapRecurse(t, 0, x, phi, leafValue, nil, 0, 1, 1, -1)
}

func shapRecurse(t *tree, node int, x, phi []float64, leafValue func(int) float64,
	parent []pathElement, depth int, parentZero, parentOne float64, parentFeature int) {

	path := make([]pathElement, depth+1)
	copy(path, parent[:depth])
	extendPath(path, depth, parentZero, parentOne, parentFeature)

	if t.isLeaf(node) {
		v := leafValue(node)
		for i := 1; i <= depth; i++ {
			w := unwoundPathSum(path, depth, i)
			el := path[i]
			phi[el.feature] += w * (el.one - el.zero) * v
		}
		return
	}

	hot := t.next(node, x)
	cold := t.left[node]
	if hot == cold {
		cold = t.right[node]
	}
	w := t.cover[node]
	hotZero := t.cover[hot] / w
	coldZero := t.cover[cold] / w
	inZero, inOne := 1.0, 1.0

	split := t.feature[node]
	for k := 0; k <= depth; k++ {
		if path[k].feature == split {
			inZero, inOne = path[k].zero, path[k].one
			unwindPath(path, depth, k)
			depth--
			break
		}
	}

	shapRecurse(t, hot, x, phi, leafValue, path, depth+1, hotZero*inZero, inOne, split)
	shapRecurse(t, cold, x, phi, leafValue, path, depth+1, coldZero*inZero, 0, split)
}

func extendPath(path []pathElement, depth int, zero, one float64, feature int) {
	path[depth] = pathElement{feature: feature, zero: zero, one: one}
	if depth == 0 {
		path[depth].weight = 1
	}
	d := float64(depth + 1)
	for i := depth - 1; i >= 0; i-- {
		path[i+1].weight += one * path[i].weight * float64(i+1) / d
		path[i].weight = zero * path[i].weight * float64(depth-i) / d
	}
}

func unwindPath(path []pathElement, depth, k int) {
	one, zero := path[k].one, path[k].zero
	next := path[depth].weight
	d := float64(depth + 1)
	for i := depth - 1; i >= 0; i-- {
		if one != 0 {
			tmp := path[i].weight
			path[i].weight = next * d / (float64(i+1) * one)
			next = tmp - path[i].weight*zero*float64(depth-i)/d
		} else {
			path[i].weight = path[i].weight * d / (zero * float64(depth-i))
		}
	}
	for i := k; i < depth; i++ {
		path[i].feature = path[i+1].feature
		path[i].zero = path[i+1].zero
		path[i].one = path[i+1].one
	}
}

func unwoundPathSum(path []pathElement, depth, k int) float64 {
	one, zero := path[k].one, path[k].zero
	next := path[depth].weight
	d := float64(depth + 1)
	var total float64
	for i := depth - 1; i >= 0; i-- {
		if one != 0 {
			tmp := next * d / (float64(i+1) * one)
			total += tmp
			next = path[i].weight - tmp*zero*(float64(depth-i)/d)
		} else if zero != 0 {
			total += (path[i].weight / zero) / (float64(depth-i) / d)
		}
	}
	return total
}
