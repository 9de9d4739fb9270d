package ml

import (
	"math/rand"
	"sort"
)

type treeNode struct {
	feature     int
	threshold   float64
	left, right int
	leaf        bool
	proba       [2]float64
}

// decisionTree is a binary CART classifier grown with Gini impurity.
type decisionTree struct {
	nodes       []treeNode
	importances []float64 // total weighted impurity decrease per feature
}

type treeBuilder struct {
	x           [][]float64
	y           []int
	params      Params
	maxFeatures int
	rng         *rand.Rand
	tree        *decisionTree
}

func gini(counts [2]int, n int) float64 {
	if n == 0 {
		return 0
	}
	p0 := float64(counts[0]) / float64(n)
	p1 := float64(counts[1]) / float64(n)
	return 1 - p0*p0 - p1*p1
}

// growTree fits a tree on the rows listed in idx. Rows may repeat, as they
// do in a bootstrap sample.
func growTree(x [][]float64, y []int, idx []int, params Params, maxFeatures int, rng *rand.Rand) *decisionTree {
	nFeatures := 0
	if len(x) > 0 {
		nFeatures = len(x[0])
	}
	b := &treeBuilder{
		x:           x,
		y:           y,
		params:      params,
		maxFeatures: maxFeatures,
		rng:         rng,
		tree:        &decisionTree{importances: make([]float64, nFeatures)},
	}
	b.build(idx, 0)
	return b.tree
}

type split struct {
	feature   int
	threshold float64
	impurity  float64 // weighted child impurity, n_left*gini_left + n_right*gini_right
}

func (b *treeBuilder) build(idx []int, depth int) int {
	var counts [2]int
	for _, i := range idx {
		counts[b.y[i]]++
	}
	n := len(idx)

	nodeID := len(b.tree.nodes)
	node := treeNode{leaf: true}
	if n > 0 {
		node.proba = [2]float64{float64(counts[0]) / float64(n), float64(counts[1]) / float64(n)}
	}
	b.tree.nodes = append(b.tree.nodes, node)

	if counts[0] == 0 || counts[1] == 0 ||
		n < b.params.MinSamplesSplit ||
		n < 2*b.params.MinSamplesLeaf ||
		(b.params.MaxDepth > 0 && depth >= b.params.MaxDepth) {
		return nodeID
	}

	best, ok := b.bestSplit(idx, counts)
	if !ok {
		return nodeID
	}

	var left, right []int
	for _, i := range idx {
		if b.x[i][best.feature] <= best.threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	if gain := float64(n)*gini(counts, n) - best.impurity; gain > 0 {
		b.tree.importances[best.feature] += gain
	}

	l := b.build(left, depth+1)
	r := b.build(right, depth+1)

	nd := &b.tree.nodes[nodeID]
	nd.leaf = false
	nd.feature = best.feature
	nd.threshold = best.threshold
	nd.left = l
	nd.right = r
	return nodeID
}

// bestSplit draws features in random order and evaluates up to maxFeatures
// non-constant ones. Constant features do not count against the budget.
func (b *treeBuilder) bestSplit(idx []int, counts [2]int) (split, bool) {
	n := len(idx)
	minLeaf := b.params.MinSamplesLeaf
	sorted := make([]int, n)

	best := split{impurity: float64(n) * gini(counts, n)}
	found := false
	visited := 0

	for _, f := range b.rng.Perm(len(b.tree.importances)) {
		if visited >= b.maxFeatures {
			break
		}
		copy(sorted, idx)
		sort.SliceStable(sorted, func(p, q int) bool { return b.x[sorted[p]][f] < b.x[sorted[q]][f] })
		if b.x[sorted[0]][f] == b.x[sorted[n-1]][f] {
			continue
		}
		visited++

		var left [2]int
		for i := 1; i < n; i++ {
			left[b.y[sorted[i-1]]]++
			lo, hi := b.x[sorted[i-1]][f], b.x[sorted[i]][f]
			if lo == hi || i < minLeaf || n-i < minLeaf {
				continue
			}
			right := [2]int{counts[0] - left[0], counts[1] - left[1]}
			impurity := float64(i)*gini(left, i) + float64(n-i)*gini(right, n-i)
			if !found || impurity < best.impurity {
				threshold := lo + (hi-lo)/2
				if threshold >= hi {
					threshold = lo
				}
				best = split{feature: f, threshold: threshold, impurity: impurity}
				found = true
			}
		}
	}
	return best, found
}

func (t *decisionTree) predictProba(row []float64) [2]float64 {
	i := 0
	for !t.nodes[i].leaf {
		nd := t.nodes[i]
		if row[nd.feature] <= nd.threshold {
			i = nd.left
		} else {
			i = nd.right
		}
	}
	return t.nodes[i].proba
}

func (t *decisionTree) depth() int {
	var walk func(i int) int
	walk = func(i int) int {
		nd := t.nodes[i]
		if nd.leaf {
			return 0
		}
		return 1 + max(walk(nd.left), walk(nd.right))
	}
	return walk(0)
}
