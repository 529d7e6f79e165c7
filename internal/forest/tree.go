package forest

import (
	"fmt"
	"math/rand/v2"
	"slices"
)

// minGain is the smallest impurity decrease accepted as a split.
const minGain = 1e-12

// Node is one node of a flattened decision tree. Leaves have Left == Right == -1
// and carry Value: a class distribution for classifiers, a single mean for
// regressors.
type Node struct {
	Feature   int       `json:"f"`
	Threshold float64   `json:"t"`
	Left      int       `json:"l"`
	Right     int       `json:"r"`
	Value     []float64 `json:"v,omitempty"`
}

// IsLeaf reports whether the node has no children.
func (n Node) IsLeaf() bool { return n.Left < 0 }

// Tree is a CART decision tree stored as a node array rooted at index 0.
type Tree struct {
	Nodes       []Node    `json:"nodes"`
	Importances []float64 `json:"importances,omitempty"`
}

// leaf returns the value of the leaf x falls into. Samples with
// x[Feature] <= Threshold go left.
func (t *Tree) leaf(x []float64) []float64 {
	i := 0
	for {
		n := &t.Nodes[i]
		if n.IsLeaf() {
			return n.Value
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// Depth returns the length of the longest root-to-leaf path.
func (t *Tree) Depth() int {
	if len(t.Nodes) == 0 {
		return 0
	}
	var walk func(i int) int
	walk = func(i int) int {
		n := t.Nodes[i]
		if n.IsLeaf() {
			return 0
		}
		return 1 + max(walk(n.Left), walk(n.Right))
	}
	return walk(0)
}

func (t *Tree) validate(numFeatures, valueLen int) error {
	if len(t.Nodes) == 0 {
		return fmt.Errorf("tree has no nodes")
	}
	for i, n := range t.Nodes {
		if n.IsLeaf() {
			if n.Right >= 0 {
				return fmt.Errorf("node %d has a right child but no left child", i)
			}
			if len(n.Value) != valueLen {
				return fmt.Errorf("leaf %d has %d values, want %d", i, len(n.Value), valueLen)
			}
			continue
		}
		if n.Feature < 0 || n.Feature >= numFeatures {
			return fmt.Errorf("node %d splits on feature %d of %d", i, n.Feature, numFeatures)
		}
		// Children are always appended after their parent, which rules out cycles.
		if n.Left <= i || n.Right <= i || n.Left >= len(t.Nodes) || n.Right >= len(t.Nodes) {
			return fmt.Errorf("node %d has invalid children %d, %d", i, n.Left, n.Right)
		}
	}
	return nil
}

// treeParams are the resolved growth limits for one tree.
type treeParams struct {
	maxDepth        int // 0 means unlimited
	minSamplesSplit int
	minSamplesLeaf  int
	maxFeatures     int
}

type grower struct {
	x          [][]float64
	params     treeParams
	rng        *rand.Rand
	root       stats
	nodes      []Node
	importance []float64
}

// growTree fits a tree on samples (indices into x, duplicates allowed) using
// root as an empty accumulator for the target.
func growTree(x [][]float64, samples []int, root stats, params treeParams, rng *rand.Rand) Tree {
	numFeatures := len(x[0])
	g := &grower{
		x:          x,
		params:     params,
		rng:        rng,
		root:       root,
		importance: make([]float64, numFeatures),
	}
	g.grow(samples, 0)

	total := 0.0
	for _, v := range g.importance {
		total += v
	}
	if total > 0 {
		for i := range g.importance {
			g.importance[i] /= total
		}
	}
	return Tree{Nodes: g.nodes, Importances: g.importance}
}

func (g *grower) grow(samples []int, depth int) int {
	node := g.root.clone()
	for _, s := range samples {
		node.add(s)
	}

	idx := len(g.nodes)
	g.nodes = append(g.nodes, Node{Left: -1, Right: -1, Value: node.value()})

	if g.params.maxDepth > 0 && depth >= g.params.maxDepth {
		return idx
	}
	if len(samples) < g.params.minSamplesSplit || len(samples) < 2*g.params.minSamplesLeaf {
		return idx
	}
	if node.impurity() <= minGain {
		return idx
	}

	feature, threshold, gain, ok := g.bestSplit(samples, node)
	if !ok {
		return idx
	}
	g.importance[feature] += gain

	left := make([]int, 0, len(samples))
	right := make([]int, 0, len(samples))
	for _, s := range samples {
		if g.x[s][feature] <= threshold {
			left = append(left, s)
		} else {
			right = append(right, s)
		}
	}

	l := g.grow(left, depth+1)
	r := g.grow(right, depth+1)
	g.nodes[idx] = Node{Feature: feature, Threshold: threshold, Left: l, Right: r}
	return idx
}

// bestSplit scans a random subset of features for the threshold with the
// largest impurity decrease that leaves at least minSamplesLeaf samples on
// each side.
func (g *grower) bestSplit(samples []int, parent stats) (feature int, threshold, gain float64, ok bool) {
	numFeatures := len(g.x[0])
	candidates := g.rng.Perm(numFeatures)[:min(g.params.maxFeatures, numFeatures)]
	parentProxy := parent.proxy()
	minLeaf := max(g.params.minSamplesLeaf, 1)

	sorted := make([]int, len(samples))
	bestGain := minGain
	for _, f := range candidates {
		copy(sorted, samples)
		slices.SortStableFunc(sorted, func(a, b int) int {
			va, vb := g.x[a][f], g.x[b][f]
			switch {
			case va < vb:
				return -1
			case va > vb:
				return 1
			}
			return 0
		})

		left := g.root.clone()
		right := g.root.clone()
		for _, s := range sorted {
			right.add(s)
		}

		for pos := 0; pos < len(sorted)-1; pos++ {
			s := sorted[pos]
			left.add(s)
			right.remove(s)

			lo, hi := g.x[s][f], g.x[sorted[pos+1]][f]
			if lo == hi {
				continue
			}
			if pos+1 < minLeaf || len(sorted)-pos-1 < minLeaf {
				continue
			}

			improvement := left.proxy() + right.proxy() - parentProxy
			if improvement > bestGain {
				bestGain = improvement
				feature = f
				threshold = midpoint(lo, hi)
				ok = true
			}
		}
	}
	return feature, threshold, bestGain, ok
}

// midpoint returns a threshold strictly separating lo < hi.
func midpoint(lo, hi float64) float64 {
	m := lo + (hi-lo)/2
	if m >= hi {
		return lo
	}
	return m
}
