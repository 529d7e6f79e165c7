// Package forest implements random-forest classification and regression
// over CART decision trees.
//
// Each tree is grown on a bootstrap sample with a per-node random feature
// subset. Tree i draws its randomness from a generator seeded with
// (Seed, i), so a fitted forest does not depend on how many workers grew it.
// Fitted forests are plain data and serialize to JSON as flattened node
// arrays.
package forest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/couchcryptid/disaster-prediction/internal/worker"
)

// Params controls forest growth.
type Params struct {
	Estimators      int    `json:"n_estimators"`
	MaxDepth        int    `json:"max_depth"` // 0 means unlimited
	MinSamplesSplit int    `json:"min_samples_split"`
	MinSamplesLeaf  int    `json:"min_samples_leaf"`
	MaxFeatures     int    `json:"max_features"` // 0 selects the per-model default
	Bootstrap       bool   `json:"bootstrap"`
	Seed            uint64 `json:"seed"`
	Jobs            int    `json:"-"` // <= 0 uses all CPUs
}

// DefaultParams mirrors common random-forest defaults.
func DefaultParams() Params {
	return Params{
		Estimators:      100,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		Bootstrap:       true,
	}
}

func (p Params) validate() error {
	var errs []error
	if p.Estimators < 1 {
		errs = append(errs, fmt.Errorf("n_estimators must be >= 1, got %d", p.Estimators))
	}
	if p.MaxDepth < 0 {
		errs = append(errs, fmt.Errorf("max_depth must be >= 0, got %d", p.MaxDepth))
	}
	if p.MinSamplesSplit < 2 {
		errs = append(errs, fmt.Errorf("min_samples_split must be >= 2, got %d", p.MinSamplesSplit))
	}
	if p.MinSamplesLeaf < 1 {
		errs = append(errs, fmt.Errorf("min_samples_leaf must be >= 1, got %d", p.MinSamplesLeaf))
	}
	if p.MaxFeatures < 0 {
		errs = append(errs, fmt.Errorf("max_features must be >= 0, got %d", p.MaxFeatures))
	}
	return errors.Join(errs...)
}

func (p Params) tree(maxFeatures int) treeParams {
	if p.MaxFeatures > 0 {
		maxFeatures = p.MaxFeatures
	}
	return treeParams{
		maxDepth:        p.MaxDepth,
		minSamplesSplit: p.MinSamplesSplit,
		minSamplesLeaf:  p.MinSamplesLeaf,
		maxFeatures:     maxFeatures,
	}
}

// treeRand returns the generator for tree i.
func (p Params) treeRand(i int) *rand.Rand {
	return rand.New(rand.NewPCG(p.Seed, uint64(i)))
}

// sampleRows draws the training rows for one tree.
func (p Params) sampleRows(rng *rand.Rand, n int) []int {
	rows := make([]int, n)
	if !p.Bootstrap {
		for i := range rows {
			rows[i] = i
		}
		return rows
	}
	for i := range rows {
		rows[i] = rng.IntN(n)
	}
	return rows
}

// fitTrees grows p.Estimators trees in parallel.
func fitTrees(ctx context.Context, p Params, x [][]float64, newStats func() stats, maxFeatures int) ([]Tree, error) {
	trees := make([]Tree, p.Estimators)
	tp := p.tree(maxFeatures)
	err := worker.Each(ctx, p.Jobs, p.Estimators, func(ctx context.Context, i int) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		rng := p.treeRand(i)
		rows := p.sampleRows(rng, len(x))
		trees[i] = growTree(x, rows, newStats(), tp, rng)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return trees, nil
}

func checkMatrix(x [][]float64, targets int) (int, error) {
	if len(x) == 0 {
		return 0, fmt.Errorf("no training rows")
	}
	if len(x) != targets {
		return 0, fmt.Errorf("%d rows but %d targets", len(x), targets)
	}
	width := len(x[0])
	if width == 0 {
		return 0, fmt.Errorf("rows have no features")
	}
	for i, row := range x {
		if len(row) != width {
			return 0, fmt.Errorf("row %d has %d features, want %d", i, len(row), width)
		}
		for j, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return 0, fmt.Errorf("row %d feature %d is not finite", i, j)
			}
		}
	}
	return width, nil
}

func checkInput(x []float64, numFeatures int) error {
	if len(x) != numFeatures {
		return fmt.Errorf("model expects %d features, got %d", numFeatures, len(x))
	}
	return nil
}

func averageImportances(trees []Tree, numFeatures int) []float64 {
	out := make([]float64, numFeatures)
	if len(trees) == 0 {
		return out
	}
	for _, t := range trees {
		for i, v := range t.Importances {
			if i < numFeatures {
				out[i] += v
			}
		}
	}
	for i := range out {
		out[i] /= float64(len(trees))
	}
	return out
}

func validateTrees(trees []Tree, numFeatures, valueLen int) error {
	if numFeatures < 1 {
		return fmt.Errorf("forest has %d features", numFeatures)
	}
	if len(trees) == 0 {
		return fmt.Errorf("forest has no trees")
	}
	for i := range trees {
		if err := trees[i].validate(numFeatures, valueLen); err != nil {
			return fmt.Errorf("tree %d: %w", i, err)
		}
	}
	return nil
}
