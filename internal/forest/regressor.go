package forest

import (
	"context"
	"fmt"
)

// Regressor is a random forest over variance-reduction trees.
type Regressor struct {
	Params      Params `json:"params"`
	NumFeatures int    `json:"n_features"`
	Trees       []Tree `json:"trees"`
}

// NewRegressor creates an unfitted regressor.
func NewRegressor(p Params) *Regressor {
	return &Regressor{Params: p}
}

// Fit grows the forest on x with targets y. Every feature is considered at
// each split unless Params.MaxFeatures says otherwise.
func (r *Regressor) Fit(ctx context.Context, x [][]float64, y []float64) error {
	if err := r.Params.validate(); err != nil {
		return fmt.Errorf("regressor params: %w", err)
	}
	width, err := checkMatrix(x, len(y))
	if err != nil {
		return fmt.Errorf("fit regressor: %w", err)
	}

	trees, err := fitTrees(ctx, r.Params, x, func() stats { return newMSEStats(y) }, width)
	if err != nil {
		return fmt.Errorf("fit regressor: %w", err)
	}

	r.NumFeatures = width
	r.Trees = trees
	return nil
}

// Predict returns the mean leaf value across trees.
func (r *Regressor) Predict(x []float64) (float64, error) {
	if len(r.Trees) == 0 {
		return 0, fmt.Errorf("regressor is not fitted")
	}
	if err := checkInput(x, r.NumFeatures); err != nil {
		return 0, err
	}
	sum := 0.0
	for i := range r.Trees {
		sum += r.Trees[i].leaf(x)[0]
	}
	return sum / float64(len(r.Trees)), nil
}

// Score returns the coefficient of determination R² on x against y.
func (r *Regressor) Score(x [][]float64, y []float64) (float64, error) {
	if len(x) == 0 || len(x) != len(y) {
		return 0, fmt.Errorf("score regressor: %d rows but %d targets", len(x), len(y))
	}
	pred := make([]float64, len(x))
	for i, row := range x {
		p, err := r.Predict(row)
		if err != nil {
			return 0, fmt.Errorf("score regressor row %d: %w", i, err)
		}
		pred[i] = p
	}
	return R2(y, pred), nil
}

// FeatureImportances returns the mean normalized impurity decrease per feature.
func (r *Regressor) FeatureImportances() []float64 {
	return averageImportances(r.Trees, r.NumFeatures)
}

// Validate checks a decoded regressor is structurally sound.
func (r *Regressor) Validate() error {
	return validateTrees(r.Trees, r.NumFeatures, 1)
}

// R2 is the coefficient of determination of pred against truth. A constant
// truth scores 1 when predicted exactly and 0 otherwise.
func R2(truth, pred []float64) float64 {
	if len(truth) == 0 {
		return 0
	}
	mean := 0.0
	for _, v := range truth {
		mean += v
	}
	mean /= float64(len(truth))

	var ssRes, ssTot float64
	for i, v := range truth {
		d := v - pred[i]
		ssRes += d * d
		m := v - mean
		ssTot += m * m
	}
	if ssTot == 0 {
		if ssRes == 0 {
			return 1
		}
		return 0
	}
	return 1 - ssRes/ssTot
}
