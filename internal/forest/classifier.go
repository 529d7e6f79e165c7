package forest

import (
	"context"
	"fmt"
	"math"
)

// Classifier is a random forest over Gini-impurity trees. Classes are dense
// integer codes in [0, NumClasses).
type Classifier struct {
	Params      Params `json:"params"`
	Balanced    bool   `json:"balanced"`
	NumClasses  int    `json:"n_classes"`
	NumFeatures int    `json:"n_features"`
	Trees       []Tree `json:"trees"`
}

// NewClassifier creates an unfitted classifier. With balanced set, class
// weights are n / (k * n_c) over the training labels.
func NewClassifier(p Params, balanced bool) *Classifier {
	return &Classifier{Params: p, Balanced: balanced}
}

// Fit grows the forest on x with labels y.
func (c *Classifier) Fit(ctx context.Context, x [][]float64, y []int) error {
	if err := c.Params.validate(); err != nil {
		return fmt.Errorf("classifier params: %w", err)
	}
	width, err := checkMatrix(x, len(y))
	if err != nil {
		return fmt.Errorf("fit classifier: %w", err)
	}

	numClasses := 0
	for i, label := range y {
		if label < 0 {
			return fmt.Errorf("fit classifier: label %d at row %d is negative", label, i)
		}
		numClasses = max(numClasses, label+1)
	}
	weights := c.classWeights(y, numClasses)

	// sqrt(d) features per split.
	maxFeatures := max(1, int(math.Sqrt(float64(width))))
	trees, err := fitTrees(ctx, c.Params, x, func() stats { return newGiniStats(y, weights) }, maxFeatures)
	if err != nil {
		return fmt.Errorf("fit classifier: %w", err)
	}

	c.NumClasses = numClasses
	c.NumFeatures = width
	c.Trees = trees
	return nil
}

func (c *Classifier) classWeights(y []int, numClasses int) []float64 {
	weights := make([]float64, numClasses)
	if !c.Balanced {
		for i := range weights {
			weights[i] = 1
		}
		return weights
	}

	counts := make([]int, numClasses)
	for _, label := range y {
		counts[label]++
	}
	present := 0
	for _, n := range counts {
		if n > 0 {
			present++
		}
	}
	for i, n := range counts {
		if n > 0 {
			weights[i] = float64(len(y)) / (float64(present) * float64(n))
		}
	}
	return weights
}

// PredictProba returns the mean class distribution of the trees' leaves.
func (c *Classifier) PredictProba(x []float64) ([]float64, error) {
	if len(c.Trees) == 0 {
		return nil, fmt.Errorf("classifier is not fitted")
	}
	if err := checkInput(x, c.NumFeatures); err != nil {
		return nil, err
	}

	proba := make([]float64, c.NumClasses)
	for i := range c.Trees {
		for k, p := range c.Trees[i].leaf(x) {
			proba[k] += p
		}
	}
	n := float64(len(c.Trees))
	for k := range proba {
		proba[k] /= n
	}
	return proba, nil
}

// Predict returns the most probable class, preferring the lowest code on ties.
func (c *Classifier) Predict(x []float64) (int, error) {
	proba, err := c.PredictProba(x)
	if err != nil {
		return 0, err
	}
	return argmax(proba), nil
}

// Score returns mean accuracy on x against y.
func (c *Classifier) Score(x [][]float64, y []int) (float64, error) {
	if len(x) == 0 || len(x) != len(y) {
		return 0, fmt.Errorf("score classifier: %d rows but %d labels", len(x), len(y))
	}
	correct := 0
	for i, row := range x {
		pred, err := c.Predict(row)
		if err != nil {
			return 0, fmt.Errorf("score classifier row %d: %w", i, err)
		}
		if pred == y[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(y)), nil
}

// FeatureImportances returns the mean normalized impurity decrease per feature.
func (c *Classifier) FeatureImportances() []float64 {
	return averageImportances(c.Trees, c.NumFeatures)
}

// Validate checks a decoded classifier is structurally sound.
func (c *Classifier) Validate() error {
	if c.NumClasses < 1 {
		return fmt.Errorf("classifier has %d classes", c.NumClasses)
	}
	return validateTrees(c.Trees, c.NumFeatures, c.NumClasses)
}

func argmax(v []float64) int {
	best := 0
	for i := 1; i < len(v); i++ {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}
