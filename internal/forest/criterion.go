package forest

// stats accumulates the target statistics of a sample set so a split search
// can move samples from one side to the other in O(1).
type stats interface {
	add(sample int)
	remove(sample int)
	weight() float64
	impurity() float64
	// proxy is the part of weight()*impurity() that varies between splits,
	// with the sign flipped: the impurity decrease of a split equals
	// left.proxy() + right.proxy() - parent.proxy().
	proxy() float64
	value() []float64
	clone() stats
}

// giniStats tracks weighted class counts.
type giniStats struct {
	y       []int
	weights []float64 // per class
	counts  []float64
	total   float64
}

func newGiniStats(y []int, classWeights []float64) *giniStats {
	return &giniStats{y: y, weights: classWeights, counts: make([]float64, len(classWeights))}
}

func (s *giniStats) add(i int) {
	c := s.y[i]
	s.counts[c] += s.weights[c]
	s.total += s.weights[c]
}

func (s *giniStats) remove(i int) {
	c := s.y[i]
	s.counts[c] -= s.weights[c]
	s.total -= s.weights[c]
}

func (s *giniStats) weight() float64 { return s.total }

func (s *giniStats) impurity() float64 {
	if s.total <= 0 {
		return 0
	}
	sum := 0.0
	for _, c := range s.counts {
		p := c / s.total
		sum += p * p
	}
	return max(1-sum, 0)
}

func (s *giniStats) proxy() float64 {
	if s.total <= 0 {
		return 0
	}
	sum := 0.0
	for _, c := range s.counts {
		sum += c * c
	}
	return sum / s.total
}

// value is the weighted class distribution.
func (s *giniStats) value() []float64 {
	dist := make([]float64, len(s.counts))
	if s.total <= 0 {
		return dist
	}
	for i, c := range s.counts {
		dist[i] = c / s.total
	}
	return dist
}

func (s *giniStats) clone() stats {
	return &giniStats{y: s.y, weights: s.weights, counts: make([]float64, len(s.counts))}
}

// mseStats tracks running sums for variance.
type mseStats struct {
	y          []float64
	n          float64
	sum, sumSq float64
}

func newMSEStats(y []float64) *mseStats { return &mseStats{y: y} }

func (s *mseStats) add(i int) {
	v := s.y[i]
	s.n++
	s.sum += v
	s.sumSq += v * v
}

func (s *mseStats) remove(i int) {
	v := s.y[i]
	s.n--
	s.sum -= v
	s.sumSq -= v * v
}

func (s *mseStats) weight() float64 { return s.n }

func (s *mseStats) impurity() float64 {
	if s.n <= 0 {
		return 0
	}
	mean := s.sum / s.n
	return max(s.sumSq/s.n-mean*mean, 0)
}

func (s *mseStats) proxy() float64 {
	if s.n <= 0 {
		return 0
	}
	return s.sum * s.sum / s.n
}

func (s *mseStats) value() []float64 {
	if s.n <= 0 {
		return []float64{0}
	}
	return []float64{s.sum / s.n}
}

func (s *mseStats) clone() stats { return &mseStats{y: s.y} }
