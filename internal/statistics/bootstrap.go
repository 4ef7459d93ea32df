package statistics

import (
	"fmt"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// ConfidenceInterval holds the result of a bootstrap confidence interval computation.
type ConfidenceInterval struct {
	Lower           float64 `json:"lower"`
	Upper           float64 `json:"upper"`
	Mean            float64 `json:"mean"`
	ConfidenceLevel float64 `json:"confidence_level"`
	NumBootstraps   int     `json:"num_bootstraps"`
}

// DefaultBootstrapIterations is the number of bootstrap resamples.
const DefaultBootstrapIterations = 2000

// DefaultConfidenceLevel is the two-sided coverage used by DefaultBootstrap.
const DefaultConfidenceLevel = 0.95

// Bootstrap estimates a percentile confidence interval for the mean of a
// sample, typically per-group NDCG values. A fixed Seed makes the interval
// reproducible.
type Bootstrap struct {
	Iterations int
	Confidence float64
	Seed       int64
}

// DefaultBootstrap returns a 95% bootstrap with DefaultBootstrapIterations resamples.
func DefaultBootstrap(seed int64) Bootstrap {
	return Bootstrap{
		Iterations: DefaultBootstrapIterations,
		Confidence: DefaultConfidenceLevel,
		Seed:       seed,
	}
}

// MeanInterval resamples values with replacement and returns the percentile
// interval of the resampled means. Fewer than two values yield a degenerate
// interval at the sample mean with NumBootstraps == 0.
func (b Bootstrap) MeanInterval(values []float64) (ConfidenceInterval, error) {
	if b.Confidence <= 0 || b.Confidence >= 1 {
		return ConfidenceInterval{}, fmt.Errorf("statistics: confidence %v is outside (0, 1)", b.Confidence)
	}
	if b.Iterations < 1 {
		return ConfidenceInterval{}, fmt.Errorf("statistics: iterations must be positive, got %d", b.Iterations)
	}

	n := len(values)
	if n < 2 {
		m := 0.0
		if n == 1 {
			m = values[0]
		}
		return ConfidenceInterval{Lower: m, Upper: m, Mean: m, ConfidenceLevel: b.Confidence}, nil
	}

	rng := rand.New(rand.NewSource(b.Seed))
	means := make([]float64, b.Iterations)
	sample := make([]float64, n)
	for i := range means {
		for j := range sample {
			sample[j] = values[rng.Intn(n)]
		}
		means[i] = stat.Mean(sample, nil)
	}
	sort.Float64s(means)

	alpha := 1 - b.Confidence
	return ConfidenceInterval{
		Lower:           stat.Quantile(alpha/2, stat.Empirical, means, nil),
		Upper:           stat.Quantile(1-alpha/2, stat.Empirical, means, nil),
		Mean:            stat.Mean(values, nil),
		ConfidenceLevel: b.Confidence,
		NumBootstraps:   b.Iterations,
	}, nil
}

// Excludes reports whether the interval lies entirely above or below v.
func (ci ConfidenceInterval) Excludes(v float64) bool {
	return ci.Lower > v || ci.Upper < v
}
