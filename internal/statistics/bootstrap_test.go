package statistics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMeanInterval_Degenerate(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   float64
	}{
		{"empty", nil, 0},
		{"single", []float64{0.75}, 0.75},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ci, err := DefaultBootstrap(1).MeanInterval(tt.values)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ci.Mean)
			assert.Equal(t, tt.want, ci.Lower)
			assert.Equal(t, tt.want, ci.Upper)
			assert.Zero(t, ci.NumBootstraps)
		})
	}
}

func TestMeanInterval_IdenticalValues(t *testing.T) {
	ci, err := DefaultBootstrap(42).MeanInterval([]float64{0.5, 0.5, 0.5, 0.5})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, ci.Lower, 1e-9)
	assert.InDelta(t, 0.5, ci.Upper, 1e-9)
}

func TestMeanInterval_ContainsMean(t *testing.T) {
	values := []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0}
	ci, err := DefaultBootstrap(42).MeanInterval(values)
	require.NoError(t, err)

	assert.InDelta(t, 0.55, ci.Mean, 1e-9)
	assert.Less(t, ci.Lower, ci.Mean)
	assert.Greater(t, ci.Upper, ci.Mean)
	assert.GreaterOrEqual(t, ci.Lower, 0.1)
	assert.LessOrEqual(t, ci.Upper, 1.0)
	assert.Equal(t, DefaultBootstrapIterations, ci.NumBootstraps)
	assert.Equal(t, DefaultConfidenceLevel, ci.ConfidenceLevel)
}

func TestMeanInterval_Reproducible(t *testing.T) {
	values := []float64{0.3, 0.5, 0.7, 0.4, 0.6}
	a, err := DefaultBootstrap(7).MeanInterval(values)
	require.NoError(t, err)
	b, err := DefaultBootstrap(7).MeanInterval(values)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestMeanInterval_NarrowerAtHigherN(t *testing.T) {
	small := []float64{0.3, 0.5, 0.7}
	var large []float64
	for range 8 {
		large = append(large, 0.3, 0.4, 0.5, 0.6, 0.7)
	}

	ciSmall, err := DefaultBootstrap(42).MeanInterval(small)
	require.NoError(t, err)
	ciLarge, err := DefaultBootstrap(42).MeanInterval(large)
	require.NoError(t, err)

	assert.Less(t, ciLarge.Upper-ciLarge.Lower, ciSmall.Upper-ciSmall.Lower)
}

func TestMeanInterval_InvalidParameters(t *testing.T) {
	_, err := Bootstrap{Iterations: 10, Confidence: 1}.MeanInterval([]float64{1, 2})
	require.Error(t, err)

	_, err = Bootstrap{Iterations: 0, Confidence: 0.9}.MeanInterval([]float64{1, 2})
	require.Error(t, err)
}

func TestExcludes(t *testing.T) {
	ci := ConfidenceInterval{Lower: 0.2, Upper: 0.4}
	assert.True(t, ci.Excludes(0.1))
	assert.True(t, ci.Excludes(0.5))
	assert.False(t, ci.Excludes(0.3))
	assert.False(t, ci.Excludes(math.NaN()))
}
