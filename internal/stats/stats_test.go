package stats_test

import (
	"math/rand"
	"sort"
	"testing"

	"codeberg.org/mutker/gpuburn/internal/stats"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMedian(t *testing.T) {
	tests := []struct {
		name    string
		samples []float64
		want    float64
	}{
		{"single", []float64{42}, 42},
		{"odd", []float64{3, 1, 2}, 2},
		{"even", []float64{4, 1, 3, 2}, 2.5},
		{"duplicates", []float64{5, 5, 5, 5}, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := stats.Median(tt.samples)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestMedianEmpty(t *testing.T) {
	_, err := stats.Median(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one element")
}

func TestMedianPermutationInvariant(t *testing.T) {
	samples := []float64{8.1, 3.3, 99.9, 0.5, 12.0, 7.7, 4.2}
	want, err := stats.Median(samples)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 20; i++ {
		shuffled := append([]float64(nil), samples...)
		rng.Shuffle(len(shuffled), func(a, b int) {
			shuffled[a], shuffled[b] = shuffled[b], shuffled[a]
		})

		got, err := stats.Median(shuffled)
		require.NoError(t, err)
		assert.InDelta(t, want, got, 1e-9)
	}
}

func TestMedianDoesNotMutateInput(t *testing.T) {
	samples := []float64{3, 1, 2}
	_, err := stats.Median(samples)
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 1, 2}, samples)
}

func TestIQRLowerBoundEdgeCases(t *testing.T) {
	assert.InDelta(t, 0.0, stats.IQRLowerBound(nil, 1.5), 1e-9)
	assert.InDelta(t, 7.5, stats.IQRLowerBound([]float64{7.5}, 1.5), 1e-9)
	assert.InDelta(t, 2.0, stats.IQRLowerBound([]float64{9, 2}, 1.5), 1e-9)
	assert.InDelta(t, 2.0, stats.IQRLowerBound([]float64{2, 9}, 0), 1e-9)
}

func TestIQRLowerBound(t *testing.T) {
	// Q1 = 2, Q3 = 6, IQR = 4
	samples := []float64{1, 2, 3, 5, 6, 7}
	assert.InDelta(t, 2.0-1.5*4.0, stats.IQRLowerBound(samples, 1.5), 1e-9)
}

func TestIQRLowerBoundZeroWindowIsQ1(t *testing.T) {
	tests := []struct {
		name    string
		samples []float64
	}{
		{"odd", []float64{10, 30, 20, 50, 40}},
		{"even", []float64{4, 8, 1, 6, 3, 9}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lowerHalf := make([]float64, len(tt.samples))
			copy(lowerHalf, tt.samples)
			sort.Float64s(lowerHalf)
			q1, err := stats.Median(lowerHalf[:len(lowerHalf)/2])
			require.NoError(t, err)

			assert.InDelta(t, q1, stats.IQRLowerBound(tt.samples, 0), 1e-9)
		})
	}
}
