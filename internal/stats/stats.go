// Package stats provides the robust statistics used to flag low-throughput
// outliers in a burn run.
package stats

import (
	"sort"

	"codeberg.org/mutker/gpuburn/internal/errors"
)

// Median returns the median of samples. For an even number of samples it is
// the average of the two central sorted values. The input is not modified.
func Median(samples []float64) (float64, error) {
	errFactory := errors.New()

	n := len(samples)
	if n == 0 {
		return 0, errFactory.New(errors.ErrEmptyInput)
	}

	sorted := make([]float64, n)
	copy(sorted, samples)
	sort.Float64s(sorted)

	if n%2 == 0 {
		return (sorted[n/2-1] + sorted[n/2]) / 2, nil
	}

	return sorted[n/2], nil
}

// IQRLowerBound returns Q1 - window*(Q3-Q1), a robust low-outlier threshold.
//
// Tiny sample sets fall back to defined values rather than an error:
// zero samples yield 0, a single sample yields itself, and two samples
// yield the smaller of the two. For three or more samples the sorted set is
// split into a lower half of the first n/2 elements and an upper half of the
// remaining elements, and Q1/Q3 are the medians of the halves.
func IQRLowerBound(samples []float64, window float64) float64 {
	n := len(samples)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return samples[0]
	}

	sorted := make([]float64, n)
	copy(sorted, samples)
	sort.Float64s(sorted)

	if n == 2 {
		return sorted[0]
	}

	q1, _ := Median(sorted[:n/2])
	q3, _ := Median(sorted[n/2:])
	iqr := q3 - q1

	return q1 - window*iqr
}
