// Package floatutils provides utilities for working with floats
package floatutils

import "math"

// Clip clips a floating point to within a minimum and maximum value.
// If the floating point exceeds max, then the function returns the max
// If min exceeds the floating point, then the function returns the min
func Clip(value, min, max float64) float64 {
	return math.Max(math.Min(value, max), min)
}

// Sign returns +1 for positive values, -1 for negative values and 0
// otherwise
func Sign(value float64) float64 {
	switch {
	case value > 0:
		return 1
	case value < 0:
		return -1
	}
	return 0
}

// MaxSlice gets the maximum value and indices of the maximum values in
// a slice of float64.
func MaxSlice(values []float64) (max float64, indices []int) {
	max, indices = values[0], []int{0}

	for i := 1; i < len(values); i++ {
		if values[i] > max {
			max = values[i]
			indices = []int{i}
		} else if values[i] == max {
			indices = append(indices, i)
		}
	}
	return
}
