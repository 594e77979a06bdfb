package utils

import "golang.org/x/exp/constraints"

// Clamp restricts value to [min, max].
func Clamp[T constraints.Integer | constraints.Float](min, value, max T) T {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
