package utils

import "golang.org/x/exp/constraints"

// Clamp restricts v to the closed interval [lo, hi].
func Clamp[T constraints.Ordered](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Min returns the smaller of a and b.
func Min[T constraints.Ordered](a, b T) T {
	if a < b {
		return a
	}
	return b
}

// Max returns the larger of a and b.
func Max[T constraints.Ordered](a, b T) T {
	if a > b {
		return a
	}
	return b
}

// Percent returns part as a percentage of whole, clamped to [0, 100].
// A non-positive whole yields 0.
func Percent[T constraints.Integer | constraints.Float](part, whole T) float64 {
	if whole <= 0 {
		return 0
	}
	return Clamp(100*float64(part)/float64(whole), 0, 100)
}

// Mod returns the non-negative remainder of v divided by m. m must be positive.
func Mod[T constraints.Integer](v, m T) T {
	r := v % m
	if r < 0 {
		r += m
	}
	return r
}
