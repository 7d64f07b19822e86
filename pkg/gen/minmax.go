package gen

import "golang.org/x/exp/constraints"

type Ordered = constraints.Ordered

// Clamp returns v limited to the range [lo, hi].
// A NaN v is returned unchanged.
func Clamp[T Ordered](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// InRange returns true if lo <= v <= hi
func InRange[T Ordered](v, lo, hi T) bool {
	return v >= lo && v <= hi
}
