// Package mathx holds small generic numeric helpers shared by the nibble
// codec (BCD digit clamping) and the engine's history-index arithmetic
// (circular-buffer modulo), so neither has to hand-roll them.
package mathx

import "golang.org/x/exp/constraints"

// Clamp limits v to [lo, hi]. If lo > hi, the bounds are swapped.
func Clamp[T constraints.Ordered](v, lo, hi T) T {
	if hi < lo {
		lo, hi = hi, lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Between reports lo <= v && v <= hi (order-insensitive).
func Between[T constraints.Ordered](v, lo, hi T) bool {
	if hi < lo {
		lo, hi = hi, lo
	}
	return v >= lo && v <= hi
}

// Min/Max for convenience.
func Min[T constraints.Ordered](a, b T) T {
	if a < b {
		return a
	}
	return b
}
func Max[T constraints.Ordered](a, b T) T {
	if a > b {
		return a
	}
	return b
}

// Abs for signed integers.
func Abs[T ~int | ~int8 | ~int16 | ~int32 | ~int64](x T) T {
	if x < 0 {
		return -x
	}
	return x
}

// ModPositive is Euclidean modulo: unlike Go's %, the result is always in
// [0, m) even when v is negative. Used for circular-buffer index arithmetic
// where a difference of two indices can legitimately go negative.
func ModPositive[T ~int | ~int32 | ~int64](v, m T) T {
	r := v % m
	if r < 0 {
		r += m
	}
	return r
}
