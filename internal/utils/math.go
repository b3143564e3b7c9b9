package utils

import (
	"math"

	"golang.org/x/exp/constraints"
)

// Clamp constrains v to the range [minVal, maxVal].
func Clamp[T constraints.Ordered](v, minVal, maxVal T) T {
	if v < minVal {
		return minVal
	}
	if v > maxVal {
		return maxVal
	}
	return v
}

// Clamp01 is Clamp(v, 0, 1) that also maps NaN to 0.
func Clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return Clamp(v, 0.0, 1.0)
}

// WrapUnit wraps v into [0, 1), the range used for HSL hues.
func WrapUnit(v float64) float64 {
	v = math.Mod(v, 1)
	if v < 0 {
		v++
	}
	return v
}

// SpectralBalance returns the share of a within a+b, or 0.5 when both are silent.
func SpectralBalance(a, b float64) float64 {
	total := a + b
	if total <= 1e-9 {
		return 0.5
	}
	return Clamp(a/total, 0.0, 1.0)
}

// ClampIndex bounds idx to the valid range for a slice of length.
func ClampIndex(idx, length int) int {
	if length <= 0 {
		return 0
	}
	if idx < 0 {
		return 0
	}
	if idx >= length {
		return length - 1
	}
	return idx
}

// IsPowerOfTwo reports whether n is a positive power of two.
func IsPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// RGBToInt packs 8-bit channels into the 0xRRGGBB integer form.
func RGBToInt(r, g, b uint8) uint {
	return uint(r)<<16 | uint(g)<<8 | uint(b)
}
