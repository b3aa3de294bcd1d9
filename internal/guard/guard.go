// Package guard provides the numeric safety helpers used by every part of the
// growth core: division guards, range clamps and capped compounding.
// Nothing in here returns an error. Numeric edge cases are absorbed and, where
// it matters to the caller, reported through Flags.
package guard

import (
	"math"
	"strings"
)

// Flags records which numeric guards fired during a computation.
type Flags uint16

const (
	FlagRateClamped Flags = 1 << iota // per-period rate was outside ±MaxPeriodRate
	FlagCapped                        // a result hit an absolute ceiling
	FlagFloored                       // a result was raised to its floor
	FlagNonFinite                     // a NaN/Inf input was replaced
	FlagZeroDivide                    // a division fell back because the denominator was zero
)

var flagNames = []struct {
	flag Flags
	name string
}{
	{FlagRateClamped, "rate_clamped"},
	{FlagCapped, "capped"},
	{FlagFloored, "floored"},
	{FlagNonFinite, "non_finite"},
	{FlagZeroDivide, "zero_divide"},
}

// Has reports whether all bits of f2 are set.
func (f Flags) Has(f2 Flags) bool {
	return f&f2 == f2
}

func (f Flags) String() string {
	if f == 0 {
		return "none"
	}
	var parts []string
	for _, fn := range flagNames {
		if f.Has(fn.flag) {
			parts = append(parts, fn.name)
		}
	}
	return strings.Join(parts, ",")
}

// Finite reports whether v is neither NaN nor ±Inf.
func Finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// SafeDivide returns numerator/denominator, or fallback when the denominator is
// zero or not finite. A non-finite quotient also yields fallback.
func SafeDivide(numerator, denominator, fallback float64) float64 {
	if denominator == 0 || !Finite(denominator) {
		return fallback
	}
	q := numerator / denominator
	if !Finite(q) {
		return fallback
	}
	return q
}

// Clamp bounds value to [min, max]. NaN clamps to min.
func Clamp(value, min, max float64) float64 {
	if math.IsNaN(value) || value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// Lerp interpolates linearly between a and b. t is clamped to [0, 1].
func Lerp(a, b, t float64) float64 {
	t = Clamp(t, 0, 1)
	return a + (b-a)*t
}

// Floor raises value to floor, flagging when it does. Non-finite values floor too.
func Floor(value, floor float64) (float64, Flags) {
	if !Finite(value) {
		return floor, FlagNonFinite | FlagFloored
	}
	if value < floor {
		return floor, FlagFloored
	}
	return value, 0
}
