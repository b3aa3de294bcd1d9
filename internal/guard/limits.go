package guard

import (
	"errors"
	"fmt"
	"math"
)

// Limits holds every floor and ceiling the growth math respects. Values come
// from tuning; nothing in the core hard-codes them.
type Limits struct {
	MinPopulation   float64 `yaml:"min_population" json:"min_population"`
	MinGDPPerCapita float64 `yaml:"min_gdp_per_capita" json:"min_gdp_per_capita"`
	MaxGDPPerCapita float64 `yaml:"max_gdp_per_capita" json:"max_gdp_per_capita"`
	MaxTotalGDP     float64 `yaml:"max_total_gdp" json:"max_total_gdp"`
	MaxPeriodRate   float64 `yaml:"max_period_rate" json:"max_period_rate"` // e.g. 0.20 = ±20% per period
}

// DefaultLimits returns the stock floors and ceilings.
func DefaultLimits() Limits {
	return Limits{
		MinPopulation:   1000,
		MinGDPPerCapita: 100,
		MaxGDPPerCapita: 5_000_000,
		MaxTotalGDP:     1e15,
		MaxPeriodRate:   0.20,
	}
}

// ErrInvalidLimits is returned by Validate for unusable limits.
var ErrInvalidLimits = errors.New("invalid limits")

// Validate checks that every limit is finite, positive and ordered.
func (l Limits) Validate() error {
	checks := []struct {
		name string
		v    float64
	}{
		{"min_population", l.MinPopulation},
		{"min_gdp_per_capita", l.MinGDPPerCapita},
		{"max_gdp_per_capita", l.MaxGDPPerCapita},
		{"max_total_gdp", l.MaxTotalGDP},
		{"max_period_rate", l.MaxPeriodRate},
	}
	for _, c := range checks {
		if !Finite(c.v) || c.v <= 0 {
			return fmt.Errorf("%w: %s must be a positive finite number, got %v", ErrInvalidLimits, c.name, c.v)
		}
	}
	if l.MaxPeriodRate >= 1 {
		return fmt.Errorf("%w: max_period_rate must be below 1, got %v", ErrInvalidLimits, l.MaxPeriodRate)
	}
	if l.MaxGDPPerCapita <= l.MinGDPPerCapita {
		return fmt.Errorf("%w: max_gdp_per_capita must exceed min_gdp_per_capita", ErrInvalidLimits)
	}
	if l.MaxTotalGDP < l.MinPopulation*l.MinGDPPerCapita {
		return fmt.Errorf("%w: max_total_gdp is below the floor product", ErrInvalidLimits)
	}
	return nil
}

// ClampRate bounds a per-period growth rate to ±MaxPeriodRate. Non-finite
// rates become zero.
func (l Limits) ClampRate(rate float64) (float64, Flags) {
	if !Finite(rate) {
		return 0, FlagNonFinite
	}
	if rate > l.MaxPeriodRate {
		return l.MaxPeriodRate, FlagRateClamped
	}
	if rate < -l.MaxPeriodRate {
		return -l.MaxPeriodRate, FlagRateClamped
	}
	return rate, 0
}

// BoundedCompound computes base × (1+rate)^periods, with rate first clamped to
// ±MaxPeriodRate and the result capped at absoluteCap. periods may be
// fractional; the fraction compounds geometrically so split intervals agree
// with a single interval of the same total length. Negative rates decay.
// The result is always finite and non-negative.
func (l Limits) BoundedCompound(base, rate, periods, absoluteCap float64) (float64, Flags) {
	var flags Flags
	if !Finite(base) || base < 0 {
		return 0, FlagNonFinite
	}
	if !Finite(periods) || periods < 0 {
		periods = 0
		flags |= FlagNonFinite
	}
	r, f := l.ClampRate(rate)
	flags |= f

	result := base * math.Pow(1+r, periods)
	if !Finite(result) {
		flags |= FlagNonFinite
		result = math.Inf(1)
	}
	if result > absoluteCap {
		return absoluteCap, flags | FlagCapped
	}
	return result, flags
}
