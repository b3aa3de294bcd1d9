// Package simtime defines simulated-time values. One tick is one simulated minute.
// The clock that produces ticks lives in the engine package; everything in the
// growth core receives ticks as plain values and never reads a wall clock.
package simtime

import "fmt"

// Tick is a point on the simulated timeline (minutes since the simulation epoch).
type Tick int64

// Duration is a signed span of simulated time, in ticks.
type Duration int64

const (
	TicksPerHour = 60
	TicksPerDay  = 1440   // 24 hours × 60
	DaysPerYear  = 365
	TicksPerYear = 525600 // 365 days × 1440
)

// Days converts a (possibly fractional) day count to a Duration.
func Days(d float64) Duration {
	return Duration(d * TicksPerDay)
}

// Years converts a (possibly fractional) year count to a Duration.
func Years(y float64) Duration {
	return Duration(y * TicksPerYear)
}

// Days returns the duration as fractional simulated days.
func (d Duration) Days() float64 {
	return float64(d) / TicksPerDay
}

// Years returns the duration as fractional simulated years.
func (d Duration) Years() float64 {
	return float64(d) / TicksPerYear
}

// Sub returns the duration t-u.
func (t Tick) Sub(u Tick) Duration {
	return Duration(t - u)
}

// Add returns t+d.
func (t Tick) Add(d Duration) Tick {
	return t + Tick(d)
}

// Format returns a human-readable simulated time string for a tick.
func Format(t Tick) string {
	sign := ""
	if t < 0 {
		sign = "-"
		t = -t
	}
	totalMinutes := int64(t)
	minutes := totalMinutes % 60
	totalHours := totalMinutes / 60
	hours := totalHours % 24
	totalDays := totalHours / 24
	day := totalDays%DaysPerYear + 1
	year := totalDays/DaysPerYear + 1

	return fmt.Sprintf("%sDay %d, %d:%02d Year %d", sign, day, hours, minutes, year)
}

func (t Tick) String() string {
	return Format(t)
}
