// Package engine drives simulated time forward and recomputes every country's
// economy as it passes.
package engine

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/talgya/econsim/internal/simtime"
)

const (
	// DefaultTicksPerStep advances one sim-day per real interval at speed 1.
	DefaultTicksPerStep = simtime.Duration(simtime.TicksPerDay)
	DefaultInterval     = time.Second
)

// Engine is the simulation clock. It is the only time provider the growth
// core sees; nothing downstream reads the wall clock.
type Engine struct {
	Interval     time.Duration    // real time between steps at speed 1
	TicksPerStep simtime.Duration // sim time added per step

	// Callbacks, populated during setup.
	OnStep func(tick simtime.Tick) // after every step
	OnDay  func(tick simtime.Tick) // once per sim-day boundary crossed
	OnYear func(tick simtime.Tick) // once per sim-year boundary crossed

	mu      sync.Mutex
	tick    simtime.Tick
	speed   float64 // 1.0 = base rate, 0 = paused
	running bool
}

// NewEngine creates a clock at tick start with default settings.
func NewEngine(start simtime.Tick) *Engine {
	return &Engine{
		Interval:     DefaultInterval,
		TicksPerStep: DefaultTicksPerStep,
		tick:         start,
		speed:        1.0,
	}
}

// Now returns the current simulated tick.
func (e *Engine) Now() simtime.Tick {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tick
}

// Speed returns the current speed multiplier.
func (e *Engine) Speed() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.speed
}

// SetSpeed changes the speed multiplier. Zero pauses; negative values are treated as zero.
func (e *Engine) SetSpeed(speed float64) {
	if speed < 0 || math.IsNaN(speed) {
		speed = 0
	}
	e.mu.Lock()
	e.speed = speed
	e.mu.Unlock()
	slog.Info("speed changed", "speed", speed)
}

// Running reports whether Run is active.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Run steps the clock until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) {
	e.mu.Lock()
	e.running = true
	e.mu.Unlock()
	slog.Info("simulation engine started", "tick", e.Now(), "time", simtime.Format(e.Now()), "speed", e.Speed())

	defer func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
		slog.Info("simulation engine stopped", "tick", e.Now())
	}()

	for {
		speed := e.Speed()
		wait := 100 * time.Millisecond // paused: poll for a speed change
		if speed > 0 {
			start := time.Now()
			e.Step()
			wait = time.Duration(float64(e.Interval)/speed) - time.Since(start)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(max(wait, 0)):
		}
	}
}

// Step advances the clock by TicksPerStep and fires callbacks for every day
// and year boundary crossed.
func (e *Engine) Step() simtime.Tick {
	return e.Advance(e.TicksPerStep)
}

// Advance moves the clock forward by d, firing callbacks as Step does.
func (e *Engine) Advance(d simtime.Duration) simtime.Tick {
	if d <= 0 {
		return e.Now()
	}
	e.mu.Lock()
	from := e.tick
	e.tick = from.Add(d)
	to := e.tick
	e.mu.Unlock()

	if e.OnStep != nil {
		e.OnStep(to)
	}
	if e.OnDay != nil {
		for _, t := range boundaries(from, to, simtime.TicksPerDay) {
			e.OnDay(t)
		}
	}
	if e.OnYear != nil {
		for _, t := range boundaries(from, to, simtime.TicksPerYear) {
			e.OnYear(t)
		}
	}
	return to
}

// boundaries lists the multiples of every in (from, to].
func boundaries(from, to simtime.Tick, every int64) []simtime.Tick {
	var out []simtime.Tick
	first := (int64(from)/every + 1) * every
	for t := first; t <= int64(to); t += every {
		out = append(out, simtime.Tick(t))
	}
	return out
}
