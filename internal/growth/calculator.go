// Package growth advances a country's economy across an interval of simulated
// time: GDP per capita compounds at a tier- and policy-dependent rate,
// population follows its own tier curve, and the economic tier is re-evaluated
// against the new figures.
package growth

import (
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/talgya/econsim/internal/economy"
	"github.com/talgya/econsim/internal/effectiveness"
	"github.com/talgya/econsim/internal/guard"
	"github.com/talgya/econsim/internal/simtime"
	"github.com/talgya/econsim/internal/tier"
)

var (
	// ErrNegativeElapsed is returned when asked to advance backwards in time.
	ErrNegativeElapsed = errors.New("negative elapsed time")
	// ErrInvalidConfig is returned by New for unusable calculator settings.
	ErrInvalidConfig = errors.New("invalid growth config")
)

// Config wires the calculator to its limits and tier tables.
type Config struct {
	Limits             guard.Limits
	Economic           tier.Classifier
	Population         tier.Table
	Period             simtime.Duration // one growth period, normally a simulated year
	BasePopulationRate float64          // per period, before the population-tier multiplier
}

// Calculator is stateless after construction and safe for concurrent use.
type Calculator struct {
	cfg Config
}

// New validates cfg and returns a calculator.
func New(cfg Config) (*Calculator, error) {
	if err := cfg.Limits.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if cfg.Period <= 0 {
		return nil, fmt.Errorf("%w: growth period must be positive, got %d", ErrInvalidConfig, cfg.Period)
	}
	if cfg.Economic.Window < 0 {
		return nil, fmt.Errorf("%w: transition window must not be negative", ErrInvalidConfig)
	}
	if cfg.Economic.Table.Len() == 0 || cfg.Population.Len() == 0 {
		return nil, fmt.Errorf("%w: tier tables are required", ErrInvalidConfig)
	}
	if !guard.Finite(cfg.BasePopulationRate) {
		return nil, fmt.Errorf("%w: base population rate must be finite", ErrInvalidConfig)
	}
	return &Calculator{cfg: cfg}, nil
}

// Config returns the calculator's settings.
func (c *Calculator) Config() Config { return c.cfg }

// Outcome is the result of one Advance.
type Outcome struct {
	State economy.State
	Point economy.HistoryPoint
	Flags guard.Flags

	Rate         float64     // requested per-period GDP-per-capita rate before clamping
	Periods      float64     // growth periods covered by the interval
	Tier         tier.Result // classification at the end of the interval
	PopulationTo tier.ID
}

// NewCountry builds a validated state for a country entering the simulation at
// tick at, classified into its economic and population tiers.
func (c *Calculator) NewCountry(id economy.CountryID, name string, population, gdpPerCapita float64, at simtime.Tick) (economy.State, error) {
	econ, err := c.cfg.Economic.Initial(gdpPerCapita)
	if err != nil {
		return economy.State{}, fmt.Errorf("classify %s gdp per capita: %w", id, err)
	}
	pop, err := c.cfg.Population.Lookup(population)
	if err != nil {
		return economy.State{}, fmt.Errorf("classify %s population: %w", id, err)
	}
	s := economy.NewState(id, name, population, gdpPerCapita, at, econ.Tier, pop.ID)
	if err := s.Validate(c.cfg.Limits); err != nil {
		return economy.State{}, err
	}
	return s, nil
}

// Advance moves state forward by elapsed simulated time under the given
// effectiveness snapshot. Numeric edge cases are absorbed and reported in
// Outcome.Flags; structural problems (negative elapsed, invalid input state,
// tiers missing from the tables) are returned as errors.
func (c *Calculator) Advance(state economy.State, elapsed simtime.Duration, snap effectiveness.Snapshot) (Outcome, error) {
	if elapsed < 0 {
		return Outcome{}, fmt.Errorf("%w: %d ticks for %s", ErrNegativeElapsed, elapsed, state.CountryID)
	}
	lim := c.cfg.Limits
	if err := state.Validate(lim); err != nil {
		return Outcome{}, err
	}
	popRange, err := c.cfg.Population.Get(state.PopulationTier)
	if err != nil {
		return Outcome{}, fmt.Errorf("population tier of %s: %w", state.CountryID, err)
	}

	// Rate for the interval comes from the classification at its start.
	start, err := c.cfg.Economic.Classify(state.GDPPerCapita, state.EconomicPhase, state.LastRecomputed)
	if err != nil {
		return Outcome{}, fmt.Errorf("economic tier of %s: %w", state.CountryID, err)
	}

	if elapsed == 0 {
		return Outcome{
			State:        state,
			Point:        c.point(state, snap, 0),
			Tier:         start,
			PopulationTo: state.PopulationTier,
		}, nil
	}

	var flags guard.Flags
	periods := float64(elapsed) / float64(c.cfg.Period)
	now := state.LastRecomputed.Add(elapsed)

	modifier := snap.GrowthModifier
	if !guard.Finite(modifier) || modifier < 0 {
		modifier = 1
		flags |= guard.FlagNonFinite
	}
	rate := start.Multiplier * state.LocalGrowthScalar * modifier

	gdp, f := lim.BoundedCompound(state.GDPPerCapita, rate, periods, lim.MaxGDPPerCapita)
	flags |= f
	gdp, f = guard.Floor(gdp, lim.MinGDPPerCapita)
	flags |= f

	// Population never shrinks through this model, and is capped where even the
	// GDP-per-capita floor would breach the total-GDP ceiling.
	popRate := math.Max(0, c.cfg.BasePopulationRate*popRange.Multiplier)
	maxPop := lim.MaxTotalGDP / lim.MinGDPPerCapita
	pop, f := lim.BoundedCompound(state.Population, popRate, periods, maxPop)
	flags |= f
	pop, f = guard.Floor(pop, lim.MinPopulation)
	flags |= f

	if pop*gdp > lim.MaxTotalGDP {
		gdp = math.Max(guard.SafeDivide(lim.MaxTotalGDP, pop, lim.MinGDPPerCapita), lim.MinGDPPerCapita)
		flags |= guard.FlagCapped
	}

	next := state
	next.Population = pop
	next.GDPPerCapita = gdp
	next.Reconcile()
	next.LastRecomputed = now

	end, err := c.cfg.Economic.Classify(next.GDPPerCapita, start.Phase, now)
	if err != nil {
		return Outcome{}, fmt.Errorf("reclassify %s: %w", state.CountryID, err)
	}
	next.EconomicPhase = end.Phase

	popTier, err := c.cfg.Population.Lookup(next.Population)
	if err != nil {
		return Outcome{}, fmt.Errorf("reclassify %s population: %w", state.CountryID, err)
	}
	next.PopulationTier = popTier.ID

	return Outcome{
		State:        next,
		Point:        c.point(next, snap, flags),
		Flags:        flags,
		Rate:         rate,
		Periods:      periods,
		Tier:         end,
		PopulationTo: popTier.ID,
	}, nil
}

func (c *Calculator) point(s economy.State, snap effectiveness.Snapshot, flags guard.Flags) economy.HistoryPoint {
	p := s.Point(snap.Overall, flags)
	p.ID = uuid.NewString()
	return p
}
