// Package economy holds the country-level data model the growth core reads and
// writes: the mutable economic state, attached policy components, and the
// immutable history points emitted after each recompute.
package economy

import (
	"errors"
	"fmt"
	"math"

	"github.com/talgya/econsim/internal/guard"
	"github.com/talgya/econsim/internal/simtime"
	"github.com/talgya/econsim/internal/tier"
)

// ErrInvalidState is returned when a state already violates its invariants on input.
var ErrInvalidState = errors.New("invalid country state")

// CountryID is an opaque country identifier.
type CountryID string

// State is the authoritative economic record for one country.
// Baseline fields are set once; current fields change on every recompute.
type State struct {
	CountryID CountryID `json:"country_id"`
	Name      string    `json:"name"`

	// Baseline (immutable once set)
	BaselinePopulation   float64      `json:"baseline_population"`
	BaselineGDPPerCapita float64      `json:"baseline_gdp_per_capita"`
	BaselineAt           simtime.Tick `json:"baseline_at"`

	// Current figures
	Population        float64    `json:"population"`
	GDPPerCapita      float64    `json:"gdp_per_capita"`
	TotalGDP          float64    `json:"total_gdp"` // always Population × GDPPerCapita
	EconomicPhase     tier.Phase `json:"-"`
	PopulationTier    tier.ID    `json:"population_tier"`
	LocalGrowthScalar float64    `json:"local_growth_scalar"` // (0, ∞), default 1.0

	LastRecomputed simtime.Tick `json:"last_recomputed"`
}

// NewState builds a reconciled state from baseline figures. The caller supplies
// the tiers the baseline figures classify into.
func NewState(id CountryID, name string, population, gdpPerCapita float64, at simtime.Tick, econTier, popTier tier.ID) State {
	return State{
		CountryID:            id,
		Name:                 name,
		BaselinePopulation:   population,
		BaselineGDPPerCapita: gdpPerCapita,
		BaselineAt:           at,
		Population:           population,
		GDPPerCapita:         gdpPerCapita,
		TotalGDP:             population * gdpPerCapita,
		EconomicPhase:        tier.Stable{Tier: econTier},
		PopulationTier:       popTier,
		LocalGrowthScalar:    1.0,
		LastRecomputed:       at,
	}
}

// EconomicTier returns the stored economic tier. During a transition this is
// still the departing tier.
func (s State) EconomicTier() tier.ID {
	if s.EconomicPhase == nil {
		return ""
	}
	return s.EconomicPhase.Stored()
}

// Transition returns the in-progress tier transition, if any.
func (s State) Transition() (tier.Transitioning, bool) {
	t, ok := s.EconomicPhase.(tier.Transitioning)
	return t, ok
}

// Reconcile recomputes TotalGDP from population and GDP per capita.
func (s *State) Reconcile() {
	s.TotalGDP = s.Population * s.GDPPerCapita
}

// Validate reports invariant violations. These indicate corrupted input and
// are never clamped away.
func (s State) Validate(l guard.Limits) error {
	if s.CountryID == "" {
		return fmt.Errorf("%w: missing country id", ErrInvalidState)
	}
	if !guard.Finite(s.Population) || s.Population < l.MinPopulation {
		return fmt.Errorf("%w: %s population %v below floor %v", ErrInvalidState, s.CountryID, s.Population, l.MinPopulation)
	}
	if !guard.Finite(s.GDPPerCapita) || s.GDPPerCapita < l.MinGDPPerCapita {
		return fmt.Errorf("%w: %s gdp per capita %v below floor %v", ErrInvalidState, s.CountryID, s.GDPPerCapita, l.MinGDPPerCapita)
	}
	product := s.Population * s.GDPPerCapita
	if !guard.Finite(s.TotalGDP) || math.Abs(s.TotalGDP-product) > 1e-9*math.Max(1, product) {
		return fmt.Errorf("%w: %s total gdp %v does not match population × gdp per capita %v", ErrInvalidState, s.CountryID, s.TotalGDP, product)
	}
	if !guard.Finite(s.LocalGrowthScalar) || s.LocalGrowthScalar <= 0 {
		return fmt.Errorf("%w: %s local growth scalar must be positive, got %v", ErrInvalidState, s.CountryID, s.LocalGrowthScalar)
	}
	if s.EconomicPhase == nil {
		return fmt.Errorf("%w: %s has no economic tier", ErrInvalidState, s.CountryID)
	}
	if s.PopulationTier == "" {
		return fmt.Errorf("%w: %s has no population tier", ErrInvalidState, s.CountryID)
	}
	return nil
}
