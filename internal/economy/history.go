package economy

import (
	"github.com/talgya/econsim/internal/guard"
	"github.com/talgya/econsim/internal/simtime"
	"github.com/talgya/econsim/internal/tier"
)

// HistoryPoint is an immutable record of a country's figures after one recompute.
// EconomicTier is the tier stored at classification time, so past points are
// never reclassified when tier tables change.
type HistoryPoint struct {
	ID             string       `json:"id" db:"id"`
	CountryID      CountryID    `json:"country_id" db:"country_id"`
	Tick           simtime.Tick `json:"tick" db:"tick"`
	Population     float64      `json:"population" db:"population"`
	GDPPerCapita   float64      `json:"gdp_per_capita" db:"gdp_per_capita"`
	TotalGDP       float64      `json:"total_gdp" db:"total_gdp"`
	EconomicTier   tier.ID      `json:"economic_tier" db:"economic_tier"`
	PopulationTier tier.ID      `json:"population_tier" db:"population_tier"`
	Effectiveness  float64      `json:"effectiveness" db:"effectiveness"`
	Flags          guard.Flags  `json:"flags" db:"flags"`
}

// Point captures the current figures of s as a history point (without an ID).
func (s State) Point(effectiveness float64, flags guard.Flags) HistoryPoint {
	return HistoryPoint{
		CountryID:      s.CountryID,
		Tick:           s.LastRecomputed,
		Population:     s.Population,
		GDPPerCapita:   s.GDPPerCapita,
		TotalGDP:       s.TotalGDP,
		EconomicTier:   s.EconomicTier(),
		PopulationTier: s.PopulationTier,
		Effectiveness:  effectiveness,
		Flags:          flags,
	}
}
