package engine

import (
	"log/slog"

	"github.com/dustin/go-humanize"

	"github.com/talgya/econsim/internal/economy"
	"github.com/talgya/econsim/internal/guard"
	"github.com/talgya/econsim/internal/simtime"
	"github.com/talgya/econsim/internal/tier"
)

// Summary aggregates figures across every country.
type Summary struct {
	Countries        int             `json:"countries"`
	Population       float64         `json:"population"`
	TotalGDP         float64         `json:"total_gdp"`
	MeanGDPPerCapita float64         `json:"mean_gdp_per_capita"`
	Transitioning    int             `json:"transitioning"`
	EconomicTiers    map[tier.ID]int `json:"economic_tiers"`
}

// Summarize computes a world summary from the current states.
func (s *Simulation) Summarize() Summary {
	sum := Summary{EconomicTiers: make(map[tier.ID]int)}
	for _, st := range s.States() {
		sum.Countries++
		sum.Population += st.Population
		sum.TotalGDP += st.TotalGDP
		sum.EconomicTiers[st.EconomicTier()]++
		if _, ok := st.Transition(); ok {
			sum.Transitioning++
		}
	}
	sum.MeanGDPPerCapita = guard.SafeDivide(sum.TotalGDP, sum.Population, 0)
	return sum
}

// LogReport writes the periodic summary after a recompute batch.
func (s *Simulation) LogReport(rep Report) {
	sum := s.Summarize()
	slog.Info("daily report",
		"tick", rep.Tick,
		"time", simtime.Format(rep.Tick),
		"countries", sum.Countries,
		"advanced", rep.Advanced,
		"failed", rep.Failed,
		"flagged", rep.Flagged,
		"transitions", rep.Transitions,
		"population", humanize.Comma(int64(sum.Population)),
		"world_gdp", economy.Readable(sum.TotalGDP),
		"gdp_per_capita", economy.Money(sum.MeanGDPPerCapita),
	)
	if rep.Failed > 0 {
		slog.Warn("countries failed to recompute", "failed", rep.Failed, "tick", rep.Tick)
	}
}
