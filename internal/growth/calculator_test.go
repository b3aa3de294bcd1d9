package growth

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/talgya/econsim/internal/economy"
	"github.com/talgya/econsim/internal/effectiveness"
	"github.com/talgya/econsim/internal/guard"
	"github.com/talgya/econsim/internal/simtime"
	"github.com/talgya/econsim/internal/tier"
)

func mustTable(t *testing.T, name string, ranges []tier.Range) tier.Table {
	t.Helper()
	tbl, err := tier.NewTable(name, ranges)
	if err != nil {
		t.Fatalf("NewTable(%s): %v", name, err)
	}
	return tbl
}

// testCalculator uses a 3% middle tier covering 10k to 50k.
func testCalculator(t *testing.T, mutate func(*Config)) *Calculator {
	t.Helper()
	cfg := Config{
		Limits: guard.DefaultLimits(),
		Economic: tier.Classifier{
			Table: mustTable(t, "economic", []tier.Range{
				{Lower: math.Inf(-1), Upper: 10000, ID: "low", Multiplier: 0.05},
				{Lower: 10000, Upper: 50000, ID: "mid", Multiplier: 0.03},
				{Lower: 50000, Upper: math.Inf(1), ID: "high", Multiplier: 0.01},
			}),
			Window: simtime.Days(365),
		},
		Population: mustTable(t, "population", []tier.Range{
			{Lower: math.Inf(-1), Upper: 10_000_000, ID: "t1", Multiplier: 1.2},
			{Lower: 10_000_000, Upper: math.Inf(1), ID: "t2", Multiplier: 1.0},
		}),
		Period:             simtime.Years(1),
		BasePopulationRate: 0.01,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func newCountry(t *testing.T, c *Calculator, pop, gdp float64) economy.State {
	t.Helper()
	s, err := c.NewCountry("c1", "Testland", pop, gdp, 0)
	if err != nil {
		t.Fatalf("NewCountry: %v", err)
	}
	return s
}

func neutral() effectiveness.Snapshot {
	return effectiveness.Neutral(effectiveness.DefaultConfig())
}

func TestAdvanceOnePeriodEndToEnd(t *testing.T) {
	c := testCalculator(t, nil)
	s := newCountry(t, c, 1_000_000, 20000)

	out, err := c.Advance(s, simtime.Years(1), neutral())
	if err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if math.Abs(out.State.GDPPerCapita-20600) > 1e-6 {
		t.Fatalf("gdp per capita = %v, want 20600", out.State.GDPPerCapita)
	}
	if out.State.EconomicTier() != "mid" || out.Tier.Started {
		t.Fatalf("tier should be unchanged: %+v", out.Tier)
	}
	if _, ok := out.State.EconomicPhase.(tier.Stable); !ok {
		t.Fatalf("phase = %T, want Stable", out.State.EconomicPhase)
	}
	if want := 1_000_000 * 1.012; math.Abs(out.State.Population-want) > 1e-6 {
		t.Fatalf("population = %v, want %v", out.State.Population, want)
	}
	if out.State.TotalGDP != out.State.Population*out.State.GDPPerCapita {
		t.Fatalf("total gdp not reconciled")
	}
	if out.State.LastRecomputed != simtime.Tick(simtime.Years(1)) {
		t.Fatalf("last recomputed = %v", out.State.LastRecomputed)
	}
	if out.Point.ID == "" || out.Point.Tick != out.State.LastRecomputed || out.Point.Effectiveness != 50 {
		t.Fatalf("unexpected history point %+v", out.Point)
	}
	if out.Flags != 0 {
		t.Fatalf("flags = %v, want none", out.Flags)
	}
}

func TestAdvanceZeroElapsedIsIdentity(t *testing.T) {
	c := testCalculator(t, nil)
	s := newCountry(t, c, 2_500_000, 31000)
	s.LastRecomputed = 777

	out, err := c.Advance(s, 0, neutral())
	if err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if !reflect.DeepEqual(out.State, s) {
		t.Fatalf("zero elapsed changed state:\n got %+v\nwant %+v", out.State, s)
	}
}

func TestAdvanceFloorsHold(t *testing.T) {
	c := testCalculator(t, func(cfg *Config) {
		cfg.Economic.Table = mustTable(t, "collapse", []tier.Range{
			{Lower: math.Inf(-1), Upper: math.Inf(1), ID: "all", Multiplier: -1.0},
		})
		cfg.BasePopulationRate = -0.5
	})
	lim := c.Config().Limits
	s := newCountry(t, c, 5000, 150)

	for _, elapsed := range []simtime.Duration{simtime.Days(1), simtime.Years(1), simtime.Years(1e6)} {
		out, err := c.Advance(s, elapsed, neutral())
		if err != nil {
			t.Fatalf("Advance(%d): %v", elapsed, err)
		}
		if out.State.GDPPerCapita < lim.MinGDPPerCapita || out.State.Population < lim.MinPopulation {
			t.Fatalf("floors breached after %d ticks: %+v", elapsed, out.State)
		}
		if out.State.Population < s.Population {
			t.Fatalf("population shrank: %v -> %v", s.Population, out.State.Population)
		}
		if !out.Flags.Has(guard.FlagRateClamped) {
			t.Fatalf("expected rate clamp flag, got %v", out.Flags)
		}
		if err := out.State.Validate(lim); err != nil {
			t.Fatalf("result invalid: %v", err)
		}
	}

	out, err := c.Advance(s, simtime.Years(1e6), neutral())
	if err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if out.State.GDPPerCapita != lim.MinGDPPerCapita || !out.Flags.Has(guard.FlagFloored) {
		t.Fatalf("gdp should sit on its floor: %v %v", out.State.GDPPerCapita, out.Flags)
	}
}

func TestAdvanceNegativeElapsed(t *testing.T) {
	c := testCalculator(t, nil)
	s := newCountry(t, c, 1_000_000, 20000)
	if _, err := c.Advance(s, -1, neutral()); !errors.Is(err, ErrNegativeElapsed) {
		t.Fatalf("err = %v, want ErrNegativeElapsed", err)
	}
}

func TestAdvanceStructuralErrors(t *testing.T) {
	c := testCalculator(t, nil)
	base := newCountry(t, c, 1_000_000, 20000)

	broken := base
	broken.TotalGDP = 1
	if _, err := c.Advance(broken, simtime.Days(1), neutral()); !errors.Is(err, economy.ErrInvalidState) {
		t.Fatalf("mismatched total: err = %v", err)
	}

	unknown := base
	unknown.EconomicPhase = tier.Stable{Tier: "gone"}
	if _, err := c.Advance(unknown, simtime.Days(1), neutral()); !errors.Is(err, tier.ErrUnknownTier) {
		t.Fatalf("unknown economic tier: err = %v", err)
	}

	unknownPop := base
	unknownPop.PopulationTier = "t9"
	if _, err := c.Advance(unknownPop, simtime.Days(1), neutral()); !errors.Is(err, tier.ErrUnknownTier) {
		t.Fatalf("unknown population tier: err = %v", err)
	}
}

func TestAdvanceSplitIntervalsMatchSingle(t *testing.T) {
	c := testCalculator(t, nil)
	s := newCountry(t, c, 1_000_000, 20000)

	whole, err := c.Advance(s, simtime.Years(1), neutral())
	if err != nil {
		t.Fatalf("Advance: %v", err)
	}
	half, err := c.Advance(s, simtime.Years(0.5), neutral())
	if err != nil {
		t.Fatalf("Advance: %v", err)
	}
	split, err := c.Advance(half.State, simtime.Years(0.5), neutral())
	if err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if rel := math.Abs(split.State.GDPPerCapita-whole.State.GDPPerCapita) / whole.State.GDPPerCapita; rel > 1e-12 {
		t.Fatalf("split %v vs whole %v", split.State.GDPPerCapita, whole.State.GDPPerCapita)
	}
	if split.State.LastRecomputed != whole.State.LastRecomputed {
		t.Fatalf("timestamps differ")
	}
}

func TestAdvanceStartsAndBlendsTransition(t *testing.T) {
	c := testCalculator(t, nil)
	s := newCountry(t, c, 1_000_000, 9900)

	first, err := c.Advance(s, simtime.Years(1), neutral())
	if err != nil {
		t.Fatalf("Advance: %v", err)
	}
	tr, ok := first.State.Transition()
	if !ok || tr.From != "low" || tr.To != "mid" || tr.StartedAt != first.State.LastRecomputed {
		t.Fatalf("expected low->mid transition at interval end, got %#v", first.State.EconomicPhase)
	}
	if first.State.EconomicTier() != "low" || first.Point.EconomicTier != "low" {
		t.Fatalf("stored tier should remain low during transition")
	}
	// The first interval grew at the departing tier's full rate.
	if math.Abs(first.State.GDPPerCapita-9900*1.05) > 1e-6 {
		t.Fatalf("gdp = %v, want %v", first.State.GDPPerCapita, 9900*1.05)
	}

	second, err := c.Advance(first.State, simtime.Days(180), neutral())
	if err != nil {
		t.Fatalf("Advance: %v", err)
	}
	want := guard.Lerp(0.05, 0.03, 0)
	if second.Rate != want {
		t.Fatalf("rate at transition start = %v, want %v", second.Rate, want)
	}
	if math.Abs(second.Tier.Progress-180.0/365.0) > 1e-12 {
		t.Fatalf("progress = %v", second.Tier.Progress)
	}

	third, err := c.Advance(second.State, simtime.Days(200), neutral())
	if err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if want := guard.Lerp(0.05, 0.03, 180.0/365.0); math.Abs(third.Rate-want) > 1e-12 {
		t.Fatalf("blended rate = %v, want %v", third.Rate, want)
	}
	if !third.Tier.Finalized || third.State.EconomicTier() != "mid" {
		t.Fatalf("transition should finalize after the window: %+v", third.Tier)
	}
}

func TestAdvanceTotalGDPCap(t *testing.T) {
	c := testCalculator(t, func(cfg *Config) {
		cfg.Limits.MaxTotalGDP = 1e10
	})
	s := newCountry(t, c, 1_000_000, 9900)

	out, err := c.Advance(s, simtime.Years(1), neutral())
	if err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if !out.Flags.Has(guard.FlagCapped) {
		t.Fatalf("expected capped flag, got %v", out.Flags)
	}
	if out.State.TotalGDP > 1e10*(1+1e-12) {
		t.Fatalf("total gdp %v above cap", out.State.TotalGDP)
	}
	if err := out.State.Validate(c.Config().Limits); err != nil {
		t.Fatalf("capped state invalid: %v", err)
	}
}

func TestAdvanceGrowthModifierScalesRate(t *testing.T) {
	c := testCalculator(t, nil)
	s := newCountry(t, c, 1_000_000, 20000)
	s.LocalGrowthScalar = 2

	snap := neutral()
	snap.GrowthModifier = 1.5
	out, err := c.Advance(s, simtime.Years(1), snap)
	if err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if want := 0.03 * 2 * 1.5; math.Abs(out.Rate-want) > 1e-15 {
		t.Fatalf("rate = %v, want %v", out.Rate, want)
	}
	if math.Abs(out.State.GDPPerCapita-20000*1.09) > 1e-6 {
		t.Fatalf("gdp = %v", out.State.GDPPerCapita)
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	good := testCalculator(t, nil).Config()
	cases := map[string]func(*Config){
		"zero period":     func(c *Config) { c.Period = 0 },
		"bad limits":      func(c *Config) { c.Limits.MinPopulation = -1 },
		"negative window": func(c *Config) { c.Economic.Window = -1 },
		"no tables":       func(c *Config) { c.Population = tier.Table{} },
		"nan base rate":   func(c *Config) { c.BasePopulationRate = math.NaN() },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := good
			mutate(&cfg)
			if _, err := New(cfg); !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("err = %v, want ErrInvalidConfig", err)
			}
		})
	}
}
