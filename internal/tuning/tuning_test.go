package tuning

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/talgya/econsim/internal/effectiveness"
	"github.com/talgya/econsim/internal/guard"
	"github.com/talgya/econsim/internal/simtime"
	"github.com/talgya/econsim/internal/tier"
)

func TestDefaultLoads(t *testing.T) {
	m, err := Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	if m.Limits != guard.DefaultLimits() {
		t.Fatalf("limits = %+v, want stock limits", m.Limits)
	}
	if m.GrowthPeriod() != simtime.Years(1) || m.TransitionWindow() != simtime.Days(365) {
		t.Fatalf("period %d window %d", m.GrowthPeriod(), m.TransitionWindow())
	}
	if m.EconomicTable.Len() != 7 || m.PopulationTable.Len() != 8 {
		t.Fatalf("tier tables: %d economic, %d population", m.EconomicTable.Len(), m.PopulationTable.Len())
	}
	if m.Catalog.RuleCount() == 0 || len(m.Catalog.Components()) == 0 || m.Catalog.Version == "" {
		t.Fatalf("catalog not built")
	}
	if err := m.Effectiveness.Validate(); err != nil {
		t.Fatalf("effectiveness config: %v", err)
	}
}

func TestDefaultTierBoundaries(t *testing.T) {
	m, err := Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	cases := []struct {
		table tier.Table
		v     float64
		want  tier.ID
		mult  float64
	}{
		{m.EconomicTable, 5000, "impoverished", 0.10},
		{m.EconomicTable, 10000, "developing", 0.075},
		{m.EconomicTable, 34999, "developed", 0.05},
		{m.EconomicTable, 65000, "extravagant", 0.005},
		{m.PopulationTable, 9_999_999, "t1", 1.20},
		{m.PopulationTable, 40_000_000, "t3", 1.00},
		{m.PopulationTable, 2e9, "tx", 0.60},
	}
	for _, c := range cases {
		r, err := c.table.Lookup(c.v)
		if err != nil {
			t.Fatalf("Lookup(%v): %v", c.v, err)
		}
		if r.ID != c.want || r.Multiplier != c.mult {
			t.Fatalf("Lookup(%v) = %s/%v, want %s/%v", c.v, r.ID, r.Multiplier, c.want, c.mult)
		}
	}
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	body := "limits:\n  max_period_rate: 0.1\ntime:\n  transition_window_days: 30\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	m, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if m.Limits.MaxPeriodRate != 0.1 || m.Limits.MinPopulation != 1000 {
		t.Fatalf("limits overlay wrong: %+v", m.Limits)
	}
	if m.TransitionWindow() != simtime.Days(30) || m.GrowthPeriod() != simtime.Years(1) {
		t.Fatalf("time overlay wrong: %+v", m.Time)
	}
	if m.EconomicTable.Len() != 7 {
		t.Fatalf("tiers should keep defaults")
	}
}

func TestLoadRejectsBadFiles(t *testing.T) {
	cases := map[string]string{
		"syntax":        "limits: [",
		"unknown field": "limitz:\n  min_population: 5\n",
		"bad version":   "version: 2\n",
		"bad limits":    "limits:\n  min_population: -1\n",
		"zero period":   "time:\n  growth_period_days: 0\n",
		"gap in tiers": `economic_tiers:
  - {lower: -.inf, upper: 100, id: a, multiplier: 0.1}
  - {lower: 200, upper: .inf, id: b, multiplier: 0.05}
`,
		"unknown rule type": "rules:\n  - {a: RULE_OF_LAW, b: MAGIC, kind: synergy, multiplier: 3}\n",
		"sign mismatch":     "rules:\n  - {a: RULE_OF_LAW, b: INDEPENDENT_JUDICIARY, kind: conflict, multiplier: 3}\n",
		"population rate":   "population:\n  base_growth_rate: 0.5\n",
		"scoring weights":   "effectiveness:\n  overall_weights: {tax: 0, economic_policy: 0, stability: 0, legitimacy: 0}\n",
	}
	dir := t.TempDir()
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name+".yaml")
			if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(path); err == nil {
				t.Fatalf("expected error for %q", body)
			}
		})
	}
}

func TestBuildWrapsStructuralErrors(t *testing.T) {
	_, err := Parse([]byte("economic_tiers:\n  - {lower: 0, upper: .inf, id: a, multiplier: 1}\n"))
	if !errors.Is(err, ErrInvalid) || !errors.Is(err, tier.ErrInvalidTable) {
		t.Fatalf("err = %v, want ErrInvalid wrapping ErrInvalidTable", err)
	}
	_, err = Parse([]byte("rules:\n  - {a: RULE_OF_LAW, b: RULE_OF_LAW, kind: synergy, multiplier: 1}\n"))
	if !errors.Is(err, effectiveness.ErrInvalidCatalog) {
		t.Fatalf("err = %v, want ErrInvalidCatalog", err)
	}
}

func TestEmptyFileIsDefault(t *testing.T) {
	m, err := Parse(nil)
	if err != nil {
		t.Fatalf("Parse(nil): %v", err)
	}
	d, _ := Default()
	if m.Catalog.Version != d.Catalog.Version {
		t.Fatalf("empty overlay changed catalog")
	}
}

func TestModelBuildsWorkingCalculator(t *testing.T) {
	m, err := Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	calc, err := m.Calculator()
	if err != nil {
		t.Fatalf("Calculator: %v", err)
	}
	scorer, err := m.Scorer(128)
	if err != nil {
		t.Fatalf("Scorer: %v", err)
	}
	s, err := calc.NewCountry("x", "X", 1_000_000, 20000, 0)
	if err != nil {
		t.Fatalf("NewCountry: %v", err)
	}
	out, err := calc.Advance(s, m.GrowthPeriod(), scorer.Score(nil))
	if err != nil {
		t.Fatalf("Advance: %v", err)
	}
	// Developing tier grows 7.5% a period at neutral effectiveness.
	if math.Abs(out.State.GDPPerCapita-21500) > 1e-6 {
		t.Fatalf("gdp = %v, want 21500", out.State.GDPPerCapita)
	}
}
