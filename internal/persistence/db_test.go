package persistence

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/google/uuid"

	"github.com/talgya/econsim/internal/economy"
	"github.com/talgya/econsim/internal/engine"
	"github.com/talgya/econsim/internal/guard"
	"github.com/talgya/econsim/internal/simtime"
	"github.com/talgya/econsim/internal/tier"
	"github.com/talgya/econsim/internal/tuning"
)

func openTest(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "econsim.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestCountriesRoundTripWithTransition(t *testing.T) {
	db := openTest(t)
	stable := economy.NewState("a", "Alpha", 2_000_000, 12000, 0, "developing", "t1")
	moving := economy.NewState("b", "Beta", 40_000_000, 24900, 0, "developing", "t3")
	moving.EconomicPhase = tier.Transitioning{From: "developing", To: "developed", StartedAt: 1440, Window: simtime.Days(365)}
	moving.LastRecomputed = 2880

	if db.HasWorldState() {
		t.Fatalf("fresh db reports world state")
	}
	if err := db.SaveCountries([]economy.State{moving, stable}); err != nil {
		t.Fatalf("SaveCountries: %v", err)
	}
	if !db.HasWorldState() {
		t.Fatalf("HasWorldState = false after save")
	}

	got, err := db.LoadCountries()
	if err != nil {
		t.Fatalf("LoadCountries: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("loaded %d countries", len(got))
	}
	if !reflect.DeepEqual(got[0], stable) {
		t.Fatalf("stable country:\n got %+v\nwant %+v", got[0], stable)
	}
	if !reflect.DeepEqual(got[1], moving) {
		t.Fatalf("transitioning country:\n got %+v\nwant %+v", got[1], moving)
	}

	// Full replace.
	if err := db.SaveCountries([]economy.State{stable}); err != nil {
		t.Fatalf("SaveCountries: %v", err)
	}
	if got, _ := db.LoadCountries(); len(got) != 1 {
		t.Fatalf("save should replace, got %d rows", len(got))
	}
}

func TestComponentsRoundTrip(t *testing.T) {
	db := openTest(t)
	comps := []economy.Component{
		{ID: "a-1", CountryID: "a", Type: "RULE_OF_LAW", Effectiveness: 72.5, Active: true, ImplementedAt: 10},
		{ID: "a-2", CountryID: "a", Type: "FLAT_TAX", Effectiveness: 40, Active: false},
		{ID: "b-1", CountryID: "b", Type: "MIXED_ECONOMY", Effectiveness: 55, Active: true},
	}
	if err := db.SaveComponents(comps); err != nil {
		t.Fatalf("SaveComponents: %v", err)
	}
	got, err := db.LoadComponents()
	if err != nil {
		t.Fatalf("LoadComponents: %v", err)
	}
	if !reflect.DeepEqual(got["a"], comps[:2]) || !reflect.DeepEqual(got["b"], comps[2:]) {
		t.Fatalf("components = %+v", got)
	}
}

func TestHistoryNewestFirst(t *testing.T) {
	db := openTest(t)
	var points []economy.HistoryPoint
	for i := 1; i <= 5; i++ {
		points = append(points, economy.HistoryPoint{
			ID:             uuid.NewString(),
			CountryID:      "a",
			Tick:           simtime.Tick(i * simtime.TicksPerDay),
			Population:     1e6,
			GDPPerCapita:   20000 + float64(i),
			TotalGDP:       1e6 * (20000 + float64(i)),
			EconomicTier:   "developing",
			PopulationTier: "t1",
			Effectiveness:  50,
			Flags:          guard.FlagCapped | guard.FlagFloored,
		})
	}
	if err := db.AppendHistory(points); err != nil {
		t.Fatalf("AppendHistory: %v", err)
	}
	// Re-appending the same points is a no-op.
	if err := db.AppendHistory(points[:2]); err != nil {
		t.Fatalf("AppendHistory again: %v", err)
	}

	got, err := db.History("a", 3)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(got) != 3 || got[0].Tick != points[4].Tick || got[2].Tick != points[2].Tick {
		t.Fatalf("history order wrong: %+v", got)
	}
	if !reflect.DeepEqual(got[0], points[4]) {
		t.Fatalf("point mismatch:\n got %+v\nwant %+v", got[0], points[4])
	}
	all, _ := db.History("a", 100)
	if len(all) != 5 {
		t.Fatalf("duplicate history rows: %d", len(all))
	}
	if none, _ := db.History("zz", 10); len(none) != 0 {
		t.Fatalf("unexpected history for unknown country")
	}
}

func TestMeta(t *testing.T) {
	db := openTest(t)
	if tick, err := db.LastTick(); err != nil || tick != 0 {
		t.Fatalf("LastTick on empty db = %d, %v", tick, err)
	}
	if err := db.SaveMeta("last_tick", "8640"); err != nil {
		t.Fatalf("SaveMeta: %v", err)
	}
	if tick, err := db.LastTick(); err != nil || tick != 8640 {
		t.Fatalf("LastTick = %d, %v", tick, err)
	}
}

func TestWorldStateSaveAndRestore(t *testing.T) {
	db := openTest(t)
	m, err := tuning.Default()
	if err != nil {
		t.Fatal(err)
	}
	calc, _ := m.Calculator()
	scorer, _ := m.Scorer(0)

	sim, err := engine.NewSimulation(calc, scorer, engine.Options{})
	if err != nil {
		t.Fatal(err)
	}
	sim.Sink = db
	st, err := calc.NewCountry("a", "Alpha", 3_000_000, 24000, 0)
	if err != nil {
		t.Fatal(err)
	}
	comps := []economy.Component{{ID: "a-1", CountryID: "a", Type: "RULE_OF_LAW", Effectiveness: 80, Active: true}}
	if err := sim.AddCountry(st, comps); err != nil {
		t.Fatal(err)
	}
	now := simtime.Tick(simtime.Years(1))
	if _, err := sim.RecomputeAll(context.Background(), now); err != nil {
		t.Fatalf("RecomputeAll: %v", err)
	}
	if err := db.SaveWorldState(sim, now); err != nil {
		t.Fatalf("SaveWorldState: %v", err)
	}

	restored, _ := engine.NewSimulation(calc, scorer, engine.Options{})
	tick, err := db.LoadWorldState(restored)
	if err != nil {
		t.Fatalf("LoadWorldState: %v", err)
	}
	if tick != now || restored.LastTick() != now {
		t.Fatalf("restored tick = %d", tick)
	}
	want, _, _ := sim.Country("a")
	got, gotComps, err := restored.Country("a")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, want) || !reflect.DeepEqual(gotComps, comps) {
		t.Fatalf("restored state differs:\n got %+v\nwant %+v", got, want)
	}
	hist, err := db.History("a", 10)
	if err != nil || len(hist) != 1 {
		t.Fatalf("history rows = %d, %v", len(hist), err)
	}
}
