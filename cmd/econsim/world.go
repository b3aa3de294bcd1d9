package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/talgya/econsim/internal/engine"
	"github.com/talgya/econsim/internal/persistence"
	"github.com/talgya/econsim/internal/simtime"
	"github.com/talgya/econsim/internal/tuning"
	"github.com/talgya/econsim/internal/world"
)

// app bundles everything the subcommands share.
type app struct {
	model *tuning.Model
	db    *persistence.DB
	sim   *engine.Simulation
	tick  simtime.Tick
}

func (a *app) Close() {
	if a.db != nil {
		a.db.Close()
	}
}

func loadModel(path string) (*tuning.Model, error) {
	m, err := tuning.Load(path)
	if err != nil {
		return nil, err
	}
	source := path
	if source == "" {
		source = "built-in"
	}
	slog.Info("tuning loaded",
		"source", source,
		"components", len(m.Catalog.Components()),
		"rules", m.Catalog.RuleCount(),
		"catalog_version", m.Catalog.Version,
	)
	return m, nil
}

// openApp loads tuning, opens the database and builds an empty simulation
// whose history goes to the database.
func openApp(g *globalFlags, opts engine.Options) (*app, error) {
	model, err := loadModel(g.tuningPath)
	if err != nil {
		return nil, err
	}
	calc, err := model.Calculator()
	if err != nil {
		return nil, err
	}
	scorer, err := model.Scorer(0)
	if err != nil {
		return nil, err
	}
	sim, err := engine.NewSimulation(calc, scorer, opts)
	if err != nil {
		return nil, err
	}

	if dir := filepath.Dir(g.dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	db, err := persistence.Open(g.dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	slog.Info("database opened", "path", g.dbPath)
	sim.Sink = db

	return &app{model: model, db: db, sim: sim}, nil
}

// loadWorld restores saved state into a.sim. It reports false if the
// database holds no world.
func (a *app) loadWorld() (bool, error) {
	if !a.db.HasWorldState() {
		return false, nil
	}
	tick, err := a.db.LoadWorldState(a.sim)
	if err != nil {
		return false, fmt.Errorf("load world: %w", err)
	}
	a.tick = tick
	slog.Info("world state restored", "countries", a.sim.Len(), "tick", tick, "sim_time", simtime.Format(tick))
	return true, nil
}

// seedWorld generates a fresh world into a.sim and saves it.
func (a *app) seedWorld(cfg world.GenConfig) error {
	w, err := world.Seed(cfg, a.sim.Calc, a.model.Catalog, 0)
	if err != nil {
		return err
	}
	for _, c := range w.Countries {
		if err := a.sim.AddCountry(c.State, c.Components); err != nil {
			return err
		}
		slog.Debug("country seeded",
			"id", c.State.CountryID,
			"coord", fmt.Sprintf("%d,%d", c.Coord.Q, c.Coord.R),
			"tier", c.State.EconomicTier(),
			"components", len(c.Components),
		)
	}
	a.tick = 0
	if err := a.db.SaveWorldState(a.sim, 0); err != nil {
		return fmt.Errorf("initial save: %w", err)
	}
	sum := a.sim.Summarize()
	slog.Info("world seeded", "seed", w.Seed, "countries", sum.Countries, "tiers", sum.EconomicTiers)
	return nil
}

func addGenFlags(cmd *cobra.Command, cfg *world.GenConfig) {
	cmd.Flags().Int64Var(&cfg.Seed, "seed", 42, "world seed (0 = random)")
	cmd.Flags().IntVar(&cfg.Countries, "countries", cfg.Countries, "number of countries to seed")
	cmd.Flags().IntVar(&cfg.Radius, "radius", cfg.Radius, "hex grid radius")
}
