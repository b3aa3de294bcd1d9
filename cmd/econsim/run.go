package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/talgya/econsim/internal/api"
	"github.com/talgya/econsim/internal/engine"
	"github.com/talgya/econsim/internal/simtime"
	"github.com/talgya/econsim/internal/world"
)

func runCmd(g *globalFlags) *cobra.Command {
	gen := world.DefaultGenConfig()
	var (
		port     int
		speed    float64
		interval time.Duration
		workers  int
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Load or seed the world, then run the clock and the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(g, gen, port, speed, interval, workers)
		},
	}
	addGenFlags(cmd, &gen)
	cmd.Flags().IntVar(&port, "port", envInt(envPort, 8080), "HTTP API port")
	cmd.Flags().Float64Var(&speed, "speed", 1, "simulation speed multiplier (0 = paused)")
	cmd.Flags().DurationVar(&interval, "interval", engine.DefaultInterval, "wall time per step at speed 1")
	cmd.Flags().IntVar(&workers, "workers", 0, "parallel recomputes (0 = GOMAXPROCS)")
	return cmd
}

func runServe(g *globalFlags, gen world.GenConfig, port int, speed float64, interval time.Duration, workers int) error {
	a, err := openApp(g, engine.Options{Workers: workers})
	if err != nil {
		return err
	}
	defer a.Close()

	// ── Load or Seed World State ─────────────────────────────────────
	loaded, err := a.loadWorld()
	if err != nil {
		return err
	}
	if !loaded {
		slog.Info("no saved state found, seeding new world...")
		if err := a.seedWorld(gen); err != nil {
			return err
		}
	}

	// ── Clock ────────────────────────────────────────────────────────
	eng := engine.NewEngine(a.tick)
	eng.Interval = interval
	eng.SetSpeed(speed)

	// Recompute and auto-save every sim-day.
	eng.OnDay = func(tick simtime.Tick) {
		rep, err := a.sim.RecomputeAll(context.Background(), tick)
		if err != nil {
			slog.Error("daily recompute failed", "error", err)
		}
		a.sim.LogReport(rep)
		if err := a.db.SaveWorldState(a.sim, tick); err != nil {
			slog.Error("daily save failed", "error", err)
		}
	}
	eng.OnYear = func(tick simtime.Tick) {
		st := a.sim.Stats()
		slog.Info("year complete", "time", simtime.Format(tick), "advanced", st.Advanced, "failed", st.Failed, "flagged", st.Flagged)
	}

	// ── HTTP API ─────────────────────────────────────────────────────
	adminKey := os.Getenv(envAdminKey)
	if adminKey == "" {
		slog.Warn(envAdminKey + " not set, admin POST endpoints will be disabled")
	}
	apiServer := &api.Server{
		Sim:      a.sim,
		Eng:      eng,
		DB:       a.db,
		Tuning:   a.model,
		Port:     port,
		AdminKey: adminKey,
	}
	httpServer := apiServer.Start()

	// ── Start ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sum := a.sim.Summarize()
	fmt.Printf("\necon sim is running: %d countries.\n", sum.Countries)
	fmt.Printf("API: http://localhost:%d/api/v1/status\n", port)
	if a.tick > 0 {
		fmt.Printf("Resuming from tick %d (%s)\n", a.tick, simtime.Format(a.tick))
	}
	fmt.Println("Starting simulation... (Ctrl+C to stop)")

	eng.Run(ctx)
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Warn("http shutdown", "error", err)
	}

	// Final save on shutdown. Countries are brought up to the clock first.
	slog.Info("final save...")
	now := eng.Now()
	if _, err := a.sim.RecomputeAll(context.Background(), now); err != nil {
		slog.Error("final recompute failed", "error", err)
	}
	if err := a.db.SaveWorldState(a.sim, now); err != nil {
		return fmt.Errorf("final save: %w", err)
	}

	fmt.Println("Simulation stopped. World state saved.")
	return nil
}
