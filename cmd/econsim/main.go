// Command econsim runs the economic simulation: countries grow against
// simulated time under the effectiveness of their institutions.
package main

import (
	"log/slog"
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

const version = "0.3.0"

// Process settings come from the environment; flags override them.
const (
	envDB       = "ECONSIM_DB"
	envPort     = "ECONSIM_PORT"
	envAdminKey = "ECONSIM_ADMIN_KEY"
	envTuning   = "ECONSIM_TUNING"
)

type globalFlags struct {
	dbPath     string
	tuningPath string
	verbose    bool
}

func main() {
	var g globalFlags

	root := &cobra.Command{
		Use:   "econsim",
		Short: "Economic simulation and institutional effectiveness engine",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelInfo
			if g.verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))
		},
		SilenceUsage: true,
	}
	root.Version = version
	root.SetVersionTemplate("{{.Version}}\n")

	root.PersistentFlags().StringVar(&g.dbPath, "db", envOr(envDB, "data/econsim.db"), "SQLite database path")
	root.PersistentFlags().StringVar(&g.tuningPath, "tuning", os.Getenv(envTuning), "tuning YAML overlay (empty = built-in defaults)")
	root.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(runCmd(&g))
	root.AddCommand(seedCmd(&g))
	root.AddCommand(advanceCmd(&g))
	root.AddCommand(tuningCmd(&g))
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}
