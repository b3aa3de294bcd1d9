package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/talgya/econsim/internal/economy"
	"github.com/talgya/econsim/internal/engine"
	"github.com/talgya/econsim/internal/world"
)

func seedCmd(g *globalFlags) *cobra.Command {
	gen := world.DefaultGenConfig()
	var force bool
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Generate a fresh world and save it",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(g, engine.Options{})
			if err != nil {
				return err
			}
			defer a.Close()

			if a.db.HasWorldState() {
				if !force {
					return errors.New("database already holds a world (use --force to replace it)")
				}
				if err := a.db.ClearHistory(); err != nil {
					return fmt.Errorf("clear history: %w", err)
				}
			}
			if err := a.seedWorld(gen); err != nil {
				return err
			}

			for _, st := range a.sim.States() {
				fmt.Printf("%-14s %-12s pop %-8s gdp/cap %s\n",
					st.CountryID, st.EconomicTier(), economy.Readable(st.Population), economy.Money(st.GDPPerCapita))
			}
			return nil
		},
	}
	addGenFlags(cmd, &gen)
	cmd.Flags().BoolVar(&force, "force", false, "replace an existing world")
	return cmd
}
