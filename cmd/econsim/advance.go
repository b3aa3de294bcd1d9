package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/talgya/econsim/internal/economy"
	"github.com/talgya/econsim/internal/engine"
	"github.com/talgya/econsim/internal/simtime"
)

func advanceCmd(g *globalFlags) *cobra.Command {
	var (
		country string
		days    float64
	)
	cmd := &cobra.Command{
		Use:   "advance",
		Short: "Move the saved world forward by a number of sim-days",
		Long: "Advances the saved world clock and recomputes countries up to it.\n" +
			"With --country only that country is recomputed; the rest catch up on the next run.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if days < 0 {
				return errors.New("--days must not be negative")
			}
			a, err := openApp(g, engine.Options{})
			if err != nil {
				return err
			}
			defer a.Close()

			loaded, err := a.loadWorld()
			if err != nil {
				return err
			}
			if !loaded {
				return errors.New("no saved world (run `econsim seed` first)")
			}

			ctx := context.Background()
			now := a.tick.Add(simtime.Days(days))
			if country != "" {
				before, _, err := a.sim.Country(economy.CountryID(country))
				if err != nil {
					return err
				}
				out, err := a.sim.Recompute(ctx, economy.CountryID(country), now)
				if err != nil {
					return err
				}
				printAdvance(before, out.State, out.Rate, out.Periods)
				if out.Flags != 0 {
					fmt.Printf("  guards: %s\n", out.Flags)
				}
			} else {
				rep, err := a.sim.RecomputeAll(ctx, now)
				if err != nil {
					return err
				}
				a.sim.LogReport(rep)
			}
			return a.db.SaveWorldState(a.sim, now)
		},
	}
	cmd.Flags().StringVar(&country, "country", "", "country id (empty = every country)")
	cmd.Flags().Float64Var(&days, "days", 365, "sim-days to advance")
	return cmd
}

func printAdvance(before, after economy.State, rate, periods float64) {
	fmt.Printf("%s (%s)\n", after.Name, after.CountryID)
	fmt.Printf("  %s -> %s\n", simtime.Format(before.LastRecomputed), simtime.Format(after.LastRecomputed))
	fmt.Printf("  rate %.4f over %.3f periods\n", rate, periods)
	fmt.Printf("  population     %s -> %s\n", economy.Readable(before.Population), economy.Readable(after.Population))
	fmt.Printf("  gdp per capita %s -> %s\n", economy.Money(before.GDPPerCapita), economy.Money(after.GDPPerCapita))
	fmt.Printf("  total gdp      %s -> %s\n", economy.Readable(before.TotalGDP), economy.Readable(after.TotalGDP))
	fmt.Printf("  tier           %s -> %s", before.EconomicTier(), after.EconomicTier())
	if tr, ok := after.Transition(); ok {
		fmt.Printf(" (moving to %s, %.0f%%)", tr.To, 100*tr.Progress(after.LastRecomputed))
	}
	fmt.Println()
}
