package main

import (
	"fmt"
	"math"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/talgya/econsim/internal/tier"
)

func tuningCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "tuning",
		Short: "Validate the tuning file and print a summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := loadModel(g.tuningPath)
			if err != nil {
				return err
			}

			fmt.Printf("catalog version  %s\n", m.Catalog.Version)
			fmt.Printf("growth period    %g days\n", m.GrowthPeriod().Days())
			fmt.Printf("transition       %g days\n", m.TransitionWindow().Days())
			fmt.Printf("components       %d\n", len(m.Catalog.Components()))
			fmt.Printf("rules            %d\n", m.Catalog.RuleCount())
			fmt.Println()

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			printTable(w, m.EconomicTable)
			fmt.Fprintln(w)
			printTable(w, m.PopulationTable)
			return w.Flush()
		},
	}
}

func printTable(w *tabwriter.Writer, t tier.Table) {
	fmt.Fprintf(w, "%s\tlower\tupper\tmultiplier\n", t.Name)
	for _, r := range t.Ranges() {
		fmt.Fprintf(w, "%s\t%s\t%s\t%g\n", r.ID, bound(r.Lower), bound(r.Upper), r.Multiplier)
	}
}

func bound(v float64) string {
	if math.IsInf(v, 0) {
		return "-"
	}
	return fmt.Sprintf("%g", v)
}
