package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"pbjrag/internal/blessing"
	"pbjrag/internal/phase"
)

// phasesCmd prints the run lifecycle and the maturity phases
var phasesCmd = &cobra.Command{
	Use:   "phases",
	Short: "Show the analysis lifecycle and fragment maturity phases",
	RunE: func(cmd *cobra.Command, args []string) error {
		var lifecycle []string
		for i, name := range phase.NewLifecycle().Phases() {
			lifecycle = append(lifecycle, fmt.Sprintf("%d. %s", i+1, name))
		}

		var maturity []string
		for i, p := range blessing.Phases {
			maturity = append(maturity, fmt.Sprintf("%d. %s", i+1, p))
		}

		var tiers []string
		for _, t := range []blessing.Tier{blessing.Positive, blessing.Neutral, blessing.Negative} {
			a := blessing.Recommend(blessing.Record{Tier: t})
			tiers = append(tiers, fmt.Sprintf("%s  %s", tierLabel(t), muted("%s", a.Guidance)))
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, section("Run lifecycle", lifecycle))
		fmt.Fprintln(out, section("Fragment maturity", maturity))
		fmt.Fprintln(out, section("Blessing tiers", tiers))
		return nil
	},
}
