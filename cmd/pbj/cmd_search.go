package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"pbjrag/internal/blessing"
	"pbjrag/internal/orchestrator"
	"pbjrag/internal/store"
)

var (
	searchTopK   int
	searchTier   string
	searchPhase  string
	searchFile   string
	searchKind   string
	searchMinEPC float64
	searchJSON   bool
)

// searchCmd queries the vector store
var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search indexed fragments by similarity",
	Long: `Embeds the query and returns the closest fragments from the store.
Requires indexing to be enabled and a prior 'pbj analyze'.

Examples:
  pbj search "parse config file"
  pbj search "retry with backoff" --tier Positive --top 5`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchTopK, "top", "k", 10, "Number of results")
	searchCmd.Flags().StringVar(&searchTier, "tier", "", "Only fragments with this blessing tier")
	searchCmd.Flags().StringVar(&searchPhase, "phase", "", "Only fragments in this phase")
	searchCmd.Flags().StringVar(&searchFile, "file", "", "Only fragments from this file")
	searchCmd.Flags().StringVar(&searchKind, "kind", "", "Only fragments of this kind (function, class, method, ...)")
	searchCmd.Flags().Float64Var(&searchMinEPC, "min-epc", 0, "Minimum EPC")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "Print results as JSON")
}

func searchFilters() (store.Filters, error) {
	f := store.Filters{File: searchFile, Kind: searchKind, MinEPC: searchMinEPC}
	if searchTier != "" {
		t, err := parseTier(searchTier)
		if err != nil {
			return f, err
		}
		f.Tier = t
	}
	if searchPhase != "" {
		p, err := parsePhase(searchPhase)
		if err != nil {
			return f, err
		}
		f.Phase = p
	}
	return f, nil
}

func parseTier(s string) (blessing.Tier, error) {
	for _, t := range []blessing.Tier{blessing.Positive, blessing.Neutral, blessing.Negative} {
		if strings.EqualFold(s, string(t)) {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown tier %q", s)
}

func parsePhase(s string) (blessing.Phase, error) {
	for _, p := range blessing.Phases {
		if strings.EqualFold(s, string(p)) {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown phase %q", s)
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	filters, err := searchFilters()
	if err != nil {
		return err
	}

	deps, cleanup, err := openDeps(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	query := strings.Join(args, " ")
	results, err := orchestrator.New(cfg, deps).Search(ctx, query, filters, searchTopK)
	if errors.Is(err, orchestrator.ErrIndexingDisabled) {
		return fmt.Errorf("%w: set store.enabled in %s", err, resolveConfigPath())
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if searchJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	fmt.Fprintln(out, header("Results for %q", query))
	if len(results) == 0 {
		fmt.Fprintln(out, muted("  no matches"))
		return nil
	}
	for i, r := range results {
		f := r.Fragment
		fmt.Fprintf(out, "%2d. %.4f  %s  %s\n", i+1, r.Similarity, tierLabel(f.Blessing.Tier), f.ID())
		fmt.Fprintf(out, "    %s\n", muted("%s lines %d-%d, phase %s, EPC %.4f",
			f.Chunk.Kind, f.Chunk.StartLine, f.Chunk.EndLine, f.Blessing.Phase, f.Blessing.EPC))
	}
	return nil
}
