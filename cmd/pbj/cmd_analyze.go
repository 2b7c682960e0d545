package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"pbjrag/internal/orchestrator"
)

var (
	analyzeJSON    bool
	analyzeState   string
	analyzeNoIndex bool
	analyzeWorkers int
	analyzePurpose string
	analyzeRender  bool
)

// analyzeCmd runs the pipeline over paths
var analyzeCmd = &cobra.Command{
	Use:   "analyze [paths...]",
	Short: "Analyze Python files and print the field report",
	Long: `Discovers .py files under the given paths (default: the workspace), runs
the analysis pipeline and prints a Markdown report.

Files that fail to parse are listed in the report and do not abort the run.
With indexing enabled in the config, fragments are embedded and written to
the store.

Examples:
  pbj analyze
  pbj analyze src/ --json
  pbj analyze pkg/mod.py --state .pbj/field.json`,
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "Print the report as JSON")
	analyzeCmd.Flags().StringVar(&analyzeState, "state", "", "Save the field container snapshot to this file")
	analyzeCmd.Flags().BoolVar(&analyzeNoIndex, "no-index", false, "Skip indexing even if the store is enabled")
	analyzeCmd.Flags().IntVar(&analyzeWorkers, "workers", 0, "Parallel file workers (default from config)")
	analyzeCmd.Flags().BoolVar(&analyzeRender, "render", false, "Render the Markdown report for the terminal")
	analyzeCmd.Flags().StringVar(&analyzePurpose, "purpose", "", "Combination purpose: coherence, innovation, stability, emergence")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	if analyzeWorkers > 0 {
		cfg.Analysis.Workers = analyzeWorkers
	}
	if analyzePurpose != "" {
		cfg.Analysis.Purpose = analyzePurpose
	}
	if analyzeNoIndex {
		cfg.Store.Enabled = false
	}

	deps, cleanup, err := openDeps(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	roots := args
	if len(roots) == 0 {
		roots = []string{workspace}
	}

	o := orchestrator.New(cfg, deps)
	report, err := o.RunPaths(ctx, roots...)
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}
	logger.Info("analysis complete",
		zap.String("run_id", report.RunID),
		zap.Int("files", report.Files),
		zap.Int("fragments", report.Fragments),
		zap.Int("failures", len(report.Failures)),
		zap.Duration("duration", report.Duration))

	out := cmd.OutOrStdout()
	if analyzeJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return fmt.Errorf("encode report: %w", err)
		}
	} else if err := printReport(out, report, analyzeRender); err != nil {
		return err
	}

	if analyzeState != "" {
		if err := report.Container.SaveState(analyzeState); err != nil {
			return err
		}
		fmt.Fprintln(cmd.ErrOrStderr(), muted("field state saved to %s", analyzeState))
	}
	if report.IndexError != "" {
		fmt.Fprintln(cmd.ErrOrStderr(), errorf("indexing failed: %s", report.IndexError))
	} else if report.Indexed > 0 {
		fmt.Fprintln(cmd.ErrOrStderr(), okColor.Sprintf("indexed %d fragments", report.Indexed))
	}
	return nil
}
