package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"pbjrag/internal/orchestrator"
)

var (
	watchDebounce time.Duration
	watchRender   bool
)

// watchCmd re-runs the analysis when files change
var watchCmd = &cobra.Command{
	Use:   "watch [paths...]",
	Short: "Re-run the analysis whenever Python files change",
	Long: `Runs the analysis once, then watches the paths (default: the workspace)
and re-runs after each settled batch of .py changes. Stop with Ctrl-C.

The --timeout flag does not apply; the command runs until interrupted.`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", orchestrator.DefaultDebounce, "Quiet period before re-running")
	watchCmd.Flags().BoolVar(&watchRender, "render", false, "Render each report for the terminal")
}

func runWatch(cmd *cobra.Command, args []string) error {
	timeout = 0
	ctx, cancel := commandContext(cmd)
	defer cancel()

	deps, cleanup, err := openDeps(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	roots := args
	if len(roots) == 0 {
		roots = []string{workspace}
	}

	w, err := orchestrator.New(cfg, deps).NewWatcher(watchDebounce, roots...)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	status := cmd.ErrOrStderr()
	err = w.Run(ctx, func(r *orchestrator.Report, err error) {
		if err != nil {
			fmt.Fprintln(status, errorf("run failed: %v", err))
			return
		}
		fmt.Fprintln(status, header("[%s] %d files, %d fragments, %d failures",
			time.Now().Format("15:04:05"), r.Files, r.Fragments, len(r.Failures)))
		if err := printReport(out, r, watchRender); err != nil {
			logger.Warn("print report", zap.Error(err))
		}
	})

	stats := w.Stats()
	logger.Info("watch stopped", zap.Int("runs", stats.Runs), zap.Int("events", stats.Events), zap.Int("errors", stats.Errors))
	return err
}

// printReport writes the Markdown report, rendered for the terminal when
// render is set.
func printReport(w io.Writer, r *orchestrator.Report, render bool) error {
	if !render {
		return r.WriteMarkdown(w)
	}
	return renderReport(w, r)
}
