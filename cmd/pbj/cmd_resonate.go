package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"pbjrag/internal/embedding"
	"pbjrag/internal/field"
	"pbjrag/internal/resonance"
	"pbjrag/internal/types"
)

var (
	resonateState     string
	resonateThreshold float64
	resonateEmbed     bool
	resonateTop       int
	resonateJSON      bool
)

// resonateCmd finds fragments that resonate with one fragment of a saved field
var resonateCmd = &cobra.Command{
	Use:   "resonate [fragment-id]",
	Short: "List fragments that resonate with a fragment from a saved field",
	Long: `Loads a field snapshot written by 'pbj analyze --state' and ranks the other
fragments by resonance with the given one.

By default resonance compares the nine-dimension field vectors. With --embed
the fragments' content is embedded with the configured provider (hash when
none is configured) and compared by cosine similarity.

Example:
  pbj analyze src/ --state .pbj/field.json
  pbj resonate "py:src/app.py:load_config#L12" --state .pbj/field.json`,
	Args: cobra.ExactArgs(1),
	RunE: runResonate,
}

func init() {
	resonateCmd.Flags().StringVar(&resonateState, "state", ".pbj/field.json", "Field snapshot to load")
	resonateCmd.Flags().Float64Var(&resonateThreshold, "threshold", 0.5, "Minimum resonance")
	resonateCmd.Flags().BoolVar(&resonateEmbed, "embed", false, "Compare embeddings instead of field vectors")
	resonateCmd.Flags().IntVarP(&resonateTop, "top", "k", 10, "Maximum results (0 for all)")
	resonateCmd.Flags().BoolVar(&resonateJSON, "json", false, "Print matches as JSON")
}

func runResonate(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	c, err := field.LoadState(workspacePath(resonateState))
	if err != nil {
		return err
	}
	if n := c.DecayCompost(cfg.GetCompostMaxAge()); n > 0 {
		fmt.Fprintln(cmd.ErrOrStderr(), muted("%d compost entries older than %s expired", n, cfg.GetCompostMaxAge()))
	}
	corpus := c.Fragments(nil)
	target, ok := findFragment(corpus, args[0])
	if !ok {
		return fmt.Errorf("fragment %q not found in %s", args[0], resonateState)
	}

	var matches []resonance.Match
	if resonateEmbed {
		engine, err := resonanceEmbedder()
		if err != nil {
			return err
		}
		matches, err = resonance.New(engine).FindResonant(ctx, target, corpus, resonateThreshold)
		if err != nil {
			return err
		}
	} else {
		matches = resonance.FindFieldResonant(target, corpus, resonateThreshold)
	}
	if resonateTop > 0 && len(matches) > resonateTop {
		matches = matches[:resonateTop]
	}

	out := cmd.OutOrStdout()
	if resonateJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(matches)
	}

	fmt.Fprintln(out, header("Resonance with %s", target.ID()))
	if len(matches) == 0 {
		fmt.Fprintln(out, muted("  nothing above %.2f", resonateThreshold))
		return nil
	}
	for i, m := range matches {
		fmt.Fprintf(out, "%2d. %.4f  %s  %s\n", i+1, m.Resonance, tierLabel(m.Fragment.Blessing.Tier), m.Fragment.ID())
	}
	return nil
}

func findFragment(frags []types.Fragment, id string) (types.Fragment, bool) {
	for _, f := range frags {
		if f.ID() == id {
			return f, true
		}
	}
	return types.Fragment{}, false
}

func resonanceEmbedder() (embedding.EmbeddingEngine, error) {
	engine, err := embedding.NewEngine(embedding.ConfigFrom(cfg.Embedding))
	if errors.Is(err, embedding.ErrDisabled) {
		return embedding.NewHashEngine(embedding.DefaultHashDimensions), nil
	}
	if err != nil {
		return nil, fmt.Errorf("embedding engine: %w", err)
	}
	return engine, nil
}
