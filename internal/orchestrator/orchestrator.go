// Package orchestrator drives the analysis pipeline over a set of Python
// files: chunk, extract, classify, merge, detect patterns and optionally
// index the fragments in a vector store.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"pbjrag/internal/blessing"
	"pbjrag/internal/chunk"
	"pbjrag/internal/config"
	"pbjrag/internal/embedding"
	"pbjrag/internal/field"
	"pbjrag/internal/fields"
	"pbjrag/internal/logging"
	"pbjrag/internal/pattern"
	"pbjrag/internal/phase"
	"pbjrag/internal/store"
	"pbjrag/internal/types"
)

// ErrIndexingDisabled is returned by Search in analysis-only mode.
var ErrIndexingDisabled = errors.New("indexing is disabled")

// SourceFile is one input file.
type SourceFile struct {
	Path    string
	Content []byte
}

// Indexer is the vector store the orchestrator writes to and searches.
type Indexer interface {
	IndexFragments(ctx context.Context, fragments []types.Fragment, embeddings [][]float32) error
	Search(ctx context.Context, query []float32, filters store.Filters, topK int) ([]store.Result, error)
	DeleteFiles(ctx context.Context, files []string) (int64, error)
}

// Deps are the external collaborators. Both may be nil, which selects
// analysis-only mode.
type Deps struct {
	Embedder embedding.EmbeddingEngine
	Store    Indexer
	// Clock stamps the run, the container and the phase history.
	Clock func() time.Time
	// Workspace, when set, is the base that RunPaths reports file paths
	// against. Files outside it keep the path they were given.
	Workspace string
}

// Orchestrator runs the pipeline. A single Orchestrator may run repeatedly;
// each Run builds a fresh field container.
type Orchestrator struct {
	cfg        *config.Config
	chunker    *chunk.Chunker
	extractor  *fields.Extractor
	classifier *blessing.Classifier
	analyzer   *pattern.Analyzer
	embedder   embedding.EmbeddingEngine
	store      Indexer
	workspace  string
	now        func() time.Time
}

// New builds an orchestrator. A nil cfg uses the defaults.
func New(cfg *config.Config, deps Deps) *Orchestrator {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	o := &Orchestrator{
		cfg:     cfg,
		chunker: chunk.New(chunk.WithMaxBytes(cfg.Analysis.MaxFileBytes)),
		extractor: fields.NewExtractor(fields.Config{
			Dim:     cfg.Analysis.FieldDim,
			Weights: WeightsFrom(cfg.Weights),
		}),
		classifier: blessing.NewClassifier(),
		analyzer:   pattern.New(),
		store:      deps.Store,
		workspace:  deps.Workspace,
		now:        now,
	}
	if deps.Embedder != nil {
		o.embedder = embedding.NewCachedEngine(deps.Embedder)
	}
	return o
}

// WeightsFrom converts configured weights to extractor weights.
func WeightsFrom(w config.WeightsConfig) fields.Weights {
	return fields.Weights{
		Entropic: append([]float64(nil), w.Entropic...),
		Rhythmic: append([]float64(nil), w.Rhythmic...),
		Emergent: append([]float64(nil), w.Emergent...),
	}
}

// IndexingEnabled reports whether runs hand fragments to the store.
func (o *Orchestrator) IndexingEnabled() bool {
	return o.cfg.IsIndexingEnabled() && o.embedder != nil && o.store != nil
}

// Embedder returns the (cached) embedding engine, nil in analysis-only mode.
func (o *Orchestrator) Embedder() embedding.EmbeddingEngine { return o.embedder }

type fileResult struct {
	fragments []types.Fragment
	failure   *FileFailure
}

// Run analyzes files and returns the report. Per-file failures are recorded
// on the report; only context cancellation fails the run.
func (o *Orchestrator) Run(ctx context.Context, files []SourceFile) (*Report, error) {
	timer := logging.StartTimer(logging.CategoryOrchestrator, "Run")
	defer timer.Stop()

	started := o.now()
	runID := uuid.NewString()
	lifecycle := phase.NewLifecycle(phase.WithClock(o.now))
	container := field.NewContainer(field.WithClock(o.now))

	logging.Orchestrator("run %s: %d files, workers=%d", runID, len(files), o.workers())

	// witness: parse and analyze every file
	lifecycle.Advance()
	results, err := o.analyzeFiles(ctx, files)
	if err != nil {
		return nil, err
	}

	// recognition: merge in input order
	lifecycle.Advance()
	report := &Report{RunID: runID, StartedAt: started, Files: len(files)}
	var analyzed []string
	for i, r := range results {
		if r.failure != nil {
			report.Failures = append(report.Failures, *r.failure)
			continue
		}
		analyzed = append(analyzed, files[i].Path)
		for _, f := range r.fragments {
			container.AddFragment(f)
		}
	}
	_ = lifecycle.SetData("", map[string]any{"fragments": container.Len(), "failures": len(report.Failures)})

	// compost
	lifecycle.Advance()
	_ = lifecycle.SetData("", map[string]any{"composted": len(container.Compost(nil))})

	// emergence: pattern detection over the merged population
	lifecycle.Advance()
	fragments := container.Fragments(nil)
	patterns := o.analyzer.Detect(fragments)
	container.SetPatterns(patterns)
	_ = lifecycle.SetData("", map[string]any{"patterns": len(patterns)})

	// blessing: corpus-level quality
	lifecycle.Advance()
	report.Coherence = container.CalculateFieldCoherence()
	report.Combinations = pattern.SuggestCombinations(fragments, o.combineOptions())
	_ = lifecycle.SetData("", map[string]any{"coherence": report.Coherence})

	// expression: index and summarize
	lifecycle.Advance()
	if o.IndexingEnabled() {
		n, err := o.index(ctx, fragments, analyzed)
		report.Indexed = n
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			report.IndexError = err.Error()
			logging.OrchestratorWarn("run %s: indexing failed after %d fragments: %v", runID, n, err)
		}
	}

	report.Fragments = container.Len()
	report.Patterns = container.Patterns(nil)
	report.Pulse = container.PulseCheck(map[string]string{
		"run_id": runID,
		"files":  strconv.Itoa(len(files)),
	})
	report.Phases = lifecycle.History()
	report.Container = container
	report.Duration = o.now().Sub(started)

	logging.Orchestrator("run %s: %d fragments, %d failures, %d patterns, coherence=%.4f",
		runID, report.Fragments, len(report.Failures), len(report.Patterns), report.Coherence)
	return report, nil
}

func (o *Orchestrator) workers() int {
	if o.cfg.Analysis.Workers > 0 {
		return o.cfg.Analysis.Workers
	}
	return config.DefaultAnalysisConfig().Workers
}

func (o *Orchestrator) combineOptions() pattern.CombineOptions {
	opts := pattern.DefaultCombineOptions()
	if p, err := pattern.ParsePurpose(o.cfg.Analysis.Purpose); err == nil {
		opts.Purpose = p
	}
	return opts
}

// analyzeFiles runs the per-file stages in parallel. results[i] belongs to
// files[i].
func (o *Orchestrator) analyzeFiles(ctx context.Context, files []SourceFile) ([]fileResult, error) {
	results := make([]fileResult, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.workers())

	for i := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = o.analyzeFile(gctx, files[i])
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("analysis canceled: %w", err)
	}
	return results, nil
}

func (o *Orchestrator) analyzeFile(ctx context.Context, file SourceFile) (res fileResult) {
	defer func() {
		if r := recover(); r != nil {
			logging.OrchestratorError("PANIC RECOVERED analyzing %s: %v\n%s", file.Path, r, debug.Stack())
			res = fileResult{failure: &FileFailure{File: file.Path, Reason: fmt.Sprintf("internal error: %v", r)}}
		}
	}()

	if d := o.cfg.GetFileTimeout(); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	cr := o.chunker.Chunk(ctx, file.Path, file.Content)
	if cr.Err != nil {
		logging.OrchestratorDebug("%s: %v", file.Path, cr.Err)
		return fileResult{failure: &FileFailure{File: file.Path, Reason: cr.Err.Error(), Err: cr.Err}}
	}

	vectors := o.extractor.ExtractAll(cr.Chunks, cr.Tree)
	frags := make([]types.Fragment, len(cr.Chunks))
	for j, c := range cr.Chunks {
		frags[j] = types.Fragment{
			Chunk:    c,
			Fields:   vectors[j],
			Blessing: o.classifier.Classify(vectors[j]),
		}
	}
	return fileResult{fragments: frags}
}

// index embeds fragments in batches and writes them to the store. It returns
// how many fragments were stored before any error.
func (o *Orchestrator) index(ctx context.Context, fragments []types.Fragment, files []string) (indexed int, err error) {
	defer func() {
		if r := recover(); r != nil {
			logging.OrchestratorError("PANIC RECOVERED indexing: %v\n%s", r, debug.Stack())
			err = fmt.Errorf("indexing panicked: %v", r)
		}
	}()
	timer := logging.StartTimer(logging.CategoryOrchestrator, "index")
	defer timer.Stop()

	if _, err := o.store.DeleteFiles(ctx, files); err != nil {
		return 0, fmt.Errorf("clear stale fragments: %w", err)
	}

	batch := o.cfg.Store.BatchSize
	if batch <= 0 {
		batch = 100
	}
	for start := 0; start < len(fragments); start += batch {
		end := min(start+batch, len(fragments))
		part := fragments[start:end]
		texts := make([]string, len(part))
		for i, f := range part {
			texts[i] = IndexText(f)
		}
		vecs, err := o.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return indexed, fmt.Errorf("embed fragments %d-%d: %w", start, end, err)
		}
		if err := o.store.IndexFragments(ctx, part, vecs); err != nil {
			return indexed, fmt.Errorf("store fragments %d-%d: %w", start, end, err)
		}
		indexed += len(part)
	}
	return indexed, nil
}

// Search embeds query and returns the closest indexed fragments.
func (o *Orchestrator) Search(ctx context.Context, query string, filters store.Filters, topK int) ([]store.Result, error) {
	if !o.IndexingEnabled() {
		return nil, ErrIndexingDisabled
	}
	var vec []float32
	var err error
	if q, ok := o.embedder.(embedding.QueryEmbedder); ok {
		vec, err = q.EmbedQuery(ctx, query)
	} else {
		vec, err = o.embedder.Embed(ctx, query)
	}
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return o.store.Search(ctx, vec, filters, topK)
}
