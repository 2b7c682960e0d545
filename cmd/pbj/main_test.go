package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pbjrag/internal/blessing"
	"pbjrag/internal/chunk"
	"pbjrag/internal/field"
	"pbjrag/internal/fields"
	"pbjrag/internal/orchestrator"
	"pbjrag/internal/types"
)

const goodSource = `import os


def load(path):
    """Read a file."""
    if not os.path.exists(path):
        raise FileNotFoundError(path)
    with open(path) as f:
        return f.read()


class Store:
    def __init__(self):
        self.items = {}

    def put(self, key, value):
        self.items[key] = value
        return value
`

func resetFlags() {
	verbose, workspace, configPath, timeout = false, ".", "", time.Minute
	analyzeJSON, analyzeState, analyzeNoIndex, analyzeWorkers, analyzePurpose, analyzeRender = false, "", false, 0, "", false
	watchDebounce, watchRender = orchestrator.DefaultDebounce, false
	searchTopK, searchTier, searchPhase, searchFile, searchKind, searchMinEPC, searchJSON = 10, "", "", "", "", 0, false
	resonateState, resonateThreshold, resonateEmbed, resonateTop, resonateJSON = ".pbj/field.json", 0.5, false, 10, false
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	for _, k := range []string{"PBJ_INDEXING", "PBJ_EMBEDDING_PROVIDER", "PBJ_STORE_PATH", "PBJ_DEBUG", "PBJ_WORKERS", "PBJ_FIELD_DIM"} {
		t.Setenv(k, "")
	}
	resetFlags()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func writeWorkspace(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "good.py"), []byte(goodSource), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.py"), []byte("def broken(:\n    pass\n"), 0o644))
	return dir
}

func TestAnalyzeWritesReportAndState(t *testing.T) {
	dir := writeWorkspace(t)
	state := filepath.Join(dir, "field.json")

	out, err := execute(t, "analyze", "-w", dir, "--state", state)
	require.NoError(t, err)
	assert.Contains(t, out, "# Analysis report")
	assert.Contains(t, out, "Files: 2 (1 failed)")
	assert.Contains(t, out, "## Failures")
	assert.Contains(t, out, "bad.py")
	assert.FileExists(t, state)

	c, err := field.LoadState(state)
	require.NoError(t, err)
	assert.Positive(t, c.Len())
}

func TestAnalyzeRender(t *testing.T) {
	dir := writeWorkspace(t)

	out, err := execute(t, "analyze", "-w", dir, "--render")
	require.NoError(t, err)
	assert.Contains(t, out, "Analysis report")
	assert.Contains(t, out, "Blessing tiers")
}

func TestAnalyzeJSON(t *testing.T) {
	dir := writeWorkspace(t)

	out, err := execute(t, "analyze", "-w", dir, "--json")
	require.NoError(t, err)

	var report map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.NotEmpty(t, report["run_id"])
	assert.EqualValues(t, 2, report["files"])
	assert.Positive(t, report["fragments"])
	assert.Len(t, report["failures"], 1)
}

func TestResonateFromState(t *testing.T) {
	dir := writeWorkspace(t)
	state := filepath.Join(dir, "field.json")
	_, err := execute(t, "analyze", "-w", dir, "--state", state)
	require.NoError(t, err)

	c, err := field.LoadState(state)
	require.NoError(t, err)
	frags := c.Fragments(nil)
	require.NotEmpty(t, frags)
	var ids []string
	for _, f := range frags {
		ids = append(ids, f.ID())
	}
	assert.Contains(t, ids, "py:good.py:load#L4", "IDs are relative to the workspace")
	id := frags[0].ID()

	out, err := execute(t, "resonate", id, "-w", dir, "--state", state, "--threshold", "0")
	require.NoError(t, err)
	assert.Contains(t, out, "Resonance with "+id)

	out, err = execute(t, "resonate", id, "-w", dir, "--state", state, "--embed", "--json")
	require.NoError(t, err)
	assert.True(t, json.Valid([]byte(out)))

	_, err = execute(t, "resonate", "py:missing#L1", "-w", dir, "--state", state)
	assert.ErrorContains(t, err, "not found")
}

func TestResonateListsNegativeFragmentsOnce(t *testing.T) {
	dir := t.TempDir()
	state := filepath.Join(dir, "field.json")

	c := field.NewContainer()
	for _, id := range []string{"py:n.py:a#L1", "py:n.py:b#L5", "py:n.py:c#L9"} {
		c.AddFragment(types.Fragment{
			Chunk:    chunk.Chunk{ID: id, File: "n.py", Provides: []string{id}},
			Fields:   fields.Neutral(8),
			Blessing: blessing.Record{Tier: blessing.Negative, Phase: blessing.PhaseRaw, EPC: 0.3},
		})
	}
	require.Len(t, c.Compost(nil), 3)
	require.NoError(t, c.SaveState(state))

	out, err := execute(t, "resonate", "py:n.py:a#L1", "-w", dir, "--state", state, "--threshold", "0", "--json")
	require.NoError(t, err)

	var matches []struct {
		Fragment struct {
			Chunk struct {
				ID string
			} `json:"chunk"`
		} `json:"fragment"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &matches))
	var ids []string
	for _, m := range matches {
		ids = append(ids, m.Fragment.Chunk.ID)
	}
	assert.Equal(t, []string{"py:n.py:b#L5", "py:n.py:c#L9"}, ids)
}

func TestSearchRequiresIndexing(t *testing.T) {
	dir := writeWorkspace(t)
	_, err := execute(t, "search", "load", "-w", dir)
	assert.ErrorIs(t, err, orchestrator.ErrIndexingDisabled)
}

func TestSearchAfterIndexing(t *testing.T) {
	dir := writeWorkspace(t)
	conf := "store:\n  enabled: true\nembedding:\n  provider: hash\n  hash_dimensions: 64\n"
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".pbj"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".pbj", "config.yaml"), []byte(conf), 0o644))

	_, err := execute(t, "analyze", "-w", dir)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, ".pbj", "fragments.db"))

	out, err := execute(t, "search", "read", "a", "file", "path", "-w", dir, "-k", "3")
	require.NoError(t, err)
	assert.Contains(t, out, `Results for "read a file path"`)
	assert.Contains(t, out, "good.py")

	_, err = execute(t, "search", "x", "-w", dir, "--tier", "excellent")
	assert.ErrorContains(t, err, "unknown tier")
}

func TestPhasesCommand(t *testing.T) {
	out, err := execute(t, "phases", "-w", t.TempDir())
	require.NoError(t, err)
	for _, want := range []string{"witness", "recognition", "expression", "hardening", "Positive"} {
		assert.Contains(t, out, want)
	}
}

func TestParseTierAndPhase(t *testing.T) {
	tier, err := parseTier("positive")
	require.NoError(t, err)
	assert.Equal(t, blessing.Positive, tier)

	p, err := parsePhase("STABLE")
	require.NoError(t, err)
	assert.Equal(t, blessing.PhaseStable, p)

	_, err = parsePhase("ripe")
	assert.Error(t, err)
}
