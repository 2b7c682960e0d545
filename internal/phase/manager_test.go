package phase

import (
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock() func() time.Time {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	n := 0
	return func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Minute)
	}
}

func TestAdvanceThroughSequence(t *testing.T) {
	m := NewManager(WithClock(fixedClock()))
	for _, p := range []string{"draft", "review", "done"} {
		require.NoError(t, m.Register(p))
	}

	_, ok := m.Current()
	assert.False(t, ok, "no current phase before the first advance")

	r := m.Advance()
	assert.Equal(t, AdvanceResult{Outcome: Advanced, From: "", To: "draft"}, r)
	r = m.Advance()
	assert.Equal(t, AdvanceResult{Outcome: Advanced, From: "draft", To: "review"}, r)
	r = m.Advance()
	assert.Equal(t, AdvanceResult{Outcome: Advanced, From: "review", To: "done"}, r)

	cur, ok := m.Current()
	require.True(t, ok)
	assert.Equal(t, "done", cur)

	got := m.History()
	want := []string{Initialization, "draft", "review", "done"}
	require.Len(t, got, len(want))
	for i, tr := range got {
		assert.Equal(t, want[i], tr.To)
	}
	assert.Equal(t, got[0].At, got[1].At, "initialization shares the first timestamp")
	assert.True(t, got[2].At.After(got[1].At))
}

func TestAdvancePastLastIsExplicit(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.Register("only"))
	require.Equal(t, Advanced, m.Advance().Outcome)
	before := m.History()

	r := m.Advance()
	assert.Equal(t, AtTerminalPhase, r.Outcome)
	assert.Equal(t, "only", r.From)
	assert.Equal(t, "only", r.To)
	cur, _ := m.Current()
	assert.Equal(t, "only", cur)
	if diff := cmp.Diff(before, m.History()); diff != "" {
		t.Errorf("terminal advance changed history:\n%s", diff)
	}
}

func TestAdvanceWithNothingRegistered(t *testing.T) {
	m := NewManager()
	assert.Equal(t, AtTerminalPhase, m.Advance().Outcome)
	assert.Empty(t, m.History())
}

func TestCycleWrapsToFirst(t *testing.T) {
	m := NewLifecycle(WithCycle())
	for range Lifecycle {
		m.Advance()
	}
	r := m.Advance()
	assert.Equal(t, AdvanceResult{Outcome: Advanced, From: "expression", To: "witness"}, r)
}

func TestRegisterErrors(t *testing.T) {
	m := NewManager()
	assert.ErrorIs(t, m.Register(""), ErrInvalidPhase)
	assert.ErrorIs(t, m.Register("   "), ErrInvalidPhase)
	assert.ErrorIs(t, m.Register(Initialization), ErrInvalidPhase)

	require.NoError(t, m.Register("a"))
	assert.ErrorIs(t, m.Register("a"), ErrDuplicatePhase)

	m.Advance()
	assert.ErrorIs(t, m.Register("b"), ErrStarted)
	assert.Equal(t, []string{"a"}, m.Phases())
}

func TestTransitionTo(t *testing.T) {
	m := NewLifecycle()
	assert.ErrorIs(t, m.TransitionTo("nope"), ErrUnknownPhase)

	require.NoError(t, m.TransitionTo("compost"), "any phase is valid before starting")
	assert.ErrorIs(t, m.TransitionTo("witness"), ErrInvalidTransition)
	assert.ErrorIs(t, m.TransitionTo("blessing"), ErrInvalidTransition)
	require.NoError(t, m.TransitionTo("emergence"))

	cur, _ := m.Current()
	assert.Equal(t, "emergence", cur)
	assert.Len(t, m.History(), 3)
}

func TestTransitionCyclesOnlyWhenEnabled(t *testing.T) {
	plain := NewLifecycle()
	require.NoError(t, plain.TransitionTo("expression"))
	assert.ErrorIs(t, plain.TransitionTo("witness"), ErrInvalidTransition)

	cyc := NewLifecycle(WithCycle())
	require.NoError(t, cyc.TransitionTo("expression"))
	assert.NoError(t, cyc.TransitionTo("witness"))
}

func TestPhaseData(t *testing.T) {
	m := NewLifecycle()
	assert.ErrorIs(t, m.SetData("", map[string]any{"k": 1}), ErrUnknownPhase)
	assert.ErrorIs(t, m.SetData("bogus", map[string]any{"k": 1}), ErrUnknownPhase)

	m.Advance()
	require.NoError(t, m.SetData("", map[string]any{"files": 3}))
	require.NoError(t, m.SetData("witness", map[string]any{"chunks": 9}))
	require.NoError(t, m.SetData("compost", map[string]any{"negative": 2}))

	got := m.Data("")
	assert.Equal(t, map[string]any{"files": 3, "chunks": 9}, got)
	got["files"] = 100
	assert.Equal(t, 3, m.Data("witness")["files"], "Data returns a copy")
	assert.Equal(t, map[string]any{"negative": 2}, m.Data("compost"))
	assert.Empty(t, m.Data("expression"))
	assert.NotNil(t, m.Data("bogus"))
}

func TestReset(t *testing.T) {
	m := NewLifecycle()
	m.Advance()
	require.NoError(t, m.SetData("", map[string]any{"x": 1}))
	m.Reset()

	_, ok := m.Current()
	assert.False(t, ok)
	assert.Empty(t, m.History())
	assert.Empty(t, m.Data("witness"))
	assert.Len(t, m.Phases(), len(Lifecycle))
	assert.Equal(t, "witness", m.Advance().To)
}

func TestConcurrentAdvance(t *testing.T) {
	m := NewManager()
	for i := 0; i < 10; i++ {
		require.NoError(t, m.Register(string(rune('a'+i))))
	}
	var wg sync.WaitGroup
	results := make(chan AdvanceResult, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- m.Advance()
		}()
	}
	wg.Wait()
	close(results)

	advanced := 0
	for r := range results {
		if r.Outcome == Advanced {
			advanced++
		}
	}
	assert.Equal(t, 10, advanced)
	assert.Len(t, m.History(), 11)
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "advanced", Advanced.String())
	assert.Equal(t, "at-terminal-phase", AtTerminalPhase.String())
}
