// Package phase tracks caller-driven lifecycle sequences.
//
// A Manager holds an ordered list of registered phase names and moves through
// them one step at a time. Reaching the end of the sequence is reported as an
// explicit outcome rather than an error.
package phase

import (
	"errors"
	"fmt"
	"maps"
	"strings"
	"sync"
	"time"

	"pbjrag/internal/logging"
)

// Initialization is the history entry recorded when a manager starts.
const Initialization = "initialization"

var (
	ErrInvalidPhase      = errors.New("invalid phase name")
	ErrDuplicatePhase    = errors.New("phase already registered")
	ErrStarted           = errors.New("phase sequence already started")
	ErrUnknownPhase      = errors.New("phase not registered")
	ErrInvalidTransition = errors.New("invalid phase transition")
)

// Outcome tags the result of Advance.
type Outcome int

const (
	// Advanced means the manager moved to the next phase.
	Advanced Outcome = iota
	// AtTerminalPhase means there is no next phase; nothing changed.
	AtTerminalPhase
)

func (o Outcome) String() string {
	switch o {
	case Advanced:
		return "advanced"
	case AtTerminalPhase:
		return "at-terminal-phase"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// AdvanceResult reports what Advance did. From is empty on the first advance.
type AdvanceResult struct {
	Outcome Outcome
	From    string
	To      string
}

// Transition is one history entry.
type Transition struct {
	From string    `json:"from,omitempty"`
	To   string    `json:"to"`
	At   time.Time `json:"at"`
}

// Manager is a small lifecycle state machine. It is safe for concurrent use.
type Manager struct {
	mu      sync.Mutex
	phases  []string
	index   map[string]int
	current int
	history []Transition
	data    map[string]map[string]any
	cycle   bool
	now     func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the time source used for history timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithCycle lets the last phase advance back to the first.
func WithCycle() Option {
	return func(m *Manager) { m.cycle = true }
}

// NewManager returns an empty manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		index:   make(map[string]int),
		current: -1,
		data:    make(map[string]map[string]any),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Lifecycle phases, in order.
var Lifecycle = []string{"witness", "recognition", "compost", "emergence", "blessing", "expression"}

// NewLifecycle returns a manager with the Lifecycle phases registered.
func NewLifecycle(opts ...Option) *Manager {
	m := NewManager(opts...)
	for _, name := range Lifecycle {
		if err := m.Register(name); err != nil {
			panic(err)
		}
	}
	return m
}

// Register appends a phase. Names must be non-empty and unique, and the
// sequence cannot grow once it has started.
func (m *Manager) Register(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if strings.TrimSpace(name) == "" || name == Initialization {
		return fmt.Errorf("%w: %q", ErrInvalidPhase, name)
	}
	if _, ok := m.index[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicatePhase, name)
	}
	if m.current >= 0 {
		return fmt.Errorf("%w: cannot register %s", ErrStarted, name)
	}
	m.index[name] = len(m.phases)
	m.phases = append(m.phases, name)
	return nil
}

// Phases returns the registered sequence.
func (m *Manager) Phases() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.phases...)
}

// Current returns the active phase, or false before the first advance.
func (m *Manager) Current() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current < 0 {
		return "", false
	}
	return m.phases[m.current], true
}

// Advance moves to the next registered phase. At the end of a non-cycling
// sequence, or with nothing registered, it returns AtTerminalPhase and
// leaves state and history untouched.
func (m *Manager) Advance() AdvanceResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	from := ""
	if m.current >= 0 {
		from = m.phases[m.current]
	}
	next := m.current + 1
	if next >= len(m.phases) {
		if !m.cycle || len(m.phases) == 0 {
			logging.PhaseDebug("advance at terminal phase %q", from)
			return AdvanceResult{Outcome: AtTerminalPhase, From: from, To: from}
		}
		next = 0
	}
	m.moveLocked(next)
	return AdvanceResult{Outcome: Advanced, From: from, To: m.phases[next]}
}

// TransitionTo moves directly to name. Before the first advance any
// registered phase is accepted; afterwards only the next phase in sequence
// (or the first one, when cycling from the last) is.
func (m *Manager) TransitionTo(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	target, ok := m.index[name]
	if !ok {
		return fmt.Errorf("%w: %s (registered: %s)", ErrUnknownPhase, name, strings.Join(m.phases, ", "))
	}
	if m.current >= 0 {
		want := m.current + 1
		if want == len(m.phases) && m.cycle {
			want = 0
		}
		if target != want {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, m.phases[m.current], name)
		}
	}
	m.moveLocked(target)
	return nil
}

func (m *Manager) moveLocked(next int) {
	at := m.now()
	from := ""
	if m.current < 0 {
		m.history = append(m.history, Transition{To: Initialization, At: at})
	} else {
		from = m.phases[m.current]
	}
	m.current = next
	m.history = append(m.history, Transition{From: from, To: m.phases[next], At: at})
	logging.Phase("phase %s -> %s", orInit(from), m.phases[next])
}

func orInit(s string) string {
	if s == "" {
		return Initialization
	}
	return s
}

// History returns a copy of the recorded transitions.
func (m *Manager) History() []Transition {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Transition(nil), m.history...)
}

// SetData merges values into the data of phase, or of the current phase
// when phase is empty.
func (m *Manager) SetData(phase string, values map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	target, err := m.resolveLocked(phase)
	if err != nil {
		return err
	}
	if m.data[target] == nil {
		m.data[target] = make(map[string]any, len(values))
	}
	maps.Copy(m.data[target], values)
	return nil
}

// Data returns a copy of the data of phase, or of the current phase when
// phase is empty. Unknown phases have no data.
func (m *Manager) Data(phase string) map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()

	target, err := m.resolveLocked(phase)
	if err != nil || m.data[target] == nil {
		return map[string]any{}
	}
	return maps.Clone(m.data[target])
}

func (m *Manager) resolveLocked(phase string) (string, error) {
	if phase == "" {
		if m.current < 0 {
			return "", fmt.Errorf("%w: no current phase", ErrUnknownPhase)
		}
		return m.phases[m.current], nil
	}
	if _, ok := m.index[phase]; !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownPhase, phase)
	}
	return phase, nil
}

// Reset returns to the not-started state. Registered phases are kept;
// history and phase data are cleared.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = -1
	m.history = nil
	m.data = make(map[string]map[string]any)
}
