package orchestrator

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"pbjrag/internal/logging"
)

// DefaultDebounce is how long a change must settle before a re-run.
const DefaultDebounce = 500 * time.Millisecond

// WatchStats tracks watcher activity.
type WatchStats struct {
	Events        int
	Runs          int
	Errors        int
	LastEventPath string
	LastEventType string
	LastEventTime time.Time
}

// Watcher re-runs the pipeline over its roots when Python files change.
type Watcher struct {
	o        *Orchestrator
	roots    []string
	files    map[string]bool // roots that are single files
	debounce time.Duration
	watcher  *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]time.Time
	stats   WatchStats
}

// NewWatcher registers watches on every non-ignored directory under roots.
// A debounce of zero selects DefaultDebounce.
func (o *Orchestrator) NewWatcher(debounce time.Duration, roots ...string) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	w := &Watcher{
		o:        o,
		roots:    roots,
		files:    make(map[string]bool),
		debounce: debounce,
		watcher:  fw,
		pending:  make(map[string]time.Time),
	}
	for _, root := range roots {
		if err := w.addRoot(root); err != nil {
			fw.Close()
			return nil, err
		}
	}
	return w, nil
}

func (w *Watcher) addRoot(root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("stat %s: %w", root, err)
	}
	if !info.IsDir() {
		w.files[filepath.Clean(root)] = true
		return w.watcher.Add(filepath.Dir(root))
	}
	return w.addTree(root, root)
}

// addTree watches dir and every non-ignored directory below it.
func (w *Watcher) addTree(root, dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if rel, relErr := filepath.Rel(root, p); relErr == nil && rel != "." &&
			isIgnored(rel, d.Name(), w.o.cfg.Analysis.IgnorePatterns) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(p); err != nil {
			return fmt.Errorf("watch %s: %w", p, err)
		}
		logging.OrchestratorDebug("watching %s", p)
		return nil
	})
}

// Run performs an initial run, then re-runs after each settled batch of
// changes, handing every outcome to onReport. It blocks until ctx is done
// and closes the watcher before returning.
func (w *Watcher) Run(ctx context.Context, onReport func(*Report, error)) error {
	defer w.watcher.Close()

	if !w.rerun(ctx, onReport) {
		return nil
	}

	tick := w.debounce / 4
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Orchestrator("watcher stopped: %d runs", w.Stats().Runs)
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			logging.OrchestratorWarn("watcher error: %v", err)
			w.mu.Lock()
			w.stats.Errors++
			w.mu.Unlock()

		case <-ticker.C:
			if w.settled() && !w.rerun(ctx, onReport) {
				return nil
			}
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	var kind string
	switch {
	case event.Op&fsnotify.Create != 0:
		kind = "create"
	case event.Op&fsnotify.Write != 0:
		kind = "modify"
	case event.Op&fsnotify.Remove != 0:
		kind = "delete"
	case event.Op&fsnotify.Rename != 0:
		kind = "rename"
	default:
		return
	}

	if kind == "create" {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if root, ok := w.rootOf(event.Name); ok {
				if err := w.addTree(root, event.Name); err != nil {
					logging.OrchestratorWarn("watch new directory %s: %v", event.Name, err)
				}
			}
			return
		}
	}
	if !w.relevant(event.Name) {
		return
	}

	logging.OrchestratorDebug("watcher: %s %s", kind, event.Name)
	w.mu.Lock()
	defer w.mu.Unlock()
	now := time.Now()
	w.stats.Events++
	w.stats.LastEventPath = event.Name
	w.stats.LastEventType = kind
	w.stats.LastEventTime = now
	w.pending[event.Name] = now
}

// relevant reports whether a change to name affects the analyzed set.
func (w *Watcher) relevant(name string) bool {
	if !strings.HasSuffix(name, ".py") {
		return false
	}
	if w.files[filepath.Clean(name)] {
		return true
	}
	root, ok := w.rootOf(name)
	if !ok {
		return false
	}
	rel, err := filepath.Rel(root, name)
	if err != nil {
		return false
	}
	return !isIgnored(rel, filepath.Base(name), w.o.cfg.Analysis.IgnorePatterns)
}

// rootOf returns the directory root that contains p.
func (w *Watcher) rootOf(p string) (string, bool) {
	for _, root := range w.roots {
		if w.files[filepath.Clean(root)] {
			continue
		}
		rel, err := filepath.Rel(root, p)
		if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return root, true
		}
	}
	return "", false
}

// settled clears and reports the pending set once every change in it is
// older than the debounce window.
func (w *Watcher) settled() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.pending) == 0 {
		return false
	}
	now := time.Now()
	for _, at := range w.pending {
		if now.Sub(at) < w.debounce {
			return false
		}
	}
	clear(w.pending)
	return true
}

// rerun runs the pipeline once. It returns false when ctx ended the run.
func (w *Watcher) rerun(ctx context.Context, onReport func(*Report, error)) bool {
	report, err := w.o.RunPaths(ctx, w.roots...)
	if ctx.Err() != nil {
		return false
	}
	w.mu.Lock()
	w.stats.Runs++
	if err != nil {
		w.stats.Errors++
	}
	w.mu.Unlock()
	if onReport != nil {
		onReport(report, err)
	}
	return true
}

// Stats returns a copy of the watcher counters.
func (w *Watcher) Stats() WatchStats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}
