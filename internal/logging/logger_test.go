package logging

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

// TestAllCategoriesLog checks that every category creates a file when debug mode is on.
func TestAllCategoriesLog(t *testing.T) {
	tempDir := t.TempDir()
	defer CloseAll()

	if err := Initialize(tempDir, Settings{DebugMode: true, Level: "debug"}); err != nil {
		t.Fatalf("Failed to initialize logging: %v", err)
	}
	if !IsDebugMode() {
		t.Fatal("Expected debug mode to be enabled")
	}

	categories := []Category{
		CategoryBoot, CategorySyntax, CategoryChunker, CategoryFields,
		CategoryBlessing, CategoryPhase, CategoryPattern, CategoryField,
		CategoryResonance, CategoryEmbedding, CategoryStore, CategoryOrchestrator,
	}
	for _, cat := range categories {
		Get(cat).Info("hello from %s", cat)
	}
	CloseAll()

	logs := filepath.Join(tempDir, ".pbj", "logs")
	entries, err := os.ReadDir(logs)
	if err != nil {
		t.Fatalf("Failed to read logs dir: %v", err)
	}
	found := make(map[string]bool)
	for _, e := range entries {
		found[e.Name()] = true
	}
	date := time.Now().Format("2006-01-02")
	for _, cat := range categories {
		name := date + "_" + string(cat) + ".log"
		if !found[name] {
			t.Errorf("missing log file %s", name)
			continue
		}
		data, err := os.ReadFile(filepath.Join(logs, name))
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		if !strings.Contains(string(data), "hello from "+string(cat)) {
			t.Errorf("log file %s does not contain the message: %q", name, data)
		}
	}
}

func TestDisabledModeWritesNothing(t *testing.T) {
	tempDir := t.TempDir()
	defer CloseAll()

	if err := Initialize(tempDir, Settings{DebugMode: false}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	Chunker("not written")
	Get(CategoryStore).Error("not written either")

	if _, err := os.Stat(filepath.Join(tempDir, ".pbj", "logs")); !os.IsNotExist(err) {
		t.Errorf("expected no logs directory in production mode, got err=%v", err)
	}
}

func TestCategoryFilter(t *testing.T) {
	tempDir := t.TempDir()
	defer CloseAll()

	err := Initialize(tempDir, Settings{
		DebugMode:  true,
		Categories: map[string]bool{"store": false},
	})
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if IsCategoryEnabled(CategoryStore) {
		t.Error("store should be disabled")
	}
	if !IsCategoryEnabled(CategoryChunker) {
		t.Error("unlisted categories default to enabled")
	}
}

func TestJSONFormatAndStructuredLog(t *testing.T) {
	tempDir := t.TempDir()
	defer CloseAll()

	if err := Initialize(tempDir, Settings{DebugMode: true, JSONFormat: true}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	Get(CategoryField).StructuredLog("info", "coherence", map[string]interface{}{"value": 0.75})
	Get(CategoryField).With("run", "abc").Info("pulse")
	CloseAll()

	name := time.Now().Format("2006-01-02") + "_field.log"
	data, err := os.ReadFile(filepath.Join(tempDir, ".pbj", "logs", name))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	text := string(data)
	if !strings.Contains(text, `"value":0.75`) {
		t.Errorf("structured field missing: %s", text)
	}
	if !strings.Contains(text, `"run":"abc"`) {
		t.Errorf("With() field missing: %s", text)
	}
}

func TestLevelFiltering(t *testing.T) {
	tempDir := t.TempDir()
	defer CloseAll()

	if err := Initialize(tempDir, Settings{DebugMode: true, Level: "warn"}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	Get(CategoryPattern).Info("quiet")
	Get(CategoryPattern).Warn("loud")
	CloseAll()

	name := time.Now().Format("2006-01-02") + "_pattern.log"
	data, err := os.ReadFile(filepath.Join(tempDir, ".pbj", "logs", name))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if strings.Contains(string(data), "quiet") {
		t.Error("info entry should be filtered at warn level")
	}
	if !strings.Contains(string(data), "loud") {
		t.Error("warn entry missing")
	}
}

func TestConcurrentGet(t *testing.T) {
	tempDir := t.TempDir()
	defer CloseAll()

	if err := Initialize(tempDir, Settings{DebugMode: true}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	var wg sync.WaitGroup
	got := make([]*Logger, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i] = Get(CategoryOrchestrator)
			got[i].Info("worker %d", i)
		}(i)
	}
	wg.Wait()

	for i := 1; i < len(got); i++ {
		if got[i] != got[0] {
			t.Fatalf("expected a single cached logger, got distinct instances at %d", i)
		}
	}
}

func TestTimerReturnsElapsed(t *testing.T) {
	timer := StartTimer(CategoryBoot, "noop")
	time.Sleep(time.Millisecond)
	if d := timer.Stop(); d <= 0 {
		t.Errorf("expected positive duration, got %v", d)
	}
}
