package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is where the CLI looks for a workspace config.
const DefaultPath = ".pbj/config.yaml"

// Config holds all pbjrag configuration.
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Chunking, extraction and worker settings
	Analysis AnalysisConfig `yaml:"analysis"`

	// Heuristic weights for the composite field slots
	Weights WeightsConfig `yaml:"weights"`

	// Embedding provider (external collaborator)
	Embedding EmbeddingConfig `yaml:"embedding"`

	// Vector store adapter (external collaborator)
	Store StoreConfig `yaml:"store"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:      "pbjrag",
		Version:   "3.0.0",
		Analysis:  DefaultAnalysisConfig(),
		Weights:   DefaultWeightsConfig(),
		Embedding: DefaultEmbeddingConfig(),
		Store: StoreConfig{
			Enabled:      false,
			DatabasePath: ".pbj/fragments.db",
			BatchSize:    100,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from a YAML file.
// A missing file yields the defaults; env overrides apply either way.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("PBJ_FIELD_DIM"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Analysis.FieldDim = n
		}
	}
	if v := os.Getenv("PBJ_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Analysis.Workers = n
		}
	}

	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.Embedding.GenAIAPIKey = key
		if c.Embedding.Provider == "" {
			c.Embedding.Provider = "genai"
		}
	}
	if host := os.Getenv("OLLAMA_HOST"); host != "" {
		if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
			host = "http://" + host
		}
		c.Embedding.OllamaEndpoint = host
	}
	if p := os.Getenv("PBJ_EMBEDDING_PROVIDER"); p != "" {
		c.Embedding.Provider = p
	}

	if path := os.Getenv("PBJ_STORE_PATH"); path != "" {
		c.Store.DatabasePath = path
	}
	if v := os.Getenv("PBJ_INDEXING"); v != "" {
		if b, ok := parseBool(v); ok {
			c.Store.Enabled = b
		}
	}
	if v := os.Getenv("PBJ_DEBUG"); v != "" {
		if b, ok := parseBool(v); ok {
			c.Logging.DebugMode = b
		}
	}
}

func parseBool(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true, true
	case "0", "false", "no", "off":
		return false, true
	}
	return false, false
}

// GetFileTimeout returns the per-file analysis budget, zero meaning none.
func (c *Config) GetFileTimeout() time.Duration {
	if c.Analysis.FileTimeout == "" {
		return 0
	}
	d, err := time.ParseDuration(c.Analysis.FileTimeout)
	if err != nil {
		return 0
	}
	return d
}

// GetCompostMaxAge returns how long compost entries are kept.
func (c *Config) GetCompostMaxAge() time.Duration {
	d, err := time.ParseDuration(c.Analysis.CompostMaxAge)
	if err != nil {
		return 7 * 24 * time.Hour
	}
	return d
}

// GetEmbeddingTimeout returns the embedding request timeout.
func (c *Config) GetEmbeddingTimeout() time.Duration {
	d, err := time.ParseDuration(c.Embedding.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// IsIndexingEnabled reports whether fragments are handed to the vector store.
func (c *Config) IsIndexingEnabled() bool {
	return c.Store.Enabled && c.Embedding.Provider != "none"
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Analysis.FieldDim < MinFieldDim || c.Analysis.FieldDim > MaxFieldDim {
		return fmt.Errorf("analysis.field_dim must be in [%d, %d], got %d", MinFieldDim, MaxFieldDim, c.Analysis.FieldDim)
	}
	if c.Analysis.Workers < 1 {
		return fmt.Errorf("analysis.workers must be positive, got %d", c.Analysis.Workers)
	}
	if err := c.Weights.Validate(); err != nil {
		return err
	}
	if s := c.Analysis.CompostMaxAge; s != "" {
		d, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("analysis.compost_max_age: %w", err)
		}
		if d < MinCompostMaxAge {
			return fmt.Errorf("analysis.compost_max_age must be at least %s, got %s", MinCompostMaxAge, d)
		}
	}

	valid := false
	for _, p := range ValidEmbeddingProviders {
		if c.Embedding.Provider == p {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("invalid embedding provider: %s (valid: %v)", c.Embedding.Provider, ValidEmbeddingProviders)
	}
	if c.Embedding.Provider == "genai" && c.Embedding.GenAIAPIKey == "" {
		return fmt.Errorf("genai embedding provider requires an API key (set GEMINI_API_KEY)")
	}

	if c.Store.Enabled {
		if c.Store.DatabasePath == "" {
			return fmt.Errorf("store.database_path is required when indexing is enabled")
		}
		if c.Store.BatchSize < 1 {
			return fmt.Errorf("store.batch_size must be positive, got %d", c.Store.BatchSize)
		}
	}
	return nil
}
