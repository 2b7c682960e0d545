package config

// ValidEmbeddingProviders lists the supported embedding backends.
// "none" runs in analysis-only mode.
var ValidEmbeddingProviders = []string{"hash", "ollama", "genai", "none"}

// EmbeddingConfig configures the embedding engine.
type EmbeddingConfig struct {
	Provider       string `yaml:"provider" json:"provider,omitempty"` // hash, ollama, genai, none
	OllamaEndpoint string `yaml:"ollama_endpoint" json:"ollama_endpoint,omitempty"`
	OllamaModel    string `yaml:"ollama_model" json:"ollama_model,omitempty"`
	GenAIAPIKey    string `yaml:"genai_api_key" json:"genai_api_key,omitempty"`
	GenAIModel     string `yaml:"genai_model" json:"genai_model,omitempty"`
	TaskType       string `yaml:"task_type" json:"task_type,omitempty"`
	// HashDimensions sizes the deterministic offline engine.
	HashDimensions int    `yaml:"hash_dimensions" json:"hash_dimensions,omitempty"`
	Timeout        string `yaml:"timeout" json:"timeout,omitempty"`
}

// DefaultEmbeddingConfig returns embedding defaults.
func DefaultEmbeddingConfig() EmbeddingConfig {
	return EmbeddingConfig{
		Provider:       "hash",
		OllamaEndpoint: "http://localhost:11434",
		OllamaModel:    "embeddinggemma",
		GenAIModel:     "gemini-embedding-001",
		TaskType:       "SEMANTIC_SIMILARITY",
		HashDimensions: 768,
		Timeout:        "30s",
	}
}
