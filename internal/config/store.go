package config

// StoreConfig configures the SQLite vector store adapter.
type StoreConfig struct {
	// Enabled hands fragments to the store after each batch.
	Enabled      bool   `yaml:"enabled" json:"enabled,omitempty"`
	DatabasePath string `yaml:"database_path" json:"database_path,omitempty"`
	// BatchSize is the number of fragments embedded per provider call.
	BatchSize int `yaml:"batch_size" json:"batch_size,omitempty"`
}
