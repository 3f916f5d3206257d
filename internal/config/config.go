package config

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// Config is the persistent application configuration
type Config struct {
	// Classification oracle settings
	Oracle OracleSettings `json:"oracle"`

	// Feed source settings
	Sources SourceSettings `json:"sources"`

	// Ingestion cycle settings
	Ingest IngestSettings `json:"ingest"`

	// HTTP surface settings
	Web WebSettings `json:"web"`
}

// OracleSettings configures the external classification oracle
type OracleSettings struct {
	Provider  string `json:"provider"`           // "anthropic" or "ollama"
	APIKey    string `json:"api_key,omitempty"`
	Model     string `json:"model,omitempty"`
	Endpoint  string `json:"endpoint,omitempty"` // For Ollama or custom endpoints
	MaxRounds int    `json:"max_rounds"`         // Retry ceiling for incomplete partitions
}

// SourceSettings configures the remote feeds
type SourceSettings struct {
	// Priorities is the display precedence of source id prefixes.
	// Earlier entries rank before later ones in the pending tabs.
	Priorities []string `json:"priorities"`

	// LobstersPages is how many pages of the hottest listing are
	// considered "available". Only the first page by default.
	LobstersPages int `json:"lobsters_pages"`
}

// IngestSettings configures the periodic ingestion cycle
type IngestSettings struct {
	IntervalMinutes     int `json:"interval_minutes"`
	CycleTimeoutMinutes int `json:"cycle_timeout_minutes"`
	FetchWorkers        int `json:"fetch_workers"`  // Max in-flight item fetches
	FetchAttempts       int `json:"fetch_attempts"` // Per-id retry ceiling
	HistoryLimit        int `json:"history_limit"`  // Retained classified rows per category
	PoolSize            int `json:"pool_size"`      // Reusable store connections
}

// WebSettings configures the HTTP surface
type WebSettings struct {
	Addr     string `json:"addr"`
	PageSize int    `json:"page_size"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Oracle: OracleSettings{
			Provider:  "anthropic",
			Model:     "claude-sonnet-4-5-20250929",
			MaxRounds: 3,
		},
		Sources: SourceSettings{
			Priorities:    []string{"lobsters", "hn"},
			LobstersPages: 1,
		},
		Ingest: IngestSettings{
			IntervalMinutes:     60,
			CycleTimeoutMinutes: 15,
			FetchWorkers:        10,
			FetchAttempts:       3,
			HistoryLimit:        300,
			PoolSize:            4,
		},
		Web: WebSettings{
			Addr:     ":8080",
			PageSize: 100,
		},
	}
}

// ConfigPath returns the path to the config file
func ConfigPath(dataDir string) string {
	return filepath.Join(dataDir, "config.json")
}

// Load reads config from disk, or returns defaults
func Load(dataDir string) (*Config, error) {
	path := ConfigPath(dataDir)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := DefaultConfig()
			cfg.AutoPopulateFromEnv()
			return cfg, nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return DefaultConfig(), nil
	}
	cfg.AutoPopulateFromEnv()

	return cfg, nil
}

// Save writes config to disk
func (c *Config) Save(dataDir string) error {
	path := ConfigPath(dataDir)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600) // Restrictive permissions for API keys
}

// AutoPopulateFromEnv fills in the oracle credential from environment
// variables when the config carries none.
func (c *Config) AutoPopulateFromEnv() {
	if c.Oracle.APIKey != "" {
		return
	}
	if key := os.Getenv("SIFT_ORACLE_KEY"); key != "" {
		c.Oracle.APIKey = key
		return
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		c.Oracle.APIKey = key
	}
}
