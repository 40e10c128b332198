// Package config holds courseNERD configuration: defaults, the
// .coursenerd/config.json file, and environment overrides.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// Config holds all courseNERD configuration.
type Config struct {
	Name    string `json:"name"`
	Version string `json:"version"`

	// Retrieval service
	KB KBConfig `json:"kb"`

	// Moodle forum publishing
	Forum ForumConfig `json:"forum"`

	// Browser bridge
	Bridge BridgeConfig `json:"bridge"`

	// Diagnostics store
	Store StoreConfig `json:"store"`

	// LLM orchestrator
	LLM LLMConfig `json:"llm"`
}

// KBConfig configures the knowledge base client.
type KBConfig struct {
	BaseURL string `json:"base_url"`
	APIKey  string `json:"api_key"`
	Mode    string `json:"mode"`
}

// ForumConfig configures forum publishing.
type ForumConfig struct {
	URL string `json:"url"`
}

// BridgeConfig configures the browser bridge.
type BridgeConfig struct {
	// Command is the bridge process command line. Empty means the
	// packaged default; the literal "rod" drives a browser in-process
	// instead of spawning a bridge.
	Command string `json:"command"`

	// Headless applies when driving the browser in-process.
	Headless bool `json:"headless"`
}

// StoreConfig configures the diagnostics database.
type StoreConfig struct {
	DatabasePath string `json:"database_path"`
}

// LLMConfig configures the external orchestrator.
type LLMConfig struct {
	Model          string `json:"model"`
	RecursionLimit int    `json:"recursion_limit"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "courseNERD",
		Version: "1.0.0",

		KB: KBConfig{
			BaseURL: "http://localhost:9621",
			Mode:    "hybrid",
		},

		Bridge: BridgeConfig{
			Headless: true,
		},

		Store: StoreConfig{
			DatabasePath: filepath.Join(".coursenerd", "coursenerd.db"),
		},

		LLM: LLMConfig{
			Model:          "claude-sonnet-4-20250514",
			RecursionLimit: 100,
		},
	}
}

// DefaultPath returns the config file location under the workspace.
func DefaultPath(workspace string) string {
	return filepath.Join(workspace, ".coursenerd", "config.json")
}

// Load loads configuration from a JSON file. A missing file yields
// defaults; environment variables override either way.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the configuration to a JSON file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides lets environment variables win over file values.
func (c *Config) applyEnvOverrides() {
	if url := os.Getenv("LIGHTRAG_BASE_URL"); url != "" {
		c.KB.BaseURL = url
	}
	if key := os.Getenv("LIGHTRAG_API_KEY"); key != "" {
		c.KB.APIKey = key
	}
	if url := os.Getenv("MOODLE_FORUM_URL"); url != "" {
		c.Forum.URL = url
	}
	if cmd := os.Getenv("COURSENERD_BRIDGE"); cmd != "" {
		c.Bridge.Command = cmd
	}
	if path := os.Getenv("COURSENERD_DB"); path != "" {
		c.Store.DatabasePath = path
	}
	if model := os.Getenv("CLAUDE_MODEL"); model != "" {
		c.LLM.Model = model
	}
	if limit := os.Getenv("RECURSION_LIMIT"); limit != "" {
		if n, err := strconv.Atoi(limit); err == nil && n > 0 {
			c.LLM.RecursionLimit = n
		}
	}
}
