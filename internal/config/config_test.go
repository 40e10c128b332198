package config

import (
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.KB.BaseURL != "http://localhost:9621" {
		t.Errorf("unexpected default KB URL: %s", cfg.KB.BaseURL)
	}
	if cfg.KB.Mode != "hybrid" {
		t.Errorf("unexpected default mode: %s", cfg.KB.Mode)
	}
	if cfg.LLM.RecursionLimit != 100 {
		t.Errorf("unexpected default recursion limit: %d", cfg.LLM.RecursionLimit)
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".coursenerd", "config.json")

	cfg := DefaultConfig()
	cfg.KB.BaseURL = "http://ragserver:9621"
	cfg.Forum.URL = "https://moodle.example.edu/mod/forum/view.php?id=12"

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.KB.BaseURL != "http://ragserver:9621" {
		t.Errorf("KB URL not round-tripped: %s", loaded.KB.BaseURL)
	}
	if loaded.Forum.URL != cfg.Forum.URL {
		t.Errorf("forum URL not round-tripped: %s", loaded.Forum.URL)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("LIGHTRAG_BASE_URL", "http://override:9621")
	t.Setenv("LIGHTRAG_API_KEY", "secret")
	t.Setenv("MOODLE_FORUM_URL", "https://moodle.example.edu/mod/forum/view.php?id=99")
	t.Setenv("RECURSION_LIMIT", "25")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.KB.BaseURL != "http://override:9621" {
		t.Errorf("env override missed for KB URL: %s", cfg.KB.BaseURL)
	}
	if cfg.KB.APIKey != "secret" {
		t.Errorf("env override missed for API key")
	}
	if cfg.Forum.URL != "https://moodle.example.edu/mod/forum/view.php?id=99" {
		t.Errorf("env override missed for forum URL: %s", cfg.Forum.URL)
	}
	if cfg.LLM.RecursionLimit != 25 {
		t.Errorf("env override missed for recursion limit: %d", cfg.LLM.RecursionLimit)
	}
}

func TestEnvOverrideInvalidRecursionLimit(t *testing.T) {
	t.Setenv("RECURSION_LIMIT", "not-a-number")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.LLM.RecursionLimit != 100 {
		t.Errorf("invalid env value should keep default, got %d", cfg.LLM.RecursionLimit)
	}
}

func TestEnvOverridesWinOverFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	cfg := DefaultConfig()
	cfg.KB.BaseURL = "http://fromfile:9621"
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	t.Setenv("LIGHTRAG_BASE_URL", "http://fromenv:9621")

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.KB.BaseURL != "http://fromenv:9621" {
		t.Errorf("env should win over file, got %s", loaded.KB.BaseURL)
	}
}
