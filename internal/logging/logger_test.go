package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func resetState() {
	CloseAll()
	loggers = make(map[Category]*Logger)
	logsDir = ""
	workspace = ""
	configLoaded = false
	config = loggingConfig{}
}

// TestAllCategoriesLog tests that all categories create log files when debug_mode is true
func TestAllCategoriesLog(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "logging_test")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	configDir := filepath.Join(tempDir, ".coursenerd")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatalf("Failed to create config dir: %v", err)
	}

	configContent := `{
		"logging": {
			"level": "debug",
			"debug_mode": true,
			"categories": {
				"boot": true,
				"session": true,
				"retrieval": true,
				"bridge": true,
				"snapshot": true,
				"forum": true,
				"tools": true,
				"store": true
			}
		}
	}`

	configPath := filepath.Join(configDir, "config.json")
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	resetState()

	if err := Initialize(tempDir); err != nil {
		t.Fatalf("Failed to initialize logging: %v", err)
	}

	if !IsDebugMode() {
		t.Error("Expected debug mode to be enabled")
	}

	categories := []Category{
		CategoryBoot,
		CategorySession,
		CategoryRetrieval,
		CategoryBridge,
		CategorySnapshot,
		CategoryForum,
		CategoryTools,
		CategoryStore,
	}

	for _, cat := range categories {
		if !IsCategoryEnabled(cat) {
			t.Errorf("Category %s should be enabled", cat)
		}

		logger := Get(cat)
		logger.Info("Test info message for %s", cat)
		logger.Debug("Test debug message for %s", cat)
		logger.Warn("Test warn message for %s", cat)
		logger.Error("Test error message for %s", cat)
	}

	// Also test convenience functions
	Boot("Convenience boot log")
	Session("Convenience session log")
	Retrieval("Convenience retrieval log")
	Bridge("Convenience bridge log")
	Snapshot("Convenience snapshot log")
	Forum("Convenience forum log")
	Tools("Convenience tools log")
	Store("Convenience store log")

	// Close all loggers to flush
	CloseAll()

	logsPath := filepath.Join(tempDir, ".coursenerd", "logs")
	entries, err := os.ReadDir(logsPath)
	if err != nil {
		t.Fatalf("Failed to read logs dir: %v", err)
	}

	t.Logf("Created %d log files in %s", len(entries), logsPath)

	for _, cat := range categories {
		found := false
		for _, entry := range entries {
			if strings.Contains(entry.Name(), string(cat)+".log") {
				found = true
				content, err := os.ReadFile(filepath.Join(logsPath, entry.Name()))
				if err != nil {
					t.Errorf("Failed to read log file for %s: %v", cat, err)
					continue
				}
				if len(content) == 0 {
					t.Errorf("Log file for %s is empty", cat)
				}
				break
			}
		}
		if !found {
			t.Errorf("No log file found for category: %s", cat)
		}
	}
}

// TestDebugModeDisabled tests that no logs are created when debug_mode is false
func TestDebugModeDisabled(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "logging_test_disabled")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	configDir := filepath.Join(tempDir, ".coursenerd")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatalf("Failed to create config dir: %v", err)
	}

	configContent := `{
		"logging": {
			"level": "debug",
			"debug_mode": false,
			"categories": {
				"boot": true,
				"bridge": true
			}
		}
	}`

	configPath := filepath.Join(configDir, "config.json")
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	resetState()

	if err := Initialize(tempDir); err != nil {
		t.Fatalf("Failed to initialize logging: %v", err)
	}

	if IsDebugMode() {
		t.Error("Expected debug mode to be DISABLED (production mode)")
	}

	categories := []Category{
		CategoryBoot,
		CategoryBridge,
		CategoryForum,
	}

	for _, cat := range categories {
		if IsCategoryEnabled(cat) {
			t.Errorf("Category %s should be DISABLED when debug_mode=false", cat)
		}
	}

	// Try to log - should be no-ops
	Boot("This should NOT be logged")
	Bridge("This should NOT be logged")

	logger := Get(CategoryBoot)
	logger.Info("This should NOT be logged")
	logger.Debug("This should NOT be logged")
	logger.Error("This should NOT be logged")

	CloseAll()

	// Verify NO log files were created (logs directory shouldn't even exist)
	logsPath := filepath.Join(tempDir, ".coursenerd", "logs")
	_, err = os.Stat(logsPath)
	if err == nil {
		entries, _ := os.ReadDir(logsPath)
		if len(entries) > 0 {
			t.Errorf("Expected NO log files in production mode, but found %d files", len(entries))
			for _, e := range entries {
				t.Logf("  - %s", e.Name())
			}
		}
	}
}

// TestCategoryToggle tests individual category enable/disable
func TestCategoryToggle(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "logging_test_category")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	configDir := filepath.Join(tempDir, ".coursenerd")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatalf("Failed to create config dir: %v", err)
	}

	configContent := `{
		"logging": {
			"level": "debug",
			"debug_mode": true,
			"categories": {
				"boot": true,
				"bridge": true,
				"forum": false,
				"snapshot": false
			}
		}
	}`

	configPath := filepath.Join(configDir, "config.json")
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	resetState()

	if err := Initialize(tempDir); err != nil {
		t.Fatalf("Failed to initialize: %v", err)
	}

	if !IsCategoryEnabled(CategoryBoot) {
		t.Error("boot should be enabled")
	}
	if !IsCategoryEnabled(CategoryBridge) {
		t.Error("bridge should be enabled")
	}
	if IsCategoryEnabled(CategoryForum) {
		t.Error("forum should be DISABLED")
	}
	if IsCategoryEnabled(CategorySnapshot) {
		t.Error("snapshot should be DISABLED")
	}

	// Category not in config defaults to enabled when debug_mode=true
	if !IsCategoryEnabled(CategoryRetrieval) {
		t.Error("retrieval (not in config) should default to enabled")
	}

	Boot("This SHOULD be logged")
	Bridge("This SHOULD be logged")
	Forum("This should NOT be logged")
	Snapshot("This should NOT be logged")
	Retrieval("This SHOULD be logged (default enabled)")

	CloseAll()

	logsPath := filepath.Join(tempDir, ".coursenerd", "logs")
	entries, _ := os.ReadDir(logsPath)

	hasBootLog := false
	hasBridgeLog := false
	hasForumLog := false
	hasSnapshotLog := false

	for _, e := range entries {
		name := e.Name()
		if strings.Contains(name, "boot") {
			hasBootLog = true
		}
		if strings.Contains(name, "bridge") {
			hasBridgeLog = true
		}
		if strings.Contains(name, "forum") {
			hasForumLog = true
		}
		if strings.Contains(name, "snapshot") {
			hasSnapshotLog = true
		}
	}

	if !hasBootLog {
		t.Error("Expected boot log file")
	}
	if !hasBridgeLog {
		t.Error("Expected bridge log file")
	}
	if hasForumLog {
		t.Error("Should NOT have forum log file (disabled)")
	}
	if hasSnapshotLog {
		t.Error("Should NOT have snapshot log file (disabled)")
	}
}

// TestTimerLogging tests the timing helper
func TestTimerLogging(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "logging_test_timer")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	configDir := filepath.Join(tempDir, ".coursenerd")
	os.MkdirAll(configDir, 0755)

	configContent := `{"logging": {"level": "debug", "debug_mode": true}}`
	os.WriteFile(filepath.Join(configDir, "config.json"), []byte(configContent), 0644)

	resetState()
	Initialize(tempDir)

	timer := StartTimer(CategoryBridge, "TestOperation")
	time.Sleep(time.Millisecond)
	elapsed := timer.Stop()

	if elapsed <= 0 {
		t.Error("Timer should have recorded non-zero duration")
	}

	CloseAll()
}
