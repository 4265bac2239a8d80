package config

import (
	"os"
	"testing"
)

func TestLoadBridgeConfigDefaults(t *testing.T) {
	cfg, err := LoadBridgeConfig("")
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.LogLevel != "info" {
		t.Errorf("Default log level mismatch: got %s, want info", cfg.LogLevel)
	}

	if cfg.FanOutLimit != 16 {
		t.Errorf("Default fan-out limit mismatch: got %d, want 16", cfg.FanOutLimit)
	}

	if len(cfg.BundlePaths) != 1 || cfg.BundlePaths[0] != "./bundles" {
		t.Errorf("Default bundle paths mismatch: got %v, want [./bundles]", cfg.BundlePaths)
	}

	if cfg.Sandbox.MemoryPages != 256 {
		t.Errorf("Default memory pages mismatch: got %d, want 256", cfg.Sandbox.MemoryPages)
	}

	if cfg.Sandbox.ExecutionTimeout != 30 {
		t.Errorf("Default execution timeout mismatch: got %d, want 30", cfg.Sandbox.ExecutionTimeout)
	}
}

func TestLoadBridgeConfigFromFile(t *testing.T) {
	tmpfile, err := os.CreateTemp("", "config*.yaml")
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(tmpfile.Name())

	configContent := `
log_level: debug
fan_out_limit: 4
bundle_paths:
  - /opt/bundles
sandbox:
  memory_pages: 64
  debug: true
`
	if _, err := tmpfile.Write([]byte(configContent)); err != nil {
		t.Fatal(err)
	}
	if err := tmpfile.Close(); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadBridgeConfig(tmpfile.Name())
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.LogLevel != "debug" {
		t.Errorf("Log level mismatch: got %s, want debug", cfg.LogLevel)
	}

	if cfg.FanOutLimit != 4 {
		t.Errorf("Fan-out limit mismatch: got %d, want 4", cfg.FanOutLimit)
	}

	if cfg.Sandbox.MemoryPages != 64 {
		t.Errorf("Memory pages mismatch: got %d, want 64", cfg.Sandbox.MemoryPages)
	}

	if !cfg.Sandbox.Debug {
		t.Error("Sandbox debug should be enabled")
	}
}

func TestLoadBridgeConfigMissingFile(t *testing.T) {
	if _, err := LoadBridgeConfig("/nonexistent/bridge.yaml"); err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}
