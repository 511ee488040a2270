package daemon

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.API.Host != "127.0.0.1" {
		t.Errorf("API.Host = %q, want %q", cfg.API.Host, "127.0.0.1")
	}
	if cfg.API.Port != 7333 {
		t.Errorf("API.Port = %d, want %d", cfg.API.Port, 7333)
	}
	if cfg.API.Metrics {
		t.Error("API.Metrics should be false by default (opt-in)")
	}
	if !cfg.Data.WatchLocal {
		t.Error("Data.WatchLocal should be true by default")
	}

	if cfg.Metering.ChatNormal != 10 {
		t.Errorf("Metering.ChatNormal = %d, want 10", cfg.Metering.ChatNormal)
	}
	if cfg.Metering.ChatIgnite != 60 {
		t.Errorf("Metering.ChatIgnite = %d, want 60", cfg.Metering.ChatIgnite)
	}
	if cfg.Metering.ChatIgnite <= cfg.Metering.ChatNormal {
		t.Error("ignite must cost strictly more than normal")
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.API.Port != DefaultConfig().API.Port {
		t.Errorf("Port = %d, want default", cfg.API.Port)
	}
}

func TestLoadOverridesSections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	body := `
[api]
host = "0.0.0.0"
port = 9000
metrics = true

[metering]
chat_normal = 5
chat_ignite = 50
crud_ai = 25
image_gen = 100
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.API.Addr() != "0.0.0.0:9000" {
		t.Errorf("Addr = %q", cfg.API.Addr())
	}
	if !cfg.API.Metrics {
		t.Error("metrics not enabled")
	}
	if cfg.Metering.ChatNormal != 5 {
		t.Errorf("ChatNormal = %d, want 5", cfg.Metering.ChatNormal)
	}
	// Untouched section keeps defaults.
	if !cfg.Data.WatchLocal {
		t.Error("Data.WatchLocal lost its default")
	}
}

func TestLoadRejectsIgniteBelowNormal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	body := `
[metering]
chat_normal = 60
chat_ignite = 10
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("want validation error, got nil")
	}
}
