package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fieldsync.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

// TestLoad verifies a full config round trip.
func TestLoad(t *testing.T) {
	path := writeConfig(t, `
data_dir: /var/lib/fieldsync
remote:
  base_url: https://api.example.com
  token: tok-1
  timeout_seconds: 10
sync:
  seed_resources: [lookups, config]
session:
  validity_hours: 720
effective:
  lookback_days: 200
status_addr: 127.0.0.1:8090
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.DataDir != "/var/lib/fieldsync" {
		t.Errorf("DataDir = %q", cfg.DataDir)
	}
	if cfg.Remote.BaseURL != "https://api.example.com" {
		t.Errorf("BaseURL = %q", cfg.Remote.BaseURL)
	}
	if cfg.Remote.Timeout() != 10*time.Second {
		t.Errorf("Timeout = %v", cfg.Remote.Timeout())
	}
	if len(cfg.Sync.SeedResources) != 2 || cfg.Sync.SeedResources[0] != "lookups" {
		t.Errorf("SeedResources = %v", cfg.Sync.SeedResources)
	}
	if cfg.Session.ValidityWindow() != 720*time.Hour {
		t.Errorf("ValidityWindow = %v", cfg.Session.ValidityWindow())
	}
	if cfg.Effective.Lookback() != 200*24*time.Hour {
		t.Errorf("Lookback = %v", cfg.Effective.Lookback())
	}
	if cfg.StatusAddr != "127.0.0.1:8090" {
		t.Errorf("StatusAddr = %q", cfg.StatusAddr)
	}
}

// TestLoadDefaults verifies omitted fields get defaults.
func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
remote:
  base_url: https://api.example.com
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.DataDir != "./data" {
		t.Errorf("DataDir default = %q", cfg.DataDir)
	}
	if cfg.Remote.Timeout() != 30*time.Second {
		t.Errorf("Timeout default = %v", cfg.Remote.Timeout())
	}
	if cfg.Effective.LookbackDays != 400 {
		t.Errorf("LookbackDays default = %d", cfg.Effective.LookbackDays)
	}
	if cfg.Session.ValidityWindow() != 0 {
		t.Errorf("ValidityWindow default = %v, want 0 (presence only)", cfg.Session.ValidityWindow())
	}
}

// TestLoadRequiresBaseURL verifies validation.
func TestLoadRequiresBaseURL(t *testing.T) {
	path := writeConfig(t, `data_dir: ./data`)

	if _, err := Load(path); err == nil {
		t.Error("Load without remote.base_url should fail")
	}
}

// TestLoadMissingFile verifies a clear error for a bad path.
func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("Load of missing file should fail")
	}
}

// TestLoadMalformedYAML verifies parse errors surface.
func TestLoadMalformedYAML(t *testing.T) {
	path := writeConfig(t, "remote: [not a map")

	if _, err := Load(path); err == nil {
		t.Error("Load of malformed YAML should fail")
	}
}
