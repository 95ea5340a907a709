package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Gameaday/ia-helper-sub003/common"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != common.DefaultPort {
		t.Errorf("expected default port %d, got %d", common.DefaultPort, cfg.Port)
	}
	if cfg.MaxConcurrent <= 0 {
		t.Errorf("expected positive default concurrency, got %d", cfg.MaxConcurrent)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	data := `{"port": 4000, "max_concurrent": 8, "download_dir": "/srv/archive"}`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 4000 {
		t.Errorf("expected port 4000, got %d", cfg.Port)
	}
	if cfg.MaxConcurrent != 8 {
		t.Errorf("expected max_concurrent 8, got %d", cfg.MaxConcurrent)
	}
	if cfg.DownloadDir != "/srv/archive" {
		t.Errorf("expected overridden download dir, got %s", cfg.DownloadDir)
	}
	// Untouched fields keep their defaults.
	if cfg.MaxRetries != Default().MaxRetries {
		t.Errorf("expected default retries, got %d", cfg.MaxRetries)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"port": 4000}`), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(common.PortEnv, "5000")
	t.Setenv(common.SecretEnv, "hunter2")
	t.Setenv(common.DebugEnv, "1")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 5000 {
		t.Errorf("expected env port 5000, got %d", cfg.Port)
	}
	if cfg.Secret != "hunter2" {
		t.Errorf("expected env secret, got %q", cfg.Secret)
	}
	if !cfg.Debug {
		t.Error("expected debug enabled from env")
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{not json`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for malformed config")
	}
}

func TestLoad_InvalidEnvPortIgnored(t *testing.T) {
	t.Setenv(common.PortEnv, "not-a-number")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != common.DefaultPort {
		t.Errorf("expected default port kept, got %d", cfg.Port)
	}
}
