package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Snapshot.Path != "tempvoice.db" {
		t.Errorf("unexpected snapshot path: %q", cfg.Snapshot.Path)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("unexpected log level: %q", cfg.Log.Level)
	}
	if cfg.Log.MaxSizeMB != 50 || cfg.Log.MaxBackups != 3 || cfg.Log.MaxAgeDays != 14 {
		t.Errorf("unexpected rotation defaults: %+v", cfg.Log)
	}
	if cfg.Simulation {
		t.Error("simulation should default to off")
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	contents := []byte("snapshot:\n  path: /var/lib/tempvoice/state.db\nlog:\n  level: debug\n  file_path: /var/log/tempvoice.log\nsimulation: true\n")
	if err := os.WriteFile(path, contents, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Snapshot.Path != "/var/lib/tempvoice/state.db" {
		t.Errorf("unexpected snapshot path: %q", cfg.Snapshot.Path)
	}
	if cfg.Log.Level != "debug" || cfg.Log.FilePath != "/var/log/tempvoice.log" {
		t.Errorf("unexpected log config: %+v", cfg.Log)
	}
	if !cfg.Simulation {
		t.Error("expected simulation enabled")
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("log:\n  level: debug\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("TEMPVOICE_LOG_LEVEL", "error")
	t.Setenv("TEMPVOICE_SNAPSHOT_PATH", "/tmp/override.db")
	t.Setenv("TEMPVOICE_SIMULATION", "1")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Log.Level != "error" {
		t.Errorf("env override lost: %q", cfg.Log.Level)
	}
	if cfg.Snapshot.Path != "/tmp/override.db" {
		t.Errorf("env override lost: %q", cfg.Snapshot.Path)
	}
	if !cfg.Simulation {
		t.Error("expected simulation enabled via env")
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
}
