// Package config loads the service configuration from an optional YAML file
// with environment overrides. Lifecycle constants the room engine relies on
// (per-user room limit, sweep period, adoption timeout) are fixed, not
// configurable.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config captures the tunable surface of the service.
type Config struct {
	Snapshot   SnapshotConfig `koanf:"snapshot"`
	Log        LogConfig      `koanf:"log"`
	Simulation bool           `koanf:"simulation"`
}

// SnapshotConfig locates the persisted room snapshot.
type SnapshotConfig struct {
	Path string `koanf:"path"`
}

// LogConfig controls the structured logger.
type LogConfig struct {
	Level      string `koanf:"level"`
	FilePath   string `koanf:"file_path"`
	MaxSizeMB  int    `koanf:"max_size_mb"`
	MaxBackups int    `koanf:"max_backups"`
	MaxAgeDays int    `koanf:"max_age_days"`
}

// Load reads configuration from the YAML file at path (when non-empty),
// applies defaults, and then environment overrides.
func Load(path string) (Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("load config file: %w", err)
		}
	}

	applyDefaults(k)
	applyEnvOverrides(k)

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

func applyDefaults(k *koanf.Koanf) {
	setDefault(k, "snapshot.path", "tempvoice.db")
	setDefault(k, "log.level", "info")
	setDefault(k, "log.max_size_mb", 50)
	setDefault(k, "log.max_backups", 3)
	setDefault(k, "log.max_age_days", 14)
}

func applyEnvOverrides(k *koanf.Koanf) {
	if path := envString("TEMPVOICE_SNAPSHOT_PATH"); path != "" {
		k.Set("snapshot.path", path)
	}
	if level := envString("TEMPVOICE_LOG_LEVEL"); level != "" {
		k.Set("log.level", level)
	}
	if logFile := envString("TEMPVOICE_LOG_FILE"); logFile != "" {
		k.Set("log.file_path", logFile)
	}
	if sim := envString("TEMPVOICE_SIMULATION"); sim != "" {
		k.Set("simulation", strings.EqualFold(sim, "true") || sim == "1")
	}
}

func setDefault(k *koanf.Koanf, key string, value any) {
	if !k.Exists(key) {
		k.Set(key, value)
	}
}

func envString(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}
