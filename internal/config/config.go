// Package config loads the optional julget configuration file. Everything
// has a default; the tool works with no config file at all.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration.
type Config struct {
	// DBPath locates the bookkeeping database used in mirror mode.
	DBPath string `yaml:"db_path"`
	// Sources points at a user upstream override file (JSON).
	Sources string       `yaml:"sources"`
	Mirror  MirrorConfig `yaml:"mirror"`
}

// MirrorConfig controls the mirror replication loop. An absent section
// means "sync everything, single pass".
type MirrorConfig struct {
	OutDir  string `yaml:"outdir"`
	Period  string `yaml:"period"` // Go duration string; empty means single pass
	Workers int    `yaml:"workers"`
	// Systems/Architectures restrict the catalog; empty means all supported.
	Systems       []string `yaml:"systems"`
	Architectures []string `yaml:"architectures"`
	// VersionSeries restricts stable releases to the listed major or
	// major.minor lines; empty means every published release.
	VersionSeries  []string `yaml:"version_series"`
	IncludeNightly *bool    `yaml:"include_nightly"`
}

// SyncPeriod parses the configured sync interval. Zero means single pass.
func (m MirrorConfig) SyncPeriod() (time.Duration, error) {
	if m.Period == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(m.Period)
	if err != nil {
		return 0, fmt.Errorf("parsing mirror period %q: %w", m.Period, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("mirror period must not be negative: %s", m.Period)
	}
	return d, nil
}

// Nightly reports whether nightly builds are included (default true).
func (m MirrorConfig) Nightly() bool {
	return m.IncludeNightly == nil || *m.IncludeNightly
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		DBPath: "julget.db",
		Mirror: MirrorConfig{
			OutDir:  "julia-mirror",
			Workers: 4,
		},
	}
}

// Load reads a config file from the given path on top of the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	if cfg.Mirror.Workers <= 0 {
		cfg.Mirror.Workers = 4
	}
	return cfg, nil
}

// FindConfigFile searches standard locations for a config file.
func FindConfigFile() (string, error) {
	searchPaths := []string{"julget.yaml"}
	if home, err := os.UserHomeDir(); err == nil {
		searchPaths = append(searchPaths,
			filepath.Join(home, ".config", "julget", "julget.yaml"),
		)
	}
	for _, path := range searchPaths {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("no config file found (searched: %v)", searchPaths)
}
