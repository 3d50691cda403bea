package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "julget.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
db_path: /var/lib/julget/state.db
sources: /etc/julget/sources.json
mirror:
  outdir: /srv/julia
  period: 24h
  workers: 8
  systems: [linux, macos]
  architectures: [x86_64]
  version_series: ["1.3", "1.4"]
  include_nightly: false
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.DBPath != "/var/lib/julget/state.db" {
		t.Errorf("DBPath = %q", cfg.DBPath)
	}
	if cfg.Sources != "/etc/julget/sources.json" {
		t.Errorf("Sources = %q", cfg.Sources)
	}
	if cfg.Mirror.OutDir != "/srv/julia" || cfg.Mirror.Workers != 8 {
		t.Errorf("Mirror = %+v", cfg.Mirror)
	}
	if len(cfg.Mirror.Systems) != 2 || len(cfg.Mirror.VersionSeries) != 2 {
		t.Errorf("filters = %+v", cfg.Mirror)
	}
	if cfg.Mirror.Nightly() {
		t.Error("Nightly() = true, config says false")
	}

	period, err := cfg.Mirror.SyncPeriod()
	if err != nil {
		t.Fatalf("SyncPeriod failed: %v", err)
	}
	if period != 24*time.Hour {
		t.Errorf("period = %v", period)
	}
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, "mirror:\n  outdir: /srv/julia\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.DBPath != "julget.db" {
		t.Errorf("DBPath = %q", cfg.DBPath)
	}
	if cfg.Mirror.Workers != 4 {
		t.Errorf("Workers = %d, want default 4", cfg.Mirror.Workers)
	}
	if !cfg.Mirror.Nightly() {
		t.Error("Nightly() should default to true")
	}
	period, err := cfg.Mirror.SyncPeriod()
	if err != nil || period != 0 {
		t.Errorf("period = %v, %v; want single pass", period, err)
	}
}

func TestLoadBadYAML(t *testing.T) {
	path := writeConfig(t, "mirror: [not a mapping")
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestSyncPeriodValidation(t *testing.T) {
	for _, bad := range []string{"daily", "-1h"} {
		m := MirrorConfig{Period: bad}
		if _, err := m.SyncPeriod(); err == nil {
			t.Errorf("SyncPeriod(%q) should fail", bad)
		}
	}
}
