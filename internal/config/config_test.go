package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv(configPathEnv, "")
	t.Setenv(daysBackEnv, "")
	t.Setenv(budgetSecondsEnv, "")

	cfg := Load()

	if cfg.Sync.DaysBack != 7 {
		t.Errorf("default daysBack = %d, want 7", cfg.Sync.DaysBack)
	}
	if cfg.Sync.BatchSize != 500 {
		t.Errorf("default batchSize = %d, want 500", cfg.Sync.BatchSize)
	}
	if cfg.Sync.Budget() != 480*time.Second {
		t.Errorf("default budget = %s, want 8m0s", cfg.Sync.Budget())
	}
	if cfg.Sync.MappingLimit != 10000 {
		t.Errorf("default mappingLimit = %d, want 10000", cfg.Sync.MappingLimit)
	}
	if cfg.Content.Section != "column" {
		t.Errorf("default section = %q, want column", cfg.Content.Section)
	}
	if cfg.Scheduler.Enabled {
		t.Error("scheduler must be off by default")
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := []byte(`
sync:
  daysBack: 14
  batchSize: 200
analytics:
  project: newsroom
content:
  host: news.example.org
scheduler:
  enabled: true
  interval: 2h
`)
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	t.Setenv(configPathEnv, path)

	cfg := Load()

	if cfg.Sync.DaysBack != 14 {
		t.Errorf("daysBack = %d, want 14", cfg.Sync.DaysBack)
	}
	if cfg.Sync.BatchSize != 200 {
		t.Errorf("batchSize = %d, want 200", cfg.Sync.BatchSize)
	}
	if cfg.Analytics.Project != "newsroom" {
		t.Errorf("project = %q, want newsroom", cfg.Analytics.Project)
	}
	if cfg.Content.Host != "news.example.org" {
		t.Errorf("host = %q, want news.example.org", cfg.Content.Host)
	}
	if !cfg.Scheduler.Enabled || cfg.Scheduler.Every() != 2*time.Hour {
		t.Errorf("scheduler = %+v, want enabled every 2h", cfg.Scheduler)
	}
	// Untouched keys keep their defaults.
	if cfg.Sync.BudgetSeconds != 480 {
		t.Errorf("budgetSeconds = %d, want 480", cfg.Sync.BudgetSeconds)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv(configPathEnv, "")
	t.Setenv(databaseDSNEnv, "postgres://ci:ci@db:5432/catalog")
	t.Setenv(analyticsBaseURLEnv, "https://warehouse.internal/v1")
	t.Setenv(analyticsTokenEnv, "tok-123")
	t.Setenv(daysBackEnv, "3")
	t.Setenv(rowLimitEnv, "1000")
	t.Setenv(batchSizeEnv, "50")
	t.Setenv(budgetSecondsEnv, "120")

	cfg := Load()

	if cfg.Catalog.DSN != "postgres://ci:ci@db:5432/catalog" {
		t.Errorf("dsn override lost: %q", cfg.Catalog.DSN)
	}
	if cfg.Analytics.BaseURL != "https://warehouse.internal/v1" || cfg.Analytics.Token != "tok-123" {
		t.Errorf("analytics override lost: %+v", cfg.Analytics)
	}
	if cfg.Sync.DaysBack != 3 || cfg.Sync.RowLimit != 1000 || cfg.Sync.BatchSize != 50 || cfg.Sync.BudgetSeconds != 120 {
		t.Errorf("sync overrides lost: %+v", cfg.Sync)
	}
}

func TestEnvOverridesIgnoreGarbage(t *testing.T) {
	t.Setenv(configPathEnv, "")
	t.Setenv(daysBackEnv, "soon")
	t.Setenv(batchSizeEnv, "-5")

	cfg := Load()

	if cfg.Sync.DaysBack != 7 {
		t.Errorf("non-numeric daysBack must be ignored, got %d", cfg.Sync.DaysBack)
	}
	if cfg.Sync.BatchSize != 500 {
		t.Errorf("negative batchSize must be ignored, got %d", cfg.Sync.BatchSize)
	}
}

func TestSchedulerEveryFallsBack(t *testing.T) {
	t.Parallel()

	for _, interval := range []string{"", "six hours", "-1h"} {
		s := SchedulerConfig{Interval: interval}
		if got := s.Every(); got != defaultInterval {
			t.Errorf("interval %q: got %s, want %s", interval, got, defaultInterval)
		}
	}
}
