package config

import (
	"os"
	"path/filepath"
	"testing"

	"ckc/internal/model"
)

func TestDefaults(t *testing.T) {
	cfg := Default()

	if cfg.Signals.Dependency != 1.0 || cfg.Signals.Semantic != 0.4 {
		t.Errorf("unexpected default coefficients: %+v", cfg.Signals)
	}
	if cfg.Strategy.Name != "louvain" {
		t.Errorf("default strategy = %q, want louvain", cfg.Strategy.Name)
	}
	if got := len(cfg.Hierarchy.Levels); got != 3 {
		t.Errorf("default levels count = %d, want 3", got)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Thresholds.MinCohesion != 0.80 {
		t.Errorf("minCohesion = %v, want 0.80", cfg.Thresholds.MinCohesion)
	}
}

func TestLoadOverrides(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, ".ckc")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	raw := `{"strategy": {"name": "spectral", "gamma": 1.4}, "signals": {"temporal": 0.9}}`
	if err := os.WriteFile(filepath.Join(dir, "config.json"), []byte(raw), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(root)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Strategy.Name != "spectral" {
		t.Errorf("strategy = %q, want spectral", cfg.Strategy.Name)
	}
	if cfg.Strategy.Gamma != 1.4 {
		t.Errorf("gamma = %v, want 1.4", cfg.Strategy.Gamma)
	}
	// Unset keys keep defaults.
	if cfg.Signals.Dependency != 1.0 {
		t.Errorf("dependency coefficient = %v, want default 1.0", cfg.Signals.Dependency)
	}
	if cfg.Signals.Temporal != 0.9 {
		t.Errorf("temporal coefficient = %v, want 0.9", cfg.Signals.Temporal)
	}
}

func TestValidateRejectsBadLevels(t *testing.T) {
	cfg := Default()
	cfg.Hierarchy.Levels = []float64{0.3, 0.5}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for non-decreasing levels")
	}

	cfg = Default()
	cfg.Strategy.Name = "simulated-annealing"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for unknown strategy")
	}
}

func TestCoefficientsMap(t *testing.T) {
	m := Default().Signals.Coefficients()
	if m[model.SignalDataFlow] != 0.8 {
		t.Errorf("dataflow coefficient = %v, want 0.8", m[model.SignalDataFlow])
	}
	if len(m) != 4 {
		t.Errorf("expected 4 signal coefficients, got %d", len(m))
	}
}
