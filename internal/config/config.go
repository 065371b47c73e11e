// Package config loads and validates engine configuration.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/spf13/viper"

	"ckc/internal/model"
)

// Config represents the complete CKC configuration
type Config struct {
	Version int `json:"version" mapstructure:"version"`

	Signals     SignalsConfig     `json:"signals" mapstructure:"signals"`
	Strategy    StrategyConfig    `json:"strategy" mapstructure:"strategy"`
	Constraints ConstraintsConfig `json:"constraints" mapstructure:"constraints"`
	Thresholds  ThresholdsConfig  `json:"thresholds" mapstructure:"thresholds"`
	Refinement  RefinementConfig  `json:"refinement" mapstructure:"refinement"`
	Hierarchy   HierarchyConfig   `json:"hierarchy" mapstructure:"hierarchy"`
	Pack        PackConfig        `json:"pack" mapstructure:"pack"`
	Export      ExportConfig      `json:"export" mapstructure:"export"`
	Logging     LoggingConfig     `json:"logging" mapstructure:"logging"`
}

// SignalsConfig holds per-signal combination coefficients
type SignalsConfig struct {
	Dependency float64 `json:"dependency" mapstructure:"dependency"`
	DataFlow   float64 `json:"dataflow" mapstructure:"dataflow"`
	Temporal   float64 `json:"temporal" mapstructure:"temporal"`
	Semantic   float64 `json:"semantic" mapstructure:"semantic"`
}

// Coefficients returns the configured coefficients keyed by signal kind.
func (s SignalsConfig) Coefficients() map[model.SignalKind]float64 {
	return map[model.SignalKind]float64{
		model.SignalDependency: s.Dependency,
		model.SignalDataFlow:   s.DataFlow,
		model.SignalTemporal:   s.Temporal,
		model.SignalSemantic:   s.Semantic,
	}
}

// StrategyConfig selects and tunes the partitioning strategy
type StrategyConfig struct {
	Name string `json:"name" mapstructure:"name"` // "louvain" | "spectral" | "ward"

	// Louvain tuning
	Gamma     float64 `json:"gamma" mapstructure:"gamma"`
	Epsilon   float64 `json:"epsilon" mapstructure:"epsilon"`
	MaxPasses int     `json:"maxPasses" mapstructure:"maxPasses"`

	// Spectral tuning
	K           int     `json:"k" mapstructure:"k"`                     // 0 = estimate via eigengap
	MaxEigen    int     `json:"maxEigen" mapstructure:"maxEigen"`       // eigenvalues inspected for the gap
	GapRatio    float64 `json:"gapRatio" mapstructure:"gapRatio"`       // gap must exceed ratio * median gap
	KMeansIters int     `json:"kmeansIters" mapstructure:"kmeansIters"` // k-means iteration cap
}

// ConstraintsConfig bounds cluster sizes
type ConstraintsConfig struct {
	MinSize      int `json:"minSize" mapstructure:"minSize"`
	MaxSize      int `json:"maxSize" mapstructure:"maxSize"`
	TargetTokens int `json:"targetTokens" mapstructure:"targetTokens"`
	MaxDepth     int `json:"maxDepth" mapstructure:"maxDepth"` // recursive re-cluster depth
}

// ThresholdsConfig holds advisory quality thresholds
type ThresholdsConfig struct {
	MinCohesion float64 `json:"minCohesion" mapstructure:"minCohesion"`
	MaxCoupling float64 `json:"maxCoupling" mapstructure:"maxCoupling"`
}

// RefinementConfig tunes the description-length refinement pass
type RefinementConfig struct {
	Enabled           bool    `json:"enabled" mapstructure:"enabled"`
	MaxPasses         int     `json:"maxPasses" mapstructure:"maxPasses"`
	BoundaryTolerance float64 `json:"boundaryTolerance" mapstructure:"boundaryTolerance"`
}

// HierarchyConfig selects the resolution levels, finest first
type HierarchyConfig struct {
	Levels []float64 `json:"levels" mapstructure:"levels"`
}

// PackConfig tunes context pack assembly
type PackConfig struct {
	GainFloor float64 `json:"gainFloor" mapstructure:"gainFloor"`
}

// ExportConfig controls document output
type ExportConfig struct {
	Dir  string `json:"dir" mapstructure:"dir"`
	Gzip bool   `json:"gzip" mapstructure:"gzip"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `json:"level" mapstructure:"level"`
	Format string `json:"format" mapstructure:"format"` // "text" | "json"
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Version: 1,
		Signals: SignalsConfig{
			Dependency: 1.0,
			DataFlow:   0.8,
			Temporal:   0.6,
			Semantic:   0.4,
		},
		Strategy: StrategyConfig{
			Name:        "louvain",
			Gamma:       1.0,
			Epsilon:     1e-4,
			MaxPasses:   100,
			MaxEigen:    20,
			GapRatio:    1.5,
			KMeansIters: 50,
		},
		Constraints: ConstraintsConfig{
			MinSize:      2,
			MaxSize:      50,
			TargetTokens: 4000,
			MaxDepth:     3,
		},
		Thresholds: ThresholdsConfig{
			MinCohesion: 0.80,
			MaxCoupling: 0.25,
		},
		Refinement: RefinementConfig{
			Enabled:           true,
			MaxPasses:         20,
			BoundaryTolerance: 0.20,
		},
		Hierarchy: HierarchyConfig{
			Levels: []float64{0.7, 0.5, 0.3},
		},
		Pack: PackConfig{
			GainFloor: 0.05,
		},
		Export: ExportConfig{
			Dir:  ".ckc/out",
			Gzip: false,
		},
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "text",
		},
	}
}

// Load reads config from <root>/.ckc/config.json, applying defaults for any
// missing value. A missing file yields the defaults unmodified.
func Load(root string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(filepath.Join(root, ".ckc", "config.json"))
	v.SetConfigType("json")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// Missing file is fine; anything else is a real failure.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			if !isNotExist(err) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the engine cannot honor.
func (c *Config) Validate() error {
	if c.Strategy.Name != "louvain" && c.Strategy.Name != "spectral" && c.Strategy.Name != "ward" {
		return fmt.Errorf("unknown strategy %q", c.Strategy.Name)
	}
	if c.Constraints.MinSize < 1 {
		return fmt.Errorf("constraints.minSize must be >= 1, got %d", c.Constraints.MinSize)
	}
	if c.Constraints.MaxSize > 0 && c.Constraints.MaxSize < c.Constraints.MinSize {
		return fmt.Errorf("constraints.maxSize %d < minSize %d", c.Constraints.MaxSize, c.Constraints.MinSize)
	}
	if len(c.Hierarchy.Levels) == 0 {
		return fmt.Errorf("hierarchy.levels must name at least one level")
	}
	for i := 1; i < len(c.Hierarchy.Levels); i++ {
		if c.Hierarchy.Levels[i] >= c.Hierarchy.Levels[i-1] {
			return fmt.Errorf("hierarchy.levels must be strictly decreasing (finest first)")
		}
	}
	return nil
}

// isNotExist reports whether err stems from a missing config file. Viper
// returns ConfigFileNotFoundError only when searching paths; with an explicit
// SetConfigFile a plain fs.PathError comes back instead.
func isNotExist(err error) bool {
	var pathErr *fs.PathError
	return errors.As(err, &pathErr)
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("version", d.Version)
	v.SetDefault("signals.dependency", d.Signals.Dependency)
	v.SetDefault("signals.dataflow", d.Signals.DataFlow)
	v.SetDefault("signals.temporal", d.Signals.Temporal)
	v.SetDefault("signals.semantic", d.Signals.Semantic)
	v.SetDefault("strategy.name", d.Strategy.Name)
	v.SetDefault("strategy.gamma", d.Strategy.Gamma)
	v.SetDefault("strategy.epsilon", d.Strategy.Epsilon)
	v.SetDefault("strategy.maxPasses", d.Strategy.MaxPasses)
	v.SetDefault("strategy.k", d.Strategy.K)
	v.SetDefault("strategy.maxEigen", d.Strategy.MaxEigen)
	v.SetDefault("strategy.gapRatio", d.Strategy.GapRatio)
	v.SetDefault("strategy.kmeansIters", d.Strategy.KMeansIters)
	v.SetDefault("constraints.minSize", d.Constraints.MinSize)
	v.SetDefault("constraints.maxSize", d.Constraints.MaxSize)
	v.SetDefault("constraints.targetTokens", d.Constraints.TargetTokens)
	v.SetDefault("constraints.maxDepth", d.Constraints.MaxDepth)
	v.SetDefault("thresholds.minCohesion", d.Thresholds.MinCohesion)
	v.SetDefault("thresholds.maxCoupling", d.Thresholds.MaxCoupling)
	v.SetDefault("refinement.enabled", d.Refinement.Enabled)
	v.SetDefault("refinement.maxPasses", d.Refinement.MaxPasses)
	v.SetDefault("refinement.boundaryTolerance", d.Refinement.BoundaryTolerance)
	v.SetDefault("hierarchy.levels", d.Hierarchy.Levels)
	v.SetDefault("pack.gainFloor", d.Pack.GainFloor)
	v.SetDefault("export.dir", d.Export.Dir)
	v.SetDefault("export.gzip", d.Export.Gzip)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
}
