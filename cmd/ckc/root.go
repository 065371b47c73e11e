package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"ckc/internal/config"
	"ckc/internal/logging"
	"ckc/internal/version"
)

var (
	rootFlag     string
	logLevelFlag string
)

var rootCmd = &cobra.Command{
	Use:   "ckc",
	Short: "CKC - Code Knowledge Clusterer",
	Long: `CKC partitions a code dependency graph into semantically coherent,
token-budgeted clusters and assembles context packs for LLM consumption.
Entities and edges come from ingested SCIP indexes or YAML edge lists.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.SetVersionTemplate("CKC version {{.Version}}\n")
	rootCmd.PersistentFlags().StringVar(&rootFlag, "root", ".",
		"Project root holding the .ckc directory")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "",
		"Log level: debug, info, warn, error (default from config)")
}

// setup loads the configuration and builds the logger. The --log-level flag
// wins over the config file.
func setup() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(rootFlag)
	if err != nil {
		return nil, nil, err
	}

	level := cfg.Logging.Level
	if logLevelFlag != "" {
		level = logLevelFlag
	}
	var log *slog.Logger
	if cfg.Logging.Format == "json" {
		log = logging.NewJSON(os.Stderr, logging.LevelFromString(level))
	} else {
		log = logging.New(os.Stderr, logging.LevelFromString(level))
	}
	return cfg, log, nil
}
