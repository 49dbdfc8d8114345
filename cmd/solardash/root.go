package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/afroash/solardash/internal/config"
	"github.com/afroash/solardash/internal/loader"
	"github.com/afroash/solardash/internal/logging"
	"github.com/afroash/solardash/internal/storage"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "solardash",
	Short: "Solar energy efficiency dashboard",
	Long: `solardash serves a dashboard over a table of daily solar panel readings:
efficiency over time, the most impactful features from a SHAP analysis, and the
days with low efficiency together with their recommendations.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "configs/solardash.yaml", "config file (a missing file means defaults)")
}

// loadConfig loads the configuration file
func loadConfig() (*config.AppConfig, error) {
	cfg, err := config.LoadAppConfig(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// newLogger builds the process logger. Logs go to stderr so command output
// on stdout stays clean.
func newLogger(cfg *config.AppConfig) zerolog.Logger {
	return logging.New(cfg.Logging, os.Stderr).With().Str("version", version).Logger()
}

// openArchive opens the SQLite archive, creating its directory when needed
func openArchive(cfg *config.AppConfig, logger zerolog.Logger) (*storage.SQLiteStore, error) {
	dir := filepath.Dir(cfg.Archive.DBPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating archive directory: %w", err)
	}
	store, err := storage.NewSQLiteStore(cfg.Archive.DBPath, logger)
	if err != nil {
		return nil, fmt.Errorf("opening archive: %w", err)
	}
	return store, nil
}

// openSource returns the configured readings source. The store is non-nil
// when an archive is available and must be closed by the caller.
func openSource(cfg *config.AppConfig, logger zerolog.Logger) (loader.Source, *storage.SQLiteStore, error) {
	if cfg.Data.Source == config.SourceSQLite {
		store, err := openArchive(cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		return loader.NewArchiveSource(store), store, nil
	}

	source := loader.NewCSVSource(cfg.Data.Path)
	if _, err := os.Stat(cfg.Archive.DBPath); err != nil {
		return source, nil, nil
	}
	store, err := openArchive(cfg, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("Archive present but unusable, serving without it")
		return source, nil, nil
	}
	return source, store, nil
}
