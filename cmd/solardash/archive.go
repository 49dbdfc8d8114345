package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/afroash/solardash/internal/loader"
	"github.com/afroash/solardash/internal/models"
)

var (
	archiveFrom   string
	archiveAppend bool
)

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Import the readings file into the SQLite archive",
	Long: `Reads the CSV readings file and replaces the contents of the SQLite archive
with it in a single transaction. With --append the readings are added to what
the archive already holds. Set data.source to sqlite to serve the dashboard
from the archive afterwards.`,
	RunE: runArchive,
}

func init() {
	archiveCmd.Flags().StringVar(&archiveFrom, "from", "", "CSV file to import (default data.path from the config)")
	archiveCmd.Flags().BoolVar(&archiveAppend, "append", false, "add to the archive instead of replacing it")
	rootCmd.AddCommand(archiveCmd)
}

func runArchive(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	path := archiveFrom
	if path == "" {
		path = cfg.Data.Path
	}
	readings, err := loader.NewCSVSource(path).Load(cmd.Context())
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	store, err := openArchive(cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	if archiveAppend {
		err = store.InsertBatch(cmd.Context(), readings)
	} else {
		err = store.ReplaceAll(cmd.Context(), readings)
	}
	if err != nil {
		return fmt.Errorf("importing readings: %w", err)
	}

	stats, err := store.GetStorageStats(cmd.Context())
	if err != nil {
		return fmt.Errorf("reading archive stats: %w", err)
	}
	features, err := store.GetFeatures(cmd.Context())
	if err != nil {
		return fmt.Errorf("reading archive features: %w", err)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Imported %s readings from %s into %s\n",
		humanize.Comma(int64(len(readings))), path, store.Path())
	fmt.Fprintln(w, "----------------------------------------")
	fmt.Fprintf(w, "%-16s %s\n", "Readings:", humanize.Comma(stats.TotalReadings))
	if stats.TotalReadings > 0 {
		fmt.Fprintf(w, "%-16s %s to %s\n", "Dates:",
			stats.FirstDate.Format(models.DateLayout), stats.LastDate.Format(models.DateLayout))
	}
	fmt.Fprintf(w, "%-16s %d\n", "Features:", stats.UniqueFeatures)
	fmt.Fprintf(w, "%-16s %s\n", "Database size:", humanize.Bytes(uint64(stats.DatabaseSizeMB*1024*1024)))
	fmt.Fprintln(w, "----------------------------------------")
	for _, f := range features {
		fmt.Fprintf(w, "%-28s %8s\n", f.Feature, humanize.Comma(int64(f.Count)))
	}
	return nil
}
