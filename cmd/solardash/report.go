package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/afroash/solardash/internal/loader"
	"github.com/afroash/solardash/internal/models"
	"github.com/afroash/solardash/internal/pipeline"
	"github.com/afroash/solardash/internal/report"
)

var (
	reportStart string
	reportEnd   string
	reportOut   string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Write the low efficiency report as an Excel workbook",
	Long: `Builds the same low efficiency table the dashboard shows for the given range
and writes it, with the feature counts, to an .xlsx file. Without --start and
--end the whole data range is used.`,
	RunE: runReport,
}

func init() {
	reportCmd.Flags().StringVar(&reportStart, "start", "", "first day of the range (YYYY-MM-DD)")
	reportCmd.Flags().StringVar(&reportEnd, "end", "", "last day of the range (YYYY-MM-DD)")
	reportCmd.Flags().StringVarP(&reportOut, "out", "o", "", "output file (default low-efficiency_<start>_<end>.xlsx)")
	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, args []string) error {
	opts := pipeline.Options{}
	var err error
	if reportStart != "" {
		if opts.Start, err = models.ParseDate(reportStart); err != nil {
			return fmt.Errorf("--start: %w", err)
		}
	}
	if reportEnd != "" {
		if opts.End, err = models.ParseDate(reportEnd); err != nil {
			return fmt.Errorf("--end: %w", err)
		}
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	opts.Threshold = cfg.Dashboard.LowEfficiencyThreshold

	source, store, err := openSource(cfg, logger)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	readings, err := loader.NewCache(source, logger).Get(cmd.Context())
	if err != nil {
		return fmt.Errorf("loading readings: %w", err)
	}

	d := pipeline.Build(readings, opts)
	data, err := report.NewGenerator(logger).LowEfficiencyReport(cmd.Context(), d)
	if err != nil {
		return err
	}

	out := reportOut
	if out == "" {
		out = report.Filename(d)
	}
	if dir := filepath.Dir(out); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating output directory: %w", err)
		}
	}
	if err := os.WriteFile(out, data, 0644); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Period:      %s to %s\n", d.Range.Start.Format(models.DateLayout), d.Range.End.Format(models.DateLayout))
	fmt.Fprintf(w, "Readings:    %s of %s\n", humanize.Comma(int64(d.Selected)), humanize.Comma(int64(d.TotalReadings)))
	if d.AllClear {
		fmt.Fprintf(w, "Low days:    none (%s)\n", d.AllClearMessage())
	} else {
		fmt.Fprintf(w, "Low days:    %s below %s%%\n", humanize.Comma(int64(len(d.LowEfficiency))), d.ThresholdLabel())
	}
	fmt.Fprintf(w, "Written:     %s (%s)\n", out, humanize.Bytes(uint64(len(data))))
	return nil
}
