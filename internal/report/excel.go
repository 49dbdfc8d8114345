// Package report exports the low-efficiency view as an Excel workbook.
package report

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"github.com/afroash/solardash/internal/models"
	"github.com/afroash/solardash/internal/pipeline"
)

// Sheet names of the workbook
const (
	SheetLowEfficiency = "Low Efficiency"
	SheetFeatures      = "Feature Frequency"
)

// headerRow is where the low-efficiency table starts, below the title and period.
const headerRow = 4

// Generator builds workbooks from dashboards.
type Generator struct {
	logger zerolog.Logger
}

// NewGenerator creates a report generator
func NewGenerator(logger zerolog.Logger) *Generator {
	return &Generator{logger: logger}
}

// Filename suggests a download name for the dashboard's range.
func Filename(d pipeline.Dashboard) string {
	return fmt.Sprintf("low-efficiency_%s_%s.xlsx",
		d.Range.Start.Format(models.DateLayout),
		d.Range.End.Format(models.DateLayout))
}

// WriteLowEfficiency writes the workbook for d to w.
func (g *Generator) WriteLowEfficiency(ctx context.Context, w io.Writer, d pipeline.Dashboard) error {
	data, err := g.LowEfficiencyReport(ctx, d)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// LowEfficiencyReport returns the XLSX bytes for d: the low-efficiency rows (or
// the all-clear message) and the feature counts of the selected range.
func (g *Generator) LowEfficiencyReport(ctx context.Context, d pipeline.Dashboard) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	period := fmt.Sprintf("%s to %s",
		d.Range.Start.Format(models.DateLayout),
		d.Range.End.Format(models.DateLayout))

	f.SetDocProps(&excelize.DocProperties{
		Title:       "Solar Efficiency Report",
		Subject:     d.LowEfficiencyTitle(),
		Creator:     "solardash",
		Description: fmt.Sprintf("Low efficiency days for %s", period),
		Created:     time.Now().UTC().Format(time.RFC3339),
	})

	if err := g.createLowEfficiencySheet(f, d, period); err != nil {
		return nil, fmt.Errorf("failed to create low efficiency sheet: %w", err)
	}
	if err := g.createFeatureSheet(f, d); err != nil {
		return nil, fmt.Errorf("failed to create feature sheet: %w", err)
	}

	f.DeleteSheet("Sheet1")
	if idx, err := f.GetSheetIndex(SheetLowEfficiency); err == nil {
		f.SetActiveSheet(idx)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write excel to buffer: %w", err)
	}

	g.logger.Info().
		Str("period", period).
		Int("low_efficiency_days", len(d.LowEfficiency)).
		Int("features", len(d.Features)).
		Msg("Generated low efficiency report")

	return buf.Bytes(), nil
}

func (g *Generator) createLowEfficiencySheet(f *excelize.File, d pipeline.Dashboard, period string) error {
	sheet := SheetLowEfficiency
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}

	headers := []string{
		models.ColumnDate,
		models.ColumnEfficiency,
		models.ColumnFeature,
		models.ColumnRecommendation,
	}
	lastColumn := colLetter(len(headers))

	f.SetCellValue(sheet, "A1", d.LowEfficiencyTitle())
	f.MergeCell(sheet, "A1", lastColumn+"1")
	f.SetCellValue(sheet, "A2", "Period: "+period)
	f.MergeCell(sheet, "A2", lastColumn+"2")

	for i, header := range headers {
		f.SetCellValue(sheet, cell(i+1, headerRow), header)
	}

	if bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		f.SetCellStyle(sheet, "A1", "A1", bold)
		f.SetCellStyle(sheet, cell(1, headerRow), cell(len(headers), headerRow), bold)
	}

	if d.AllClear {
		f.SetCellValue(sheet, cell(1, headerRow+1), d.AllClearMessage())
		f.MergeCell(sheet, cell(1, headerRow+1), cell(len(headers), headerRow+1))
	}

	for i, r := range d.LowEfficiency {
		row := headerRow + 1 + i
		f.SetCellValue(sheet, cell(1, row), r.Date.Format(models.DateLayout))
		f.SetCellValue(sheet, cell(2, row), r.Efficiency)
		f.SetCellValue(sheet, cell(3, row), r.Feature)
		f.SetCellValue(sheet, cell(4, row), r.Recommendation)
	}

	widths := []float64{14, 16, 28, 60}
	for i, width := range widths {
		col := colLetter(i + 1)
		if err := f.SetColWidth(sheet, col, col, width); err != nil {
			return err
		}
	}
	return nil
}

func (g *Generator) createFeatureSheet(f *excelize.File, d pipeline.Dashboard) error {
	sheet := SheetFeatures
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}

	f.SetCellValue(sheet, "A1", "Feature")
	f.SetCellValue(sheet, "B1", "Count")
	for i, fc := range d.Features {
		f.SetCellValue(sheet, cell(1, i+2), fc.Feature)
		f.SetCellValue(sheet, cell(2, i+2), fc.Count)
	}

	return f.SetColWidth(sheet, "A", "A", 28)
}

func cell(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}

func colLetter(col int) string {
	name, _ := excelize.ColumnNumberToName(col)
	return name
}
