// Package loader reads the readings table and memoizes it for the dashboard.
package loader

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"github.com/afroash/solardash/internal/models"
)

// Source produces the full readings table.
type Source interface {
	Load(ctx context.Context) ([]models.Reading, error)
	Describe() string
}

// RequiredColumns are the headers every readings table must carry.
var RequiredColumns = []string{
	models.ColumnDate,
	models.ColumnEfficiency,
	models.ColumnFeature,
	models.ColumnRecommendation,
}

var utf8BOM = []byte("\xef\xbb\xbf")

// CSVSource reads readings from a comma separated file.
type CSVSource struct {
	Path string
}

// NewCSVSource creates a source for the file at path
func NewCSVSource(path string) *CSVSource {
	return &CSVSource{Path: path}
}

// Describe identifies the source in logs and API responses
func (s *CSVSource) Describe() string {
	return "csv:" + s.Path
}

// Load reads and parses the whole file.
func (s *CSVSource) Load(ctx context.Context) ([]models.Reading, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, s.Path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.Path, err)
	}

	return ParseReadings(bytes.NewReader(data))
}

// ParseReadings parses a readings table. Every column is read as text, Date is
// parsed day-first and Efficiency becomes NaN when it is not a number. Rows keep
// their file order.
func ParseReadings(r io.Reader) ([]models.Reading, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read readings: %w", err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	df := dataframe.ReadCSV(bytes.NewReader(data),
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.NaNValues(nil),
	)
	if df.Err != nil {
		// gota refuses a table with no rows, which is still a valid empty table
		if header, ok := headerOnly(data); ok {
			if err := checkColumns(header); err != nil {
				return nil, err
			}
			return []models.Reading{}, nil
		}
		return nil, &ParseError{Err: df.Err}
	}

	if err := checkColumns(df.Names()); err != nil {
		return nil, err
	}

	dates := df.Col(models.ColumnDate).Records()
	efficiencies := df.Col(models.ColumnEfficiency).Records()
	features := df.Col(models.ColumnFeature).Records()
	recommendations := df.Col(models.ColumnRecommendation).Records()

	readings := make([]models.Reading, 0, df.Nrow())
	for i := 0; i < df.Nrow(); i++ {
		date, err := models.ParseDayFirst(dates[i])
		if err != nil {
			return nil, &ParseError{Row: i + 1, Column: models.ColumnDate, Value: dates[i], Err: err}
		}

		readings = append(readings, models.Reading{
			Date:           date,
			Efficiency:     parseEfficiency(efficiencies[i]),
			Feature:        features[i],
			Recommendation: recommendations[i],
		})
	}

	return readings, nil
}

func parseEfficiency(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

// headerOnly reports whether data holds a header line and nothing else.
func headerOnly(data []byte) ([]string, bool) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil || len(records) != 1 {
		return nil, false
	}
	return records[0], true
}

func checkColumns(names []string) error {
	for _, col := range RequiredColumns {
		if !containsName(names, col) {
			return &ParseError{Column: col, Err: errors.New("missing required column")}
		}
	}
	return nil
}

func containsName(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
