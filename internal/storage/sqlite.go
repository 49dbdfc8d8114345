package storage

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/afroash/solardash/internal/models"
)

const timestampLayout = "2006-01-02 15:04:05"

// SQLiteStore keeps an imported copy of the readings table
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger zerolog.Logger
}

// FeatureTotal is the number of archived days a feature was the most impactful one
type FeatureTotal struct {
	Feature string `json:"feature"`
	Count   int    `json:"count"`
}

// StorageStats contains information about the database
type StorageStats struct {
	TotalReadings  int64     `json:"total_readings"`
	FirstDate      time.Time `json:"first_date,omitempty"`
	LastDate       time.Time `json:"last_date,omitempty"`
	UniqueFeatures int       `json:"unique_features"`
	LastImport     time.Time `json:"last_import,omitempty"`
	DatabaseSizeMB float64   `json:"database_size_mb"`
}

// NewSQLiteStore creates a new SQLite store instance
func NewSQLiteStore(dbPath string, logger zerolog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Apply performance pragmas for SQLite
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA cache_size=10000",
		"PRAGMA temp_store=MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}

	// Single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	store := &SQLiteStore{
		db:     db,
		path:   dbPath,
		logger: logger,
	}

	if err := store.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	logger.Info().Str("path", dbPath).Msg("SQLite store initialized")

	return store, nil
}

// Path returns the database file the store was opened with
func (s *SQLiteStore) Path() string {
	return s.path
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate creates the database schema if it doesn't exist
func (s *SQLiteStore) Migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS readings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		reading_date DATETIME NOT NULL,
		efficiency REAL,
		feature TEXT NOT NULL,
		recommendation TEXT NOT NULL,
		imported_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_readings_date ON readings(reading_date);
	CREATE INDEX IF NOT EXISTS idx_readings_feature ON readings(feature);
	`

	_, err := s.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	s.logger.Debug().Msg("Database schema migrated")
	return nil
}

// ReplaceAll swaps the archived table for readings in a single transaction.
// Row order is kept, so LoadAll returns readings exactly as given.
func (s *SQLiteStore) ReplaceAll(ctx context.Context, readings []models.Reading) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM readings"); err != nil {
		return fmt.Errorf("failed to clear readings: %w", err)
	}
	// Restart ids so row order matches the imported file
	if _, err := tx.ExecContext(ctx, "DELETE FROM sqlite_sequence WHERE name = 'readings'"); err != nil {
		return fmt.Errorf("failed to reset sequence: %w", err)
	}

	if err := insertTx(ctx, tx, readings); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.Info().Int("count", len(readings)).Msg("Archive replaced")
	return nil
}

// InsertBatch appends readings in a single transaction
func (s *SQLiteStore) InsertBatch(ctx context.Context, readings []models.Reading) error {
	if len(readings) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertTx(ctx, tx, readings); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.Debug().Int("count", len(readings)).Msg("Batch insert completed")
	return nil
}

func insertTx(ctx context.Context, tx *sql.Tx, readings []models.Reading) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO readings (reading_date, efficiency, feature, recommendation, imported_at)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	importedAt := time.Now().UTC().Format(timestampLayout)
	for _, reading := range readings {
		_, err := stmt.ExecContext(ctx,
			reading.Date.UTC().Format(timestampLayout),
			efficiencyValue(reading.Efficiency),
			reading.Feature,
			reading.Recommendation,
			importedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert reading in batch: %w", err)
		}
	}
	return nil
}

// LoadAll returns every archived reading in import order
func (s *SQLiteStore) LoadAll(ctx context.Context) ([]models.Reading, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, reading_date, efficiency, feature, recommendation
		FROM readings
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query readings: %w", err)
	}
	defer rows.Close()

	return s.scanReadings(rows)
}

// GetReadingsInRange returns readings whose calendar date is within [start, end]
func (s *SQLiteStore) GetReadingsInRange(ctx context.Context, start, end time.Time) ([]models.Reading, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, reading_date, efficiency, feature, recommendation
		FROM readings
		WHERE date(reading_date) BETWEEN ? AND ?
		ORDER BY id
	`,
		start.UTC().Format(models.DateLayout),
		end.UTC().Format(models.DateLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query readings: %w", err)
	}
	defer rows.Close()

	return s.scanReadings(rows)
}

// GetFeatures returns how often each feature was the most impactful one,
// most frequent first. Ties keep the order features were first archived.
func (s *SQLiteStore) GetFeatures(ctx context.Context) ([]FeatureTotal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT feature, COUNT(*) AS total
		FROM readings
		GROUP BY feature
		ORDER BY total DESC, MIN(id) ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query features: %w", err)
	}
	defer rows.Close()

	var totals []FeatureTotal
	for rows.Next() {
		var ft FeatureTotal
		if err := rows.Scan(&ft.Feature, &ft.Count); err != nil {
			return nil, fmt.Errorf("failed to scan feature: %w", err)
		}
		totals = append(totals, ft)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return totals, nil
}

// GetStorageStats returns statistics about the database
func (s *SQLiteStore) GetStorageStats(ctx context.Context) (*StorageStats, error) {
	stats := &StorageStats{}

	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM readings").Scan(&stats.TotalReadings)
	if err != nil {
		return nil, fmt.Errorf("failed to count readings: %w", err)
	}

	if stats.TotalReadings > 0 {
		var firstStr, lastStr, importStr string
		err = s.db.QueryRowContext(ctx,
			"SELECT MIN(reading_date), MAX(reading_date), MAX(imported_at) FROM readings").
			Scan(&firstStr, &lastStr, &importStr)
		if err != nil {
			return nil, fmt.Errorf("failed to get date range: %w", err)
		}

		stats.FirstDate, _ = parseTimestamp(firstStr)
		stats.LastDate, _ = parseTimestamp(lastStr)
		stats.LastImport, _ = parseTimestamp(importStr)

		err = s.db.QueryRowContext(ctx, "SELECT COUNT(DISTINCT feature) FROM readings").Scan(&stats.UniqueFeatures)
		if err != nil {
			return nil, fmt.Errorf("failed to count features: %w", err)
		}
	}

	var pageCount, pageSize int64
	s.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount)
	s.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize)
	stats.DatabaseSizeMB = float64(pageCount*pageSize) / (1024 * 1024)

	return stats, nil
}

// scanReadings scans multiple rows into a slice of readings
func (s *SQLiteStore) scanReadings(rows *sql.Rows) ([]models.Reading, error) {
	readings := []models.Reading{}

	for rows.Next() {
		var r models.Reading
		var id int64
		var readingDate string
		var efficiency sql.NullFloat64

		err := rows.Scan(&id, &readingDate, &efficiency, &r.Feature, &r.Recommendation)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reading: %w", err)
		}

		r.Date, err = parseTimestamp(readingDate)
		if err != nil {
			return nil, fmt.Errorf("failed to parse reading %d: %w", id, err)
		}

		r.Efficiency = math.NaN()
		if efficiency.Valid {
			r.Efficiency = efficiency.Float64
		}

		readings = append(readings, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return readings, nil
}

// efficiencyValue maps NaN to NULL, which SQLite would otherwise store as NULL
// anyway and fail to scan back into a float.
func efficiencyValue(v float64) interface{} {
	if math.IsNaN(v) {
		return nil
	}
	return v
}

// parseTimestamp tries multiple formats to parse a SQLite timestamp
func parseTimestamp(ts string) (time.Time, error) {
	formats := []string{
		timestampLayout,
		"2006-01-02T15:04:05Z07:00",
		"2006-01-02 15:04:05.000",
		time.RFC3339Nano,
		models.DateLayout,
	}

	for _, format := range formats {
		if t, err := time.ParseInLocation(format, ts, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}

	return time.Time{}, fmt.Errorf("unable to parse timestamp: %s", ts)
}
