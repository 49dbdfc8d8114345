package server

import (
	"context"
	"time"

	"github.com/afroash/solardash/internal/loader"
	"github.com/afroash/solardash/internal/models"
	"github.com/afroash/solardash/internal/storage"
)

// ReadingCache is the memoized readings table every render cycle reads.
// loader.Cache implements this interface.
type ReadingCache interface {
	// Get returns the readings, loading them on first use
	Get(ctx context.Context) ([]models.Reading, error)

	// Reset drops the cached table
	Reset()

	// Stats returns statistics about the cache
	Stats() loader.CacheStats
}

// HistoricalStore is the optional SQLite archive.
// storage.SQLiteStore implements this interface.
type HistoricalStore interface {
	// GetFeatures returns how often each feature was the most impactful one
	GetFeatures(ctx context.Context) ([]storage.FeatureTotal, error)

	// GetStorageStats returns database statistics
	GetStorageStats(ctx context.Context) (*storage.StorageStats, error)

	// GetReadingsInRange returns archived readings dated within [start, end]
	GetReadingsInRange(ctx context.Context, start, end time.Time) ([]models.Reading, error)
}

// Notifier pushes messages to connected dashboards. Hub implements it.
type Notifier interface {
	Broadcast(msgType models.MessageType, payload interface{}) int
}
