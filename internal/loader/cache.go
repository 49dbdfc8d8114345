package loader

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/afroash/solardash/internal/models"
)

// Cache memoizes a Source in a single slot. The first Get loads, later calls
// return the stored table until Reset drops it. Failed loads are not stored.
type Cache struct {
	source Source
	logger zerolog.Logger

	// mu is held for the whole load so concurrent first calls share it
	mu       sync.Mutex
	loaded   bool
	readings []models.Reading

	loads        int64
	hits         int64
	failures     int64
	resets       int64
	lastLoad     time.Time
	lastDuration time.Duration
}

// CacheStats contains statistics about the cache
type CacheStats struct {
	Source       string    `json:"source"`
	Loaded       bool      `json:"loaded"`
	Rows         int       `json:"rows"`
	Loads        int64     `json:"loads"`
	Hits         int64     `json:"hits"`
	Failures     int64     `json:"failures"`
	Resets       int64     `json:"resets"`
	LastLoad     time.Time `json:"last_load,omitempty"`
	LastDuration string    `json:"last_duration,omitempty"`
}

// NewCache creates an empty cache in front of source
func NewCache(source Source, logger zerolog.Logger) *Cache {
	return &Cache{
		source: source,
		logger: logger,
	}
}

// Source returns the wrapped source
func (c *Cache) Source() Source {
	return c.source
}

// Get returns the readings, loading them on first use. The returned slice is a
// copy the caller may keep.
func (c *Cache) Get(ctx context.Context) ([]models.Reading, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.loaded {
		c.hits++
		return slices.Clone(c.readings), nil
	}

	start := time.Now()
	readings, err := c.source.Load(ctx)
	if err != nil {
		c.failures++
		c.logger.Error().
			Err(err).
			Str("source", c.source.Describe()).
			Msg("Failed to load readings")
		return nil, err
	}

	c.loaded = true
	c.readings = readings
	c.loads++
	c.lastLoad = start
	c.lastDuration = time.Since(start)

	c.logger.Info().
		Str("source", c.source.Describe()).
		Int("rows", len(readings)).
		Dur("took", c.lastDuration).
		Msg("Readings loaded")

	return slices.Clone(readings), nil
}

// Reset drops the cached table. The next Get reloads from the source.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.loaded = false
	c.readings = nil
	c.resets++

	c.logger.Info().Str("source", c.source.Describe()).Msg("Readings cache reset")
}

// Stats returns current cache statistics
func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := CacheStats{
		Source:   c.source.Describe(),
		Loaded:   c.loaded,
		Rows:     len(c.readings),
		Loads:    c.loads,
		Hits:     c.hits,
		Failures: c.failures,
		Resets:   c.resets,
		LastLoad: c.lastLoad,
	}
	if c.lastDuration > 0 {
		stats.LastDuration = c.lastDuration.String()
	}
	return stats
}
