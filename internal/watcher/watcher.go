// Package watcher resets the readings cache when the data file changes.
package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// FileWatcher watches a single file through its parent directory, so editors
// that replace the file by renaming still trigger it. Bursts of events are
// collapsed into one call of onChange once the file has been quiet for the
// debounce duration.
type FileWatcher struct {
	path     string
	dir      string
	debounce time.Duration
	onChange func()
	logger   zerolog.Logger

	mu      sync.Mutex
	pending bool
	lastAt  time.Time
	stats   Stats
}

// Stats tracks watcher activity.
type Stats struct {
	Events        int       `json:"events"`
	Triggers      int       `json:"triggers"`
	Errors        int       `json:"errors"`
	LastEventTime time.Time `json:"last_event_time,omitempty"`
	LastEventType string    `json:"last_event_type,omitempty"`
}

// New creates a watcher for path. onChange runs on the watcher goroutine.
func New(path string, debounce time.Duration, onChange func(), logger zerolog.Logger) (*FileWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}

	return &FileWatcher{
		path:     abs,
		dir:      filepath.Dir(abs),
		debounce: debounce,
		onChange: onChange,
		logger:   logger,
	}, nil
}

// Run watches until ctx is cancelled. It returns nil on cancellation.
func (fw *FileWatcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(fw.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", fw.dir, err)
	}
	fw.logger.Info().Str("path", fw.path).Dur("debounce", fw.debounce).Msg("Watching data file")

	tick := fw.debounce / 5
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	debounceTicker := time.NewTicker(tick)
	defer debounceTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			fw.logger.Info().Msg("Data file watcher stopped")
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			fw.handleEvent(event)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fw.logger.Error().Err(err).Msg("Data file watcher error")
			fw.mu.Lock()
			fw.stats.Errors++
			fw.mu.Unlock()

		case <-debounceTicker.C:
			fw.fireIfSettled()
		}
	}
}

// Stats returns current watcher statistics
func (fw *FileWatcher) Stats() Stats {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	return fw.stats
}

func (fw *FileWatcher) handleEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != fw.path {
		return
	}

	var eventType string
	switch {
	case event.Has(fsnotify.Create):
		eventType = "create"
	case event.Has(fsnotify.Write):
		eventType = "modify"
	case event.Has(fsnotify.Remove):
		eventType = "delete"
	case event.Has(fsnotify.Rename):
		eventType = "rename"
	default:
		return
	}

	fw.logger.Debug().Str("path", event.Name).Str("event", eventType).Msg("Data file event")

	fw.mu.Lock()
	fw.pending = true
	fw.lastAt = time.Now()
	fw.stats.Events++
	fw.stats.LastEventTime = fw.lastAt
	fw.stats.LastEventType = eventType
	fw.mu.Unlock()
}

func (fw *FileWatcher) fireIfSettled() {
	fw.mu.Lock()
	if !fw.pending || time.Since(fw.lastAt) < fw.debounce {
		fw.mu.Unlock()
		return
	}
	fw.pending = false
	fw.stats.Triggers++
	fw.mu.Unlock()

	fw.logger.Info().Str("path", fw.path).Msg("Data file changed")
	if fw.onChange != nil {
		fw.onChange()
	}
}
