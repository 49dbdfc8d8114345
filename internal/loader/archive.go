package loader

import (
	"context"
	"fmt"

	"github.com/afroash/solardash/internal/models"
)

// Archive is the part of the SQLite store the dashboard reads from.
type Archive interface {
	LoadAll(ctx context.Context) ([]models.Reading, error)
	Path() string
}

// ArchiveSource serves readings imported by `solardash archive`.
type ArchiveSource struct {
	archive Archive
}

// NewArchiveSource wraps an opened archive
func NewArchiveSource(archive Archive) *ArchiveSource {
	return &ArchiveSource{archive: archive}
}

// Describe identifies the source in logs and API responses
func (s *ArchiveSource) Describe() string {
	return "sqlite:" + s.archive.Path()
}

// Load returns the archived readings in import order.
func (s *ArchiveSource) Load(ctx context.Context) ([]models.Reading, error) {
	readings, err := s.archive.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load archive: %w", err)
	}
	return readings, nil
}
