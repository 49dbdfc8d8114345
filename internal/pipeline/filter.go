// Package pipeline turns the loaded readings into the dashboard views. Every
// function is pure and allocates its own output; inputs are never modified.
package pipeline

import (
	"time"

	"github.com/afroash/solardash/internal/models"
)

// Filter returns the readings whose calendar date d satisfies start <= d <= end,
// in input order. Only the calendar dates of start and end are used. A start
// after end yields an empty result.
func Filter(readings []models.Reading, start, end time.Time) []models.Reading {
	from, to := models.TruncateDay(start), models.TruncateDay(end)

	out := []models.Reading{}
	if from.After(to) {
		return out
	}
	for _, r := range readings {
		d := r.Day()
		if d.Before(from) || d.After(to) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Bounds returns the earliest and latest calendar dates in readings. ok is
// false when readings is empty.
func Bounds(readings []models.Reading) (first, last time.Time, ok bool) {
	for i, r := range readings {
		d := r.Day()
		if i == 0 || d.Before(first) {
			first = d
		}
		if i == 0 || d.After(last) {
			last = d
		}
	}
	return first, last, len(readings) > 0
}
