package models

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
)

// Column headers of the readings table.
const (
	ColumnDate           = "Date"
	ColumnEfficiency     = "Efficiency (%)"
	ColumnFeature        = "Most Impactful Feature"
	ColumnRecommendation = "Recommendation"
)

// DateLayout is the wire format for calendar dates in the API and query strings.
const DateLayout = "2006-01-02"

// Reading represents one day's solar panel measurement with its pre-computed
// most impactful feature and recommendation.
type Reading struct {
	Date           time.Time `json:"date"`
	Efficiency     float64   `json:"efficiency"`
	Feature        string    `json:"most_impactful_feature"`
	Recommendation string    `json:"recommendation"`
}

// Day returns the reading's calendar date at midnight UTC.
func (r Reading) Day() time.Time {
	return TruncateDay(r.Date)
}

// IsLowEfficiency reports whether the efficiency is strictly below threshold.
// NaN efficiencies are never low.
func (r Reading) IsLowEfficiency(threshold float64) bool {
	if math.IsNaN(r.Efficiency) {
		return false
	}
	return r.Efficiency < threshold
}

// MarshalJSON writes a NaN efficiency as null.
func (r Reading) MarshalJSON() ([]byte, error) {
	type plain Reading
	return json.Marshal(struct {
		plain
		Efficiency *float64 `json:"efficiency"`
	}{
		plain:      plain(r),
		Efficiency: JSONFloat(r.Efficiency),
	})
}

// UnmarshalJSON reads a null efficiency back as NaN.
func (r *Reading) UnmarshalJSON(data []byte) error {
	type plain Reading
	aux := struct {
		*plain
		Efficiency *float64 `json:"efficiency"`
	}{plain: (*plain)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	r.Efficiency = math.NaN()
	if aux.Efficiency != nil {
		r.Efficiency = *aux.Efficiency
	}
	return nil
}

// JSONFloat returns nil for values JSON cannot carry (NaN and infinities).
func JSONFloat(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func (r Reading) String() string {
	return fmt.Sprintf("Date: %s, Efficiency: %.1f%%, Feature: %s, Recommendation: %s",
		r.Date.Format(DateLayout),
		r.Efficiency,
		r.Feature,
		r.Recommendation)
}

// TruncateDay drops the clock part of t, keeping its calendar date in UTC.
func TruncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// dayFirstLayouts are tried in order. Single-digit layout elements accept
// zero-padded input, so "05/03/2024" and "5/3/2024" both match "2/1/2006".
// Two-digit years below 69 land in the 2000s.
var dayFirstLayouts = []string{
	"2/1/2006",
	"2/1/2006 15:04",
	"2/1/2006 15:04:05",
	"2-1-2006",
	"2-1-2006 15:04",
	"2-1-2006 15:04:05",
	"2.1.2006",
	"2.1.2006 15:04",
	"2.1.2006 15:04:05",
	"2006-1-2",
	"2006-1-2 15:04",
	"2006-1-2 15:04:05",
	"2/1/06",
	"2/1/06 15:04",
	"2/1/06 15:04:05",
	"2-1-06",
	"2-1-06 15:04",
	"2-1-06 15:04:05",
	"2.1.06",
	"2.1.06 15:04",
	"2.1.06 15:04:05",
	"2 Jan 2006",
	"2-Jan-2006",
	"2 January 2006",
	"2-January-2006",
	"2 Jan 06",
	"2-Jan-06",
	time.RFC3339,
}

// ParseDayFirst parses a textual date where the first numeric group is the day.
// "01/02/2024" is the 1st of February 2024. ISO dates (year first) are accepted
// as-is. The result is in UTC.
func ParseDayFirst(s string) (time.Time, error) {
	value := strings.TrimSpace(s)
	if value == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	for _, layout := range dayFirstLayouts {
		if t, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse %q as a day-first date", s)
}

// ParseDate parses a calendar date in DateLayout.
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, strings.TrimSpace(s), time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, use YYYY-MM-DD: %w", s, err)
	}
	return t, nil
}
