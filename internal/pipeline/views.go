package pipeline

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/afroash/solardash/internal/models"
)

// DefaultLowEfficiencyThreshold is the efficiency (%) below which a day is reported.
const DefaultLowEfficiencyThreshold = 50.0

// TrendPoint is one marker of the efficiency line.
type TrendPoint struct {
	Date       time.Time `json:"date"`
	Efficiency float64   `json:"efficiency"`
}

// MarshalJSON writes a NaN efficiency as null.
func (p TrendPoint) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Date       time.Time `json:"date"`
		Efficiency *float64  `json:"efficiency"`
	}{p.Date, models.JSONFloat(p.Efficiency)})
}

// FeatureCount is one bar of the feature frequency chart.
type FeatureCount struct {
	Feature string `json:"feature"`
	Count   int    `json:"count"`
}

// Trend returns one point per reading in input order. The line is not sorted
// by date.
func Trend(readings []models.Reading) []TrendPoint {
	points := make([]TrendPoint, 0, len(readings))
	for _, r := range readings {
		points = append(points, TrendPoint{Date: r.Date, Efficiency: r.Efficiency})
	}
	return points
}

// FeatureFrequency counts readings per Most Impactful Feature. Counts are
// accumulated in first-seen order, then ordered by count descending; equal
// counts keep first-seen order. The counts sum to len(readings).
func FeatureFrequency(readings []models.Reading) []FeatureCount {
	index := make(map[string]int)
	counts := []FeatureCount{}
	for _, r := range readings {
		i, seen := index[r.Feature]
		if !seen {
			i = len(counts)
			index[r.Feature] = i
			counts = append(counts, FeatureCount{Feature: r.Feature})
		}
		counts[i].Count++
	}

	sort.SliceStable(counts, func(i, j int) bool {
		return counts[i].Count > counts[j].Count
	})
	return counts
}

// LowEfficiency returns the readings with efficiency strictly below threshold,
// in input order.
func LowEfficiency(readings []models.Reading, threshold float64) []models.Reading {
	out := []models.Reading{}
	for _, r := range readings {
		if r.IsLowEfficiency(threshold) {
			out = append(out, r)
		}
	}
	return out
}
