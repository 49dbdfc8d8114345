package pipeline

import (
	"fmt"
	"strconv"
	"time"

	"github.com/afroash/solardash/internal/models"
)

// Range is the inclusive date range a dashboard was built for.
type Range struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Dashboard holds everything one render cycle shows.
type Dashboard struct {
	Range Range `json:"range"`
	// DataRange spans the whole table and seeds the date pickers.
	DataRange Range `json:"data_range"`
	HasData   bool  `json:"has_data"`

	Threshold     float64          `json:"threshold"`
	TotalReadings int              `json:"total_readings"`
	Selected      int              `json:"selected"`
	Trend         []TrendPoint     `json:"trend"`
	Features      []FeatureCount   `json:"features"`
	LowEfficiency []models.Reading `json:"low_efficiency"`
	// AllClear selects the success message instead of the low-efficiency table.
	AllClear bool `json:"all_clear"`
}

// Options selects the range and threshold of a render cycle. Zero Start or End
// default to the data bounds; a zero Threshold means the default of 50.
type Options struct {
	Start     time.Time
	End       time.Time
	Threshold float64
}

// Build runs the filter and the three views over readings.
func Build(readings []models.Reading, opts Options) Dashboard {
	threshold := opts.Threshold
	if threshold == 0 {
		threshold = DefaultLowEfficiencyThreshold
	}

	first, last, ok := Bounds(readings)
	start, end := opts.Start, opts.End
	if start.IsZero() {
		start = first
	}
	if end.IsZero() {
		end = last
	}
	start, end = models.TruncateDay(start), models.TruncateDay(end)

	filtered := Filter(readings, start, end)
	low := LowEfficiency(filtered, threshold)

	return Dashboard{
		Range:         Range{Start: start, End: end},
		DataRange:     Range{Start: first, End: last},
		HasData:       ok,
		Threshold:     threshold,
		TotalReadings: len(readings),
		Selected:      len(filtered),
		Trend:         Trend(filtered),
		Features:      FeatureFrequency(filtered),
		LowEfficiency: low,
		AllClear:      len(low) == 0,
	}
}

// ThresholdLabel formats the threshold without trailing zeros, "50" or "47.5".
func (d Dashboard) ThresholdLabel() string {
	return strconv.FormatFloat(d.Threshold, 'f', -1, 64)
}

// LowEfficiencyTitle is the heading of the low-efficiency section.
func (d Dashboard) LowEfficiencyTitle() string {
	return fmt.Sprintf("Days with Low Efficiency (< %s%%) and Recommendations", d.ThresholdLabel())
}

// AllClearMessage replaces the low-efficiency table when no day qualifies.
func (d Dashboard) AllClearMessage() string {
	return fmt.Sprintf("No days with efficiency < %s%% in selected range.", d.ThresholdLabel())
}
