package pipeline

import (
	"encoding/json"
	"math"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/afroash/solardash/internal/models"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func reading(date time.Time, eff float64, feature, rec string) models.Reading {
	return models.Reading{Date: date, Efficiency: eff, Feature: feature, Recommendation: rec}
}

// randomReadings builds an unsorted table with duplicate dates.
func randomReadings(rng *rand.Rand, n int) []models.Reading {
	features := []string{"Dust", "Angle", "Shade", "Temperature", "Humidity"}
	out := make([]models.Reading, n)
	for i := range out {
		out[i] = reading(
			day(2024, 1, 1).AddDate(0, 0, rng.Intn(60)).Add(time.Duration(rng.Intn(24))*time.Hour),
			float64(rng.Intn(101)),
			features[rng.Intn(len(features))],
			"rec",
		)
	}
	return out
}

func TestFilter(t *testing.T) {
	data := []models.Reading{
		reading(day(2024, 1, 3), 70, "Dust", "a"),
		reading(day(2024, 1, 1), 45, "Dust", "b"),
		reading(time.Date(2024, 1, 2, 17, 30, 0, 0, time.UTC), 50, "Angle", "c"),
		reading(day(2024, 1, 5), 30, "Shade", "d"),
	}

	tests := []struct {
		name  string
		start time.Time
		end   time.Time
		want  []models.Reading
	}{
		{"full span", day(2024, 1, 1), day(2024, 1, 5), data},
		{"inclusive both ends", day(2024, 1, 2), day(2024, 1, 3), []models.Reading{data[0], data[2]}},
		{"single day with time of day", day(2024, 1, 2), day(2024, 1, 2), []models.Reading{data[2]}},
		{"bounds carry a clock", time.Date(2024, 1, 3, 23, 0, 0, 0, time.UTC), time.Date(2024, 1, 5, 1, 0, 0, 0, time.UTC),
			[]models.Reading{data[0], data[3]}},
		{"gap in data", day(2024, 1, 4), day(2024, 1, 4), []models.Reading{}},
		{"start after end", day(2024, 1, 5), day(2024, 1, 1), []models.Reading{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Filter(data, tt.start, tt.end)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Filter mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFilter_DoesNotModifyInput(t *testing.T) {
	data := []models.Reading{
		reading(day(2024, 1, 2), 70, "Dust", "a"),
		reading(day(2024, 1, 1), 45, "Dust", "b"),
	}
	before := append([]models.Reading(nil), data...)

	out := Filter(data, day(2024, 1, 1), day(2024, 1, 2))
	out[0].Efficiency = 0

	if diff := cmp.Diff(before, data); diff != "" {
		t.Errorf("input modified (-before +after):\n%s", diff)
	}
}

func TestFilter_MatchesPredicate(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 200; i++ {
		data := randomReadings(rng, rng.Intn(40))
		s := day(2024, 1, 1).AddDate(0, 0, rng.Intn(70)-5)
		e := day(2024, 1, 1).AddDate(0, 0, rng.Intn(70)-5)

		var want []models.Reading
		for _, r := range data {
			d := r.Day()
			if !s.After(e) && !d.Before(s) && !d.After(e) {
				want = append(want, r)
			}
		}

		got := Filter(data, s, e)
		if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
			t.Fatalf("Filter(%v, %v) mismatch (-want +got):\n%s", s, e, diff)
		}
	}
}

func TestBounds(t *testing.T) {
	if _, _, ok := Bounds(nil); ok {
		t.Error("Bounds(nil) ok = true, want false")
	}

	data := []models.Reading{
		reading(day(2024, 3, 5), 70, "Dust", "a"),
		reading(time.Date(2024, 1, 9, 8, 0, 0, 0, time.UTC), 45, "Dust", "b"),
		reading(day(2024, 2, 1), 45, "Dust", "c"),
	}
	first, last, ok := Bounds(data)
	if !ok {
		t.Fatal("Bounds ok = false, want true")
	}
	if !first.Equal(day(2024, 1, 9)) {
		t.Errorf("first = %v, want 2024-01-09", first)
	}
	if !last.Equal(day(2024, 3, 5)) {
		t.Errorf("last = %v, want 2024-03-05", last)
	}
}

func TestTrend_KeepsInputOrder(t *testing.T) {
	data := []models.Reading{
		reading(day(2024, 1, 3), 70, "Dust", "a"),
		reading(day(2024, 1, 1), 45, "Dust", "b"),
		reading(day(2024, 1, 2), 60, "Dust", "c"),
	}

	want := []TrendPoint{
		{Date: day(2024, 1, 3), Efficiency: 70},
		{Date: day(2024, 1, 1), Efficiency: 45},
		{Date: day(2024, 1, 2), Efficiency: 60},
	}
	if diff := cmp.Diff(want, Trend(data)); diff != "" {
		t.Errorf("Trend mismatch (-want +got):\n%s", diff)
	}

	if got := Trend(nil); len(got) != 0 {
		t.Errorf("Trend(nil) = %v, want empty", got)
	}
}

func TestFeatureFrequency(t *testing.T) {
	data := []models.Reading{
		reading(day(2024, 1, 1), 70, "Angle", ""),
		reading(day(2024, 1, 2), 70, "Dust", ""),
		reading(day(2024, 1, 3), 70, "Shade", ""),
		reading(day(2024, 1, 4), 70, "Dust", ""),
		reading(day(2024, 1, 5), 70, "Shade", ""),
		reading(day(2024, 1, 6), 70, "Humidity", ""),
	}

	// Dust and Shade tie; Dust was seen first. Angle and Humidity tie likewise.
	want := []FeatureCount{
		{Feature: "Dust", Count: 2},
		{Feature: "Shade", Count: 2},
		{Feature: "Angle", Count: 1},
		{Feature: "Humidity", Count: 1},
	}
	if diff := cmp.Diff(want, FeatureFrequency(data)); diff != "" {
		t.Errorf("FeatureFrequency mismatch (-want +got):\n%s", diff)
	}
}

func TestFeatureFrequency_Empty(t *testing.T) {
	got := FeatureFrequency([]models.Reading{})
	if got == nil || len(got) != 0 {
		t.Errorf("FeatureFrequency(empty) = %#v, want empty non-nil slice", got)
	}
}

func TestFeatureFrequency_SumsToInput(t *testing.T) {
	rng := rand.New(rand.NewSource(11))

	for i := 0; i < 100; i++ {
		data := randomReadings(rng, rng.Intn(50))
		sum := 0
		for _, fc := range FeatureFrequency(data) {
			sum += fc.Count
		}
		if sum != len(data) {
			t.Fatalf("sum of counts = %d, want %d", sum, len(data))
		}
	}
}

func TestLowEfficiency_StrictThreshold(t *testing.T) {
	data := []models.Reading{
		reading(day(2024, 1, 1), 49.9, "Dust", "a"),
		reading(day(2024, 1, 2), 50, "Dust", "b"),
		reading(day(2024, 1, 3), 50.1, "Dust", "c"),
		reading(day(2024, 1, 4), math.NaN(), "Dust", "d"),
		reading(day(2024, 1, 5), -3, "Dust", "e"),
	}

	want := []models.Reading{data[0], data[4]}
	if diff := cmp.Diff(want, LowEfficiency(data, 50)); diff != "" {
		t.Errorf("LowEfficiency mismatch (-want +got):\n%s", diff)
	}
}

func TestLowEfficiency_MatchesPredicate(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	data := randomReadings(rng, 300)

	got := LowEfficiency(data, 50)
	var want []models.Reading
	for _, r := range data {
		if r.Efficiency < 50 {
			want = append(want, r)
		}
	}
	if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("LowEfficiency mismatch (-want +got):\n%s", diff)
	}
}

func TestBuild_LowRowShown(t *testing.T) {
	data := []models.Reading{
		reading(day(2024, 1, 1), 45, "Dust", "Clean panel"),
		reading(day(2024, 1, 2), 80, "Angle", "OK"),
	}

	d := Build(data, Options{})

	if d.AllClear {
		t.Error("AllClear = true, want false")
	}
	if diff := cmp.Diff([]models.Reading{data[0]}, d.LowEfficiency); diff != "" {
		t.Errorf("LowEfficiency mismatch (-want +got):\n%s", diff)
	}
	if !d.Range.Start.Equal(day(2024, 1, 1)) || !d.Range.End.Equal(day(2024, 1, 2)) {
		t.Errorf("Range = %+v, want full data span", d.Range)
	}
	if d.Selected != 2 || d.TotalReadings != 2 {
		t.Errorf("Selected/Total = %d/%d, want 2/2", d.Selected, d.TotalReadings)
	}
	if d.Threshold != DefaultLowEfficiencyThreshold {
		t.Errorf("Threshold = %v, want %v", d.Threshold, DefaultLowEfficiencyThreshold)
	}
}

func TestBuild_RangeOutsideData(t *testing.T) {
	data := []models.Reading{
		reading(day(2024, 1, 1), 45, "Dust", "Clean panel"),
		reading(day(2024, 1, 2), 80, "Angle", "OK"),
	}

	d := Build(data, Options{Start: day(2024, 6, 1), End: day(2024, 6, 30)})

	if len(d.Trend) != 0 {
		t.Errorf("len(Trend) = %d, want 0", len(d.Trend))
	}
	if len(d.Features) != 0 {
		t.Errorf("len(Features) = %d, want 0", len(d.Features))
	}
	if !d.AllClear {
		t.Error("AllClear = false, want true")
	}
	if !d.HasData {
		t.Error("HasData = false, want true")
	}
}

func TestBuild_DayFirstDatesShareOneDay(t *testing.T) {
	var data []models.Reading
	for _, text := range []string{"01/02/2024", "01/02/2024"} {
		date, err := models.ParseDayFirst(text)
		if err != nil {
			t.Fatalf("ParseDayFirst(%q) failed: %v", text, err)
		}
		data = append(data, reading(date, 60, "Dust", "ok"))
	}

	d := Build(data, Options{Start: day(2024, 2, 1), End: day(2024, 2, 1)})

	if d.Selected != 2 {
		t.Fatalf("Selected = %d, want 2", d.Selected)
	}
	for _, p := range d.Trend {
		if p.Date.Month() != time.February || p.Date.Day() != 1 {
			t.Errorf("point date = %v, want 1 February", p.Date)
		}
	}
}

func TestBuild_ThresholdIsStrict(t *testing.T) {
	data := []models.Reading{
		reading(day(2024, 1, 1), 50, "Dust", "a"),
		reading(day(2024, 1, 2), 91, "Angle", "b"),
	}

	d := Build(data, Options{})

	if !d.AllClear {
		t.Error("AllClear = false, want true")
	}
	if len(d.LowEfficiency) != 0 {
		t.Errorf("LowEfficiency = %v, want none", d.LowEfficiency)
	}
}

func TestBuild_CustomThreshold(t *testing.T) {
	data := []models.Reading{
		reading(day(2024, 1, 1), 45, "Dust", "a"),
		reading(day(2024, 1, 2), 65, "Angle", "b"),
	}

	d := Build(data, Options{Threshold: 70})
	if len(d.LowEfficiency) != 2 {
		t.Errorf("len(LowEfficiency) = %d, want 2", len(d.LowEfficiency))
	}
}

func TestBuild_NoData(t *testing.T) {
	d := Build(nil, Options{})

	if d.HasData {
		t.Error("HasData = true, want false")
	}
	if !d.AllClear {
		t.Error("AllClear = false, want true")
	}
	if d.Trend == nil || d.Features == nil || d.LowEfficiency == nil {
		t.Error("views should be empty, not nil, so they encode as []")
	}
}

func BenchmarkBuild(b *testing.B) {
	data := randomReadings(rand.New(rand.NewSource(1)), 365)
	opts := Options{Start: day(2024, 1, 10), End: day(2024, 2, 10)}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Build(data, opts)
	}
}

func TestDashboard_Texts(t *testing.T) {
	d := Build(nil, Options{})
	if got, want := d.LowEfficiencyTitle(), "Days with Low Efficiency (< 50%) and Recommendations"; got != want {
		t.Errorf("LowEfficiencyTitle() = %q, want %q", got, want)
	}
	if got, want := d.AllClearMessage(), "No days with efficiency < 50% in selected range."; got != want {
		t.Errorf("AllClearMessage() = %q, want %q", got, want)
	}

	d = Build(nil, Options{Threshold: 47.5})
	if got := d.ThresholdLabel(); got != "47.5" {
		t.Errorf("ThresholdLabel() = %q, want 47.5", got)
	}
}

func TestDashboard_JSONWithNaN(t *testing.T) {
	d := Build([]models.Reading{
		reading(day(2024, 1, 1), math.NaN(), "Dust", "a"),
		reading(day(2024, 1, 2), 40, "Dust", "b"),
	}, Options{})

	data, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if !strings.Contains(string(data), `"efficiency":null`) {
		t.Errorf("Marshal = %s, want a null efficiency", data)
	}
	if !strings.Contains(string(data), `"all_clear":false`) {
		t.Errorf("Marshal = %s, want all_clear false", data)
	}
}
