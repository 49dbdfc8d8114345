package chart

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/afroash/solardash/internal/pipeline"
)

func day(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

func TestNiceStep(t *testing.T) {
	tests := []struct {
		span  float64
		count int
		want  float64
	}{
		{100, 5, 20},
		{3, 5, 1},
		{7, 5, 2},
		{12, 5, 2.5},
		{0, 5, 1},
	}

	for _, tt := range tests {
		if got := niceStep(tt.span, tt.count); got != tt.want {
			t.Errorf("niceStep(%v, %d) = %v, want %v", tt.span, tt.count, got, tt.want)
		}
	}
}

func TestLine_Empty(t *testing.T) {
	c := Line(nil, DefaultLayout())
	if !c.Empty {
		t.Error("Empty = false, want true")
	}
	if len(c.Segments) != 0 || len(c.Markers) != 0 {
		t.Errorf("empty chart has shapes: %+v", c)
	}
	// The frame is still laid out
	if c.Plot.Width() <= 0 || c.Plot.Height() <= 0 {
		t.Errorf("Plot = %+v, want a non-empty area", c.Plot)
	}
}

func TestPlot_Center(t *testing.T) {
	p := Plot{Left: 40, Top: 10, Right: 240, Bottom: 110}
	if got := p.CenterX(); got != 140 {
		t.Errorf("CenterX() = %v, want 140", got)
	}
	if got := p.CenterY(); got != 60 {
		t.Errorf("CenterY() = %v, want 60", got)
	}
}

func TestLine_Geometry(t *testing.T) {
	layout := DefaultLayout()
	c := Line([]pipeline.TrendPoint{
		{Date: day(1), Efficiency: 0},
		{Date: day(3), Efficiency: 100},
	}, layout)

	if c.Empty {
		t.Fatal("Empty = true, want false")
	}
	if len(c.Markers) != 2 {
		t.Fatalf("len(Markers) = %d, want 2", len(c.Markers))
	}

	first, last := c.Markers[0], c.Markers[1]
	if first.X != c.Plot.Left || first.Y != c.Plot.Bottom {
		t.Errorf("first marker = (%v,%v), want plot bottom-left (%v,%v)", first.X, first.Y, c.Plot.Left, c.Plot.Bottom)
	}
	if last.X != c.Plot.Right || last.Y != c.Plot.Top {
		t.Errorf("last marker = (%v,%v), want plot top-right (%v,%v)", last.X, last.Y, c.Plot.Right, c.Plot.Top)
	}
	if len(c.YTicks) != 6 {
		t.Errorf("len(YTicks) = %d, want 6 (0..100 by 20)", len(c.YTicks))
	}
	if got := c.Markers[1].Title(); got != "2024-01-03: 100.0%" {
		t.Errorf("Title() = %q", got)
	}
}

func TestLine_ZigzagKeepsOrder(t *testing.T) {
	c := Line([]pipeline.TrendPoint{
		{Date: day(3), Efficiency: 60},
		{Date: day(1), Efficiency: 40},
		{Date: day(2), Efficiency: 50},
	}, DefaultLayout())

	if !(c.Markers[0].X > c.Markers[1].X && c.Markers[1].X < c.Markers[2].X) {
		t.Errorf("markers should follow input order, got X = %v, %v, %v",
			c.Markers[0].X, c.Markers[1].X, c.Markers[2].X)
	}
	if len(c.Segments) != 1 || len(strings.Fields(c.Segments[0])) != 3 {
		t.Errorf("Segments = %v, want one polyline of 3 points", c.Segments)
	}
}

func TestLine_NaNBreaksLine(t *testing.T) {
	c := Line([]pipeline.TrendPoint{
		{Date: day(1), Efficiency: 40},
		{Date: day(2), Efficiency: 45},
		{Date: day(3), Efficiency: math.NaN()},
		{Date: day(4), Efficiency: 70},
	}, DefaultLayout())

	if len(c.Segments) != 2 {
		t.Errorf("len(Segments) = %d, want 2", len(c.Segments))
	}
	if len(c.Markers) != 3 {
		t.Errorf("len(Markers) = %d, want 3", len(c.Markers))
	}
}

func TestLine_SinglePointCentered(t *testing.T) {
	layout := DefaultLayout()
	c := Line([]pipeline.TrendPoint{{Date: day(5), Efficiency: 55}}, layout)

	wantX := round2((c.Plot.Left + c.Plot.Right) / 2)
	if c.Markers[0].X != wantX {
		t.Errorf("X = %v, want %v", c.Markers[0].X, wantX)
	}
	if len(c.XTicks) != 1 || c.XTicks[0].Label != "Jan 5" {
		t.Errorf("XTicks = %+v, want one tick Jan 5", c.XTicks)
	}
}

func TestLine_NegativeValuesWidenAxis(t *testing.T) {
	c := Line([]pipeline.TrendPoint{
		{Date: day(1), Efficiency: -10},
		{Date: day(2), Efficiency: 120},
	}, DefaultLayout())

	for _, m := range c.Markers {
		if m.Y < c.Plot.Top || m.Y > c.Plot.Bottom {
			t.Errorf("marker Y %v outside plot [%v, %v]", m.Y, c.Plot.Top, c.Plot.Bottom)
		}
	}
}

func TestDateTicks_Limit(t *testing.T) {
	points := make([]pipeline.TrendPoint, 0, 90)
	for i := 0; i < 90; i++ {
		points = append(points, pipeline.TrendPoint{Date: day(1).AddDate(0, 0, i), Efficiency: 50})
	}

	c := Line(points, DefaultLayout())
	if len(c.XTicks) > 6 {
		t.Errorf("len(XTicks) = %d, want at most 6", len(c.XTicks))
	}
	if c.XTicks[0].Label != "Jan 1" {
		t.Errorf("first tick = %q, want Jan 1", c.XTicks[0].Label)
	}
}

func TestBars_Empty(t *testing.T) {
	c := Bars([]pipeline.FeatureCount{}, DefaultLayout())
	if !c.Empty || len(c.Bars) != 0 {
		t.Errorf("Bars(empty) = %+v, want empty chart", c)
	}
}

func TestBars_Geometry(t *testing.T) {
	c := Bars([]pipeline.FeatureCount{
		{Feature: "Dust", Count: 3},
		{Feature: "Angle", Count: 1},
	}, DefaultLayout())

	if len(c.Bars) != 2 {
		t.Fatalf("len(Bars) = %d, want 2", len(c.Bars))
	}

	dust, angle := c.Bars[0], c.Bars[1]
	if dust.Feature != "Dust" || angle.Feature != "Angle" {
		t.Errorf("bar order = %s, %s; want Dust, Angle", dust.Feature, angle.Feature)
	}
	if dust.Y != c.Plot.Top {
		t.Errorf("tallest bar top = %v, want plot top %v", dust.Y, c.Plot.Top)
	}
	if math.Abs(dust.Y+dust.Height-c.Plot.Bottom) > 0.01 || math.Abs(angle.Y+angle.Height-c.Plot.Bottom) > 0.01 {
		t.Error("bars should stand on the plot bottom")
	}
	if math.Abs(dust.Height-3*angle.Height) > 0.05 {
		t.Errorf("heights %v and %v are not proportional to 3:1", dust.Height, angle.Height)
	}
	if angle.X <= dust.X+dust.Width {
		t.Error("bars overlap")
	}
	for _, tick := range c.YTicks {
		if strings.Contains(tick.Label, ".") {
			t.Errorf("count axis has fractional tick %q", tick.Label)
		}
	}
}
