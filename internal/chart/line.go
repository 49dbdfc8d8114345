package chart

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/afroash/solardash/internal/pipeline"
)

// Marker is one data point of the line chart.
type Marker struct {
	X          float64
	Y          float64
	Date       time.Time
	Efficiency float64
}

// Title is the tooltip text of the marker.
func (m Marker) Title() string {
	return fmt.Sprintf("%s: %.1f%%", m.Date.Format("2006-01-02"), m.Efficiency)
}

// LineChart is the efficiency trend laid out in pixels.
type LineChart struct {
	Layout Layout
	Plot   Plot
	// Segments are SVG polyline point lists. A NaN efficiency breaks the line.
	Segments []string
	Markers  []Marker
	XTicks   []Tick
	YTicks   []Tick
	Empty    bool
}

// Line lays out points in the order given, so unsorted dates zigzag.
func Line(points []pipeline.TrendPoint, layout Layout) LineChart {
	plot := layout.plot()
	chart := LineChart{
		Layout:   layout,
		Plot:     plot,
		Segments: []string{},
		Markers:  []Marker{},
		XTicks:   []Tick{},
		YTicks:   []Tick{},
	}

	var first, last time.Time
	lo, hi := 0.0, 100.0
	valid := 0
	for _, p := range points {
		if math.IsNaN(p.Efficiency) || math.IsInf(p.Efficiency, 0) {
			continue
		}
		if valid == 0 || p.Date.Before(first) {
			first = p.Date
		}
		if valid == 0 || p.Date.After(last) {
			last = p.Date
		}
		lo = math.Min(lo, p.Efficiency)
		hi = math.Max(hi, p.Efficiency)
		valid++
	}
	if valid == 0 {
		chart.Empty = true
		return chart
	}

	yLo, yHi, step := niceDomain(lo, hi, 5)
	y := linear{d0: yLo, d1: yHi, r0: plot.Bottom, r1: plot.Top}
	x := linear{d0: float64(first.Unix()), d1: float64(last.Unix()), r0: plot.Left, r1: plot.Right}

	var segment []string
	flush := func() {
		if len(segment) > 0 {
			chart.Segments = append(chart.Segments, strings.Join(segment, " "))
			segment = nil
		}
	}
	for _, p := range points {
		if math.IsNaN(p.Efficiency) || math.IsInf(p.Efficiency, 0) {
			flush()
			continue
		}
		m := Marker{
			X:          x.at(float64(p.Date.Unix())),
			Y:          y.at(p.Efficiency),
			Date:       p.Date,
			Efficiency: p.Efficiency,
		}
		chart.Markers = append(chart.Markers, m)
		segment = append(segment, formatValue(m.X)+","+formatValue(m.Y))
	}
	flush()

	chart.YTicks = valueTicks(y, step)
	chart.XTicks = dateTicks(x, first, last)
	return chart
}

// dateTicks places at most six day-aligned ticks between first and last.
func dateTicks(x linear, first, last time.Time) []Tick {
	start := time.Date(first.Year(), first.Month(), first.Day(), 0, 0, 0, 0, time.UTC)
	days := int(last.Sub(start).Hours() / 24)
	stepDays := 1
	if days > 5 {
		stepDays = int(math.Ceil(float64(days) / 5))
	}

	layout := "Jan 2"
	if first.Year() != last.Year() {
		layout = "Jan 2, 2006"
	}

	ticks := []Tick{}
	for d := start; !d.After(last); d = d.AddDate(0, 0, stepDays) {
		if d.Before(first) {
			continue
		}
		ticks = append(ticks, Tick{Pos: x.at(float64(d.Unix())), Label: d.Format(layout)})
	}
	return ticks
}
