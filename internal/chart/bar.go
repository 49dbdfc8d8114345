package chart

import (
	"math"

	"github.com/afroash/solardash/internal/pipeline"
)

// Bar is one feature count laid out in pixels.
type Bar struct {
	X       float64
	Y       float64
	Width   float64
	Height  float64
	LabelX  float64
	Feature string
	Count   int
}

// BarChart is the feature frequency chart laid out in pixels.
type BarChart struct {
	Layout Layout
	Plot   Plot
	Bars   []Bar
	YTicks []Tick
	Empty  bool
}

// Bars lays out one bar per count, left to right in the order given.
func Bars(counts []pipeline.FeatureCount, layout Layout) BarChart {
	plot := layout.plot()
	chart := BarChart{
		Layout: layout,
		Plot:   plot,
		Bars:   []Bar{},
		YTicks: []Tick{},
	}
	if len(counts) == 0 {
		chart.Empty = true
		return chart
	}

	top := 0
	for _, c := range counts {
		if c.Count > top {
			top = c.Count
		}
	}
	_, yHi, step := niceDomain(0, float64(top), 5)
	// Counts are whole numbers
	step = math.Max(1, math.Ceil(step))
	yHi = math.Ceil(yHi/step) * step
	y := linear{d0: 0, d1: yHi, r0: plot.Bottom, r1: plot.Top}

	band := plot.Width() / float64(len(counts))
	width := round2(band * 0.7)
	for i, c := range counts {
		left := plot.Left + band*float64(i)
		barTop := y.at(float64(c.Count))
		chart.Bars = append(chart.Bars, Bar{
			X:       round2(left + (band-width)/2),
			Y:       barTop,
			Width:   width,
			Height:  round2(plot.Bottom - barTop),
			LabelX:  round2(left + band/2),
			Feature: c.Feature,
			Count:   c.Count,
		})
	}

	chart.YTicks = valueTicks(y, step)
	return chart
}
