// Package chart lays out the dashboard charts as SVG geometry. It does no
// drawing itself; the page template turns the shapes into SVG elements.
package chart

import (
	"math"
	"strconv"
)

// Layout is the size of a chart and the margins around its plot area.
type Layout struct {
	Width        float64
	Height       float64
	MarginLeft   float64
	MarginRight  float64
	MarginTop    float64
	MarginBottom float64
}

// DefaultLayout fits a full-width dashboard section.
func DefaultLayout() Layout {
	return Layout{
		Width:        960,
		Height:       360,
		MarginLeft:   56,
		MarginRight:  24,
		MarginTop:    24,
		MarginBottom: 56,
	}
}

// Plot is the rectangle charts draw their data in.
type Plot struct {
	Left   float64
	Top    float64
	Right  float64
	Bottom float64
}

// Width of the plot area
func (p Plot) Width() float64 { return p.Right - p.Left }

// Height of the plot area
func (p Plot) Height() float64 { return p.Bottom - p.Top }

// CenterX is the horizontal middle of the plot area
func (p Plot) CenterX() float64 { return p.Left + p.Width()/2 }

// CenterY is the vertical middle of the plot area
func (p Plot) CenterY() float64 { return p.Top + p.Height()/2 }

func (l Layout) plot() Plot {
	return Plot{
		Left:   l.MarginLeft,
		Top:    l.MarginTop,
		Right:  l.Width - l.MarginRight,
		Bottom: l.Height - l.MarginBottom,
	}
}

// Tick is an axis tick at Pos pixels along its axis.
type Tick struct {
	Pos   float64
	Label string
}

// linear maps [d0, d1] onto [r0, r1]. A zero-width domain maps to the middle.
type linear struct {
	d0, d1 float64
	r0, r1 float64
}

func (s linear) at(v float64) float64 {
	if s.d1 == s.d0 {
		return round2((s.r0 + s.r1) / 2)
	}
	return round2(s.r0 + (v-s.d0)/(s.d1-s.d0)*(s.r1-s.r0))
}

// niceStep rounds span/count to 1, 2, 2.5 or 5 times a power of ten.
func niceStep(span float64, count int) float64 {
	if span <= 0 || count < 1 {
		return 1
	}
	raw := span / float64(count)
	mag := math.Pow(10, math.Floor(math.Log10(raw)))
	for _, m := range []float64{1, 2, 2.5, 5, 10} {
		if raw <= m*mag {
			return m * mag
		}
	}
	return 10 * mag
}

// niceDomain widens [lo, hi] to whole steps and returns the step used.
func niceDomain(lo, hi float64, count int) (float64, float64, float64) {
	if hi == lo {
		hi = lo + 1
	}
	step := niceStep(hi-lo, count)
	return math.Floor(lo/step) * step, math.Ceil(hi/step) * step, step
}

func valueTicks(s linear, step float64) []Tick {
	ticks := []Tick{}
	for v := s.d0; v <= s.d1+step/2; v += step {
		ticks = append(ticks, Tick{Pos: s.at(v), Label: formatValue(v)})
	}
	return ticks
}

func formatValue(v float64) string {
	return strconv.FormatFloat(round2(v), 'f', -1, 64)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
