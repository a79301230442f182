// Package chart maps a price series onto pixel space: a polyline path plus
// three ticks per axis.
//
// Ticks are always placed at the minimum, midpoint and maximum of each axis.
package chart

import (
	"strconv"
	"strings"
	"time"

	"github.com/micko4develop/crypto-dash/internal/format"
	"github.com/micko4develop/crypto-dash/internal/models"
)

const dateLabelLayout = "1/2/2006"

type Margins struct {
	Top    float64 `json:"top"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
	Left   float64 `json:"left"`
}

// Canvas is the outer size of the chart and the space reserved for axes.
// Location is used for date labels; nil means UTC.
type Canvas struct {
	Width    float64
	Height   float64
	Margins  Margins
	Location *time.Location
}

// DefaultCanvas is the 640x240 detail chart.
var DefaultCanvas = Canvas{
	Width:   640,
	Height:  240,
	Margins: Margins{Top: 12, Right: 16, Bottom: 28, Left: 56},
}

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type XTick struct {
	X         float64 `json:"x"`
	Timestamp int64   `json:"t"`
	Label     string  `json:"label"`
}

type YTick struct {
	Y     float64 `json:"y"`
	Value float64 `json:"v"`
	Label string  `json:"label"`
}

// Projection is everything a renderer needs to draw the line chart.
type Projection struct {
	Path    string  `json:"path"`
	Points  []Point `json:"points"`
	XTicks  []XTick `json:"xTicks"`
	YTicks  []YTick `json:"yTicks"`
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
	Margins Margins `json:"margins"`
}

// Project maps series onto c. Timestamps span [Left, Width-Right]; values
// span [Height-Bottom, Top] so that higher prices draw higher. A flat axis
// (min == max) uses a denominator of 1, so a single point lands on the left
// and bottom edges. An empty series yields an empty path and no ticks.
func Project(series []models.PricePoint, c Canvas) Projection {
	p := Projection{
		Points:  []Point{},
		XTicks:  []XTick{},
		YTicks:  []YTick{},
		Width:   c.Width,
		Height:  c.Height,
		Margins: c.Margins,
	}
	if len(series) == 0 {
		return p
	}

	loc := c.Location
	if loc == nil {
		loc = time.UTC
	}

	tMin, tMax, vMin, vMax := bounds(series)
	innerW := c.Width - c.Margins.Left - c.Margins.Right
	innerH := c.Height - c.Margins.Top - c.Margins.Bottom

	tSpan := nonZero(tMax - tMin)
	vSpan := nonZero(vMax - vMin)

	mapX := func(t float64) float64 {
		return c.Margins.Left + (t-tMin)/tSpan*innerW
	}
	mapY := func(v float64) float64 {
		return c.Margins.Top + innerH - (v-vMin)/vSpan*innerH
	}

	var b strings.Builder
	p.Points = make([]Point, len(series))
	for i, pt := range series {
		x, y := mapX(float64(pt.Timestamp)), mapY(pt.Value)
		p.Points[i] = Point{X: x, Y: y}

		if i == 0 {
			b.WriteString("M ")
		} else {
			b.WriteString(" L ")
		}
		b.WriteString(num(x))
		b.WriteByte(' ')
		b.WriteString(num(y))
	}
	p.Path = b.String()

	for _, t := range []float64{tMin, tMin + (tMax-tMin)/2, tMax} {
		ts := int64(t)
		p.XTicks = append(p.XTicks, XTick{
			X:         mapX(t),
			Timestamp: ts,
			Label:     time.UnixMilli(ts).In(loc).Format(dateLabelLayout),
		})
	}
	for _, v := range []float64{vMin, vMin + (vMax-vMin)/2, vMax} {
		p.YTicks = append(p.YTicks, YTick{
			Y:     mapY(v),
			Value: v,
			Label: format.USD(v),
		})
	}
	return p
}

func bounds(series []models.PricePoint) (tMin, tMax, vMin, vMax float64) {
	tMin, tMax = float64(series[0].Timestamp), float64(series[0].Timestamp)
	vMin, vMax = series[0].Value, series[0].Value
	for _, pt := range series[1:] {
		t := float64(pt.Timestamp)
		tMin, tMax = min(tMin, t), max(tMax, t)
		vMin, vMax = min(vMin, pt.Value), max(vMax, pt.Value)
	}
	return
}

func nonZero(d float64) float64 {
	if d == 0 {
		return 1
	}
	return d
}

func num(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
