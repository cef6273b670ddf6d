package imagegen

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/lox/housetemps/internal/render"
)

// ErrEmptyFigure is returned when a figure has no drawable points.
var ErrEmptyFigure = errors.New("figure has no points")

const (
	ChartWidth  = 1024
	ChartHeight = 480
)

var (
	chartBackground = drawing.Color{R: 34, G: 34, B: 34, A: 255}
	chartGrid       = drawing.ColorFromHex("444444")
	chartText       = drawing.ColorWhite
)

// pointStyle renders points only, no connecting line.
func pointStyle(col drawing.Color) chart.Style {
	return chart.Style{
		StrokeWidth: chart.Disabled,
		DotWidth:    4,
		DotColor:    col,
	}
}

func lineStyle(col drawing.Color, width float64) chart.Style {
	if width <= 0 {
		width = 2
	}
	return chart.Style{
		StrokeColor: col,
		StrokeWidth: width,
	}
}

// RenderFigurePNG draws a static snapshot of a dashboard figure. Line and marker
// traces are drawn as-is; violins are drawn as their points, one column per group.
func RenderFigurePNG(fig render.Figure, width, height int) ([]byte, error) {
	var series []chart.Series
	timeAxis := false
	var xb, yb bounds

	for i, tr := range fig.Data {
		col := traceColor(tr, i)
		style := lineStyle(col, lineWidth(tr))
		if tr.Mode == "markers" || tr.Type == render.TraceViolin {
			style = pointStyle(col)
		}

		switch {
		case tr.Type == render.TraceViolin:
			xs := make([]float64, len(tr.Y))
			for j := range xs {
				xs[j] = float64(i + 1)
			}
			xs, ys := dropNaN(xs, tr.Y)
			if len(ys) == 0 {
				continue
			}
			xs, ys = widenContinuous(xs, ys)
			xb.add(xs...)
			yb.add(ys...)
			series = append(series, chart.ContinuousSeries{Name: tr.Name, XValues: xs, YValues: ys, Style: style})
		case tr.Times != nil:
			ts, ys := dropNaNTimes(tr.Times, tr.Y)
			if len(ys) == 0 {
				continue
			}
			ts, ys = widenTimes(ts, ys)
			for _, t := range ts {
				xb.add(chart.TimeToFloat64(t))
			}
			yb.add(ys...)
			timeAxis = true
			series = append(series, chart.TimeSeries{Name: tr.Name, XValues: ts, YValues: ys, Style: style})
		default:
			xs, ys := dropNaN(tr.Values, tr.Y)
			if len(ys) == 0 {
				continue
			}
			xs, ys = widenContinuous(xs, ys)
			xb.add(xs...)
			yb.add(ys...)
			series = append(series, chart.ContinuousSeries{Name: tr.Name, XValues: xs, YValues: ys, Style: style})
		}
	}
	if len(series) == 0 {
		return nil, ErrEmptyFigure
	}

	axisStyle := chart.Style{FontColor: chartText, StrokeColor: chartGrid}
	gridStyle := chart.Style{StrokeColor: chartGrid, StrokeWidth: 1}

	xAxis := chart.XAxis{Name: axisName(fig.Layout.XAxis), Style: axisStyle}
	if timeAxis {
		xAxis.ValueFormatter = chart.TimeValueFormatterWithFormat("Jan 02")
	} else {
		xAxis.GridMajorStyle = gridStyle
	}

	ch := chart.Chart{
		Title:      fig.Layout.Title.Text,
		TitleStyle: chart.Style{FontColor: chartText},
		Width:      width,
		Height:     height,
		Background: chart.Style{FillColor: chartBackground, Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}},
		Canvas:     chart.Style{FillColor: chartBackground},
		XAxis:      xAxis,
		YAxis: chart.YAxis{
			Name:           axisName(fig.Layout.YAxis),
			Style:          axisStyle,
			GridMajorStyle: gridStyle,
		},
		Series: series,
	}
	// go-chart refuses a zero-width range; give flat data some room.
	if yb.flat() {
		ch.YAxis.Range = &chart.ContinuousRange{Min: yb.min - 1, Max: yb.max + 1}
	}
	if xb.flat() && !timeAxis {
		ch.XAxis.Range = &chart.ContinuousRange{Min: xb.min - 1, Max: xb.max + 1}
	}
	if fig.Layout.ShowLegend && len(series) > 1 {
		ch.Elements = []chart.Renderable{chart.Legend(&ch)}
	}

	var buf bytes.Buffer
	if err := ch.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("render %q: %w", fig.Layout.Title.Text, err)
	}
	return buf.Bytes(), nil
}

type bounds struct {
	min, max float64
	set      bool
}

func (b *bounds) add(values ...float64) {
	for _, v := range values {
		if !b.set {
			b.min, b.max, b.set = v, v, true
			continue
		}
		b.min = math.Min(b.min, v)
		b.max = math.Max(b.max, v)
	}
}

func (b bounds) flat() bool {
	return b.set && b.max-b.min < 1e-9
}

func axisName(a render.Axis) string {
	if a.Title == nil {
		return ""
	}
	return a.Title.Text
}

func lineWidth(tr render.Trace) float64 {
	if tr.Line != nil {
		return tr.Line.Width
	}
	return 0
}

func traceColor(tr render.Trace, i int) drawing.Color {
	if tr.Marker != nil && tr.Marker.Color != "" {
		if c, ok := parseRGBA(tr.Marker.Color); ok {
			return c
		}
	}
	if tr.Line != nil && tr.Line.Color != "" {
		if c, ok := parseRGBA(tr.Line.Color); ok {
			return c
		}
	}
	c, _ := parseRGBA(render.Palette[i%len(render.Palette)])
	return c
}

// parseRGBA reads the "rgba(r,g,b,a)" and "#rrggbb" forms the render palette uses.
func parseRGBA(s string) (drawing.Color, bool) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "#") {
		return drawing.ColorFromHex(s[1:]), true
	}
	if !strings.HasPrefix(s, "rgba(") || !strings.HasSuffix(s, ")") {
		return drawing.Color{}, false
	}
	parts := strings.Split(s[len("rgba("):len(s)-1], ",")
	if len(parts) != 4 {
		return drawing.Color{}, false
	}
	var rgb [3]uint8
	for i := 0; i < 3; i++ {
		v, err := strconv.Atoi(strings.TrimSpace(parts[i]))
		if err != nil || v < 0 || v > 255 {
			return drawing.Color{}, false
		}
		rgb[i] = uint8(v)
	}
	a, err := strconv.ParseFloat(strings.TrimSpace(parts[3]), 64)
	if err != nil || a < 0 || a > 1 {
		return drawing.Color{}, false
	}
	return drawing.Color{R: rgb[0], G: rgb[1], B: rgb[2], A: uint8(math.Round(a * 255))}, true
}

func dropNaN(xs, ys []float64) ([]float64, []float64) {
	n := min(len(xs), len(ys))
	outX := make([]float64, 0, n)
	outY := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		if math.IsNaN(xs[i]) || math.IsNaN(ys[i]) {
			continue
		}
		outX = append(outX, xs[i])
		outY = append(outY, ys[i])
	}
	return outX, outY
}

func dropNaNTimes(ts []time.Time, ys []float64) ([]time.Time, []float64) {
	n := min(len(ts), len(ys))
	outT := make([]time.Time, 0, n)
	outY := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		if math.IsNaN(ys[i]) {
			continue
		}
		outT = append(outT, ts[i])
		outY = append(outY, ys[i])
	}
	return outT, outY
}

// go-chart cannot range a single point; widen it into a short flat segment.
func widenTimes(ts []time.Time, ys []float64) ([]time.Time, []float64) {
	if len(ts) != 1 {
		return ts, ys
	}
	return []time.Time{ts[0], ts[0].Add(time.Hour)}, []float64{ys[0], ys[0]}
}

func widenContinuous(xs, ys []float64) ([]float64, []float64) {
	if len(xs) != 1 {
		return xs, ys
	}
	return []float64{xs[0], xs[0]}, []float64{ys[0], ys[0]}
}
