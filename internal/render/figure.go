// Package render maps query results and derived metrics onto Plotly figure specs
// and the short text readouts shown on the dashboard.
package render

import (
	"encoding/json"
	"math"
	"time"
)

// Palette is the fixed colour order; cluster i is always drawn in Palette[i].
var Palette = []string{
	"rgba(56,250,251,1)",
	"rgba(247,168,1,1)",
	"rgba(0,255,117,1)",
}

const (
	transparent = "rgba(0,0,0,0)"
	fontColor   = "white"
	gridColor   = "#444444"

	// plotlyTimeLayout is the date string form Plotly parses without timezone games.
	plotlyTimeLayout = "2006-01-02 15:04:05"
)

const (
	TraceScatter = "scatter"
	TraceViolin  = "violin"
)

type Figure struct {
	Data   []Trace `json:"data"`
	Layout Layout  `json:"layout"`
}

type Line struct {
	Color string  `json:"color,omitempty"`
	Width float64 `json:"width,omitempty"`
	Dash  string  `json:"dash,omitempty"`
}

type Marker struct {
	Color string  `json:"color,omitempty"`
	Size  float64 `json:"size,omitempty"`
}

type Toggle struct {
	Visible bool `json:"visible"`
}

// Trace is one Plotly trace. X holds time values on date axes and Values on
// numeric axes; exactly one of them is set.
type Trace struct {
	Type          string      `json:"type"`
	Mode          string      `json:"mode,omitempty"`
	Name          string      `json:"name,omitempty"`
	Times         []time.Time `json:"-"`
	Values        []float64   `json:"-"`
	Y             []float64   `json:"-"`
	Text          []string    `json:"text,omitempty"`
	HoverTemplate string      `json:"hovertemplate,omitempty"`
	Line          *Line       `json:"line,omitempty"`
	Marker        *Marker     `json:"marker,omitempty"`

	// violin only
	Box        *Toggle `json:"box,omitempty"`
	MeanLine   *Toggle `json:"meanline,omitempty"`
	Points     string  `json:"points,omitempty"`
	FillColor  string  `json:"fillcolor,omitempty"`
	ScaleGroup string  `json:"scalegroup,omitempty"`
}

func (t Trace) MarshalJSON() ([]byte, error) {
	type plain Trace
	out := struct {
		plain
		X []any `json:"x,omitempty"`
		Y []any `json:"y,omitempty"`
	}{plain: plain(t)}

	if t.Times != nil {
		out.X = make([]any, len(t.Times))
		for i, v := range t.Times {
			out.X[i] = v.UTC().Format(plotlyTimeLayout)
		}
	} else if t.Values != nil {
		out.X = floats(t.Values)
	}
	if t.Y != nil {
		out.Y = floats(t.Y)
	}
	return json.Marshal(out)
}

// floats maps NaN and ±Inf to null, which Plotly draws as a gap.
func floats(values []float64) []any {
	out := make([]any, len(values))
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		out[i] = v
	}
	return out
}

type Font struct {
	Color string `json:"color,omitempty"`
}

type Title struct {
	Text string `json:"text"`
}

type RangeSlider struct {
	Visible bool `json:"visible"`
}

type Axis struct {
	Title       *Title       `json:"title,omitempty"`
	Type        string       `json:"type,omitempty"`
	ShowGrid    *bool        `json:"showgrid,omitempty"`
	GridColor   string       `json:"gridcolor,omitempty"`
	RangeSlider *RangeSlider `json:"rangeslider,omitempty"`
}

type Layout struct {
	PaperBGColor string `json:"paper_bgcolor"`
	PlotBGColor  string `json:"plot_bgcolor"`
	Font         Font   `json:"font"`
	ShowLegend   bool   `json:"showlegend"`
	Title        Title  `json:"title"`
	XAxis        Axis   `json:"xaxis"`
	YAxis        Axis   `json:"yaxis"`
	ViolinMode   string `json:"violinmode,omitempty"`
}

func baseLayout(title string) Layout {
	return Layout{
		PaperBGColor: transparent,
		PlotBGColor:  transparent,
		Font:         Font{Color: fontColor},
		Title:        Title{Text: title},
		YAxis:        Axis{GridColor: gridColor},
		XAxis:        Axis{GridColor: gridColor},
	}
}

// timeAxis is a date x-axis with a range slider and no vertical gridlines.
func timeAxis() Axis {
	off := false
	return Axis{
		Type:        "date",
		ShowGrid:    &off,
		RangeSlider: &RangeSlider{Visible: true},
	}
}

func axisTitle(text string) *Title {
	return &Title{Text: text}
}
