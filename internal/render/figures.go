package render

import (
	"fmt"
	"time"

	"github.com/lox/housetemps/internal/analysis"
	"github.com/lox/housetemps/internal/models"
)

const (
	hoverDay     = "Jan 02, 2006"
	hoverDayTime = "Jan 02, 2006 15:04PM"

	tempAxisTitle = "Temperature in °F"
)

func dayLabels(times []time.Time, layout string) []string {
	out := make([]string, len(times))
	for i, t := range times {
		out[i] = t.Format(layout)
	}
	return out
}

// DailyFigure plots the daily mean temperature with its trailing moving average.
func DailyFigure(days []models.DailyAggregate, window int) Figure {
	dates := make([]time.Time, len(days))
	means := make([]float64, len(days))
	ma := make([]float64, len(days))
	for i, d := range days {
		dates[i] = d.Day
		means[i] = d.Mean
		ma[i] = d.MovingAvg
	}
	text := dayLabels(dates, hoverDay)

	layout := baseLayout("Average Daily Temperature")
	layout.ShowLegend = true
	layout.XAxis = timeAxis()
	layout.YAxis.Title = axisTitle(tempAxisTitle)

	return Figure{
		Data: []Trace{
			{
				Type:          TraceScatter,
				Mode:          "lines",
				Name:          "Daily average",
				Times:         dates,
				Y:             means,
				Text:          text,
				HoverTemplate: "Date: %{text}<br>Avg: %{y:.2f}°F<extra></extra>",
				Line:          &Line{Color: Palette[0], Width: 2},
			},
			{
				Type:          TraceScatter,
				Mode:          "lines",
				Name:          fmt.Sprintf("%d-day average", window),
				Times:         dates,
				Y:             ma,
				Text:          text,
				HoverTemplate: fmt.Sprintf("Date: %%{text}<br>%d-day avg: %%{y:.2f}°F<extra></extra>", window),
				Line:          &Line{Color: Palette[1], Width: 2, Dash: "dot"},
			},
		},
		Layout: layout,
	}
}

// HighLowFigure scatters each day's low against its high.
func HighLowFigure(days []models.DailyAggregate) Figure {
	dates := make([]time.Time, len(days))
	lows := make([]float64, len(days))
	highs := make([]float64, len(days))
	for i, d := range days {
		dates[i] = d.Day
		lows[i] = d.Min
		highs[i] = d.Max
	}

	layout := baseLayout("Daily Highs and Lows")
	layout.XAxis.Title = axisTitle("Minimum Temperature in °F")
	layout.YAxis.Title = axisTitle("Maximum Temperature in °F")

	return Figure{
		Data: []Trace{{
			Type:          TraceScatter,
			Mode:          "markers",
			Values:        lows,
			Y:             highs,
			Text:          dayLabels(dates, hoverDay),
			HoverTemplate: "Date: %{text}<br>Max: %{y:.2f}°F<br>Min: %{x:.2f}°F<extra></extra>",
			Marker:        &Marker{Color: Palette[0]},
		}},
		Layout: layout,
	}
}

// WeeklyFigure plots every reading of the last seven days.
func WeeklyFigure(readings []models.Reading) Figure {
	dates := make([]time.Time, len(readings))
	temps := make([]float64, len(readings))
	for i, r := range readings {
		dates[i] = r.Date
		temps[i] = r.Temp
	}

	layout := baseLayout("Last Seven Days")
	layout.XAxis = timeAxis()
	layout.YAxis.Title = axisTitle(tempAxisTitle)

	return Figure{
		Data: []Trace{{
			Type:          TraceScatter,
			Mode:          "lines",
			Times:         dates,
			Y:             temps,
			Text:          dayLabels(dates, hoverDayTime),
			HoverTemplate: "Date and Time: %{text}<br>Temp: %{y:.2f}°F<extra></extra>",
			Line:          &Line{Color: Palette[0], Width: 2},
		}},
		Layout: layout,
	}
}

// ClusterFigure draws one marker trace per cluster, in label order, so a cluster's
// colour follows its rank by humidity rather than the fit's arbitrary numbering.
func ClusterFigure(days []analysis.ClusteredDay) Figure {
	traces := make([]Trace, analysis.HumidityClusters)
	for c := range traces {
		traces[c] = Trace{
			Type:          TraceScatter,
			Mode:          "markers",
			Name:          fmt.Sprintf("Cluster %d", c),
			Values:        []float64{},
			Y:             []float64{},
			HoverTemplate: "Date: %{text}<br>Avg Humidity: %{x:.2f}%<br>Std Dev of Temp: %{y:.2f}°F<extra></extra>",
			Marker:        &Marker{Color: Palette[c%len(Palette)]},
		}
	}
	for _, d := range days {
		t := &traces[d.Cluster]
		t.Values = append(t.Values, d.AvgHumidity)
		t.Y = append(t.Y, d.StdTemp)
		t.Text = append(t.Text, d.Day.Format(hoverDay))
	}

	// Drop clusters that ended up empty rather than emit blank legend entries.
	out := traces[:0]
	for _, t := range traces {
		if len(t.Values) > 0 {
			out = append(out, t)
		}
	}

	layout := baseLayout("Humidity and Variation in Temperature")
	layout.ShowLegend = true
	layout.XAxis.Title = axisTitle("Average Humidity in %")
	layout.YAxis.Title = axisTitle("Standard Deviation of Temperature in °F")

	return Figure{Data: out, Layout: layout}
}

// SplitFigure compares the spread of daily temperature variation on drier and more
// humid days with a pair of violins.
func SplitFigure(split analysis.HumiditySplit) Figure {
	group := func(name string, features []models.HumidityFeature, color string) Trace {
		std := make([]float64, len(features))
		dates := make([]time.Time, len(features))
		for i, f := range features {
			std[i] = f.StdTemp
			dates[i] = f.Day
		}
		s := analysis.Summary(std)
		return Trace{
			Type:          TraceViolin,
			Name:          fmt.Sprintf("%s (n=%d, mean %.2f°F)", name, s.N, s.Mean),
			Y:             std,
			Text:          dayLabels(dates, hoverDay),
			HoverTemplate: "Date: %{text}<br>Std Dev of Temp: %{y:.2f}°F<extra></extra>",
			Line:          &Line{Color: color},
			Box:           &Toggle{Visible: true},
			MeanLine:      &Toggle{Visible: true},
			Points:        "all",
			ScaleGroup:    "split",
		}
	}

	layout := baseLayout("Temperature Variation by Humidity")
	layout.ShowLegend = true
	layout.ViolinMode = "group"
	layout.YAxis.Title = axisTitle("Standard Deviation of Temperature in °F")

	return Figure{
		Data: []Trace{
			group(fmt.Sprintf("Humidity ≤ %.1f%%", split.Cut), split.Low, Palette[0]),
			group(fmt.Sprintf("Humidity > %.1f%%", split.Cut), split.High, Palette[1]),
		},
		Layout: layout,
	}
}
