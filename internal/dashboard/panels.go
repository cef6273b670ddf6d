// Package dashboard binds catalog queries to panel builders and keeps the most
// recent output of every panel fresh on a timer.
package dashboard

import (
	"time"

	"github.com/lox/housetemps/internal/analysis"
	"github.com/lox/housetemps/internal/queries"
	"github.com/lox/housetemps/internal/render"
	"github.com/lox/housetemps/internal/store"
)

// Panel IDs are the binding points between pipeline output and the page.
const (
	PanelCurrentTemp   = "current-temp"
	PanelSinceDate     = "since-date"
	PanelDaily         = "daily-figure"
	PanelHighLow       = "high-low-figure"
	PanelWeekly        = "weekly-figure"
	PanelLowTemp       = "low-temp"
	PanelHighTemp      = "high-temp"
	PanelHumCluster    = "hum-cluster-figure"
	PanelHumiditySplit = "hum-split-figure"
)

// Output is what a panel shows: a figure, or a line of text with an optional
// detail line (the record date under a record temperature).
type Output struct {
	Figure *render.Figure `json:"figure,omitempty"`
	Text   string         `json:"text,omitempty"`
	Detail string         `json:"detail,omitempty"`
	// Value is the reading behind Text, in °F, for single-value panels.
	Value *float64 `json:"value,omitempty"`
}

// Panel pairs a catalog query with a pure builder over its result.
type Panel struct {
	ID    string
	Title string
	Query func(now time.Time) (store.Query, error)
	Build func(now time.Time, t *store.Table) (Output, error)
}

type PanelConfig struct {
	MovingAverageWindow int
	WeeklyDays          int
	SplitQuantile       float64
}

func DefaultPanelConfig() PanelConfig {
	return PanelConfig{
		MovingAverageWindow: queries.DefaultMovingAverageWindow,
		WeeklyDays:          7,
		SplitQuantile:       0.5,
	}
}

func fixed(q store.Query) func(time.Time) (store.Query, error) {
	return func(time.Time) (store.Query, error) { return q, nil }
}

// Panels returns every dashboard panel in page order.
func Panels(cfg PanelConfig) []Panel {
	return []Panel{
		{
			ID:    PanelCurrentTemp,
			Title: "Current Temperature",
			Query: fixed(queries.LatestReading()),
			Build: func(_ time.Time, t *store.Table) (Output, error) {
				r, err := latestReading(t)
				if err != nil {
					return Output{}, err
				}
				return Output{Text: render.CurrentTemp(r.Temp), Detail: render.AsOf(r.Date), Value: &r.Temp}, nil
			},
		},
		{
			ID:    PanelSinceDate,
			Title: "Collecting Since",
			Query: fixed(queries.EarliestTimestamp()),
			Build: func(_ time.Time, t *store.Table) (Output, error) {
				first, err := t.Time(queries.ColDate, 0)
				if err != nil {
					return Output{}, err
				}
				return Output{Text: render.SinceDate(first)}, nil
			},
		},
		{
			ID:    PanelDaily,
			Title: "Average Daily Temp",
			Query: fixed(queries.DailyAverages()),
			Build: func(_ time.Time, t *store.Table) (Output, error) {
				days, err := dailyAverages(t)
				if err != nil {
					return Output{}, err
				}
				means := make([]float64, len(days))
				for i, d := range days {
					means[i] = d.Mean
				}
				for i, v := range analysis.MovingAverage(means, cfg.MovingAverageWindow) {
					days[i].MovingAvg = v
				}
				fig := render.DailyFigure(days, cfg.MovingAverageWindow)
				return Output{Figure: &fig}, nil
			},
		},
		{
			ID:    PanelHighLow,
			Title: "Daily Highs and Lows",
			Query: fixed(queries.DailyHighLow()),
			Build: func(_ time.Time, t *store.Table) (Output, error) {
				days, err := dailyHighLow(t)
				if err != nil {
					return Output{}, err
				}
				fig := render.HighLowFigure(days)
				return Output{Figure: &fig}, nil
			},
		},
		{
			ID:    PanelWeekly,
			Title: "Last Seven Days",
			Query: func(now time.Time) (store.Query, error) {
				return queries.LastNDays(cfg.WeeklyDays, now)
			},
			Build: func(_ time.Time, t *store.Table) (Output, error) {
				readings, err := readings(t)
				if err != nil {
					return Output{}, err
				}
				fig := render.WeeklyFigure(readings)
				return Output{Figure: &fig}, nil
			},
		},
		{
			ID:    PanelLowTemp,
			Title: "Lowest Temperature",
			Query: fixed(queries.RecordLow()),
			Build: buildRecord,
		},
		{
			ID:    PanelHighTemp,
			Title: "Highest Temperature",
			Query: fixed(queries.RecordHigh()),
			Build: buildRecord,
		},
		{
			ID:    PanelHumCluster,
			Title: "Humidity and Temperature Clustering",
			Query: fixed(queries.HumidityFeatures()),
			Build: func(_ time.Time, t *store.Table) (Output, error) {
				features, err := humidityFeatures(t)
				if err != nil {
					return Output{}, err
				}
				days, err := analysis.ClusterHumidity(features)
				if err != nil {
					return Output{}, err
				}
				fig := render.ClusterFigure(days)
				return Output{Figure: &fig}, nil
			},
		},
		{
			ID:    PanelHumiditySplit,
			Title: "Humidity Split",
			Query: fixed(queries.HumidityFeatures()),
			Build: func(_ time.Time, t *store.Table) (Output, error) {
				features, err := humidityFeatures(t)
				if err != nil {
					return Output{}, err
				}
				split, err := analysis.SplitByHumidity(features, cfg.SplitQuantile)
				if err != nil {
					return Output{}, err
				}
				fig := render.SplitFigure(split)
				return Output{Figure: &fig}, nil
			},
		},
	}
}

func buildRecord(_ time.Time, t *store.Table) (Output, error) {
	r, err := record(t)
	if err != nil {
		return Output{}, err
	}
	return Output{Text: render.RecordTemp(r.Temp), Detail: render.RecordDate(r.Date), Value: &r.Temp}, nil
}
