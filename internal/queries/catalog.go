// Package queries is the fixed catalog of read-only aggregation queries the
// dashboard runs against the temperature and humidity logs.
package queries

import (
	"embed"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lox/housetemps/internal/store"
)

//go:embed sql/sqlite/*.sql sql/postgres/*.sql
var sqlFS embed.FS

// Column names are the contract the dashboard panels bind to.
const (
	ColDate        = "date"
	ColTemp        = "temp"
	ColMin         = "min"
	ColMax         = "max"
	ColMovingAvg   = "moving_avg"
	ColAvgHumidity = "avg_humidity"
	ColStdTemp     = "std_temp"
)

// DefaultMovingAverageWindow is the number of daily averages in the trailing window.
const DefaultMovingAverageWindow = 10

var (
	dateTemp = []store.Column{
		{Name: ColDate, Kind: store.KindTime},
		{Name: ColTemp, Kind: store.KindFloat},
	}
	dateOnly = []store.Column{
		{Name: ColDate, Kind: store.KindTime},
	}
	highLow = []store.Column{
		{Name: ColDate, Kind: store.KindTime},
		{Name: ColMin, Kind: store.KindFloat},
		{Name: ColMax, Kind: store.KindFloat},
	}
	movingAvg = []store.Column{
		{Name: ColDate, Kind: store.KindTime},
		{Name: ColTemp, Kind: store.KindFloat},
		{Name: ColMovingAvg, Kind: store.KindFloat},
	}
	humidity = []store.Column{
		{Name: ColDate, Kind: store.KindTime},
		{Name: ColAvgHumidity, Kind: store.KindFloat},
		{Name: ColStdTemp, Kind: store.KindFloat},
	}
)

func load(file string) map[store.Dialect]string {
	text := make(map[store.Dialect]string, 2)
	for _, d := range []store.Dialect{store.DialectSQLite, store.DialectPostgres} {
		b, err := sqlFS.ReadFile("sql/" + string(d) + "/" + file)
		if err != nil {
			panic(fmt.Sprintf("queries: missing %s/%s: %v", d, file, err))
		}
		text[d] = string(b)
	}
	return text
}

var (
	latestReadingSQL      = load("latest_reading.sql")
	earliestTimestampSQL  = load("earliest_timestamp.sql")
	dailyAveragesSQL      = load("daily_averages.sql")
	dailyMovingAverageSQL = load("daily_moving_average.sql")
	dailyHighLowSQL       = load("daily_high_low.sql")
	recordLowSQL          = load("record_low.sql")
	recordHighSQL         = load("record_high.sql")
	lastNDaysSQL          = load("last_n_days.sql")
	humidityFeaturesSQL   = load("humidity_features.sql")
)

// LatestReading returns the most recent reading (date, temp).
func LatestReading() store.Query {
	return store.Query{Name: "latest_reading", Text: latestReadingSQL, Columns: dateTemp}
}

// EarliestTimestamp returns the first reading's date. Empty when there are no readings.
func EarliestTimestamp() store.Query {
	return store.Query{Name: "earliest_timestamp", Text: earliestTimestampSQL, Columns: dateOnly}
}

// DailyAverages returns one row per calendar day (date, temp), ascending.
func DailyAverages() store.Query {
	return store.Query{Name: "daily_averages", Text: dailyAveragesSQL, Columns: dateTemp}
}

// DailyAveragesWithMovingAverage adds moving_avg, the mean of the trailing window
// daily averages ending at each day. Early days average whatever rows exist.
func DailyAveragesWithMovingAverage(window int) (store.Query, error) {
	if window < 1 {
		return store.Query{}, fmt.Errorf("moving average window %d: %w", window, store.ErrQuery)
	}
	preceding := strconv.Itoa(window - 1)
	text := make(map[store.Dialect]string, len(dailyMovingAverageSQL))
	for d, t := range dailyMovingAverageSQL {
		text[d] = strings.ReplaceAll(t, "{{preceding}}", preceding)
	}
	return store.Query{Name: "daily_moving_average", Text: text, Columns: movingAvg}, nil
}

// DailyHighLow returns per-day min and max temperature.
func DailyHighLow() store.Query {
	return store.Query{Name: "daily_high_low", Text: dailyHighLowSQL, Columns: highLow}
}

// RecordLow returns the coldest reading; ties go to the earliest.
func RecordLow() store.Query {
	return store.Query{Name: "record_low", Text: recordLowSQL, Columns: dateTemp}
}

// RecordHigh returns the warmest reading; ties go to the earliest.
func RecordHigh() store.Query {
	return store.Query{Name: "record_high", Text: recordHighSQL, Columns: dateTemp}
}

// LastNDays returns every reading since midnight UTC n days before now's date.
// The cutoff moves with the caller's clock, so the result set shifts by one day at
// each UTC midnight.
func LastNDays(n int, now time.Time) (store.Query, error) {
	if n < 1 {
		return store.Query{}, fmt.Errorf("last %d days: %w", n, store.ErrQuery)
	}
	return store.Query{
		Name:    "last_n_days",
		Text:    lastNDaysSQL,
		Args:    []any{store.FormatTime(Cutoff(n, now))},
		Columns: dateTemp,
	}, nil
}

// Cutoff is the first instant included by LastNDays(n, now).
func Cutoff(n int, now time.Time) time.Time {
	y, m, d := now.UTC().Date()
	return time.Date(y, m, d-n, 0, 0, 0, 0, time.UTC)
}

// HumidityFeatures returns, per day with at least two humidity readings, the
// average humidity and the sample standard deviation of temperature.
func HumidityFeatures() store.Query {
	return store.Query{Name: "humidity_features", Text: humidityFeaturesSQL, Columns: humidity}
}

// All lists every catalog query with default arguments applied.
func All(now time.Time) []store.Query {
	ma, _ := DailyAveragesWithMovingAverage(DefaultMovingAverageWindow)
	week, _ := LastNDays(7, now)
	return []store.Query{
		LatestReading(),
		EarliestTimestamp(),
		DailyAverages(),
		ma,
		DailyHighLow(),
		RecordLow(),
		RecordHigh(),
		week,
		HumidityFeatures(),
	}
}
