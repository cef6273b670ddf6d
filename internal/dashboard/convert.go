package dashboard

import (
	"fmt"

	"github.com/lox/housetemps/internal/models"
	"github.com/lox/housetemps/internal/queries"
	"github.com/lox/housetemps/internal/store"
)

// The converters below bind by column name and refuse empty tables, so builders
// never index row 0 of a result that has none.

func latestReading(t *store.Table) (models.Reading, error) {
	r, err := record(t)
	if err != nil {
		return models.Reading{}, err
	}
	return models.Reading{Date: r.Date, Temp: r.Temp}, nil
}

func record(t *store.Table) (models.RecordExtreme, error) {
	if err := t.RequireRows(); err != nil {
		return models.RecordExtreme{}, err
	}
	date, err := t.Time(queries.ColDate, 0)
	if err != nil {
		return models.RecordExtreme{}, err
	}
	temp, err := t.Float(queries.ColTemp, 0)
	if err != nil {
		return models.RecordExtreme{}, err
	}
	return models.RecordExtreme{Date: date, Temp: temp}, nil
}

func dailyAverages(t *store.Table) ([]models.DailyAggregate, error) {
	if err := t.RequireRows(); err != nil {
		return nil, err
	}
	dates, err := t.Times(queries.ColDate)
	if err != nil {
		return nil, err
	}
	temps, err := t.Floats(queries.ColTemp)
	if err != nil {
		return nil, err
	}
	days := make([]models.DailyAggregate, len(dates))
	for i := range dates {
		days[i] = models.DailyAggregate{Day: dates[i], Mean: temps[i]}
	}
	return days, sortedByDay(days)
}

func dailyHighLow(t *store.Table) ([]models.DailyAggregate, error) {
	if err := t.RequireRows(); err != nil {
		return nil, err
	}
	dates, err := t.Times(queries.ColDate)
	if err != nil {
		return nil, err
	}
	lows, err := t.Floats(queries.ColMin)
	if err != nil {
		return nil, err
	}
	highs, err := t.Floats(queries.ColMax)
	if err != nil {
		return nil, err
	}
	days := make([]models.DailyAggregate, len(dates))
	for i := range dates {
		days[i] = models.DailyAggregate{Day: dates[i], Min: lows[i], Max: highs[i]}
	}
	return days, nil
}

func readings(t *store.Table) ([]models.Reading, error) {
	if err := t.RequireRows(); err != nil {
		return nil, err
	}
	dates, err := t.Times(queries.ColDate)
	if err != nil {
		return nil, err
	}
	temps, err := t.Floats(queries.ColTemp)
	if err != nil {
		return nil, err
	}
	out := make([]models.Reading, len(dates))
	for i := range dates {
		out[i] = models.Reading{Date: dates[i], Temp: temps[i]}
	}
	return out, nil
}

func humidityFeatures(t *store.Table) ([]models.HumidityFeature, error) {
	if err := t.RequireRows(); err != nil {
		return nil, err
	}
	dates, err := t.Times(queries.ColDate)
	if err != nil {
		return nil, err
	}
	hum, err := t.Floats(queries.ColAvgHumidity)
	if err != nil {
		return nil, err
	}
	std, err := t.Floats(queries.ColStdTemp)
	if err != nil {
		return nil, err
	}
	out := make([]models.HumidityFeature, len(dates))
	for i := range dates {
		out[i] = models.HumidityFeature{Day: dates[i], AvgHumidity: hum[i], StdTemp: std[i]}
	}
	return out, nil
}

// sortedByDay guards the moving average, which is only meaningful over days in
// ascending order.
func sortedByDay(days []models.DailyAggregate) error {
	for i := 1; i < len(days); i++ {
		if !days[i].Day.After(days[i-1].Day) {
			return fmt.Errorf("daily averages out of order at %s: %w", days[i].Day.Format("2006-01-02"), store.ErrQuery)
		}
	}
	return nil
}
