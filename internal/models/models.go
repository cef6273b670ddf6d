package models

import (
	"database/sql"
	"time"
)

// Reading is one row of the temperature log as written by the collector.
type Reading struct {
	Date     time.Time // UTC, minute resolution
	Temp     float64   // °F
	Humidity sql.NullFloat64
}

type DailyAggregate struct {
	Day       time.Time
	Mean      float64
	Min       float64
	Max       float64
	MovingAvg float64 // trailing, see analysis.MovingAverage
}

type HumidityFeature struct {
	Day         time.Time
	AvgHumidity float64
	StdTemp     float64
}

// RecordExtreme is the lowest or highest reading over the whole history.
type RecordExtreme struct {
	Date time.Time
	Temp float64
}
