// Package storetest provides an in-memory SQLite store seeded with readings for
// tests in other packages.
package storetest

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/lox/housetemps/internal/models"
	"github.com/lox/housetemps/internal/store"
)

// New returns a migrated, empty in-memory store.
func New(t *testing.T, opts ...store.Option) *store.Store {
	t.Helper()
	db, err := sql.Open("sqlite", store.SQLiteDSN(":memory:"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	s := store.New(db, store.DialectSQLite, opts...)
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return s
}

// InsertReadings appends readings the way the collector does: every reading goes to
// temp_log, and readings with humidity also go to hum_log.
func InsertReadings(t *testing.T, s *store.Store, readings ...models.Reading) {
	t.Helper()
	insertReadings(t, s, "?", readings)
}

// InsertReadingsPostgres is InsertReadings for a Postgres-backed store.
func InsertReadingsPostgres(t *testing.T, s *store.Store, readings ...models.Reading) {
	t.Helper()
	insertReadings(t, s, "$", readings)
}

func insertReadings(t *testing.T, s *store.Store, style string, readings []models.Reading) {
	t.Helper()
	tempSQL := "INSERT INTO temp_log (date, temp) VALUES (?, ?)"
	humSQL := "INSERT INTO hum_log (date, temp, humidity) VALUES (?, ?, ?)"
	if style == "$" {
		tempSQL = "INSERT INTO temp_log (date, temp) VALUES ($1::timestamp, $2)"
		humSQL = "INSERT INTO hum_log (date, temp, humidity) VALUES ($1::timestamp, $2, $3)"
	}
	for _, r := range readings {
		date := store.FormatTime(r.Date)
		if _, err := s.DB().Exec(tempSQL, date, r.Temp); err != nil {
			t.Fatalf("insert temp_log %s: %v", date, err)
		}
		if r.Humidity.Valid {
			if _, err := s.DB().Exec(humSQL, date, r.Temp, r.Humidity.Float64); err != nil {
				t.Fatalf("insert hum_log %s: %v", date, err)
			}
		}
	}
}

// Day returns midnight UTC on the given date.
func Day(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// Reading is a temperature-only reading.
func Reading(at time.Time, temp float64) models.Reading {
	return models.Reading{Date: at, Temp: temp}
}

// HumidReading is a reading that also carries humidity.
func HumidReading(at time.Time, temp, humidity float64) models.Reading {
	return models.Reading{Date: at, Temp: temp, Humidity: sql.NullFloat64{Float64: humidity, Valid: true}}
}
