//go:build integration

package queries_test

import (
	"context"
	"math"
	"testing"
	"time"

	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/lox/housetemps/internal/queries"
	"github.com/lox/housetemps/internal/store"
	"github.com/lox/housetemps/internal/store/storetest"
)

func startPostgres(t *testing.T) *store.Store {
	t.Helper()
	ctx := context.Background()

	ctr, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("home"),
		postgres.WithUsername("weather"),
		postgres.WithPassword("weather"),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}
	t.Cleanup(func() {
		_ = tc.TerminateContainer(ctr)
	})

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("connection string: %v", err)
	}
	s, err := store.Open(ctx, store.Config{DSN: dsn, MaxOpenConns: 4})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	if s.Dialect() != store.DialectPostgres {
		t.Fatalf("Dialect = %q, want postgres", s.Dialect())
	}
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return s
}

func TestPostgresCatalog(t *testing.T) {
	s := startPostgres(t)
	day1 := storetest.Day(2021, time.October, 1)
	storetest.InsertReadingsPostgres(t, s,
		storetest.HumidReading(day1.Add(9*time.Hour), 50, 40),
		storetest.HumidReading(day1.Add(15*time.Hour), 60, 60),
		storetest.Reading(day1.AddDate(0, 0, 1).Add(12*time.Hour), 60),
		storetest.Reading(day1.AddDate(0, 0, 2).Add(12*time.Hour), 40),
	)

	low := execute(t, s, queries.RecordLow())
	if temp, _ := low.Float(queries.ColTemp, 0); temp != 40 {
		t.Errorf("record low = %v, want 40", temp)
	}
	high := execute(t, s, queries.RecordHigh())
	if date, _ := high.Time(queries.ColDate, 0); !date.Equal(day1.Add(15 * time.Hour)) {
		t.Errorf("record high date = %v, want first 60°F reading", date)
	}

	daily := execute(t, s, queries.DailyAverages())
	temps, _ := daily.Floats(queries.ColTemp)
	want := []float64{55, 60, 40}
	if len(temps) != len(want) {
		t.Fatalf("len(daily) = %d, want %d", len(temps), len(want))
	}
	for i := range want {
		if !approx(temps[i], want[i]) {
			t.Errorf("daily[%d] = %v, want %v", i, temps[i], want[i])
		}
	}

	ma, err := queries.DailyAveragesWithMovingAverage(queries.DefaultMovingAverageWindow)
	if err != nil {
		t.Fatal(err)
	}
	avgs, _ := execute(t, s, ma).Floats(queries.ColMovingAvg)
	if !approx(avgs[2], (55.0+60+40)/3) {
		t.Errorf("moving_avg[2] = %v, want %v", avgs[2], (55.0+60+40)/3)
	}

	hum := execute(t, s, queries.HumidityFeatures())
	if hum.Len() != 1 {
		t.Fatalf("humidity features len = %d, want 1", hum.Len())
	}
	if std, _ := hum.Float(queries.ColStdTemp, 0); !approx(std, math.Sqrt(50)) {
		t.Errorf("std_temp = %v, want %v", std, math.Sqrt(50))
	}

	for _, q := range queries.All(day1.AddDate(0, 0, 3)) {
		if _, err := s.Execute(context.Background(), q); err != nil {
			t.Errorf("%s: %v", q.Name, err)
		}
	}
}
