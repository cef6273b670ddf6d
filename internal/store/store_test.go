package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"math"
	"net"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus/testutil"
	_ "modernc.org/sqlite"

	"github.com/lox/housetemps/internal/metrics"
)

func setupTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	db, err := sql.Open("sqlite", SQLiteDSN(":memory:"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	store := New(db, DialectSQLite, opts...)
	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store
}

func sqliteQuery(name, text string, columns ...Column) Query {
	return Query{Name: name, Text: map[Dialect]string{DialectSQLite: text}, Columns: columns}
}

func TestMigrationVersion(t *testing.T) {
	store := setupTestStore(t)

	version, err := store.MigrationVersion(context.Background())
	if err != nil {
		t.Fatalf("MigrationVersion: %v", err)
	}
	if version != len(migrations) {
		t.Errorf("version = %d, want %d", version, len(migrations))
	}

	// Re-running is a no-op.
	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
	if v, _ := store.MigrationVersion(context.Background()); v != version {
		t.Errorf("version after rerun = %d, want %d", v, version)
	}
}

func TestExecute_DecodesByName(t *testing.T) {
	store := setupTestStore(t)
	if _, err := store.DB().Exec(`INSERT INTO temp_log (date, temp) VALUES ('2022-01-02 03:04:00', 61.5)`); err != nil {
		t.Fatal(err)
	}

	// Columns arrive in an unexpected order with an undeclared extra.
	q := sqliteQuery("decode_test", `SELECT temp AS Temp, 7 AS extra, date FROM temp_log`,
		Column{Name: "date", Kind: KindTime},
		Column{Name: "temp", Kind: KindFloat},
	)
	table, err := store.Execute(context.Background(), q)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if table.Len() != 1 {
		t.Fatalf("Len = %d, want 1", table.Len())
	}

	date, err := table.Time("date", 0)
	if err != nil {
		t.Fatal(err)
	}
	if want := time.Date(2022, 1, 2, 3, 4, 0, 0, time.UTC); !date.Equal(want) {
		t.Errorf("date = %v, want %v", date, want)
	}
	if temp, _ := table.Float("temp", 0); temp != 61.5 {
		t.Errorf("temp = %v, want 61.5", temp)
	}
	if extra, _ := table.Float("extra", 0); extra != 7 {
		t.Errorf("extra = %v, want 7", extra)
	}
}

func TestExecute_EmptyResultIsNotAnError(t *testing.T) {
	store := setupTestStore(t)
	table, err := store.Execute(context.Background(),
		sqliteQuery("empty_test", `SELECT date, temp FROM temp_log`,
			Column{Name: "date", Kind: KindTime}, Column{Name: "temp", Kind: KindFloat}))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !table.Empty() {
		t.Errorf("Len = %d, want 0", table.Len())
	}
	if err := table.RequireRows(); !errors.Is(err, ErrNoData) {
		t.Errorf("RequireRows = %v, want ErrNoData", err)
	}
}

func TestExecute_QueryErrorNotRetried(t *testing.T) {
	store := setupTestStore(t)
	q := sqliteQuery("missing_table_test", `SELECT date FROM no_such_table`)

	_, err := store.Execute(context.Background(), q)
	if !errors.Is(err, ErrQuery) {
		t.Fatalf("err = %v, want ErrQuery", err)
	}
	if errors.Is(err, ErrConnection) {
		t.Errorf("query error classified as connection error: %v", err)
	}
	var failure *QueryFailure
	if !errors.As(err, &failure) || failure.Query != q.Name {
		t.Errorf("failure = %+v, want Query %q", failure, q.Name)
	}
	if got := testutil.ToFloat64(metrics.QueryRetriesTotal.WithLabelValues(q.Name)); got != 0 {
		t.Errorf("retries = %v, want 0", got)
	}
	if got := testutil.ToFloat64(metrics.QueriesTotal.WithLabelValues(q.Name, "query_error")); got != 1 {
		t.Errorf("query_error count = %v, want 1", got)
	}
}

func TestExecute_MissingDialectText(t *testing.T) {
	store := setupTestStore(t)
	q := Query{Name: "pg_only", Text: map[Dialect]string{DialectPostgres: "SELECT 1"}}
	if _, err := store.Execute(context.Background(), q); !errors.Is(err, ErrQuery) {
		t.Errorf("err = %v, want ErrQuery", err)
	}
}

// refusingConnector fails every dial the way an unreachable server does.
type refusingConnector struct {
	dials atomic.Int32
}

func (c *refusingConnector) Connect(context.Context) (driver.Conn, error) {
	c.dials.Add(1)
	return nil, &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED}
}

func (c *refusingConnector) Driver() driver.Driver { return nil }

func TestExecute_ConnectionErrorRetried(t *testing.T) {
	conn := &refusingConnector{}
	db := sql.OpenDB(conn)
	t.Cleanup(func() { db.Close() })

	store := New(db, DialectSQLite, WithRetry(10*time.Second, 3))
	q := sqliteQuery("unreachable_test", `SELECT 1 AS n`)

	_, err := store.Execute(context.Background(), q)
	if !errors.Is(err, ErrConnection) {
		t.Fatalf("err = %v, want ErrConnection", err)
	}
	if got := testutil.ToFloat64(metrics.QueryRetriesTotal.WithLabelValues(q.Name)); got != 2 {
		t.Errorf("retries = %v, want 2", got)
	}
	if n := conn.dials.Load(); n < 3 {
		t.Errorf("dials = %d, want at least 3", n)
	}
}

func TestExecute_Timeout(t *testing.T) {
	store := setupTestStore(t, WithQueryTimeout(50*time.Millisecond))
	q := sqliteQuery("slow_test", `
		WITH RECURSIVE c(x) AS (SELECT 1 UNION ALL SELECT x + 1 FROM c WHERE x < 1000000000)
		SELECT count(*) AS n FROM c`)

	start := time.Now()
	_, err := store.Execute(context.Background(), q)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("Execute took %v, want it bounded by the query timeout", elapsed)
	}
	if got := testutil.ToFloat64(metrics.QueryRetriesTotal.WithLabelValues(q.Name)); got != 0 {
		t.Errorf("retries = %v, want 0", got)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"deadline", fmt.Errorf("wrapped: %w", context.DeadlineExceeded), ErrTimeout},
		{"pg connection failure", &pgconn.PgError{Code: "08006"}, ErrConnection},
		{"pg admin shutdown", &pgconn.PgError{Code: "57P01"}, ErrConnection},
		{"pg undefined table", &pgconn.PgError{Code: "42P01"}, ErrQuery},
		{"pg syntax error", &pgconn.PgError{Code: "42601"}, ErrQuery},
		{"bad conn", driver.ErrBadConn, ErrConnection},
		{"refused", fmt.Errorf("dial: %w", syscall.ECONNREFUSED), ErrConnection},
		{"net error", &net.OpError{Op: "read", Err: errors.New("reset")}, ErrConnection},
		{"anything else", errors.New("no such column: tmp"), ErrQuery},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classify(tt.err); got != tt.want {
				t.Errorf("classify(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestQueryFailure_Unwrap(t *testing.T) {
	cause := &pgconn.PgError{Code: "42P01", Message: "relation does not exist"}
	err := fmt.Errorf("refresh: %w", fail("daily_averages", ErrQuery, cause))

	if !errors.Is(err, ErrQuery) {
		t.Error("errors.Is(err, ErrQuery) = false")
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "42P01" {
		t.Errorf("errors.As PgError = %v", pgErr)
	}
}

func TestResolveDriver(t *testing.T) {
	tests := []struct {
		dsn         string
		wantDriver  string
		wantDSN     string
		wantDialect Dialect
	}{
		{"postgres://u:p@db:5432/home", "pgx", "postgres://u:p@db:5432/home", DialectPostgres},
		{"postgresql://db/home", "pgx", "postgresql://db/home", DialectPostgres},
		{"sqlite://temps.db", "sqlite", "temps.db?_time_format=sqlite", DialectSQLite},
		{"file:temps.db?mode=ro", "sqlite", "file:temps.db?mode=ro&_time_format=sqlite", DialectSQLite},
		{":memory:", "sqlite", ":memory:?_time_format=sqlite", DialectSQLite},
		{"temps.db?_time_format=sqlite", "sqlite", "temps.db?_time_format=sqlite", DialectSQLite},
	}
	for _, tt := range tests {
		d, dsn, dialect := resolveDriver(tt.dsn)
		if d != tt.wantDriver || dsn != tt.wantDSN || dialect != tt.wantDialect {
			t.Errorf("resolveDriver(%q) = (%q, %q, %q), want (%q, %q, %q)",
				tt.dsn, d, dsn, dialect, tt.wantDriver, tt.wantDSN, tt.wantDialect)
		}
	}
}

func TestOpen_SQLiteMemory(t *testing.T) {
	store, err := Open(context.Background(), Config{DSN: ":memory:"})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()
	if store.Dialect() != DialectSQLite {
		t.Errorf("Dialect = %q, want sqlite", store.Dialect())
	}
	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
}

func TestTable_Accessors(t *testing.T) {
	day := time.Date(2022, 3, 4, 0, 0, 0, 0, time.UTC)
	table := NewTable(
		[]Column{{Name: "date", Kind: KindTime}, {Name: "temp", Kind: KindFloat}},
		[][]any{{day, 55.5}, {day.AddDate(0, 0, 1), nil}},
	)

	if !table.Has("temp") || table.Has("humidity") {
		t.Error("Has reports wrong columns")
	}
	temps, err := table.Floats("temp")
	if err != nil {
		t.Fatal(err)
	}
	if temps[0] != 55.5 || !math.IsNaN(temps[1]) {
		t.Errorf("temps = %v, want [55.5 NaN]", temps)
	}
	if _, err := table.Floats("date"); err == nil {
		t.Error("Floats on a time column should fail")
	}
	if _, err := table.Times("humidity"); err == nil {
		t.Error("Times on a missing column should fail")
	}
	if _, err := table.Time("date", 2); !errors.Is(err, ErrNoData) {
		t.Errorf("Time past end = %v, want ErrNoData", err)
	}
}

func TestParseTime(t *testing.T) {
	want := time.Date(2021, 10, 1, 12, 30, 0, 0, time.UTC)
	for _, s := range []string{
		"2021-10-01 12:30:00",
		"2021-10-01T12:30:00Z",
		"2021-10-01 14:30:00+02:00",
		"2021-10-01 12:30",
	} {
		got, err := parseTime(s)
		if err != nil {
			t.Errorf("parseTime(%q): %v", s, err)
			continue
		}
		if !got.Equal(want) {
			t.Errorf("parseTime(%q) = %v, want %v", s, got, want)
		}
	}
	if _, err := parseTime("yesterday"); err == nil {
		t.Error("parseTime(yesterday) should fail")
	}
}
