package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/lox/housetemps/internal/metrics"
)

type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

const (
	DefaultQueryTimeout    = 10 * time.Second
	DefaultRetryMaxElapsed = 30 * time.Second
	DefaultRetryMaxTries   = 4
)

// Query is a named, read-only statement with one SQL text per dialect.
type Query struct {
	Name    string
	Text    map[Dialect]string
	Args    []any
	Columns []Column
}

type Config struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	QueryTimeout    time.Duration
	RetryMaxElapsed time.Duration
	RetryMaxTries   uint64
}

type Store struct {
	db         *sql.DB
	dialect    Dialect
	timeout    time.Duration
	maxElapsed time.Duration
	maxTries   uint64
	logger     *slog.Logger
}

type Option func(*Store)

func WithQueryTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithRetry bounds how long a query that hits connection errors is retried and
// how many attempts it gets in total, counting the first.
func WithRetry(maxElapsed time.Duration, maxTries uint64) Option {
	return func(s *Store) {
		if maxElapsed > 0 {
			s.maxElapsed = maxElapsed
		}
		if maxTries > 0 {
			s.maxTries = maxTries
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

func New(db *sql.DB, dialect Dialect, opts ...Option) *Store {
	s := &Store{
		db:         db,
		dialect:    dialect,
		timeout:    DefaultQueryTimeout,
		maxElapsed: DefaultRetryMaxElapsed,
		maxTries:   DefaultRetryMaxTries,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "store", "dialect", string(dialect))
	return s
}

// Open connects to the store named by cfg.DSN. postgres:// and postgresql:// URLs
// use pgx; anything else is treated as a SQLite path or file: URI.
func Open(ctx context.Context, cfg Config, opts ...Option) (*Store, error) {
	driverName, dsn, dialect := resolveDriver(cfg.DSN)

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect, err)
	}

	if dialect == DialectSQLite {
		if isMemoryDSN(dsn) {
			// Every connection to :memory: is a separate database.
			cfg.MaxOpenConns = 1
		}
		db.Exec("PRAGMA journal_mode=WAL")
		db.Exec("PRAGMA busy_timeout=5000")
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	opts = append([]Option{
		WithQueryTimeout(cfg.QueryTimeout),
		WithRetry(cfg.RetryMaxElapsed, cfg.RetryMaxTries),
	}, opts...)
	s := New(db, dialect, opts...)

	if err := s.Ping(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func resolveDriver(dsn string) (driverName, resolved string, dialect Dialect) {
	lower := strings.ToLower(dsn)
	if strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") {
		return "pgx", dsn, DialectPostgres
	}
	if strings.HasPrefix(lower, "sqlite://") {
		dsn = dsn[len("sqlite://"):]
	}
	return "sqlite", SQLiteDSN(dsn), DialectSQLite
}

// SQLiteDSN makes modernc write bound time.Time values in a form SQLite's date
// functions parse. Its default is Go's time.String layout, which date() and
// julianday() read as NULL.
func SQLiteDSN(dsn string) string {
	if strings.Contains(dsn, "_time_format=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_time_format=sqlite"
}

func isMemoryDSN(dsn string) bool {
	return strings.HasPrefix(dsn, ":memory:") || strings.Contains(dsn, "mode=memory")
}

func (s *Store) Dialect() Dialect {
	return s.dialect
}

func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.db.PingContext(ctx); err != nil {
		return fail("ping", classify(err), err)
	}
	return nil
}

// Execute runs q synchronously and returns its rows as a Table. Connection errors
// are retried with exponential backoff; query errors and timeouts are returned
// immediately. An empty result is not an error here: callers decide whether an
// empty table means ErrNoData.
func (s *Store) Execute(ctx context.Context, q Query) (*Table, error) {
	text, ok := q.Text[s.dialect]
	if !ok {
		return nil, fail(q.Name, ErrQuery, fmt.Errorf("no %s text", s.dialect))
	}

	start := time.Now()
	attempt := 0
	var table *Table
	operation := func() error {
		attempt++
		if attempt > 1 {
			metrics.QueryRetriesTotal.WithLabelValues(q.Name).Inc()
		}
		t, err := s.run(ctx, q, text)
		if err == nil {
			table = t
			return nil
		}
		if errors.Is(err, ErrConnection) {
			s.logger.Warn("query attempt failed", "query", q.Name, "attempt", attempt, "err", err)
			return err
		}
		return backoff.Permanent(err)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 250 * time.Millisecond
	bo.MaxElapsedTime = s.maxElapsed
	b := backoff.WithMaxRetries(bo, s.maxTries-1)
	err := backoff.Retry(operation, backoff.WithContext(b, ctx))

	metrics.QueryLatency.WithLabelValues(q.Name).Observe(time.Since(start).Seconds())
	if err != nil {
		var failure *QueryFailure
		if !errors.As(err, &failure) {
			// Retry gave up on the parent context rather than on our error.
			err = fail(q.Name, classify(err), err)
			errors.As(err, &failure)
		}
		metrics.QueriesTotal.WithLabelValues(q.Name, statusLabel(failure.Kind)).Inc()
		return nil, err
	}
	metrics.QueriesTotal.WithLabelValues(q.Name, "ok").Inc()
	return table, nil
}

func (s *Store) run(ctx context.Context, q Query, text string) (*Table, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, text, q.Args...)
	if err != nil {
		return nil, s.failure(ctx, q.Name, err)
	}
	defer rows.Close()

	table, err := scanTable(rows, q.Columns)
	if err != nil {
		return nil, s.failure(ctx, q.Name, err)
	}
	return table, nil
}

// failure prefers the deadline over whatever the driver reported when the query
// was interrupted by it.
func (s *Store) failure(ctx context.Context, name string, err error) *QueryFailure {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fail(name, ErrTimeout, err)
	}
	return fail(name, classify(err), err)
}

func statusLabel(kind error) string {
	switch kind {
	case ErrConnection:
		return "connection_error"
	case ErrTimeout:
		return "timeout"
	case ErrNoData:
		return "no_data"
	}
	return "query_error"
}
