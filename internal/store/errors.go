package store

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"

	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var (
	// ErrConnection means the backing store could not be reached. Retrying may help.
	ErrConnection = errors.New("store unreachable")
	// ErrQuery means the statement or the schema it references is broken. Never retried.
	ErrQuery = errors.New("query failed")
	// ErrNoData means the query succeeded but returned no rows.
	ErrNoData = errors.New("no data")
	// ErrTimeout means the query exceeded the per-query deadline.
	ErrTimeout = errors.New("query timed out")
)

// QueryFailure carries the catalog query name and the failure class alongside the
// driver error. errors.Is matches both the class sentinel and the cause.
type QueryFailure struct {
	Query string
	Kind  error
	Err   error
}

func (e *QueryFailure) Error() string {
	return fmt.Sprintf("store: %s: %v: %v", e.Query, e.Kind, e.Err)
}

func (e *QueryFailure) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

func fail(query string, kind, err error) *QueryFailure {
	return &QueryFailure{Query: query, Kind: kind, Err: err}
}

// classify maps a driver error onto ErrConnection, ErrTimeout or ErrQuery.
func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ErrTimeout
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// Class 08 is connection exception; 57P0x are shutdown / cannot connect now.
		switch {
		case len(pgErr.Code) >= 2 && pgErr.Code[:2] == "08":
			return ErrConnection
		case pgErr.Code == "57P01" || pgErr.Code == "57P02" || pgErr.Code == "57P03":
			return ErrConnection
		}
		return ErrQuery
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) || pgconn.SafeToRetry(err) {
		return ErrConnection
	}

	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED, sqlite3.SQLITE_CANTOPEN,
			sqlite3.SQLITE_IOERR, sqlite3.SQLITE_PROTOCOL:
			return ErrConnection
		}
		return ErrQuery
	}

	if errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) {
		return ErrConnection
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return ErrConnection
	}

	return ErrQuery
}
