package store

import (
	"database/sql/driver"
	"fmt"
	"math"
	"time"

	"modernc.org/sqlite"
)

// sqlTimeLayout is how timestamps are written as text. SQLite date functions and
// Postgres timestamp input both accept it.
const sqlTimeLayout = "2006-01-02 15:04:05"

// FormatTime renders t in UTC for use as a bind parameter or stored value.
func FormatTime(t time.Time) string {
	return t.UTC().Format(sqlTimeLayout)
}

func init() {
	// SQLite has no aggregate standard deviation; the catalog computes it from sums
	// and needs a square root.
	sqlite.MustRegisterDeterministicScalarFunction("sqrt", 1, sqliteSqrt)
}

func sqliteSqrt(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	switch v := args[0].(type) {
	case nil:
		return nil, nil
	case int64:
		return math.Sqrt(float64(v)), nil
	case float64:
		return math.Sqrt(v), nil
	}
	return nil, fmt.Errorf("sqrt: unsupported argument %T", args[0])
}
