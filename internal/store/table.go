package store

import (
	"database/sql"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Kind is the type a result column is decoded into.
type Kind int

const (
	KindFloat Kind = iota
	KindTime
)

func (k Kind) String() string {
	switch k {
	case KindFloat:
		return "float"
	case KindTime:
		return "time"
	}
	return "unknown"
}

type Column struct {
	Name string
	Kind Kind
}

// Table is a query result with named, typed columns. Callers bind by column name;
// the position of a column in the SELECT list carries no meaning.
type Table struct {
	columns []Column
	index   map[string]int
	rows    [][]any
}

// NewTable builds a table from already-decoded rows. Each row holds time.Time or
// float64 values in column order.
func NewTable(columns []Column, rows [][]any) *Table {
	t := &Table{columns: columns, index: make(map[string]int, len(columns)), rows: rows}
	for i, c := range columns {
		t.index[c.Name] = i
	}
	return t
}

func (t *Table) Columns() []Column {
	return t.columns
}

func (t *Table) Len() int {
	return len(t.rows)
}

func (t *Table) Empty() bool {
	return len(t.rows) == 0
}

func (t *Table) Has(name string) bool {
	_, ok := t.index[name]
	return ok
}

// RequireRows returns ErrNoData when the table has no rows.
func (t *Table) RequireRows() error {
	if t.Empty() {
		return ErrNoData
	}
	return nil
}

func (t *Table) column(name string, kind Kind) (int, error) {
	i, ok := t.index[name]
	if !ok {
		return 0, fmt.Errorf("column %q not in result", name)
	}
	if t.columns[i].Kind != kind {
		return 0, fmt.Errorf("column %q is %s, not %s", name, t.columns[i].Kind, kind)
	}
	return i, nil
}

func (t *Table) Times(name string) ([]time.Time, error) {
	i, err := t.column(name, KindTime)
	if err != nil {
		return nil, err
	}
	out := make([]time.Time, len(t.rows))
	for r, row := range t.rows {
		out[r], _ = row[i].(time.Time)
	}
	return out, nil
}

func (t *Table) Floats(name string) ([]float64, error) {
	i, err := t.column(name, KindFloat)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(t.rows))
	for r, row := range t.rows {
		v, ok := row[i].(float64)
		if !ok {
			v = math.NaN()
		}
		out[r] = v
	}
	return out, nil
}

func (t *Table) Time(name string, row int) (time.Time, error) {
	if row < 0 || row >= len(t.rows) {
		return time.Time{}, ErrNoData
	}
	i, err := t.column(name, KindTime)
	if err != nil {
		return time.Time{}, err
	}
	v, _ := t.rows[row][i].(time.Time)
	return v, nil
}

func (t *Table) Float(name string, row int) (float64, error) {
	if row < 0 || row >= len(t.rows) {
		return 0, ErrNoData
	}
	i, err := t.column(name, KindFloat)
	if err != nil {
		return 0, err
	}
	v, ok := t.rows[row][i].(float64)
	if !ok {
		return math.NaN(), nil
	}
	return v, nil
}

// scanTable reads every row, decoding declared columns by kind. Columns the query
// does not declare are inferred from the first value the driver hands back.
func scanTable(rows *sql.Rows, declared []Column) (*Table, error) {
	names, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	kinds := make(map[string]Kind, len(declared))
	for _, c := range declared {
		kinds[c.Name] = c.Kind
	}

	columns := make([]Column, len(names))
	known := make([]bool, len(names))
	for i, n := range names {
		n = strings.ToLower(n)
		columns[i].Name = n
		if k, ok := kinds[n]; ok {
			columns[i].Kind = k
			known[i] = true
		}
	}

	var out [][]any
	raw := make([]any, len(names))
	ptrs := make([]any, len(names))
	for i := range raw {
		ptrs[i] = &raw[i]
	}

	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make([]any, len(names))
		for i, v := range raw {
			if !known[i] && v != nil {
				if _, ok := v.(time.Time); ok {
					columns[i].Kind = KindTime
				}
				known[i] = true
			}
			switch columns[i].Kind {
			case KindTime:
				tv, err := toTime(v)
				if err != nil {
					return nil, fmt.Errorf("column %q: %w", columns[i].Name, err)
				}
				row[i] = tv
			default:
				fv, err := toFloat(v)
				if err != nil {
					return nil, fmt.Errorf("column %q: %w", columns[i].Name, err)
				}
				row[i] = fv
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return NewTable(columns, out), nil
}

var timeLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999 -0700 MST",
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04",
	"2006-01-02",
}

func toTime(v any) (time.Time, error) {
	switch x := v.(type) {
	case nil:
		return time.Time{}, nil
	case time.Time:
		return x.UTC(), nil
	case []byte:
		return parseTime(string(x))
	case string:
		return parseTime(x)
	}
	return time.Time{}, fmt.Errorf("cannot decode %T as time", v)
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised time %q", s)
}

func toFloat(v any) (float64, error) {
	switch x := v.(type) {
	case nil:
		return math.NaN(), nil
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case int32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case []byte:
		return strconv.ParseFloat(strings.TrimSpace(string(x)), 64)
	case string:
		return strconv.ParseFloat(strings.TrimSpace(x), 64)
	}
	return 0, fmt.Errorf("cannot decode %T as float", v)
}
