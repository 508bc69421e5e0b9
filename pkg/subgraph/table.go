package subgraph

import (
	"encoding/json"
	"strconv"
)

// Table is a flat query result. Column names are prefixed with the entity and
// joined with underscores along the field path (markets_name,
// marketDailySnapshots_market_inputToken_symbol, ...). Cells hold the decoded
// JSON scalar: string, json.Number, bool or nil.
type Table struct {
	Columns []string
	Rows    [][]any
}

// NewTable returns an empty table with the given columns.
func NewTable(columns ...string) *Table {
	cols := make([]string, len(columns))
	copy(cols, columns)
	return &Table{Columns: cols, Rows: [][]any{}}
}

// Len returns the number of rows; a nil table has none.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Index returns the position of a column or -1.
func (t *Table) Index(column string) int {
	if t == nil {
		return -1
	}
	for i, c := range t.Columns {
		if c == column {
			return i
		}
	}
	return -1
}

// Value returns the raw cell.
func (t *Table) Value(row int, column string) (any, bool) {
	idx := t.Index(column)
	if idx < 0 || row < 0 || row >= t.Len() || idx >= len(t.Rows[row]) {
		return nil, false
	}
	v := t.Rows[row][idx]
	return v, v != nil
}

// String returns the cell rendered as text. Null cells report false.
func (t *Table) String(row int, column string) (string, bool) {
	v, ok := t.Value(row, column)
	if !ok {
		return "", false
	}
	switch val := v.(type) {
	case string:
		return val, true
	case json.Number:
		return val.String(), true
	case bool:
		return strconv.FormatBool(val), true
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true
	default:
		return "", false
	}
}

// Clone returns a deep copy so callers can mutate rows freely.
func (t *Table) Clone() *Table {
	if t == nil {
		return nil
	}
	out := NewTable(t.Columns...)
	out.Rows = make([][]any, len(t.Rows))
	for i, row := range t.Rows {
		r := make([]any, len(row))
		copy(r, row)
		out.Rows[i] = r
	}
	return out
}

func (t *Table) appendRecords(records []map[string]any) {
	for _, rec := range records {
		row := make([]any, len(t.Columns))
		for i, col := range t.Columns {
			row[i] = rec[col]
		}
		t.Rows = append(t.Rows, row)
	}
}
