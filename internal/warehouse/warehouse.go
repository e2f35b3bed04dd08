// Package warehouse defines the execution contract for generated SQL
// against the analytics warehouse. SQL is opaque text here; the
// warehouse is the only component that interprets it.
package warehouse

import (
	"context"
	"fmt"
)

// ExecutionError wraps any connectivity or SQL failure from the
// warehouse. Failures are never reported as empty results.
type ExecutionError struct {
	SQL string
	Err error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("warehouse execution failed: %v", e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// Result is a tabular query result. Column order matches Rows cell order.
type Result struct {
	Columns []string
	Rows    [][]any
}

func (r Result) RowCount() int {
	return len(r.Rows)
}

func (r Result) ColumnCount() int {
	return len(r.Columns)
}

// Records converts rows into ordered column->value maps, the shape the
// HTTP layer and prompts consume.
func (r Result) Records() []map[string]any {
	records := make([]map[string]any, 0, len(r.Rows))
	for _, row := range r.Rows {
		record := make(map[string]any, len(r.Columns))
		for i, column := range r.Columns {
			if i < len(row) {
				record[column] = row[i]
			}
		}
		records = append(records, record)
	}
	return records
}

// Head returns a copy limited to the first n rows.
func (r Result) Head(n int) Result {
	if n < 0 || n >= len(r.Rows) {
		return r
	}
	return Result{Columns: r.Columns, Rows: r.Rows[:n]}
}

// IsVacuous reports whether the result carries no information: zero
// rows, or every cell nil or numeric zero. An aggregate returning
// all-zero counts is treated the same as no rows at all.
func (r Result) IsVacuous() bool {
	if len(r.Rows) == 0 {
		return true
	}
	for _, row := range r.Rows {
		for _, cell := range row {
			if !nilOrZero(cell) {
				return false
			}
		}
	}
	return true
}

func nilOrZero(cell any) bool {
	switch v := cell.(type) {
	case nil:
		return true
	case int:
		return v == 0
	case int8:
		return v == 0
	case int16:
		return v == 0
	case int32:
		return v == 0
	case int64:
		return v == 0
	case uint:
		return v == 0
	case uint8:
		return v == 0
	case uint16:
		return v == 0
	case uint32:
		return v == 0
	case uint64:
		return v == 0
	case float32:
		return v == 0
	case float64:
		return v == 0
	default:
		return false
	}
}

// Executor runs read-only SQL against the warehouse.
type Executor interface {
	ExecuteQuery(ctx context.Context, sqlText string) (Result, error)
}
