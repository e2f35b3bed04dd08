// Package duckdb provides a local-file warehouse executor used by the
// dev and demo profiles, where standing up a Postgres warehouse is not
// worth the trouble.
package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/marcboeker/go-duckdb/v2"

	"github.com/growexx/Americana-Audit-trail-chatbot/internal/warehouse"
)

type Executor struct {
	Path    string
	Timeout time.Duration
}

func NewExecutor(path string, timeout time.Duration) *Executor {
	return &Executor{Path: path, Timeout: timeout}
}

// ExecuteQuery opens the database for the duration of one query. The
// handle is closed on every exit path so concurrent turns do not hold
// the file lock longer than necessary.
func (e *Executor) ExecuteQuery(ctx context.Context, sqlText string) (warehouse.Result, error) {
	if !isReadOnlySQL(sqlText) {
		return warehouse.Result{}, &warehouse.ExecutionError{SQL: sqlText, Err: fmt.Errorf("only SELECT/WITH statements are allowed")}
	}
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	db, err := sql.Open("duckdb", e.Path)
	if err != nil {
		return warehouse.Result{}, &warehouse.ExecutionError{SQL: sqlText, Err: fmt.Errorf("open duckdb: %w", err)}
	}
	defer func() { _ = db.Close() }()

	rows, err := db.QueryContext(ctx, sqlText)
	if err != nil {
		return warehouse.Result{}, &warehouse.ExecutionError{SQL: sqlText, Err: err}
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return warehouse.Result{}, &warehouse.ExecutionError{SQL: sqlText, Err: fmt.Errorf("read columns: %w", err)}
	}

	result := warehouse.Result{Columns: columns, Rows: make([][]any, 0)}
	for rows.Next() {
		values := make([]any, len(columns))
		pointers := make([]any, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return warehouse.Result{}, &warehouse.ExecutionError{SQL: sqlText, Err: fmt.Errorf("scan row: %w", err)}
		}
		result.Rows = append(result.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return warehouse.Result{}, &warehouse.ExecutionError{SQL: sqlText, Err: fmt.Errorf("iterate rows: %w", err)}
	}
	return result, nil
}

func isReadOnlySQL(sqlText string) bool {
	normalized := strings.ToLower(strings.TrimSpace(sqlText))
	return strings.HasPrefix(normalized, "select") || strings.HasPrefix(normalized, "with")
}
