package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/growexx/Americana-Audit-trail-chatbot/internal/warehouse"
)

type Config struct {
	DSN          string
	QueryTimeout time.Duration
}

// Executor runs generated SQL against a Postgres warehouse. Each call
// checks out one pooled connection and returns it on every exit path.
type Executor struct {
	db      *sql.DB
	timeout time.Duration
}

func Open(ctx context.Context, cfg Config) (*Executor, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("warehouse dsn is required")
	}
	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open warehouse db: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping warehouse db: %w", err)
	}
	return NewExecutor(db, cfg.QueryTimeout), nil
}

func NewExecutor(db *sql.DB, timeout time.Duration) *Executor {
	return &Executor{db: db, timeout: timeout}
}

func (e *Executor) Close() error {
	return e.db.Close()
}

func (e *Executor) ExecuteQuery(ctx context.Context, sqlText string) (warehouse.Result, error) {
	if !isReadOnlySQL(sqlText) {
		return warehouse.Result{}, &warehouse.ExecutionError{SQL: sqlText, Err: fmt.Errorf("only SELECT/WITH statements are allowed")}
	}
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	conn, err := e.db.Conn(ctx)
	if err != nil {
		return warehouse.Result{}, &warehouse.ExecutionError{SQL: sqlText, Err: fmt.Errorf("acquire connection: %w", err)}
	}
	defer func() { _ = conn.Close() }()

	rows, err := conn.QueryContext(ctx, sqlText)
	if err != nil {
		return warehouse.Result{}, &warehouse.ExecutionError{SQL: sqlText, Err: err}
	}
	defer func() { _ = rows.Close() }()

	result, err := scanRows(rows)
	if err != nil {
		return warehouse.Result{}, &warehouse.ExecutionError{SQL: sqlText, Err: err}
	}
	return result, nil
}

func scanRows(rows *sql.Rows) (warehouse.Result, error) {
	columns, err := rows.Columns()
	if err != nil {
		return warehouse.Result{}, fmt.Errorf("read columns: %w", err)
	}

	result := warehouse.Result{Columns: columns, Rows: make([][]any, 0)}
	for rows.Next() {
		values := make([]any, len(columns))
		pointers := make([]any, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return warehouse.Result{}, fmt.Errorf("scan row: %w", err)
		}
		for i, value := range values {
			if raw, ok := value.([]byte); ok {
				values[i] = string(raw)
			}
		}
		result.Rows = append(result.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return warehouse.Result{}, fmt.Errorf("iterate rows: %w", err)
	}
	return result, nil
}

func isReadOnlySQL(sqlText string) bool {
	normalized := strings.ToLower(strings.TrimSpace(sqlText))
	return strings.HasPrefix(normalized, "select") || strings.HasPrefix(normalized, "with")
}
