package repositories

import (
	"context"
	"database/sql"
	"fmt"
)

// SQLExecutor позволяет выполнять запросы как на *sql.DB, так и внутри *sql.Tx.
type SQLExecutor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func affectedRows(result sql.Result) (int64, error) {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check affected rows: %w", err)
	}
	return rowsAffected, nil
}

// whereBuilder накапливает условия вида "col = $n" в порядке добавления.
type whereBuilder struct {
	clauses []string
	args    []interface{}
}

func (b *whereBuilder) add(expr string, value interface{}) {
	b.args = append(b.args, value)
	b.clauses = append(b.clauses, fmt.Sprintf(expr, len(b.args)))
}

func (b *whereBuilder) sql() string {
	query := " WHERE 1=1"
	for _, c := range b.clauses {
		query += " AND " + c
	}
	return query
}

func (b *whereBuilder) empty() bool {
	return len(b.clauses) == 0
}
