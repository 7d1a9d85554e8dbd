package sqlite

import (
	"context"
	"database/sql"
	"strings"
)

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// placeholder returns a placeholder for SQLite (uses ?)
func placeholder(n int) string {
	return "?"
}

// placeholders returns n placeholders for SQLite
func placeholders(n int) string {
	list := []string{}
	for i := 0; i < n; i++ {
		list = append(list, placeholder(i+1))
	}
	return strings.Join(list, ", ")
}

// touch appends an updated_ts assignment, using now() when ts is nil.
func touch(set []string, args []any, ts *int64) ([]string, []any) {
	if ts != nil {
		return append(set, "updated_ts = "+placeholder(len(args)+1)), append(args, *ts)
	}
	return append(set, "updated_ts = strftime('%s', 'now')"), args
}
