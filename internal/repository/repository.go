package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/amirk1998/daybook/pkg/errors"
)

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// execer lets statements run either on the pool or inside a transaction.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// requireAffected turns a zero-row UPDATE or DELETE into ErrRecordNotFound,
// which is how ownership mismatches surface as well.
func requireAffected(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return errors.ErrRecordNotFound
	}
	return nil
}

// nullableInt binds an optional filter so a fixed statement can test it
// with "? IS NULL OR col = ?".
func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}
