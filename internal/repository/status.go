package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
)

// transition performs a guarded status update: the row identified by id in
// table moves to status `to` only if it currently holds one of `from`.  It
// returns ErrNotFound when the row does not exist and ErrConflict when it
// exists in another state.  table is always a compile-time constant.
func transition(ctx context.Context, db *sql.DB, table, id, to string, from ...string) error {
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(from)), ",")
	q := `UPDATE ` + table + ` SET status = ?, updated_at = CURRENT_TIMESTAMP
	      WHERE id = ? AND status IN (` + placeholders + `)`

	args := make([]any, 0, len(from)+2)
	args = append(args, to, id)
	for _, f := range from {
		args = append(args, f)
	}
	res, err := db.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}

	var current string
	err = db.QueryRowContext(ctx, `SELECT status FROM `+table+` WHERE id = ?`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return ErrConflict
}
