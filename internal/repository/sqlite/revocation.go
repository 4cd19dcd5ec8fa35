package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// RevokeUserTokens records the instant before which the user's tokens are invalid.
// Stored with nanosecond precision so a login right after logout stays valid.
func (r *SQLiteRepo) RevokeUserTokens(ctx context.Context, userID int64, at time.Time) error {
	_, err := r.conn.Exec(ctx, `INSERT INTO token_revocations (user_id, revoked_at) VALUES (?, ?) ON CONFLICT(user_id) DO UPDATE SET revoked_at = excluded.revoked_at`, userID, at.UnixNano())
	return mapErr("revoke user tokens", err)
}

func (r *SQLiteRepo) GetUserRevocation(ctx context.Context, userID int64) (*time.Time, error) {
	var v int64
	if err := r.conn.QueryRow(ctx, `SELECT revoked_at FROM token_revocations WHERE user_id = ?`, userID).Scan(&v); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	t := time.Unix(0, v).UTC()
	return &t, nil
}
