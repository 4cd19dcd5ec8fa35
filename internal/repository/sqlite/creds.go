package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/garnizeh/leadscout/internal/models"
)

func (r *SQLiteRepo) ListCredentials(ctx context.Context) ([]models.Credential, error) {
	rows, err := r.conn.QueryRows(ctx, `SELECT id, key, value, created, updated FROM upwork_creds ORDER BY key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Credential{}
	for rows.Next() {
		var c models.Credential
		var created, updated int64
		if err := rows.Scan(&c.ID, &c.Key, &c.Value, &created, &updated); err != nil {
			return nil, err
		}
		c.Created = fromMs(created)
		c.Updated = fromMs(updated)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *SQLiteRepo) UpsertCredential(ctx context.Context, key, value string) (*models.Credential, bool, error) {
	var created bool
	err := r.conn.WithTx(ctx, func(tx *sql.Tx) error {
		ts := now()
		res, err := tx.ExecContext(ctx, `UPDATE upwork_creds SET value = ?, updated = ? WHERE key = ?`, value, ts, key)
		if err != nil {
			return mapErr("update credential", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n > 0 {
			return nil
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO upwork_creds (key, value, created, updated) VALUES (?, ?, ?, ?)`, key, value, ts, ts); err != nil {
			return mapErr("insert credential", err)
		}
		created = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	var c models.Credential
	var cr, up int64
	if err := r.conn.QueryRow(ctx, `SELECT id, key, value, created, updated FROM upwork_creds WHERE key = ?`, key).Scan(&c.ID, &c.Key, &c.Value, &cr, &up); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, created, nil
		}
		return nil, created, err
	}
	c.Created = fromMs(cr)
	c.Updated = fromMs(up)
	return &c, created, nil
}

func (r *SQLiteRepo) DeleteCredential(ctx context.Context, key string) (bool, error) {
	res, err := r.conn.Exec(ctx, `DELETE FROM upwork_creds WHERE key = ?`, key)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}
