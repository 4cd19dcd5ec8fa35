package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/garnizeh/leadscout/internal/models"
)

func (r *SQLiteRepo) UpsertPendingRegistration(ctx context.Context, p *models.PendingRegistration) error {
	if p == nil {
		return fmt.Errorf("pending registration is nil")
	}
	data, err := json.Marshal(p.SignupData)
	if err != nil {
		return fmt.Errorf("encode signup data: %w", err)
	}
	ts := now()
	_, err = r.conn.Exec(ctx, `INSERT INTO pending_registrations (email, otp, signup_data, expires_at, created, updated) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(email) DO UPDATE SET otp = excluded.otp, signup_data = excluded.signup_data, expires_at = excluded.expires_at, updated = excluded.updated`,
		strings.ToLower(p.Email), p.OTP, string(data), ms(p.ExpiresAt), ts, ts)
	return mapErr("upsert pending registration", err)
}

func (r *SQLiteRepo) GetPendingRegistration(ctx context.Context, email string) (*models.PendingRegistration, error) {
	row := r.conn.QueryRow(ctx, `SELECT email, otp, signup_data, expires_at, created, updated FROM pending_registrations WHERE email = ?`, strings.ToLower(email))
	var (
		p                         models.PendingRegistration
		data                      string
		expires, created, updated int64
	)
	if err := row.Scan(&p.Email, &p.OTP, &data, &expires, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if err := json.Unmarshal([]byte(data), &p.SignupData); err != nil {
		return nil, fmt.Errorf("decode signup data for %s: %w", p.Email, err)
	}
	p.ExpiresAt = fromMs(expires)
	p.Created = fromMs(created)
	p.Updated = fromMs(updated)
	return &p, nil
}

func (r *SQLiteRepo) UpdatePendingOTP(ctx context.Context, email, otp string, expiresAt time.Time) error {
	_, err := r.conn.Exec(ctx, `UPDATE pending_registrations SET otp = ?, expires_at = ?, updated = ? WHERE email = ?`, otp, ms(expiresAt), now(), strings.ToLower(email))
	return mapErr("update pending otp", err)
}

func (r *SQLiteRepo) DeletePendingRegistration(ctx context.Context, email string) error {
	_, err := r.conn.Exec(ctx, `DELETE FROM pending_registrations WHERE email = ?`, strings.ToLower(email))
	return err
}

func (r *SQLiteRepo) CompleteRegistration(ctx context.Context, email, otp string, u *models.User) (bool, error) {
	if u == nil {
		return false, fmt.Errorf("user is nil")
	}
	consumed := false
	err := r.conn.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM pending_registrations WHERE email = ? AND otp = ?`, strings.ToLower(email), otp)
		if err != nil {
			return fmt.Errorf("consume pending registration: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		if _, err := insertUser(ctx, tx, u); err != nil {
			return err
		}
		consumed = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return consumed, nil
}

func (r *SQLiteRepo) PurgeExpiredRegistrations(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.conn.Exec(ctx, `DELETE FROM pending_registrations WHERE expires_at < ?`, ms(before))
	if err != nil {
		return 0, fmt.Errorf("purge pending registrations: %w", err)
	}
	return res.RowsAffected()
}
