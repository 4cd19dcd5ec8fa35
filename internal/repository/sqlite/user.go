package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/garnizeh/leadscout/internal/models"
)

const userColumns = `id, name, email, password_hash, mobile_number, country, company_name, role, linkedin_username, enabled, created, updated`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var u models.User
	var enabled int
	var created, updated int64
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.MobileNumber, &u.Country, &u.CompanyName, &u.Role, &u.LinkedinUsername, &enabled, &created, &updated); err != nil {
		return nil, err
	}
	u.Enabled = enabled == 1
	u.Created = fromMs(created)
	u.Updated = fromMs(updated)
	return &u, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertUser(ctx context.Context, ex execer, u *models.User) (int64, error) {
	ts := now()
	res, err := ex.ExecContext(ctx, `INSERT INTO users (name, email, password_hash, mobile_number, country, company_name, role, linkedin_username, enabled, created, updated) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.Name, strings.ToLower(u.Email), u.PasswordHash, u.MobileNumber, u.Country, u.CompanyName, u.Role, u.LinkedinUsername, boolInt(u.Enabled), ts, ts)
	if err != nil {
		return 0, mapErr("insert user", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	u.ID = id
	u.Email = strings.ToLower(u.Email)
	u.Created = fromMs(ts)
	u.Updated = fromMs(ts)
	return id, nil
}

func (r *SQLiteRepo) CreateUser(ctx context.Context, u *models.User) (int64, error) {
	if u == nil {
		return 0, fmt.Errorf("user is nil")
	}
	return insertUser(ctx, r.conn.GetConn(), u)
}

func (r *SQLiteRepo) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	u, err := scanUser(r.conn.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return u, err
}

// GetUserByEmail matches case-insensitively.
func (r *SQLiteRepo) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	u, err := scanUser(r.conn.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, strings.ToLower(email)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return u, err
}

func (r *SQLiteRepo) UpdateUser(ctx context.Context, u *models.User) error {
	if u == nil {
		return fmt.Errorf("user is nil")
	}
	_, err := r.conn.Exec(ctx, `UPDATE users SET name = ?, email = ?, password_hash = ?, mobile_number = ?, country = ?, company_name = ?, role = ?, linkedin_username = ?, enabled = ?, updated = ? WHERE id = ?`,
		u.Name, strings.ToLower(u.Email), u.PasswordHash, u.MobileNumber, u.Country, u.CompanyName, u.Role, u.LinkedinUsername, boolInt(u.Enabled), now(), u.ID)
	return mapErr("update user", err)
}
