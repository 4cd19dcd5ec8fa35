package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/garnizeh/leadscout/internal/models"
)

func (r *SQLiteRepo) ListProjectTypes(ctx context.Context) ([]models.ProjectType, error) {
	rows, err := r.conn.QueryRows(ctx, `SELECT id, name FROM project_types ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.ProjectType{}
	for rows.Next() {
		var pt models.ProjectType
		if err := rows.Scan(&pt.ID, &pt.Name); err != nil {
			return nil, err
		}
		out = append(out, pt)
	}
	return out, rows.Err()
}

func (r *SQLiteRepo) ListStatuses(ctx context.Context) ([]models.Status, error) {
	rows, err := r.conn.QueryRows(ctx, `SELECT id, name FROM statuses ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Status{}
	for rows.Next() {
		var s models.Status
		if err := rows.Scan(&s.ID, &s.Name); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *SQLiteRepo) GetProjectType(ctx context.Context, id int64) (*models.ProjectType, error) {
	var pt models.ProjectType
	if err := r.conn.QueryRow(ctx, `SELECT id, name FROM project_types WHERE id = ?`, id).Scan(&pt.ID, &pt.Name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &pt, nil
}

func (r *SQLiteRepo) GetStatus(ctx context.Context, id int64) (*models.Status, error) {
	var s models.Status
	if err := r.conn.QueryRow(ctx, `SELECT id, name FROM statuses WHERE id = ?`, id).Scan(&s.ID, &s.Name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

func (r *SQLiteRepo) GetStatusByName(ctx context.Context, name string) (*models.Status, error) {
	var s models.Status
	if err := r.conn.QueryRow(ctx, `SELECT id, name FROM statuses WHERE name = ?`, name).Scan(&s.ID, &s.Name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}
