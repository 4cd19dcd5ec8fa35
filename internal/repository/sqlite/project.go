package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/garnizeh/leadscout/internal/models"
)

const projectSelect = `SELECT p.id, p.user_id, p.project_type_id, pt.name, p.status_id, s.name, p.name, p.description, p.enabled, p.created, p.updated
	FROM projects p
	JOIN project_types pt ON pt.id = p.project_type_id
	JOIN statuses s ON s.id = p.status_id`

func scanProject(row rowScanner) (*models.Project, error) {
	var p models.Project
	var enabled int
	var created, updated int64
	if err := row.Scan(&p.ID, &p.UserID, &p.ProjectTypeID, &p.ProjectType, &p.StatusID, &p.Status, &p.Name, &p.Description, &enabled, &created, &updated); err != nil {
		return nil, err
	}
	p.Enabled = enabled == 1
	p.Created = fromMs(created)
	p.Updated = fromMs(updated)
	return &p, nil
}

func (r *SQLiteRepo) CreateProject(ctx context.Context, p *models.Project) (int64, error) {
	if p == nil {
		return 0, fmt.Errorf("project is nil")
	}
	ts := now()
	res, err := r.conn.Exec(ctx, `INSERT INTO projects (user_id, project_type_id, status_id, name, description, enabled, created, updated) VALUES (?, ?, ?, ?, ?, 1, ?, ?)`,
		p.UserID, p.ProjectTypeID, p.StatusID, p.Name, p.Description, ts, ts)
	if err != nil {
		return 0, mapErr("insert project", err)
	}
	return res.LastInsertId()
}

func (r *SQLiteRepo) GetProject(ctx context.Context, id int64) (*models.Project, error) {
	p, err := scanProject(r.conn.QueryRow(ctx, projectSelect+` WHERE p.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

// ListProjectsByUser returns the user's enabled projects, newest first.
func (r *SQLiteRepo) ListProjectsByUser(ctx context.Context, userID int64) ([]models.Project, error) {
	rows, err := r.conn.QueryRows(ctx, projectSelect+` WHERE p.user_id = ? AND p.enabled = 1 ORDER BY p.created DESC, p.id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (r *SQLiteRepo) DisableProject(ctx context.Context, id int64) error {
	_, err := r.conn.Exec(ctx, `UPDATE projects SET enabled = 0, updated = ? WHERE id = ?`, now(), id)
	return err
}
