package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/garnizeh/leadscout/internal/models"
)

func (r *SQLiteRepo) CreateReport(ctx context.Context, rep *models.ProjectReport) (int64, error) {
	if rep == nil {
		return 0, fmt.Errorf("report is nil")
	}
	ts := now()
	res, err := r.conn.Exec(ctx, `INSERT INTO project_reports (project_id, report, created) VALUES (?, ?, ?)`, rep.ProjectID, rep.Report, ts)
	if err != nil {
		return 0, mapErr("insert report", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	rep.ID = id
	rep.Created = fromMs(ts)
	return id, nil
}

func (r *SQLiteRepo) LatestReport(ctx context.Context, projectID int64) (*models.ProjectReport, error) {
	var rep models.ProjectReport
	var created int64
	err := r.conn.QueryRow(ctx, `SELECT id, project_id, report, created FROM project_reports WHERE project_id = ? ORDER BY id DESC LIMIT 1`, projectID).
		Scan(&rep.ID, &rep.ProjectID, &rep.Report, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	rep.Created = fromMs(created)
	return &rep, nil
}
