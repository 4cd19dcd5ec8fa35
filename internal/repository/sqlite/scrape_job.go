package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/garnizeh/leadscout/internal/models"
)

func scanScrapeJob(row rowScanner) (*models.ScrapeJob, error) {
	var j models.ScrapeJob
	var input string
	var created, updated int64
	if err := row.Scan(&j.ID, &input, &j.Status, &created, &updated); err != nil {
		return nil, err
	}
	j.Input = json.RawMessage(input)
	j.Created = fromMs(created)
	j.Updated = fromMs(updated)
	return &j, nil
}

func (r *SQLiteRepo) CreateScrapeJob(ctx context.Context, j *models.ScrapeJob, task func(jobID int64) (*models.BackgroundJob, error)) (int64, error) {
	if j == nil {
		return 0, fmt.Errorf("scrape job is nil")
	}
	if j.Status == "" {
		j.Status = "pending"
	}
	ts := now()
	err := r.conn.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `INSERT INTO scrape_jobs (input_json, status, created, updated) VALUES (?, ?, ?, ?)`, string(j.Input), j.Status, ts, ts)
		if err != nil {
			return mapErr("insert scrape job", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		j.ID = id
		if task == nil {
			return nil
		}
		bj, err := task(id)
		if err != nil {
			return fmt.Errorf("build task for scrape job %d: %w", id, err)
		}
		if _, err := enqueue(ctx, tx, bj); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	j.Created = fromMs(ts)
	j.Updated = fromMs(ts)
	return j.ID, nil
}

func (r *SQLiteRepo) GetScrapeJob(ctx context.Context, id int64) (*models.ScrapeJob, error) {
	j, err := scanScrapeJob(r.conn.QueryRow(ctx, `SELECT id, input_json, status, created, updated FROM scrape_jobs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return j, err
}

func (r *SQLiteRepo) ListScrapeJobs(ctx context.Context, status string) ([]models.ScrapeJob, error) {
	q := `SELECT id, input_json, status, created, updated FROM scrape_jobs`
	var args []any
	if status != "" {
		q += ` WHERE status = ?`
		args = append(args, status)
	}
	q += ` ORDER BY created DESC, id DESC`

	rows, err := r.conn.QueryRows(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.ScrapeJob{}
	for rows.Next() {
		j, err := scanScrapeJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *j)
	}
	return out, rows.Err()
}

func (r *SQLiteRepo) TransitionScrapeJob(ctx context.Context, id int64, to string, from ...string) (bool, error) {
	if len(from) == 0 {
		return false, fmt.Errorf("transition scrape job %d: no source status", id)
	}
	args := []any{to, now(), id}
	for _, f := range from {
		args = append(args, f)
	}
	q := `UPDATE scrape_jobs SET status = ?, updated = ? WHERE id = ? AND status IN (?` + strings.Repeat(", ?", len(from)-1) + `)`
	res, err := r.conn.Exec(ctx, q, args...)
	if err != nil {
		return false, fmt.Errorf("transition scrape job %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *SQLiteRepo) CompleteScrapeJob(ctx context.Context, id int64, result []byte) (bool, error) {
	completed := false
	err := r.conn.WithTx(ctx, func(tx *sql.Tx) error {
		ts := now()
		res, err := tx.ExecContext(ctx, `UPDATE scrape_jobs SET status = 'completed', updated = ? WHERE id = ? AND status = 'in_progress'`, ts, id)
		if err != nil {
			return fmt.Errorf("complete scrape job %d: %w", id, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO scrape_results (job_id, result_json, created) VALUES (?, ?, ?)`, id, string(result), ts); err != nil {
			return fmt.Errorf("insert scrape result for job %d: %w", id, err)
		}
		completed = true
		return nil
	})
	return completed, err
}

func (r *SQLiteRepo) AppendScrapeLog(ctx context.Context, l *models.ScrapeLog) (int64, error) {
	if l == nil {
		return 0, fmt.Errorf("scrape log is nil")
	}
	if l.Type == "" {
		l.Type = models.LogInfo
	}
	ts := now()
	res, err := r.conn.Exec(ctx, `INSERT INTO scrape_logs (job_id, log_message, log_type, created) VALUES (?, ?, ?, ?)`, l.JobID, l.Message, l.Type, ts)
	if err != nil {
		return 0, mapErr("insert scrape log", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	l.ID = id
	l.Created = fromMs(ts)
	return id, nil
}

func (r *SQLiteRepo) ListScrapeResults(ctx context.Context, jobID int64) ([]models.ScrapeResult, error) {
	rows, err := r.conn.QueryRows(ctx, `SELECT id, job_id, result_json, created FROM scrape_results WHERE job_id = ? ORDER BY id`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.ScrapeResult{}
	for rows.Next() {
		var res models.ScrapeResult
		var data string
		var created int64
		if err := rows.Scan(&res.ID, &res.JobID, &data, &created); err != nil {
			return nil, err
		}
		res.Data = json.RawMessage(data)
		res.Created = fromMs(created)
		out = append(out, res)
	}
	return out, rows.Err()
}

// ListScrapeLogs returns the job's logs oldest first.
func (r *SQLiteRepo) ListScrapeLogs(ctx context.Context, jobID int64) ([]models.ScrapeLog, error) {
	rows, err := r.conn.QueryRows(ctx, `SELECT id, job_id, log_message, log_type, created FROM scrape_logs WHERE job_id = ? ORDER BY created ASC, id ASC`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.ScrapeLog{}
	for rows.Next() {
		var l models.ScrapeLog
		var created int64
		if err := rows.Scan(&l.ID, &l.JobID, &l.Message, &l.Type, &created); err != nil {
			return nil, err
		}
		l.Created = fromMs(created)
		out = append(out, l)
	}
	return out, rows.Err()
}
