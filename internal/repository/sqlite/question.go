package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/garnizeh/leadscout/internal/models"
)

const questionSelect = `SELECT q.id, q.project_type_id, qt.name, q.text, q.description, q.enabled
	FROM questions q
	JOIN question_types qt ON qt.id = q.question_type_id`

func scanQuestion(row rowScanner) (*models.Question, error) {
	var q models.Question
	var enabled int
	if err := row.Scan(&q.ID, &q.ProjectTypeID, &q.QuestionType, &q.Text, &q.Description, &enabled); err != nil {
		return nil, err
	}
	q.Enabled = enabled == 1
	return &q, nil
}

// ListQuestionsByProjectType returns enabled questions in presentation order.
func (r *SQLiteRepo) ListQuestionsByProjectType(ctx context.Context, projectTypeID int64) ([]models.Question, error) {
	rows, err := r.conn.QueryRows(ctx, questionSelect+` WHERE q.project_type_id = ? AND q.enabled = 1 ORDER BY q.id`, projectTypeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Question{}
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *q)
	}
	return out, rows.Err()
}

func (r *SQLiteRepo) GetQuestion(ctx context.Context, id int64) (*models.Question, error) {
	q, err := scanQuestion(r.conn.QueryRow(ctx, questionSelect+` WHERE q.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return q, err
}

func (r *SQLiteRepo) UpsertAnswer(ctx context.Context, a *models.Answer) (int64, error) {
	if a == nil {
		return 0, fmt.Errorf("answer is nil")
	}
	ts := now()
	if _, err := r.conn.Exec(ctx, `INSERT INTO answers (user_id, question_id, project_id, text, created, updated) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, question_id, project_id) DO UPDATE SET text = excluded.text, updated = excluded.updated`,
		a.UserID, a.QuestionID, a.ProjectID, a.Text, ts, ts); err != nil {
		return 0, mapErr("upsert answer", err)
	}
	var id int64
	if err := r.conn.QueryRow(ctx, `SELECT id FROM answers WHERE user_id = ? AND question_id = ? AND project_id = ?`, a.UserID, a.QuestionID, a.ProjectID).Scan(&id); err != nil {
		return 0, err
	}
	a.ID = id
	return id, nil
}

func (r *SQLiteRepo) ListAnswers(ctx context.Context, userID, projectID int64) ([]models.Answer, error) {
	rows, err := r.conn.QueryRows(ctx, `SELECT id, user_id, question_id, project_id, text, created, updated FROM answers WHERE user_id = ? AND project_id = ? ORDER BY question_id`, userID, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Answer{}
	for rows.Next() {
		var a models.Answer
		var created, updated int64
		if err := rows.Scan(&a.ID, &a.UserID, &a.QuestionID, &a.ProjectID, &a.Text, &created, &updated); err != nil {
			return nil, err
		}
		a.Created = fromMs(created)
		a.Updated = fromMs(updated)
		out = append(out, a)
	}
	return out, rows.Err()
}
