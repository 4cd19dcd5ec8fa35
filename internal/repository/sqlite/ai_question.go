package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/garnizeh/leadscout/internal/models"
)

func (r *SQLiteRepo) CreateAIQuestion(ctx context.Context, q *models.AIQuestion) (int64, error) {
	if q == nil {
		return 0, fmt.Errorf("ai question is nil")
	}

	ts := now()
	res, err := r.conn.Exec(ctx, `INSERT INTO ai_questions (project_id, text, description, created) VALUES (?, ?, ?, ?)`, q.ProjectID, q.Text, q.Description, ts)
	if err != nil {
		return 0, mapErr("insert ai question", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	q.ID = id
	q.Created = fromMs(ts)
	return id, nil
}

func (r *SQLiteRepo) GetAIQuestion(ctx context.Context, id int64) (*models.AIQuestion, error) {
	var q models.AIQuestion
	var created int64
	if err := r.conn.QueryRow(ctx, `SELECT id, project_id, text, description, created FROM ai_questions WHERE id = ?`, id).Scan(&q.ID, &q.ProjectID, &q.Text, &q.Description, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	q.Created = fromMs(created)
	return &q, nil
}

func (r *SQLiteRepo) ListAIQuestionsByProject(ctx context.Context, projectID int64) ([]models.AIQuestion, error) {
	rows, err := r.conn.QueryRows(ctx, `SELECT id, project_id, text, description, created FROM ai_questions WHERE project_id = ? ORDER BY id`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.AIQuestion{}
	for rows.Next() {
		var q models.AIQuestion
		var created int64
		if err := rows.Scan(&q.ID, &q.ProjectID, &q.Text, &q.Description, &created); err != nil {
			return nil, err
		}
		q.Created = fromMs(created)
		out = append(out, q)
	}

	return out, rows.Err()
}

func (r *SQLiteRepo) UpsertAIAnswer(ctx context.Context, a *models.AIAnswer) (int64, error) {
	if a == nil {
		return 0, fmt.Errorf("ai answer is nil")
	}
	ts := now()
	if _, err := r.conn.Exec(ctx, `INSERT INTO ai_answers (user_id, ai_question_id, text, created, updated) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id, ai_question_id) DO UPDATE SET text = excluded.text, updated = excluded.updated`,
		a.UserID, a.AIQuestionID, a.Text, ts, ts); err != nil {
		return 0, mapErr("upsert ai answer", err)
	}
	var id int64
	if err := r.conn.QueryRow(ctx, `SELECT id FROM ai_answers WHERE user_id = ? AND ai_question_id = ?`, a.UserID, a.AIQuestionID).Scan(&id); err != nil {
		return 0, err
	}
	a.ID = id
	return id, nil
}

// ListAIAnswers returns the user's answers to the project's AI questions.
func (r *SQLiteRepo) ListAIAnswers(ctx context.Context, userID, projectID int64) ([]models.AIAnswer, error) {
	rows, err := r.conn.QueryRows(ctx, `SELECT a.id, a.user_id, a.ai_question_id, a.text, a.created, a.updated
		FROM ai_answers a JOIN ai_questions q ON q.id = a.ai_question_id
		WHERE a.user_id = ? AND q.project_id = ? ORDER BY a.ai_question_id`, userID, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.AIAnswer{}
	for rows.Next() {
		var a models.AIAnswer
		var created, updated int64
		if err := rows.Scan(&a.ID, &a.UserID, &a.AIQuestionID, &a.Text, &created, &updated); err != nil {
			return nil, err
		}
		a.Created = fromMs(created)
		a.Updated = fromMs(updated)
		out = append(out, a)
	}
	return out, rows.Err()
}
