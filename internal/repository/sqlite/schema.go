package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/garnizeh/leadscout/internal/models"
)

// CreateSchema inserts or updates a schema by (name, version).
func (r *SQLiteRepo) CreateSchema(ctx context.Context, name, version, description, schemaJSON string) (int64, error) {
	ts := now()
	res, err := r.conn.Exec(ctx, `INSERT INTO ai_schemas (name, version, description, schema_json, created, updated) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(name, version) DO UPDATE SET description = excluded.description, schema_json = excluded.schema_json, updated = excluded.updated`,
		name, version, description, schemaJSON, ts, ts)
	if err != nil {
		return 0, mapErr("upsert schema", err)
	}
	return res.LastInsertId()
}

func (r *SQLiteRepo) GetSchema(ctx context.Context, name, version string) (*models.Schema, error) {
	row := r.conn.QueryRow(ctx, `SELECT id, name, version, description, schema_json, created, updated FROM ai_schemas WHERE name = ? AND version = ?`, name, version)
	var s models.Schema
	if err := row.Scan(&s.ID, &s.Name, &s.Version, &s.Description, &s.SchemaJSON, &s.Created, &s.Updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

func (r *SQLiteRepo) ListSchemas(ctx context.Context) ([]models.Schema, error) {
	rows, err := r.conn.QueryRows(ctx, `SELECT id, name, version, description, schema_json, created, updated FROM ai_schemas ORDER BY name, version`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Schema{}
	for rows.Next() {
		var s models.Schema
		if err := rows.Scan(&s.ID, &s.Name, &s.Version, &s.Description, &s.SchemaJSON, &s.Created, &s.Updated); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *SQLiteRepo) DeleteSchema(ctx context.Context, name, version string) error {
	_, err := r.conn.Exec(ctx, `DELETE FROM ai_schemas WHERE name = ? AND version = ?`, name, version)
	return err
}
