package db

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"
)

// Migrate applies every pending SQL file under migrations/ in lexical order,
// tracking applied versions in schema_migrations, then seeds JSON schemas and
// prompt templates from seedFS. Seeds never overwrite rows edited at runtime.
func Migrate(ctx context.Context, d *DB, migrationFS fs.FS, seedFS fs.FS) error {
	if _, err := d.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (version TEXT PRIMARY KEY, applied INTEGER NOT NULL)`); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}

	files, err := listFiles(migrationFS, "migrations", ".sql")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	for _, fname := range files {
		version := strings.TrimSuffix(fname, path.Ext(fname))

		var count int
		if err := d.QueryRow(ctx, `SELECT COUNT(1) FROM schema_migrations WHERE version = ?`, version).Scan(&count); err != nil {
			return fmt.Errorf("scan migration applied count: %w", err)
		}
		if count > 0 {
			continue
		}

		b, err := fs.ReadFile(migrationFS, path.Join("migrations", fname))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", fname, err)
		}
		if _, err := d.Exec(ctx, string(b)); err != nil {
			return fmt.Errorf("exec migration %s: %w", fname, err)
		}
		if _, err := d.Exec(ctx, `INSERT INTO schema_migrations (version, applied) VALUES (?, ?)`, version, time.Now().UTC().UnixMilli()); err != nil {
			return fmt.Errorf("record migration %s: %w", fname, err)
		}
		d.logger.Info("db: migration applied", "version", version)
	}

	if seedFS == nil {
		return nil
	}
	if err := seedSchemas(ctx, d, seedFS); err != nil {
		return err
	}
	return seedTemplates(ctx, d, seedFS)
}

// seed/schemas/<name>.<version>.json
func seedSchemas(ctx context.Context, d *DB, seedFS fs.FS) error {
	files, err := listFiles(seedFS, "seed/schemas", ".json")
	if err != nil {
		return nil
	}
	now := time.Now().UTC().UnixMilli()
	for _, fname := range files {
		name, version, ok := splitSeedName(fname, ".json")
		if !ok {
			return fmt.Errorf("seed schema %s: expected <name>.<version>.json", fname)
		}
		b, err := fs.ReadFile(seedFS, path.Join("seed/schemas", fname))
		if err != nil {
			return fmt.Errorf("read seed schema %s: %w", fname, err)
		}
		if _, err := d.Exec(ctx, `INSERT INTO ai_schemas (name, version, description, schema_json, created, updated) VALUES (?, ?, ?, ?, ?, ?) ON CONFLICT(name, version) DO NOTHING`,
			name, version, "seeded "+name+" schema", string(b), now, now); err != nil {
			return fmt.Errorf("seed schema %s: %w", fname, err)
		}
	}
	return nil
}

// seed/templates/<name>.<version>.txt
func seedTemplates(ctx context.Context, d *DB, seedFS fs.FS) error {
	files, err := listFiles(seedFS, "seed/templates", ".txt")
	if err != nil {
		return nil
	}
	now := time.Now().UTC().UnixMilli()
	for _, fname := range files {
		name, version, ok := splitSeedName(fname, ".txt")
		if !ok {
			return fmt.Errorf("seed template %s: expected <name>.<version>.txt", fname)
		}
		b, err := fs.ReadFile(seedFS, path.Join("seed/templates", fname))
		if err != nil {
			return fmt.Errorf("read seed template %s: %w", fname, err)
		}
		if _, err := d.Exec(ctx, `INSERT INTO ai_templates (name, version, template_text, schema_name, metadata, created, updated) VALUES (?, ?, ?, NULL, ?, ?, ?) ON CONFLICT(name, version) DO NOTHING`,
			name, version, string(b), `{"owner":"system"}`, now, now); err != nil {
			return fmt.Errorf("seed template %s: %w", fname, err)
		}
	}
	return nil
}

func listFiles(fsys fs.FS, dir, ext string) ([]string, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, err
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasSuffix(strings.ToLower(e.Name()), ext) {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

func splitSeedName(fname, ext string) (name, version string, ok bool) {
	base := strings.TrimSuffix(fname, ext)
	i := strings.LastIndex(base, ".")
	if i <= 0 || i == len(base)-1 {
		return "", "", false
	}
	return base[:i], base[i+1:], true
}
