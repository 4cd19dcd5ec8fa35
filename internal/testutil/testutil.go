// Package testutil opens migrated in-memory databases for tests.
package testutil

import (
	"context"
	"io"
	"log/slog"
	"testing"

	dbfs "github.com/garnizeh/leadscout/db"
	"github.com/garnizeh/leadscout/internal/db"
	"github.com/garnizeh/leadscout/internal/models"
	"github.com/garnizeh/leadscout/internal/repository/sqlite"
)

// Logger discards output; tests assert on behaviour, not log lines.
func Logger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// NewDB returns a private, fully migrated in-memory database closed at test end.
func NewDB(t testing.TB) *db.DB {
	t.Helper()
	ctx := context.Background()
	d, err := db.New(ctx, ":memory:", Logger())
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	if err := db.Migrate(ctx, d, dbfs.Migrations, dbfs.SeedFiles); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return d
}

// NewRepo returns a repository over a fresh database.
func NewRepo(t testing.TB) *sqlite.SQLiteRepo {
	t.Helper()
	return sqlite.New(NewDB(t), Logger())
}

// CreateUser inserts an enabled user with the given email.
func CreateUser(t testing.TB, repo *sqlite.SQLiteRepo, email string) *models.User {
	t.Helper()
	u := &models.User{Name: "Test User", Email: email, PasswordHash: "hash", Role: "client", Enabled: true}
	if _, err := repo.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}
