package sqlite

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/garnizeh/leadscout/internal/db"
	"github.com/garnizeh/leadscout/pkg/repository"
)

// SQLiteRepo implements repository interfaces using the internal DB wrapper.
type SQLiteRepo struct {
	conn   *db.DB
	logger *slog.Logger
}

// Ensure SQLiteRepo implements the public interfaces.
var (
	_ repository.UserRepo                = (*SQLiteRepo)(nil)
	_ repository.PendingRegistrationRepo = (*SQLiteRepo)(nil)
	_ repository.RevocationRepo          = (*SQLiteRepo)(nil)
	_ repository.CatalogRepo             = (*SQLiteRepo)(nil)
	_ repository.ProjectRepo             = (*SQLiteRepo)(nil)
	_ repository.QuestionRepo            = (*SQLiteRepo)(nil)
	_ repository.AIQuestionRepo          = (*SQLiteRepo)(nil)
	_ repository.ReportRepo              = (*SQLiteRepo)(nil)
	_ repository.CredentialRepo          = (*SQLiteRepo)(nil)
	_ repository.ScrapeJobRepo           = (*SQLiteRepo)(nil)
	_ repository.QueueRepo               = (*SQLiteRepo)(nil)
	_ repository.SchemaRepo              = (*SQLiteRepo)(nil)
	_ repository.TemplateRepo            = (*SQLiteRepo)(nil)
)

func New(conn *db.DB, logger *slog.Logger) *SQLiteRepo {
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLiteRepo{conn: conn, logger: logger}
}

func now() int64 {
	return time.Now().UTC().UnixMilli()
}

func ms(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMs(v int64) time.Time {
	return time.UnixMilli(v).UTC()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// mapErr translates driver constraint failures into repository errors.
func mapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return fmt.Errorf("%s: %w", op, repository.ErrDuplicate)
	}
	return fmt.Errorf("%s: %w", op, err)
}
