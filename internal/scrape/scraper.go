package scrape

import (
	"context"
	"errors"

	"github.com/garnizeh/leadscout/internal/models"
)

var ErrScraperDisabled = errors.New("scraper is disabled")

// Progress receives debug lines that end up in the job's log.
type Progress interface {
	Debugf(ctx context.Context, format string, args ...any)
}

// Scraper collects job postings for a search. One call drives one browser
// session sequentially.
type Scraper interface {
	Scrape(ctx context.Context, in Input, progress Progress) ([]models.UpworkJob, error)
}

// ScraperFunc adapts a function to the Scraper interface.
type ScraperFunc func(ctx context.Context, in Input, progress Progress) ([]models.UpworkJob, error)

func (f ScraperFunc) Scrape(ctx context.Context, in Input, progress Progress) ([]models.UpworkJob, error) {
	return f(ctx, in, progress)
}

// NoopScraper backs the "none" driver: every run fails with ErrScraperDisabled.
type NoopScraper struct{}

func (NoopScraper) Scrape(context.Context, Input, Progress) ([]models.UpworkJob, error) {
	return nil, ErrScraperDisabled
}
