package upwork

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/garnizeh/leadscout/internal/config"
	"github.com/garnizeh/leadscout/internal/models"
	"github.com/garnizeh/leadscout/internal/scrape"
)

const (
	maxPages  = 20
	stepWait  = 30 * time.Second
	extractJS = `JSON.stringify(Array.from(document.querySelectorAll('article[data-test="JobTile"]')).map(function (el) {
	function text(sel) { var n = el.querySelector(sel); return n ? n.innerText : ""; }
	var link = el.querySelector('[data-test="job-tile-title-link"]');
	return {
		title: link ? link.innerText : text("h2"),
		href: link ? link.getAttribute("href") : "",
		description: text('[data-test="UpCLineClamp JobDescription"]') || text('[data-test="JobDescription"]'),
		skills: Array.from(el.querySelectorAll('[data-test="token"]')).map(function (n) { return n.innerText; }),
		jobType: text('[data-test="job-type-label"]'),
		budget: text('[data-test="is-fixed-price"]'),
		experience: text('[data-test="experience-level"]'),
		posted: text('[data-test="job-pubilshed-date"]'),
		country: text('[data-test="location"]')
	};
}))`
)

var ErrLoginFailed = errors.New("upwork login failed")

// Scraper logs in with the job's credentials and walks the search result
// pages until the requested number of postings is collected.
type Scraper struct {
	cfg    config.ScraperConfig
	logger *slog.Logger
}

func New(cfg config.ScraperConfig, logger *slog.Logger) *Scraper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scraper{cfg: cfg, logger: logger}
}

func (s *Scraper) allocator(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.RemoteURL != "" {
		return chromedp.NewRemoteAllocator(ctx, s.cfg.RemoteURL)
	}
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", s.cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.WindowSize(1366, 900),
	)
	if s.cfg.NoSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}
	return chromedp.NewExecAllocator(ctx, opts...)
}

func (s *Scraper) Scrape(ctx context.Context, in scrape.Input, progress scrape.Progress) ([]models.UpworkJob, error) {
	allocCtx, cancelAlloc := s.allocator(ctx)
	defer cancelAlloc()

	tab, cancelTab := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(format string, args ...any) {
		s.logger.Debug(fmt.Sprintf(format, args...))
	}))
	defer cancelTab()

	if err := s.login(tab, in.Credentials); err != nil {
		return nil, err
	}
	progress.Debugf(ctx, "Logged in as %s", in.Credentials.Username)

	limit := in.Search.Limit(s.cfg.MaxJobs)
	seen := make(map[string]bool)
	var jobs []models.UpworkJob
	for page := 1; page <= maxPages && len(jobs) < limit; page++ {
		found, err := s.page(tab, in.Search, page, seen)
		if err != nil {
			return nil, err
		}
		progress.Debugf(ctx, "Page %d: %d new jobs", page, len(found))
		if len(found) == 0 {
			break
		}
		jobs = append(jobs, found...)
	}
	if len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs, nil
}

func (s *Scraper) login(tab context.Context, c scrape.Credentials) error {
	ctx, cancel := context.WithTimeout(tab, 2*stepWait)
	defer cancel()

	err := chromedp.Run(ctx,
		chromedp.Navigate(strings.TrimRight(s.cfg.BaseURL, "/")+loginPath),
		chromedp.WaitVisible(`#login_username`, chromedp.ByQuery),
		chromedp.SendKeys(`#login_username`, c.Username, chromedp.ByQuery),
		chromedp.Click(`#login_password_continue`, chromedp.ByQuery),
		chromedp.WaitVisible(`#login_password`, chromedp.ByQuery),
		chromedp.SendKeys(`#login_password`, c.Password, chromedp.ByQuery),
		chromedp.Click(`#login_control_continue`, chromedp.ByQuery),
		chromedp.WaitNotPresent(`#login_password`, chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLoginFailed, err)
	}
	return nil
}

func (s *Scraper) page(tab context.Context, search scrape.SearchSettings, n int, seen map[string]bool) ([]models.UpworkJob, error) {
	target, err := SearchURL(s.cfg.BaseURL, search, n)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(tab, stepWait)
	defer cancel()

	var raw string
	err = chromedp.Run(ctx,
		chromedp.Navigate(target),
		chromedp.WaitReady(`body`, chromedp.ByQuery),
		chromedp.Evaluate(extractJS, &raw),
	)
	if err != nil {
		return nil, fmt.Errorf("load search page %d: %w", n, err)
	}
	return decodeTiles([]byte(raw), s.cfg.BaseURL, seen)
}

var _ scrape.Scraper = (*Scraper)(nil)
