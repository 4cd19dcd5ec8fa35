// Package upwork scrapes job postings from upwork.com with a headless
// Chrome driven over the DevTools protocol.
package upwork

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/garnizeh/leadscout/internal/models"
	"github.com/garnizeh/leadscout/internal/scrape"
)

const (
	searchPath     = "/nx/search/jobs/"
	loginPath      = "/ab/account-security/login"
	defaultPerPage = 50
)

// SearchURL builds the job search URL for one result page (1-based).
func SearchURL(base string, s scrape.SearchSettings, page int) (string, error) {
	u, err := url.Parse(strings.TrimRight(base, "/") + searchPath)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}

	q := url.Values{}
	if s.Query != "" {
		q.Set("q", string(s.Query))
	}
	if s.Category != "" {
		q.Set("category2_uid", string(s.Category))
	}
	if len(s.Skills) > 0 && s.Query == "" {
		q.Set("q", strings.Join(s.SkillList(), " "))
	}

	var types []string
	if s.Hourly != nil && *s.Hourly {
		types = append(types, "0")
	}
	if s.FixedPrice != nil && *s.FixedPrice {
		types = append(types, "1")
	}
	if len(types) > 0 {
		q.Set("t", strings.Join(types, ","))
	}
	if s.MinBudget > 0 {
		q.Set("amount", strconv.FormatFloat(s.MinBudget, 'f', -1, 64)+"-")
	}

	perPage := s.PerPage
	if perPage <= 0 {
		perPage = defaultPerPage
	}
	q.Set("per_page", strconv.Itoa(perPage))
	if page > 1 {
		q.Set("page", strconv.Itoa(page))
	}
	q.Set("sort", "recency")

	u.RawQuery = q.Encode()
	return u.String(), nil
}

// tile is what the in-page extraction script returns per job card.
type tile struct {
	Title       string   `json:"title"`
	Href        string   `json:"href"`
	Description string   `json:"description"`
	Skills      []string `json:"skills"`
	JobType     string   `json:"jobType"`
	Budget      string   `json:"budget"`
	Experience  string   `json:"experience"`
	Posted      string   `json:"posted"`
	Country     string   `json:"country"`
}

// decodeTiles normalises extracted cards. Cards without a title or whose
// URL is in seen are dropped; seen is updated.
func decodeTiles(raw []byte, base string, seen map[string]bool) ([]models.UpworkJob, error) {
	var tiles []tile
	if err := json.Unmarshal(raw, &tiles); err != nil {
		return nil, fmt.Errorf("decode job tiles: %w", err)
	}

	baseURL, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}

	out := make([]models.UpworkJob, 0, len(tiles))
	for _, t := range tiles {
		title := clean(t.Title)
		if title == "" {
			continue
		}
		link := clean(t.Href)
		if ref, err := url.Parse(link); err == nil && link != "" {
			link = baseURL.ResolveReference(ref).String()
		}
		key := link
		if key == "" {
			key = title
		}
		if seen[key] {
			continue
		}
		seen[key] = true

		job := models.UpworkJob{
			Title:         title,
			URL:           link,
			Description:   clean(t.Description),
			Skills:        cleanAll(t.Skills),
			JobType:       clean(t.JobType),
			Experience:    clean(t.Experience),
			Posted:        clean(t.Posted),
			ClientCountry: strings.TrimPrefix(clean(t.Country), "Location "),
		}
		rate, hourly := hourlyRate(job.JobType)
		switch {
		case hourly:
			job.HourlyRate = rate
		default:
			job.Budget = clean(t.Budget)
		}
		out = append(out, job)
	}
	return out, nil
}

// hourlyRate extracts "$20.00 - $40.00" from "Hourly: $20.00 - $40.00".
func hourlyRate(jobType string) (string, bool) {
	if !strings.HasPrefix(strings.ToLower(jobType), "hourly") {
		return "", false
	}
	_, rate, _ := strings.Cut(jobType, ":")
	return strings.TrimSpace(rate), true
}

func clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func cleanAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = clean(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
