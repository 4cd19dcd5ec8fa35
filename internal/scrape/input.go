package scrape

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Input is the typed scraper input built from stored credentials.
type Input struct {
	Credentials Credentials    `json:"credentials"`
	Search      SearchSettings `json:"search"`
}

type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// SearchSettings holds every non-secret credential entry after coercion.
type SearchSettings struct {
	Query         FlexString   `json:"query,omitempty"`
	Category      FlexString   `json:"category,omitempty"`
	MaxJobs       int          `json:"max_jobs,omitempty"`
	PerPage       int          `json:"per_page,omitempty"`
	Hourly        *bool        `json:"hourly,omitempty"`
	FixedPrice    *bool        `json:"fixed_price,omitempty"`
	MinBudget     float64      `json:"min_budget,omitempty"`
	Skills        []FlexString `json:"skills,omitempty"`
	Summarize     *bool        `json:"summarize,omitempty"`
	GenerateLeads *bool        `json:"generate_leads,omitempty"`
}

// FlexString accepts a JSON string or number. Coercion turns numeric
// search terms such as "1099" and category uids into numbers.
type FlexString string

func (f *FlexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("expected string or number: %w", err)
	}
	*f = FlexString(n.String())
	return nil
}

// ParseInput decodes a stored job input.
func ParseInput(raw []byte) (Input, error) {
	var in Input
	if err := json.Unmarshal(raw, &in); err != nil {
		return Input{}, fmt.Errorf("decode scrape input: %w", err)
	}
	return in, nil
}

// SkillList returns the skill filter as plain strings.
func (s SearchSettings) SkillList() []string {
	out := make([]string, 0, len(s.Skills))
	for _, sk := range s.Skills {
		out = append(out, string(sk))
	}
	return out
}

// Options picks the per-job summarizer switches, falling back to defaults.
func (s SearchSettings) Options(summarize, leads bool) (bool, bool) {
	if s.Summarize != nil {
		summarize = *s.Summarize
	}
	if s.GenerateLeads != nil {
		leads = *s.GenerateLeads
	}
	return summarize, leads
}

// Limit caps the number of jobs to collect.
func (s SearchSettings) Limit(def int) int {
	if s.MaxJobs > 0 {
		return s.MaxJobs
	}
	return def
}

func (s SearchSettings) String() string {
	return fmt.Sprintf("query=%s category=%s max_jobs=%s", strconv.Quote(string(s.Query)), strconv.Quote(string(s.Category)), strconv.Itoa(s.MaxJobs))
}

const redacted = "********"

// Redact masks the password inside a stored input document.
func Redact(raw json.RawMessage) json.RawMessage {
	var doc map[string]any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return raw
	}
	creds, ok := doc["credentials"].(map[string]any)
	if !ok {
		return raw
	}
	if _, ok := creds["password"]; ok {
		creds["password"] = redacted
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return raw
	}
	return b
}
