package scrape

import (
	"fmt"

	"github.com/garnizeh/leadscout/internal/apperr"
)

// Job statuses.
const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"

	// StatusAll selects every job when listing.
	StatusAll = "all"
)

var validTransitions = map[string][]string{
	StatusPending:    {StatusInProgress, StatusFailed},
	StatusInProgress: {StatusCompleted, StatusFailed},
}

// CanTransition reports whether a job may move from one status to another.
func CanTransition(from, to string) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// ParseStatus normalises a listing filter. "all" and "" map to "".
func ParseStatus(s string) (string, error) {
	switch s {
	case "", StatusAll:
		return "", nil
	case StatusPending, StatusInProgress, StatusCompleted, StatusFailed:
		return s, nil
	}
	return "", apperr.Validation("Invalid status.", map[string]string{
		"status": fmt.Sprintf("Must be one of: %s %s %s %s %s", StatusAll, StatusPending, StatusInProgress, StatusCompleted, StatusFailed),
	})
}
