// Package jobs runs background tasks stored in the jobs table.
//
// Delivery is at-least-once: a task claimed by a worker that dies is handed
// out again by RequeueStale, so handlers must be idempotent.
package jobs

import (
	"context"
	"time"

	"github.com/garnizeh/leadscout/internal/models"
)

// Job statuses.
const (
	StatusQueued  = "queued"
	StatusRunning = "running"
	StatusRetry   = "retry"
	StatusDone    = "done"
	StatusFailed  = "failed"
)

// Handler processes one task. A returned error counts as a failed attempt.
type Handler func(ctx context.Context, j *models.BackgroundJob) error

// BackoffDuration returns exponential backoff duration for attempt n
func BackoffDuration(attempt int) time.Duration {
	if attempt <= 0 {
		return time.Second
	}
	if attempt > 16 {
		return 5 * time.Minute
	}
	d := time.Duration(1<<uint(attempt)) * time.Second
	if max := 5 * time.Minute; d > max {
		return max
	}
	return d
}
