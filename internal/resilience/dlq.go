package resilience

import (
	"time"

	"github.com/google/uuid"
)

// Error types recorded on dead-letter entries.
const (
	ErrorTransient = "transient"
	ErrorPermanent = "permanent"
)

// DLQEntry is an extraction task that could not be delivered to a worker.
type DLQEntry struct {
	ID           string    `json:"id" yaml:"id"`
	SubmissionID string    `json:"submission_id" yaml:"submission_id"`
	Error        string    `json:"error" yaml:"error"`
	ErrorType    string    `json:"error_type" yaml:"error_type"`
	RetryCount   int       `json:"retry_count" yaml:"retry_count"`
	MaxRetries   int       `json:"max_retries" yaml:"max_retries"`
	NextRetryAt  time.Time `json:"next_retry_at" yaml:"next_retry_at"`
	CreatedAt    time.Time `json:"created_at" yaml:"created_at"`
	LastFailedAt time.Time `json:"last_failed_at" yaml:"last_failed_at"`
}

// DLQFilter narrows dead-letter queries.
type DLQFilter struct {
	ErrorType string `json:"error_type,omitempty"`
	// DueOnly restricts results to entries whose next retry time has passed.
	DueOnly bool `json:"due_only,omitempty"`
	Limit   int  `json:"limit,omitempty"`
}

// NewDLQEntry builds an entry for a task that failed to dispatch.
func NewDLQEntry(submissionID string, err error, maxRetries int, now time.Time) DLQEntry {
	return DLQEntry{
		ID:           uuid.New().String(),
		SubmissionID: submissionID,
		Error:        err.Error(),
		ErrorType:    ClassifyError(err),
		MaxRetries:   maxRetries,
		NextRetryAt:  now,
		CreatedAt:    now,
		LastFailedAt: now,
	}
}

// CanRetry reports whether the entry has attempts left.
func (e *DLQEntry) CanRetry() bool {
	return e.RetryCount < e.MaxRetries
}

// NextAttempt returns when the entry should be retried after another failure.
func (e *DLQEntry) NextAttempt(now time.Time) time.Time {
	cfg := RetryConfig{InitialBackoff: time.Minute, MaxBackoff: time.Hour, Multiplier: 2}
	return now.Add(Backoff(e.RetryCount, cfg))
}

// ClassifyError categorizes an error as transient or permanent.
func ClassifyError(err error) string {
	if IsTransient(err) {
		return ErrorTransient
	}
	return ErrorPermanent
}
