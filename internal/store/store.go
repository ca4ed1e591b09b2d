// Package store persists submissions, findings, canonical entities, the
// audit log and the dead-letter queue in Postgres or SQLite.
package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sells-group/sports-intake/internal/model"
	"github.com/sells-group/sports-intake/internal/resilience"
)

// SubmissionStore persists extraction jobs and their findings.
type SubmissionStore interface {
	CreateSubmission(ctx context.Context, sub *model.Submission) error
	// GetSubmission returns the submission with its findings, or an error
	// wrapping model.ErrNotFound.
	GetSubmission(ctx context.Context, id string) (*model.Submission, error)
	ListSubmissions(ctx context.Context, filter model.SubmissionFilter) ([]model.Submission, error)
	// TransitionSubmission moves a submission whose status is one of from to
	// status to. It fails with model.ErrInvalidState otherwise.
	TransitionSubmission(ctx context.Context, id string, from []model.Status, to model.Status) error
	// FinishExtraction records the extraction outcome only while the
	// submission is still processing. It reports whether the write happened.
	FinishExtraction(ctx context.Context, id string, out model.ExtractionOutcome) (bool, error)
	// UpdatePayload replaces the draft of a completed submission.
	UpdatePayload(ctx context.Context, id string, payload json.RawMessage) error
	MarkConfirmed(ctx context.Context, id string, at time.Time) error
	DeleteSubmission(ctx context.Context, id string) error
	ListFindings(ctx context.Context, submissionID string) ([]model.Finding, error)
	OverrideFinding(ctx context.Context, submissionID, findingID, reason, actorID string, at time.Time) (*model.Finding, error)
}

// CanonicalStore reads and writes the shared schools, players, roster
// entries and games. Lookups return nil, nil when nothing matches; creates
// fail with model.ErrAlreadyExists on a duplicate natural key.
type CanonicalStore interface {
	FindSchools(ctx context.Context, normalizedName string) ([]model.School, error)
	CreateSchool(ctx context.Context, s *model.School) error

	FindPlayer(ctx context.Context, schoolID, normalizedName string) (*model.Player, error)
	CreatePlayer(ctx context.Context, p *model.Player) error
	UpdatePlayer(ctx context.Context, p *model.Player) error

	GetRosterEntry(ctx context.Context, playerID, schoolID, season, sport string) (*model.RosterEntry, error)
	CreateRosterEntry(ctx context.Context, e *model.RosterEntry) error
	UpdateRosterEntry(ctx context.Context, e *model.RosterEntry) error

	FindGame(ctx context.Context, key model.GameKey) (*model.Game, error)
	// GetGame returns an error wrapping model.ErrNotFound when missing.
	GetGame(ctx context.Context, id string) (*model.Game, error)
	CreateGame(ctx context.Context, g *model.Game) error
	UpdateGame(ctx context.Context, g *model.Game) error
}

// AuditStore is the append-only audit log.
type AuditStore interface {
	AppendAudit(ctx context.Context, e *model.AuditEntry) error
	ListAudit(ctx context.Context, targetType, targetID string) ([]model.AuditEntry, error)
}

// DLQStore holds extraction tasks that could not be dispatched.
type DLQStore interface {
	EnqueueDLQ(ctx context.Context, entry resilience.DLQEntry) error
	ListDLQ(ctx context.Context, filter resilience.DLQFilter) ([]resilience.DLQEntry, error)
	IncrementDLQRetry(ctx context.Context, id string, nextRetryAt time.Time, lastErr string) error
	RemoveDLQ(ctx context.Context, id string) error
	CountDLQ(ctx context.Context) (int, error)
}

// Store defines the full persistence interface.
type Store interface {
	SubmissionStore
	CanonicalStore
	AuditStore
	DLQStore

	// Lifecycle
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

const defaultListLimit = 100

var (
	_ Store = (*PostgresStore)(nil)
	_ Store = (*SQLiteStore)(nil)
)
