package model

import (
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
)

// Kind identifies the type of document a submission carries.
type Kind string

const (
	KindScoreSheet Kind = "score_sheet"
	KindSchedule   Kind = "schedule"
	KindRoster     Kind = "roster"
)

// Kinds lists every supported document kind.
var Kinds = []Kind{KindScoreSheet, KindSchedule, KindRoster}

// ParseKind validates a raw kind string.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", eris.Wrapf(ErrInvalidInput, "unknown document kind %q", s)
}

// Status represents the lifecycle state of a submission.
type Status string

const (
	StatusDraft      Status = "draft"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether the status is an extraction outcome.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Hints carries optional context supplied with an upload.
type Hints struct {
	Sport  string `json:"sport,omitempty" yaml:"sport,omitempty"`
	Gender string `json:"gender,omitempty" yaml:"gender,omitempty"`
	Season string `json:"season,omitempty" yaml:"season,omitempty"`
	School string `json:"school,omitempty" yaml:"school,omitempty"`
	City   string `json:"city,omitempty" yaml:"city,omitempty"`
}

// Submission tracks one extraction job from upload to structured draft.
type Submission struct {
	ID          string          `json:"id" yaml:"id"`
	OwnerID     string          `json:"owner_id" yaml:"owner_id"`
	Kind        Kind            `json:"kind" yaml:"kind"`
	Status      Status          `json:"status" yaml:"status"`
	ArtifactRef string          `json:"artifact_ref" yaml:"artifact_ref"`
	MediaType   string          `json:"media_type" yaml:"media_type"`
	Filename    string          `json:"filename,omitempty" yaml:"filename,omitempty"`
	Hints       Hints           `json:"hints" yaml:"hints"`
	Payload     json.RawMessage `json:"payload,omitempty" yaml:"-"`
	Findings    []Finding       `json:"findings,omitempty" yaml:"findings,omitempty"`
	Error       string          `json:"error,omitempty" yaml:"error,omitempty"`
	DurationMS  int64           `json:"duration_ms" yaml:"duration_ms"`
	ConfirmedAt *time.Time      `json:"confirmed_at,omitempty" yaml:"confirmed_at,omitempty"`
	CreatedAt   time.Time       `json:"created_at" yaml:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" yaml:"updated_at"`
}

// HasPayload reports whether an extracted draft is attached.
func (s *Submission) HasPayload() bool {
	return len(s.Payload) > 0 && string(s.Payload) != "null"
}

// OwnedBy reports whether the actor owns the submission or may act for its owner.
func (s *Submission) OwnedBy(a Actor) bool {
	return a.IsAdmin() || (a.ID != "" && a.ID == s.OwnerID)
}

// SubmissionFilter narrows submission listings.
type SubmissionFilter struct {
	OwnerID       string
	Status        Status
	Kind          Kind
	CreatedAfter  time.Time
	UpdatedBefore time.Time
	Limit         int
	Offset        int
}

// ExtractionOutcome is the terminal result written by the extraction runner.
type ExtractionOutcome struct {
	Status     Status
	Payload    json.RawMessage
	Findings   []Finding
	Error      string
	DurationMS int64
}
