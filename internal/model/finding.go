package model

import "time"

// FindingCode classifies a validation finding.
type FindingCode string

const (
	FindingMissingField  FindingCode = "missing_field"
	FindingInvalidRange  FindingCode = "invalid_range"
	FindingTypeMismatch  FindingCode = "type_mismatch"
	FindingInvalidValue  FindingCode = "invalid_value"
	FindingLowConfidence FindingCode = "low_confidence"
)

// Finding is one field-level diagnostic attached to a submission. Findings
// are never edited after creation except to record a reviewer override.
type Finding struct {
	ID             string      `json:"id" yaml:"id"`
	SubmissionID   string      `json:"submission_id" yaml:"submission_id"`
	Code           FindingCode `json:"code" yaml:"code"`
	Message        string      `json:"message" yaml:"message"`
	FieldPath      string      `json:"field_path,omitempty" yaml:"field_path,omitempty"`
	Overridden     bool        `json:"overridden" yaml:"overridden"`
	OverrideReason string      `json:"override_reason,omitempty" yaml:"override_reason,omitempty"`
	OverriddenBy   string      `json:"overridden_by,omitempty" yaml:"overridden_by,omitempty"`
	OverriddenAt   *time.Time  `json:"overridden_at,omitempty" yaml:"overridden_at,omitempty"`
	CreatedAt      time.Time   `json:"created_at" yaml:"created_at"`
}

// NewFinding builds an un-persisted finding.
func NewFinding(code FindingCode, path, message string) Finding {
	return Finding{Code: code, FieldPath: path, Message: message}
}
