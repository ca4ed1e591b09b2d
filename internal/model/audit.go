package model

import "time"

// AuditAction tags an externally visible mutation.
type AuditAction string

const (
	AuditCreate            AuditAction = "create"
	AuditRequestExtraction AuditAction = "request_extraction"
	AuditExtracted         AuditAction = "extracted"
	AuditPatch             AuditAction = "patch"
	AuditOverride          AuditAction = "override"
	AuditConfirm           AuditAction = "confirm"
	AuditApprove           AuditAction = "approve"
	AuditReject            AuditAction = "reject"
	AuditDelete            AuditAction = "delete"
	AuditCorrectScore      AuditAction = "correct_score"
	AuditVerify            AuditAction = "verify"
)

// Audit target types.
const (
	TargetSubmission = "submission"
	TargetFinding    = "finding"
	TargetGame       = "game"
)

// AuditEntry is an immutable record of who changed what.
type AuditEntry struct {
	ID         string         `json:"id" yaml:"id"`
	ActorID    string         `json:"actor_id" yaml:"actor_id"`
	Action     AuditAction    `json:"action" yaml:"action"`
	TargetType string         `json:"target_type" yaml:"target_type"`
	TargetID   string         `json:"target_id" yaml:"target_id"`
	Changes    map[string]any `json:"changes,omitempty" yaml:"changes,omitempty"`
	CreatedAt  time.Time      `json:"created_at" yaml:"created_at"`
}
