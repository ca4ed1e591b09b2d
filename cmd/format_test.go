package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/sports-intake/internal/model"
	"github.com/sells-group/sports-intake/internal/queue"
	"github.com/sells-group/sports-intake/internal/resilience"
)

func TestFormatSubmissionsList(t *testing.T) {
	now := time.Date(2026, 3, 1, 21, 30, 0, 0, time.UTC)
	subs := []model.Submission{
		{
			ID:        "abc12345-6789-0000-0000-000000000000",
			OwnerID:   "u1",
			Kind:      model.KindScoreSheet,
			Status:    model.StatusCompleted,
			Findings:  []model.Finding{{Code: model.FindingMissingField}},
			CreatedAt: now,
		},
		{
			ID:        "def12345-6789-0000-0000-000000000000",
			OwnerID:   "u2",
			Kind:      model.KindRoster,
			Status:    model.StatusFailed,
			Error:     "extraction timed out",
			CreatedAt: now,
		},
	}

	var buf bytes.Buffer
	formatSubmissionsList(&buf, subs)

	out := buf.String()
	assert.Contains(t, out, "KIND")
	assert.Contains(t, out, "abc12345")
	assert.NotContains(t, out, "abc12345-6789")
	assert.Contains(t, out, "score_sheet")
	assert.Contains(t, out, "completed")
	assert.Contains(t, out, "extraction timed out")
	assert.Contains(t, out, "2026-03-01 21:30")
}

func TestWriteSubmission_YAML(t *testing.T) {
	sub := &model.Submission{
		ID:      "sub-1",
		Kind:    model.KindScoreSheet,
		Status:  model.StatusCompleted,
		Payload: json.RawMessage(`{"home_team":"Central","home_score":52}`),
		Findings: []model.Finding{
			model.NewFinding(model.FindingMissingField, "away_score", "away_score is required"),
		},
	}

	var buf bytes.Buffer
	require.NoError(t, writeSubmission(&buf, sub, "yaml"))
	out := buf.String()
	assert.Contains(t, out, "id: sub-1")
	assert.Contains(t, out, "status: completed")
	assert.Contains(t, out, "home_team: Central")
	assert.Contains(t, out, "home_score: 52")
	assert.Contains(t, out, "field_path: away_score")
}

func TestWriteSubmission_JSON(t *testing.T) {
	sub := &model.Submission{ID: "sub-1", Status: model.StatusDraft}
	var buf bytes.Buffer
	require.NoError(t, writeSubmission(&buf, sub, "json"))

	var got model.Submission
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "sub-1", got.ID)

	assert.Error(t, writeSubmission(&buf, sub, "xml"))
}

func TestFormatAudit(t *testing.T) {
	entries := []model.AuditEntry{{
		ActorID:   "u1",
		Action:    model.AuditCorrectScore,
		Changes:   map[string]any{"home_score": 54, "prev_home_score": 52, "override": false},
		CreatedAt: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
	}}

	var buf bytes.Buffer
	formatAudit(&buf, entries)
	out := buf.String()
	assert.Contains(t, out, "correct_score")
	assert.Contains(t, out, "home_score=54 override=false prev_home_score=52")
	assert.Contains(t, out, "2026-03-02T09:00:00Z")
}

func TestFormatDLQ(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	e := resilience.NewDLQEntry("sub-12345678-aaaa", errors.New("queue full"), 5, now)

	var buf bytes.Buffer
	formatDLQ(&buf, []resilience.DLQEntry{e})
	out := buf.String()
	assert.Contains(t, out, "sub-1234")
	assert.Contains(t, out, "0/5")
	assert.Contains(t, out, "queue full")
}

func TestFormatReplayStats(t *testing.T) {
	var buf bytes.Buffer
	formatReplayStats(&buf, queue.ReplayStats{Dispatched: 3, Exhausted: 1, Swept: 2})
	assert.Contains(t, buf.String(), "Dispatched:")
	assert.Contains(t, buf.String(), "Swept:")
	assert.Contains(t, buf.String(), "3")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
	assert.Equal(t, "abc12345", truncateID("abc12345-6789"))
}
