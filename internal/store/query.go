package store

import (
	sq "github.com/Masterminds/squirrel"

	"github.com/sells-group/sports-intake/internal/model"
	"github.com/sells-group/sports-intake/internal/resilience"
)

const submissionColumns = "id, owner_id, kind, status, artifact_ref, media_type, filename, hints, payload, error, duration_ms, confirmed_at, created_at, updated_at"

const findingColumns = "id, submission_id, code, message, field_path, overridden, override_reason, overridden_by, overridden_at, created_at"

const gameColumns = "id, sport, gender, game_date, game_time, home_school_id, away_school_id, home_score, away_score, status, venue, source_submission_id, editable_until, verified_by, verified_at, created_at, updated_at"

const dlqColumns = "id, submission_id, error, error_type, retry_count, max_retries, next_retry_at, created_at, last_failed_at"

// listSubmissionsQuery builds the filtered submission listing.
func listSubmissionsQuery(ph sq.PlaceholderFormat, f model.SubmissionFilter) (string, []any, error) {
	q := sq.Select(submissionColumns).From("submissions").PlaceholderFormat(ph)
	if f.OwnerID != "" {
		q = q.Where(sq.Eq{"owner_id": f.OwnerID})
	}
	if f.Status != "" {
		q = q.Where(sq.Eq{"status": string(f.Status)})
	}
	if f.Kind != "" {
		q = q.Where(sq.Eq{"kind": string(f.Kind)})
	}
	if !f.CreatedAfter.IsZero() {
		q = q.Where(sq.GtOrEq{"created_at": f.CreatedAfter.UTC()})
	}
	if !f.UpdatedBefore.IsZero() {
		q = q.Where(sq.Lt{"updated_at": f.UpdatedBefore.UTC()})
	}

	limit := f.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	q = q.OrderBy("created_at DESC").Limit(uint64(limit))
	if f.Offset > 0 {
		q = q.Offset(uint64(f.Offset))
	}
	return q.ToSql()
}

// transitionQuery builds the conditional status update.
func transitionQuery(ph sq.PlaceholderFormat, id string, from []model.Status, to model.Status, now any) (string, []any, error) {
	statuses := make([]string, len(from))
	for i, s := range from {
		statuses[i] = string(s)
	}
	return sq.Update("submissions").PlaceholderFormat(ph).
		Set("status", string(to)).
		Set("error", "").
		Set("updated_at", now).
		Where(sq.Eq{"id": id, "status": statuses}).
		ToSql()
}

// listDLQQuery builds the dead-letter listing.
func listDLQQuery(ph sq.PlaceholderFormat, f resilience.DLQFilter, now any) (string, []any, error) {
	q := sq.Select(dlqColumns).From("dead_letter_queue").PlaceholderFormat(ph)
	if f.DueOnly {
		q = q.Where(sq.LtOrEq{"next_retry_at": now}).Where("retry_count < max_retries")
	}
	if f.ErrorType != "" {
		q = q.Where(sq.Eq{"error_type": f.ErrorType})
	}
	limit := f.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	return q.OrderBy("next_retry_at ASC").Limit(uint64(limit)).ToSql()
}
