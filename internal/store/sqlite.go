package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/sports-intake/internal/db"
	"github.com/sells-group/sports-intake/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// One writer keeps the conditional updates serialized.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	return eris.Wrap(runMigrations(ctx, goose.DialectSQLite3, s.db, "migrations/sqlite"), "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Submissions ---

func (s *SQLiteStore) CreateSubmission(ctx context.Context, sub *model.Submission) error {
	if sub.ID == "" {
		sub.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	sub.CreatedAt, sub.UpdatedAt = now, now

	hints, err := json.Marshal(sub.Hints)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal hints")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO submissions (id, owner_id, kind, status, artifact_ref, media_type, filename, hints, payload, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sub.ID, sub.OwnerID, string(sub.Kind), string(sub.Status), sub.ArtifactRef, sub.MediaType,
		sub.Filename, string(hints), textJSON(sub.Payload), now, now,
	)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return eris.Wrapf(model.ErrAlreadyExists, "sqlite: submission %s", sub.ID)
		}
		return eris.Wrap(err, "sqlite: insert submission")
	}
	return nil
}

func (s *SQLiteStore) GetSubmission(ctx context.Context, id string) (*model.Submission, error) {
	sub, err := scanSQLiteSubmission(s.db.QueryRowContext(ctx,
		`SELECT `+submissionColumns+` FROM submissions WHERE id = ?`, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(model.ErrNotFound, "submission %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get submission %s", id)
	}

	sub.Findings, err = s.ListFindings(ctx, id)
	if err != nil {
		return nil, err
	}
	return sub, nil
}

func (s *SQLiteStore) ListSubmissions(ctx context.Context, filter model.SubmissionFilter) ([]model.Submission, error) {
	query, args, err := listSubmissionsQuery(sq.Question, filter)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: build list submissions")
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list submissions")
	}
	defer rows.Close() //nolint:errcheck

	var subs []model.Submission
	for rows.Next() {
		sub, err := scanSQLiteSubmission(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan submission")
		}
		subs = append(subs, *sub)
	}
	return subs, eris.Wrap(rows.Err(), "sqlite: list submissions iterate")
}

func (s *SQLiteStore) TransitionSubmission(ctx context.Context, id string, from []model.Status, to model.Status) error {
	query, args, err := transitionQuery(sq.Question, id, from, to, time.Now().UTC())
	if err != nil {
		return eris.Wrap(err, "sqlite: build transition")
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return eris.Wrapf(err, "sqlite: transition submission %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return s.missingOrState(ctx, id, to)
	}
	return nil
}

func (s *SQLiteStore) FinishExtraction(ctx context.Context, id string, out model.ExtractionOutcome) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx,
		`UPDATE submissions SET status = ?, payload = ?, error = ?, duration_ms = ?, updated_at = ?
		 WHERE id = ? AND status = 'processing'`,
		string(out.Status), textJSON(out.Payload), out.Error, out.DurationMS, time.Now().UTC(), id,
	)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: finish extraction %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return false, nil
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM findings WHERE submission_id = ?`, id); err != nil {
		return false, eris.Wrapf(err, "sqlite: clear findings %s", id)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO findings (id, submission_id, code, message, field_path, created_at) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return false, eris.Wrap(err, "sqlite: prepare finding insert")
	}
	defer stmt.Close() //nolint:errcheck

	for _, row := range findingRows(id, out.Findings) {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return false, eris.Wrapf(err, "sqlite: insert finding for %s", id)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, eris.Wrap(err, "sqlite: commit tx")
	}
	return true, nil
}

func (s *SQLiteStore) UpdatePayload(ctx context.Context, id string, payload json.RawMessage) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE submissions SET payload = ?, updated_at = ? WHERE id = ? AND status = 'completed'`,
		textJSON(payload), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update payload %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return s.missingOrState(ctx, id, model.StatusCompleted)
	}
	return nil
}

func (s *SQLiteStore) MarkConfirmed(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE submissions SET confirmed_at = ?, updated_at = ? WHERE id = ?`, at, at, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: mark confirmed %s", id)
	}
	return checkRowsAffected(res, "submission", id)
}

func (s *SQLiteStore) DeleteSubmission(ctx context.Context, id string) error {
	// findings cascade through the foreign key
	res, err := s.db.ExecContext(ctx, `DELETE FROM submissions WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete submission %s", id)
	}
	return checkRowsAffected(res, "submission", id)
}

func (s *SQLiteStore) ListFindings(ctx context.Context, submissionID string) ([]model.Finding, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+findingColumns+` FROM findings WHERE submission_id = ? ORDER BY created_at, id`,
		submissionID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list findings %s", submissionID)
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Finding
	for rows.Next() {
		f, err := scanSQLiteFinding(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan finding")
		}
		out = append(out, *f)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list findings iterate")
}

func (s *SQLiteStore) OverrideFinding(ctx context.Context, submissionID, findingID, reason, actorID string, at time.Time) (*model.Finding, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE findings SET overridden = 1, override_reason = ?, overridden_by = ?, overridden_at = ?
		 WHERE id = ? AND submission_id = ?`,
		reason, actorID, at, findingID, submissionID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: override finding %s", findingID)
	}
	if err := checkRowsAffected(res, "finding", findingID); err != nil {
		return nil, err
	}

	f, err := scanSQLiteFinding(s.db.QueryRowContext(ctx,
		`SELECT `+findingColumns+` FROM findings WHERE id = ?`, findingID))
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get finding %s", findingID)
	}
	return f, nil
}

func (s *SQLiteStore) missingOrState(ctx context.Context, id string, want model.Status) error {
	var status string
	err := s.db.QueryRowContext(ctx, `SELECT status FROM submissions WHERE id = ?`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return eris.Wrapf(model.ErrNotFound, "submission %s", id)
	}
	if err != nil {
		return eris.Wrapf(err, "sqlite: get submission status %s", id)
	}
	return eris.Wrapf(model.ErrInvalidState, "submission %s is %s, cannot move to %s", id, status, want)
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(model.ErrNotFound, "%s %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanSQLiteSubmission(row scannable) (*model.Submission, error) {
	var sub model.Submission
	var hints string
	var payload sql.NullString
	if err := row.Scan(&sub.ID, &sub.OwnerID, &sub.Kind, &sub.Status, &sub.ArtifactRef, &sub.MediaType,
		&sub.Filename, &hints, &payload, &sub.Error, &sub.DurationMS, &sub.ConfirmedAt,
		&sub.CreatedAt, &sub.UpdatedAt); err != nil {
		return nil, err
	}
	if hints != "" {
		if err := json.Unmarshal([]byte(hints), &sub.Hints); err != nil {
			return nil, eris.Wrap(err, "unmarshal hints")
		}
	}
	if payload.Valid {
		sub.Payload = json.RawMessage(payload.String)
	}
	return &sub, nil
}

func scanSQLiteFinding(row scannable) (*model.Finding, error) {
	var f model.Finding
	if err := row.Scan(&f.ID, &f.SubmissionID, &f.Code, &f.Message, &f.FieldPath, &f.Overridden,
		&f.OverrideReason, &f.OverriddenBy, &f.OverriddenAt, &f.CreatedAt); err != nil {
		return nil, err
	}
	return &f, nil
}

// textJSON maps an empty payload to NULL and anything else to TEXT.
func textJSON(raw json.RawMessage) any {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return string(raw)
}
