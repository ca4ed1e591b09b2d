package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver for database/sql (goose)
	"github.com/pressly/goose/v3"
	"github.com/rotisserie/eris"

	"github.com/sells-group/sports-intake/internal/db"
	"github.com/sells-group/sports-intake/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	dsn     string
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, dsn: connString, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	if s.dsn == "" {
		return eris.New("postgres: migrate requires a connection string")
	}
	sqlDB, err := sql.Open("pgx", s.dsn)
	if err != nil {
		return eris.Wrap(err, "postgres: open migration connection")
	}
	defer sqlDB.Close() //nolint:errcheck

	return eris.Wrap(runMigrations(ctx, goose.DialectPostgres, sqlDB, "migrations/postgres"), "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// --- Submissions ---

func (s *PostgresStore) CreateSubmission(ctx context.Context, sub *model.Submission) error {
	if sub.ID == "" {
		sub.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	sub.CreatedAt, sub.UpdatedAt = now, now

	hints, err := json.Marshal(sub.Hints)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal hints")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO submissions (id, owner_id, kind, status, artifact_ref, media_type, filename, hints, payload, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		sub.ID, sub.OwnerID, string(sub.Kind), string(sub.Status), sub.ArtifactRef, sub.MediaType,
		sub.Filename, hints, nullJSON(sub.Payload), now, now,
	)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return eris.Wrapf(model.ErrAlreadyExists, "postgres: submission %s", sub.ID)
		}
		return eris.Wrap(err, "postgres: insert submission")
	}
	return nil
}

func (s *PostgresStore) GetSubmission(ctx context.Context, id string) (*model.Submission, error) {
	sub, err := scanPgSubmission(s.pool.QueryRow(ctx,
		`SELECT `+submissionColumns+` FROM submissions WHERE id = $1`, id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(model.ErrNotFound, "submission %s", id)
		}
		return nil, eris.Wrapf(err, "postgres: get submission %s", id)
	}

	sub.Findings, err = s.ListFindings(ctx, id)
	if err != nil {
		return nil, err
	}
	return sub, nil
}

func (s *PostgresStore) ListSubmissions(ctx context.Context, filter model.SubmissionFilter) ([]model.Submission, error) {
	query, args, err := listSubmissionsQuery(sq.Dollar, filter)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: build list submissions")
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list submissions")
	}
	defer rows.Close()

	var subs []model.Submission
	for rows.Next() {
		sub, err := scanPgSubmission(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan submission")
		}
		subs = append(subs, *sub)
	}
	return subs, eris.Wrap(rows.Err(), "postgres: list submissions iterate")
}

func (s *PostgresStore) TransitionSubmission(ctx context.Context, id string, from []model.Status, to model.Status) error {
	query, args, err := transitionQuery(sq.Dollar, id, from, to, time.Now().UTC())
	if err != nil {
		return eris.Wrap(err, "postgres: build transition")
	}

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return eris.Wrapf(err, "postgres: transition submission %s", id)
	}
	if tag.RowsAffected() == 0 {
		return s.missingOrState(ctx, id, to)
	}
	return nil
}

func (s *PostgresStore) FinishExtraction(ctx context.Context, id string, out model.ExtractionOutcome) (bool, error) {
	var applied bool
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE submissions SET status = $1, payload = $2, error = $3, duration_ms = $4, updated_at = $5
			 WHERE id = $6 AND status = 'processing'`,
			string(out.Status), nullJSON(out.Payload), out.Error, out.DurationMS, time.Now().UTC(), id,
		)
		if err != nil {
			return eris.Wrapf(err, "postgres: finish extraction %s", id)
		}
		if tag.RowsAffected() == 0 {
			return nil
		}
		applied = true

		if _, err := tx.Exec(ctx, `DELETE FROM findings WHERE submission_id = $1`, id); err != nil {
			return eris.Wrapf(err, "postgres: clear findings %s", id)
		}

		_, err = db.CopyFrom(ctx, tx, "findings",
			[]string{"id", "submission_id", "code", "message", "field_path", "created_at"},
			findingRows(id, out.Findings),
		)
		return err
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}

func (s *PostgresStore) UpdatePayload(ctx context.Context, id string, payload json.RawMessage) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE submissions SET payload = $1, updated_at = $2 WHERE id = $3 AND status = 'completed'`,
		[]byte(payload), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update payload %s", id)
	}
	if tag.RowsAffected() == 0 {
		return s.missingOrState(ctx, id, model.StatusCompleted)
	}
	return nil
}

func (s *PostgresStore) MarkConfirmed(ctx context.Context, id string, at time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE submissions SET confirmed_at = $1, updated_at = $1 WHERE id = $2`,
		at, id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: mark confirmed %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(model.ErrNotFound, "submission %s", id)
	}
	return nil
}

func (s *PostgresStore) DeleteSubmission(ctx context.Context, id string) error {
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM findings WHERE submission_id = $1`, id); err != nil {
			return eris.Wrapf(err, "postgres: delete findings %s", id)
		}
		tag, err := tx.Exec(ctx, `DELETE FROM submissions WHERE id = $1`, id)
		if err != nil {
			return eris.Wrapf(err, "postgres: delete submission %s", id)
		}
		if tag.RowsAffected() == 0 {
			return eris.Wrapf(model.ErrNotFound, "submission %s", id)
		}
		return nil
	})
}

func (s *PostgresStore) ListFindings(ctx context.Context, submissionID string) ([]model.Finding, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+findingColumns+` FROM findings WHERE submission_id = $1 ORDER BY created_at, id`,
		submissionID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list findings %s", submissionID)
	}
	defer rows.Close()

	var out []model.Finding
	for rows.Next() {
		f, err := scanPgFinding(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan finding")
		}
		out = append(out, *f)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list findings iterate")
}

func (s *PostgresStore) OverrideFinding(ctx context.Context, submissionID, findingID, reason, actorID string, at time.Time) (*model.Finding, error) {
	f, err := scanPgFinding(s.pool.QueryRow(ctx,
		`UPDATE findings SET overridden = true, override_reason = $1, overridden_by = $2, overridden_at = $3
		 WHERE id = $4 AND submission_id = $5
		 RETURNING `+findingColumns,
		reason, actorID, at, findingID, submissionID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(model.ErrNotFound, "finding %s", findingID)
		}
		return nil, eris.Wrapf(err, "postgres: override finding %s", findingID)
	}
	return f, nil
}

// missingOrState explains why a conditional update touched no rows.
func (s *PostgresStore) missingOrState(ctx context.Context, id string, want model.Status) error {
	var status string
	err := s.pool.QueryRow(ctx, `SELECT status FROM submissions WHERE id = $1`, id).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return eris.Wrapf(model.ErrNotFound, "submission %s", id)
	}
	if err != nil {
		return eris.Wrapf(err, "postgres: get submission status %s", id)
	}
	return eris.Wrapf(model.ErrInvalidState, "submission %s is %s, cannot move to %s", id, status, want)
}

func scanPgSubmission(row pgx.Row) (*model.Submission, error) {
	var sub model.Submission
	var hints, payload []byte
	if err := row.Scan(&sub.ID, &sub.OwnerID, &sub.Kind, &sub.Status, &sub.ArtifactRef, &sub.MediaType,
		&sub.Filename, &hints, &payload, &sub.Error, &sub.DurationMS, &sub.ConfirmedAt,
		&sub.CreatedAt, &sub.UpdatedAt); err != nil {
		return nil, err
	}
	if len(hints) > 0 {
		if err := json.Unmarshal(hints, &sub.Hints); err != nil {
			return nil, eris.Wrap(err, "unmarshal hints")
		}
	}
	if len(payload) > 0 {
		sub.Payload = json.RawMessage(payload)
	}
	return &sub, nil
}

func scanPgFinding(row pgx.Row) (*model.Finding, error) {
	var f model.Finding
	if err := row.Scan(&f.ID, &f.SubmissionID, &f.Code, &f.Message, &f.FieldPath, &f.Overridden,
		&f.OverrideReason, &f.OverriddenBy, &f.OverriddenAt, &f.CreatedAt); err != nil {
		return nil, err
	}
	return &f, nil
}

// findingRows assigns ids to new findings and returns them as COPY rows.
func findingRows(submissionID string, findings []model.Finding) [][]any {
	now := time.Now().UTC()
	rows := make([][]any, 0, len(findings))
	for i := range findings {
		f := &findings[i]
		if f.ID == "" {
			f.ID = uuid.New().String()
		}
		f.SubmissionID = submissionID
		f.CreatedAt = now
		rows = append(rows, []any{f.ID, submissionID, string(f.Code), f.Message, f.FieldPath, now})
	}
	return rows
}

// nullJSON maps an empty payload to SQL NULL.
func nullJSON(raw json.RawMessage) any {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return []byte(raw)
}
