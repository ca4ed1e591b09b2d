package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/sports-intake/internal/db"
	"github.com/sells-group/sports-intake/internal/model"
	"github.com/sells-group/sports-intake/internal/resilience"
)

// --- Schools ---

func (s *SQLiteStore) FindSchools(ctx context.Context, normalizedName string) ([]model.School, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, normalized_name, city, state, created_at
		 FROM schools WHERE normalized_name = ? ORDER BY created_at, id`,
		normalizedName,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: find schools")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.School
	for rows.Next() {
		var sc model.School
		if err := rows.Scan(&sc.ID, &sc.Name, &sc.NormalizedName, &sc.City, &sc.State, &sc.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan school")
		}
		out = append(out, sc)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: find schools iterate")
}

func (s *SQLiteStore) CreateSchool(ctx context.Context, sc *model.School) error {
	if sc.ID == "" {
		sc.ID = uuid.New().String()
	}
	sc.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO schools (id, name, normalized_name, city, state, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		sc.ID, sc.Name, sc.NormalizedName, sc.City, sc.State, sc.CreatedAt,
	)
	return sqliteWriteErr(err, "school "+sc.NormalizedName)
}

// --- Players ---

func (s *SQLiteStore) FindPlayer(ctx context.Context, schoolID, normalizedName string) (*model.Player, error) {
	var p model.Player
	err := s.db.QueryRowContext(ctx,
		`SELECT id, school_id, first_name, last_name, normalized_name, jersey_number, position, grade, height, weight, created_at, updated_at
		 FROM players WHERE school_id = ? AND normalized_name = ?`,
		schoolID, normalizedName,
	).Scan(&p.ID, &p.SchoolID, &p.FirstName, &p.LastName, &p.NormalizedName, &p.JerseyNumber,
		&p.Position, &p.Grade, &p.Height, &p.Weight, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: find player")
	}
	return &p, nil
}

func (s *SQLiteStore) CreatePlayer(ctx context.Context, p *model.Player) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO players (id, school_id, first_name, last_name, normalized_name, jersey_number, position, grade, height, weight, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.SchoolID, p.FirstName, p.LastName, p.NormalizedName, p.JerseyNumber,
		p.Position, p.Grade, p.Height, p.Weight, now, now,
	)
	return sqliteWriteErr(err, "player "+p.NormalizedName)
}

func (s *SQLiteStore) UpdatePlayer(ctx context.Context, p *model.Player) error {
	p.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE players SET first_name = ?, last_name = ?, jersey_number = ?, position = ?,
		 grade = ?, height = ?, weight = ?, updated_at = ? WHERE id = ?`,
		p.FirstName, p.LastName, p.JerseyNumber, p.Position, p.Grade, p.Height, p.Weight, p.UpdatedAt, p.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update player %s", p.ID)
	}
	return checkRowsAffected(res, "player", p.ID)
}

// --- Roster entries ---

func (s *SQLiteStore) GetRosterEntry(ctx context.Context, playerID, schoolID, season, sport string) (*model.RosterEntry, error) {
	var e model.RosterEntry
	err := s.db.QueryRowContext(ctx,
		`SELECT id, player_id, school_id, season, sport, jersey_number, position, grade, status, updated_at
		 FROM roster_entries WHERE player_id = ? AND school_id = ? AND season = ? AND sport = ?`,
		playerID, schoolID, season, sport,
	).Scan(&e.ID, &e.PlayerID, &e.SchoolID, &e.Season, &e.Sport, &e.JerseyNumber, &e.Position,
		&e.Grade, &e.Status, &e.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get roster entry")
	}
	return &e, nil
}

func (s *SQLiteStore) CreateRosterEntry(ctx context.Context, e *model.RosterEntry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	e.UpdatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO roster_entries (id, player_id, school_id, season, sport, jersey_number, position, grade, status, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.PlayerID, e.SchoolID, e.Season, e.Sport, e.JerseyNumber, e.Position, e.Grade, e.Status, e.UpdatedAt,
	)
	return sqliteWriteErr(err, "roster entry for player "+e.PlayerID)
}

func (s *SQLiteStore) UpdateRosterEntry(ctx context.Context, e *model.RosterEntry) error {
	e.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE roster_entries SET jersey_number = ?, position = ?, grade = ?, status = ?, updated_at = ? WHERE id = ?`,
		e.JerseyNumber, e.Position, e.Grade, e.Status, e.UpdatedAt, e.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update roster entry %s", e.ID)
	}
	return checkRowsAffected(res, "roster entry", e.ID)
}

// --- Games ---

func (s *SQLiteStore) FindGame(ctx context.Context, key model.GameKey) (*model.Game, error) {
	g, err := scanSQLiteGame(s.db.QueryRowContext(ctx,
		`SELECT `+gameColumns+` FROM games
		 WHERE game_date = ? AND sport = ? AND home_school_id = ? AND away_school_id = ?`,
		key.GameDate, key.Sport, key.HomeSchoolID, key.AwaySchoolID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: find game")
	}
	return g, nil
}

func (s *SQLiteStore) GetGame(ctx context.Context, id string) (*model.Game, error) {
	g, err := scanSQLiteGame(s.db.QueryRowContext(ctx, `SELECT `+gameColumns+` FROM games WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(model.ErrNotFound, "game %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get game %s", id)
	}
	return g, nil
}

func (s *SQLiteStore) CreateGame(ctx context.Context, g *model.Game) error {
	if g.ID == "" {
		g.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	g.CreatedAt, g.UpdatedAt = now, now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO games (`+gameColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		gameArgs(g)...,
	)
	return sqliteWriteErr(err, "game "+g.GameDate+" "+g.Sport)
}

func (s *SQLiteStore) UpdateGame(ctx context.Context, g *model.Game) error {
	g.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE games SET gender = ?, game_time = ?, home_score = ?, away_score = ?, status = ?,
		 venue = ?, source_submission_id = ?, editable_until = ?, verified_by = ?, verified_at = ?, updated_at = ?
		 WHERE id = ?`,
		g.Gender, g.GameTime, g.HomeScore, g.AwayScore, string(g.Status), g.Venue, g.SourceSubmissionID,
		g.EditableUntil, g.VerifiedBy, g.VerifiedAt, g.UpdatedAt, g.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update game %s", g.ID)
	}
	return checkRowsAffected(res, "game", g.ID)
}

func scanSQLiteGame(row scannable) (*model.Game, error) {
	var g model.Game
	if err := row.Scan(&g.ID, &g.Sport, &g.Gender, &g.GameDate, &g.GameTime, &g.HomeSchoolID,
		&g.AwaySchoolID, &g.HomeScore, &g.AwayScore, &g.Status, &g.Venue, &g.SourceSubmissionID,
		&g.EditableUntil, &g.VerifiedBy, &g.VerifiedAt, &g.CreatedAt, &g.UpdatedAt); err != nil {
		return nil, err
	}
	return &g, nil
}

func sqliteWriteErr(err error, what string) error {
	if err == nil {
		return nil
	}
	if db.IsUniqueViolation(err) {
		return eris.Wrapf(model.ErrAlreadyExists, "%s", what)
	}
	return eris.Wrapf(err, "sqlite: insert %s", what)
}

// --- Audit log ---

func (s *SQLiteStore) AppendAudit(ctx context.Context, e *model.AuditEntry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	var changes sql.NullString
	if len(e.Changes) > 0 {
		raw, err := json.Marshal(e.Changes)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal audit changes")
		}
		changes = sql.NullString{String: string(raw), Valid: true}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_log (id, actor_id, action, target_type, target_id, changes, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.ActorID, string(e.Action), e.TargetType, e.TargetID, changes, e.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: append audit")
}

func (s *SQLiteStore) ListAudit(ctx context.Context, targetType, targetID string) ([]model.AuditEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, actor_id, action, target_type, target_id, changes, created_at
		 FROM audit_log WHERE target_type = ? AND target_id = ? ORDER BY created_at, id`,
		targetType, targetID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list audit")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.AuditEntry
	for rows.Next() {
		var e model.AuditEntry
		var changes sql.NullString
		if err := rows.Scan(&e.ID, &e.ActorID, &e.Action, &e.TargetType, &e.TargetID, &changes, &e.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan audit")
		}
		if changes.Valid {
			if err := unmarshalChanges([]byte(changes.String), &e); err != nil {
				return nil, err
			}
		}
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list audit iterate")
}

// --- Dead-letter queue ---

func (s *SQLiteStore) EnqueueDLQ(ctx context.Context, e resilience.DLQEntry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO dead_letter_queue (`+dlqColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.SubmissionID, e.Error, e.ErrorType, e.RetryCount, e.MaxRetries,
		e.NextRetryAt.UTC(), e.CreatedAt.UTC(), e.LastFailedAt.UTC(),
	)
	return eris.Wrapf(err, "sqlite: enqueue dlq for %s", e.SubmissionID)
}

func (s *SQLiteStore) ListDLQ(ctx context.Context, filter resilience.DLQFilter) ([]resilience.DLQEntry, error) {
	query, args, err := listDLQQuery(sq.Question, filter, time.Now().UTC())
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: build list dlq")
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list dlq")
	}
	defer rows.Close() //nolint:errcheck

	var out []resilience.DLQEntry
	for rows.Next() {
		var e resilience.DLQEntry
		if err := rows.Scan(&e.ID, &e.SubmissionID, &e.Error, &e.ErrorType, &e.RetryCount, &e.MaxRetries,
			&e.NextRetryAt, &e.CreatedAt, &e.LastFailedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan dlq")
		}
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list dlq iterate")
}

func (s *SQLiteStore) IncrementDLQRetry(ctx context.Context, id string, nextRetryAt time.Time, lastErr string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE dead_letter_queue SET retry_count = retry_count + 1, next_retry_at = ?, error = ?, last_failed_at = ?
		 WHERE id = ?`,
		nextRetryAt.UTC(), lastErr, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: increment dlq retry %s", id)
	}
	return checkRowsAffected(res, "dlq entry", id)
}

func (s *SQLiteStore) RemoveDLQ(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM dead_letter_queue WHERE id = ?`, id)
	return eris.Wrapf(err, "sqlite: remove dlq %s", id)
}

func (s *SQLiteStore) CountDLQ(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM dead_letter_queue`).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count dlq")
}
