package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/sports-intake/internal/db"
	"github.com/sells-group/sports-intake/internal/model"
)

// --- Schools ---

func (s *PostgresStore) FindSchools(ctx context.Context, normalizedName string) ([]model.School, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, normalized_name, city, state, created_at
		 FROM schools WHERE normalized_name = $1 ORDER BY created_at, id`,
		normalizedName,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: find schools")
	}
	defer rows.Close()

	var out []model.School
	for rows.Next() {
		var sc model.School
		if err := rows.Scan(&sc.ID, &sc.Name, &sc.NormalizedName, &sc.City, &sc.State, &sc.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan school")
		}
		out = append(out, sc)
	}
	return out, eris.Wrap(rows.Err(), "postgres: find schools iterate")
}

func (s *PostgresStore) CreateSchool(ctx context.Context, sc *model.School) error {
	if sc.ID == "" {
		sc.ID = uuid.New().String()
	}
	sc.CreatedAt = time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO schools (id, name, normalized_name, city, state, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		sc.ID, sc.Name, sc.NormalizedName, sc.City, sc.State, sc.CreatedAt,
	)
	return pgWriteErr(err, "school "+sc.NormalizedName)
}

// --- Players ---

func (s *PostgresStore) FindPlayer(ctx context.Context, schoolID, normalizedName string) (*model.Player, error) {
	var p model.Player
	err := s.pool.QueryRow(ctx,
		`SELECT id, school_id, first_name, last_name, normalized_name, jersey_number, position, grade, height, weight, created_at, updated_at
		 FROM players WHERE school_id = $1 AND normalized_name = $2`,
		schoolID, normalizedName,
	).Scan(&p.ID, &p.SchoolID, &p.FirstName, &p.LastName, &p.NormalizedName, &p.JerseyNumber,
		&p.Position, &p.Grade, &p.Height, &p.Weight, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: find player")
	}
	return &p, nil
}

func (s *PostgresStore) CreatePlayer(ctx context.Context, p *model.Player) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now

	_, err := s.pool.Exec(ctx,
		`INSERT INTO players (id, school_id, first_name, last_name, normalized_name, jersey_number, position, grade, height, weight, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		p.ID, p.SchoolID, p.FirstName, p.LastName, p.NormalizedName, p.JerseyNumber,
		p.Position, p.Grade, p.Height, p.Weight, now, now,
	)
	return pgWriteErr(err, "player "+p.NormalizedName)
}

func (s *PostgresStore) UpdatePlayer(ctx context.Context, p *model.Player) error {
	p.UpdatedAt = time.Now().UTC()
	tag, err := s.pool.Exec(ctx,
		`UPDATE players SET first_name = $1, last_name = $2, jersey_number = $3, position = $4,
		 grade = $5, height = $6, weight = $7, updated_at = $8 WHERE id = $9`,
		p.FirstName, p.LastName, p.JerseyNumber, p.Position, p.Grade, p.Height, p.Weight, p.UpdatedAt, p.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update player %s", p.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(model.ErrNotFound, "player %s", p.ID)
	}
	return nil
}

// --- Roster entries ---

func (s *PostgresStore) GetRosterEntry(ctx context.Context, playerID, schoolID, season, sport string) (*model.RosterEntry, error) {
	var e model.RosterEntry
	err := s.pool.QueryRow(ctx,
		`SELECT id, player_id, school_id, season, sport, jersey_number, position, grade, status, updated_at
		 FROM roster_entries WHERE player_id = $1 AND school_id = $2 AND season = $3 AND sport = $4`,
		playerID, schoolID, season, sport,
	).Scan(&e.ID, &e.PlayerID, &e.SchoolID, &e.Season, &e.Sport, &e.JerseyNumber, &e.Position,
		&e.Grade, &e.Status, &e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get roster entry")
	}
	return &e, nil
}

func (s *PostgresStore) CreateRosterEntry(ctx context.Context, e *model.RosterEntry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	e.UpdatedAt = time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO roster_entries (id, player_id, school_id, season, sport, jersey_number, position, grade, status, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		e.ID, e.PlayerID, e.SchoolID, e.Season, e.Sport, e.JerseyNumber, e.Position, e.Grade, e.Status, e.UpdatedAt,
	)
	return pgWriteErr(err, "roster entry for player "+e.PlayerID)
}

func (s *PostgresStore) UpdateRosterEntry(ctx context.Context, e *model.RosterEntry) error {
	e.UpdatedAt = time.Now().UTC()
	tag, err := s.pool.Exec(ctx,
		`UPDATE roster_entries SET jersey_number = $1, position = $2, grade = $3, status = $4, updated_at = $5
		 WHERE id = $6`,
		e.JerseyNumber, e.Position, e.Grade, e.Status, e.UpdatedAt, e.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update roster entry %s", e.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(model.ErrNotFound, "roster entry %s", e.ID)
	}
	return nil
}

// --- Games ---

func (s *PostgresStore) FindGame(ctx context.Context, key model.GameKey) (*model.Game, error) {
	g, err := scanPgGame(s.pool.QueryRow(ctx,
		`SELECT `+gameColumns+` FROM games
		 WHERE game_date = $1 AND sport = $2 AND home_school_id = $3 AND away_school_id = $4`,
		key.GameDate, key.Sport, key.HomeSchoolID, key.AwaySchoolID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: find game")
	}
	return g, nil
}

func (s *PostgresStore) GetGame(ctx context.Context, id string) (*model.Game, error) {
	g, err := scanPgGame(s.pool.QueryRow(ctx, `SELECT `+gameColumns+` FROM games WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(model.ErrNotFound, "game %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get game %s", id)
	}
	return g, nil
}

func (s *PostgresStore) CreateGame(ctx context.Context, g *model.Game) error {
	if g.ID == "" {
		g.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	g.CreatedAt, g.UpdatedAt = now, now

	_, err := s.pool.Exec(ctx,
		`INSERT INTO games (`+gameColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		gameArgs(g)...,
	)
	return pgWriteErr(err, "game "+g.GameDate+" "+g.Sport)
}

func (s *PostgresStore) UpdateGame(ctx context.Context, g *model.Game) error {
	g.UpdatedAt = time.Now().UTC()
	tag, err := s.pool.Exec(ctx,
		`UPDATE games SET gender = $1, game_time = $2, home_score = $3, away_score = $4, status = $5,
		 venue = $6, source_submission_id = $7, editable_until = $8, verified_by = $9, verified_at = $10, updated_at = $11
		 WHERE id = $12`,
		g.Gender, g.GameTime, g.HomeScore, g.AwayScore, string(g.Status), g.Venue, g.SourceSubmissionID,
		g.EditableUntil, g.VerifiedBy, g.VerifiedAt, g.UpdatedAt, g.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update game %s", g.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(model.ErrNotFound, "game %s", g.ID)
	}
	return nil
}

// gameArgs returns insert arguments in gameColumns order.
func gameArgs(g *model.Game) []any {
	return []any{
		g.ID, g.Sport, g.Gender, g.GameDate, g.GameTime, g.HomeSchoolID, g.AwaySchoolID,
		g.HomeScore, g.AwayScore, string(g.Status), g.Venue, g.SourceSubmissionID,
		g.EditableUntil, g.VerifiedBy, g.VerifiedAt, g.CreatedAt, g.UpdatedAt,
	}
}

func scanPgGame(row pgx.Row) (*model.Game, error) {
	var g model.Game
	if err := row.Scan(&g.ID, &g.Sport, &g.Gender, &g.GameDate, &g.GameTime, &g.HomeSchoolID,
		&g.AwaySchoolID, &g.HomeScore, &g.AwayScore, &g.Status, &g.Venue, &g.SourceSubmissionID,
		&g.EditableUntil, &g.VerifiedBy, &g.VerifiedAt, &g.CreatedAt, &g.UpdatedAt); err != nil {
		return nil, err
	}
	return &g, nil
}

// pgWriteErr maps duplicate-key failures to model.ErrAlreadyExists.
func pgWriteErr(err error, what string) error {
	if err == nil {
		return nil
	}
	if db.IsUniqueViolation(err) {
		return eris.Wrapf(model.ErrAlreadyExists, "%s", what)
	}
	return eris.Wrapf(err, "postgres: insert %s", what)
}
