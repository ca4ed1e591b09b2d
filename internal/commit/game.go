package commit

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/sports-intake/internal/model"
	"github.com/sells-group/sports-intake/internal/reconcile"
)

// ApproveScoreSheet creates (or finalizes) the game a score sheet reports,
// stamping it editable until now plus the edit window.
func (e *Engine) ApproveScoreSheet(ctx context.Context, sub *model.Submission, d *model.ScoreSheetDraft, now time.Time) (*model.ApproveResult, error) {
	if strings.TrimSpace(d.HomeTeam) == "" || strings.TrimSpace(d.AwayTeam) == "" {
		return nil, invalid("both team names are required")
	}
	if d.HomeScore == nil || d.AwayScore == nil {
		return nil, invalid("both scores are required")
	}
	if *d.HomeScore < 0 || *d.AwayScore < 0 {
		return nil, invalid("scores cannot be negative")
	}
	if !validDate(d.GameDate) {
		return nil, invalid("invalid game date %q", d.GameDate)
	}
	sport := reconcile.Normalize(firstNonEmpty(d.Sport, sub.Hints.Sport))
	if sport == "" {
		return nil, invalid("sport is required")
	}
	if reconcile.Normalize(d.HomeTeam) == reconcile.Normalize(d.AwayTeam) &&
		reconcile.Normalize(d.HomeCity) == reconcile.Normalize(d.AwayCity) {
		return nil, invalid("home and away are the same school")
	}

	r := reconcile.NewResolver(e.store)
	home, _, err := r.ResolveSchool(ctx, d.HomeTeam, d.HomeCity)
	if err != nil {
		return nil, err
	}
	away, _, err := r.ResolveSchool(ctx, d.AwayTeam, d.AwayCity)
	if err != nil {
		return nil, err
	}
	if home.ID == away.ID {
		return nil, invalid("home and away are the same school")
	}

	until := now.UTC().Add(e.editWindow)
	g := &model.Game{
		Sport:              sport,
		Gender:             firstNonEmpty(d.Gender, sub.Hints.Gender),
		GameDate:           strings.TrimSpace(d.GameDate),
		HomeSchoolID:       home.ID,
		AwaySchoolID:       away.ID,
		HomeScore:          d.HomeScore,
		AwayScore:          d.AwayScore,
		Status:             model.GameFinal,
		Venue:              strings.TrimSpace(d.Venue),
		SourceSubmissionID: sub.ID,
		EditableUntil:      &until,
	}
	res := &model.ApproveResult{SchoolsCreated: r.SchoolsCreated()}

	existing, err := e.store.FindGame(ctx, g.Key())
	if err != nil {
		return nil, eris.Wrap(err, "commit: find game")
	}
	if existing == nil {
		err = e.store.CreateGame(ctx, g)
		if err == nil {
			res.Game, res.Created = g, true
			zap.L().Info("commit: approved score sheet",
				zap.String("submission_id", sub.ID),
				zap.String("game_id", g.ID),
				zap.Int("home_score", *g.HomeScore),
				zap.Int("away_score", *g.AwayScore),
			)
			return res, nil
		}
		if !errors.Is(err, model.ErrAlreadyExists) {
			return nil, eris.Wrap(err, "commit: create game")
		}
		if existing, err = e.store.FindGame(ctx, g.Key()); err != nil || existing == nil {
			return nil, eris.Wrapf(model.ErrAlreadyExists, "commit: re-read game: %v", err)
		}
	}

	switch {
	case existing.Status == model.GameFinal && existing.SourceSubmissionID == sub.ID:
		res.Game = existing
		return res, nil
	case existing.Status == model.GameFinal:
		return nil, eris.Wrapf(model.ErrAlreadyExists, "commit: game %s already has a final score", existing.ID)
	}

	existing.HomeScore = g.HomeScore
	existing.AwayScore = g.AwayScore
	existing.Status = model.GameFinal
	existing.SourceSubmissionID = sub.ID
	existing.EditableUntil = g.EditableUntil
	if existing.Gender == "" {
		existing.Gender = g.Gender
	}
	if existing.Venue == "" {
		existing.Venue = g.Venue
	}
	if err := e.store.UpdateGame(ctx, existing); err != nil {
		return nil, eris.Wrapf(err, "commit: finalize game %s", existing.ID)
	}
	zap.L().Info("commit: finalized scheduled game",
		zap.String("submission_id", sub.ID),
		zap.String("game_id", existing.ID),
	)
	res.Game = existing
	return res, nil
}

// Correction reports a score change.
type Correction struct {
	Game          *model.Game `json:"game"`
	PrevHomeScore *int        `json:"prev_home_score,omitempty"`
	PrevAwayScore *int        `json:"prev_away_score,omitempty"`
	Override      bool        `json:"override"`
}

// CorrectGameScore changes the score of a final game. Inside the edit window
// this is a routine edit; after it only admins may correct, the reason is
// required and the change is flagged as an override. Ownership of the game
// is checked by the caller.
func (e *Engine) CorrectGameScore(ctx context.Context, actor model.Actor, gameID string, home, away int, reason string, now time.Time) (*Correction, error) {
	if home < 0 || away < 0 {
		return nil, invalid("scores cannot be negative")
	}
	g, err := e.store.GetGame(ctx, gameID)
	if err != nil {
		return nil, eris.Wrap(err, "commit: correct score")
	}
	if g.Status != model.GameFinal {
		return nil, eris.Wrapf(model.ErrInvalidState, "commit: game %s is %s", g.ID, g.Status)
	}

	c := &Correction{PrevHomeScore: g.HomeScore, PrevAwayScore: g.AwayScore}
	if !g.Editable(now) {
		if !actor.IsAdmin() {
			return nil, eris.Wrapf(model.ErrEditWindowClosed, "commit: game %s", g.ID)
		}
		if strings.TrimSpace(reason) == "" {
			return nil, invalid("a reason is required to override a closed game")
		}
		c.Override = true
	}

	g.HomeScore, g.AwayScore = &home, &away
	if err := e.store.UpdateGame(ctx, g); err != nil {
		return nil, eris.Wrapf(err, "commit: update game %s", g.ID)
	}
	c.Game = g
	return c, nil
}

// VerifyGame marks a game as checked by an admin.
func (e *Engine) VerifyGame(ctx context.Context, actor model.Actor, gameID string, now time.Time) (*model.Game, error) {
	if !actor.IsAdmin() {
		return nil, eris.Wrap(model.ErrForbidden, "commit: verify requires admin")
	}
	g, err := e.store.GetGame(ctx, gameID)
	if err != nil {
		return nil, eris.Wrap(err, "commit: verify game")
	}
	at := now.UTC()
	g.VerifiedBy = actor.ID
	g.VerifiedAt = &at
	if err := e.store.UpdateGame(ctx, g); err != nil {
		return nil, eris.Wrapf(err, "commit: verify game %s", g.ID)
	}
	return g, nil
}
