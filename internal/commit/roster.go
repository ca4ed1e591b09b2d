package commit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/sports-intake/internal/model"
	"github.com/sells-group/sports-intake/internal/reconcile"
)

// CommitRoster resolves each player (backfilling existing ones) and upserts
// their roster entry for the draft's season and sport.
func (e *Engine) CommitRoster(ctx context.Context, sub *model.Submission, d *model.RosterDraft) (*model.CommitSummary, error) {
	school := firstNonEmpty(d.School, sub.Hints.School)
	if school == "" {
		return nil, invalid("roster school is required")
	}
	if len(d.Players) == 0 {
		return nil, invalid("roster has no players")
	}
	sport := reconcile.Normalize(firstNonEmpty(d.Sport, sub.Hints.Sport))
	if sport == "" {
		return nil, invalid("roster sport is required")
	}
	season := reconcile.Normalize(firstNonEmpty(d.Season, sub.Hints.Season))

	r := reconcile.NewResolver(e.store)
	sc, _, err := r.ResolveSchool(ctx, school, firstNonEmpty(d.City, sub.Hints.City))
	if err != nil {
		return nil, err
	}

	sum := &model.CommitSummary{Kind: model.KindRoster}
	for i, p := range d.Players {
		key := p.FullName()
		outcome, reason := e.commitRosterRow(ctx, r, sub, sc, season, sport, p, sum)
		if outcome == model.OutcomeFailed {
			reason = fmt.Sprintf("row %d: %s", i+1, reason)
		}
		sum.Add(i, key, outcome, reason)
	}
	sum.SchoolsCreated = r.SchoolsCreated()
	sum.PlayersCreated = r.PlayersCreated()
	sum.PlayersUpdated = r.PlayersUpdated()

	zap.L().Info("commit: roster",
		zap.String("submission_id", sub.ID),
		zap.String("school_id", sc.ID),
		zap.Int("players_created", sum.PlayersCreated),
		zap.Int("players_updated", sum.PlayersUpdated),
		zap.Int("roster_created", sum.RosterCreated),
		zap.Int("roster_updated", sum.RosterUpdated),
		zap.Int("failed", sum.Failed),
	)
	return sum, nil
}

func (e *Engine) commitRosterRow(ctx context.Context, r *reconcile.Resolver, sub *model.Submission,
	school *model.School, season, sport string, in model.RosterPlayer, sum *model.CommitSummary) (model.Outcome, string) {
	if strings.TrimSpace(in.FirstName) == "" || strings.TrimSpace(in.LastName) == "" {
		return model.OutcomeFailed, "first and last name are required"
	}

	player, playerCreated, playerUpdated, err := r.ResolvePlayer(ctx, school.ID, in)
	if err != nil {
		zap.L().Warn("commit: resolve player failed",
			zap.String("submission_id", sub.ID),
			zap.String("player", in.FullName()),
			zap.Error(err),
		)
		return model.OutcomeFailed, "could not resolve player"
	}

	entry, err := e.store.GetRosterEntry(ctx, player.ID, school.ID, season, sport)
	if err != nil {
		zap.L().Warn("commit: get roster entry failed", zap.String("submission_id", sub.ID), zap.Error(err))
		return model.OutcomeFailed, "lookup failed"
	}
	if entry == nil {
		entry = &model.RosterEntry{
			PlayerID:     player.ID,
			SchoolID:     school.ID,
			Season:       season,
			Sport:        sport,
			JerseyNumber: strings.TrimSpace(in.JerseyNumber),
			Position:     strings.TrimSpace(in.Position),
			Grade:        strings.TrimSpace(in.Grade),
			Status:       strings.TrimSpace(in.Status),
		}
		err = e.store.CreateRosterEntry(ctx, entry)
		if err == nil {
			sum.RosterCreated++
			return model.OutcomeCreated, ""
		}
		if !errors.Is(err, model.ErrAlreadyExists) {
			zap.L().Warn("commit: create roster entry failed", zap.String("submission_id", sub.ID), zap.Error(err))
			return model.OutcomeFailed, "create failed"
		}
		if entry, err = e.store.GetRosterEntry(ctx, player.ID, school.ID, season, sport); err != nil || entry == nil {
			return model.OutcomeFailed, "lookup failed"
		}
	}

	if !applyRosterUpdate(entry, in) {
		if playerCreated || playerUpdated {
			return model.OutcomeUpdated, ""
		}
		return model.OutcomeSkipped, "no changes"
	}
	if err := e.store.UpdateRosterEntry(ctx, entry); err != nil {
		zap.L().Warn("commit: update roster entry failed", zap.String("submission_id", sub.ID), zap.Error(err))
		return model.OutcomeFailed, "update failed"
	}
	sum.RosterUpdated++
	return model.OutcomeUpdated, ""
}

// applyRosterUpdate overwrites the mutable fields of a roster entry with the
// non-empty incoming values and reports whether anything changed.
func applyRosterUpdate(e *model.RosterEntry, in model.RosterPlayer) bool {
	changed := false
	set := func(dst *string, v string) {
		v = strings.TrimSpace(v)
		if v != "" && *dst != v {
			*dst = v
			changed = true
		}
	}
	set(&e.JerseyNumber, in.JerseyNumber)
	set(&e.Position, in.Position)
	set(&e.Grade, in.Grade)
	set(&e.Status, in.Status)
	return changed
}
