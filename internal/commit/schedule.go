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

// CommitSchedule creates one scheduled game per draft row. Rows whose
// (date, sport, home, away) key already exists are skipped, so confirming
// the same schedule twice creates nothing the second time.
func (e *Engine) CommitSchedule(ctx context.Context, sub *model.Submission, d *model.ScheduleDraft) (*model.CommitSummary, error) {
	school := firstNonEmpty(d.School, sub.Hints.School)
	if school == "" {
		return nil, invalid("schedule school is required")
	}
	if len(d.Games) == 0 {
		return nil, invalid("schedule has no games")
	}
	sport := reconcile.Normalize(firstNonEmpty(d.Sport, sub.Hints.Sport))
	if sport == "" {
		return nil, invalid("schedule sport is required")
	}
	gender := firstNonEmpty(d.Gender, sub.Hints.Gender)

	r := reconcile.NewResolver(e.store)
	home, _, err := r.ResolveSchool(ctx, school, firstNonEmpty(d.City, sub.Hints.City))
	if err != nil {
		return nil, err
	}

	sum := &model.CommitSummary{Kind: model.KindSchedule}
	for i, row := range d.Games {
		key := fmt.Sprintf("%s vs %s", strings.TrimSpace(row.Date), strings.TrimSpace(row.Opponent))
		outcome, reason := e.commitScheduleRow(ctx, r, sub, home, sport, gender, row)
		switch outcome {
		case model.OutcomeCreated:
			sum.GamesCreated++
		case model.OutcomeSkipped:
			sum.GamesSkipped++
			reason = key + ": " + reason
		case model.OutcomeFailed:
			reason = fmt.Sprintf("row %d: %s", i+1, reason)
		}
		sum.Add(i, key, outcome, reason)
	}
	sum.SchoolsCreated = r.SchoolsCreated()

	zap.L().Info("commit: schedule",
		zap.String("submission_id", sub.ID),
		zap.String("school_id", home.ID),
		zap.Int("created", sum.GamesCreated),
		zap.Int("skipped", sum.GamesSkipped),
		zap.Int("failed", sum.Failed),
		zap.Int("schools_created", sum.SchoolsCreated),
	)
	return sum, nil
}

func (e *Engine) commitScheduleRow(ctx context.Context, r *reconcile.Resolver, sub *model.Submission,
	school *model.School, sport, gender string, row model.ScheduleGame) (model.Outcome, string) {
	if !validDate(row.Date) {
		return model.OutcomeFailed, fmt.Sprintf("invalid date %q", row.Date)
	}
	if strings.TrimSpace(row.Opponent) == "" {
		return model.OutcomeFailed, "opponent is required"
	}

	opp, _, err := r.ResolveSchool(ctx, row.Opponent, row.OpponentCity)
	if err != nil {
		zap.L().Warn("commit: resolve opponent failed",
			zap.String("submission_id", sub.ID),
			zap.String("opponent", row.Opponent),
			zap.Error(err),
		)
		return model.OutcomeFailed, "could not resolve opponent " + row.Opponent
	}
	if opp.ID == school.ID {
		return model.OutcomeFailed, "opponent is the school itself"
	}

	g := &model.Game{
		Sport:              sport,
		Gender:             gender,
		GameDate:           strings.TrimSpace(row.Date),
		GameTime:           strings.TrimSpace(row.Time),
		HomeSchoolID:       school.ID,
		AwaySchoolID:       opp.ID,
		Status:             model.GameScheduled,
		Venue:              strings.TrimSpace(row.Venue),
		SourceSubmissionID: sub.ID,
	}
	if model.Location(strings.ToLower(string(row.Location))) == model.LocationAway {
		g.HomeSchoolID, g.AwaySchoolID = opp.ID, school.ID
	}

	// TODO: a second game between the same schools on the same date is
	// skipped. Add a game number to GameKey and the unique index if
	// double-headers need to be supported.
	existing, err := e.store.FindGame(ctx, g.Key())
	if err != nil {
		zap.L().Warn("commit: find game failed", zap.String("submission_id", sub.ID), zap.Error(err))
		return model.OutcomeFailed, "lookup failed"
	}
	if existing != nil {
		return model.OutcomeSkipped, reasonExists
	}

	err = e.store.CreateGame(ctx, g)
	if errors.Is(err, model.ErrAlreadyExists) {
		return model.OutcomeSkipped, reasonExists
	}
	if err != nil {
		zap.L().Warn("commit: create game failed", zap.String("submission_id", sub.ID), zap.Error(err))
		return model.OutcomeFailed, "create failed"
	}
	return model.OutcomeCreated, ""
}
