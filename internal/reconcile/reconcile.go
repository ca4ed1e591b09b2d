// Package reconcile resolves free-text school and player names in a
// confirmed draft to canonical rows, creating the ones that are missing.
package reconcile

import (
	"context"
	"errors"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/sports-intake/internal/model"
)

// Store is the part of the canonical store the resolver reads and writes.
type Store interface {
	FindSchools(ctx context.Context, normalizedName string) ([]model.School, error)
	CreateSchool(ctx context.Context, s *model.School) error
	FindPlayer(ctx context.Context, schoolID, normalizedName string) (*model.Player, error)
	CreatePlayer(ctx context.Context, p *model.Player) error
	UpdatePlayer(ctx context.Context, p *model.Player) error
}

// Resolver resolves names for one confirm call. Repeated names within the
// call resolve to the same row without another lookup.
type Resolver struct {
	store          Store
	schools        map[string]*model.School
	schoolsCreated int
	playersCreated int
	playersUpdated int
}

// NewResolver creates a resolver with an empty per-call cache.
func NewResolver(store Store) *Resolver {
	return &Resolver{store: store, schools: make(map[string]*model.School)}
}

// SchoolsCreated returns how many schools this resolver created.
func (r *Resolver) SchoolsCreated() int { return r.schoolsCreated }

// PlayersCreated returns how many players this resolver created.
func (r *Resolver) PlayersCreated() int { return r.playersCreated }

// PlayersUpdated returns how many existing players were backfilled.
func (r *Resolver) PlayersUpdated() int { return r.playersUpdated }

// ResolveSchool matches name (and city when known) to a canonical school,
// creating one when nothing matches. It reports whether the school was
// created by this call.
func (r *Resolver) ResolveSchool(ctx context.Context, name, city string) (*model.School, bool, error) {
	norm := Normalize(name)
	if norm == "" {
		return nil, false, eris.Wrap(model.ErrInvalidInput, "reconcile: school name is required")
	}
	city = strings.Join(strings.Fields(city), " ")
	key := norm + "|" + Normalize(city)
	if s, ok := r.schools[key]; ok {
		return s, false, nil
	}

	candidates, err := r.store.FindSchools(ctx, norm)
	if err != nil {
		return nil, false, eris.Wrapf(err, "reconcile: find school %q", name)
	}
	if s := pickSchool(candidates, city); s != nil {
		zap.L().Debug("reconcile: matched school",
			zap.String("name", name),
			zap.String("school_id", s.ID),
		)
		r.schools[key] = s
		return s, false, nil
	}

	s := &model.School{Name: strings.Join(strings.Fields(name), " "), NormalizedName: norm, City: city}
	err = r.store.CreateSchool(ctx, s)
	if errors.Is(err, model.ErrAlreadyExists) {
		// A concurrent confirm created it first.
		candidates, err = r.store.FindSchools(ctx, norm)
		if err != nil {
			return nil, false, eris.Wrapf(err, "reconcile: re-read school %q", name)
		}
		if winner := pickSchool(candidates, city); winner != nil {
			r.schools[key] = winner
			return winner, false, nil
		}
		return nil, false, eris.Wrapf(model.ErrAlreadyExists, "reconcile: school %q", name)
	}
	if err != nil {
		return nil, false, eris.Wrapf(err, "reconcile: create school %q", name)
	}

	zap.L().Info("reconcile: created school",
		zap.String("name", s.Name),
		zap.String("city", s.City),
		zap.String("school_id", s.ID),
	)
	r.schoolsCreated++
	r.schools[key] = s
	return s, true, nil
}

// pickSchool chooses among same-name candidates. With a city, an exact city
// match wins over a candidate with no city; candidates in other cities are
// different schools. Without a city, a candidate with no city is preferred.
func pickSchool(candidates []model.School, city string) *model.School {
	if len(candidates) == 0 {
		return nil
	}
	var blank *model.School
	for i := range candidates {
		c := &candidates[i]
		if c.City == "" && blank == nil {
			blank = c
		}
		if city != "" && Normalize(c.City) == Normalize(city) {
			return c
		}
	}
	if blank != nil {
		return blank
	}
	if city == "" {
		return &candidates[0]
	}
	return nil
}

// ResolvePlayer matches a roster row to a player of the school by full
// name. A match is backfilled and persisted only when a field changed.
func (r *Resolver) ResolvePlayer(ctx context.Context, schoolID string, in model.RosterPlayer) (p *model.Player, created, updated bool, err error) {
	norm := Normalize(in.FullName())
	if norm == "" {
		return nil, false, false, eris.Wrap(model.ErrInvalidInput, "reconcile: player name is required")
	}

	p, err = r.store.FindPlayer(ctx, schoolID, norm)
	if err != nil {
		return nil, false, false, eris.Wrapf(err, "reconcile: find player %q", in.FullName())
	}
	if p == nil {
		p = newPlayer(schoolID, norm, in)
		err = r.store.CreatePlayer(ctx, p)
		if err == nil {
			r.playersCreated++
			return p, true, false, nil
		}
		if !errors.Is(err, model.ErrAlreadyExists) {
			return nil, false, false, eris.Wrapf(err, "reconcile: create player %q", in.FullName())
		}
		if p, err = r.store.FindPlayer(ctx, schoolID, norm); err != nil || p == nil {
			return nil, false, false, eris.Wrapf(model.ErrAlreadyExists, "reconcile: re-read player %q: %v", in.FullName(), err)
		}
	}

	if !Backfill(p, in) {
		return p, false, false, nil
	}
	if err := r.store.UpdatePlayer(ctx, p); err != nil {
		return nil, false, false, eris.Wrapf(err, "reconcile: backfill player %s", p.ID)
	}
	r.playersUpdated++
	return p, false, true, nil
}

func newPlayer(schoolID, norm string, in model.RosterPlayer) *model.Player {
	return &model.Player{
		SchoolID:       schoolID,
		FirstName:      strings.TrimSpace(in.FirstName),
		LastName:       strings.TrimSpace(in.LastName),
		NormalizedName: norm,
		JerseyNumber:   strings.TrimSpace(in.JerseyNumber),
		Position:       strings.TrimSpace(in.Position),
		Grade:          strings.TrimSpace(in.Grade),
		Height:         strings.TrimSpace(in.Height),
		Weight:         strings.TrimSpace(in.Weight),
	}
}
