// Package commit materializes confirmed drafts into canonical games and
// roster entries. Schedule and roster commits are row-by-row with no
// enclosing transaction; each row's outcome is reported in the summary.
package commit

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/sports-intake/internal/config"
	"github.com/sells-group/sports-intake/internal/model"
	"github.com/sells-group/sports-intake/internal/reconcile"
)

// Store is the part of the canonical store the engine writes to.
type Store interface {
	reconcile.Store

	GetRosterEntry(ctx context.Context, playerID, schoolID, season, sport string) (*model.RosterEntry, error)
	CreateRosterEntry(ctx context.Context, e *model.RosterEntry) error
	UpdateRosterEntry(ctx context.Context, e *model.RosterEntry) error

	FindGame(ctx context.Context, key model.GameKey) (*model.Game, error)
	GetGame(ctx context.Context, id string) (*model.Game, error)
	CreateGame(ctx context.Context, g *model.Game) error
	UpdateGame(ctx context.Context, g *model.Game) error
}

// DefaultEditWindow is how long an approved game stays routinely editable.
const DefaultEditWindow = 48 * time.Hour

const dateLayout = "2006-01-02"

// reasonExists is the skip reason for rows whose key is already stored.
const reasonExists = "already exists"

// Engine commits drafts to the canonical store.
type Engine struct {
	store      Store
	editWindow time.Duration
}

// New creates an engine. A non-positive edit window falls back to 48 hours.
func New(store Store, cfg config.CommitConfig) *Engine {
	window := time.Duration(cfg.EditWindowHours) * time.Hour
	if window <= 0 {
		window = DefaultEditWindow
	}
	return &Engine{store: store, editWindow: window}
}

// EditWindow returns the configured edit window.
func (e *Engine) EditWindow() time.Duration { return e.editWindow }

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func validDate(s string) bool {
	_, err := time.Parse(dateLayout, strings.TrimSpace(s))
	return err == nil
}

func invalid(format string, args ...any) error {
	return eris.Wrapf(model.ErrInvalidInput, "commit: "+format, args...)
}
