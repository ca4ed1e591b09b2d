package reconcile

import (
	"strings"

	"github.com/sells-group/sports-intake/internal/model"
)

// Backfill fills the empty fields of existing from incoming and never
// overwrites a populated one. It reports whether anything changed.
func Backfill(existing *model.Player, incoming model.RosterPlayer) bool {
	changed := false
	fill := func(dst *string, v string) {
		v = strings.TrimSpace(v)
		if *dst == "" && v != "" {
			*dst = v
			changed = true
		}
	}
	fill(&existing.JerseyNumber, incoming.JerseyNumber)
	fill(&existing.Position, incoming.Position)
	fill(&existing.Grade, incoming.Grade)
	fill(&existing.Height, incoming.Height)
	fill(&existing.Weight, incoming.Weight)
	return changed
}
