package model

// Outcome is the per-row result of a commit.
type Outcome string

const (
	OutcomeCreated Outcome = "created"
	OutcomeUpdated Outcome = "updated"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

// RowOutcome reports what happened to one constituent row of a draft.
type RowOutcome struct {
	Index   int     `json:"index"`
	Key     string  `json:"key"`
	Outcome Outcome `json:"outcome"`
	Reason  string  `json:"reason,omitempty"`
}

// CommitSummary reports the counts of a confirm call.
type CommitSummary struct {
	Kind           Kind         `json:"kind"`
	GamesCreated   int          `json:"games_created"`
	GamesSkipped   int          `json:"games_skipped"`
	GamesUpdated   int          `json:"games_updated"`
	PlayersCreated int          `json:"players_created"`
	PlayersUpdated int          `json:"players_updated"`
	RosterCreated  int          `json:"roster_created"`
	RosterUpdated  int          `json:"roster_updated"`
	SchoolsCreated int          `json:"schools_created"`
	Failed         int          `json:"failed"`
	Rows           []RowOutcome `json:"rows"`
}

// Add records a row outcome.
func (s *CommitSummary) Add(index int, key string, outcome Outcome, reason string) {
	s.Rows = append(s.Rows, RowOutcome{Index: index, Key: key, Outcome: outcome, Reason: reason})
	if outcome == OutcomeFailed {
		s.Failed++
	}
}

// Reasons returns the reasons of all rows with the given outcome.
func (s *CommitSummary) Reasons(outcome Outcome) []string {
	var out []string
	for _, r := range s.Rows {
		if r.Outcome == outcome && r.Reason != "" {
			out = append(out, r.Reason)
		}
	}
	return out
}

// ApproveResult is returned by score-sheet approval.
type ApproveResult struct {
	Game           *Game `json:"game"`
	Created        bool  `json:"created"`
	SchoolsCreated int   `json:"schools_created"`
}
