package extract

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/sports-intake/internal/model"
	"github.com/sells-group/sports-intake/internal/validate"
)

// Spec describes how one document kind is extracted.
type Spec struct {
	Kind   model.Kind
	Task   string
	Schema string
}

const systemPrompt = `You transcribe high school sports documents into JSON for a newsroom.
Copy exactly what the document shows. Never invent teams, players, dates or scores.
Leave a field out when it is not legible. Dates are YYYY-MM-DD.
Respond with a single JSON object that matches the schema and nothing else.`

const scoreSheetTask = `The artifact is a scoreboard photo or a score sheet for one game.
Extract both team names, their cities when shown, the final score, per-period scores
(quarters, halves, innings or sets) and the game date. Scores are integers.
Add "confidence" between 0 and 1 for how sure you are of the final score.`

const scheduleTask = `The artifact is a season schedule for one school and one sport.
Extract the school, sport, gender and season, then one entry per game with its date,
start time, opponent, opponent city when shown, location (home, away or neutral) and venue.
Keep every row, including repeated opponents.`

const rosterTask = `The artifact is a team roster.
Extract the school, sport, gender and season, then one entry per player with first name,
last name, jersey number, position, grade, height, weight and status as strings.`

var specs = map[model.Kind]Spec{
	model.KindScoreSheet: {Kind: model.KindScoreSheet, Task: scoreSheetTask},
	model.KindSchedule:   {Kind: model.KindSchedule, Task: scheduleTask},
	model.KindRoster:     {Kind: model.KindRoster, Task: rosterTask},
}

// SpecFor returns the spec for kind with its schema attached.
func SpecFor(kind model.Kind) (Spec, error) {
	s, ok := specs[kind]
	if !ok {
		return Spec{}, eris.Wrapf(model.ErrInvalidInput, "extract: unknown kind %q", kind)
	}
	schema, err := validate.Schema(kind)
	if err != nil {
		return Spec{}, err
	}
	s.Schema = schema
	return s, nil
}

// Prompt renders the user prompt for a request. Spreadsheet and text
// artifacts are inlined as body.
func (s Spec) Prompt(hints model.Hints, body string) string {
	var b strings.Builder
	b.WriteString(s.Task)
	b.WriteString("\n\nJSON schema:\n")
	b.WriteString(s.Schema)

	if h := renderHints(hints); h != "" {
		b.WriteString("\n\nContext from the uploader (use it when the document is silent):\n")
		b.WriteString(h)
	}
	if body != "" {
		b.WriteString("\n\nDocument contents:\n")
		b.WriteString(body)
	}
	return b.String()
}

func renderHints(h model.Hints) string {
	var lines []string
	add := func(k, v string) {
		if v = strings.TrimSpace(v); v != "" {
			lines = append(lines, fmt.Sprintf("- %s: %s", k, v))
		}
	}
	add("sport", h.Sport)
	add("gender", h.Gender)
	add("season", h.Season)
	add("school", h.School)
	add("city", h.City)
	return strings.Join(lines, "\n")
}
