package model

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
)

// Location describes where a scheduled game is played relative to the school.
type Location string

const (
	LocationHome    Location = "home"
	LocationAway    Location = "away"
	LocationNeutral Location = "neutral"
)

// PeriodScore holds one period (quarter, half, inning) of a score sheet.
type PeriodScore struct {
	Label string `json:"label"`
	Home  *int   `json:"home,omitempty"`
	Away  *int   `json:"away,omitempty"`
}

// ScoreSheetDraft is the structured content of a scoreboard photo or score sheet.
type ScoreSheetDraft struct {
	Sport      string        `json:"sport,omitempty"`
	Gender     string        `json:"gender,omitempty"`
	GameDate   string        `json:"game_date,omitempty"`
	HomeTeam   string        `json:"home_team,omitempty"`
	HomeCity   string        `json:"home_city,omitempty"`
	AwayTeam   string        `json:"away_team,omitempty"`
	AwayCity   string        `json:"away_city,omitempty"`
	HomeScore  *int          `json:"home_score,omitempty"`
	AwayScore  *int          `json:"away_score,omitempty"`
	Periods    []PeriodScore `json:"periods,omitempty"`
	Venue      string        `json:"venue,omitempty"`
	Notes      string        `json:"notes,omitempty"`
	Confidence *float64      `json:"confidence,omitempty"`
}

// ScheduleGame is one row of an extracted schedule.
type ScheduleGame struct {
	Date         string   `json:"date,omitempty"`
	Time         string   `json:"time,omitempty"`
	Opponent     string   `json:"opponent,omitempty"`
	OpponentCity string   `json:"opponent_city,omitempty"`
	Location     Location `json:"location,omitempty"`
	Venue        string   `json:"venue,omitempty"`
}

// ScheduleDraft is the structured content of a schedule document.
type ScheduleDraft struct {
	School string         `json:"school,omitempty"`
	City   string         `json:"city,omitempty"`
	Sport  string         `json:"sport,omitempty"`
	Gender string         `json:"gender,omitempty"`
	Season string         `json:"season,omitempty"`
	Games  []ScheduleGame `json:"games,omitempty"`
}

// RosterPlayer is one row of an extracted roster.
type RosterPlayer struct {
	FirstName    string `json:"first_name,omitempty"`
	LastName     string `json:"last_name,omitempty"`
	JerseyNumber string `json:"jersey_number,omitempty"`
	Position     string `json:"position,omitempty"`
	Grade        string `json:"grade,omitempty"`
	Height       string `json:"height,omitempty"`
	Weight       string `json:"weight,omitempty"`
	Status       string `json:"status,omitempty"`
}

// FullName joins first and last name.
func (p RosterPlayer) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// RosterDraft is the structured content of a roster sheet.
type RosterDraft struct {
	School  string         `json:"school,omitempty"`
	City    string         `json:"city,omitempty"`
	Sport   string         `json:"sport,omitempty"`
	Gender  string         `json:"gender,omitempty"`
	Season  string         `json:"season,omitempty"`
	Players []RosterPlayer `json:"players,omitempty"`
}

// DecodeDraft unmarshals a raw payload into the draft type for kind.
func DecodeDraft(kind Kind, raw json.RawMessage) (any, error) {
	var (
		dst any
		err error
	)
	switch kind {
	case KindScoreSheet:
		var d ScoreSheetDraft
		err = json.Unmarshal(raw, &d)
		dst = &d
	case KindSchedule:
		var d ScheduleDraft
		err = json.Unmarshal(raw, &d)
		dst = &d
	case KindRoster:
		var d RosterDraft
		err = json.Unmarshal(raw, &d)
		dst = &d
	default:
		return nil, eris.Wrapf(ErrInvalidInput, "unknown document kind %q", kind)
	}
	if err != nil {
		return nil, eris.Wrapf(ErrInvalidInput, "decode %s draft: %v", kind, err)
	}
	return dst, nil
}
