package model

import "time"

// GameStatus is the lifecycle state of a canonical game.
type GameStatus string

const (
	GameScheduled GameStatus = "scheduled"
	GameFinal     GameStatus = "final"
)

// School is a canonical school or team.
type School struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	NormalizedName string    `json:"normalized_name"`
	City           string    `json:"city,omitempty"`
	State          string    `json:"state,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Player is a canonical player belonging to a school.
type Player struct {
	ID             string    `json:"id"`
	SchoolID       string    `json:"school_id"`
	FirstName      string    `json:"first_name"`
	LastName       string    `json:"last_name"`
	NormalizedName string    `json:"normalized_name"`
	JerseyNumber   string    `json:"jersey_number,omitempty"`
	Position       string    `json:"position,omitempty"`
	Grade          string    `json:"grade,omitempty"`
	Height         string    `json:"height,omitempty"`
	Weight         string    `json:"weight,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// RosterEntry places a player on a school's roster for one season and sport.
// Unique by (PlayerID, SchoolID, Season, Sport); season and sport are
// case-folded.
type RosterEntry struct {
	ID           string    `json:"id"`
	PlayerID     string    `json:"player_id"`
	SchoolID     string    `json:"school_id"`
	Season       string    `json:"season"`
	Sport        string    `json:"sport"`
	JerseyNumber string    `json:"jersey_number,omitempty"`
	Position     string    `json:"position,omitempty"`
	Grade        string    `json:"grade,omitempty"`
	Status       string    `json:"status,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// GameKey is the natural composite key of a game. Sport is stored
// case-folded so keys compare exactly.
type GameKey struct {
	GameDate     string
	Sport        string
	HomeSchoolID string
	AwaySchoolID string
}

// Game is a canonical game between two schools. Unique by GameKey.
type Game struct {
	ID                 string     `json:"id"`
	Sport              string     `json:"sport"`
	Gender             string     `json:"gender,omitempty"`
	GameDate           string     `json:"game_date"`
	GameTime           string     `json:"game_time,omitempty"`
	HomeSchoolID       string     `json:"home_school_id"`
	AwaySchoolID       string     `json:"away_school_id"`
	HomeScore          *int       `json:"home_score,omitempty"`
	AwayScore          *int       `json:"away_score,omitempty"`
	Status             GameStatus `json:"status"`
	Venue              string     `json:"venue,omitempty"`
	SourceSubmissionID string     `json:"source_submission_id,omitempty"`
	EditableUntil      *time.Time `json:"editable_until,omitempty"`
	VerifiedBy         string     `json:"verified_by,omitempty"`
	VerifiedAt         *time.Time `json:"verified_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// Key returns the game's composite key.
func (g *Game) Key() GameKey {
	return GameKey{GameDate: g.GameDate, Sport: g.Sport, HomeSchoolID: g.HomeSchoolID, AwaySchoolID: g.AwaySchoolID}
}

// Editable reports whether routine edits are still allowed at now.
func (g *Game) Editable(now time.Time) bool {
	return g.EditableUntil != nil && now.Before(*g.EditableUntil)
}
