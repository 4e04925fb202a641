package models

import (
	"database/sql/driver"
	"time"
)

// Match mirrors a Challonge match. The bracket service stays authoritative.
type Match struct {
	ID        int64      `json:"id"`
	Round     int        `json:"round"`
	State     string     `json:"state"`
	Player1ID *int64     `json:"player1Id,omitempty"`
	Player2ID *int64     `json:"player2Id,omitempty"`
	WinnerID  *int64     `json:"winnerId,omitempty"`
	LoserID   *int64     `json:"loserId,omitempty"`
	Scores    string     `json:"scores,omitempty"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

type Matches []Match

func (m Matches) Value() (driver.Value, error) {
	if m == nil {
		return "[]", nil
	}
	return jsonbValue(m)
}

func (m *Matches) Scan(src interface{}) error {
	return scanJSONB(src, m)
}

// MatchResult is the admin-recorded copy of a reported result.
// Informational only; it can diverge from Challonge.
type MatchResult struct {
	ID           string    `json:"id"`
	TournamentID string    `json:"tournamentId"`
	MatchID      int64     `json:"matchId"`
	WinnerID     int64     `json:"winnerId"`
	Scores       string    `json:"scores,omitempty"`
	RecordedBy   string    `json:"recordedBy"`
	RecordedAt   time.Time `json:"recordedAt"`
}
