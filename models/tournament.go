package models

import (
	"database/sql/driver"
	"time"
)

// TournamentStatus: upcoming -> live -> completed, без обратных переходов.
type TournamentStatus string

const (
	StatusUpcoming  TournamentStatus = "upcoming"
	StatusLive      TournamentStatus = "live"
	StatusCompleted TournamentStatus = "completed"
)

func (s TournamentStatus) Valid() bool {
	switch s {
	case StatusUpcoming, StatusLive, StatusCompleted:
		return true
	}
	return false
}

// Tournament is the local mirror of a Challonge tournament.
type Tournament struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	Description  string           `json:"description"`
	EntryFee     int64            `json:"entryFee"`
	MaxTeams     int              `json:"maxTeams"`
	StartDate    *time.Time       `json:"startDate,omitempty"`
	Game         string           `json:"game"`
	Status       TournamentStatus `json:"status"`
	ChallongeID  int64            `json:"challongeId"`
	ChallongeURL string           `json:"challongeUrl"`
	Teams        TournamentTeams  `json:"currentTeams"`
	Matches      Matches          `json:"matches"`
	StartedAt    *time.Time       `json:"startedAt,omitempty"`
	CompletedAt  *time.Time       `json:"completedAt,omitempty"`
	CreatedAt    time.Time        `json:"createdAt"`
	UpdatedAt    time.Time        `json:"updatedAt"`
}

func (t *Tournament) HasCapacity() bool {
	return len(t.Teams) < t.MaxTeams
}

type TournamentTeams []TournamentTeam

func (ts TournamentTeams) Value() (driver.Value, error) {
	if ts == nil {
		return "[]", nil
	}
	return jsonbValue(ts)
}

func (ts *TournamentTeams) Scan(src interface{}) error {
	return scanJSONB(src, ts)
}

// Find returns the index of the entry for teamID.
func (ts TournamentTeams) Find(teamID string) (int, bool) {
	for i, e := range ts {
		if e.TeamID == teamID {
			return i, true
		}
	}
	return -1, false
}

func (ts TournamentTeams) TeamIDs() []string {
	ids := make([]string, 0, len(ts))
	for _, e := range ts {
		ids = append(ids, e.TeamID)
	}
	return ids
}
