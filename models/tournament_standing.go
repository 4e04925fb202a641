package models

// Standing is one leaderboard row, built live from Challonge participants.
type Standing struct {
	ParticipantID int64  `json:"participantId"`
	TeamID        string `json:"teamId,omitempty"`
	Name          string `json:"name"`
	Seed          int    `json:"seed"`
	FinalRank     *int   `json:"finalRank"`
}
