package models

import "time"

// TournamentTeam: краткая запись о команде внутри турнира.
// ParticipantID равен 0, пока команда не зарегистрирована в Challonge.
type TournamentTeam struct {
	TeamID        string    `json:"teamId"`
	ParticipantID int64     `json:"participantId,omitempty"`
	Name          string    `json:"name"`
	JoinedAt      time.Time `json:"joinedAt"`
}

func (e TournamentTeam) Registered() bool {
	return e.ParticipantID != 0
}
