package challonge

import (
	"time"

	"github.com/Sarvesh28D/FragsHub-sub000/models"
)

// Challonge оборачивает каждый объект в ключ с его типом: {"tournament": {...}}.
type tournamentEnvelope struct {
	Tournament Tournament `json:"tournament"`
}

type participantEnvelope struct {
	Participant Participant `json:"participant"`
}

type matchEnvelope struct {
	Match Match `json:"match"`
}

type Tournament struct {
	ID                int64      `json:"id"`
	Name              string     `json:"name"`
	URL               string     `json:"url"`
	FullChallongeURL  string     `json:"full_challonge_url"`
	State             string     `json:"state"`
	ParticipantsCount int        `json:"participants_count"`
	StartAt           *time.Time `json:"start_at"`
	StartedAt         *time.Time `json:"started_at"`
	CompletedAt       *time.Time `json:"completed_at"`
}

type Participant struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Seed      int    `json:"seed"`
	FinalRank *int   `json:"final_rank"`
	Misc      string `json:"misc"`
	Active    bool   `json:"active"`
}

type Match struct {
	ID        int64      `json:"id"`
	Round     int        `json:"round"`
	State     string     `json:"state"`
	Player1ID *int64     `json:"player1_id"`
	Player2ID *int64     `json:"player2_id"`
	WinnerID  *int64     `json:"winner_id"`
	LoserID   *int64     `json:"loser_id"`
	ScoresCSV string     `json:"scores_csv"`
	UpdatedAt *time.Time `json:"updated_at"`
}

func (m Match) Model() models.Match {
	return models.Match{
		ID:        m.ID,
		Round:     m.Round,
		State:     m.State,
		Player1ID: m.Player1ID,
		Player2ID: m.Player2ID,
		WinnerID:  m.WinnerID,
		LoserID:   m.LoserID,
		Scores:    m.ScoresCSV,
		UpdatedAt: m.UpdatedAt,
	}
}

func MatchModels(list []Match) models.Matches {
	out := make(models.Matches, 0, len(list))
	for _, m := range list {
		out = append(out, m.Model())
	}
	return out
}

// Status maps a Challonge state onto the local lifecycle.
func Status(state string) models.TournamentStatus {
	switch state {
	case "underway", "awaiting_review":
		return models.StatusLive
	case "complete":
		return models.StatusCompleted
	default:
		return models.StatusUpcoming
	}
}
