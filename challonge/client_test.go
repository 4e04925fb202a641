package challonge

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Sarvesh28D/FragsHub-sub000/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "", "test-key", 2*time.Second)
}

func TestCreateTournament(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/tournaments.json", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("api_key"))

		var body struct {
			Tournament CreateTournamentParams `json:"tournament"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "single elimination", body.Tournament.Type)
		assert.Equal(t, "spring-cup-ab12", body.Tournament.URL)

		_, _ = w.Write([]byte(`{"tournament":{"id":42,"name":"Spring Cup","url":"spring-cup-ab12","full_challonge_url":"https://challonge.com/spring-cup-ab12","state":"pending"}}`))
	})

	got, err := c.CreateTournament(context.Background(), CreateTournamentParams{Name: "Spring Cup", URL: "spring-cup-ab12"})
	require.NoError(t, err)
	assert.Equal(t, int64(42), got.ID)
	assert.Equal(t, "https://challonge.com/spring-cup-ab12", got.FullChallongeURL)
	assert.Equal(t, models.StatusUpcoming, Status(got.State))
}

func TestGetTournamentAndLists(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/tournaments/7.json":
			_, _ = w.Write([]byte(`{"tournament":{"id":7,"state":"underway","participants_count":2}}`))
		case "/tournaments/7/participants.json":
			_, _ = w.Write([]byte(`[{"participant":{"id":100,"name":"Alpha","seed":1,"final_rank":null,"misc":"team_a"}},
				{"participant":{"id":101,"name":"Bravo","seed":2,"final_rank":2,"misc":"team_b"}}]`))
		case "/tournaments/7/matches.json":
			_, _ = w.Write([]byte(`[{"match":{"id":900,"round":1,"state":"open","player1_id":100,"player2_id":101,"scores_csv":""}}]`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	ctx := context.Background()

	got, err := c.GetTournament(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, models.StatusLive, Status(got.State))
	assert.Equal(t, 2, got.ParticipantsCount)

	participants, err := c.ListParticipants(ctx, 7)
	require.NoError(t, err)
	require.Len(t, participants, 2)
	assert.Equal(t, "team_a", participants[0].Misc)
	assert.Nil(t, participants[0].FinalRank)
	assert.Equal(t, 2, *participants[1].FinalRank)

	matches, err := c.ListMatches(ctx, 7)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, int64(100), *matches[0].Player1ID)
}

func TestUpdateMatchSendsWinnerAndScores(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/tournaments/7/matches/900.json", r.URL.Path)
		var body map[string]map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.EqualValues(t, 100, body["match"]["winner_id"])
		assert.Equal(t, "2-1", body["match"]["scores_csv"])
		_, _ = w.Write([]byte(`{"match":{"id":900,"state":"complete","winner_id":100,"loser_id":101,"scores_csv":"2-1"}}`))
	})

	m, err := c.UpdateMatch(context.Background(), 7, 900, 100, "2-1")
	require.NoError(t, err)
	assert.Equal(t, "complete", m.State)
	assert.Equal(t, "2-1", m.Model().Scores)
}

func TestErrorResponse(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"errors":["URL is already taken"]}`))
	})

	_, err := c.StartTournament(context.Background(), 7)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	assert.Equal(t, []string{"URL is already taken"}, apiErr.Messages)
	assert.False(t, apiErr.NotFound())
}

func TestBasicAuthWhenUsernameSet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "organizer", user)
		assert.Equal(t, "test-key", pass)
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "organizer", "test-key", time.Second)
	list, err := c.ListParticipants(context.Background(), 7)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestStatusMapping(t *testing.T) {
	assert.Equal(t, models.StatusUpcoming, Status("pending"))
	assert.Equal(t, models.StatusLive, Status("awaiting_review"))
	assert.Equal(t, models.StatusCompleted, Status("complete"))
}
