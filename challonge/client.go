// Package challonge is a small client for the Challonge REST API v1.
package challonge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
)

const DefaultBaseURL = "https://api.challonge.com/v1"

type Client struct {
	baseURL  string
	username string
	apiKey   string
	http     *http.Client
}

func NewClient(baseURL, username, apiKey string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	hc := cleanhttp.DefaultPooledClient()
	hc.Timeout = timeout
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		username: username,
		apiKey:   apiKey,
		http:     hc,
	}
}

// APIError is a non-2xx response from Challonge.
type APIError struct {
	StatusCode int
	Messages   []string
}

func (e *APIError) Error() string {
	if len(e.Messages) == 0 {
		return fmt.Sprintf("challonge: status %d", e.StatusCode)
	}
	return fmt.Sprintf("challonge: status %d: %s", e.StatusCode, strings.Join(e.Messages, "; "))
}

func (e *APIError) NotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

type CreateTournamentParams struct {
	Name        string     `json:"name"`
	URL         string     `json:"url"`
	Type        string     `json:"tournament_type"`
	Description string     `json:"description,omitempty"`
	GameName    string     `json:"game_name,omitempty"`
	SignupCap   int        `json:"signup_cap,omitempty"`
	StartAt     *time.Time `json:"start_at,omitempty"`
}

func (c *Client) CreateTournament(ctx context.Context, p CreateTournamentParams) (*Tournament, error) {
	if p.Type == "" {
		p.Type = "single elimination"
	}
	var out tournamentEnvelope
	body := map[string]interface{}{"tournament": p}
	if err := c.do(ctx, http.MethodPost, "/tournaments.json", nil, body, &out); err != nil {
		return nil, err
	}
	return &out.Tournament, nil
}

func (c *Client) GetTournament(ctx context.Context, id int64) (*Tournament, error) {
	var out tournamentEnvelope
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/tournaments/%d.json", id), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out.Tournament, nil
}

func (c *Client) StartTournament(ctx context.Context, id int64) (*Tournament, error) {
	return c.tournamentAction(ctx, id, "start")
}

func (c *Client) FinalizeTournament(ctx context.Context, id int64) (*Tournament, error) {
	return c.tournamentAction(ctx, id, "finalize")
}

func (c *Client) tournamentAction(ctx context.Context, id int64, action string) (*Tournament, error) {
	var out tournamentEnvelope
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/tournaments/%d/%s.json", id, action), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out.Tournament, nil
}

func (c *Client) DeleteTournament(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/tournaments/%d.json", id), nil, nil, nil)
}

// AddParticipant registers a team. misc carries our team id so it can be mapped back.
func (c *Client) AddParticipant(ctx context.Context, tournamentID int64, name, misc string) (*Participant, error) {
	body := map[string]interface{}{
		"participant": map[string]string{"name": name, "misc": misc},
	}
	var out participantEnvelope
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/tournaments/%d/participants.json", tournamentID), nil, body, &out); err != nil {
		return nil, err
	}
	return &out.Participant, nil
}

func (c *Client) ListParticipants(ctx context.Context, tournamentID int64) ([]Participant, error) {
	var out []participantEnvelope
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/tournaments/%d/participants.json", tournamentID), nil, nil, &out); err != nil {
		return nil, err
	}
	list := make([]Participant, 0, len(out))
	for _, e := range out {
		list = append(list, e.Participant)
	}
	return list, nil
}

func (c *Client) ListMatches(ctx context.Context, tournamentID int64) ([]Match, error) {
	var out []matchEnvelope
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/tournaments/%d/matches.json", tournamentID), nil, nil, &out); err != nil {
		return nil, err
	}
	list := make([]Match, 0, len(out))
	for _, e := range out {
		list = append(list, e.Match)
	}
	return list, nil
}

func (c *Client) UpdateMatch(ctx context.Context, tournamentID, matchID, winnerID int64, scoresCSV string) (*Match, error) {
	m := map[string]interface{}{"winner_id": winnerID}
	if scoresCSV != "" {
		m["scores_csv"] = scoresCSV
	}
	var out matchEnvelope
	path := fmt.Sprintf("/tournaments/%d/matches/%d.json", tournamentID, matchID)
	if err := c.do(ctx, http.MethodPut, path, nil, map[string]interface{}{"match": m}, &out); err != nil {
		return nil, err
	}
	return &out.Match, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	if query == nil {
		query = url.Values{}
	}
	query.Set("api_key", c.apiKey)
	endpoint := c.baseURL + path + "?" + query.Encode()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("challonge: encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("challonge: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.username != "" {
		req.SetBasicAuth(c.username, c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("challonge %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("challonge %s %s: read body: %w", method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var payload struct {
			Errors []string `json:"errors"`
		}
		if json.Unmarshal(data, &payload) == nil {
			apiErr.Messages = payload.Errors
		}
		return apiErr
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("challonge %s %s: decode response: %w", method, path, err)
	}
	return nil
}
