package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Sarvesh28D/FragsHub-sub000/handlers"
	"github.com/Sarvesh28D/FragsHub-sub000/models"
	"github.com/Sarvesh28D/FragsHub-sub000/services"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubDashboard struct{}

func (stubDashboard) GetStats(context.Context) (models.DashboardStats, error) {
	return models.DashboardStats{QueuedRefunds: 3}, nil
}

type stubTournaments struct {
	services.TournamentService
}

func (stubTournaments) ListTournaments(context.Context, *models.TournamentStatus) ([]models.Tournament, error) {
	return []models.Tournament{{ID: "1", Name: "Cup"}}, nil
}

type okPinger struct{}

func (okPinger) PingContext(context.Context) error { return nil }

func newTestRouter(tokens *services.TokenManager) http.Handler {
	router := chi.NewRouter()
	SetupRoutes(router, Handlers{
		Auth:       handlers.NewAuthHandler(nil),
		Team:       handlers.NewTeamHandler(nil),
		Tournament: handlers.NewTournamentHandler(stubTournaments{}),
		Payment:    handlers.NewPaymentHandler(nil),
		Admin:      handlers.NewAdminHandler(nil, stubDashboard{}, nil, nil),
		Health:     handlers.NewHealthHandler(okPinger{}, "test", handlers.Features{}),
		WebSocket:  handlers.NewWebSocketHandler(nil, "http://localhost:3000"),
	}, tokens, "http://localhost:3000")
	return router
}

func TestAdminRoutesRequireAdminClaim(t *testing.T) {
	tokens := services.NewTokenManager("test-secret", time.Hour)
	router := newTestRouter(tokens)

	adminToken, err := tokens.Issue("uid-admin", "admin@example.com", true)
	require.NoError(t, err)
	userToken, err := tokens.Issue("uid-user", "user@example.com", false)
	require.NoError(t, err)

	tests := []struct {
		name       string
		method     string
		path       string
		header     string
		wantStatus int
	}{
		{"dashboard without token", http.MethodGet, "/admin/dashboard", "", http.StatusUnauthorized},
		{"dashboard with garbage", http.MethodGet, "/admin/dashboard", "Bearer not-a-jwt", http.StatusUnauthorized},
		{"dashboard as user", http.MethodGet, "/admin/dashboard", "Bearer " + userToken, http.StatusForbidden},
		{"dashboard as admin", http.MethodGet, "/admin/dashboard", "Bearer " + adminToken, http.StatusOK},
		{"create tournament without token", http.MethodPost, "/tournaments/create", "", http.StatusUnauthorized},
		{"start tournament as user", http.MethodPost, "/tournaments/1/start", "Bearer " + userToken, http.StatusForbidden},
		{"refund without token", http.MethodPost, "/payments/refund", "", http.StatusUnauthorized},
		{"update team without token", http.MethodPut, "/teams/team_1", "", http.StatusUnauthorized},
		{"delete team without token", http.MethodDelete, "/teams/team_1", "", http.StatusUnauthorized},
		{"public tournament list", http.MethodGet, "/tournaments", "", http.StatusOK},
		{"health", http.MethodGet, "/health", "", http.StatusOK},
		{"unknown route", http.MethodGet, "/nope", "", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
		})
	}
}

func TestCORSAllowsFrontendOrigin(t *testing.T) {
	router := newTestRouter(services.NewTokenManager("test-secret", time.Hour))

	req := httptest.NewRequest(http.MethodOptions, "/teams/register", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/teams/register", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
