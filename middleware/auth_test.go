package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Sarvesh28D/FragsHub-sub000/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func protected(tokens *services.TokenManager, admin bool) http.Handler {
	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uid, err := GetUserIDFromContext(r.Context())
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("X-User", uid)
		w.Header().Set("X-Actor", ActorFromContext(r.Context()))
		w.WriteHeader(http.StatusOK)
	})
	var h http.Handler = final
	if admin {
		h = AdminOnly(h)
	}
	return Authenticate(tokens)(h)
}

func TestAuthenticate(t *testing.T) {
	tokens := services.NewTokenManager("secret", time.Hour)
	userToken, err := tokens.Issue("uid-1", "ana@example.com", false)
	require.NoError(t, err)

	cases := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + userToken, http.StatusUnauthorized},
		{"empty token", "Bearer ", http.StatusUnauthorized},
		{"garbage token", "Bearer not.a.token", http.StatusUnauthorized},
		{"valid token", "Bearer " + userToken, http.StatusOK},
		{"lowercase scheme", "bearer " + userToken, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			protected(tokens, false).ServeHTTP(rec, req)
			assert.Equal(t, tc.status, rec.Code)
			if tc.status == http.StatusOK {
				assert.Equal(t, "uid-1", rec.Header().Get("X-User"))
				assert.Equal(t, "ana@example.com", rec.Header().Get("X-Actor"))
			} else {
				assert.Contains(t, rec.Body.String(), `"error"`)
			}
		})
	}
}

func TestAdminOnly(t *testing.T) {
	tokens := services.NewTokenManager("secret", time.Hour)
	userToken, err := tokens.Issue("uid-1", "ana@example.com", false)
	require.NoError(t, err)
	adminToken, err := tokens.Issue("uid-2", "root@example.com", true)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+userToken)
	rec := httptest.NewRecorder()
	protected(tokens, true).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	rec = httptest.NewRecorder()
	protected(tokens, true).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Без Authenticate claims нет.
	rec = httptest.NewRecorder()
	AdminOnly(http.NotFoundHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
