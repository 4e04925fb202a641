package handlers

import (
	"context"
	"net/http"
	"time"
)

// Pinger реализует *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Features: какие необязательные интеграции включены в этой сборке.
type Features struct {
	LogoUploads   bool   `json:"logoUploads"`
	EmailEnabled  bool   `json:"emailReminders"`
	DiscordRelay  bool   `json:"discordRelay"`
	AutoApprove   bool   `json:"autoApprove"`
	PaymentsKeyID string `json:"razorpayKeyId"`
}

type HealthHandler struct {
	db        Pinger
	version   string
	startedAt time.Time
	features  Features
}

func NewHealthHandler(db Pinger, version string, features Features) *HealthHandler {
	return &HealthHandler{db: db, version: version, startedAt: time.Now(), features: features}
}

// @Summary Проверка живости
// @Tags system
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /health [get]
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.PingContext(ctx); err != nil {
		errorResponse(w, r, http.StatusServiceUnavailable, "database unavailable")
		return
	}

	err := writeJSON(w, http.StatusOK, jsonResponse{"status": "ok"}, nil)
	if err != nil {
		serverErrorResponse(w, r, err)
	}
}

// @Summary Информация о сервисе
// @Tags system
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /info [get]
func (h *HealthHandler) Info(w http.ResponseWriter, r *http.Request) {
	response := jsonResponse{
		"name":     "fragshub",
		"version":  h.version,
		"uptime":   time.Since(h.startedAt).Round(time.Second).String(),
		"features": h.features,
	}

	err := writeJSON(w, http.StatusOK, response, nil)
	if err != nil {
		serverErrorResponse(w, r, err)
	}
}
