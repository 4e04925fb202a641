package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Sarvesh28D/FragsHub-sub000/live"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

type WebSocketHandler struct {
	hub      *live.Hub
	upgrader websocket.Upgrader
}

// NewWebSocketHandler принимает подключения только с allowedOrigin (FRONTEND_ORIGIN).
// Запросы без Origin (не из браузера) пропускаются.
func NewWebSocketHandler(hub *live.Hub, allowedOrigin string) *WebSocketHandler {
	allowedOrigin = strings.TrimRight(allowedOrigin, "/")
	return &WebSocketHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowedOrigin == "*" || strings.EqualFold(origin, allowedOrigin)
			},
		},
	}
}

// ServeWs подписывает клиента на события турнира.
// Клиент должен подключаться к /ws/tournaments/{id}
func (h *WebSocketHandler) ServeWs(w http.ResponseWriter, r *http.Request) {
	tournamentID := chi.URLParam(r, "id")
	if tournamentID == "" {
		badRequestResponse(w, r, errors.New("missing tournament id"))
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade сам отвечает клиенту ошибкой
		slog.WarnContext(r.Context(), "websocket upgrade failed",
			slog.String("tournament_id", tournamentID), slog.Any("error", err))
		return
	}

	// Комната совпадает с ID турнира: сервисы публикуют события по нему же.
	h.hub.Serve(conn, tournamentID)
}
