package handlers

import (
	"errors"
	"net/http"

	"github.com/Sarvesh28D/FragsHub-sub000/models"
	"github.com/Sarvesh28D/FragsHub-sub000/services"
)

type TournamentHandler struct {
	tournamentService services.TournamentService
}

func NewTournamentHandler(ts services.TournamentService) *TournamentHandler {
	return &TournamentHandler{tournamentService: ts}
}

type addTeamRequest struct {
	TeamID string `json:"teamId"`
}

// CreateTournament godoc
// @Summary Создать турнир
// @Description Создаёт турнир в Challonge и его локальное зеркало.
// @Tags tournaments
// @Accept json
// @Produce json
// @Param body body services.CreateTournamentInput true "Параметры турнира"
// @Success 201 {object} map[string]interface{}
// @Failure 422 {object} map[string]interface{}
// @Failure 502 {object} map[string]string "Challonge отказал"
// @Failure 504 {object} map[string]string "Challonge не ответил"
// @Security BearerAuth
// @Router /tournaments/create [post]
func (h *TournamentHandler) CreateTournament(w http.ResponseWriter, r *http.Request) {
	var input services.CreateTournamentInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	tournament, err := h.tournamentService.CreateTournament(r.Context(), input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	err = writeJSON(w, http.StatusCreated, jsonResponse{"tournament": tournament}, nil)
	if err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ListTournaments godoc
// @Summary Список турниров
// @Tags tournaments
// @Produce json
// @Param status query string false "upcoming | live | completed"
// @Success 200 {object} map[string]interface{}
// @Router /tournaments [get]
func (h *TournamentHandler) ListTournaments(w http.ResponseWriter, r *http.Request) {
	var status *models.TournamentStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		s := models.TournamentStatus(raw)
		status = &s
	}

	list, err := h.tournamentService.ListTournaments(r.Context(), status)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if list == nil {
		list = []models.Tournament{}
	}

	err = writeJSON(w, http.StatusOK, jsonResponse{"tournaments": list}, nil)
	if err != nil {
		serverErrorResponse(w, r, err)
	}
}

// GetActiveTournament godoc
// @Summary Текущий турнир
// @Description Идущий турнир, иначе ближайший предстоящий. Поле freshness показывает, удалось ли обновить данные из Challonge.
// @Tags tournaments
// @Produce json
// @Success 200 {object} services.TournamentRead
// @Failure 404 {object} map[string]string
// @Router /tournaments/active [get]
func (h *TournamentHandler) GetActiveTournament(w http.ResponseWriter, r *http.Request) {
	read, err := h.tournamentService.GetActiveTournament(r.Context())
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	err = writeJSON(w, http.StatusOK, read, nil)
	if err != nil {
		serverErrorResponse(w, r, err)
	}
}

// GetTournament godoc
// @Summary Турнир по ID
// @Tags tournaments
// @Produce json
// @Param id path string true "Tournament ID"
// @Success 200 {object} services.TournamentRead
// @Failure 404 {object} map[string]string
// @Router /tournaments/{id} [get]
func (h *TournamentHandler) GetTournament(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "id")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	read, err := h.tournamentService.GetTournament(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	err = writeJSON(w, http.StatusOK, read, nil)
	if err != nil {
		serverErrorResponse(w, r, err)
	}
}

// @Summary Запустить турнир
// @Tags tournaments
// @Produce json
// @Param id path string true "Tournament ID"
// @Success 200 {object} map[string]interface{}
// @Failure 409 {object} map[string]string "Турнир уже идёт или завершён"
// @Security BearerAuth
// @Router /tournaments/{id}/start [post]
func (h *TournamentHandler) StartTournament(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "id")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	tournament, err := h.tournamentService.StartTournament(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	err = writeJSON(w, http.StatusOK, jsonResponse{"tournament": tournament}, nil)
	if err != nil {
		serverErrorResponse(w, r, err)
	}
}

// @Summary Завершить турнир
// @Tags tournaments
// @Produce json
// @Param id path string true "Tournament ID"
// @Success 200 {object} map[string]interface{}
// @Failure 409 {object} map[string]string "Турнир не идёт"
// @Security BearerAuth
// @Router /tournaments/{id}/complete [post]
func (h *TournamentHandler) CompleteTournament(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "id")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	tournament, err := h.tournamentService.CompleteTournament(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	err = writeJSON(w, http.StatusOK, jsonResponse{"tournament": tournament}, nil)
	if err != nil {
		serverErrorResponse(w, r, err)
	}
}

// @Summary Удалить турнир
// @Tags tournaments
// @Param id path string true "Tournament ID"
// @Success 204
// @Security BearerAuth
// @Router /tournaments/{id} [delete]
func (h *TournamentHandler) DeleteTournament(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "id")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.tournamentService.DeleteTournament(r.Context(), id); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// AddTeam godoc
// @Summary Добавить команду в турнир
// @Description Только одобренные и оплатившие команды. Повторное добавление возвращает существующую запись.
// @Tags tournaments
// @Accept json
// @Produce json
// @Param id path string true "Tournament ID"
// @Param body body addTeamRequest true "ID команды"
// @Success 200 {object} map[string]interface{}
// @Failure 409 {object} map[string]string "Турнир заполнен или команда не допущена"
// @Security BearerAuth
// @Router /tournaments/{id}/teams [post]
func (h *TournamentHandler) AddTeam(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "id")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var req addTeamRequest
	if err := readJSON(w, r, &req); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if req.TeamID == "" {
		failedValidationResponse(w, r, map[string]string{"teamId": "is required"})
		return
	}

	entry, err := h.tournamentService.AddTeam(r.Context(), id, req.TeamID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	err = writeJSON(w, http.StatusOK, jsonResponse{"team": entry}, nil)
	if err != nil {
		serverErrorResponse(w, r, err)
	}
}

// UpdateMatch godoc
// @Summary Записать результат матча в Challonge
// @Tags tournaments
// @Accept json
// @Produce json
// @Param id path string true "Tournament ID"
// @Param mid path int true "Challonge match ID"
// @Param body body services.UpdateMatchInput true "winnerId и счёт вида 2-1"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /tournaments/{id}/matches/{mid} [put]
func (h *TournamentHandler) UpdateMatch(w http.ResponseWriter, r *http.Request) {
	id, input, ok := readMatchRequest(w, r, "id")
	if !ok {
		return
	}

	match, err := h.tournamentService.UpdateMatch(r.Context(), id, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	err = writeJSON(w, http.StatusOK, jsonResponse{"match": match}, nil)
	if err != nil {
		serverErrorResponse(w, r, err)
	}
}

// @Summary Таблица лидеров
// @Tags tournaments
// @Produce json
// @Param id path string true "Tournament ID"
// @Success 200 {object} map[string]interface{}
// @Router /tournaments/{id}/leaderboard [get]
func (h *TournamentHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "id")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	standings, err := h.tournamentService.Leaderboard(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if standings == nil {
		standings = []models.Standing{}
	}

	err = writeJSON(w, http.StatusOK, jsonResponse{"leaderboard": standings}, nil)
	if err != nil {
		serverErrorResponse(w, r, err)
	}
}

// readMatchRequest разбирает ID турнира, {mid} и тело запроса. При ошибке ответ уже записан.
func readMatchRequest(w http.ResponseWriter, r *http.Request, tournamentParam string) (string, services.UpdateMatchInput, bool) {
	var input services.UpdateMatchInput

	id, err := getIDFromURL(r, tournamentParam)
	if err != nil {
		badRequestResponse(w, r, err)
		return "", input, false
	}
	matchID, err := getInt64FromURL(r, "mid")
	if err != nil {
		badRequestResponse(w, r, err)
		return "", input, false
	}

	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return "", input, false
	}
	if input.MatchID != 0 && input.MatchID != matchID {
		badRequestResponse(w, r, errors.New("matchId in body does not match URL"))
		return "", input, false
	}
	input.MatchID = matchID
	return id, input, true
}
