package handlers

import (
	"errors"
	"net/http"

	"github.com/Sarvesh28D/FragsHub-sub000/middleware"
	"github.com/Sarvesh28D/FragsHub-sub000/models"
	"github.com/Sarvesh28D/FragsHub-sub000/services"
)

const maxLogoUploadSize = 5 << 20 // 5MB

type TeamHandler struct {
	teamService services.TeamService
}

func NewTeamHandler(ts services.TeamService) *TeamHandler {
	return &TeamHandler{teamService: ts}
}

// RegisterTeam godoc
// @Summary Зарегистрировать команду
// @Tags teams
// @Accept json
// @Produce json
// @Param body body services.RegisterTeamInput true "Команда, состав и контакт капитана"
// @Success 201 {object} map[string]interface{} "Команда создана"
// @Failure 400 {object} map[string]string "Некорректный JSON"
// @Failure 409 {object} map[string]string "Имя уже занято"
// @Failure 422 {object} map[string]interface{} "Ошибка валидации"
// @Router /teams/register [post]
func (h *TeamHandler) RegisterTeam(w http.ResponseWriter, r *http.Request) {
	var input services.RegisterTeamInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	team, err := h.teamService.RegisterTeam(r.Context(), input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	err = writeJSON(w, http.StatusCreated, jsonResponse{"team": team}, nil)
	if err != nil {
		serverErrorResponse(w, r, err)
	}
}

// GetTeam godoc
// @Summary Получить команду по ID
// @Tags teams
// @Produce json
// @Param id path string true "Team ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]string "Команда не найдена"
// @Router /teams/{id} [get]
func (h *TeamHandler) GetTeam(w http.ResponseWriter, r *http.Request) {
	teamID, err := getIDFromURL(r, "id")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	team, err := h.teamService.GetTeam(r.Context(), teamID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	err = writeJSON(w, http.StatusOK, jsonResponse{"team": team}, nil)
	if err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ListTeams godoc
// @Summary Список команд
// @Tags teams
// @Produce json
// @Param status query string false "pending | approved | rejected"
// @Param paymentStatus query string false "pending | paid | expired | refunded"
// @Param limit query int false "Размер страницы (по умолчанию 20, максимум 100)"
// @Param offset query int false "Смещение"
// @Success 200 {object} services.TeamPage
// @Router /teams [get]
func (h *TeamHandler) ListTeams(w http.ResponseWriter, r *http.Request) {
	input, err := parseListTeamsQuery(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	page, err := h.teamService.ListTeams(r.Context(), input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	err = writeJSON(w, http.StatusOK, page, nil)
	if err != nil {
		serverErrorResponse(w, r, err)
	}
}

// UpdateTeam godoc
// @Summary Обновить команду
// @Description Меняет только имя, состав, email капитана и логотип. Статусы не трогаются. Доступно капитану (вход с email капитана) и админу.
// @Tags teams
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Team ID"
// @Param body body services.UpdateTeamInput true "Изменяемые поля"
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Failure 422 {object} map[string]interface{}
// @Router /teams/{id} [put]
func (h *TeamHandler) UpdateTeam(w http.ResponseWriter, r *http.Request) {
	teamID, err := getIDFromURL(r, "id")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input services.UpdateTeamInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	claims, _ := middleware.ClaimsFromContext(r.Context())
	team, err := h.teamService.UpdateTeam(r.Context(), teamID, claims, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	err = writeJSON(w, http.StatusOK, jsonResponse{"team": team}, nil)
	if err != nil {
		serverErrorResponse(w, r, err)
	}
}

// DeleteTeam godoc
// @Summary Удалить команду
// @Description Оплаченную команду удалить нельзя, сначала возврат.
// @Tags teams
// @Security BearerAuth
// @Param id path string true "Team ID"
// @Success 204
// @Failure 401 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /teams/{id} [delete]
func (h *TeamHandler) DeleteTeam(w http.ResponseWriter, r *http.Request) {
	teamID, err := getIDFromURL(r, "id")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	claims, _ := middleware.ClaimsFromContext(r.Context())
	if err := h.teamService.DeleteTeam(r.Context(), teamID, claims); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// @Summary Сводка по командам
// @Tags teams
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /teams/stats/overview [get]
func (h *TeamHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.teamService.Stats(r.Context())
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	err = writeJSON(w, http.StatusOK, jsonResponse{"stats": stats}, nil)
	if err != nil {
		serverErrorResponse(w, r, err)
	}
}

// UploadLogo godoc
// @Summary Загрузить логотип команды
// @Tags teams
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Team ID"
// @Param logo formData file true "PNG, JPEG или WebP, до 5MB"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Failure 503 {object} map[string]string "Хранилище не настроено"
// @Router /teams/{id}/logo [post]
func (h *TeamHandler) UploadLogo(w http.ResponseWriter, r *http.Request) {
	teamID, err := getIDFromURL(r, "id")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxLogoUploadSize)
	if err := r.ParseMultipartForm(maxLogoUploadSize); err != nil {
		badRequestResponse(w, r, errors.New("file too large or invalid multipart form"))
		return
	}

	file, header, err := r.FormFile("logo")
	if err != nil {
		badRequestResponse(w, r, errors.New("missing 'logo' file in form"))
		return
	}
	defer file.Close()

	team, err := h.teamService.UploadLogo(r.Context(), teamID, header.Header.Get("Content-Type"), file)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	err = writeJSON(w, http.StatusOK, jsonResponse{"team": team}, nil)
	if err != nil {
		serverErrorResponse(w, r, err)
	}
}

func parseListTeamsQuery(r *http.Request) (services.ListTeamsInput, error) {
	var input services.ListTeamsInput
	q := r.URL.Query()

	if raw := q.Get("status"); raw != "" {
		status := models.RegistrationStatus(raw)
		input.RegistrationStatus = &status
	}
	if raw := q.Get("paymentStatus"); raw != "" {
		status := models.PaymentStatus(raw)
		input.PaymentStatus = &status
	}

	var err error
	if input.Limit, err = queryInt(r, "limit", 0); err != nil {
		return input, err
	}
	if input.Offset, err = queryInt(r, "offset", 0); err != nil {
		return input, err
	}
	return input, nil
}
