package handlers

import (
	"net/http"
	"strings"

	"github.com/Sarvesh28D/FragsHub-sub000/middleware"
	"github.com/Sarvesh28D/FragsHub-sub000/models"
	"github.com/Sarvesh28D/FragsHub-sub000/services"
)

type AdminHandler struct {
	adminService        services.AdminService
	dashboardService    services.DashboardService
	notificationService services.NotificationService
	paymentService      services.PaymentService
}

func NewAdminHandler(
	as services.AdminService,
	ds services.DashboardService,
	ns services.NotificationService,
	ps services.PaymentService,
) *AdminHandler {
	return &AdminHandler{
		adminService:        as,
		dashboardService:    ds,
		notificationService: ns,
		paymentService:      ps,
	}
}

type rejectTeamRequest struct {
	Reason string `json:"reason"`
}

// ApproveTeam godoc
// @Summary Одобрить команду
// @Description Только оплатившие команды в статусе pending. Команда сразу попадает в ближайший турнир со свободными местами.
// @Tags admin
// @Produce json
// @Param id path string true "Team ID"
// @Success 200 {object} map[string]interface{}
// @Failure 409 {object} map[string]string
// @Security BearerAuth
// @Router /admin/teams/{id}/approve [post]
func (h *AdminHandler) ApproveTeam(w http.ResponseWriter, r *http.Request) {
	teamID, err := getIDFromURL(r, "id")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	team, err := h.adminService.ApproveTeam(r.Context(), teamID, middleware.ActorFromContext(r.Context()))
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	err = writeJSON(w, http.StatusOK, jsonResponse{"team": team}, nil)
	if err != nil {
		serverErrorResponse(w, r, err)
	}
}

// RejectTeam godoc
// @Summary Отклонить команду
// @Description Для оплатившей команды ставит возврат в очередь.
// @Tags admin
// @Accept json
// @Produce json
// @Param id path string true "Team ID"
// @Param body body rejectTeamRequest false "Причина"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /admin/teams/{id}/reject [post]
func (h *AdminHandler) RejectTeam(w http.ResponseWriter, r *http.Request) {
	teamID, err := getIDFromURL(r, "id")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	// Тело необязательно
	var req rejectTeamRequest
	if r.ContentLength != 0 {
		if err := readJSON(w, r, &req); err != nil {
			badRequestResponse(w, r, err)
			return
		}
	}

	team, err := h.adminService.RejectTeam(r.Context(), teamID, middleware.ActorFromContext(r.Context()), req.Reason)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	err = writeJSON(w, http.StatusOK, jsonResponse{"team": team}, nil)
	if err != nil {
		serverErrorResponse(w, r, err)
	}
}

// @Summary Панель администратора
// @Tags admin
// @Produce json
// @Success 200 {object} models.DashboardStats
// @Security BearerAuth
// @Router /admin/dashboard [get]
func (h *AdminHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := h.dashboardService.GetStats(r.Context())
	if err != nil {
		serverErrorResponse(w, r, err)
		return
	}

	err = writeJSON(w, http.StatusOK, stats, nil)
	if err != nil {
		serverErrorResponse(w, r, err)
	}
}

// @Summary Команды, ожидающие решения
// @Tags admin
// @Produce json
// @Param limit query int false "Размер страницы"
// @Param offset query int false "Смещение"
// @Success 200 {object} services.TeamPage
// @Security BearerAuth
// @Router /admin/teams/pending [get]
func (h *AdminHandler) PendingTeams(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	page, err := h.adminService.PendingTeams(r.Context(), limit, offset)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	err = writeJSON(w, http.StatusOK, page, nil)
	if err != nil {
		serverErrorResponse(w, r, err)
	}
}

// RecordMatchResult godoc
// @Summary Записать результат матча
// @Description Обновляет матч в Challonge и сохраняет локальный аудит результата.
// @Tags admin
// @Accept json
// @Produce json
// @Param tid path string true "Tournament ID"
// @Param mid path int true "Challonge match ID"
// @Param body body services.UpdateMatchInput true "winnerId и счёт"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /admin/tournaments/{tid}/matches/{mid}/result [put]
func (h *AdminHandler) RecordMatchResult(w http.ResponseWriter, r *http.Request) {
	tournamentID, input, ok := readMatchRequest(w, r, "tid")
	if !ok {
		return
	}

	result, err := h.adminService.RecordMatchResult(r.Context(), tournamentID, input, middleware.ActorFromContext(r.Context()))
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	err = writeJSON(w, http.StatusOK, jsonResponse{"result": result}, nil)
	if err != nil {
		serverErrorResponse(w, r, err)
	}
}

// @Summary Выдать права администратора
// @Tags admin
// @Param uid path string true "User ID"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /admin/users/{uid}/grant-admin [post]
func (h *AdminHandler) GrantAdmin(w http.ResponseWriter, r *http.Request) {
	h.setAdmin(w, r, true)
}

// @Summary Отозвать права администратора
// @Tags admin
// @Param uid path string true "User ID"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /admin/users/{uid}/revoke-admin [post]
func (h *AdminHandler) RevokeAdmin(w http.ResponseWriter, r *http.Request) {
	h.setAdmin(w, r, false)
}

func (h *AdminHandler) setAdmin(w http.ResponseWriter, r *http.Request, admin bool) {
	uid, err := getIDFromURL(r, "uid")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if admin {
		err = h.adminService.GrantAdmin(r.Context(), uid)
	} else {
		err = h.adminService.RevokeAdmin(r.Context(), uid)
	}
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	err = writeJSON(w, http.StatusOK, jsonResponse{"uid": uid, "admin": admin}, nil)
	if err != nil {
		serverErrorResponse(w, r, err)
	}
}

// @Summary Уведомления админки
// @Tags admin
// @Produce json
// @Param unread query bool false "Только непрочитанные"
// @Param limit query int false "Сколько вернуть"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /admin/notifications [get]
func (h *AdminHandler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	unreadOnly := strings.EqualFold(r.URL.Query().Get("unread"), "true")

	list, err := h.notificationService.List(r.Context(), unreadOnly, limit)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if list == nil {
		list = []models.Notification{}
	}

	err = writeJSON(w, http.StatusOK, jsonResponse{"notifications": list}, nil)
	if err != nil {
		serverErrorResponse(w, r, err)
	}
}

// @Summary Отметить уведомление прочитанным
// @Tags admin
// @Param id path int true "Notification ID"
// @Success 204
// @Security BearerAuth
// @Router /admin/notifications/{id}/read [post]
func (h *AdminHandler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	id, err := getInt64FromURL(r, "id")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.notificationService.MarkRead(r.Context(), id); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ProcessRefunds прогоняет очередь возвратов вне расписания.
// Частичные ошибки не делают ответ неуспешным: отчёт показывает, что осталось в очереди.
// @Summary Обработать очередь возвратов
// @Tags admin
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /admin/refunds/process [post]
func (h *AdminHandler) ProcessRefunds(w http.ResponseWriter, r *http.Request) {
	report, err := h.paymentService.ProcessRefundQueue(r.Context())
	if report == nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	response := jsonResponse{"report": report}
	if err != nil {
		response["errors"] = err.Error()
	}

	err = writeJSON(w, http.StatusOK, response, nil)
	if err != nil {
		serverErrorResponse(w, r, err)
	}
}
