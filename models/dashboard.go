package models

type DashboardStats struct {
	Teams               TeamStats                `json:"teams"`
	TournamentsByStatus map[TournamentStatus]int `json:"tournamentsByStatus"`
	PendingApprovals    int                      `json:"pendingApprovals"`
	QueuedRefunds       int                      `json:"queuedRefunds"`
	UnreadNotifications int                      `json:"unreadNotifications"`
}
