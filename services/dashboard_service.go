package services

import (
	"context"
	"fmt"

	"github.com/Sarvesh28D/FragsHub-sub000/models"
	"github.com/Sarvesh28D/FragsHub-sub000/repositories"
	"golang.org/x/sync/errgroup"
)

type DashboardService interface {
	GetStats(ctx context.Context) (models.DashboardStats, error)
}

type dashboardService struct {
	teamRepo         repositories.TeamRepository
	tournamentRepo   repositories.TournamentRepository
	refundRepo       repositories.RefundRepository
	notificationRepo repositories.NotificationRepository
}

func NewDashboardService(
	teamRepo repositories.TeamRepository,
	tournamentRepo repositories.TournamentRepository,
	refundRepo repositories.RefundRepository,
	notificationRepo repositories.NotificationRepository,
) DashboardService {
	return &dashboardService{
		teamRepo:         teamRepo,
		tournamentRepo:   tournamentRepo,
		refundRepo:       refundRepo,
		notificationRepo: notificationRepo,
	}
}

// GetStats собирает счётчики параллельно; любая ошибка роняет весь ответ.
func (s *dashboardService) GetStats(ctx context.Context) (models.DashboardStats, error) {
	var (
		stats   models.DashboardStats
		refunds map[models.RefundStatus]int
		g, gCtx = errgroup.WithContext(ctx)
	)

	g.Go(func() error {
		teams, err := s.teamRepo.Stats(gCtx)
		if err != nil {
			return fmt.Errorf("team stats: %w", err)
		}
		stats.Teams = teams
		return nil
	})
	g.Go(func() error {
		byStatus, err := s.tournamentRepo.CountByStatus(gCtx)
		if err != nil {
			return fmt.Errorf("tournament stats: %w", err)
		}
		stats.TournamentsByStatus = byStatus
		return nil
	})
	g.Go(func() error {
		var err error
		refunds, err = s.refundRepo.CountByStatus(gCtx)
		if err != nil {
			return fmt.Errorf("refund stats: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		unread, err := s.notificationRepo.CountUnread(gCtx)
		if err != nil {
			return fmt.Errorf("notification stats: %w", err)
		}
		stats.UnreadNotifications = unread
		return nil
	})

	if err := g.Wait(); err != nil {
		return models.DashboardStats{}, err
	}
	stats.PendingApprovals = stats.Teams.ByRegistration[models.RegistrationPending]
	stats.QueuedRefunds = refunds[models.RefundQueued]
	return stats, nil
}
