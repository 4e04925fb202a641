package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Sarvesh28D/FragsHub-sub000/models"
	"github.com/Sarvesh28D/FragsHub-sub000/repositories"
)

const (
	NotifyTeamRegistered  = "team_registered"
	NotifyTeamApproved    = "team_approved"
	NotifyTeamRejected    = "team_rejected"
	NotifyPaymentCaptured = "payment_captured"
	NotifyPaymentFailed   = "payment_failed"
	NotifyRefundProcessed = "refund_processed"
	NotifyTournamentEvent = "tournament_event"
	NotifyJobFailure      = "job_failure"
)

const relayTimeout = 5 * time.Second

type NotificationService interface {
	// Notify пишет уведомление для админки. Ошибки только логируются.
	Notify(ctx context.Context, kind, title, message string)
	List(ctx context.Context, unreadOnly bool, limit int) ([]models.Notification, error)
	MarkRead(ctx context.Context, id int64) error
}

type notificationService struct {
	repo   repositories.NotificationRepository
	relay  Relay
	logger *slog.Logger
	now    func() time.Time
}

// NewNotificationService creates the service; relay may be nil.
func NewNotificationService(repo repositories.NotificationRepository, relay Relay, logger *slog.Logger) NotificationService {
	return &notificationService{repo: repo, relay: relay, logger: logger, now: time.Now}
}

func (s *notificationService) Notify(ctx context.Context, kind, title, message string) {
	n := &models.Notification{Type: kind, Title: title, Message: message, CreatedAt: s.now().UTC()}
	if err := s.repo.Create(ctx, n); err != nil {
		s.logger.WarnContext(ctx, "failed to store notification", slog.String("type", kind), slog.Any("error", err))
	}
	if s.relay == nil {
		return
	}
	relayCtx, cancel := context.WithTimeout(ctx, relayTimeout)
	defer cancel()
	if err := s.relay.Relay(relayCtx, *n); err != nil {
		s.logger.WarnContext(ctx, "failed to relay notification", slog.String("type", kind), slog.Any("error", err))
	}
}

func (s *notificationService) List(ctx context.Context, unreadOnly bool, limit int) ([]models.Notification, error) {
	if limit <= 0 || limit > maxPageLimit {
		limit = defaultPageLimit
	}
	list, err := s.repo.List(ctx, unreadOnly, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return list, nil
}

func (s *notificationService) MarkRead(ctx context.Context, id int64) error {
	if err := s.repo.MarkRead(ctx, id); err != nil {
		if errors.Is(err, repositories.ErrNotificationNotFound) {
			return ErrNotFound
		}
		return err
	}
	return nil
}
