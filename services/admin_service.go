package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Sarvesh28D/FragsHub-sub000/live"
	"github.com/Sarvesh28D/FragsHub-sub000/models"
	"github.com/Sarvesh28D/FragsHub-sub000/repositories"
)

const (
	defaultRejectionReason = "Registration rejected by admin"
	SystemActor            = "system"
)

type AdminService interface {
	ApproveTeam(ctx context.Context, teamID, approvedBy string) (*models.Team, error)
	RejectTeam(ctx context.Context, teamID, rejectedBy, reason string) (*models.Team, error)
	PendingTeams(ctx context.Context, limit, offset int) (*TeamPage, error)
	RecordMatchResult(ctx context.Context, tournamentID string, input UpdateMatchInput, recordedBy string) (*models.MatchResult, error)
	GrantAdmin(ctx context.Context, uid string) error
	RevokeAdmin(ctx context.Context, uid string) error
}

type adminService struct {
	teamRepo        repositories.TeamRepository
	tournamentRepo  repositories.TournamentRepository
	refundRepo      repositories.RefundRepository
	matchResultRepo repositories.MatchResultRepository
	tx              repositories.Transactor
	tournaments     TournamentService
	teams           TeamService
	auth            AuthService
	events          Broadcaster
	notifier        NotificationService
	logger          *slog.Logger
	now             func() time.Time
	newID           func() string
}

type AdminServiceDeps struct {
	TeamRepo        repositories.TeamRepository
	TournamentRepo  repositories.TournamentRepository
	RefundRepo      repositories.RefundRepository
	MatchResultRepo repositories.MatchResultRepository
	Tx              repositories.Transactor
	Tournaments     TournamentService
	Teams           TeamService
	Auth            AuthService
	Events          Broadcaster
	Notifier        NotificationService
	Logger          *slog.Logger
}

func NewAdminService(d AdminServiceDeps) AdminService {
	events := d.Events
	if events == nil {
		events = nopBroadcaster{}
	}
	return &adminService{
		teamRepo:        d.TeamRepo,
		tournamentRepo:  d.TournamentRepo,
		refundRepo:      d.RefundRepo,
		matchResultRepo: d.MatchResultRepo,
		tx:              d.Tx,
		tournaments:     d.Tournaments,
		teams:           d.Teams,
		auth:            d.Auth,
		events:          events,
		notifier:        d.Notifier,
		logger:          d.Logger,
		now:             time.Now,
		newID:           newUUID,
	}
}

func (s *adminService) ApproveTeam(ctx context.Context, teamID, approvedBy string) (*models.Team, error) {
	team, err := s.teamRepo.GetByID(ctx, teamID)
	if err != nil {
		return nil, mapTeamRepoError(err)
	}
	switch {
	case team.RegistrationStatus == models.RegistrationApproved:
		return team, nil
	case team.RegistrationStatus == models.RegistrationRejected:
		return nil, ErrTeamAlreadyRejected
	case team.PaymentStatus != models.PaymentPaid:
		return nil, ErrTeamNotPaid
	}

	now := s.now().UTC()
	if err := s.teamRepo.Approve(ctx, nil, team.ID, approvedBy, now); err != nil {
		if !errors.Is(err, repositories.ErrTeamStateConflict) {
			return nil, mapTeamRepoError(err)
		}
		// Состояние поменялось между чтением и записью.
		current, rerr := s.teamRepo.GetByID(ctx, teamID)
		if rerr != nil {
			return nil, mapTeamRepoError(rerr)
		}
		switch {
		case current.RegistrationStatus == models.RegistrationApproved:
			return current, nil
		case current.RegistrationStatus == models.RegistrationRejected:
			return nil, ErrTeamAlreadyRejected
		default:
			return nil, ErrTeamNotPaid
		}
	}

	team.RegistrationStatus = models.RegistrationApproved
	team.ApprovedBy = &approvedBy
	team.ApprovedAt = &now
	team.UpdatedAt = now

	s.logger.InfoContext(ctx, "team approved", slog.String("team_id", team.ID), slog.String("approved_by", approvedBy))
	s.placeInTournament(ctx, team)
	s.notifier.Notify(ctx, NotifyTeamApproved, "Team approved", fmt.Sprintf("%s was approved by %s", team.Name, approvedBy))
	return team, nil
}

// placeInTournament ставит команду в очередь ближайшего турнира со свободным местом.
// Ошибки только логируются: одобрение уже состоялось.
func (s *adminService) placeInTournament(ctx context.Context, team *models.Team) {
	t, err := s.tournamentRepo.FindUpcomingWithCapacity(ctx)
	if err != nil {
		if !errors.Is(err, repositories.ErrTournamentNotFound) {
			s.logger.WarnContext(ctx, "failed to find tournament for approved team", slog.String("team_id", team.ID), slog.Any("error", err))
		}
		return
	}
	entry := models.TournamentTeam{TeamID: team.ID, Name: team.Name, JoinedAt: s.now().UTC()}
	appended, err := s.tournamentRepo.AppendTeam(ctx, t.ID, entry)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to add approved team to tournament",
			slog.String("team_id", team.ID), slog.String("tournament_id", t.ID), slog.Any("error", err))
		return
	}
	if appended {
		s.events.Publish(t.ID, live.EventTeamAdded, entry)
	}
}

func (s *adminService) RejectTeam(ctx context.Context, teamID, rejectedBy, reason string) (*models.Team, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = defaultRejectionReason
	}

	team, err := s.teamRepo.GetByID(ctx, teamID)
	if err != nil {
		return nil, mapTeamRepoError(err)
	}
	switch team.RegistrationStatus {
	case models.RegistrationRejected:
		return team, nil
	case models.RegistrationApproved:
		return nil, ErrTeamAlreadyApproved
	}

	now := s.now().UTC()
	var refund *models.Refund
	if team.PaymentStatus == models.PaymentPaid {
		refund = &models.Refund{
			ID:        refundQueuePrefix + s.newID(),
			TeamID:    team.ID,
			PaymentID: derefString(team.PaymentID),
			Amount:    team.EntryFee * 100,
			Reason:    reason,
			Status:    models.RefundQueued,
			CreatedAt: now,
		}
	}

	err = s.tx.InTx(ctx, func(exec repositories.SQLExecutor) error {
		if err := s.teamRepo.Reject(ctx, exec, team.ID, rejectedBy, reason, now); err != nil {
			return err
		}
		if refund == nil {
			return nil
		}
		if err := s.refundRepo.Create(ctx, exec, refund); err != nil {
			// Открытый возврат по этому платежу уже есть, второй не нужен.
			if errors.Is(err, repositories.ErrRefundExists) {
				refund = nil
				return nil
			}
			return err
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, repositories.ErrTeamStateConflict) {
			current, rerr := s.teamRepo.GetByID(ctx, teamID)
			if rerr != nil {
				return nil, mapTeamRepoError(rerr)
			}
			if current.RegistrationStatus == models.RegistrationRejected {
				return current, nil
			}
			return nil, ErrTeamAlreadyApproved
		}
		return nil, fmt.Errorf("failed to reject team: %w", err)
	}

	team.RegistrationStatus = models.RegistrationRejected
	team.RejectedBy = &rejectedBy
	team.RejectedAt = &now
	team.RejectionReason = &reason
	team.UpdatedAt = now

	logAttrs := []any{slog.String("team_id", team.ID), slog.String("rejected_by", rejectedBy)}
	if refund != nil {
		logAttrs = append(logAttrs, slog.String("refund_id", refund.ID))
	}
	s.logger.InfoContext(ctx, "team rejected", logAttrs...)
	s.notifier.Notify(ctx, NotifyTeamRejected, "Team rejected", fmt.Sprintf("%s: %s", team.Name, reason))
	return team, nil
}

func (s *adminService) PendingTeams(ctx context.Context, limit, offset int) (*TeamPage, error) {
	pending := models.RegistrationPending
	return s.teams.ListTeams(ctx, ListTeamsInput{RegistrationStatus: &pending, Limit: limit, Offset: offset})
}

func (s *adminService) RecordMatchResult(ctx context.Context, tournamentID string, input UpdateMatchInput, recordedBy string) (*models.MatchResult, error) {
	match, err := s.tournaments.UpdateMatch(ctx, tournamentID, input)
	if err != nil {
		return nil, err
	}

	result := &models.MatchResult{
		ID:           fmt.Sprintf("%s_%d", tournamentID, input.MatchID),
		TournamentID: tournamentID,
		MatchID:      input.MatchID,
		WinnerID:     input.WinnerID,
		Scores:       match.Scores,
		RecordedBy:   recordedBy,
		RecordedAt:   s.now().UTC(),
	}
	if result.Scores == "" {
		result.Scores = input.Scores
	}
	if err := s.matchResultRepo.Upsert(ctx, result); err != nil {
		return nil, fmt.Errorf("failed to store match result: %w", err)
	}
	return result, nil
}

func (s *adminService) GrantAdmin(ctx context.Context, uid string) error {
	return s.auth.SetAdminClaim(ctx, uid, true)
}

func (s *adminService) RevokeAdmin(ctx context.Context, uid string) error {
	return s.auth.SetAdminClaim(ctx, uid, false)
}
