package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/Sarvesh28D/FragsHub-sub000/models"
	"github.com/Sarvesh28D/FragsHub-sub000/repositories"
	"github.com/Sarvesh28D/FragsHub-sub000/storage"
)

const maxTeamNameLength = 100

// TeamRules задаёт допустимый размер состава.
type TeamRules struct {
	MinPlayers int
	MaxPlayers int
}

type PlayerInput struct {
	Name   string `json:"name"`
	GameID string `json:"gameId"`
	Email  string `json:"email,omitempty"`
}

type RegisterTeamInput struct {
	Name         string        `json:"name"`
	Players      []PlayerInput `json:"players"`
	CaptainEmail string        `json:"captainEmail"`
	EntryFee     int64         `json:"entryFee"`
	LogoKey      *string       `json:"logoKey,omitempty"`
}

// UpdateTeamInput lists the only fields a caller may change. Nil means "keep".
type UpdateTeamInput struct {
	Name         *string        `json:"name"`
	Players      *[]PlayerInput `json:"players"`
	CaptainEmail *string        `json:"captainEmail"`
	LogoKey      *string        `json:"logoKey"`
}

type ListTeamsInput struct {
	RegistrationStatus *models.RegistrationStatus
	PaymentStatus      *models.PaymentStatus
	Limit              int
	Offset             int
}

type TeamPage struct {
	Items  []models.Team `json:"items"`
	Total  int           `json:"total"`
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
}

type TeamService interface {
	RegisterTeam(ctx context.Context, input RegisterTeamInput) (*models.Team, error)
	GetTeam(ctx context.Context, id string) (*models.Team, error)
	ListTeams(ctx context.Context, input ListTeamsInput) (*TeamPage, error)
	UpdateTeam(ctx context.Context, id string, editor *Claims, input UpdateTeamInput) (*models.Team, error)
	DeleteTeam(ctx context.Context, id string, editor *Claims) error
	Stats(ctx context.Context) (models.TeamStats, error)
	UploadLogo(ctx context.Context, id, contentType string, file io.Reader) (*models.Team, error)
}

type teamService struct {
	teamRepo repositories.TeamRepository
	uploader storage.FileUploader
	notifier NotificationService
	rules    TeamRules
	logger   *slog.Logger
	now      func() time.Time
	newID    func() string
}

// NewTeamService creates a TeamService. uploader may be nil when storage is not configured.
func NewTeamService(
	teamRepo repositories.TeamRepository,
	uploader storage.FileUploader,
	notifier NotificationService,
	rules TeamRules,
	logger *slog.Logger,
) TeamService {
	return &teamService{
		teamRepo: teamRepo,
		uploader: uploader,
		notifier: notifier,
		rules:    rules,
		logger:   logger,
		now:      time.Now,
		newID:    newUUID,
	}
}

func (s *teamService) RegisterTeam(ctx context.Context, input RegisterTeamInput) (*models.Team, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.CaptainEmail = strings.TrimSpace(input.CaptainEmail)

	v := &validator{}
	s.validateName(v, input.Name)
	s.validatePlayers(v, input.Players)
	validateEmail(v, input.CaptainEmail)
	v.check(input.EntryFee >= 0, "entryFee", "must not be negative")
	if err := v.err(); err != nil {
		return nil, err
	}

	taken, err := s.teamRepo.ExistsByName(ctx, input.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to check team name: %w", err)
	}
	if taken {
		return nil, ErrTeamNameConflict
	}

	now := s.now().UTC()
	team := &models.Team{
		ID:                 "team_" + s.newID(),
		Name:               input.Name,
		Players:            buildPlayers(input.Players),
		CaptainEmail:       input.CaptainEmail,
		EntryFee:           input.EntryFee,
		LogoKey:            input.LogoKey,
		PaymentStatus:      models.PaymentPending,
		RegistrationStatus: models.RegistrationPending,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := s.teamRepo.Create(ctx, team); err != nil {
		// Уникальный индекс ловит гонку двух одинаковых имён.
		if errors.Is(err, repositories.ErrTeamNameConflict) {
			return nil, ErrTeamNameConflict
		}
		return nil, fmt.Errorf("failed to create team: %w", err)
	}

	s.logger.InfoContext(ctx, "team registered", slog.String("team_id", team.ID), slog.String("name", team.Name))
	s.notifier.Notify(ctx, NotifyTeamRegistered, "New team registration",
		fmt.Sprintf("%s registered with %d players", team.Name, len(team.Players)))

	populateTeamLogoURL(team, s.uploader)
	return team, nil
}

func (s *teamService) GetTeam(ctx context.Context, id string) (*models.Team, error) {
	team, err := s.teamRepo.GetByID(ctx, id)
	if err != nil {
		return nil, mapTeamRepoError(err)
	}
	populateTeamLogoURL(team, s.uploader)
	return team, nil
}

func (s *teamService) ListTeams(ctx context.Context, input ListTeamsInput) (*TeamPage, error) {
	v := &validator{}
	if input.RegistrationStatus != nil {
		v.check(input.RegistrationStatus.Valid(), "status", "unknown registration status")
	}
	if input.PaymentStatus != nil {
		v.check(input.PaymentStatus.Valid(), "paymentStatus", "unknown payment status")
	}
	if err := v.err(); err != nil {
		return nil, err
	}

	limit, offset := normalizePage(input.Limit, input.Offset)
	teams, total, err := s.teamRepo.List(ctx, models.TeamFilter{
		RegistrationStatus: input.RegistrationStatus,
		PaymentStatus:      input.PaymentStatus,
		Limit:              limit,
		Offset:             offset,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list teams: %w", err)
	}
	populateTeamsLogoURL(teams, s.uploader)
	return &TeamPage{Items: teams, Total: total, Limit: limit, Offset: offset}, nil
}

func (s *teamService) UpdateTeam(ctx context.Context, id string, editor *Claims, input UpdateTeamInput) (*models.Team, error) {
	team, err := s.teamRepo.GetByID(ctx, id)
	if err != nil {
		return nil, mapTeamRepoError(err)
	}
	if !canManageTeam(editor, team) {
		return nil, ErrForbiddenOperation
	}

	v := &validator{}
	nameChanged := false
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		s.validateName(v, name)
		nameChanged = !strings.EqualFold(name, team.Name)
		team.Name = name
	}
	if input.Players != nil {
		s.validatePlayers(v, *input.Players)
		team.Players = buildPlayers(*input.Players)
	}
	if input.CaptainEmail != nil {
		email := strings.TrimSpace(*input.CaptainEmail)
		validateEmail(v, email)
		team.CaptainEmail = email
	}
	if input.LogoKey != nil {
		team.LogoKey = input.LogoKey
	}
	if err := v.err(); err != nil {
		return nil, err
	}

	if nameChanged {
		taken, err := s.teamRepo.ExistsByName(ctx, team.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to check team name: %w", err)
		}
		if taken {
			return nil, ErrTeamNameConflict
		}
	}

	team.UpdatedAt = s.now().UTC()
	if err := s.teamRepo.Update(ctx, team); err != nil {
		return nil, mapTeamRepoError(err)
	}
	populateTeamLogoURL(team, s.uploader)
	return team, nil
}

func (s *teamService) DeleteTeam(ctx context.Context, id string, editor *Claims) error {
	team, err := s.teamRepo.GetByID(ctx, id)
	if err != nil {
		return mapTeamRepoError(err)
	}
	if !canManageTeam(editor, team) {
		return ErrForbiddenOperation
	}
	if err := s.teamRepo.Delete(ctx, id); err != nil {
		return mapTeamRepoError(err)
	}
	s.logger.InfoContext(ctx, "team deleted", slog.String("team_id", id))
	return nil
}

// canManageTeam: админ или пользователь, вошедший с email капитана.
func canManageTeam(editor *Claims, team *models.Team) bool {
	if editor == nil {
		return false
	}
	if editor.Admin {
		return true
	}
	return editor.Email != "" && strings.EqualFold(editor.Email, team.CaptainEmail)
}

func (s *teamService) Stats(ctx context.Context) (models.TeamStats, error) {
	stats, err := s.teamRepo.Stats(ctx)
	if err != nil {
		return models.TeamStats{}, fmt.Errorf("failed to load team stats: %w", err)
	}
	return stats, nil
}

func (s *teamService) UploadLogo(ctx context.Context, id, contentType string, file io.Reader) (*models.Team, error) {
	if s.uploader == nil {
		return nil, ErrStorageUnavailable
	}
	team, err := s.teamRepo.GetByID(ctx, id)
	if err != nil {
		return nil, mapTeamRepoError(err)
	}

	key, err := storage.TeamLogoKey(team.ID, contentType)
	if err != nil {
		return nil, ErrUnsupportedFile
	}
	if _, err := s.uploader.Upload(ctx, key, contentType, file); err != nil {
		return nil, fmt.Errorf("failed to upload team logo: %w", err)
	}

	oldKey := derefString(team.LogoKey)
	if err := s.teamRepo.UpdateLogoKey(ctx, team.ID, &key); err != nil {
		return nil, mapTeamRepoError(err)
	}
	// Старый файл с другим расширением больше не нужен.
	if oldKey != "" && oldKey != key {
		if err := s.uploader.Delete(ctx, oldKey); err != nil {
			s.logger.WarnContext(ctx, "failed to delete old team logo",
				slog.String("team_id", team.ID), slog.String("key", oldKey), slog.Any("error", err))
		}
	}

	team.LogoKey = &key
	populateTeamLogoURL(team, s.uploader)
	return team, nil
}

func (s *teamService) validateName(v *validator, name string) {
	v.check(name != "", "name", "is required")
	v.check(len([]rune(name)) <= maxTeamNameLength, "name", fmt.Sprintf("must be at most %d characters", maxTeamNameLength))
}

func (s *teamService) validatePlayers(v *validator, players []PlayerInput) {
	v.check(len(players) >= s.rules.MinPlayers && len(players) <= s.rules.MaxPlayers, "players",
		fmt.Sprintf("team must have between %d and %d players", s.rules.MinPlayers, s.rules.MaxPlayers))

	seen := make(map[string]struct{}, len(players))
	for i, p := range players {
		field := fmt.Sprintf("players[%d]", i)
		v.check(strings.TrimSpace(p.Name) != "", field+".name", "is required")
		gameID := strings.TrimSpace(p.GameID)
		v.check(gameID != "", field+".gameId", "is required")
		if gameID == "" {
			continue
		}
		key := strings.ToLower(gameID)
		_, dup := seen[key]
		v.check(!dup, field+".gameId", "duplicate game id in roster")
		seen[key] = struct{}{}
		if p.Email != "" {
			_, err := parseEmail(p.Email)
			v.check(err == nil, field+".email", "is not a valid email address")
		}
	}
}

func validateEmail(v *validator, email string) {
	v.check(email != "", "captainEmail", "is required")
	if email == "" {
		return
	}
	addr, err := parseEmail(email)
	v.check(err == nil && addr == email, "captainEmail", "is not a valid email address")
}

// parseEmail принимает только голый адрес, без "Name <addr>".
func parseEmail(email string) (string, error) {
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return "", err
	}
	return addr.Address, nil
}

// buildPlayers: капитан всегда первый игрок и только он.
func buildPlayers(in []PlayerInput) models.Players {
	players := make(models.Players, 0, len(in))
	for i, p := range in {
		players = append(players, models.Player{
			Name:      strings.TrimSpace(p.Name),
			GameID:    strings.TrimSpace(p.GameID),
			Email:     strings.TrimSpace(p.Email),
			IsCaptain: i == 0,
		})
	}
	return players
}

func mapTeamRepoError(err error) error {
	switch {
	case errors.Is(err, repositories.ErrTeamNotFound):
		return ErrTeamNotFound
	case errors.Is(err, repositories.ErrTeamNameConflict):
		return ErrTeamNameConflict
	case errors.Is(err, repositories.ErrTeamPaid):
		return ErrTeamPaid
	default:
		return err
	}
}
