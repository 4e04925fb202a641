package services

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"time"

	"github.com/Sarvesh28D/FragsHub-sub000/models"
	"github.com/Sarvesh28D/FragsHub-sub000/repositories"
	"github.com/hashicorp/go-multierror"
)

//go:embed templates/*.html
var emailTemplates embed.FS

var reminderTemplate = template.Must(template.ParseFS(emailTemplates, "templates/tournament_reminder.html"))

const (
	reminderWindowStart = 24 * time.Hour
	reminderWindowEnd   = 48 * time.Hour
	reminderTimeLayout  = "Mon, 02 Jan 2006 15:04 MST"
)

type reminderData struct {
	TournamentName string
	Game           string
	TeamName       string
	CaptainName    string
	StartTime      string
	BracketURL     string
}

type ReminderService interface {
	// SendReminders пишет капитанам команд турниров, стартующих через 24–48 часов.
	SendReminders(ctx context.Context) (int, error)
}

type reminderService struct {
	tournamentRepo repositories.TournamentRepository
	teamRepo       repositories.TeamRepository
	mailer         Mailer
	location       *time.Location
	logger         *slog.Logger
	now            func() time.Time
}

func NewReminderService(
	tournamentRepo repositories.TournamentRepository,
	teamRepo repositories.TeamRepository,
	mailer Mailer,
	location *time.Location,
	logger *slog.Logger,
) ReminderService {
	if location == nil {
		location = time.UTC
	}
	return &reminderService{
		tournamentRepo: tournamentRepo,
		teamRepo:       teamRepo,
		mailer:         mailer,
		location:       location,
		logger:         logger,
		now:            time.Now,
	}
}

func (s *reminderService) SendReminders(ctx context.Context) (int, error) {
	now := s.now().UTC()
	tournaments, err := s.tournamentRepo.ListStartingBetween(ctx, now.Add(reminderWindowStart), now.Add(reminderWindowEnd))
	if err != nil {
		return 0, fmt.Errorf("failed to list tournaments starting soon: %w", err)
	}

	sent := 0
	var result *multierror.Error
	for i := range tournaments {
		t := &tournaments[i]
		if len(t.Teams) == 0 {
			continue
		}
		teams, err := s.teamRepo.GetByIDs(ctx, t.Teams.TeamIDs())
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("tournament %s: %w", t.ID, err))
			continue
		}
		for j := range teams {
			team := &teams[j]
			if !team.Eligible() || team.CaptainEmail == "" {
				continue
			}
			if err := s.remind(ctx, t, team); err != nil {
				result = multierror.Append(result, fmt.Errorf("team %s: %w", team.ID, err))
				continue
			}
			sent++
		}
	}

	s.logger.InfoContext(ctx, "tournament reminders sent", slog.Int("sent", sent), slog.Int("tournaments", len(tournaments)))
	return sent, result.ErrorOrNil()
}

func (s *reminderService) remind(ctx context.Context, t *models.Tournament, team *models.Team) error {
	data := reminderData{
		TournamentName: t.Name,
		Game:           t.Game,
		TeamName:       team.Name,
		CaptainName:    team.Name,
		BracketURL:     t.ChallongeURL,
	}
	if c := team.Captain(); c != nil {
		data.CaptainName = c.Name
	}
	if t.StartDate != nil {
		data.StartTime = t.StartDate.In(s.location).Format(reminderTimeLayout)
	}

	var body bytes.Buffer
	if err := reminderTemplate.Execute(&body, data); err != nil {
		return fmt.Errorf("ошибка выполнения шаблона: %w", err)
	}
	subject := fmt.Sprintf("Reminder: %s starts soon", t.Name)
	return s.mailer.Send(ctx, team.CaptainEmail, subject, body.String())
}
