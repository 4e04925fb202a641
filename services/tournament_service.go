package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Sarvesh28D/FragsHub-sub000/challonge"
	"github.com/Sarvesh28D/FragsHub-sub000/live"
	"github.com/Sarvesh28D/FragsHub-sub000/models"
	"github.com/Sarvesh28D/FragsHub-sub000/repositories"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"
)

const (
	bracketService = "challonge"

	maxTournamentNameLength = 100
	maxSlugBaseLength       = 50

	// Автостарт: меньше minAutoStartTeams после даты старта: перенос на сутки,
	// fullAutoStartTeams и больше: старт, не дожидаясь даты.
	minAutoStartTeams  = 4
	fullAutoStartTeams = 8
	postponeBy         = 24 * time.Hour

	FreshnessFresh = "fresh"
	FreshnessStale = "stale"
)

var scoresPattern = regexp.MustCompile(`^\d+-\d+(,\d+-\d+)*$`)

type CreateTournamentInput struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Game        string     `json:"game"`
	EntryFee    int64      `json:"entryFee"`
	MaxTeams    int        `json:"maxTeams"`
	StartDate   *time.Time `json:"startDate"`
}

type UpdateMatchInput struct {
	MatchID  int64  `json:"matchId"`
	WinnerID int64  `json:"winnerId"`
	Scores   string `json:"scores"`
}

// TournamentRead: локальное зеркало плюс признак, удалось ли его обновить из Challonge.
type TournamentRead struct {
	Tournament  *models.Tournament `json:"tournament"`
	Freshness   string             `json:"freshness"`
	StaleReason string             `json:"staleReason,omitempty"`
}

type AutoStartReport struct {
	Checked   int      `json:"checked"`
	Started   []string `json:"started"`
	Postponed []string `json:"postponed"`
}

type TournamentService interface {
	CreateTournament(ctx context.Context, input CreateTournamentInput) (*models.Tournament, error)
	GetTournament(ctx context.Context, id string) (*TournamentRead, error)
	GetActiveTournament(ctx context.Context) (*TournamentRead, error)
	ListTournaments(ctx context.Context, status *models.TournamentStatus) ([]models.Tournament, error)
	StartTournament(ctx context.Context, id string) (*models.Tournament, error)
	CompleteTournament(ctx context.Context, id string) (*models.Tournament, error)
	AddTeam(ctx context.Context, tournamentID, teamID string) (*models.TournamentTeam, error)
	UpdateMatch(ctx context.Context, tournamentID string, input UpdateMatchInput) (*models.Match, error)
	Leaderboard(ctx context.Context, tournamentID string) ([]models.Standing, error)
	DeleteTournament(ctx context.Context, id string) error
	AutoStartTournaments(ctx context.Context) (*AutoStartReport, error)
}

type tournamentService struct {
	tournamentRepo repositories.TournamentRepository
	teamRepo       repositories.TeamRepository
	bracket        BracketClient
	events         Broadcaster
	notifier       NotificationService
	timeout        time.Duration
	logger         *slog.Logger
	now            func() time.Time
}

// NewTournamentService creates the service. events may be nil.
func NewTournamentService(
	tournamentRepo repositories.TournamentRepository,
	teamRepo repositories.TeamRepository,
	bracket BracketClient,
	events Broadcaster,
	notifier NotificationService,
	upstreamTimeout time.Duration,
	logger *slog.Logger,
) TournamentService {
	if events == nil {
		events = nopBroadcaster{}
	}
	return &tournamentService{
		tournamentRepo: tournamentRepo,
		teamRepo:       teamRepo,
		bracket:        bracket,
		events:         events,
		notifier:       notifier,
		timeout:        upstreamTimeout,
		logger:         logger,
		now:            time.Now,
	}
}

func (s *tournamentService) CreateTournament(ctx context.Context, input CreateTournamentInput) (*models.Tournament, error) {
	input.Name = strings.TrimSpace(input.Name)

	v := &validator{}
	v.check(input.Name != "", "name", "is required")
	v.check(len([]rune(input.Name)) <= maxTournamentNameLength, "name",
		fmt.Sprintf("must be at most %d characters", maxTournamentNameLength))
	v.check(input.MaxTeams >= 2, "maxTeams", "must be at least 2")
	v.check(input.EntryFee >= 0, "entryFee", "must not be negative")
	if err := v.err(); err != nil {
		return nil, err
	}

	params := challonge.CreateTournamentParams{
		Name:        input.Name,
		URL:         tournamentSlug(input.Name),
		Type:        "single elimination",
		Description: input.Description,
		GameName:    input.Game,
		SignupCap:   input.MaxTeams,
		StartAt:     input.StartDate,
	}
	upCtx, cancel := withUpstreamTimeout(ctx, s.timeout)
	created, err := s.bracket.CreateTournament(upCtx, params)
	cancel()
	if err != nil {
		return nil, upstream(bracketService, "create tournament", err)
	}

	now := s.now().UTC()
	t := &models.Tournament{
		ID:           strconv.FormatInt(created.ID, 10),
		Name:         input.Name,
		Description:  input.Description,
		EntryFee:     input.EntryFee,
		MaxTeams:     input.MaxTeams,
		StartDate:    input.StartDate,
		Game:         input.Game,
		Status:       challonge.Status(created.State),
		ChallongeID:  created.ID,
		ChallongeURL: created.FullChallongeURL,
		Teams:        models.TournamentTeams{},
		Matches:      models.Matches{},
		CreatedAt:    now,
	}
	if err := s.tournamentRepo.Create(ctx, t); err != nil {
		// Без локальной записи турнир в Challonge никому не нужен.
		cleanupCtx, cancel := withUpstreamTimeout(context.WithoutCancel(ctx), s.timeout)
		if delErr := s.bracket.DeleteTournament(cleanupCtx, created.ID); delErr != nil {
			s.logger.ErrorContext(ctx, "failed to delete orphaned bracket tournament",
				slog.Int64("challonge_id", created.ID), slog.Any("error", delErr))
		}
		cancel()
		return nil, fmt.Errorf("failed to store tournament: %w", err)
	}

	s.logger.InfoContext(ctx, "tournament created", slog.String("tournament_id", t.ID), slog.String("url", t.ChallongeURL))
	return t, nil
}

// tournamentSlug: в URL Challonge допустимы только буквы, цифры и подчёркивание.
func tournamentSlug(name string) string {
	base := strings.ReplaceAll(slug.Make(name), "-", "_")
	if len(base) > maxSlugBaseLength {
		base = strings.TrimRight(base[:maxSlugBaseLength], "_")
	}
	if base == "" {
		base = "tournament"
	}
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return base + "_" + suffix
}

func (s *tournamentService) GetTournament(ctx context.Context, id string) (*TournamentRead, error) {
	t, err := s.tournamentRepo.GetByID(ctx, id)
	if err != nil {
		return nil, mapTournamentRepoError(err)
	}
	return s.refresh(ctx, t), nil
}

func (s *tournamentService) GetActiveTournament(ctx context.Context) (*TournamentRead, error) {
	t, err := s.tournamentRepo.FindActive(ctx)
	if err != nil {
		return nil, mapTournamentRepoError(err)
	}
	return s.refresh(ctx, t), nil
}

// refresh дочитывает состояние из Challonge. Ошибка обновления не ошибка чтения:
// возвращается локальная копия с пометкой stale.
func (s *tournamentService) refresh(ctx context.Context, t *models.Tournament) *TournamentRead {
	if t.ChallongeID == 0 {
		return &TournamentRead{Tournament: t, Freshness: FreshnessStale, StaleReason: "tournament has no bracket"}
	}

	upCtx, cancel := withUpstreamTimeout(ctx, s.timeout)
	defer cancel()

	var (
		remote       *challonge.Tournament
		participants []challonge.Participant
		matches      []challonge.Match
	)
	g, gCtx := errgroup.WithContext(upCtx)
	g.Go(func() error {
		var err error
		remote, err = s.bracket.GetTournament(gCtx, t.ChallongeID)
		return err
	})
	g.Go(func() error {
		var err error
		participants, err = s.bracket.ListParticipants(gCtx, t.ChallongeID)
		return err
	})
	g.Go(func() error {
		var err error
		matches, err = s.bracket.ListMatches(gCtx, t.ChallongeID)
		return err
	})
	if err := g.Wait(); err != nil {
		uerr := upstream(bracketService, "refresh tournament", err)
		s.logger.WarnContext(ctx, "serving stale tournament", slog.String("tournament_id", t.ID), slog.Any("error", uerr))
		return &TournamentRead{Tournament: t, Freshness: FreshnessStale, StaleReason: uerr.Error()}
	}

	prevStatus := t.Status
	prevMatches := t.Matches
	t.Teams = mergeParticipants(t.Teams, participants, s.now().UTC())
	t.Matches = challonge.MatchModels(matches)
	t.Status = nextStatus(t.Status, challonge.Status(remote.State))
	if t.Status == models.StatusLive && t.StartedAt == nil && remote.StartedAt != nil {
		t.StartedAt = remote.StartedAt
	}
	if t.Status == models.StatusCompleted && t.CompletedAt == nil && remote.CompletedAt != nil {
		t.CompletedAt = remote.CompletedAt
	}

	if err := s.tournamentRepo.SyncMirror(ctx, t); err != nil {
		s.logger.WarnContext(ctx, "failed to write back refreshed tournament", slog.String("tournament_id", t.ID), slog.Any("error", err))
	} else if prevStatus != t.Status || !reflect.DeepEqual(prevMatches, t.Matches) {
		s.events.Publish(t.ID, live.EventTournamentSynced, t)
	}
	return &TournamentRead{Tournament: t, Freshness: FreshnessFresh}
}

// mergeParticipants сопоставляет участников Challonge с локальными записями по misc (teamId).
// Незнакомые участники (добавленные вручную в Challonge) дописываются в конец.
func mergeParticipants(local models.TournamentTeams, participants []challonge.Participant, now time.Time) models.TournamentTeams {
	merged := make(models.TournamentTeams, len(local))
	copy(merged, local)
	for _, p := range participants {
		if p.Misc != "" {
			if i, ok := merged.Find(p.Misc); ok {
				merged[i].ParticipantID = p.ID
				continue
			}
		}
		known := false
		for _, e := range merged {
			if e.ParticipantID == p.ID {
				known = true
				break
			}
		}
		if known {
			continue
		}
		teamID := p.Misc
		if teamID == "" {
			teamID = fmt.Sprintf("challonge_%d", p.ID)
		}
		merged = append(merged, models.TournamentTeam{TeamID: teamID, ParticipantID: p.ID, Name: p.Name, JoinedAt: now})
	}
	return merged
}

// nextStatus не даёт статусу откатиться назад.
func nextStatus(current, remote models.TournamentStatus) models.TournamentStatus {
	rank := map[models.TournamentStatus]int{
		models.StatusUpcoming:  0,
		models.StatusLive:      1,
		models.StatusCompleted: 2,
	}
	if rank[remote] > rank[current] {
		return remote
	}
	return current
}

func (s *tournamentService) ListTournaments(ctx context.Context, status *models.TournamentStatus) ([]models.Tournament, error) {
	if status != nil && !status.Valid() {
		return nil, &ValidationError{Fields: map[string]string{"status": "unknown tournament status"}}
	}
	list, err := s.tournamentRepo.List(ctx, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list tournaments: %w", err)
	}
	return list, nil
}

func (s *tournamentService) StartTournament(ctx context.Context, id string) (*models.Tournament, error) {
	t, err := s.tournamentRepo.GetByID(ctx, id)
	if err != nil {
		return nil, mapTournamentRepoError(err)
	}
	if t.Status != models.StatusUpcoming {
		return nil, ErrTournamentNotUpcoming
	}
	if err := s.start(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *tournamentService) start(ctx context.Context, t *models.Tournament) error {
	upCtx, cancel := withUpstreamTimeout(ctx, s.timeout)
	_, err := s.bracket.StartTournament(upCtx, t.ChallongeID)
	cancel()
	if err != nil {
		return upstream(bracketService, "start tournament", err)
	}

	now := s.now().UTC()
	if err := s.tournamentRepo.MarkStarted(ctx, t.ID, now); err != nil {
		if errors.Is(err, repositories.ErrTournamentStateConflict) {
			return ErrTournamentNotUpcoming
		}
		return fmt.Errorf("failed to mark tournament started: %w", err)
	}
	t.Status = models.StatusLive
	t.StartedAt = &now

	s.logger.InfoContext(ctx, "tournament started", slog.String("tournament_id", t.ID), slog.Int("teams", len(t.Teams)))
	s.events.Publish(t.ID, live.EventTournamentStarted, t)
	s.notifier.Notify(ctx, NotifyTournamentEvent, "Tournament started", fmt.Sprintf("%s is now live", t.Name))
	return nil
}

func (s *tournamentService) CompleteTournament(ctx context.Context, id string) (*models.Tournament, error) {
	t, err := s.tournamentRepo.GetByID(ctx, id)
	if err != nil {
		return nil, mapTournamentRepoError(err)
	}
	if t.Status != models.StatusLive {
		return nil, ErrTournamentNotLive
	}

	upCtx, cancel := withUpstreamTimeout(ctx, s.timeout)
	_, err = s.bracket.FinalizeTournament(upCtx, t.ChallongeID)
	cancel()
	if err != nil {
		return nil, upstream(bracketService, "finalize tournament", err)
	}

	now := s.now().UTC()
	if err := s.tournamentRepo.MarkCompleted(ctx, t.ID, now); err != nil {
		if errors.Is(err, repositories.ErrTournamentStateConflict) {
			return nil, ErrTournamentNotLive
		}
		return nil, fmt.Errorf("failed to mark tournament completed: %w", err)
	}
	t.Status = models.StatusCompleted
	t.CompletedAt = &now

	s.events.Publish(t.ID, live.EventTournamentCompleted, t)
	s.notifier.Notify(ctx, NotifyTournamentEvent, "Tournament completed", fmt.Sprintf("%s has finished", t.Name))
	return t, nil
}

func (s *tournamentService) AddTeam(ctx context.Context, tournamentID, teamID string) (*models.TournamentTeam, error) {
	t, err := s.tournamentRepo.GetByID(ctx, tournamentID)
	if err != nil {
		return nil, mapTournamentRepoError(err)
	}
	team, err := s.teamRepo.GetByID(ctx, teamID)
	if err != nil {
		return nil, mapTeamRepoError(err)
	}
	if !team.Eligible() {
		return nil, ErrTeamNotEligible
	}

	i, found := t.Teams.Find(teamID)
	if found && t.Teams[i].Registered() {
		entry := t.Teams[i]
		return &entry, nil
	}
	if t.Status != models.StatusUpcoming {
		return nil, ErrTournamentNotUpcoming
	}

	if !found {
		entry := models.TournamentTeam{TeamID: team.ID, Name: team.Name, JoinedAt: s.now().UTC()}
		appended, err := s.tournamentRepo.AppendTeam(ctx, t.ID, entry)
		if err != nil {
			return nil, err
		}
		if !appended {
			// Кто-то успел раньше: перечитываем и разбираемся, почему.
			if t, err = s.tournamentRepo.GetByID(ctx, tournamentID); err != nil {
				return nil, mapTournamentRepoError(err)
			}
			if i, found = t.Teams.Find(teamID); !found {
				if t.Status != models.StatusUpcoming {
					return nil, ErrTournamentNotUpcoming
				}
				return nil, ErrTournamentFull
			}
			if t.Teams[i].Registered() {
				entry := t.Teams[i]
				return &entry, nil
			}
		} else {
			t.Teams = append(t.Teams, entry)
			i = len(t.Teams) - 1
		}
	}

	entry := t.Teams[i]
	if err := s.registerParticipant(ctx, t, &entry); err != nil {
		return nil, err
	}
	s.events.Publish(t.ID, live.EventTeamAdded, entry)
	return &entry, nil
}

// registerParticipant регистрирует запись в Challonge и сохраняет полученный participantId.
// При ошибке запись остаётся с participantId 0 и будет зарегистрирована повторно.
func (s *tournamentService) registerParticipant(ctx context.Context, t *models.Tournament, entry *models.TournamentTeam) error {
	upCtx, cancel := withUpstreamTimeout(ctx, s.timeout)
	p, err := s.bracket.AddParticipant(upCtx, t.ChallongeID, entry.Name, entry.TeamID)
	cancel()
	if err != nil {
		return upstream(bracketService, "add participant", err)
	}
	if err := s.tournamentRepo.SetParticipantID(ctx, t.ID, entry.TeamID, p.ID); err != nil {
		return fmt.Errorf("failed to store participant id: %w", err)
	}
	entry.ParticipantID = p.ID
	s.logger.InfoContext(ctx, "team registered in bracket",
		slog.String("tournament_id", t.ID), slog.String("team_id", entry.TeamID), slog.Int64("participant_id", p.ID))
	return nil
}

func (s *tournamentService) UpdateMatch(ctx context.Context, tournamentID string, input UpdateMatchInput) (*models.Match, error) {
	input.Scores = strings.ReplaceAll(input.Scores, " ", "")

	v := &validator{}
	v.check(input.MatchID > 0, "matchId", "is required")
	v.check(input.WinnerID > 0, "winnerId", "is required")
	v.check(input.Scores == "" || scoresPattern.MatchString(input.Scores), "scores", `must look like "2-1" or "2-1,1-2"`)
	if err := v.err(); err != nil {
		return nil, err
	}

	t, err := s.tournamentRepo.GetByID(ctx, tournamentID)
	if err != nil {
		return nil, mapTournamentRepoError(err)
	}

	upCtx, cancel := withUpstreamTimeout(ctx, s.timeout)
	m, err := s.bracket.UpdateMatch(upCtx, t.ChallongeID, input.MatchID, input.WinnerID, input.Scores)
	cancel()
	if err != nil {
		return nil, upstream(bracketService, "update match", err)
	}

	match := m.Model()
	s.events.Publish(t.ID, live.EventMatchUpdated, match)
	return &match, nil
}

func (s *tournamentService) Leaderboard(ctx context.Context, tournamentID string) ([]models.Standing, error) {
	t, err := s.tournamentRepo.GetByID(ctx, tournamentID)
	if err != nil {
		return nil, mapTournamentRepoError(err)
	}

	upCtx, cancel := withUpstreamTimeout(ctx, s.timeout)
	participants, err := s.bracket.ListParticipants(upCtx, t.ChallongeID)
	cancel()
	if err != nil {
		return nil, upstream(bracketService, "list participants", err)
	}
	return buildStandings(participants), nil
}

// buildStandings сортирует по final_rank, без ранга в конце, порядок Challonge сохраняется.
func buildStandings(participants []challonge.Participant) []models.Standing {
	standings := make([]models.Standing, 0, len(participants))
	for _, p := range participants {
		standings = append(standings, models.Standing{
			ParticipantID: p.ID,
			TeamID:        p.Misc,
			Name:          p.Name,
			Seed:          p.Seed,
			FinalRank:     p.FinalRank,
		})
	}
	rank := func(st models.Standing) int {
		if st.FinalRank == nil {
			return math.MaxInt
		}
		return *st.FinalRank
	}
	sort.SliceStable(standings, func(i, j int) bool {
		return rank(standings[i]) < rank(standings[j])
	})
	return standings
}

func (s *tournamentService) DeleteTournament(ctx context.Context, id string) error {
	t, err := s.tournamentRepo.GetByID(ctx, id)
	if err != nil {
		return mapTournamentRepoError(err)
	}

	if t.ChallongeID != 0 {
		upCtx, cancel := withUpstreamTimeout(ctx, s.timeout)
		err := s.bracket.DeleteTournament(upCtx, t.ChallongeID)
		cancel()
		var apiErr *challonge.APIError
		if err != nil && !(errors.As(err, &apiErr) && apiErr.NotFound()) {
			return upstream(bracketService, "delete tournament", err)
		}
	}

	if err := s.tournamentRepo.Delete(ctx, t.ID); err != nil {
		return mapTournamentRepoError(err)
	}
	s.logger.InfoContext(ctx, "tournament deleted", slog.String("tournament_id", t.ID))
	return nil
}

// AutoStartTournaments проходит по upcoming-турнирам. Восемь команд считаются только
// по списку самого турнира; после даты старта в турнир добираются все approved+paid
// команды, ещё не занятые другим live или upcoming турниром. Ошибка одного турнира
// или одной команды не мешает остальным.
func (s *tournamentService) AutoStartTournaments(ctx context.Context) (*AutoStartReport, error) {
	upcoming, err := s.tournamentRepo.ListUpcoming(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list upcoming tournaments: %w", err)
	}

	report := &AutoStartReport{Checked: len(upcoming), Started: []string{}, Postponed: []string{}}
	var result *multierror.Error
	now := s.now().UTC()

	// Свободные команды грузятся один раз и только если какой-то турнир уже пора начинать.
	var free *freeTeams

	for i := range upcoming {
		t := &upcoming[i]
		pool, err := s.eligiblePool(ctx, t)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("tournament %s: %w", t.ID, err))
			continue
		}

		due := t.StartDate != nil && !t.StartDate.After(now)
		if due {
			if free == nil {
				if free, err = s.loadFreeTeams(ctx, upcoming); err != nil {
					result = multierror.Append(result, err)
					free = &freeTeams{claimed: map[string]string{}}
				}
			}
			gathered, err := s.gather(ctx, t, free)
			if err != nil {
				result = multierror.Append(result, fmt.Errorf("tournament %s: gather teams: %w", t.ID, err))
			}
			pool = append(pool, gathered...)
		}

		switch {
		case due && len(pool) < minAutoStartTeams:
			next := t.StartDate.Add(postponeBy)
			if err := s.tournamentRepo.UpdateStartDate(ctx, t.ID, next); err != nil {
				result = multierror.Append(result, fmt.Errorf("tournament %s: postpone: %w", t.ID, err))
				continue
			}
			report.Postponed = append(report.Postponed, t.ID)
			s.logger.InfoContext(ctx, "tournament postponed",
				slog.String("tournament_id", t.ID), slog.Int("eligible_teams", len(pool)), slog.Time("start_date", next))
			s.notifier.Notify(ctx, NotifyTournamentEvent, "Tournament postponed",
				fmt.Sprintf("%s has %d eligible teams, start moved to %s", t.Name, len(pool), next.Format(time.RFC3339)))

		case due || len(pool) >= fullAutoStartTeams:
			started, err := s.autoStart(ctx, t, pool)
			if err != nil {
				result = multierror.Append(result, fmt.Errorf("tournament %s: %w", t.ID, err))
			}
			if started {
				report.Started = append(report.Started, t.ID)
			}
		}
	}

	if err := result.ErrorOrNil(); err != nil {
		s.logger.WarnContext(ctx, "auto-start finished with errors", slog.Any("error", err))
		return report, err
	}
	return report, nil
}

// autoStart регистрирует в Challonge ещё не зарегистрированные команды пула и стартует
// турнир, если зарегистрированных набралось хотя бы minAutoStartTeams. Команда, которую
// Challonge не принял, пропускается; её ошибка возвращается вместе с результатом.
func (s *tournamentService) autoStart(ctx context.Context, t *models.Tournament, pool []models.TournamentTeam) (bool, error) {
	var result *multierror.Error
	registered := 0
	for i := range pool {
		if !pool[i].Registered() {
			if err := s.registerParticipant(ctx, t, &pool[i]); err != nil {
				s.logger.WarnContext(ctx, "skipping team in auto-start",
					slog.String("tournament_id", t.ID), slog.String("team_id", pool[i].TeamID), slog.Any("error", err))
				result = multierror.Append(result, fmt.Errorf("team %s: %w", pool[i].TeamID, err))
				continue
			}
		}
		registered++
	}

	if registered < minAutoStartTeams {
		result = multierror.Append(result, fmt.Errorf("only %d of %d teams registered in bracket", registered, len(pool)))
		return false, result.ErrorOrNil()
	}
	if err := s.start(ctx, t); err != nil {
		result = multierror.Append(result, err)
		return false, result.ErrorOrNil()
	}
	return true, result.ErrorOrNil()
}

// eligiblePool: записи турнира, чьи команды сейчас approved и paid.
func (s *tournamentService) eligiblePool(ctx context.Context, t *models.Tournament) ([]models.TournamentTeam, error) {
	if len(t.Teams) == 0 {
		return nil, nil
	}
	teams, err := s.teamRepo.GetByIDs(ctx, t.Teams.TeamIDs())
	if err != nil {
		return nil, fmt.Errorf("failed to load teams: %w", err)
	}
	eligible := make(map[string]bool, len(teams))
	for i := range teams {
		eligible[teams[i].ID] = teams[i].Eligible()
	}

	pool := make([]models.TournamentTeam, 0, len(t.Teams))
	for _, e := range t.Teams {
		if eligible[e.TeamID] {
			pool = append(pool, e)
		}
	}
	return pool, nil
}

// freeTeams: approved+paid команды и то, какой турнир уже занял каждую из них.
type freeTeams struct {
	eligible []models.Team
	claimed  map[string]string
}

func (s *tournamentService) loadFreeTeams(ctx context.Context, upcoming []models.Tournament) (*freeTeams, error) {
	liveStatus := models.StatusLive
	running, err := s.tournamentRepo.List(ctx, &liveStatus)
	if err != nil {
		return nil, fmt.Errorf("failed to list live tournaments: %w", err)
	}
	eligible, err := s.teamRepo.ListEligible(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list eligible teams: %w", err)
	}

	free := &freeTeams{eligible: eligible, claimed: map[string]string{}}
	for _, list := range [][]models.Tournament{running, upcoming} {
		for _, t := range list {
			for _, e := range t.Teams {
				free.claimed[e.TeamID] = t.ID
			}
		}
	}
	return free, nil
}

// gather дописывает в турнир свободные команды, пока есть места.
func (s *tournamentService) gather(ctx context.Context, t *models.Tournament, free *freeTeams) ([]models.TournamentTeam, error) {
	var added []models.TournamentTeam
	for i := range free.eligible {
		team := &free.eligible[i]
		if _, taken := free.claimed[team.ID]; taken {
			continue
		}
		entry := models.TournamentTeam{TeamID: team.ID, Name: team.Name, JoinedAt: s.now().UTC()}
		appended, err := s.tournamentRepo.AppendTeam(ctx, t.ID, entry)
		if err != nil {
			return added, err
		}
		if !appended {
			// Мест больше нет.
			break
		}
		free.claimed[team.ID] = t.ID
		t.Teams = append(t.Teams, entry)
		added = append(added, entry)
	}
	if len(added) > 0 {
		s.logger.InfoContext(ctx, "teams gathered into tournament",
			slog.String("tournament_id", t.ID), slog.Int("teams", len(added)))
	}
	return added, nil
}

func mapTournamentRepoError(err error) error {
	switch {
	case errors.Is(err, repositories.ErrTournamentNotFound):
		return ErrTournamentNotFound
	case errors.Is(err, repositories.ErrTournamentStateConflict):
		return ErrTournamentNotUpcoming
	default:
		return err
	}
}
