package services

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/Sarvesh28D/FragsHub-sub000/challonge"
	"github.com/Sarvesh28D/FragsHub-sub000/live"
	"github.com/Sarvesh28D/FragsHub-sub000/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tournamentFixture struct {
	svc         *tournamentService
	teams       *fakeTeamRepo
	tournaments *fakeTournamentRepo
	bracket     *fakeBracket
	events      *fakeBroadcaster
	notes       *fakeNotificationRepo
}

func newTournamentFixture(teams []*models.Team, tournaments ...*models.Tournament) *tournamentFixture {
	f := &tournamentFixture{
		teams:       newFakeTeamRepo(teams...),
		tournaments: newFakeTournamentRepo(tournaments...),
		bracket:     newFakeBracket(),
		events:      &fakeBroadcaster{},
	}
	var notifier NotificationService
	notifier, f.notes = newNotifier()
	f.svc = NewTournamentService(f.tournaments, f.teams, f.bracket, f.events, notifier, time.Second, discardLogger()).(*tournamentService)
	f.svc.now = fixedNow
	return f
}

func TestCreateTournament(t *testing.T) {
	f := newTournamentFixture(nil)
	start := testNow.Add(72 * time.Hour)

	created, err := f.svc.CreateTournament(context.Background(), CreateTournamentInput{
		Name:      "Spring Cup: Finals!",
		Game:      "Valorant",
		EntryFee:  500,
		MaxTeams:  16,
		StartDate: &start,
	})
	require.NoError(t, err)
	assert.Equal(t, "1001", created.ID)
	assert.Equal(t, int64(1001), created.ChallongeID)
	assert.Equal(t, models.StatusUpcoming, created.Status)
	assert.Empty(t, created.Teams)

	require.Len(t, f.bracket.created, 1)
	params := f.bracket.created[0]
	assert.Equal(t, "single elimination", params.Type)
	assert.Regexp(t, regexp.MustCompile(`^spring_cup_finals_[0-9a-f]{8}$`), params.URL)
	assert.NotNil(t, f.tournaments.get("1001"))
}

func TestCreateTournamentCleansUpBracketWhenStoreFails(t *testing.T) {
	f := newTournamentFixture(nil)
	f.tournaments.createErr = errors.New("db down")

	_, err := f.svc.CreateTournament(context.Background(), CreateTournamentInput{Name: "Cup", MaxTeams: 8})
	require.Error(t, err)
	assert.Equal(t, []int64{1001}, f.bracket.deleted)
}

func TestCreateTournamentValidation(t *testing.T) {
	f := newTournamentFixture(nil)
	_, err := f.svc.CreateTournament(context.Background(), CreateTournamentInput{Name: "", MaxTeams: 1})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "name")
	assert.Contains(t, verr.Fields, "maxTeams")
	assert.Empty(t, f.bracket.created)
}

func TestTournamentSlugIsBounded(t *testing.T) {
	long := "A very long tournament name that keeps going well past the limit of fifty characters"
	s := tournamentSlug(long)
	assert.LessOrEqual(t, len(s), maxSlugBaseLength+9)
	assert.Regexp(t, `^[a-z0-9_]+$`, s)
	assert.Regexp(t, `^tournament_[0-9a-f]{8}$`, tournamentSlug("!!!"))
}

func TestAddTeam(t *testing.T) {
	f := newTournamentFixture(
		[]*models.Team{eligibleTeam("team_a", "Alpha"), paidTeam("team_p", "Pending")},
		upcomingTournament("1", 11, 8),
	)
	ctx := context.Background()

	entry, err := f.svc.AddTeam(ctx, "1", "team_a")
	require.NoError(t, err)
	assert.NotZero(t, entry.ParticipantID)
	assert.Equal(t, 1, f.bracket.addCount(11))

	stored := f.tournaments.get("1")
	require.Len(t, stored.Teams, 1)
	assert.Equal(t, entry.ParticipantID, stored.Teams[0].ParticipantID)
	assert.Equal(t, []string{live.EventTeamAdded}, f.events.types())

	// Повтор возвращает ту же запись без второго участника в Challonge.
	again, err := f.svc.AddTeam(ctx, "1", "team_a")
	require.NoError(t, err)
	assert.Equal(t, entry.ParticipantID, again.ParticipantID)
	assert.Equal(t, 1, f.bracket.addCount(11))
	assert.Len(t, f.tournaments.get("1").Teams, 1)

	_, err = f.svc.AddTeam(ctx, "1", "team_p")
	assert.ErrorIs(t, err, ErrTeamNotEligible)
}

func TestAddTeamToFullTournament(t *testing.T) {
	full := upcomingTournament("1", 11, 1)
	full.Teams = models.TournamentTeams{{TeamID: "team_x", ParticipantID: 5, Name: "X"}}
	f := newTournamentFixture([]*models.Team{eligibleTeam("team_a", "Alpha")}, full)

	_, err := f.svc.AddTeam(context.Background(), "1", "team_a")
	assert.ErrorIs(t, err, ErrTournamentFull)
	assert.Equal(t, 0, f.bracket.addCount(11))
}

func TestAddTeamRetriesUnregisteredEntry(t *testing.T) {
	tour := upcomingTournament("1", 11, 8)
	tour.Teams = models.TournamentTeams{{TeamID: "team_a", Name: "Alpha"}}
	f := newTournamentFixture([]*models.Team{eligibleTeam("team_a", "Alpha")}, tour)
	f.bracket.addErr = errors.New("connection reset")

	_, err := f.svc.AddTeam(context.Background(), "1", "team_a")
	var uerr *UpstreamError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, "challonge", uerr.Service)
	assert.Zero(t, f.tournaments.get("1").Teams[0].ParticipantID)

	f.bracket.addErr = nil
	entry, err := f.svc.AddTeam(context.Background(), "1", "team_a")
	require.NoError(t, err)
	assert.NotZero(t, entry.ParticipantID)
	assert.Len(t, f.tournaments.get("1").Teams, 1)
}

func TestAddTeamAfterStart(t *testing.T) {
	tour := upcomingTournament("1", 11, 8)
	tour.Status = models.StatusLive
	f := newTournamentFixture([]*models.Team{eligibleTeam("team_a", "Alpha")}, tour)

	_, err := f.svc.AddTeam(context.Background(), "1", "team_a")
	assert.ErrorIs(t, err, ErrTournamentNotUpcoming)
}

func TestStartAndCompleteTournament(t *testing.T) {
	f := newTournamentFixture(nil, upcomingTournament("1", 11, 8))
	ctx := context.Background()

	_, err := f.svc.CompleteTournament(ctx, "1")
	assert.ErrorIs(t, err, ErrTournamentNotLive)

	started, err := f.svc.StartTournament(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusLive, started.Status)
	assert.Equal(t, []int64{11}, f.bracket.started)

	_, err = f.svc.StartTournament(ctx, "1")
	assert.ErrorIs(t, err, ErrTournamentNotUpcoming)

	completed, err := f.svc.CompleteTournament(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, completed.Status)
	assert.Equal(t, []string{live.EventTournamentStarted, live.EventTournamentCompleted}, f.events.types())
}

func TestGetTournamentRefreshesFromBracket(t *testing.T) {
	tour := upcomingTournament("1", 11, 8)
	tour.Teams = models.TournamentTeams{{TeamID: "team_a", Name: "Alpha"}}
	f := newTournamentFixture(nil, tour)
	f.bracket.state[11] = "underway"
	f.bracket.participants[11] = []challonge.Participant{
		{ID: 100, Name: "Alpha", Misc: "team_a"},
		{ID: 101, Name: "Walk-in"},
	}
	p1, p2 := int64(100), int64(101)
	f.bracket.matches[11] = []challonge.Match{{ID: 900, Round: 1, State: "open", Player1ID: &p1, Player2ID: &p2}}

	read, err := f.svc.GetTournament(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, FreshnessFresh, read.Freshness)
	assert.Equal(t, models.StatusLive, read.Tournament.Status)
	require.Len(t, read.Tournament.Teams, 2)
	assert.Equal(t, int64(100), read.Tournament.Teams[0].ParticipantID)
	assert.Equal(t, "challonge_101", read.Tournament.Teams[1].TeamID)
	require.Len(t, read.Tournament.Matches, 1)

	stored := f.tournaments.get("1")
	assert.Equal(t, models.StatusLive, stored.Status)
	assert.Equal(t, []string{live.EventTournamentSynced}, f.events.types())
}

func TestGetTournamentServesStaleCopy(t *testing.T) {
	f := newTournamentFixture(nil, upcomingTournament("1", 11, 8))
	f.bracket.err = context.DeadlineExceeded

	read, err := f.svc.GetTournament(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, FreshnessStale, read.Freshness)
	assert.Contains(t, read.StaleReason, "timed out")
	assert.Equal(t, "1", read.Tournament.ID)

	_, err = f.svc.GetTournament(context.Background(), "404")
	assert.ErrorIs(t, err, ErrTournamentNotFound)
}

func TestStatusNeverRegresses(t *testing.T) {
	assert.Equal(t, models.StatusLive, nextStatus(models.StatusLive, models.StatusUpcoming))
	assert.Equal(t, models.StatusCompleted, nextStatus(models.StatusLive, models.StatusCompleted))
	assert.Equal(t, models.StatusCompleted, nextStatus(models.StatusCompleted, models.StatusLive))
}

func TestLeaderboardOrdering(t *testing.T) {
	f := newTournamentFixture(nil, upcomingTournament("1", 11, 8))
	r1, r2, r3 := 1, 2, 3
	f.bracket.participants[11] = []challonge.Participant{
		{ID: 1, Name: "NoRankA"},
		{ID: 2, Name: "Third", FinalRank: &r3},
		{ID: 3, Name: "First", FinalRank: &r1},
		{ID: 4, Name: "NoRankB"},
		{ID: 5, Name: "Second", FinalRank: &r2},
	}

	standings, err := f.svc.Leaderboard(context.Background(), "1")
	require.NoError(t, err)
	names := make([]string, 0, len(standings))
	for _, st := range standings {
		names = append(names, st.Name)
	}
	assert.Equal(t, []string{"First", "Second", "Third", "NoRankA", "NoRankB"}, names)
}

func TestUpdateMatchUpstreamError(t *testing.T) {
	f := newTournamentFixture(nil, upcomingTournament("1", 11, 8))
	f.bracket.err = &challonge.APIError{StatusCode: 422, Messages: []string{"winner is not a participant"}}

	_, err := f.svc.UpdateMatch(context.Background(), "1", UpdateMatchInput{MatchID: 1, WinnerID: 2, Scores: "2 - 0"})
	var uerr *UpstreamError
	require.ErrorAs(t, err, &uerr)
	assert.False(t, uerr.Timeout)
}

func TestDeleteTournamentToleratesMissingBracket(t *testing.T) {
	f := newTournamentFixture(nil, upcomingTournament("1", 11, 8))
	f.bracket.deleteErr = &challonge.APIError{StatusCode: 404}

	require.NoError(t, f.svc.DeleteTournament(context.Background(), "1"))
	assert.Nil(t, f.tournaments.get("1"))
}

func TestAutoStartTournaments(t *testing.T) {
	past := testNow.Add(-time.Hour)
	future := testNow.Add(48 * time.Hour)

	var teams []*models.Team
	entries := func(prefix string, n int) models.TournamentTeams {
		out := models.TournamentTeams{}
		for i := 0; i < n; i++ {
			id := prefix + string(rune('a'+i))
			teams = append(teams, eligibleTeam(id, id))
			out = append(out, models.TournamentTeam{TeamID: id, Name: id})
		}
		return out
	}

	// Дата наступила, команд мало: перенос.
	short := upcomingTournament("1", 11, 16)
	short.StartDate = &past
	short.Teams = entries("s", 3)

	// Дата наступила, команд достаточно: старт.
	due := upcomingTournament("2", 12, 16)
	due.StartDate = &past
	due.Teams = entries("d", 4)

	// Дата не наступила, но набралось восемь: старт.
	full := upcomingTournament("3", 13, 16)
	full.StartDate = &future
	full.Teams = entries("f", 8)

	// Дата не наступила, команд мало: ничего.
	waiting := upcomingTournament("4", 14, 16)
	waiting.StartDate = &future
	waiting.Teams = entries("w", 2)

	// Неоплаченные команды не считаются.
	mixed := upcomingTournament("5", 15, 16)
	mixed.StartDate = &past
	mixed.Teams = entries("m", 3)
	unpaid := paidTeam("m_unpaid", "m_unpaid")
	unpaid.PaymentStatus = models.PaymentPending
	teams = append(teams, unpaid)
	mixed.Teams = append(mixed.Teams, models.TournamentTeam{TeamID: "m_unpaid", Name: "m_unpaid"})

	f := newTournamentFixture(teams, short, due, full, waiting, mixed)

	report, err := f.svc.AutoStartTournaments(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, report.Checked)
	assert.ElementsMatch(t, []string{"2", "3"}, report.Started)
	assert.ElementsMatch(t, []string{"1", "5"}, report.Postponed)

	assert.Equal(t, past.Add(24*time.Hour), *f.tournaments.get("1").StartDate)
	assert.Equal(t, models.StatusUpcoming, f.tournaments.get("1").Status)
	assert.Equal(t, models.StatusLive, f.tournaments.get("2").Status)
	assert.Equal(t, models.StatusLive, f.tournaments.get("3").Status)
	assert.Equal(t, models.StatusUpcoming, f.tournaments.get("4").Status)

	// Все стартовавшие команды зарегистрированы в Challonge.
	assert.Equal(t, 4, f.bracket.addCount(12))
	assert.Equal(t, 8, f.bracket.addCount(13))
	for _, e := range f.tournaments.get("3").Teams {
		assert.True(t, e.Registered(), e.TeamID)
	}
}

func TestAutoStartCollectsErrors(t *testing.T) {
	past := testNow.Add(-time.Hour)
	var teams []*models.Team
	tour := upcomingTournament("1", 11, 16)
	tour.StartDate = &past
	for _, id := range []string{"a", "b", "c", "d"} {
		teams = append(teams, eligibleTeam(id, id))
		tour.Teams = append(tour.Teams, models.TournamentTeam{TeamID: id, Name: id})
	}
	f := newTournamentFixture(teams, tour)
	f.bracket.err = errors.New("bracket unavailable")

	report, err := f.svc.AutoStartTournaments(context.Background())
	require.Error(t, err)
	assert.Empty(t, report.Started)
	assert.Equal(t, models.StatusUpcoming, f.tournaments.get("1").Status)
}

func TestAutoStartSkipsRejectedTeam(t *testing.T) {
	past := testNow.Add(-time.Hour)
	build := func(ids ...string) *tournamentFixture {
		var teams []*models.Team
		tour := upcomingTournament("1", 11, 16)
		tour.StartDate = &past
		for _, id := range ids {
			teams = append(teams, eligibleTeam(id, id))
			tour.Teams = append(tour.Teams, models.TournamentTeam{TeamID: id, Name: id})
		}
		f := newTournamentFixture(teams, tour)
		f.bracket.rejectTeam = map[string]error{"b": &challonge.APIError{StatusCode: 422, Messages: []string{"Name has already been taken"}}}
		return f
	}

	t.Run("остальные команды регистрируются, турнир стартует", func(t *testing.T) {
		f := build("a", "b", "c", "d", "e")

		report, err := f.svc.AutoStartTournaments(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "team b")
		assert.Equal(t, []string{"1"}, report.Started)

		got := f.tournaments.get("1")
		assert.Equal(t, models.StatusLive, got.Status)
		assert.Equal(t, 4, f.bracket.addCount(11))
		for _, e := range got.Teams {
			assert.Equal(t, e.TeamID != "b", e.Registered(), e.TeamID)
		}
	})

	t.Run("без отклонённой команды не хватает до минимума", func(t *testing.T) {
		f := build("a", "b", "c", "d")

		report, err := f.svc.AutoStartTournaments(context.Background())
		require.Error(t, err)
		assert.Empty(t, report.Started)
		assert.Equal(t, models.StatusUpcoming, f.tournaments.get("1").Status)
		assert.Equal(t, 3, f.bracket.addCount(11))
		assert.Empty(t, f.bracket.started)
	})
}

func TestAutoStartGathersFreeTeamsWhenDue(t *testing.T) {
	past := testNow.Add(-time.Hour)
	future := testNow.Add(48 * time.Hour)

	var teams []*models.Team
	for i := 1; i <= 9; i++ {
		id := "g" + string(rune('0'+i))
		teams = append(teams, eligibleTeam(id, id))
	}
	// Заняты другими турнирами и не должны переехать.
	teams = append(teams, eligibleTeam("busy", "busy"), eligibleTeam("held", "held"))
	// Не оплачена.
	teams = append(teams, paidTeam("pending", "pending"))

	due := upcomingTournament("1", 11, 16)
	due.StartDate = &past

	running := upcomingTournament("2", 12, 16)
	running.Status = models.StatusLive
	running.Teams = models.TournamentTeams{{TeamID: "busy", Name: "busy", ParticipantID: 1}}

	later := upcomingTournament("3", 13, 16)
	later.StartDate = &future
	later.Teams = models.TournamentTeams{{TeamID: "held", Name: "held"}}

	f := newTournamentFixture(teams, due, running, later)

	report, err := f.svc.AutoStartTournaments(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, report.Started)
	assert.Empty(t, report.Postponed)

	got := f.tournaments.get("1")
	assert.Equal(t, models.StatusLive, got.Status)
	assert.ElementsMatch(t, []string{"g1", "g2", "g3", "g4", "g5", "g6", "g7", "g8", "g9"}, got.Teams.TeamIDs())
	assert.Equal(t, 9, f.bracket.addCount(11))
	assert.Equal(t, models.StatusUpcoming, f.tournaments.get("3").Status)
	assert.Len(t, f.tournaments.get("3").Teams, 1)
}

func TestAutoStartGatherRespectsCapacity(t *testing.T) {
	past := testNow.Add(-time.Hour)
	var teams []*models.Team
	for _, id := range []string{"a", "b", "c", "d", "e", "f"} {
		teams = append(teams, eligibleTeam(id, id))
	}
	due := upcomingTournament("1", 11, 4)
	due.StartDate = &past
	f := newTournamentFixture(teams, due)

	report, err := f.svc.AutoStartTournaments(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, report.Started)
	assert.Equal(t, []string{"a", "b", "c", "d"}, f.tournaments.get("1").Teams.TeamIDs())
}
