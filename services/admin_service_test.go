package services

import (
	"context"
	"testing"

	"github.com/Sarvesh28D/FragsHub-sub000/live"
	"github.com/Sarvesh28D/FragsHub-sub000/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type adminFixture struct {
	svc         *adminService
	teams       *fakeTeamRepo
	tournaments *fakeTournamentRepo
	refunds     *fakeRefundRepo
	results     *fakeMatchResultRepo
	bracket     *fakeBracket
	events      *fakeBroadcaster
	notes       *fakeNotificationRepo
}

func newAdminFixture(teams []*models.Team, tournaments ...*models.Tournament) *adminFixture {
	f := &adminFixture{
		teams:       newFakeTeamRepo(teams...),
		tournaments: newFakeTournamentRepo(tournaments...),
		refunds:     &fakeRefundRepo{},
		results:     &fakeMatchResultRepo{},
		bracket:     newFakeBracket(),
		events:      &fakeBroadcaster{},
	}
	var notifier NotificationService
	notifier, f.notes = newNotifier()
	tournamentSvc := NewTournamentService(f.tournaments, f.teams, f.bracket, f.events, notifier, 0, discardLogger())
	teamSvc := NewTeamService(f.teams, nil, notifier, TeamRules{MinPlayers: 1, MaxPlayers: 5}, discardLogger())

	f.svc = NewAdminService(AdminServiceDeps{
		TeamRepo:        f.teams,
		TournamentRepo:  f.tournaments,
		RefundRepo:      f.refunds,
		MatchResultRepo: f.results,
		Tx:              fakeTx{},
		Tournaments:     tournamentSvc,
		Teams:           teamSvc,
		Events:          f.events,
		Notifier:        notifier,
		Logger:          discardLogger(),
	}).(*adminService)
	f.svc.now = fixedNow
	f.svc.newID = func() string { return "q1" }
	return f
}

func TestApproveTeam(t *testing.T) {
	f := newAdminFixture([]*models.Team{paidTeam("team_a", "Alpha")}, upcomingTournament("1", 11, 8))
	ctx := context.Background()

	team, err := f.svc.ApproveTeam(ctx, "team_a", "admin-1")
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationApproved, team.RegistrationStatus)
	assert.Equal(t, "admin-1", *team.ApprovedBy)
	assert.Equal(t, testNow, *team.ApprovedAt)

	tour := f.tournaments.get("1")
	require.Len(t, tour.Teams, 1)
	assert.Equal(t, "team_a", tour.Teams[0].TeamID)
	assert.Equal(t, []string{live.EventTeamAdded}, f.events.types())
	assert.Equal(t, []string{NotifyTeamApproved}, f.notes.types())

	// Повторное одобрение ничего не меняет.
	again, err := f.svc.ApproveTeam(ctx, "team_a", "admin-2")
	require.NoError(t, err)
	assert.Equal(t, "admin-1", *again.ApprovedBy)
	assert.Len(t, f.tournaments.get("1").Teams, 1)
	assert.Len(t, f.notes.types(), 1)
}

func TestApproveTeamConflicts(t *testing.T) {
	unpaid := paidTeam("team_u", "Unpaid")
	unpaid.PaymentStatus = models.PaymentPending
	rejected := paidTeam("team_r", "Rejected")
	rejected.RegistrationStatus = models.RegistrationRejected
	f := newAdminFixture([]*models.Team{unpaid, rejected})
	ctx := context.Background()

	_, err := f.svc.ApproveTeam(ctx, "team_u", "admin")
	assert.ErrorIs(t, err, ErrTeamNotPaid)
	assert.Equal(t, models.RegistrationPending, f.teams.get("team_u").RegistrationStatus)

	_, err = f.svc.ApproveTeam(ctx, "team_r", "admin")
	assert.ErrorIs(t, err, ErrTeamAlreadyRejected)

	_, err = f.svc.ApproveTeam(ctx, "team_missing", "admin")
	assert.ErrorIs(t, err, ErrTeamNotFound)
}

func TestApproveTeamWithoutTournamentSlot(t *testing.T) {
	full := upcomingTournament("1", 11, 1)
	full.Teams = models.TournamentTeams{{TeamID: "team_x", Name: "X"}}
	f := newAdminFixture([]*models.Team{paidTeam("team_a", "Alpha")}, full)

	team, err := f.svc.ApproveTeam(context.Background(), "team_a", "admin")
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationApproved, team.RegistrationStatus)
	assert.Len(t, f.tournaments.get("1").Teams, 1)
	assert.Empty(t, f.events.types())
}

func TestRejectPaidTeamQueuesOneRefund(t *testing.T) {
	f := newAdminFixture([]*models.Team{paidTeam("team_a", "Alpha")})
	ctx := context.Background()

	team, err := f.svc.RejectTeam(ctx, "team_a", "admin", "  ")
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationRejected, team.RegistrationStatus)
	assert.Equal(t, defaultRejectionReason, *team.RejectionReason)

	refunds := f.refunds.all()
	require.Len(t, refunds, 1)
	assert.Equal(t, "rfq_q1", refunds[0].ID)
	assert.Equal(t, "pay_team_a", refunds[0].PaymentID)
	assert.Equal(t, int64(500*100), refunds[0].Amount)
	assert.Equal(t, models.RefundQueued, refunds[0].Status)

	// Повторный отказ не создаёт второй возврат.
	_, err = f.svc.RejectTeam(ctx, "team_a", "admin", "again")
	require.NoError(t, err)
	assert.Len(t, f.refunds.all(), 1)
}

func TestRejectUnpaidTeamQueuesNothing(t *testing.T) {
	unpaid := paidTeam("team_u", "Unpaid")
	unpaid.PaymentStatus = models.PaymentPending
	unpaid.PaymentID = nil
	f := newAdminFixture([]*models.Team{unpaid})

	team, err := f.svc.RejectTeam(context.Background(), "team_u", "admin", "Roster incomplete")
	require.NoError(t, err)
	assert.Equal(t, "Roster incomplete", *team.RejectionReason)
	assert.Empty(t, f.refunds.all())
	assert.Equal(t, []string{NotifyTeamRejected}, f.notes.types())
}

func TestRejectApprovedTeam(t *testing.T) {
	f := newAdminFixture([]*models.Team{eligibleTeam("team_a", "Alpha")})
	_, err := f.svc.RejectTeam(context.Background(), "team_a", "admin", "")
	assert.ErrorIs(t, err, ErrTeamAlreadyApproved)
	assert.Empty(t, f.refunds.all())
}

func TestPendingTeams(t *testing.T) {
	f := newAdminFixture([]*models.Team{paidTeam("team_a", "Alpha"), eligibleTeam("team_b", "Bravo")})

	page, err := f.svc.PendingTeams(context.Background(), 0, 0)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "team_a", page.Items[0].ID)
	assert.Equal(t, defaultPageLimit, page.Limit)
}

func TestRecordMatchResult(t *testing.T) {
	tour := upcomingTournament("1", 11, 8)
	tour.Status = models.StatusLive
	f := newAdminFixture(nil, tour)

	result, err := f.svc.RecordMatchResult(context.Background(), "1",
		UpdateMatchInput{MatchID: 900, WinnerID: 100, Scores: "2-1"}, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, "1_900", result.ID)
	assert.Equal(t, "2-1", result.Scores)
	assert.Equal(t, "admin-1", result.RecordedBy)
	assert.Contains(t, f.results.results, "1_900")
	assert.Equal(t, []string{"11/900/100/2-1"}, f.bracket.updated)

	_, err = f.svc.RecordMatchResult(context.Background(), "1", UpdateMatchInput{MatchID: 900, WinnerID: 100, Scores: "two-one"}, "admin-1")
	assert.ErrorIs(t, err, ErrValidationFailed)
}
