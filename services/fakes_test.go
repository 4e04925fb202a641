package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Sarvesh28D/FragsHub-sub000/challonge"
	"github.com/Sarvesh28D/FragsHub-sub000/models"
	"github.com/Sarvesh28D/FragsHub-sub000/razorpay"
	"github.com/Sarvesh28D/FragsHub-sub000/repositories"
	"github.com/Sarvesh28D/FragsHub-sub000/storage"
)

var testNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fixedNow() time.Time { return testNow }

// --- teams ---

type fakeTeamRepo struct {
	mu    sync.Mutex
	teams map[string]*models.Team
}

func newFakeTeamRepo(teams ...*models.Team) *fakeTeamRepo {
	r := &fakeTeamRepo{teams: map[string]*models.Team{}}
	for _, t := range teams {
		r.teams[t.ID] = t
	}
	return r
}

func (r *fakeTeamRepo) get(id string) *models.Team {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.teams[id]
	if !ok {
		return nil
	}
	cp := *t
	return &cp
}

func (r *fakeTeamRepo) Create(_ context.Context, team *models.Team) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.teams {
		if strings.EqualFold(t.Name, team.Name) {
			return repositories.ErrTeamNameConflict
		}
	}
	cp := *team
	r.teams[team.ID] = &cp
	return nil
}

func (r *fakeTeamRepo) GetByID(_ context.Context, id string) (*models.Team, error) {
	if t := r.get(id); t != nil {
		return t, nil
	}
	return nil, repositories.ErrTeamNotFound
}

func (r *fakeTeamRepo) GetByIDs(_ context.Context, ids []string) ([]models.Team, error) {
	out := []models.Team{}
	for _, id := range ids {
		if t := r.get(id); t != nil {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (r *fakeTeamRepo) ExistsByName(_ context.Context, name string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.teams {
		if strings.EqualFold(t.Name, name) {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeTeamRepo) List(_ context.Context, f models.TeamFilter) ([]models.Team, int, error) {
	r.mu.Lock()
	all := []models.Team{}
	for _, t := range r.teams {
		if f.RegistrationStatus != nil && t.RegistrationStatus != *f.RegistrationStatus {
			continue
		}
		if f.PaymentStatus != nil && t.PaymentStatus != *f.PaymentStatus {
			continue
		}
		all = append(all, *t)
	}
	r.mu.Unlock()
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID < all[j].ID
	})
	total := len(all)
	if f.Offset >= total {
		return []models.Team{}, total, nil
	}
	end := f.Offset + f.Limit
	if end > total {
		end = total
	}
	return all[f.Offset:end], total, nil
}

func (r *fakeTeamRepo) ListEligible(ctx context.Context) ([]models.Team, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.Team{}
	for _, t := range r.teams {
		if t.Eligible() {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeTeamRepo) Update(_ context.Context, team *models.Team) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.teams[team.ID]
	if !ok {
		return repositories.ErrTeamNotFound
	}
	for id, t := range r.teams {
		if id != team.ID && strings.EqualFold(t.Name, team.Name) {
			return repositories.ErrTeamNameConflict
		}
	}
	cur.Name = team.Name
	cur.Players = team.Players
	cur.CaptainEmail = team.CaptainEmail
	cur.LogoKey = team.LogoKey
	cur.UpdatedAt = team.UpdatedAt
	return nil
}

func (r *fakeTeamRepo) UpdateLogoKey(_ context.Context, id string, logoKey *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.teams[id]
	if !ok {
		return repositories.ErrTeamNotFound
	}
	t.LogoKey = logoKey
	return nil
}

func (r *fakeTeamRepo) UpdatePaymentStatus(_ context.Context, _ repositories.SQLExecutor, id string, status models.PaymentStatus, paymentID *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.teams[id]
	if !ok {
		return repositories.ErrTeamNotFound
	}
	t.PaymentStatus = status
	if paymentID != nil {
		t.PaymentID = paymentID
	}
	return nil
}

func (r *fakeTeamRepo) Approve(_ context.Context, _ repositories.SQLExecutor, id, by string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.teams[id]
	if !ok {
		return repositories.ErrTeamNotFound
	}
	if t.RegistrationStatus != models.RegistrationPending || t.PaymentStatus != models.PaymentPaid {
		return repositories.ErrTeamStateConflict
	}
	t.RegistrationStatus = models.RegistrationApproved
	t.ApprovedBy = &by
	t.ApprovedAt = &at
	return nil
}

func (r *fakeTeamRepo) Reject(_ context.Context, _ repositories.SQLExecutor, id, by, reason string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.teams[id]
	if !ok {
		return repositories.ErrTeamNotFound
	}
	if t.RegistrationStatus != models.RegistrationPending {
		return repositories.ErrTeamStateConflict
	}
	t.RegistrationStatus = models.RegistrationRejected
	t.RejectedBy = &by
	t.RejectedAt = &at
	t.RejectionReason = &reason
	return nil
}

func (r *fakeTeamRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.teams[id]
	if !ok {
		return repositories.ErrTeamNotFound
	}
	if t.PaymentStatus == models.PaymentPaid {
		return repositories.ErrTeamPaid
	}
	delete(r.teams, id)
	return nil
}

func (r *fakeTeamRepo) Stats(_ context.Context) (models.TeamStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stats := models.TeamStats{
		ByRegistration: map[models.RegistrationStatus]int{},
		ByPayment:      map[models.PaymentStatus]int{},
	}
	for _, t := range r.teams {
		stats.Total++
		stats.ByRegistration[t.RegistrationStatus]++
		stats.ByPayment[t.PaymentStatus]++
		if t.PaymentStatus == models.PaymentPaid {
			stats.CollectedEntryFees += t.EntryFee
		}
	}
	return stats, nil
}

// --- tournaments ---

type fakeTournamentRepo struct {
	mu          sync.Mutex
	tournaments map[string]*models.Tournament
	createErr   error
}

func newFakeTournamentRepo(ts ...*models.Tournament) *fakeTournamentRepo {
	r := &fakeTournamentRepo{tournaments: map[string]*models.Tournament{}}
	for _, t := range ts {
		r.tournaments[t.ID] = t
	}
	return r
}

func (r *fakeTournamentRepo) get(id string) *models.Tournament {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tournaments[id]
	if !ok {
		return nil
	}
	cp := *t
	cp.Teams = append(models.TournamentTeams{}, t.Teams...)
	return &cp
}

func (r *fakeTournamentRepo) Create(_ context.Context, t *models.Tournament) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tournaments[t.ID]; ok {
		return repositories.ErrTournamentExists
	}
	cp := *t
	r.tournaments[t.ID] = &cp
	return nil
}

func (r *fakeTournamentRepo) GetByID(_ context.Context, id string) (*models.Tournament, error) {
	if t := r.get(id); t != nil {
		return t, nil
	}
	return nil, repositories.ErrTournamentNotFound
}

func (r *fakeTournamentRepo) sorted(filter func(*models.Tournament) bool) []models.Tournament {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.Tournament{}
	for _, t := range r.tournaments {
		if filter(t) {
			cp := *t
			cp.Teams = append(models.TournamentTeams{}, t.Teams...)
			out = append(out, cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *fakeTournamentRepo) List(_ context.Context, status *models.TournamentStatus) ([]models.Tournament, error) {
	return r.sorted(func(t *models.Tournament) bool { return status == nil || t.Status == *status }), nil
}

func (r *fakeTournamentRepo) FindActive(_ context.Context) (*models.Tournament, error) {
	for _, st := range []models.TournamentStatus{models.StatusLive, models.StatusUpcoming} {
		list := r.sorted(func(t *models.Tournament) bool { return t.Status == st })
		if len(list) > 0 {
			return &list[0], nil
		}
	}
	return nil, repositories.ErrTournamentNotFound
}

func (r *fakeTournamentRepo) FindUpcomingWithCapacity(_ context.Context) (*models.Tournament, error) {
	list := r.sorted(func(t *models.Tournament) bool { return t.Status == models.StatusUpcoming && t.HasCapacity() })
	if len(list) == 0 {
		return nil, repositories.ErrTournamentNotFound
	}
	return &list[0], nil
}

func (r *fakeTournamentRepo) ListUpcoming(_ context.Context) ([]models.Tournament, error) {
	return r.sorted(func(t *models.Tournament) bool { return t.Status == models.StatusUpcoming }), nil
}

func (r *fakeTournamentRepo) ListStartingBetween(_ context.Context, from, to time.Time) ([]models.Tournament, error) {
	return r.sorted(func(t *models.Tournament) bool {
		return t.Status == models.StatusUpcoming && t.StartDate != nil &&
			!t.StartDate.Before(from) && !t.StartDate.After(to)
	}), nil
}

func (r *fakeTournamentRepo) AppendTeam(_ context.Context, id string, entry models.TournamentTeam) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tournaments[id]
	if !ok || t.Status != models.StatusUpcoming || !t.HasCapacity() {
		return false, nil
	}
	if _, dup := t.Teams.Find(entry.TeamID); dup {
		return false, nil
	}
	t.Teams = append(t.Teams, entry)
	return true, nil
}

func (r *fakeTournamentRepo) SetParticipantID(_ context.Context, id, teamID string, participantID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tournaments[id]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	if i, found := t.Teams.Find(teamID); found {
		t.Teams[i].ParticipantID = participantID
	}
	return nil
}

func (r *fakeTournamentRepo) MarkStarted(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tournaments[id]
	if !ok || t.Status != models.StatusUpcoming {
		return repositories.ErrTournamentStateConflict
	}
	t.Status = models.StatusLive
	t.StartedAt = &at
	return nil
}

func (r *fakeTournamentRepo) MarkCompleted(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tournaments[id]
	if !ok || t.Status != models.StatusLive {
		return repositories.ErrTournamentStateConflict
	}
	t.Status = models.StatusCompleted
	t.CompletedAt = &at
	return nil
}

func (r *fakeTournamentRepo) UpdateStartDate(_ context.Context, id string, startDate time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tournaments[id]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	t.StartDate = &startDate
	return nil
}

func (r *fakeTournamentRepo) SyncMirror(_ context.Context, in *models.Tournament) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tournaments[in.ID]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	t.Teams = append(models.TournamentTeams{}, in.Teams...)
	t.Matches = in.Matches
	t.Status = nextStatus(t.Status, in.Status)
	return nil
}

func (r *fakeTournamentRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tournaments[id]; !ok {
		return repositories.ErrTournamentNotFound
	}
	delete(r.tournaments, id)
	return nil
}

func (r *fakeTournamentRepo) CountByStatus(_ context.Context) (map[models.TournamentStatus]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[models.TournamentStatus]int{}
	for _, t := range r.tournaments {
		out[t.Status]++
	}
	return out, nil
}

// --- payments ---

type fakeOrderRepo struct {
	mu     sync.Mutex
	orders map[string]*models.PaymentOrder
	teams  *fakeTeamRepo
}

func newFakeOrderRepo(teams *fakeTeamRepo, orders ...*models.PaymentOrder) *fakeOrderRepo {
	r := &fakeOrderRepo{orders: map[string]*models.PaymentOrder{}, teams: teams}
	for _, o := range orders {
		r.orders[o.ID] = o
	}
	return r
}

func (r *fakeOrderRepo) CreateOrder(_ context.Context, o *models.PaymentOrder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.orders[o.ID]; ok {
		return repositories.ErrOrderExists
	}
	cp := *o
	r.orders[o.ID] = &cp
	return nil
}

func (r *fakeOrderRepo) GetOrder(_ context.Context, id string) (*models.PaymentOrder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, repositories.ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (r *fakeOrderRepo) GetSettledByPaymentID(_ context.Context, paymentID string) (*models.PaymentOrder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if o.PaymentID != nil && *o.PaymentID == paymentID && o.Status.Settled() {
			cp := *o
			return &cp, nil
		}
	}
	return nil, repositories.ErrOrderNotFound
}

func (r *fakeOrderRepo) MarkOrder(_ context.Context, _ repositories.SQLExecutor, id string, status models.OrderStatus, paymentID *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return repositories.ErrOrderNotFound
	}
	o.Status = status
	if paymentID != nil {
		o.PaymentID = paymentID
	}
	return nil
}

func (r *fakeOrderRepo) ExpireStale(ctx context.Context, cutoff time.Time) ([]repositories.ExpiredOrder, error) {
	r.mu.Lock()
	expired := []repositories.ExpiredOrder{}
	for _, o := range r.orders {
		if o.Status == models.OrderCreated && o.CreatedAt.Before(cutoff) {
			o.Status = models.OrderExpired
			expired = append(expired, repositories.ExpiredOrder{OrderID: o.ID, TeamID: o.TeamID})
		}
	}
	r.mu.Unlock()
	for _, e := range expired {
		if t := r.teams.get(e.TeamID); t != nil && t.PaymentStatus == models.PaymentPending {
			_ = r.teams.UpdatePaymentStatus(ctx, nil, e.TeamID, models.PaymentExpired, nil)
		}
	}
	return expired, nil
}

type fakeRefundRepo struct {
	mu      sync.Mutex
	refunds []models.Refund
}

func (r *fakeRefundRepo) all() []models.Refund {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.Refund{}, r.refunds...)
}

func (r *fakeRefundRepo) Create(_ context.Context, _ repositories.SQLExecutor, rf *models.Refund) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.refunds {
		if existing.ID == rf.ID || (existing.PaymentID == rf.PaymentID && existing.Status != models.RefundFailed) {
			return repositories.ErrRefundExists
		}
	}
	r.refunds = append(r.refunds, *rf)
	return nil
}

func (r *fakeRefundRepo) ListQueued(_ context.Context, limit int) ([]models.Refund, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.Refund{}
	for _, rf := range r.refunds {
		if rf.Status == models.RefundQueued && len(out) < limit {
			out = append(out, rf)
		}
	}
	return out, nil
}

func (r *fakeRefundRepo) ListByTeam(_ context.Context, teamID string) ([]models.Refund, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.Refund{}
	for _, rf := range r.refunds {
		if rf.TeamID == teamID {
			out = append(out, rf)
		}
	}
	return out, nil
}

func (r *fakeRefundRepo) UpdateFromGateway(_ context.Context, _ repositories.SQLExecutor, id, gatewayRefundID string, status models.RefundStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.refunds {
		if r.refunds[i].ID == id {
			gw := gatewayRefundID
			r.refunds[i].GatewayRefundID = &gw
			r.refunds[i].Status = status
			return nil
		}
	}
	return repositories.ErrRefundNotFound
}

func (r *fakeRefundRepo) MarkStatus(_ context.Context, id string, status models.RefundStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.refunds {
		if r.refunds[i].ID == id {
			r.refunds[i].Status = status
			return nil
		}
	}
	return repositories.ErrRefundNotFound
}

func (r *fakeRefundRepo) MarkStatusByGatewayID(_ context.Context, gatewayRefundID string, status models.RefundStatus) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.refunds {
		if derefString(r.refunds[i].GatewayRefundID) == gatewayRefundID {
			r.refunds[i].Status = status
			return r.refunds[i].TeamID, nil
		}
	}
	return "", repositories.ErrRefundNotFound
}

func (r *fakeRefundRepo) CountByStatus(_ context.Context) (map[models.RefundStatus]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[models.RefundStatus]int{}
	for _, rf := range r.refunds {
		out[rf.Status]++
	}
	return out, nil
}

// --- notifications, users, match results ---

type fakeNotificationRepo struct {
	mu    sync.Mutex
	items []models.Notification
}

func (r *fakeNotificationRepo) Create(_ context.Context, n *models.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n.ID = int64(len(r.items) + 1)
	r.items = append(r.items, *n)
	return nil
}

func (r *fakeNotificationRepo) List(_ context.Context, unreadOnly bool, limit int) ([]models.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.Notification{}
	for i := len(r.items) - 1; i >= 0 && len(out) < limit; i-- {
		if unreadOnly && r.items[i].Read {
			continue
		}
		out = append(out, r.items[i])
	}
	return out, nil
}

func (r *fakeNotificationRepo) MarkRead(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.items {
		if r.items[i].ID == id {
			r.items[i].Read = true
			return nil
		}
	}
	return repositories.ErrNotificationNotFound
}

func (r *fakeNotificationRepo) CountUnread(_ context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, it := range r.items {
		if !it.Read {
			n++
		}
	}
	return n, nil
}

func (r *fakeNotificationRepo) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []string{}
	for _, it := range r.items {
		out = append(out, it.Type)
	}
	return out
}

type fakeUserRepo struct {
	mu       sync.Mutex
	accounts map[string]*models.AuthAccount
	profiles map[string]*models.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{accounts: map[string]*models.AuthAccount{}, profiles: map[string]*models.User{}}
}

func (r *fakeUserRepo) CreateAccount(_ context.Context, _ repositories.SQLExecutor, a *models.AuthAccount) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.accounts {
		if strings.EqualFold(existing.Email, a.Email) {
			return repositories.ErrUserEmailConflict
		}
	}
	cp := *a
	r.accounts[a.UID] = &cp
	return nil
}

func (r *fakeUserRepo) GetAccountByEmail(_ context.Context, email string) (*models.AuthAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.accounts {
		if strings.EqualFold(a.Email, email) {
			cp := *a
			return &cp, nil
		}
	}
	return nil, repositories.ErrUserNotFound
}

func (r *fakeUserRepo) GetAccountByUID(_ context.Context, uid string) (*models.AuthAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.accounts[uid]; ok {
		cp := *a
		return &cp, nil
	}
	return nil, repositories.ErrUserNotFound
}

func (r *fakeUserRepo) SetAdminClaim(_ context.Context, _ repositories.SQLExecutor, uid string, admin bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[uid]
	if !ok {
		return repositories.ErrUserNotFound
	}
	a.AdminClaim = admin
	return nil
}

func (r *fakeUserRepo) UpsertProfile(_ context.Context, _ repositories.SQLExecutor, u *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *u
	if existing, ok := r.profiles[u.UID]; ok {
		cp.IsAdmin = existing.IsAdmin
	}
	r.profiles[u.UID] = &cp
	return nil
}

func (r *fakeUserRepo) SetAdminMirror(_ context.Context, _ repositories.SQLExecutor, uid string, admin bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[uid]
	if !ok {
		return repositories.ErrUserNotFound
	}
	p, ok := r.profiles[uid]
	if !ok {
		p = &models.User{UID: uid, Email: a.Email}
		r.profiles[uid] = p
	}
	p.IsAdmin = admin
	return nil
}

func (r *fakeUserRepo) GetProfile(_ context.Context, uid string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.profiles[uid]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, repositories.ErrUserNotFound
}

type fakeMatchResultRepo struct {
	mu      sync.Mutex
	results map[string]models.MatchResult
}

func (r *fakeMatchResultRepo) Upsert(_ context.Context, res *models.MatchResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.results == nil {
		r.results = map[string]models.MatchResult{}
	}
	r.results[res.ID] = *res
	return nil
}

// fakeTx runs fn without a real transaction.
type fakeTx struct{}

func (fakeTx) InTx(_ context.Context, fn func(exec repositories.SQLExecutor) error) error {
	return fn(nil)
}

// --- upstream services ---

type fakeBracket struct {
	mu           sync.Mutex
	nextID       int64
	created      []challonge.CreateTournamentParams
	deleted      []int64
	started      []int64
	finalized    []int64
	participants map[int64][]challonge.Participant
	matches      map[int64][]challonge.Match
	state        map[int64]string
	updated      []string
	err          error
	addErr       error
	rejectTeam   map[string]error
	deleteErr    error
}

func newFakeBracket() *fakeBracket {
	return &fakeBracket{
		nextID:       1000,
		participants: map[int64][]challonge.Participant{},
		matches:      map[int64][]challonge.Match{},
		state:        map[int64]string{},
	}
}

func (b *fakeBracket) CreateTournament(_ context.Context, p challonge.CreateTournamentParams) (*challonge.Tournament, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return nil, b.err
	}
	b.nextID++
	b.created = append(b.created, p)
	b.state[b.nextID] = "pending"
	return &challonge.Tournament{
		ID:               b.nextID,
		Name:             p.Name,
		URL:              p.URL,
		FullChallongeURL: "https://challonge.com/" + p.URL,
		State:            "pending",
	}, nil
}

func (b *fakeBracket) GetTournament(_ context.Context, id int64) (*challonge.Tournament, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return nil, b.err
	}
	return &challonge.Tournament{ID: id, State: b.state[id]}, nil
}

func (b *fakeBracket) StartTournament(_ context.Context, id int64) (*challonge.Tournament, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return nil, b.err
	}
	b.started = append(b.started, id)
	b.state[id] = "underway"
	return &challonge.Tournament{ID: id, State: "underway"}, nil
}

func (b *fakeBracket) FinalizeTournament(_ context.Context, id int64) (*challonge.Tournament, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return nil, b.err
	}
	b.finalized = append(b.finalized, id)
	b.state[id] = "complete"
	return &challonge.Tournament{ID: id, State: "complete"}, nil
}

func (b *fakeBracket) DeleteTournament(_ context.Context, id int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.deleteErr != nil {
		return b.deleteErr
	}
	b.deleted = append(b.deleted, id)
	return nil
}

func (b *fakeBracket) AddParticipant(_ context.Context, tournamentID int64, name, misc string) (*challonge.Participant, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.addErr != nil {
		return nil, b.addErr
	}
	if err := b.rejectTeam[misc]; err != nil {
		return nil, err
	}
	b.nextID++
	p := challonge.Participant{ID: b.nextID, Name: name, Misc: misc, Seed: len(b.participants[tournamentID]) + 1}
	b.participants[tournamentID] = append(b.participants[tournamentID], p)
	return &p, nil
}

func (b *fakeBracket) addCount(tournamentID int64) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.participants[tournamentID])
}

func (b *fakeBracket) ListParticipants(_ context.Context, tournamentID int64) ([]challonge.Participant, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return nil, b.err
	}
	return append([]challonge.Participant{}, b.participants[tournamentID]...), nil
}

func (b *fakeBracket) ListMatches(_ context.Context, tournamentID int64) ([]challonge.Match, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return nil, b.err
	}
	return append([]challonge.Match{}, b.matches[tournamentID]...), nil
}

func (b *fakeBracket) UpdateMatch(_ context.Context, tournamentID, matchID, winnerID int64, scoresCSV string) (*challonge.Match, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return nil, b.err
	}
	b.updated = append(b.updated, fmt.Sprintf("%d/%d/%d/%s", tournamentID, matchID, winnerID, scoresCSV))
	w := winnerID
	return &challonge.Match{ID: matchID, State: "complete", WinnerID: &w, ScoresCSV: scoresCSV}, nil
}

type fakeGateway struct {
	mu        sync.Mutex
	orders    []razorpay.CreateOrderParams
	refunds   map[string]razorpay.CreateRefundParams
	issued    map[string][]razorpay.Refund
	nextID    int
	orderErr  error
	refundErr error
	listErr   error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{refunds: map[string]razorpay.CreateRefundParams{}, issued: map[string][]razorpay.Refund{}}
}

func (g *fakeGateway) CreateOrder(_ context.Context, p razorpay.CreateOrderParams) (*razorpay.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.orderErr != nil {
		return nil, g.orderErr
	}
	g.nextID++
	g.orders = append(g.orders, p)
	return &razorpay.Order{ID: fmt.Sprintf("order_%d", g.nextID), Amount: p.Amount, Currency: p.Currency, Receipt: p.Receipt, Status: "created"}, nil
}

func (g *fakeGateway) CreateRefund(_ context.Context, paymentID string, p razorpay.CreateRefundParams) (*razorpay.Refund, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.refundErr != nil {
		return nil, g.refundErr
	}
	g.nextID++
	g.refunds[paymentID] = p
	rf := razorpay.Refund{ID: fmt.Sprintf("rfnd_%d", g.nextID), PaymentID: paymentID, Amount: p.Amount, Receipt: p.Receipt, Status: "processed"}
	g.issued[paymentID] = append(g.issued[paymentID], rf)
	return &rf, nil
}

func (g *fakeGateway) ListRefunds(_ context.Context, paymentID string) ([]razorpay.Refund, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.listErr != nil {
		return nil, g.listErr
	}
	return append([]razorpay.Refund{}, g.issued[paymentID]...), nil
}

type publishedEvent struct {
	Room string
	Type string
}

type fakeBroadcaster struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (b *fakeBroadcaster) Publish(roomID, eventType string, _ interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, publishedEvent{Room: roomID, Type: eventType})
}

func (b *fakeBroadcaster) types() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := []string{}
	for _, e := range b.events {
		out = append(out, e.Type)
	}
	return out
}

type sentMail struct {
	To, Subject, Body string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (m *fakeMailer) Send(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{To: to, Subject: subject, Body: body})
	return nil
}

type fakeRelay struct {
	mu    sync.Mutex
	items []models.Notification
	err   error
}

func (r *fakeRelay) Relay(_ context.Context, n models.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, n)
	return r.err
}

// --- fixtures ---

func newNotifier() (NotificationService, *fakeNotificationRepo) {
	repo := &fakeNotificationRepo{}
	svc := NewNotificationService(repo, nil, discardLogger()).(*notificationService)
	svc.now = fixedNow
	return svc, repo
}

func paidTeam(id, name string) *models.Team {
	pid := "pay_" + id
	return &models.Team{
		ID:                 id,
		Name:               name,
		Players:            models.Players{{Name: "cap", GameID: name + "#1", IsCaptain: true}},
		CaptainEmail:       id + "@example.com",
		EntryFee:           500,
		PaymentStatus:      models.PaymentPaid,
		RegistrationStatus: models.RegistrationPending,
		PaymentID:          &pid,
		CreatedAt:          testNow,
		UpdatedAt:          testNow,
	}
}

func eligibleTeam(id, name string) *models.Team {
	t := paidTeam(id, name)
	t.RegistrationStatus = models.RegistrationApproved
	return t
}

func upcomingTournament(id string, challongeID int64, maxTeams int) *models.Tournament {
	return &models.Tournament{
		ID:          id,
		Name:        "Cup " + id,
		MaxTeams:    maxTeams,
		Status:      models.StatusUpcoming,
		ChallongeID: challongeID,
		Teams:       models.TournamentTeams{},
		Matches:     models.Matches{},
		CreatedAt:   testNow,
	}
}

type fakeUploader struct {
	mu      sync.Mutex
	objects map[string]string
	deleted []string
}

func newFakeUploader() *fakeUploader {
	return &fakeUploader{objects: map[string]string{}}
}

func (u *fakeUploader) Upload(_ context.Context, key, contentType string, reader io.Reader) (*storage.UploadResult, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	u.objects[key] = string(data)
	return &storage.UploadResult{Key: key, Location: u.GetPublicURL(key)}, nil
}

func (u *fakeUploader) Delete(_ context.Context, key string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	delete(u.objects, key)
	u.deleted = append(u.deleted, key)
	return nil
}

func (u *fakeUploader) GetPublicURL(key string) string {
	return "https://cdn.example.com/" + key
}
