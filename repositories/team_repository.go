package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Sarvesh28D/FragsHub-sub000/models"
	"github.com/lib/pq"
)

var (
	ErrTeamNotFound      = errors.New("team not found")
	ErrTeamNameConflict  = errors.New("team name conflict")
	ErrTeamPaid          = errors.New("team has a completed payment")
	ErrTeamStateConflict = errors.New("team state changed concurrently")
)

type TeamRepository interface {
	Create(ctx context.Context, team *models.Team) error
	GetByID(ctx context.Context, id string) (*models.Team, error)
	GetByIDs(ctx context.Context, ids []string) ([]models.Team, error)
	ExistsByName(ctx context.Context, name string) (bool, error)
	List(ctx context.Context, filter models.TeamFilter) ([]models.Team, int, error)
	ListEligible(ctx context.Context) ([]models.Team, error)
	Update(ctx context.Context, team *models.Team) error
	UpdateLogoKey(ctx context.Context, id string, logoKey *string) error
	UpdatePaymentStatus(ctx context.Context, exec SQLExecutor, id string, status models.PaymentStatus, paymentID *string) error
	Approve(ctx context.Context, exec SQLExecutor, id, approvedBy string, at time.Time) error
	Reject(ctx context.Context, exec SQLExecutor, id, rejectedBy, reason string, at time.Time) error
	Delete(ctx context.Context, id string) error
	Stats(ctx context.Context) (models.TeamStats, error)
}

type postgresTeamRepository struct {
	db *sql.DB
}

func NewPostgresTeamRepository(db *sql.DB) TeamRepository {
	return &postgresTeamRepository{db: db}
}

const teamColumns = `
	id, name, players, captain_email, entry_fee, logo_key, payment_status, registration_status,
	payment_id, approved_by, approved_at, rejected_by, rejected_at, rejection_reason, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTeam(row rowScanner) (*models.Team, error) {
	var t models.Team
	err := row.Scan(
		&t.ID, &t.Name, &t.Players, &t.CaptainEmail, &t.EntryFee, &t.LogoKey, &t.PaymentStatus, &t.RegistrationStatus,
		&t.PaymentID, &t.ApprovedBy, &t.ApprovedAt, &t.RejectedBy, &t.RejectedAt, &t.RejectionReason, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *postgresTeamRepository) Create(ctx context.Context, t *models.Team) error {
	query := `
		INSERT INTO teams (id, name, players, captain_email, entry_fee, logo_key, payment_status, registration_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)`

	_, err := r.db.ExecContext(ctx, query,
		t.ID, t.Name, t.Players, t.CaptainEmail, t.EntryFee, t.LogoKey, t.PaymentStatus, t.RegistrationStatus, t.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "teams_name_key") {
			return ErrTeamNameConflict
		}
		return fmt.Errorf("failed to create team: %w", err)
	}
	t.UpdatedAt = t.CreatedAt
	return nil
}

func (r *postgresTeamRepository) GetByID(ctx context.Context, id string) (*models.Team, error) {
	query := `SELECT ` + teamColumns + ` FROM teams WHERE id = $1`
	t, err := scanTeam(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTeamNotFound
		}
		return nil, fmt.Errorf("failed to get team %s: %w", id, err)
	}
	return t, nil
}

func (r *postgresTeamRepository) GetByIDs(ctx context.Context, ids []string) ([]models.Team, error) {
	if len(ids) == 0 {
		return []models.Team{}, nil
	}
	query := `SELECT ` + teamColumns + ` FROM teams WHERE id = ANY($1)`
	return r.queryTeams(ctx, query, pq.Array(ids))
}

func (r *postgresTeamRepository) ExistsByName(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM teams WHERE lower(name) = lower($1))`, name).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check team name: %w", err)
	}
	return exists, nil
}

func (r *postgresTeamRepository) List(ctx context.Context, filter models.TeamFilter) ([]models.Team, int, error) {
	where := ` WHERE 1=1`
	args := []interface{}{}
	argID := 1

	if filter.RegistrationStatus != nil {
		where += fmt.Sprintf(" AND registration_status = $%d", argID)
		args = append(args, *filter.RegistrationStatus)
		argID++
	}
	if filter.PaymentStatus != nil {
		where += fmt.Sprintf(" AND payment_status = $%d", argID)
		args = append(args, *filter.PaymentStatus)
		argID++
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM teams`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count teams: %w", err)
	}

	query := `SELECT ` + teamColumns + ` FROM teams` + where + ` ORDER BY created_at DESC, id`
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argID)
		args = append(args, filter.Limit)
		argID++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argID)
		args = append(args, filter.Offset)
	}

	teams, err := r.queryTeams(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return teams, total, nil
}

func (r *postgresTeamRepository) ListEligible(ctx context.Context) ([]models.Team, error) {
	query := `SELECT ` + teamColumns + ` FROM teams
		WHERE registration_status = 'approved' AND payment_status = 'paid'
		ORDER BY approved_at, created_at`
	return r.queryTeams(ctx, query)
}

func (r *postgresTeamRepository) queryTeams(ctx context.Context, query string, args ...interface{}) ([]models.Team, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query teams: %w", err)
	}
	defer rows.Close()

	teams := make([]models.Team, 0)
	for rows.Next() {
		t, err := scanTeam(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan team: %w", err)
		}
		teams = append(teams, *t)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return teams, nil
}

// Update пишет только поля, которые может менять клиент.
func (r *postgresTeamRepository) Update(ctx context.Context, t *models.Team) error {
	query := `
		UPDATE teams SET name = $1, players = $2, captain_email = $3, logo_key = $4, updated_at = $5
		WHERE id = $6`
	result, err := r.db.ExecContext(ctx, query, t.Name, t.Players, t.CaptainEmail, t.LogoKey, t.UpdatedAt, t.ID)
	if err != nil {
		if isUniqueViolation(err, "teams_name_key") {
			return ErrTeamNameConflict
		}
		return fmt.Errorf("failed to update team %s: %w", t.ID, err)
	}
	return checkAffectedRows(result, ErrTeamNotFound)
}

func (r *postgresTeamRepository) UpdateLogoKey(ctx context.Context, id string, logoKey *string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE teams SET logo_key = $1, updated_at = now() WHERE id = $2`, logoKey, id)
	if err != nil {
		return fmt.Errorf("failed to update team logo key: %w", err)
	}
	return checkAffectedRows(result, ErrTeamNotFound)
}

func (r *postgresTeamRepository) UpdatePaymentStatus(ctx context.Context, exec SQLExecutor, id string, status models.PaymentStatus, paymentID *string) error {
	query := `
		UPDATE teams SET payment_status = $1, payment_id = COALESCE($2, payment_id), updated_at = now()
		WHERE id = $3`
	result, err := executorOr(exec, r.db).ExecContext(ctx, query, status, paymentID, id)
	if err != nil {
		return fmt.Errorf("failed to update payment status of team %s: %w", id, err)
	}
	return checkAffectedRows(result, ErrTeamNotFound)
}

func (r *postgresTeamRepository) Approve(ctx context.Context, exec SQLExecutor, id, approvedBy string, at time.Time) error {
	query := `
		UPDATE teams SET registration_status = 'approved', approved_by = $2, approved_at = $3, updated_at = $3
		WHERE id = $1 AND registration_status = 'pending' AND payment_status = 'paid'`
	result, err := executorOr(exec, r.db).ExecContext(ctx, query, id, approvedBy, at)
	if err != nil {
		return fmt.Errorf("failed to approve team %s: %w", id, err)
	}
	return checkAffectedRows(result, ErrTeamStateConflict)
}

func (r *postgresTeamRepository) Reject(ctx context.Context, exec SQLExecutor, id, rejectedBy, reason string, at time.Time) error {
	query := `
		UPDATE teams SET registration_status = 'rejected', rejected_by = $2, rejection_reason = $3, rejected_at = $4, updated_at = $4
		WHERE id = $1 AND registration_status = 'pending'`
	result, err := executorOr(exec, r.db).ExecContext(ctx, query, id, rejectedBy, reason, at)
	if err != nil {
		return fmt.Errorf("failed to reject team %s: %w", id, err)
	}
	return checkAffectedRows(result, ErrTeamStateConflict)
}

// Delete never removes a paid team, even if the status flipped after the caller's check.
func (r *postgresTeamRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM teams WHERE id = $1 AND payment_status <> 'paid'`, id)
	if err != nil {
		return fmt.Errorf("failed to delete team %s: %w", id, err)
	}
	if err := checkAffectedRows(result, ErrTeamNotFound); err != nil {
		if !errors.Is(err, ErrTeamNotFound) {
			return err
		}
		if _, getErr := r.GetByID(ctx, id); getErr == nil {
			return ErrTeamPaid
		}
		return ErrTeamNotFound
	}
	return nil
}

func (r *postgresTeamRepository) Stats(ctx context.Context) (models.TeamStats, error) {
	stats := models.TeamStats{
		ByRegistration: map[models.RegistrationStatus]int{},
		ByPayment:      map[models.PaymentStatus]int{},
	}
	query := `
		SELECT registration_status, payment_status, COUNT(*),
			COALESCE(SUM(entry_fee) FILTER (WHERE payment_status = 'paid'), 0)
		FROM teams
		GROUP BY registration_status, payment_status`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return stats, fmt.Errorf("failed to aggregate team stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			reg   models.RegistrationStatus
			pay   models.PaymentStatus
			count int
			fees  int64
		)
		if err := rows.Scan(&reg, &pay, &count, &fees); err != nil {
			return stats, fmt.Errorf("failed to scan team stats: %w", err)
		}
		stats.Total += count
		stats.ByRegistration[reg] += count
		stats.ByPayment[pay] += count
		stats.CollectedEntryFees += fees
	}
	return stats, rows.Err()
}
