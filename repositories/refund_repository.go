package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Sarvesh28D/FragsHub-sub000/models"
)

var (
	ErrRefundNotFound = errors.New("refund not found")
	ErrRefundExists   = errors.New("refund already exists for this payment")
)

type RefundRepository interface {
	Create(ctx context.Context, exec SQLExecutor, refund *models.Refund) error
	ListQueued(ctx context.Context, limit int) ([]models.Refund, error)
	ListByTeam(ctx context.Context, teamID string) ([]models.Refund, error)
	UpdateFromGateway(ctx context.Context, exec SQLExecutor, id, gatewayRefundID string, status models.RefundStatus) error
	MarkStatus(ctx context.Context, id string, status models.RefundStatus) error
	// MarkStatusByGatewayID returns the team the refund belongs to.
	MarkStatusByGatewayID(ctx context.Context, gatewayRefundID string, status models.RefundStatus) (string, error)
	CountByStatus(ctx context.Context) (map[models.RefundStatus]int, error)
}

type postgresRefundRepository struct {
	db *sql.DB
}

func NewPostgresRefundRepository(db *sql.DB) RefundRepository {
	return &postgresRefundRepository{db: db}
}

const refundColumns = `id, team_id, payment_id, amount, reason, status, gateway_refund_id, created_at, updated_at`

// Create не падает на уникальном индексе, а возвращает ErrRefundExists.
func (r *postgresRefundRepository) Create(ctx context.Context, exec SQLExecutor, rf *models.Refund) error {
	query := `
		INSERT INTO refunds (id, team_id, payment_id, amount, reason, status, gateway_refund_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		ON CONFLICT DO NOTHING`
	result, err := executorOr(exec, r.db).ExecContext(ctx, query,
		rf.ID, rf.TeamID, rf.PaymentID, rf.Amount, rf.Reason, rf.Status, rf.GatewayRefundID, rf.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create refund: %w", err)
	}
	if err := checkAffectedRows(result, ErrRefundExists); err != nil {
		return err
	}
	rf.UpdatedAt = rf.CreatedAt
	return nil
}

func (r *postgresRefundRepository) ListQueued(ctx context.Context, limit int) ([]models.Refund, error) {
	query := `SELECT ` + refundColumns + ` FROM refunds WHERE status = 'queued' ORDER BY created_at LIMIT $1`
	return r.query(ctx, query, limit)
}

func (r *postgresRefundRepository) ListByTeam(ctx context.Context, teamID string) ([]models.Refund, error) {
	query := `SELECT ` + refundColumns + ` FROM refunds WHERE team_id = $1 ORDER BY created_at`
	return r.query(ctx, query, teamID)
}

func (r *postgresRefundRepository) query(ctx context.Context, query string, args ...interface{}) ([]models.Refund, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query refunds: %w", err)
	}
	defer rows.Close()

	refunds := make([]models.Refund, 0)
	for rows.Next() {
		var rf models.Refund
		if err := rows.Scan(&rf.ID, &rf.TeamID, &rf.PaymentID, &rf.Amount, &rf.Reason, &rf.Status,
			&rf.GatewayRefundID, &rf.CreatedAt, &rf.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan refund: %w", err)
		}
		refunds = append(refunds, rf)
	}
	return refunds, rows.Err()
}

func (r *postgresRefundRepository) UpdateFromGateway(ctx context.Context, exec SQLExecutor, id, gatewayRefundID string, status models.RefundStatus) error {
	query := `UPDATE refunds SET gateway_refund_id = $2, status = $3, updated_at = now() WHERE id = $1`
	result, err := executorOr(exec, r.db).ExecContext(ctx, query, id, gatewayRefundID, status)
	if err != nil {
		if isUniqueViolation(err, "refunds_gateway_refund_id_key") {
			return ErrRefundExists
		}
		return fmt.Errorf("failed to update refund %s: %w", id, err)
	}
	return checkAffectedRows(result, ErrRefundNotFound)
}

func (r *postgresRefundRepository) MarkStatus(ctx context.Context, id string, status models.RefundStatus) error {
	result, err := r.db.ExecContext(ctx, `UPDATE refunds SET status = $2, updated_at = now() WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("failed to update refund %s: %w", id, err)
	}
	return checkAffectedRows(result, ErrRefundNotFound)
}

func (r *postgresRefundRepository) MarkStatusByGatewayID(ctx context.Context, gatewayRefundID string, status models.RefundStatus) (string, error) {
	query := `UPDATE refunds SET status = $2, updated_at = now() WHERE gateway_refund_id = $1 RETURNING team_id`
	var teamID string
	if err := r.db.QueryRowContext(ctx, query, gatewayRefundID, status).Scan(&teamID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrRefundNotFound
		}
		return "", fmt.Errorf("failed to update refund %s: %w", gatewayRefundID, err)
	}
	return teamID, nil
}

func (r *postgresRefundRepository) CountByStatus(ctx context.Context) (map[models.RefundStatus]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM refunds GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count refunds: %w", err)
	}
	defer rows.Close()

	counts := map[models.RefundStatus]int{}
	for rows.Next() {
		var (
			status models.RefundStatus
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}
