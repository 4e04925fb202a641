package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Sarvesh28D/FragsHub-sub000/models"
)

var (
	ErrOrderNotFound = errors.New("payment order not found")
	ErrOrderExists   = errors.New("payment order already exists")
)

// ExpiredOrder is one order moved to expired by ExpireStale.
type ExpiredOrder struct {
	OrderID string
	TeamID  string
}

type PaymentOrderRepository interface {
	CreateOrder(ctx context.Context, order *models.PaymentOrder) error
	GetOrder(ctx context.Context, id string) (*models.PaymentOrder, error)
	GetSettledByPaymentID(ctx context.Context, paymentID string) (*models.PaymentOrder, error)
	MarkOrder(ctx context.Context, exec SQLExecutor, id string, status models.OrderStatus, paymentID *string) error
	ExpireStale(ctx context.Context, cutoff time.Time) ([]ExpiredOrder, error)
}

type postgresPaymentOrderRepository struct {
	db *sql.DB
}

func NewPostgresPaymentOrderRepository(db *sql.DB) PaymentOrderRepository {
	return &postgresPaymentOrderRepository{db: db}
}

const orderColumns = `id, team_id, amount, currency, receipt, payment_id, status, created_at, updated_at`

func scanOrder(row rowScanner) (*models.PaymentOrder, error) {
	var o models.PaymentOrder
	if err := row.Scan(&o.ID, &o.TeamID, &o.Amount, &o.Currency, &o.Receipt, &o.PaymentID, &o.Status, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *postgresPaymentOrderRepository) CreateOrder(ctx context.Context, o *models.PaymentOrder) error {
	query := `
		INSERT INTO payment_orders (id, team_id, amount, currency, receipt, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)`
	_, err := r.db.ExecContext(ctx, query, o.ID, o.TeamID, o.Amount, o.Currency, o.Receipt, o.Status, o.CreatedAt)
	if err != nil {
		if isUniqueViolation(err, "payment_orders_pkey") {
			return ErrOrderExists
		}
		return fmt.Errorf("failed to create payment order: %w", err)
	}
	o.UpdatedAt = o.CreatedAt
	return nil
}

func (r *postgresPaymentOrderRepository) GetOrder(ctx context.Context, id string) (*models.PaymentOrder, error) {
	o, err := scanOrder(r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM payment_orders WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to get payment order %s: %w", id, err)
	}
	return o, nil
}

func (r *postgresPaymentOrderRepository) GetSettledByPaymentID(ctx context.Context, paymentID string) (*models.PaymentOrder, error) {
	query := `SELECT ` + orderColumns + ` FROM payment_orders
		WHERE payment_id = $1 AND status IN ('verified', 'captured')
		ORDER BY updated_at DESC LIMIT 1`
	o, err := scanOrder(r.db.QueryRowContext(ctx, query, paymentID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to get order for payment %s: %w", paymentID, err)
	}
	return o, nil
}

func (r *postgresPaymentOrderRepository) MarkOrder(ctx context.Context, exec SQLExecutor, id string, status models.OrderStatus, paymentID *string) error {
	query := `
		UPDATE payment_orders SET status = $2, payment_id = COALESCE($3, payment_id), updated_at = now()
		WHERE id = $1`
	result, err := executorOr(exec, r.db).ExecContext(ctx, query, id, status, paymentID)
	if err != nil {
		return fmt.Errorf("failed to mark payment order %s as %s: %w", id, status, err)
	}
	return checkAffectedRows(result, ErrOrderNotFound)
}

// ExpireStale переводит в expired все заказы в статусе created старше cutoff,
// а связанные команды, у которых оплата ещё pending, тоже в expired. Одна транзакция.
func (r *postgresPaymentOrderRepository) ExpireStale(ctx context.Context, cutoff time.Time) ([]ExpiredOrder, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `
		UPDATE payment_orders SET status = 'expired', updated_at = now()
		WHERE status = 'created' AND created_at < $1
		RETURNING id, team_id`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to expire payment orders: %w", err)
	}

	expired := make([]ExpiredOrder, 0)
	teamIDs := make([]string, 0)
	for rows.Next() {
		var e ExpiredOrder
		if err := rows.Scan(&e.OrderID, &e.TeamID); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan expired order: %w", err)
		}
		expired = append(expired, e)
		teamIDs = append(teamIDs, e.TeamID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(teamIDs) > 0 {
		_, err = tx.ExecContext(ctx, `
			UPDATE teams SET payment_status = 'expired', updated_at = now()
			WHERE id = ANY($1) AND payment_status = 'pending'`, pqStringArray(teamIDs))
		if err != nil {
			return nil, fmt.Errorf("failed to expire team payments: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit order expiry: %w", err)
	}
	return expired, nil
}
