package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Sarvesh28D/FragsHub-sub000/models"
	"github.com/lib/pq"
)

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrUserEmailConflict = errors.New("user email conflict")
)

// UserRepository хранит учётные записи (с claim admin) и профили пользователей.
type UserRepository interface {
	CreateAccount(ctx context.Context, exec SQLExecutor, account *models.AuthAccount) error
	GetAccountByEmail(ctx context.Context, email string) (*models.AuthAccount, error)
	GetAccountByUID(ctx context.Context, uid string) (*models.AuthAccount, error)
	SetAdminClaim(ctx context.Context, exec SQLExecutor, uid string, admin bool) error
	UpsertProfile(ctx context.Context, exec SQLExecutor, user *models.User) error
	SetAdminMirror(ctx context.Context, exec SQLExecutor, uid string, admin bool) error
	GetProfile(ctx context.Context, uid string) (*models.User, error)
}

type postgresUserRepository struct {
	db *sql.DB
}

func NewPostgresUserRepository(db *sql.DB) UserRepository {
	return &postgresUserRepository{db: db}
}

func (r *postgresUserRepository) CreateAccount(ctx context.Context, exec SQLExecutor, a *models.AuthAccount) error {
	query := `
		INSERT INTO auth_accounts (uid, email, password_hash, admin_claim, created_at)
		VALUES ($1, $2, $3, $4, $5)`
	_, err := executorOr(exec, r.db).ExecContext(ctx, query, a.UID, a.Email, a.PasswordHash, a.AdminClaim, a.CreatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return ErrUserEmailConflict
		}
		return fmt.Errorf("failed to create auth account: %w", err)
	}
	return nil
}

func (r *postgresUserRepository) GetAccountByEmail(ctx context.Context, email string) (*models.AuthAccount, error) {
	query := `SELECT uid, email, password_hash, admin_claim, created_at FROM auth_accounts WHERE lower(email) = lower($1)`
	return r.getAccount(ctx, query, email)
}

func (r *postgresUserRepository) GetAccountByUID(ctx context.Context, uid string) (*models.AuthAccount, error) {
	query := `SELECT uid, email, password_hash, admin_claim, created_at FROM auth_accounts WHERE uid = $1`
	return r.getAccount(ctx, query, uid)
}

func (r *postgresUserRepository) getAccount(ctx context.Context, query string, arg string) (*models.AuthAccount, error) {
	var a models.AuthAccount
	err := r.db.QueryRowContext(ctx, query, arg).Scan(&a.UID, &a.Email, &a.PasswordHash, &a.AdminClaim, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get auth account: %w", err)
	}
	return &a, nil
}

func (r *postgresUserRepository) SetAdminClaim(ctx context.Context, exec SQLExecutor, uid string, admin bool) error {
	result, err := executorOr(exec, r.db).ExecContext(ctx, `UPDATE auth_accounts SET admin_claim = $2 WHERE uid = $1`, uid, admin)
	if err != nil {
		return fmt.Errorf("failed to set admin claim for %s: %w", uid, err)
	}
	return checkAffectedRows(result, ErrUserNotFound)
}

func (r *postgresUserRepository) UpsertProfile(ctx context.Context, exec SQLExecutor, u *models.User) error {
	query := `
		INSERT INTO users (uid, email, display_name, is_admin, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (uid) DO UPDATE
			SET email = EXCLUDED.email, display_name = EXCLUDED.display_name, updated_at = EXCLUDED.updated_at`
	_, err := executorOr(exec, r.db).ExecContext(ctx, query, u.UID, u.Email, u.DisplayName, u.IsAdmin, u.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert user profile %s: %w", u.UID, err)
	}
	u.UpdatedAt = u.CreatedAt
	return nil
}

// SetAdminMirror создаёт профиль, если его ещё нет.
func (r *postgresUserRepository) SetAdminMirror(ctx context.Context, exec SQLExecutor, uid string, admin bool) error {
	query := `
		INSERT INTO users (uid, email, is_admin)
		SELECT uid, email, $2 FROM auth_accounts WHERE uid = $1
		ON CONFLICT (uid) DO UPDATE SET is_admin = EXCLUDED.is_admin, updated_at = now()`
	result, err := executorOr(exec, r.db).ExecContext(ctx, query, uid, admin)
	if err != nil {
		return fmt.Errorf("failed to mirror admin flag for %s: %w", uid, err)
	}
	return checkAffectedRows(result, ErrUserNotFound)
}

func (r *postgresUserRepository) GetProfile(ctx context.Context, uid string) (*models.User, error) {
	query := `SELECT uid, email, display_name, is_admin, created_at, updated_at FROM users WHERE uid = $1`
	var u models.User
	err := r.db.QueryRowContext(ctx, query, uid).Scan(&u.UID, &u.Email, &u.DisplayName, &u.IsAdmin, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user profile %s: %w", uid, err)
	}
	return &u, nil
}
