package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Sarvesh28D/FragsHub-sub000/models"
	"github.com/Sarvesh28D/FragsHub-sub000/repositories"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 8

type AuthService interface {
	Register(ctx context.Context, input RegisterInput) (*AuthResult, error)
	Login(ctx context.Context, input LoginInput) (*AuthResult, error)
	Me(ctx context.Context, uid string) (*models.User, error)
	// SetAdminClaim меняет claim и зеркало isAdmin в одной транзакции.
	SetAdminClaim(ctx context.Context, uid string, admin bool) error
	// SetAdminClaimByEmail is the CLI entry point.
	SetAdminClaimByEmail(ctx context.Context, email string, admin bool) error
}

type RegisterInput struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
}

type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResult struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

type authService struct {
	userRepo repositories.UserRepository
	tx       repositories.Transactor
	tokens   *TokenManager
	logger   *slog.Logger
	now      func() time.Time
	newID    func() string
}

func NewAuthService(userRepo repositories.UserRepository, tx repositories.Transactor, tokens *TokenManager, logger *slog.Logger) AuthService {
	return &authService{
		userRepo: userRepo,
		tx:       tx,
		tokens:   tokens,
		logger:   logger,
		now:      time.Now,
		newID:    newUUID,
	}
}

func (s *authService) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	input.Email = strings.TrimSpace(input.Email)
	input.DisplayName = strings.TrimSpace(input.DisplayName)

	v := &validator{}
	v.check(input.Email != "", "email", "is required")
	if input.Email != "" {
		addr, err := parseEmail(input.Email)
		v.check(err == nil && addr == input.Email, "email", "is not a valid email address")
	}
	v.check(len(input.Password) >= minPasswordLength, "password",
		fmt.Sprintf("must be at least %d characters", minPasswordLength))
	if err := v.err(); err != nil {
		return nil, err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("ошибка хеширования пароля: %w", err)
	}

	now := s.now().UTC()
	account := &models.AuthAccount{
		UID:          s.newID(),
		Email:        input.Email,
		PasswordHash: string(hashedPassword),
		CreatedAt:    now,
	}
	displayName := input.DisplayName
	if displayName == "" {
		displayName = strings.SplitN(input.Email, "@", 2)[0]
	}
	user := &models.User{
		UID:         account.UID,
		Email:       account.Email,
		DisplayName: displayName,
		CreatedAt:   now,
	}

	err = s.tx.InTx(ctx, func(exec repositories.SQLExecutor) error {
		if err := s.userRepo.CreateAccount(ctx, exec, account); err != nil {
			return err
		}
		return s.userRepo.UpsertProfile(ctx, exec, user)
	})
	if err != nil {
		if errors.Is(err, repositories.ErrUserEmailConflict) {
			return nil, ErrUserEmailConflict
		}
		return nil, fmt.Errorf("ошибка создания пользователя: %w", err)
	}

	token, err := s.tokens.Issue(account.UID, account.Email, account.AdminClaim)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, User: user}, nil
}

func (s *authService) Login(ctx context.Context, input LoginInput) (*AuthResult, error) {
	account, err := s.userRepo.GetAccountByEmail(ctx, strings.TrimSpace(input.Email))
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}

	err = bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(input.Password))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to compare password hash: %w", err)
	}

	token, err := s.tokens.Issue(account.UID, account.Email, account.AdminClaim)
	if err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetProfile(ctx, account.UID)
	if err != nil {
		if !errors.Is(err, repositories.ErrUserNotFound) {
			return nil, fmt.Errorf("failed to load user profile: %w", err)
		}
		user = &models.User{UID: account.UID, Email: account.Email, CreatedAt: account.CreatedAt}
	}
	// Профиль лишь зеркалит claim.
	user.IsAdmin = account.AdminClaim
	return &AuthResult{Token: token, User: user}, nil
}

func (s *authService) Me(ctx context.Context, uid string) (*models.User, error) {
	user, err := s.userRepo.GetProfile(ctx, uid)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

func (s *authService) SetAdminClaim(ctx context.Context, uid string, admin bool) error {
	err := s.tx.InTx(ctx, func(exec repositories.SQLExecutor) error {
		if err := s.userRepo.SetAdminClaim(ctx, exec, uid, admin); err != nil {
			return err
		}
		return s.userRepo.SetAdminMirror(ctx, exec, uid, admin)
	})
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to set admin claim: %w", err)
	}
	s.logger.InfoContext(ctx, "admin claim updated", slog.String("uid", uid), slog.Bool("admin", admin))
	return nil
}

func (s *authService) SetAdminClaimByEmail(ctx context.Context, email string, admin bool) error {
	account, err := s.userRepo.GetAccountByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	return s.SetAdminClaim(ctx, account.UID, admin)
}
