package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/Sarvesh28D/FragsHub-sub000/challonge"
	"github.com/Sarvesh28D/FragsHub-sub000/config"
	"github.com/Sarvesh28D/FragsHub-sub000/db"
	"github.com/Sarvesh28D/FragsHub-sub000/handlers"
	"github.com/Sarvesh28D/FragsHub-sub000/jobs"
	"github.com/Sarvesh28D/FragsHub-sub000/live"
	"github.com/Sarvesh28D/FragsHub-sub000/notify"
	"github.com/Sarvesh28D/FragsHub-sub000/razorpay"
	"github.com/Sarvesh28D/FragsHub-sub000/repositories"
	"github.com/Sarvesh28D/FragsHub-sub000/routes"
	"github.com/Sarvesh28D/FragsHub-sub000/services"
	"github.com/Sarvesh28D/FragsHub-sub000/storage"
)

// app: собранное приложение: база, сервисы и то, что нужно командам CLI.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	db     *sql.DB
	hub    *live.Hub
	tokens *services.TokenManager

	auth        services.AuthService
	teams       services.TeamService
	tournaments services.TournamentService
	admin       services.AdminService
	payments    services.PaymentService
	notifier    services.NotificationService
	dashboard   services.DashboardService
	reminders   services.ReminderService

	jobs     *jobs.Runner
	features handlers.Features
	location *time.Location
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	dbConn, err := db.Connect(cfg.DatabaseURL, 30*time.Second, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("database connection established")

	a := &app{cfg: cfg, logger: logger, db: dbConn, hub: live.NewHub(logger)}
	if err := a.wire(ctx); err != nil {
		_ = dbConn.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) wire(ctx context.Context) error {
	cfg, logger := a.cfg, a.logger

	loc, err := time.LoadLocation(cfg.ReminderTimezone)
	if err != nil {
		return fmt.Errorf("invalid reminder timezone: %w", err)
	}
	a.location = loc

	// Инициализация загрузчика файлов (Cloudflare R2). Без него загрузка логотипов отвечает 503.
	var uploader storage.FileUploader
	if cfg.StorageEnabled() {
		uploader, err = storage.NewCloudflareR2Uploader(ctx, storage.CloudflareR2UploaderConfig{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicBaseURL:   cfg.R2PublicBaseURL,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize Cloudflare R2 uploader: %w", err)
		}
		logger.Info("Cloudflare R2 uploader initialized")
	} else {
		logger.Warn("R2 storage is not configured, logo uploads are disabled")
	}

	var mailer services.Mailer
	if cfg.SMTPEnabled() {
		mailer = services.NewEmailService(services.SMTPConfig{
			Host: cfg.SMTPHost,
			Port: cfg.SMTPPort,
			User: cfg.SMTPUser,
			Pass: cfg.SMTPPass,
			From: cfg.SMTPFrom,
		})
	} else {
		logger.Warn("SMTP is not configured, reminders are only logged")
		mailer = services.NewLogMailer(logger)
	}

	// Relay должен остаться nil-интерфейсом, если Discord не настроен.
	var relay services.Relay
	if cfg.DiscordEnabled() {
		discord, err := notify.NewDiscordRelay(cfg.DiscordBotToken, cfg.DiscordChannelID)
		if err != nil {
			return err
		}
		relay = discord
		logger.Info("discord relay enabled")
	}

	// Инициализация репозиториев
	userRepo := repositories.NewPostgresUserRepository(a.db)
	teamRepo := repositories.NewPostgresTeamRepository(a.db)
	tournamentRepo := repositories.NewPostgresTournamentRepository(a.db)
	orderRepo := repositories.NewPostgresPaymentOrderRepository(a.db)
	refundRepo := repositories.NewPostgresRefundRepository(a.db)
	notificationRepo := repositories.NewPostgresNotificationRepository(a.db)
	matchResultRepo := repositories.NewPostgresMatchResultRepository(a.db)
	tx := repositories.NewTransactor(a.db)

	bracket := challonge.NewClient(cfg.ChallongeBaseURL, cfg.ChallongeUsername, cfg.ChallongeAPIKey, cfg.UpstreamTimeout)
	gateway := razorpay.NewClient(cfg.RazorpayBaseURL, cfg.RazorpayKeyID, cfg.RazorpayKeySecret, cfg.UpstreamTimeout)

	// Инициализация сервисов
	a.tokens = services.NewTokenManager(cfg.JWTSecretKey, cfg.TokenTTL)
	a.notifier = services.NewNotificationService(notificationRepo, relay, logger)
	a.auth = services.NewAuthService(userRepo, tx, a.tokens, logger)
	a.teams = services.NewTeamService(teamRepo, uploader, a.notifier,
		services.TeamRules{MinPlayers: cfg.TeamMinPlayers, MaxPlayers: cfg.TeamMaxPlayers}, logger)
	a.tournaments = services.NewTournamentService(tournamentRepo, teamRepo, bracket, a.hub, a.notifier, cfg.UpstreamTimeout, logger)
	a.admin = services.NewAdminService(services.AdminServiceDeps{
		TeamRepo:        teamRepo,
		TournamentRepo:  tournamentRepo,
		RefundRepo:      refundRepo,
		MatchResultRepo: matchResultRepo,
		Tx:              tx,
		Tournaments:     a.tournaments,
		Teams:           a.teams,
		Auth:            a.auth,
		Events:          a.hub,
		Notifier:        a.notifier,
		Logger:          logger,
	})
	a.payments = services.NewPaymentService(services.PaymentServiceDeps{
		OrderRepo:  orderRepo,
		RefundRepo: refundRepo,
		TeamRepo:   teamRepo,
		Tx:         tx,
		Gateway:    gateway,
		Approver:   a.admin,
		Notifier:   a.notifier,
		Config: services.PaymentConfig{
			KeyID:         cfg.RazorpayKeyID,
			KeySecret:     cfg.RazorpayKeySecret,
			WebhookSecret: cfg.RazorpayWebhookSecret,
			Currency:      cfg.Currency,
			AutoApprove:   cfg.AutoApproveTeams,
		},
		UpstreamTimeout: cfg.UpstreamTimeout,
		Logger:          logger,
	})
	a.dashboard = services.NewDashboardService(teamRepo, tournamentRepo, refundRepo, notificationRepo)
	a.reminders = services.NewReminderService(tournamentRepo, teamRepo, mailer, loc, logger)
	a.jobs = jobs.NewRunner(a.payments, a.tournaments, a.reminders, a.notifier, logger)
	logger.Info("services initialized")

	a.features = handlers.Features{
		LogoUploads:   uploader != nil,
		EmailEnabled:  cfg.SMTPEnabled(),
		DiscordRelay:  relay != nil,
		AutoApprove:   cfg.AutoApproveTeams,
		PaymentsKeyID: cfg.RazorpayKeyID,
	}
	return nil
}

func (a *app) handlers() routes.Handlers {
	return routes.Handlers{
		Auth:       handlers.NewAuthHandler(a.auth),
		Team:       handlers.NewTeamHandler(a.teams),
		Tournament: handlers.NewTournamentHandler(a.tournaments),
		Payment:    handlers.NewPaymentHandler(a.payments),
		Admin:      handlers.NewAdminHandler(a.admin, a.dashboard, a.notifier, a.payments),
		Health:     handlers.NewHealthHandler(a.db, version, a.features),
		WebSocket:  handlers.NewWebSocketHandler(a.hub, a.cfg.FrontendOrigin),
	}
}

func (a *app) close() {
	if err := a.db.Close(); err != nil {
		a.logger.Error("failed to close database connection", slog.Any("error", err))
	} else {
		a.logger.Info("database connection closed")
	}
}
