package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"
	_ "time/tzdata" // REMINDER_TIMEZONE в контейнере без zoneinfo

	"github.com/Sarvesh28D/FragsHub-sub000/config"
	"github.com/Sarvesh28D/FragsHub-sub000/db"
	"github.com/Sarvesh28D/FragsHub-sub000/docs"
	"github.com/Sarvesh28D/FragsHub-sub000/jobs"
	api "github.com/Sarvesh28D/FragsHub-sub000/routes"
	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"
)

// version проставляется при сборке: -ldflags "-X main.version=..."
var version = "dev"

const shutdownTimeout = 15 * time.Second

// @title FragsHub API
// @description Регистрация команд, оплата взносов и турниры на Challonge.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "fragshub",
		Short:        "FragsHub tournament registration backend",
		SilenceUsage: true,
	}
	root.AddCommand(newServeCmd(), newMigrateCmd(), newAdminCmd(), newJobsCmd())
	return root
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)
	return logger
}

// bootstrap загружает конфигурацию и собирает приложение.
func bootstrap(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.Any("error", err))
		return nil, err
	}
	logger := newLogger(cfg.LogLevel)
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort), slog.String("version", version))

	return newApp(ctx, cfg, logger)
}

func newServeCmd() *cobra.Command {
	var withJobs, autoMigrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			if autoMigrate {
				if err := db.Migrate(a.db); err != nil {
					return err
				}
				a.logger.Info("migrations applied")
			}
			return serve(ctx, a, withJobs)
		},
	}
	cmd.Flags().BoolVar(&withJobs, "jobs", true, "run scheduled maintenance jobs in this process")
	cmd.Flags().BoolVar(&autoMigrate, "migrate", false, "apply database migrations before serving")
	return cmd
}

func serve(ctx context.Context, a *app, withJobs bool) error {
	logger := a.logger

	hubDone := make(chan struct{})
	go a.hub.Run(hubDone)
	defer close(hubDone)
	logger.Info("WebSocket Hub started")

	if withJobs {
		sched, err := a.jobs.Start(ctx, a.location)
		if err != nil {
			return err
		}
		defer func() {
			if err := sched.Shutdown(); err != nil {
				logger.Error("scheduler shutdown failed", slog.Any("error", err))
			}
		}()
	}

	docs.SwaggerInfo.Version = version

	// Настройка маршрутизатора
	router := chi.NewRouter()
	api.SetupRoutes(router, a.handlers(), a.tokens, a.cfg.FrontendOrigin)
	logger.Info("Routes configured")

	// Настройка и запуск HTTP-сервера
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", a.cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 40 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			return err
		}
		logger.Info("server stopped gracefully")
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		logger.Info("shutting down server", slog.Duration("timeout", shutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
			return err
		}
		logger.Info("server shutdown complete")
	}
	logger.Info("application exited")
	return nil
}

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			if err := db.Migrate(a.db); err != nil {
				return err
			}
			v, dirty, err := db.Version(a.db)
			if err != nil {
				return err
			}
			a.logger.Info("migrations applied", slog.Uint64("version", uint64(v)), slog.Bool("dirty", dirty))
			return nil
		},
	}

	down := &cobra.Command{
		Use:   "down [steps]",
		Short: "Roll back migrations (default 1 step)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			steps := 1
			if len(args) == 1 {
				n, err := strconv.Atoi(args[0])
				if err != nil || n < 1 {
					return fmt.Errorf("steps must be a positive integer, got %q", args[0])
				}
				steps = n
			}

			a, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()
			return db.MigrateDown(a.db, steps)
		},
	}
	cmd.AddCommand(down)
	return cmd
}

func newAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage admin claims",
	}

	setClaim := func(admin bool) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			email := strings.TrimSpace(args[0])
			if err := a.auth.SetAdminClaimByEmail(cmd.Context(), email, admin); err != nil {
				return err
			}
			a.logger.Info("admin claim updated", slog.String("email", email), slog.Bool("admin", admin))
			return nil
		}
	}

	cmd.AddCommand(
		&cobra.Command{Use: "grant <email>", Short: "Grant admin access", Args: cobra.ExactArgs(1), RunE: setClaim(true)},
		&cobra.Command{Use: "revoke <email>", Short: "Revoke admin access", Args: cobra.ExactArgs(1), RunE: setClaim(false)},
	)
	return cmd
}

func newJobsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Maintenance jobs",
	}

	names := []string{jobs.ExpireOrders, jobs.AutoStart, jobs.Reminders, jobs.RefundQueue}
	cmd.AddCommand(&cobra.Command{
		Use:       "run <name>",
		Short:     "Run one job now: " + strings.Join(names, ", "),
		Args:      cobra.ExactArgs(1),
		ValidArgs: names,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()
			return a.jobs.RunNow(cmd.Context(), args[0])
		},
	})
	return cmd
}
