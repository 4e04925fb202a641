package routes

import (
	"net/http"
	"time"

	"github.com/Sarvesh28D/FragsHub-sub000/handlers"
	"github.com/Sarvesh28D/FragsHub-sub000/middleware"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware" // Alias to avoid conflict
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"
)

const requestTimeout = 30 * time.Second

// Handlers: всё, что нужно маршрутизатору.
type Handlers struct {
	Auth       *handlers.AuthHandler
	Team       *handlers.TeamHandler
	Tournament *handlers.TournamentHandler
	Payment    *handlers.PaymentHandler
	Admin      *handlers.AdminHandler
	Health     *handlers.HealthHandler
	WebSocket  *handlers.WebSocketHandler
}

func SetupRoutes(router chi.Router, h Handlers, tokens middleware.TokenParser, frontendOrigin string) {
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{frontendOrigin},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Razorpay-Signature"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)

	authenticate := middleware.Authenticate(tokens)

	router.Get("/health", h.Health.Health)
	router.Get("/info", h.Health.Info)
	router.Get("/swagger/*", httpSwagger.WrapHandler)

	// WebSocket живёт дольше таймаута запроса, поэтому вне группы с Timeout.
	router.Get("/ws/tournaments/{id}", h.WebSocket.ServeWs)

	router.Group(func(r chi.Router) {
		r.Use(chiMiddleware.Timeout(requestTimeout))

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", h.Auth.Register)
			r.Post("/login", h.Auth.Login)
			r.With(authenticate).Get("/me", h.Auth.Me)
		})

		r.Route("/teams", func(r chi.Router) {
			r.Post("/register", h.Team.RegisterTeam)
			r.Get("/", h.Team.ListTeams)
			r.Get("/stats/overview", h.Team.Stats)
			r.Get("/{id}", h.Team.GetTeam)
			// Изменять и удалять может капитан или админ
			r.With(authenticate).Put("/{id}", h.Team.UpdateTeam)
			r.With(authenticate).Delete("/{id}", h.Team.DeleteTeam)
			r.Post("/{id}/logo", h.Team.UploadLogo)
		})

		r.Route("/tournaments", func(r chi.Router) {
			r.Get("/", h.Tournament.ListTournaments)
			r.Get("/active", h.Tournament.GetActiveTournament)
			r.Get("/{id}", h.Tournament.GetTournament)
			r.Get("/{id}/leaderboard", h.Tournament.Leaderboard)

			// Изменения турниров только для админов
			r.Group(func(r chi.Router) {
				r.Use(authenticate)
				r.Use(middleware.AdminOnly)

				r.Post("/create", h.Tournament.CreateTournament)
				r.Post("/{id}/start", h.Tournament.StartTournament)
				r.Post("/{id}/complete", h.Tournament.CompleteTournament)
				r.Delete("/{id}", h.Tournament.DeleteTournament)
				r.Post("/{id}/teams", h.Tournament.AddTeam)
				r.Put("/{id}/matches/{mid}", h.Tournament.UpdateMatch)
			})
		})

		r.Route("/payments", func(r chi.Router) {
			r.Post("/create-order", h.Payment.CreateOrder)
			r.Post("/verify", h.Payment.VerifyPayment)
			r.Post("/webhook", h.Payment.Webhook)
			r.With(authenticate, middleware.AdminOnly).Post("/refund", h.Payment.RefundPayment)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(authenticate)
			r.Use(middleware.AdminOnly)

			r.Get("/dashboard", h.Admin.Dashboard)
			r.Get("/teams/pending", h.Admin.PendingTeams)
			r.Post("/teams/{id}/approve", h.Admin.ApproveTeam)
			r.Post("/teams/{id}/reject", h.Admin.RejectTeam)
			r.Put("/tournaments/{tid}/matches/{mid}/result", h.Admin.RecordMatchResult)
			r.Post("/users/{uid}/grant-admin", h.Admin.GrantAdmin)
			r.Post("/users/{uid}/revoke-admin", h.Admin.RevokeAdmin)
			r.Get("/notifications", h.Admin.ListNotifications)
			r.Post("/notifications/{id}/read", h.Admin.MarkNotificationRead)
			r.Post("/refunds/process", h.Admin.ProcessRefunds)
		})
	})

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"the requested resource could not be found"}` + "\n"))
	})
}
