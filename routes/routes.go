package routes

import (
	"net/http"

	"github.com/Dosada05/venue-tournaments/handlers"
	"github.com/Dosada05/venue-tournaments/middleware"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type Handlers struct {
	Auth          *handlers.AuthHandler
	Tournaments   *handlers.TournamentHandler
	Registrations *handlers.RegistrationHandler
	Orders        *handlers.OrderHandler
	WebSocket     *handlers.WebSocketHandler
}

type Options struct {
	Authenticator       middleware.TokenAuthenticator
	Admins              middleware.AdminChecker
	RegistrationLimiter *middleware.IPRateLimiter
	AllowedOrigins      []string
	Metrics             http.Handler
}

func SetupRoutes(router chi.Router, h Handlers, opts Options) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Disposition", "X-Export-URL"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	router.Use(middleware.Authenticate(opts.Authenticator))

	requireAdmin := middleware.RequireAdmin(opts.Admins)

	router.Route("/auth", func(r chi.Router) {
		r.Post("/login", h.Auth.Login)
		r.Get("/me", h.Auth.Me)
		r.With(requireAdmin).Post("/logout", h.Auth.Logout)
	})

	router.Route("/tournaments", func(r chi.Router) {
		// Публичные маршруты
		r.Get("/", h.Tournaments.ListTournaments)
		r.Get("/active", h.Tournaments.ListActiveTournaments)
		r.Get("/{tournamentID}/spots", h.Tournaments.GetSpots)
		r.With(middleware.RateLimit(opts.RegistrationLimiter)).
			Post("/{tournamentID}/registrations", h.Registrations.Register)

		// Только для администратора
		r.Group(func(r chi.Router) {
			r.Use(requireAdmin)
			r.Post("/editions", h.Tournaments.CreateEdition)
			r.Get("/{tournamentID}/registrations", h.Registrations.ListRegistrations)
			r.Get("/{tournamentID}/registrations/export", h.Registrations.ExportRegistrations)
			r.Post("/{tournamentID}/reset", h.Tournaments.ResetTournament)
			r.Delete("/{tournamentID}", h.Tournaments.DeleteTournament)
		})
	})

	router.Route("/orders", func(r chi.Router) {
		r.Post("/handoff", h.Orders.Handoff)
		r.Post("/waitlist", h.Orders.Waitlist)
	})

	router.Get("/ws/tournaments", h.WebSocket.ServeWs)
	if opts.Metrics != nil {
		router.Method(http.MethodGet, "/metrics", opts.Metrics)
	}
}
