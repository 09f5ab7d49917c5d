package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
)

// magicLinkRequestsPerIP bounds how many sign-in emails one address can
// trigger per window.
const magicLinkRequestsPerIP = 5

// RegisterRoutes sets up all the API endpoints and middleware for the application.
func (s *Server) RegisterRoutes(r *chi.Mux) {
	// --- Global Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealthz)
	r.Handle("/metrics", s.metrics.Handler())

	// --- REST API Group with CORS ---
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:3000", s.config.FrontendURL},
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
		r.Use(httprate.LimitByIP(s.config.RateLimitPerMinute, time.Minute))

		// The notification stream is long-lived, so it sits outside the
		// request timeout below.
		r.With(s.authMiddleware).Get("/notifications/stream", s.handleSSE)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(s.config.RequestTimeout))

			// Public routes
			r.Get("/lock", s.handleGetLock)
			r.Get("/teams/logo", s.handleGetTeamLogo)
			r.Get("/scores/freshness", s.handleGetScoresFreshness)
			r.Get("/join/{code}", s.handlePreviewPool)

			// Auth routes
			r.With(httprate.LimitByIP(magicLinkRequestsPerIP, 10*time.Minute)).Post("/auth/magic-link", s.handleRequestMagicLink)
			r.Post("/auth/verify", s.handleVerifyMagicLink)
			r.Post("/auth/sign-out", s.handleSignOut)
			if s.googleOAuth != nil {
				r.Get("/auth/google/login", s.handleGoogleLogin)
				r.Get("/auth/google/callback", s.handleGoogleCallback)
			}

			// --- Authenticated REST Routes ---
			r.Group(func(r chi.Router) {
				r.Use(s.authMiddleware)

				r.Get("/users/me", s.handleGetMyProfile)

				r.Get("/games", s.handleGetGames)
				r.Get("/picks", s.handleGetMyPicks)
				r.Put("/picks/{gameID}", s.handleMakePick)

				r.Get("/pools", s.handleGetMyPools)
				r.Post("/pools", s.handleCreatePool)
				r.Post("/pools/join", s.handleJoinPool)
				r.Get("/pools/{poolID}", s.handleGetPool)
				r.Delete("/pools/{poolID}/membership", s.handleLeavePool)
				r.Get("/pools/{poolID}/invite-link", s.handleGetInviteLink)
				r.Post("/pools/{poolID}/invite", s.handleInviteToPool)
				r.Get("/pools/{poolID}/leaderboard", s.handleGetLeaderboard)
				r.Get("/pools/{poolID}/members/{userID}/picks", s.handleGetMemberPicks)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.errorJSON(w, errors.New("not found"), http.StatusNotFound)
	})
}
