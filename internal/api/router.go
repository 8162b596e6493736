/**
 * @description
 * This file sets up the HTTP router for the pool-service. It defines the API
 * endpoints, associates them with their corresponding handlers, and applies any
 * necessary middleware, such as for authentication.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 * - github.com/go-chi/cors: CORS middleware for browser clients.
 */

package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// PoolRoutes creates and returns a new router for the pool service.
func PoolRoutes(h *PoolHandlers, jwtSecret, allowedOrigins string) http.Handler {
	r := chi.NewRouter()

	// Add standard middleware for logging, panic recovery, and timeouts.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   strings.Split(allowedOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	// Group routes that require authentication.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(jwtSecret))

		r.Post("/pools", h.CreatePoolHandler)
		r.Route("/pools/{poolID}", func(r chi.Router) {
			r.Get("/", h.GetPoolHandler)
			r.Delete("/", h.CancelPoolHandler)

			r.Post("/members", h.JoinPoolHandler)
			r.Put("/members/order", h.ReorderMembersHandler)

			r.Get("/contributions", h.GetContributionStatusHandler)
			r.Post("/contributions", h.ConfirmContributionHandler)
			r.Post("/contributions/{memberID}/undo", h.UndoContributionHandler)

			r.Get("/early-payout", h.EarlyPayoutStatusHandler)
			r.Post("/early-payout", h.InitiateEarlyPayoutHandler)

			r.Get("/transactions", h.ListPayoutsHandler)
		})
	})

	return r
}
