/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the admin frontend
  5. Auth:       JWT verification + admin guard on everything except
                 /api/login and /api/health

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/karat/ledger-engine/auth"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		// Public routes
		r.Get("/health", h.Health)
		r.Post("/login", h.Login)

		// Everything else requires an authenticated admin
		r.Group(func(r chi.Router) {
			r.Use(requireAdmin(h.Auth.Tokens))

			r.Post("/password", h.ChangePassword)

			r.Route("/customers", func(r chi.Router) {
				r.Get("/", h.ListCustomers)
				r.Get("/search", h.SearchCustomers)
				r.Post("/", h.CreateCustomer)
				r.Get("/{id}", h.GetCustomer)
				r.Put("/{id}", h.UpdateCustomer)
				r.Post("/{id}/purchases", h.AddPurchase)
				r.Post("/{id}/records", h.AddRecord)
				r.Post("/{id}/payments", h.RecordPayment)
			})

			r.Route("/items", func(r chi.Router) {
				r.Get("/", h.ListItems)
				r.Post("/", h.UpsertItem)
				r.Get("/summary", h.ItemSummary)
			})
		})
	})

	return r
}

// =============================================================================
// AUTH MIDDLEWARE
// =============================================================================

type contextKey string

const identityKey contextKey = "identity"

// identityFrom extracts the verified identity set by requireAdmin.
func identityFrom(ctx context.Context) (auth.Identity, bool) {
	ident, ok := ctx.Value(identityKey).(auth.Identity)
	return ident, ok
}

// requireAdmin verifies the bearer token and rejects non-admin accounts.
func requireAdmin(tokens *auth.TokenIssuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				writeError(w, http.StatusUnauthorized, "Missing bearer token", nil)
				return
			}

			ident, err := tokens.Verify(token)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "Invalid or expired token", nil)
				return
			}
			if !ident.Admin {
				writeError(w, http.StatusForbidden, "Only admins allowed", nil)
				return
			}

			ctx := context.WithValue(r.Context(), identityKey, ident)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
