// Package server assembles the HTTP router: global middleware, the /api/v1
// route table and the operational endpoints.
package server

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"

	"proposalmate/internal/apperr"
	"proposalmate/internal/handlers"
	"proposalmate/internal/middleware"
	"proposalmate/internal/models"
	"proposalmate/internal/response"
)

// Deps is everything the router wires together.
type Deps struct {
	Log            *slog.Logger
	Tokens         middleware.TokenParser
	Users          middleware.UserFinder
	AllowedOrigins []string
	AuthLimiter    *middleware.RateLimiter
	Metrics        *middleware.Metrics

	Auth      *handlers.AuthHandler
	Proposals *handlers.ProposalHandler
	Shared    *handlers.SharedHandler
	Billing   *handlers.BillingHandler
	Admin     *handlers.AdminHandler
}

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Stripe-Signature"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	if d.Metrics != nil {
		r.Use(d.Metrics.Middleware)
		r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, map[string]string{
			"status":  "ok",
			"service": "proposalmate",
			"time":    time.Now().UTC().Format(time.RFC3339),
		})
	})

	authenticate := middleware.Authenticate(d.Tokens, d.Users, d.Log)
	limited := func(next http.Handler) http.Handler { return next }
	if d.AuthLimiter != nil {
		limited = d.AuthLimiter.Middleware(d.Log)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(limited)
				r.Post("/register", d.Auth.Register)
				r.Post("/login", d.Auth.Login)
				r.Post("/forgotpassword", d.Auth.ForgotPassword)
				r.Put("/resetpassword/{token}", d.Auth.ResetPassword)
			})
			r.With(authenticate).Get("/me", d.Auth.Me)
		})

		r.Route("/proposals", func(r chi.Router) {
			r.Use(authenticate)
			r.Get("/", d.Proposals.List)
			r.Get("/{id}", d.Proposals.Get)

			// Writing and exporting need a live subscription.
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireActiveSubscription)
				r.Post("/", d.Proposals.Create)
				r.Put("/{id}", d.Proposals.Update)
				r.Delete("/{id}", d.Proposals.Delete)
				r.Get("/{id}/pdf", d.Proposals.PDF)
				r.Get("/{id}/docx", d.Proposals.DOCX)
				r.Post("/{id}/share/email", d.Proposals.ShareEmail)
			})
		})

		r.Route("/shared/{token}", func(r chi.Router) {
			r.Use(limited)
			r.Get("/", d.Shared.View)
			r.Post("/accept", d.Shared.Accept)
		})

		r.Route("/stripe", func(r chi.Router) {
			r.Post("/webhook", d.Billing.Webhook)
			r.Group(func(r chi.Router) {
				r.Use(authenticate)
				r.Get("/checkout-session", d.Billing.Checkout)
				r.Get("/subscription", d.Billing.Subscription)
				r.Delete("/subscription", d.Billing.Cancel)
				r.Post("/subscription/resume", d.Billing.Resume)
				r.Post("/update-payment-method", d.Billing.UpdatePaymentMethod)
			})
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(authenticate, middleware.Authorize(models.RoleAdmin))
			r.Get("/users", d.Admin.ListUsers)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			response.Error(w, r, nil, apperr.NotFound("API route not found"))
			return
		}
		http.NotFound(w, r)
	})

	return r
}
