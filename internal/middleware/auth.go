// Package middleware holds the HTTP middleware shared by the API routes:
// authentication, role and subscription gates, rate limiting and metrics.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	chimw "github.com/go-chi/chi/v5/middleware"
	"go.mongodb.org/mongo-driver/v2/bson"

	"proposalmate/internal/apperr"
	"proposalmate/internal/auth"
	"proposalmate/internal/lib/sl"
	"proposalmate/internal/models"
	"proposalmate/internal/response"
)

// TokenParser verifies bearer tokens.
type TokenParser interface {
	Parse(tokenStr string) (*auth.Claims, error)
}

// UserFinder loads the user a token was issued to. It returns nil, nil for
// unknown ids.
type UserFinder interface {
	FindByID(ctx context.Context, id bson.ObjectID) (*models.User, error)
}

type ctxKey string

const userKey ctxKey = "user"

// TokenCookie is the cookie consulted when no Authorization header is sent.
const TokenCookie = "token"

// WithUser returns a copy of ctx carrying u.
func WithUser(ctx context.Context, u *models.User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

// UserFromContext returns the authenticated user, if any.
func UserFromContext(ctx context.Context) (*models.User, bool) {
	u, ok := ctx.Value(userKey).(*models.User)
	return u, ok && u != nil
}

func notAuthorized() error {
	return apperr.New(apperr.KindUnauthenticated, "Not authorized to access this route")
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	if c, err := r.Cookie(TokenCookie); err == nil {
		return c.Value
	}
	return ""
}

// Authenticate resolves the bearer token to a user and stores it in the
// request context. Requests without a valid token for an existing user get
// 401.
func Authenticate(tokens TokenParser, users UserFinder, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middleware.Authenticate"
			log := log.With(
				slog.String("op", op),
				slog.String("request_id", chimw.GetReqID(r.Context())),
			)

			tokenStr := bearerToken(r)
			if tokenStr == "" {
				response.Error(w, r, log, notAuthorized())
				return
			}
			claims, err := tokens.Parse(tokenStr)
			if err != nil {
				log.Debug("rejected token", sl.Err(err))
				response.Error(w, r, log, notAuthorized())
				return
			}
			id, err := bson.ObjectIDFromHex(claims.UserID)
			if err != nil {
				response.Error(w, r, log, notAuthorized())
				return
			}
			user, err := users.FindByID(r.Context(), id)
			if err != nil {
				response.Error(w, r, log, apperr.Internal(err))
				return
			}
			if user == nil {
				response.Error(w, r, log, notAuthorized())
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// Authorize admits only users whose role is in roles. It must run after
// Authenticate.
func Authorize(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := UserFromContext(r.Context())
			if !ok {
				response.Error(w, r, nil, notAuthorized())
				return
			}
			if !slices.Contains(roles, user.Role) {
				response.Error(w, r, nil, apperr.New(apperr.KindForbidden,
					"User role %s is not authorized to access this route", user.Role))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireActiveSubscription admits admins and users whose subscription is
// active or trialing. It must run after Authenticate.
func RequireActiveSubscription(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFromContext(r.Context())
		if !ok {
			response.Error(w, r, nil, notAuthorized())
			return
		}
		if !user.HasActiveSubscription() {
			response.Error(w, r, nil, apperr.New(apperr.KindForbidden,
				"You need an active subscription to access this resource"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
