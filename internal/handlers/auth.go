package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"

	"proposalmate/internal/apperr"
	"proposalmate/internal/auth"
	"proposalmate/internal/lib/sl"
	"proposalmate/internal/mailer"
	"proposalmate/internal/middleware"
	"proposalmate/internal/models"
	"proposalmate/internal/repository"
	"proposalmate/internal/response"
)

const (
	resetTokenTTL      = 15 * time.Minute
	resetWindow        = 10 * time.Minute
	maxResetsPerWindow = 5
)

type UserStore interface {
	FindByID(ctx context.Context, id bson.ObjectID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	UpdatePassword(ctx context.Context, id bson.ObjectID, passwordHash string) error
}

type ResetTokenStore interface {
	Create(ctx context.Context, token *models.PasswordResetToken) error
	FindByToken(ctx context.Context, token string) (*models.PasswordResetToken, error)
	MarkUsed(ctx context.Context, token string) (bool, error)
	CountRecentByEmail(ctx context.Context, email string, within time.Duration) (int64, error)
}

type TokenIssuer interface {
	Generate(userID, role string) (string, error)
}

type AuthConfig struct {
	ClientURL     string
	TokenTTL      time.Duration
	SecureCookies bool
}

type AuthHandler struct {
	users  UserStore
	resets ResetTokenStore
	tokens TokenIssuer
	mail   mailer.Sender
	cfg    AuthConfig
	log    *slog.Logger
}

func NewAuthHandler(users UserStore, resets ResetTokenStore, tokens TokenIssuer, mail mailer.Sender, cfg AuthConfig, log *slog.Logger) *AuthHandler {
	return &AuthHandler{
		users:  users,
		resets: resets,
		tokens: tokens,
		mail:   mail,
		cfg:    cfg,
		log:    log,
	}
}

// --- Request / Response types ---

type RegisterRequest struct {
	Name     string `json:"name" validate:"required,max=50"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type ResetPasswordRequest struct {
	Password string `json:"password" validate:"required,min=6"`
}

type TokenResponse struct {
	Success bool         `json:"success"`
	Token   string       `json:"token"`
	User    *models.User `json:"user"`
}

// --- POST /auth/register ---

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		response.Error(w, r, h.log, err)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := checkRequest(req); err != nil {
		response.Error(w, r, h.log, err)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		response.Error(w, r, h.log, apperr.Internal(err))
		return
	}
	user := &models.User{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         models.RoleUser,
		Billing:      models.Billing{SubscriptionStatus: models.SubscriptionNone},
	}
	if err := h.users.Create(r.Context(), user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			response.Error(w, r, h.log, apperr.New(apperr.KindConflict, "Duplicate field value entered"))
			return
		}
		response.Error(w, r, h.log, apperr.Internal(fmt.Errorf("handlers.Register: %w", err)))
		return
	}

	h.log.Info("user registered", slog.String("user", user.ID.Hex()))
	h.sendToken(w, r, http.StatusCreated, user)
}

// --- POST /auth/login ---

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		response.Error(w, r, h.log, err)
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		response.Error(w, r, h.log, apperr.Validation("Please provide an email and password"))
		return
	}

	invalid := apperr.New(apperr.KindUnauthenticated, "Invalid credentials")
	user, err := h.users.FindByEmail(r.Context(), req.Email)
	if err != nil {
		response.Error(w, r, h.log, apperr.Internal(fmt.Errorf("handlers.Login: %w", err)))
		return
	}
	if user == nil || auth.CheckPassword(user.PasswordHash, req.Password) != nil {
		response.Error(w, r, h.log, invalid)
		return
	}
	h.sendToken(w, r, http.StatusOK, user)
}

// --- GET /auth/me ---

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		response.Error(w, r, h.log, err)
		return
	}
	response.OK(w, r, http.StatusOK, user)
}

// --- POST /auth/forgotpassword ---

// ForgotPassword mails a single-use reset link. The answer is the same
// whether or not the email belongs to a user.
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.ForgotPassword"
	log := h.log.With(slog.String("op", op))

	var req ForgotPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		response.Error(w, r, log, err)
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := checkRequest(req); err != nil {
		response.Error(w, r, log, err)
		return
	}

	// Max 5 requests per email in 10 minutes
	count, err := h.resets.CountRecentByEmail(r.Context(), req.Email, resetWindow)
	if err != nil {
		response.Error(w, r, log, apperr.Internal(fmt.Errorf("%s: %w", op, err)))
		return
	}
	if count >= maxResetsPerWindow {
		response.Error(w, r, log, apperr.New(apperr.KindRateLimited, "Too many reset requests, please try again later"))
		return
	}

	sent := map[string]string{"message": "If that email is registered, a reset link has been sent"}

	user, err := h.users.FindByEmail(r.Context(), req.Email)
	if err != nil {
		response.Error(w, r, log, apperr.Internal(fmt.Errorf("%s: %w", op, err)))
		return
	}
	if user == nil {
		response.OK(w, r, http.StatusOK, sent)
		return
	}

	token := &models.PasswordResetToken{
		Email:     user.Email,
		Token:     uuid.NewString(),
		ExpiresAt: time.Now().UTC().Add(resetTokenTTL),
	}
	if err := h.resets.Create(r.Context(), token); err != nil {
		response.Error(w, r, log, apperr.Internal(fmt.Errorf("%s: %w", op, err)))
		return
	}

	link := fmt.Sprintf("%s/reset-password/%s", strings.TrimRight(h.cfg.ClientURL, "/"), token.Token)
	if err := h.mail.Send(r.Context(), mailer.PasswordReset(user.Email, link)); err != nil {
		log.Error("failed to send reset email", sl.Err(err))
		response.Error(w, r, log, apperr.Wrap(apperr.KindInternal, err, "Email could not be sent"))
		return
	}
	response.OK(w, r, http.StatusOK, sent)
}

// --- PUT /auth/resetpassword/{token} ---

func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.ResetPassword"
	tokenValue := chi.URLParam(r, "token")

	var req ResetPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		response.Error(w, r, h.log, err)
		return
	}
	if err := checkRequest(req); err != nil {
		response.Error(w, r, h.log, err)
		return
	}

	invalid := apperr.Validation("Invalid token")
	token, err := h.resets.FindByToken(r.Context(), tokenValue)
	if err != nil {
		response.Error(w, r, h.log, apperr.Internal(fmt.Errorf("%s: %w", op, err)))
		return
	}
	if token == nil || token.IsUsed || token.IsExpired() {
		response.Error(w, r, h.log, invalid)
		return
	}

	user, err := h.users.FindByEmail(r.Context(), token.Email)
	if err != nil {
		response.Error(w, r, h.log, apperr.Internal(fmt.Errorf("%s: %w", op, err)))
		return
	}
	if user == nil {
		response.Error(w, r, h.log, invalid)
		return
	}

	// Single use: only the request that flips is_used may proceed.
	won, err := h.resets.MarkUsed(r.Context(), tokenValue)
	if err != nil {
		response.Error(w, r, h.log, apperr.Internal(fmt.Errorf("%s: %w", op, err)))
		return
	}
	if !won {
		response.Error(w, r, h.log, invalid)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		response.Error(w, r, h.log, apperr.Internal(err))
		return
	}
	if err := h.users.UpdatePassword(r.Context(), user.ID, hash); err != nil {
		response.Error(w, r, h.log, apperr.Internal(fmt.Errorf("%s: %w", op, err)))
		return
	}
	h.sendToken(w, r, http.StatusOK, user)
}

// sendToken issues a token for user and returns it both in the body and as
// an HTTP-only cookie.
func (h *AuthHandler) sendToken(w http.ResponseWriter, r *http.Request, status int, user *models.User) {
	token, err := h.tokens.Generate(user.ID.Hex(), user.Role)
	if err != nil {
		response.Error(w, r, h.log, apperr.Internal(fmt.Errorf("handlers.sendToken: %w", err)))
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.TokenCookie,
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(h.cfg.TokenTTL),
		HttpOnly: true,
		Secure:   h.cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	response.JSON(w, r, status, TokenResponse{Success: true, Token: token, User: user})
}
