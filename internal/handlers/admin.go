package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"proposalmate/internal/apperr"
	"proposalmate/internal/models"
	"proposalmate/internal/response"
)

type UserLister interface {
	List(ctx context.Context) ([]models.User, error)
}

type AdminHandler struct {
	users UserLister
	log   *slog.Logger
}

func NewAdminHandler(users UserLister, log *slog.Logger) *AdminHandler {
	return &AdminHandler{users: users, log: log}
}

// --- GET /admin/users ---

func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		response.Error(w, r, h.log, apperr.Internal(fmt.Errorf("handlers.ListUsers: %w", err)))
		return
	}
	response.List(w, r, users)
}
