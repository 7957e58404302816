package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"proposalmate/internal/lib/sl"
	"proposalmate/internal/mailer"
	"proposalmate/internal/middleware"
	"proposalmate/internal/models"
	"proposalmate/internal/proposal"
	"proposalmate/internal/response"
)

const notifyTimeout = 30 * time.Second

// SharedHandler serves the public, token-addressed view of a proposal that
// clients open from a share email.
type SharedHandler struct {
	proposals *proposal.Service
	owners    middleware.UserFinder
	mail      mailer.Sender
	log       *slog.Logger

	notifications sync.WaitGroup
}

func NewSharedHandler(proposals *proposal.Service, owners middleware.UserFinder, mail mailer.Sender, log *slog.Logger) *SharedHandler {
	return &SharedHandler{proposals: proposals, owners: owners, mail: mail, log: log}
}

type AcceptRequest struct {
	ClientName  string `json:"clientName"`
	ClientEmail string `json:"clientEmail"`
	Signature   string `json:"signature"`
}

type AcceptResponse struct {
	Proposal   *models.Proposal   `json:"proposal"`
	Acceptance *models.Acceptance `json:"acceptance"`
}

// --- GET /shared/{token} ---

func (h *SharedHandler) View(w http.ResponseWriter, r *http.Request) {
	p, err := h.proposals.ViewShared(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		response.Error(w, r, h.log, err)
		return
	}
	response.OK(w, r, http.StatusOK, p)
}

// --- POST /shared/{token}/accept ---

func (h *SharedHandler) Accept(w http.ResponseWriter, r *http.Request) {
	var req AcceptRequest
	if err := decodeJSON(w, r, &req); err != nil {
		response.Error(w, r, h.log, err)
		return
	}

	p, acc, created, err := h.proposals.AcceptShared(r.Context(), chi.URLParam(r, "token"), models.Acceptance{
		ClientName:  req.ClientName,
		ClientEmail: req.ClientEmail,
		Signature:   req.Signature,
	})
	if err != nil {
		response.Error(w, r, h.log, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
		h.notifyOwner(r.Context(), *p, *acc)
	}
	response.OK(w, r, status, AcceptResponse{Proposal: p, Acceptance: acc})
}

// notifyOwner mails the proposal owner without holding up the client's
// response. Failures are logged only.
func (h *SharedHandler) notifyOwner(ctx context.Context, p models.Proposal, acc models.Acceptance) {
	ctx = context.WithoutCancel(ctx)
	h.notifications.Add(1)
	go func() {
		defer h.notifications.Done()
		ctx, cancel := context.WithTimeout(ctx, notifyTimeout)
		defer cancel()

		log := h.log.With(slog.String("op", "handlers.notifyOwner"), slog.String("proposal", p.ID.Hex()))
		owner, err := h.owners.FindByID(ctx, p.User)
		if err != nil {
			log.Error("failed to load proposal owner", sl.Err(err))
			return
		}
		if owner == nil {
			log.Warn("proposal owner no longer exists")
			return
		}
		msg := mailer.ProposalAccepted(owner.Email, p.Title, acc.ClientName, acc.ClientEmail)
		if err := h.mail.Send(ctx, msg); err != nil {
			log.Error("failed to send acceptance email", sl.Err(err))
		}
	}()
}

// Wait blocks until every pending owner notification has finished.
func (h *SharedHandler) Wait() {
	h.notifications.Wait()
}
