package handlers

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"proposalmate/internal/apperr"
	"proposalmate/internal/export"
	"proposalmate/internal/lib/sl"
	"proposalmate/internal/mailer"
	"proposalmate/internal/models"
	"proposalmate/internal/proposal"
	"proposalmate/internal/response"
)

type ProposalHandler struct {
	proposals *proposal.Service
	exporter  *export.Exporter
	mail      mailer.Sender
	clientURL string
	log       *slog.Logger
}

func NewProposalHandler(proposals *proposal.Service, exporter *export.Exporter, mail mailer.Sender, clientURL string, log *slog.Logger) *ProposalHandler {
	return &ProposalHandler{
		proposals: proposals,
		exporter:  exporter,
		mail:      mail,
		clientURL: strings.TrimRight(clientURL, "/"),
		log:       log,
	}
}

// CreateProposalRequest carries the client-settable parts of a proposal.
// Identifier, owner and timestamps are assigned server-side, so any such
// keys in the body are ignored rather than decoded.
type CreateProposalRequest struct {
	Title          string                `json:"title"`
	Client         models.Client         `json:"client"`
	ProjectDetails models.ProjectDetails `json:"projectDetails"`
	Pricing        models.Pricing        `json:"pricing"`
	Template       string                `json:"template"`
	Status         models.ProposalStatus `json:"status"`
}

func (req CreateProposalRequest) proposal() models.Proposal {
	return models.Proposal{
		Title:          req.Title,
		Client:         req.Client,
		ProjectDetails: req.ProjectDetails,
		Pricing:        req.Pricing,
		Template:       req.Template,
		Status:         req.Status,
	}
}

type ShareEmailRequest struct {
	RecipientEmail string `json:"recipientEmail" validate:"required,email"`
	Subject        string `json:"subject"`
	Message        string `json:"message"`
}

// --- POST /proposals ---

func (h *ProposalHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		response.Error(w, r, h.log, err)
		return
	}
	var req CreateProposalRequest
	if err := decodeJSON(w, r, &req); err != nil {
		response.Error(w, r, h.log, err)
		return
	}
	p, err := h.proposals.Create(r.Context(), user.ID, req.proposal())
	if err != nil {
		response.Error(w, r, h.log, err)
		return
	}
	response.OK(w, r, http.StatusCreated, p)
}

// --- GET /proposals ---

func (h *ProposalHandler) List(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		response.Error(w, r, h.log, err)
		return
	}
	items, err := h.proposals.List(r.Context(), user.ID)
	if err != nil {
		response.Error(w, r, h.log, err)
		return
	}
	response.List(w, r, items)
}

// --- GET /proposals/{id} ---

func (h *ProposalHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		response.Error(w, r, h.log, err)
		return
	}
	p, err := h.proposals.Get(r.Context(), callerOf(user), chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, r, h.log, err)
		return
	}
	response.OK(w, r, http.StatusOK, p)
}

// --- PUT /proposals/{id} ---

func (h *ProposalHandler) Update(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		response.Error(w, r, h.log, err)
		return
	}
	var patch models.ProposalPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		response.Error(w, r, h.log, err)
		return
	}
	p, err := h.proposals.Update(r.Context(), callerOf(user), chi.URLParam(r, "id"), patch)
	if err != nil {
		response.Error(w, r, h.log, err)
		return
	}
	response.OK(w, r, http.StatusOK, p)
}

// --- DELETE /proposals/{id} ---

func (h *ProposalHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		response.Error(w, r, h.log, err)
		return
	}
	if err := h.proposals.Delete(r.Context(), callerOf(user), chi.URLParam(r, "id")); err != nil {
		response.Error(w, r, h.log, err)
		return
	}
	response.Empty(w, r)
}

// --- GET /proposals/{id}/pdf ---

func (h *ProposalHandler) PDF(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, export.FormatPDF, h.exporter.PDF)
}

// --- GET /proposals/{id}/docx ---

func (h *ProposalHandler) DOCX(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, export.FormatDOCX, h.exporter.DOCX)
}

// export renders into memory before writing any header.
func (h *ProposalHandler) export(w http.ResponseWriter, r *http.Request, format export.Format, render func(io.Writer, *models.Proposal) error) {
	user, err := currentUser(r)
	if err != nil {
		response.Error(w, r, h.log, err)
		return
	}
	p, err := h.proposals.Get(r.Context(), callerOf(user), chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, r, h.log, err)
		return
	}

	var buf bytes.Buffer
	if err := render(&buf, p); err != nil {
		response.Error(w, r, h.log, apperr.Wrap(apperr.KindInternal,
			fmt.Errorf("handlers.export %s: %w", format, err), "Could not generate document"))
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", export.FileName(p, format)))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		h.log.Warn("export write interrupted", slog.String("id", p.ID.Hex()), sl.Err(err))
	}
}

// --- POST /proposals/{id}/share/email ---

func (h *ProposalHandler) ShareEmail(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.ShareEmail"

	user, err := currentUser(r)
	if err != nil {
		response.Error(w, r, h.log, err)
		return
	}
	var req ShareEmailRequest
	if err := decodeJSON(w, r, &req); err != nil {
		response.Error(w, r, h.log, err)
		return
	}
	req.RecipientEmail = strings.TrimSpace(req.RecipientEmail)
	if err := checkRequest(req); err != nil {
		response.Error(w, r, h.log, err)
		return
	}

	p, err := h.proposals.Share(r.Context(), callerOf(user), chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, r, h.log, err)
		return
	}

	link := h.clientURL + "/shared/" + p.ShareToken
	msg := mailer.ShareProposal(req.RecipientEmail, user.Email, req.Subject, req.Message, user.Name, p.Title, link)
	if err := h.mail.Send(r.Context(), msg); err != nil {
		response.Error(w, r, h.log, apperr.Wrap(apperr.KindInternal, fmt.Errorf("%s: %w", op, err), "Email could not be sent"))
		return
	}

	h.log.Info("proposal shared", slog.String("id", p.ID.Hex()), slog.String("op", op))
	response.OK(w, r, http.StatusOK, map[string]any{
		"message":  "Proposal sent to " + req.RecipientEmail,
		"shareUrl": link,
		"proposal": p,
	})
}
