package handlers

import (
	"io"
	"log/slog"
	"net/http"

	"proposalmate/internal/apperr"
	"proposalmate/internal/billing"
	"proposalmate/internal/response"
)

const maxWebhookBytes = 65536

type BillingHandler struct {
	billing *billing.Service
	log     *slog.Logger
}

func NewBillingHandler(svc *billing.Service, log *slog.Logger) *BillingHandler {
	return &BillingHandler{billing: svc, log: log}
}

type CheckoutResponse struct {
	Success   bool   `json:"success"`
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
}

type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// --- GET /stripe/checkout-session ---

func (h *BillingHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		response.Error(w, r, h.log, err)
		return
	}
	sess, err := h.billing.Checkout(r.Context(), user)
	if err != nil {
		response.Error(w, r, h.log, err)
		return
	}
	response.JSON(w, r, http.StatusOK, CheckoutResponse{Success: true, SessionID: sess.ID, URL: sess.URL})
}

// --- GET /stripe/subscription ---

func (h *BillingHandler) Subscription(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		response.Error(w, r, h.log, err)
		return
	}
	summary, err := h.billing.Subscription(r.Context(), user)
	if err != nil {
		response.Error(w, r, h.log, err)
		return
	}
	response.OK(w, r, http.StatusOK, summary)
}

// --- DELETE /stripe/subscription ---

func (h *BillingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		response.Error(w, r, h.log, err)
		return
	}
	if err := h.billing.Cancel(r.Context(), user); err != nil {
		response.Error(w, r, h.log, err)
		return
	}
	response.JSON(w, r, http.StatusOK, MessageResponse{
		Success: true,
		Message: "Subscription will be canceled at the end of the billing period",
	})
}

// --- POST /stripe/subscription/resume ---

func (h *BillingHandler) Resume(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		response.Error(w, r, h.log, err)
		return
	}
	if err := h.billing.Resume(r.Context(), user); err != nil {
		response.Error(w, r, h.log, err)
		return
	}
	response.JSON(w, r, http.StatusOK, MessageResponse{Success: true, Message: "Subscription resumed"})
}

// --- POST /stripe/update-payment-method ---

func (h *BillingHandler) UpdatePaymentMethod(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		response.Error(w, r, h.log, err)
		return
	}
	secret, err := h.billing.UpdatePaymentMethod(r.Context(), user)
	if err != nil {
		response.Error(w, r, h.log, err)
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]any{"success": true, "clientSecret": secret})
}

// --- POST /stripe/webhook ---

// Webhook needs the raw body for signature verification, so it never goes
// through decodeJSON.
func (h *BillingHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		response.Error(w, r, h.log, apperr.Validation("Webhook Error: could not read body"))
		return
	}
	if err := h.billing.HandleWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature")); err != nil {
		response.Error(w, r, h.log, err)
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]bool{"received": true})
}
