package billing

import (
	"time"

	"proposalmate/internal/models"
)

// Webhook event types that affect a user's subscription state.
const (
	EventCheckoutCompleted       = "checkout.session.completed"
	EventSubscriptionCreated     = "customer.subscription.created"
	EventSubscriptionUpdated     = "customer.subscription.updated"
	EventSubscriptionDeleted     = "customer.subscription.deleted"
	EventInvoicePaymentSucceeded = "invoice.payment_succeeded"
	EventInvoicePaymentFailed    = "invoice.payment_failed"
)

// Event is a provider webhook reduced to the fields billing state depends on.
type Event struct {
	ID   string
	Type string

	// Mode is the checkout session mode; only "subscription" sessions count.
	Mode string
	// UserID is the user id stamped into checkout metadata.
	UserID         string
	CustomerID     string
	SubscriptionID string
	// Status is the raw provider subscription status.
	Status   string
	TrialEnd *time.Time
}

// Handled reports whether Reduce can act on events of this type.
func (e Event) Handled() bool {
	switch e.Type {
	case EventCheckoutCompleted, EventSubscriptionCreated, EventSubscriptionUpdated,
		EventSubscriptionDeleted, EventInvoicePaymentSucceeded, EventInvoicePaymentFailed:
		return true
	}
	return false
}

// NormalizeStatus folds a provider subscription status into the statuses a
// user record can hold.
func NormalizeStatus(status string) models.SubscriptionStatus {
	switch status {
	case "trialing":
		return models.SubscriptionTrialing
	case "active":
		return models.SubscriptionActive
	case "past_due", "unpaid", "paused":
		return models.SubscriptionPastDue
	case "canceled", "incomplete_expired":
		return models.SubscriptionCanceled
	default:
		return models.SubscriptionNone
	}
}

// Reduce applies ev to state and reports whether anything changed. It is
// pure: applying the same event twice leaves the second call unchanged.
func Reduce(ev Event, state models.Billing) (models.Billing, bool) {
	next := state

	switch ev.Type {
	case EventCheckoutCompleted:
		if ev.Mode != "subscription" {
			return state, false
		}
		if ev.SubscriptionID != "" {
			next.SubscriptionID = ev.SubscriptionID
		}
		if ev.CustomerID != "" && next.StripeCustomerID == "" {
			next.StripeCustomerID = ev.CustomerID
		}
		// The subscription events that follow carry the authoritative status.
		if next.SubscriptionStatus == models.SubscriptionNone || next.SubscriptionStatus == "" ||
			next.SubscriptionStatus == models.SubscriptionCanceled {
			next.SubscriptionStatus = models.SubscriptionTrialing
		}

	case EventSubscriptionCreated:
		next.SubscriptionID = ev.SubscriptionID
		next.SubscriptionStatus = NormalizeStatus(ev.Status)
		next.TrialEndDate = ev.TrialEnd

	case EventSubscriptionUpdated:
		next.SubscriptionStatus = NormalizeStatus(ev.Status)
		if ev.TrialEnd != nil {
			next.TrialEndDate = ev.TrialEnd
		}

	case EventSubscriptionDeleted:
		next.SubscriptionStatus = models.SubscriptionCanceled

	case EventInvoicePaymentSucceeded, EventInvoicePaymentFailed:
		if ev.Status == "" {
			return state, false
		}
		next.SubscriptionStatus = NormalizeStatus(ev.Status)

	default:
		return state, false
	}

	return next, !sameBilling(state, next)
}

func sameBilling(a, b models.Billing) bool {
	if a.SubscriptionID != b.SubscriptionID || a.SubscriptionStatus != b.SubscriptionStatus ||
		a.StripeCustomerID != b.StripeCustomerID {
		return false
	}
	switch {
	case a.TrialEndDate == nil && b.TrialEndDate == nil:
		return true
	case a.TrialEndDate == nil || b.TrialEndDate == nil:
		return false
	}
	return a.TrialEndDate.Equal(*b.TrialEndDate)
}
