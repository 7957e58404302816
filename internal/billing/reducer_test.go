package billing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"proposalmate/internal/models"
)

func TestNormalizeStatus(t *testing.T) {
	tests := map[string]models.SubscriptionStatus{
		"trialing":           models.SubscriptionTrialing,
		"active":             models.SubscriptionActive,
		"past_due":           models.SubscriptionPastDue,
		"unpaid":             models.SubscriptionPastDue,
		"paused":             models.SubscriptionPastDue,
		"canceled":           models.SubscriptionCanceled,
		"incomplete_expired": models.SubscriptionCanceled,
		"incomplete":         models.SubscriptionNone,
		"":                   models.SubscriptionNone,
		"something_new":      models.SubscriptionNone,
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeStatus(in), in)
	}
}

func TestReduce(t *testing.T) {
	trialEnd := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	fresh := models.Billing{SubscriptionStatus: models.SubscriptionNone, StripeCustomerID: "cus_1"}

	tests := []struct {
		name        string
		state       models.Billing
		event       Event
		want        models.Billing
		wantChanged bool
	}{
		{
			name:  "checkout completed starts a trial",
			state: fresh,
			event: Event{Type: EventCheckoutCompleted, Mode: "subscription", SubscriptionID: "sub_1", CustomerID: "cus_1"},
			want: models.Billing{
				SubscriptionID: "sub_1", SubscriptionStatus: models.SubscriptionTrialing, StripeCustomerID: "cus_1",
			},
			wantChanged: true,
		},
		{
			name:  "payment mode checkout is ignored",
			state: fresh,
			event: Event{Type: EventCheckoutCompleted, Mode: "payment", SubscriptionID: "sub_1"},
			want:  fresh,
		},
		{
			name: "late checkout event does not downgrade an active subscription",
			state: models.Billing{
				SubscriptionID: "sub_1", SubscriptionStatus: models.SubscriptionActive, StripeCustomerID: "cus_1",
			},
			event: Event{Type: EventCheckoutCompleted, Mode: "subscription", SubscriptionID: "sub_1", CustomerID: "cus_1"},
			want: models.Billing{
				SubscriptionID: "sub_1", SubscriptionStatus: models.SubscriptionActive, StripeCustomerID: "cus_1",
			},
		},
		{
			name:  "subscription created records id status and trial end",
			state: fresh,
			event: Event{Type: EventSubscriptionCreated, SubscriptionID: "sub_2", Status: "trialing", TrialEnd: &trialEnd},
			want: models.Billing{
				SubscriptionID: "sub_2", SubscriptionStatus: models.SubscriptionTrialing, TrialEndDate: &trialEnd,
				StripeCustomerID: "cus_1",
			},
			wantChanged: true,
		},
		{
			name:        "subscription updated to unpaid",
			state:       models.Billing{SubscriptionID: "sub_2", SubscriptionStatus: models.SubscriptionActive},
			event:       Event{Type: EventSubscriptionUpdated, SubscriptionID: "sub_2", Status: "unpaid"},
			want:        models.Billing{SubscriptionID: "sub_2", SubscriptionStatus: models.SubscriptionPastDue},
			wantChanged: true,
		},
		{
			name:        "subscription deleted",
			state:       models.Billing{SubscriptionID: "sub_2", SubscriptionStatus: models.SubscriptionActive},
			event:       Event{Type: EventSubscriptionDeleted, SubscriptionID: "sub_2", Status: "canceled"},
			want:        models.Billing{SubscriptionID: "sub_2", SubscriptionStatus: models.SubscriptionCanceled},
			wantChanged: true,
		},
		{
			name:        "invoice failure marks past due",
			state:       models.Billing{SubscriptionID: "sub_2", SubscriptionStatus: models.SubscriptionActive},
			event:       Event{Type: EventInvoicePaymentFailed, SubscriptionID: "sub_2", Status: "past_due"},
			want:        models.Billing{SubscriptionID: "sub_2", SubscriptionStatus: models.SubscriptionPastDue},
			wantChanged: true,
		},
		{
			name:  "invoice without subscription status is ignored",
			state: fresh,
			event: Event{Type: EventInvoicePaymentSucceeded},
			want:  fresh,
		},
		{
			name:  "unknown type",
			state: fresh,
			event: Event{Type: "customer.created"},
			want:  fresh,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, changed := Reduce(tt.event, tt.state)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantChanged, changed)

			again, changedAgain := Reduce(tt.event, got)
			assert.Equal(t, got, again, "reducing twice is idempotent")
			assert.False(t, changedAgain)
		})
	}
}

func TestReduceDoesNotMutateInput(t *testing.T) {
	trialEnd := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	state := models.Billing{SubscriptionStatus: models.SubscriptionNone}
	_, _ = Reduce(Event{Type: EventSubscriptionCreated, SubscriptionID: "sub_1", Status: "active", TrialEnd: &trialEnd}, state)
	assert.Equal(t, models.Billing{SubscriptionStatus: models.SubscriptionNone}, state)
}
