package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	stripe "github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
	"github.com/stripe/stripe-go/v78/webhook"
)

// Subscription is the provider's view of a subscription.
type Subscription struct {
	ID                string
	CustomerID        string
	Status            string
	CurrentPeriodEnd  time.Time
	CancelAtPeriodEnd bool
	TrialEnd          *time.Time
}

type CheckoutParams struct {
	CustomerID string
	PriceID    string
	UserID     string
	TrialDays  int64
	SuccessURL string
	CancelURL  string
}

type CheckoutSession struct {
	ID  string `json:"sessionId"`
	URL string `json:"url"`
}

// Provider is the billing backend. StripeProvider is the production
// implementation.
type Provider interface {
	CreateCustomer(ctx context.Context, email, name string) (string, error)
	CreateCheckoutSession(ctx context.Context, p CheckoutParams) (*CheckoutSession, error)
	GetSubscription(ctx context.Context, id string) (*Subscription, error)
	SetCancelAtPeriodEnd(ctx context.Context, id string, cancel bool) (*Subscription, error)
	CreateSetupIntent(ctx context.Context, customerID string) (string, error)
	// ParseWebhook verifies signature against payload before decoding it.
	ParseWebhook(payload []byte, signature string) (Event, error)
}

type StripeProvider struct {
	sc            *client.API
	webhookSecret string
}

func NewStripeProvider(secretKey, webhookSecret string) *StripeProvider {
	sc := &client.API{}
	sc.Init(secretKey, nil)
	return &StripeProvider{sc: sc, webhookSecret: webhookSecret}
}

func (p *StripeProvider) CreateCustomer(ctx context.Context, email, name string) (string, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
		Name:  stripe.String(name),
	}
	params.Context = ctx
	c, err := p.sc.Customers.New(params)
	if err != nil {
		return "", fmt.Errorf("billing.CreateCustomer: %w", err)
	}
	return c.ID, nil
}

func (p *StripeProvider) CreateCheckoutSession(ctx context.Context, cp CheckoutParams) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Customer:           stripe.String(cp.CustomerID),
		Mode:               stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Price:    stripe.String(cp.PriceID),
			Quantity: stripe.Int64(1),
		}},
		SuccessURL: stripe.String(cp.SuccessURL),
		CancelURL:  stripe.String(cp.CancelURL),
		Metadata: map[string]string{
			"userId": cp.UserID,
		},
	}
	if cp.TrialDays > 0 {
		params.SubscriptionData = &stripe.CheckoutSessionSubscriptionDataParams{
			TrialPeriodDays: stripe.Int64(cp.TrialDays),
		}
	}
	params.Context = ctx
	sess, err := p.sc.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("billing.CreateCheckoutSession: %w", err)
	}
	return &CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}

func (p *StripeProvider) GetSubscription(ctx context.Context, id string) (*Subscription, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	sub, err := p.sc.Subscriptions.Get(id, params)
	if err != nil {
		return nil, fmt.Errorf("billing.GetSubscription: %w", err)
	}
	return fromStripeSubscription(sub), nil
}

func (p *StripeProvider) SetCancelAtPeriodEnd(ctx context.Context, id string, cancel bool) (*Subscription, error) {
	params := &stripe.SubscriptionParams{
		CancelAtPeriodEnd: stripe.Bool(cancel),
	}
	params.Context = ctx
	sub, err := p.sc.Subscriptions.Update(id, params)
	if err != nil {
		return nil, fmt.Errorf("billing.SetCancelAtPeriodEnd: %w", err)
	}
	return fromStripeSubscription(sub), nil
}

func (p *StripeProvider) CreateSetupIntent(ctx context.Context, customerID string) (string, error) {
	params := &stripe.SetupIntentParams{
		Customer:           stripe.String(customerID),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
	}
	params.Context = ctx
	si, err := p.sc.SetupIntents.New(params)
	if err != nil {
		return "", fmt.Errorf("billing.CreateSetupIntent: %w", err)
	}
	return si.ClientSecret, nil
}

func (p *StripeProvider) ParseWebhook(payload []byte, signature string) (Event, error) {
	raw, err := webhook.ConstructEventWithOptions(payload, signature, p.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return Event{}, fmt.Errorf("billing.ParseWebhook: %w", err)
	}

	ev := Event{ID: raw.ID, Type: string(raw.Type)}
	if raw.Data == nil {
		return ev, nil
	}

	switch ev.Type {
	case EventCheckoutCompleted:
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(raw.Data.Raw, &sess); err != nil {
			return Event{}, fmt.Errorf("billing.ParseWebhook: checkout session: %w", err)
		}
		ev.Mode = string(sess.Mode)
		ev.UserID = sess.Metadata["userId"]
		if sess.Customer != nil {
			ev.CustomerID = sess.Customer.ID
		}
		if sess.Subscription != nil {
			ev.SubscriptionID = sess.Subscription.ID
		}

	case EventSubscriptionCreated, EventSubscriptionUpdated, EventSubscriptionDeleted:
		var sub stripe.Subscription
		if err := json.Unmarshal(raw.Data.Raw, &sub); err != nil {
			return Event{}, fmt.Errorf("billing.ParseWebhook: subscription: %w", err)
		}
		s := fromStripeSubscription(&sub)
		ev.SubscriptionID = s.ID
		ev.CustomerID = s.CustomerID
		ev.Status = s.Status
		ev.TrialEnd = s.TrialEnd

	case EventInvoicePaymentSucceeded, EventInvoicePaymentFailed:
		var inv stripe.Invoice
		if err := json.Unmarshal(raw.Data.Raw, &inv); err != nil {
			return Event{}, fmt.Errorf("billing.ParseWebhook: invoice: %w", err)
		}
		if inv.Customer != nil {
			ev.CustomerID = inv.Customer.ID
		}
		if inv.Subscription != nil {
			ev.SubscriptionID = inv.Subscription.ID
		}
	}
	return ev, nil
}

func fromStripeSubscription(sub *stripe.Subscription) *Subscription {
	out := &Subscription{
		ID:                sub.ID,
		Status:            string(sub.Status),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
	}
	if sub.Customer != nil {
		out.CustomerID = sub.Customer.ID
	}
	if sub.CurrentPeriodEnd > 0 {
		out.CurrentPeriodEnd = time.Unix(sub.CurrentPeriodEnd, 0).UTC()
	}
	if sub.TrialEnd > 0 {
		t := time.Unix(sub.TrialEnd, 0).UTC()
		out.TrialEnd = &t
	}
	return out
}
