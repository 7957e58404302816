// Package billing manages subscriptions: checkout, cancellation, payment
// method updates and the webhook that keeps user records in sync with the
// provider.
package billing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"proposalmate/internal/apperr"
	"proposalmate/internal/lib/sl"
	"proposalmate/internal/models"
)

// UserStore is the slice of user persistence billing needs. Lookups return
// nil, nil when nothing matches.
type UserStore interface {
	FindByID(ctx context.Context, id bson.ObjectID) (*models.User, error)
	FindByCustomerID(ctx context.Context, customerID string) (*models.User, error)
	UpdateBilling(ctx context.Context, id bson.ObjectID, billing models.Billing) error
}

type Options struct {
	PriceID   string
	TrialDays int64
	ClientURL string
}

type Service struct {
	provider Provider
	users    UserStore
	opts     Options
	log      *slog.Logger
}

// NewService returns a billing service. A nil provider disables billing and
// every call answers Unavailable.
func NewService(provider Provider, users UserStore, opts Options, log *slog.Logger) *Service {
	return &Service{provider: provider, users: users, opts: opts, log: log}
}

// SubscriptionSummary is what the account page shows.
type SubscriptionSummary struct {
	Status            string     `json:"status"`
	TrialEndDate      *time.Time `json:"trialEndDate,omitempty"`
	CurrentPeriodEnd  *time.Time `json:"currentPeriodEnd,omitempty"`
	CancelAtPeriodEnd bool       `json:"cancelAtPeriodEnd"`
}

func (s *Service) enabled() error {
	if s.provider == nil {
		return apperr.New(apperr.KindUnavailable, "Billing is not configured")
	}
	return nil
}

func providerError(op string, err error) error {
	return apperr.Wrap(apperr.KindInternal, fmt.Errorf("%s: %w", op, err), "Billing provider error")
}

// Checkout starts a subscription checkout for user, creating the provider
// customer on first use.
func (s *Service) Checkout(ctx context.Context, user *models.User) (*CheckoutSession, error) {
	if err := s.enabled(); err != nil {
		return nil, err
	}

	billing := user.Billing
	if billing.StripeCustomerID == "" {
		customerID, err := s.provider.CreateCustomer(ctx, user.Email, user.Name)
		if err != nil {
			return nil, providerError("billing.Checkout", err)
		}
		billing.StripeCustomerID = customerID
		if err := s.users.UpdateBilling(ctx, user.ID, billing); err != nil {
			return nil, apperr.Internal(fmt.Errorf("billing.Checkout: %w", err))
		}
		user.Billing = billing
	}

	sess, err := s.provider.CreateCheckoutSession(ctx, CheckoutParams{
		CustomerID: billing.StripeCustomerID,
		PriceID:    s.opts.PriceID,
		UserID:     user.ID.Hex(),
		TrialDays:  s.opts.TrialDays,
		SuccessURL: s.opts.ClientURL + "/dashboard?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:  s.opts.ClientURL + "/pricing",
	})
	if err != nil {
		return nil, providerError("billing.Checkout", err)
	}
	return sess, nil
}

// Subscription reports the user's subscription. Users who never subscribed
// get their stored status without a provider round trip.
func (s *Service) Subscription(ctx context.Context, user *models.User) (*SubscriptionSummary, error) {
	if err := s.enabled(); err != nil {
		return nil, err
	}
	if user.SubscriptionID == "" {
		return &SubscriptionSummary{
			Status:       string(user.SubscriptionStatus),
			TrialEndDate: user.TrialEndDate,
		}, nil
	}

	sub, err := s.provider.GetSubscription(ctx, user.SubscriptionID)
	if err != nil {
		return nil, providerError("billing.Subscription", err)
	}
	summary := &SubscriptionSummary{
		Status:            sub.Status,
		TrialEndDate:      sub.TrialEnd,
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
	}
	if !sub.CurrentPeriodEnd.IsZero() {
		end := sub.CurrentPeriodEnd
		summary.CurrentPeriodEnd = &end
	}
	return summary, nil
}

// Cancel schedules cancellation at the end of the current period.
func (s *Service) Cancel(ctx context.Context, user *models.User) error {
	return s.setCancel(ctx, user, true)
}

// Resume undoes a scheduled cancellation.
func (s *Service) Resume(ctx context.Context, user *models.User) error {
	return s.setCancel(ctx, user, false)
}

func (s *Service) setCancel(ctx context.Context, user *models.User, cancel bool) error {
	if err := s.enabled(); err != nil {
		return err
	}
	if user.SubscriptionID == "" {
		return apperr.Validation("No active subscription found")
	}
	if _, err := s.provider.SetCancelAtPeriodEnd(ctx, user.SubscriptionID, cancel); err != nil {
		return providerError("billing.setCancel", err)
	}
	s.log.Info("subscription cancel flag changed",
		slog.String("user", user.ID.Hex()), slog.Bool("cancel_at_period_end", cancel))
	return nil
}

// UpdatePaymentMethod returns a setup intent client secret for collecting a
// new card.
func (s *Service) UpdatePaymentMethod(ctx context.Context, user *models.User) (string, error) {
	if err := s.enabled(); err != nil {
		return "", err
	}
	if user.StripeCustomerID == "" {
		return "", apperr.Validation("No Stripe customer found")
	}
	secret, err := s.provider.CreateSetupIntent(ctx, user.StripeCustomerID)
	if err != nil {
		return "", providerError("billing.UpdatePaymentMethod", err)
	}
	return secret, nil
}

// HandleWebhook verifies and applies a provider event. Nothing is read or
// written before the signature checks out. Events for unknown users are
// acknowledged and dropped.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	const op = "billing.HandleWebhook"
	log := s.log.With(slog.String("op", op))

	if err := s.enabled(); err != nil {
		return err
	}
	ev, err := s.provider.ParseWebhook(payload, signature)
	if err != nil {
		return apperr.Wrap(apperr.KindValidation, err, fmt.Sprintf("Webhook Error: %v", err))
	}
	if !ev.Handled() {
		log.Debug("unhandled event type", slog.String("type", ev.Type))
		return nil
	}

	if (ev.Type == EventInvoicePaymentSucceeded || ev.Type == EventInvoicePaymentFailed) && ev.SubscriptionID != "" {
		sub, err := s.provider.GetSubscription(ctx, ev.SubscriptionID)
		if err != nil {
			return providerError(op, err)
		}
		ev.Status = sub.Status
		if sub.CustomerID != "" {
			ev.CustomerID = sub.CustomerID
		}
	}

	user, err := s.userFor(ctx, ev)
	if err != nil {
		return apperr.Internal(fmt.Errorf("%s: %w", op, err))
	}
	if user == nil {
		log.Warn("no user for event", slog.String("type", ev.Type), slog.String("event", ev.ID))
		return nil
	}

	next, changed := Reduce(ev, user.Billing)
	if !changed {
		return nil
	}
	if err := s.users.UpdateBilling(ctx, user.ID, next); err != nil {
		log.Error("failed to persist billing state", sl.Err(err))
		return apperr.Internal(fmt.Errorf("%s: %w", op, err))
	}
	log.Info("billing state updated",
		slog.String("user", user.ID.Hex()),
		slog.String("type", ev.Type),
		slog.String("status", string(next.SubscriptionStatus)))
	return nil
}

func (s *Service) userFor(ctx context.Context, ev Event) (*models.User, error) {
	if ev.UserID != "" {
		if id, err := bson.ObjectIDFromHex(ev.UserID); err == nil {
			user, err := s.users.FindByID(ctx, id)
			if err != nil || user != nil {
				return user, err
			}
		}
	}
	return s.users.FindByCustomerID(ctx, ev.CustomerID)
}
