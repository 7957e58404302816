package models

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type SubscriptionStatus string

const (
	SubscriptionNone     SubscriptionStatus = "none"
	SubscriptionTrialing SubscriptionStatus = "trialing"
	SubscriptionActive   SubscriptionStatus = "active"
	SubscriptionPastDue  SubscriptionStatus = "past_due"
	SubscriptionCanceled SubscriptionStatus = "canceled"
)

// Billing is the subscription state mirrored from the billing provider.
type Billing struct {
	SubscriptionID     string             `bson:"subscription_id,omitempty" json:"subscriptionId,omitempty"`
	SubscriptionStatus SubscriptionStatus `bson:"subscription_status" json:"subscriptionStatus"`
	TrialEndDate       *time.Time         `bson:"trial_end_date,omitempty" json:"trialEndDate,omitempty"`
	StripeCustomerID   string             `bson:"stripe_customer_id,omitempty" json:"stripeCustomerId,omitempty"`
}

type User struct {
	ID           bson.ObjectID `bson:"_id,omitempty" json:"_id"`
	Name         string        `bson:"name" json:"name"`
	Email        string        `bson:"email" json:"email"`
	PasswordHash string        `bson:"password_hash" json:"-"`
	Role         string        `bson:"role" json:"role"`
	Billing      `bson:",inline"`
	CreatedAt    time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `bson:"updated_at" json:"updatedAt"`
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// HasActiveSubscription reports whether the user may use gated features.
// Admins always may.
func (u *User) HasActiveSubscription() bool {
	if u.IsAdmin() {
		return true
	}
	return u.SubscriptionStatus == SubscriptionActive || u.SubscriptionStatus == SubscriptionTrialing
}
