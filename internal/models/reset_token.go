package models

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// PasswordResetToken is a single-use token mailed to a user who forgot their
// password.
type PasswordResetToken struct {
	ID        bson.ObjectID `bson:"_id,omitempty" json:"id"`
	Email     string        `bson:"email" json:"email"`
	Token     string        `bson:"token" json:"-"`
	ExpiresAt time.Time     `bson:"expires_at" json:"expiresAt"`
	IsUsed    bool          `bson:"is_used" json:"isUsed"`
	CreatedAt time.Time     `bson:"created_at" json:"createdAt"`
}

func (t *PasswordResetToken) IsExpired() bool {
	return time.Now().After(t.ExpiresAt)
}
