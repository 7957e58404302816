package models

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Acceptance is a client's signed acceptance of a shared proposal. There is
// at most one per proposal.
type Acceptance struct {
	ID          bson.ObjectID `bson:"_id,omitempty" json:"_id"`
	ProposalID  bson.ObjectID `bson:"proposal" json:"proposal"`
	ClientName  string        `bson:"client_name" json:"clientName" validate:"required"`
	ClientEmail string        `bson:"client_email" json:"clientEmail" validate:"required,email"`
	Signature   string        `bson:"signature" json:"signature" validate:"required"`
	CreatedAt   time.Time     `bson:"created_at" json:"createdAt"`
}
