package repository

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"proposalmate/internal/models"
)

type AcceptanceRepo struct {
	collection *mongo.Collection
}

func NewAcceptanceRepo(db *mongo.Database) *AcceptanceRepo {
	return &AcceptanceRepo{
		collection: db.Collection("acceptances"),
	}
}

// Create stores a. A second acceptance for the same proposal yields
// ErrDuplicate.
func (r *AcceptanceRepo) Create(ctx context.Context, a *models.Acceptance) error {
	result, err := r.collection.InsertOne(ctx, a)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return err
	}
	a.ID = result.InsertedID.(bson.ObjectID)
	return nil
}

func (r *AcceptanceRepo) FindByProposal(ctx context.Context, proposalID bson.ObjectID) (*models.Acceptance, error) {
	var a models.Acceptance
	err := r.collection.FindOne(ctx, bson.M{"proposal": proposalID}).Decode(&a)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

// EnsureIndexes creates necessary indexes for the acceptances collection
func (r *AcceptanceRepo) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "proposal", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}
