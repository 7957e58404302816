package repository

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"proposalmate/internal/models"
)

type ResetTokenRepo struct {
	collection *mongo.Collection
}

func NewResetTokenRepo(db *mongo.Database) *ResetTokenRepo {
	return &ResetTokenRepo{
		collection: db.Collection("password_reset_tokens"),
	}
}

func (r *ResetTokenRepo) Create(ctx context.Context, token *models.PasswordResetToken) error {
	token.CreatedAt = time.Now().UTC()
	result, err := r.collection.InsertOne(ctx, token)
	if err != nil {
		return err
	}
	token.ID = result.InsertedID.(bson.ObjectID)
	return nil
}

func (r *ResetTokenRepo) FindByToken(ctx context.Context, token string) (*models.PasswordResetToken, error) {
	var t models.PasswordResetToken
	err := r.collection.FindOne(ctx, bson.M{"token": token}).Decode(&t)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

// MarkUsed flips is_used for an unused token and reports whether this call
// did it, so a token can be redeemed only once.
func (r *ResetTokenRepo) MarkUsed(ctx context.Context, token string) (bool, error) {
	res, err := r.collection.UpdateOne(ctx, bson.M{"token": token, "is_used": false}, bson.M{
		"$set": bson.M{"is_used": true},
	})
	if err != nil {
		return false, err
	}
	return res.ModifiedCount > 0, nil
}

// CountRecentByEmail counts how many tokens were created for an email in the given duration.
func (r *ResetTokenRepo) CountRecentByEmail(ctx context.Context, email string, within time.Duration) (int64, error) {
	since := time.Now().UTC().Add(-within)
	return r.collection.CountDocuments(ctx, bson.M{
		"email":      email,
		"created_at": bson.M{"$gte": since},
	})
}

// EnsureIndexes creates necessary indexes for the reset token collection
func (r *ResetTokenRepo) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "token", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "email", Value: 1}, {Key: "created_at", Value: -1}},
		},
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0), // TTL: the server drops expired tokens
		},
	}
	_, err := r.collection.Indexes().CreateMany(ctx, indexes)
	return err
}
