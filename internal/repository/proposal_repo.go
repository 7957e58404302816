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

type ProposalRepo struct {
	collection *mongo.Collection
}

func NewProposalRepo(db *mongo.Database) *ProposalRepo {
	return &ProposalRepo{
		collection: db.Collection("proposals"),
	}
}

func (r *ProposalRepo) Insert(ctx context.Context, p *models.Proposal) error {
	result, err := r.collection.InsertOne(ctx, p)
	if err != nil {
		return err
	}
	p.ID = result.InsertedID.(bson.ObjectID)
	return nil
}

// FindByOwner returns the owner's proposals in insertion order.
func (r *ProposalRepo) FindByOwner(ctx context.Context, owner bson.ObjectID) ([]models.Proposal, error) {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"user": owner}, opts)
	if err != nil {
		return nil, err
	}
	proposals := []models.Proposal{}
	if err := cursor.All(ctx, &proposals); err != nil {
		return nil, err
	}
	return proposals, nil
}

func (r *ProposalRepo) findOne(ctx context.Context, filter bson.M) (*models.Proposal, error) {
	var p models.Proposal
	err := r.collection.FindOne(ctx, filter).Decode(&p)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func (r *ProposalRepo) FindByID(ctx context.Context, id bson.ObjectID) (*models.Proposal, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *ProposalRepo) FindByShareToken(ctx context.Context, token string) (*models.Proposal, error) {
	if token == "" {
		return nil, nil
	}
	return r.findOne(ctx, bson.M{"share_token": token})
}

// Update $sets the patched top-level sections and updated_at, and returns
// the document after the update. A missing document yields nil, nil.
func (r *ProposalRepo) Update(ctx context.Context, id bson.ObjectID, patch models.ProposalPatch, updatedAt time.Time) (*models.Proposal, error) {
	set := bson.M{"updated_at": updatedAt}
	if patch.Title != nil {
		set["title"] = *patch.Title
	}
	if patch.Client != nil {
		set["client"] = *patch.Client
	}
	if patch.ProjectDetails != nil {
		set["project_details"] = *patch.ProjectDetails
	}
	if patch.Pricing != nil {
		set["pricing"] = *patch.Pricing
	}
	if patch.Template != nil {
		set["template"] = *patch.Template
	}
	if patch.Status != nil {
		set["status"] = *patch.Status
	}
	if patch.ShareToken != nil {
		set["share_token"] = *patch.ShareToken
	}
	if patch.AcceptedAt != nil {
		set["accepted_at"] = *patch.AcceptedAt
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var p models.Proposal
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&p)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func (r *ProposalRepo) Delete(ctx context.Context, id bson.ObjectID) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

// EnsureIndexes creates necessary indexes for the proposals collection
func (r *ProposalRepo) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "user", Value: 1}},
		},
		{
			Keys:    bson.D{{Key: "share_token", Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true),
		},
	}
	_, err := r.collection.Indexes().CreateMany(ctx, indexes)
	return err
}
