package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/hakutakaid/SaveRestrict/internal/telegram/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// PremiumRepository persists premium plans.
type PremiumRepository struct {
	collection *mongo.Collection
	now        func() time.Time
}

// NewPremiumRepository creates a premium repository over the "premium"
// collection.
func NewPremiumRepository(db *mongo.Database) *PremiumRepository {
	return &PremiumRepository{
		collection: db.Collection("premium"),
		now:        time.Now,
	}
}

// Get returns the active plan for a user, or nil when the user has
// none. Lapsed plans are deleted on read.
func (r *PremiumRepository) Get(ctx context.Context, userID int64) (*models.PremiumUser, error) {
	var plan models.PremiumUser
	err := r.collection.FindOne(ctx, bson.M{"user_id": userID}).Decode(&plan)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get premium plan: %w", err)
	}

	if plan.Expired(r.now().UTC()) {
		if _, err := r.collection.DeleteOne(ctx, bson.M{"user_id": userID}); err != nil {
			return nil, fmt.Errorf("failed to remove expired plan: %w", err)
		}
		return nil, nil
	}
	return &plan, nil
}

// IsPremium reports whether the user holds an active plan.
func (r *PremiumRepository) IsPremium(ctx context.Context, userID int64) (bool, error) {
	plan, err := r.Get(ctx, userID)
	if err != nil {
		return false, err
	}
	return plan != nil, nil
}

// Upsert stores or replaces a plan.
func (r *PremiumRepository) Upsert(ctx context.Context, plan *models.PremiumUser) error {
	if plan.CreatedAt.IsZero() {
		plan.CreatedAt = r.now().UTC()
	}
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"user_id": plan.UserID},
		bson.M{"$set": bson.M{
			"expires_at":  plan.ExpiresAt,
			"granted_by":  plan.GrantedBy,
			"transferred": plan.Transferred,
			"created_at":  plan.CreatedAt,
		}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert premium plan: %w", err)
	}
	return nil
}

// Delete revokes a plan. Missing documents are not an error.
func (r *PremiumRepository) Delete(ctx context.Context, userID int64) error {
	if _, err := r.collection.DeleteOne(ctx, bson.M{"user_id": userID}); err != nil {
		return fmt.Errorf("failed to delete premium plan: %w", err)
	}
	return nil
}

// Transfer moves the remainder of a plan to another user. A plan may be
// transferred once.
func (r *PremiumRepository) Transfer(ctx context.Context, fromID, toID int64) error {
	plan, err := r.Get(ctx, fromID)
	if err != nil {
		return err
	}
	if plan == nil {
		return fmt.Errorf("no active plan for user %d", fromID)
	}
	if plan.Transferred {
		return fmt.Errorf("plan was already transferred once")
	}

	moved := &models.PremiumUser{
		UserID:      toID,
		ExpiresAt:   plan.ExpiresAt,
		GrantedBy:   fromID,
		Transferred: true,
		CreatedAt:   r.now().UTC(),
	}
	if err := r.Upsert(ctx, moved); err != nil {
		return err
	}
	return r.Delete(ctx, fromID)
}

// EnsureIndexes creates the unique user_id index.
func (r *PremiumRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}
