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

// BatchRepository persists batch job snapshots. Snapshots are crash
// evidence, not live state; the in-memory registry owns the truth.
type BatchRepository struct {
	collection *mongo.Collection
}

// NewBatchRepository creates a batch repository over the "batches"
// collection.
func NewBatchRepository(db *mongo.Database) *BatchRepository {
	return &BatchRepository{collection: db.Collection("batches")}
}

// Save upserts the snapshot for the job's user. One job per user, so
// user_id is the key.
func (r *BatchRepository) Save(ctx context.Context, snap *models.BatchSnapshot) error {
	snap.UpdatedAt = time.Now().UTC()
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"user_id": snap.UserID},
		bson.M{"$set": bson.M{
			"task_id":    snap.TaskID,
			"link":       snap.Link,
			"start_id":   snap.StartID,
			"count":      snap.Count,
			"processed":  snap.Processed,
			"succeeded":  snap.Succeeded,
			"updated_at": snap.UpdatedAt,
		}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to save batch snapshot: %w", err)
	}
	return nil
}

// Delete removes the snapshot for a user.
func (r *BatchRepository) Delete(ctx context.Context, userID int64) error {
	if _, err := r.collection.DeleteOne(ctx, bson.M{"user_id": userID}); err != nil {
		return fmt.Errorf("failed to delete batch snapshot: %w", err)
	}
	return nil
}

// PurgeAll removes every snapshot and returns how many were left over
// from a previous run.
func (r *BatchRepository) PurgeAll(ctx context.Context) (int64, error) {
	res, err := r.collection.DeleteMany(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to purge batch snapshots: %w", err)
	}
	return res.DeletedCount, nil
}

// EnsureIndexes creates the unique user_id index.
func (r *BatchRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}
