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

// SettingsRepository persists per-user relay settings.
type SettingsRepository struct {
	collection *mongo.Collection
}

// NewSettingsRepository creates a settings repository over the
// "settings" collection.
func NewSettingsRepository(db *mongo.Database) *SettingsRepository {
	return &SettingsRepository{collection: db.Collection("settings")}
}

// Get returns the settings document for a user. A user with no stored
// settings gets a zero-value document, not an error.
func (r *SettingsRepository) Get(ctx context.Context, userID int64) (*models.UserSettings, error) {
	var settings models.UserSettings
	err := r.collection.FindOne(ctx, bson.M{"user_id": userID}).Decode(&settings)
	if err == mongo.ErrNoDocuments {
		return &models.UserSettings{UserID: userID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}
	return &settings, nil
}

// SetField upserts a single settings field.
func (r *SettingsRepository) SetField(ctx context.Context, userID int64, field string, value interface{}) error {
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"user_id": userID},
		bson.M{
			"$set":         bson.M{field: value, "updated_at": time.Now().UTC()},
			"$setOnInsert": bson.M{"user_id": userID},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to set %s: %w", field, err)
	}
	return nil
}

// UnsetFields removes the given fields from the user's document.
func (r *SettingsRepository) UnsetFields(ctx context.Context, userID int64, fields ...string) error {
	unset := bson.M{}
	for _, f := range fields {
		unset[f] = ""
	}
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"user_id": userID},
		bson.M{
			"$unset": unset,
			"$set":   bson.M{"updated_at": time.Now().UTC()},
		},
	)
	if err != nil {
		return fmt.Errorf("failed to unset fields: %w", err)
	}
	return nil
}

// AddReplacement records a word replacement rule.
func (r *SettingsRepository) AddReplacement(ctx context.Context, userID int64, word, replacement string) error {
	return r.SetField(ctx, userID, "replacements."+word, replacement)
}

// AddDeleteWord appends a delete-word without duplicating it.
func (r *SettingsRepository) AddDeleteWord(ctx context.Context, userID int64, word string) error {
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"user_id": userID},
		bson.M{
			"$addToSet":    bson.M{"delete_words": word},
			"$set":         bson.M{"updated_at": time.Now().UTC()},
			"$setOnInsert": bson.M{"user_id": userID},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to add delete word: %w", err)
	}
	return nil
}

// Reset clears custom preferences but keeps stored credentials.
func (r *SettingsRepository) Reset(ctx context.Context, userID int64) error {
	return r.UnsetFields(ctx, userID,
		"chat_id", "rename_tag", "caption", "replacements", "delete_words")
}

// ClearSession removes the stored session string.
func (r *SettingsRepository) ClearSession(ctx context.Context, userID int64) error {
	return r.UnsetFields(ctx, userID, "session")
}

// ClearBotToken removes the stored bot token.
func (r *SettingsRepository) ClearBotToken(ctx context.Context, userID int64) error {
	return r.UnsetFields(ctx, userID, "bot_token")
}

// EnsureIndexes creates the unique user_id index.
func (r *SettingsRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}
