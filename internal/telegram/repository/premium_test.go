package repository

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/hakutakaid/SaveRestrict/internal/telegram/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func TestPremiumRepositoryGet(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("active plan", func(mt *mtest.T) {
		now := time.Now().UTC().Truncate(time.Second)
		repo := &PremiumRepository{collection: mt.Coll, now: func() time.Time { return now }}
		mt.AddMockResponses(mtest.CreateCursorResponse(
			0,
			namespace(mt),
			mtest.FirstBatch,
			bson.D{
				{Key: "user_id", Value: int64(42)},
				{Key: "expires_at", Value: now.Add(time.Hour)},
				{Key: "created_at", Value: now},
			},
		))

		plan, err := repo.Get(context.Background(), 42)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if plan == nil {
			t.Fatal("expected an active plan")
		}
		if plan.UserID != 42 {
			t.Fatalf("unexpected user_id: %d", plan.UserID)
		}
	})

	mt.Run("expired plan is removed", func(mt *mtest.T) {
		now := time.Now().UTC().Truncate(time.Second)
		repo := &PremiumRepository{collection: mt.Coll, now: func() time.Time { return now }}
		mt.AddMockResponses(
			mtest.CreateCursorResponse(
				0,
				namespace(mt),
				mtest.FirstBatch,
				bson.D{
					{Key: "user_id", Value: int64(42)},
					{Key: "expires_at", Value: now.Add(-time.Hour)},
					{Key: "created_at", Value: now.Add(-48 * time.Hour)},
				},
			),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}),
		)

		plan, err := repo.Get(context.Background(), 42)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if plan != nil {
			t.Fatal("expired plan should read as absent")
		}
	})

	mt.Run("no plan", func(mt *mtest.T) {
		repo := &PremiumRepository{collection: mt.Coll, now: time.Now}
		mt.AddMockResponses(mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch))

		plan, err := repo.Get(context.Background(), 7)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if plan != nil {
			t.Fatal("expected nil plan")
		}
	})
}

func TestPremiumRepositoryUpsert(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("success", func(mt *mtest.T) {
		repo := &PremiumRepository{collection: mt.Coll, now: time.Now}
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 1},
			bson.E{Key: "nModified", Value: 1},
		))

		plan := &models.PremiumUser{
			UserID:    42,
			ExpiresAt: time.Now().Add(30 * 24 * time.Hour),
			GrantedBy: 1,
		}
		if err := repo.Upsert(context.Background(), plan); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
		if plan.CreatedAt.IsZero() {
			t.Fatal("expected created_at to be set")
		}
	})

	mt.Run("write error", func(mt *mtest.T) {
		repo := &PremiumRepository{collection: mt.Coll, now: time.Now}
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    123,
			Name:    "WriteError",
			Message: "mock write failure",
		}))

		err := repo.Upsert(context.Background(), &models.PremiumUser{UserID: 42})
		if err == nil {
			t.Fatal("expected error but got nil")
		}
		if !strings.Contains(err.Error(), "failed to upsert premium plan") {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}

func TestPremiumRepositoryTransfer(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("already transferred", func(mt *mtest.T) {
		now := time.Now().UTC().Truncate(time.Second)
		repo := &PremiumRepository{collection: mt.Coll, now: func() time.Time { return now }}
		mt.AddMockResponses(mtest.CreateCursorResponse(
			0,
			namespace(mt),
			mtest.FirstBatch,
			bson.D{
				{Key: "user_id", Value: int64(42)},
				{Key: "expires_at", Value: now.Add(time.Hour)},
				{Key: "transferred", Value: true},
				{Key: "created_at", Value: now},
			},
		))

		err := repo.Transfer(context.Background(), 42, 43)
		if err == nil {
			t.Fatal("expected error but got nil")
		}
		if !strings.Contains(err.Error(), "already transferred") {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	mt.Run("no plan to transfer", func(mt *mtest.T) {
		repo := &PremiumRepository{collection: mt.Coll, now: time.Now}
		mt.AddMockResponses(mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch))

		err := repo.Transfer(context.Background(), 42, 43)
		if err == nil {
			t.Fatal("expected error but got nil")
		}
		if !strings.Contains(err.Error(), "no active plan") {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	mt.Run("success", func(mt *mtest.T) {
		now := time.Now().UTC().Truncate(time.Second)
		repo := &PremiumRepository{collection: mt.Coll, now: func() time.Time { return now }}
		mt.AddMockResponses(
			mtest.CreateCursorResponse(
				0,
				namespace(mt),
				mtest.FirstBatch,
				bson.D{
					{Key: "user_id", Value: int64(42)},
					{Key: "expires_at", Value: now.Add(time.Hour)},
					{Key: "created_at", Value: now},
				},
			),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}),
		)

		if err := repo.Transfer(context.Background(), 42, 43); err != nil {
			t.Fatalf("Transfer failed: %v", err)
		}
	})
}
