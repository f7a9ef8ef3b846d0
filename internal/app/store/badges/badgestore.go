package badgestore

import (
	"context"
	"time"

	"github.com/calebdock/comphub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("badges")}
}

// Insert records an awarded badge.
func (s *Store) Insert(ctx context.Context, b models.Badge) (models.Badge, error) {
	b.ID = primitive.NewObjectID()
	b.AwardedAt = time.Now().UTC()
	if _, err := s.c.InsertOne(ctx, b); err != nil {
		return models.Badge{}, err
	}
	return b, nil
}

// ListByUser returns a user's badges, newest first.
func (s *Store) ListByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Badge, error) {
	opts := options.Find().SetSort(bson.D{{Key: "awarded_at", Value: -1}})
	cur, err := s.c.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var badges []models.Badge
	if err := cur.All(ctx, &badges); err != nil {
		return nil, err
	}
	return badges, nil
}

// CountByUser returns the number of badges a user holds.
func (s *Store) CountByUser(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{"user_id": userID})
}
