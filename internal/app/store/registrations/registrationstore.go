package registrationstore

import (
	"context"
	"errors"
	"time"

	"github.com/calebdock/comphub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("registrations")}
}

// ErrDuplicate is returned when a registration for (event, user) already
// exists. The unique index is the race arbiter: we always insert and map
// the duplicate-key rejection, never check-then-write.
var ErrDuplicate = errors.New("user is already registered for this event")

// Create inserts the registration document for (eventID, userID).
func (s *Store) Create(ctx context.Context, eventID, userID primitive.ObjectID) (models.Registration, error) {
	reg := models.Registration{
		ID:        primitive.NewObjectID(),
		EventID:   eventID,
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := s.c.InsertOne(ctx, reg); err != nil {
		if wafflemongo.IsDup(err) {
			return models.Registration{}, ErrDuplicate
		}
		return models.Registration{}, err
	}
	return reg, nil
}

// Exists checks whether (eventID, userID) is registered.
func (s *Store) Exists(ctx context.Context, eventID, userID primitive.ObjectID) (bool, error) {
	err := s.c.FindOne(ctx, bson.M{"event_id": eventID, "user_id": userID}).Err()
	if err == mongo.ErrNoDocuments {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// CountByEvent returns the number of registrations for an event.
func (s *Store) CountByEvent(ctx context.Context, eventID primitive.ObjectID) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{"event_id": eventID})
}

// ListByEvent returns registrations for an event, oldest first.
func (s *Store) ListByEvent(ctx context.Context, eventID primitive.ObjectID, limit int64) ([]models.Registration, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}}).
		SetLimit(limit)
	cur, err := s.c.Find(ctx, bson.M{"event_id": eventID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var regs []models.Registration
	if err := cur.All(ctx, &regs); err != nil {
		return nil, err
	}
	return regs, nil
}

// ListByUser returns a user's registrations.
func (s *Store) ListByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Registration, error) {
	cur, err := s.c.Find(ctx, bson.M{"user_id": userID})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var regs []models.Registration
	if err := cur.All(ctx, &regs); err != nil {
		return nil, err
	}
	return regs, nil
}
