package eventstore

import (
	"context"
	"errors"
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
	return &Store{c: db.Collection("events")}
}

var errBadStatus = errors.New(`status must be "draft"|"published"|"ongoing"|"completed"|"cancelled"`)

// ErrNoCapacity is returned by ClaimSlot when the event is full, closed,
// or does not exist. Callers that need to distinguish "full" from "gone"
// re-read the event afterward.
var ErrNoCapacity = errors.New("event has no open registration slot")

// GetByID loads an event by ObjectID.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Event, error) {
	var e models.Event
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&e); err != nil {
		return nil, err
	}
	return &e, nil
}

// Create inserts a new event.
func (s *Store) Create(ctx context.Context, e models.Event) (models.Event, error) {
	e.ID = primitive.NewObjectID()
	if e.Status == "" {
		e.Status = models.EventDraft
	}
	switch e.Status {
	case models.EventDraft, models.EventPublished, models.EventOngoing,
		models.EventCompleted, models.EventCancelled:
		// ok
	default:
		return models.Event{}, errBadStatus
	}
	e.ParticipantCount = 0

	now := time.Now().UTC()
	e.CreatedAt = now
	e.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, e); err != nil {
		return models.Event{}, err
	}
	return e, nil
}

// ClaimSlot atomically claims one registration slot. The capacity bound
// and the increment are evaluated in a single document write, so two
// concurrent claims for the last slot cannot both succeed. Events with
// max_participants == 0 are unbounded.
func (s *Store) ClaimSlot(ctx context.Context, eventID primitive.ObjectID) error {
	filter := bson.M{
		"_id":    eventID,
		"status": bson.M{"$in": bson.A{models.EventPublished, models.EventOngoing}},
		"$or": bson.A{
			bson.M{"max_participants": 0},
			bson.M{"$expr": bson.M{"$lt": bson.A{"$participant_count", "$max_participants"}}},
		},
	}
	res, err := s.c.UpdateOne(ctx, filter, bson.M{
		"$inc": bson.M{"participant_count": 1},
		"$set": bson.M{"updated_at": time.Now().UTC()},
	})
	if err != nil {
		return err
	}
	if res.ModifiedCount == 0 {
		return ErrNoCapacity
	}
	return nil
}

// ReleaseSlot gives back a previously claimed slot. Used when the
// registration insert following a claim loses the uniqueness race.
func (s *Store) ReleaseSlot(ctx context.Context, eventID primitive.ObjectID) error {
	_, err := s.c.UpdateOne(ctx,
		bson.M{"_id": eventID, "participant_count": bson.M{"$gt": 0}},
		bson.M{"$inc": bson.M{"participant_count": -1}},
	)
	return err
}

// SetStatus moves the event through its lifecycle.
func (s *Store) SetStatus(ctx context.Context, id primitive.ObjectID, status string) error {
	switch status {
	case models.EventDraft, models.EventPublished, models.EventOngoing,
		models.EventCompleted, models.EventCancelled:
		// ok
	default:
		return errBadStatus
	}
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{"status": status, "updated_at": time.Now().UTC()},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// ListByOrg returns events for an organization, newest first.
func (s *Store) ListByOrg(ctx context.Context, orgID primitive.ObjectID, limit int64) ([]models.Event, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(limit)
	cur, err := s.c.Find(ctx, bson.M{"organization_id": orgID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Event
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
