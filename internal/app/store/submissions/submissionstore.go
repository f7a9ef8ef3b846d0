package submissionstore

import (
	"context"
	"errors"
	"time"

	"github.com/calebdock/comphub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("submissions")}
}

// ErrDuplicateRound is returned when the team already has a submission
// for the round.
var ErrDuplicateRound = errors.New("team already has a submission for this round")

// Create inserts a pending submission for (team, round).
func (s *Store) Create(ctx context.Context, sub models.Submission) (models.Submission, error) {
	sub.ID = primitive.NewObjectID()
	sub.Status = models.SubmissionPending

	now := time.Now().UTC()
	sub.CreatedAt = now
	sub.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, sub); err != nil {
		if wafflemongo.IsDup(err) {
			return models.Submission{}, ErrDuplicateRound
		}
		return models.Submission{}, err
	}
	return sub, nil
}

// GetByID loads a submission by ObjectID.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Submission, error) {
	var sub models.Submission
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

// MarkSubmitted transitions pending -> submitted. The status filter makes
// the transition idempotent under concurrent submitters: only one write
// observes pending.
func (s *Store) MarkSubmitted(ctx context.Context, id, by primitive.ObjectID) error {
	now := time.Now().UTC()
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "status": models.SubmissionPending},
		bson.M{"$set": bson.M{
			"status":       models.SubmissionSubmitted,
			"submitted_by": by,
			"submitted_at": now,
			"updated_at":   now,
		}},
	)
	if err != nil {
		return err
	}
	if res.ModifiedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// MarkEvaluated transitions submitted -> evaluated.
func (s *Store) MarkEvaluated(ctx context.Context, id primitive.ObjectID) error {
	_, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "status": models.SubmissionSubmitted},
		bson.M{"$set": bson.M{
			"status":     models.SubmissionEvaluated,
			"updated_at": time.Now().UTC(),
		}},
	)
	return err
}

// ListByEvent returns an event's submissions, optionally filtered by status.
func (s *Store) ListByEvent(ctx context.Context, eventID primitive.ObjectID, status string) ([]models.Submission, error) {
	filter := bson.M{"event_id": eventID}
	if status != "" {
		filter["status"] = status
	}
	cur, err := s.c.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var subs []models.Submission
	if err := cur.All(ctx, &subs); err != nil {
		return nil, err
	}
	return subs, nil
}
