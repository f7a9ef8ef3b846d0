package evaluationstore

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
	return &Store{c: db.Collection("evaluations")}
}

var (
	// ErrDuplicateJudge is returned when the judge has already scored the submission.
	ErrDuplicateJudge = errors.New("judge has already evaluated this submission")

	// ErrAlreadyFinalized is returned by Finalize when the evaluation was
	// finalized earlier (by this or another caller).
	ErrAlreadyFinalized = errors.New("evaluation is already finalized")
)

// Create inserts a draft evaluation.
func (s *Store) Create(ctx context.Context, ev models.Evaluation) (models.Evaluation, error) {
	ev.ID = primitive.NewObjectID()
	ev.Finalized = false
	ev.CreatedAt = time.Now().UTC()

	if _, err := s.c.InsertOne(ctx, ev); err != nil {
		if wafflemongo.IsDup(err) {
			return models.Evaluation{}, ErrDuplicateJudge
		}
		return models.Evaluation{}, err
	}
	return ev, nil
}

// GetByID loads an evaluation by ObjectID.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Evaluation, error) {
	var ev models.Evaluation
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

// Finalize flips finalized exactly once. The finalized:false filter makes
// the flip a single-winner transition, so the score is applied to member
// aggregates at most once no matter how many callers race.
func (s *Store) Finalize(ctx context.Context, id primitive.ObjectID) (*models.Evaluation, error) {
	now := time.Now().UTC()
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "finalized": false},
		bson.M{"$set": bson.M{"finalized": true, "finalized_at": now}},
	)
	if err != nil {
		return nil, err
	}
	if res.ModifiedCount == 0 {
		if res.MatchedCount == 0 {
			// Either unknown, or already finalized.
			var ev models.Evaluation
			if ferr := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&ev); ferr != nil {
				return nil, ferr
			}
			return nil, ErrAlreadyFinalized
		}
		return nil, ErrAlreadyFinalized
	}

	var ev models.Evaluation
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

// ListBySubmission returns a submission's evaluations.
func (s *Store) ListBySubmission(ctx context.Context, submissionID primitive.ObjectID) ([]models.Evaluation, error) {
	cur, err := s.c.Find(ctx, bson.M{"submission_id": submissionID})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var evs []models.Evaluation
	if err := cur.All(ctx, &evs); err != nil {
		return nil, err
	}
	return evs, nil
}
