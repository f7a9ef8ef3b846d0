package userstore

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
	return &Store{c: db.Collection("users")}
}

var (
	// ErrDuplicateEmail is returned when attempting to create a user with an email that already exists.
	ErrDuplicateEmail = errors.New("a user with this email already exists")
	errBadRole        = errors.New(`role must be "organizer"|"judge"|"participant"`)
)

// GetByID loads a user by ObjectID.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Create inserts a new user after validating fields.
func (s *Store) Create(ctx context.Context, u models.User) (models.User, error) {
	u.ID = primitive.NewObjectID()

	switch u.Role {
	case "organizer", "judge", "participant":
		// ok
	default:
		return models.User{}, errBadRole
	}
	if u.Status == "" {
		u.Status = "active"
	}

	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, u); err != nil {
		if wafflemongo.IsDup(err) {
			return models.User{}, ErrDuplicateEmail
		}
		return models.User{}, err
	}
	return u, nil
}

// IncrementPoints applies delta to the user's global_points as a single
// atomic $inc and returns the post-increment total. There is deliberately
// no read-modify-write variant of this operation: concurrent deltas for
// the same user serialize on the document, so no update is ever lost.
// A badge award also bumps badge_count in the same write.
func (s *Store) IncrementPoints(ctx context.Context, userID primitive.ObjectID, delta int64, withBadge bool) (int64, error) {
	inc := bson.M{"global_points": delta}
	if withBadge {
		inc["badge_count"] = int64(1)
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var u models.User
	err := s.c.FindOneAndUpdate(ctx,
		bson.M{"_id": userID},
		bson.M{
			"$inc": inc,
			"$set": bson.M{"updated_at": time.Now().UTC()},
		},
		opts,
	).Decode(&u)
	if err != nil {
		return 0, err
	}
	return u.GlobalPoints, nil
}

// LeaderboardWindow returns up to limit users starting at offset in strict
// leaderboard order: global_points desc, created_at asc, _id asc. The
// ordering is a total order, so re-running the query on unchanged data
// yields identical output.
func (s *Store) LeaderboardWindow(ctx context.Context, offset, limit int64) ([]models.User, error) {
	opts := options.Find().
		SetSort(bson.D{
			{Key: "global_points", Value: -1},
			{Key: "created_at", Value: 1},
			{Key: "_id", Value: 1},
		}).
		SetSkip(offset).
		SetLimit(limit)

	cur, err := s.c.Find(ctx, bson.M{"role": "participant"}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var users []models.User
	if err := cur.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// CountParticipants returns the number of ranked users.
func (s *Store) CountParticipants(ctx context.Context) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{"role": "participant"})
}

// RankOf returns the 1-based rank of the given user: one plus the number
// of users that sort strictly ahead of it.
func (s *Store) RankOf(ctx context.Context, u *models.User) (int64, error) {
	ahead, err := s.c.CountDocuments(ctx, bson.M{
		"role": "participant",
		"$or": bson.A{
			bson.M{"global_points": bson.M{"$gt": u.GlobalPoints}},
			bson.M{"global_points": u.GlobalPoints, "created_at": bson.M{"$lt": u.CreatedAt}},
			bson.M{"global_points": u.GlobalPoints, "created_at": u.CreatedAt, "_id": bson.M{"$lt": u.ID}},
		},
	})
	if err != nil {
		return 0, err
	}
	return ahead + 1, nil
}

// Touch records activity for a user. Missing users are ignored.
func (s *Store) Touch(ctx context.Context, userID primitive.ObjectID) error {
	_, err := s.c.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$set": bson.M{"last_active_at": time.Now().UTC()}})
	return err
}
