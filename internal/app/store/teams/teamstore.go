package teamstore

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
	return &Store{c: db.Collection("teams")}
}

var (
	// ErrInviteCodeTaken is returned when the requested invite code is
	// already held by another team. Uniqueness comes from the sparse
	// unique index, so two concurrent creations requesting the same code
	// resolve to exactly one winner.
	ErrInviteCodeTaken = errors.New("invite code is already in use")

	// ErrTeamFull is returned by ClaimSlot when the team has no open
	// membership slot.
	ErrTeamFull = errors.New("team has no open membership slot")

	errBadMaxMembers = errors.New("max_members must be at least 1")
)

// Create inserts a new team. The leader occupies the first membership
// slot, so member_count starts at 1.
func (s *Store) Create(ctx context.Context, t models.Team) (models.Team, error) {
	if t.MaxMembers < 1 {
		return models.Team{}, errBadMaxMembers
	}
	t.ID = primitive.NewObjectID()
	t.MemberCount = 1

	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, t); err != nil {
		if wafflemongo.IsDup(err) {
			return models.Team{}, ErrInviteCodeTaken
		}
		return models.Team{}, err
	}
	return t, nil
}

// GetByID loads a team by ObjectID.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Team, error) {
	var t models.Team
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&t); err != nil {
		return nil, err
	}
	return &t, nil
}

// GetByInviteCode resolves an invite code to its team. Returns
// mongo.ErrNoDocuments when the code is unknown.
func (s *Store) GetByInviteCode(ctx context.Context, code string) (*models.Team, error) {
	var t models.Team
	if err := s.c.FindOne(ctx, bson.M{"invite_code": code}).Decode(&t); err != nil {
		return nil, err
	}
	return &t, nil
}

// ClaimSlot atomically claims one membership slot on the team. The
// capacity check and increment are one document write, same pattern as
// event registration capacity.
func (s *Store) ClaimSlot(ctx context.Context, teamID primitive.ObjectID) error {
	filter := bson.M{
		"_id":   teamID,
		"$expr": bson.M{"$lt": bson.A{"$member_count", "$max_members"}},
	}
	res, err := s.c.UpdateOne(ctx, filter, bson.M{
		"$inc": bson.M{"member_count": 1},
		"$set": bson.M{"updated_at": time.Now().UTC()},
	})
	if err != nil {
		return err
	}
	if res.ModifiedCount == 0 {
		return ErrTeamFull
	}
	return nil
}

// ReleaseSlot gives back a claimed slot after a lost membership-insert race.
func (s *Store) ReleaseSlot(ctx context.Context, teamID primitive.ObjectID) error {
	_, err := s.c.UpdateOne(ctx,
		bson.M{"_id": teamID, "member_count": bson.M{"$gt": 1}},
		bson.M{"$inc": bson.M{"member_count": -1}},
	)
	return err
}

// Delete removes a team document. Used to roll back a team shell whose
// leader membership insert lost its race; the invite code becomes free
// again with the document.
func (s *Store) Delete(ctx context.Context, teamID primitive.ObjectID) error {
	_, err := s.c.DeleteOne(ctx, bson.M{"_id": teamID})
	return err
}

// ListByEvent returns the teams of an event.
func (s *Store) ListByEvent(ctx context.Context, eventID primitive.ObjectID) ([]models.Team, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cur, err := s.c.Find(ctx, bson.M{"event_id": eventID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var teams []models.Team
	if err := cur.All(ctx, &teams); err != nil {
		return nil, err
	}
	return teams, nil
}
