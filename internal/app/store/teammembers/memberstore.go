package memberstore

// The two unique indexes on team_members carry different invariants:
//   - (team_id, user_id): one membership row per team
//   - (event_id, user_id): one team per user per event
// Add maps a duplicate-key rejection to the matching sentinel by checking
// which constraint the insert actually hit.

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
	return &Store{c: db.Collection("team_members")}
}

var (
	// ErrDuplicateMember is returned when the user already belongs to this team.
	ErrDuplicateMember = errors.New("user is already a member of this team")

	// ErrAlreadyOnTeam is returned when the user already belongs to a
	// different team in the same event.
	ErrAlreadyOnTeam = errors.New("user already belongs to a team in this event")

	errBadRole = errors.New(`role must be "leader" or "member"`)
)

// Add inserts a membership row. The insert itself is the race arbiter;
// duplicates are classified after the fact.
func (s *Store) Add(ctx context.Context, teamID, eventID, userID primitive.ObjectID, role string) error {
	if role != "leader" && role != "member" {
		return errBadRole
	}

	doc := models.TeamMember{
		TeamID:    teamID,
		EventID:   eventID,
		UserID:    userID,
		Role:      role,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.c.InsertOne(ctx, doc)
	if err == nil {
		return nil
	}
	if !wafflemongo.IsDup(err) {
		return err
	}

	// Which constraint lost the race? A row for (team, user) means the
	// user is already on this team; otherwise they hold a membership
	// elsewhere in the event.
	onThisTeam, exErr := s.Exists(ctx, teamID, userID)
	if exErr == nil && onThisTeam {
		return ErrDuplicateMember
	}
	return ErrAlreadyOnTeam
}

// Remove deletes the membership row for (teamID, userID).
func (s *Store) Remove(ctx context.Context, teamID, userID primitive.ObjectID) error {
	_, err := s.c.DeleteOne(ctx, bson.M{"team_id": teamID, "user_id": userID})
	return err
}

// Exists checks if a membership exists for the given team and user.
func (s *Store) Exists(ctx context.Context, teamID, userID primitive.ObjectID) (bool, error) {
	err := s.c.FindOne(ctx, bson.M{"team_id": teamID, "user_id": userID}).Err()
	if err == mongo.ErrNoDocuments {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ExistsInEvent checks if the user holds any team membership in the event.
func (s *Store) ExistsInEvent(ctx context.Context, eventID, userID primitive.ObjectID) (bool, error) {
	err := s.c.FindOne(ctx, bson.M{"event_id": eventID, "user_id": userID}).Err()
	if err == mongo.ErrNoDocuments {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// CountByTeam returns the count of memberships for a team, optionally
// filtered by role. If role is empty, counts all memberships.
func (s *Store) CountByTeam(ctx context.Context, teamID primitive.ObjectID, role string) (int64, error) {
	filter := bson.M{"team_id": teamID}
	if role != "" {
		filter["role"] = role
	}
	return s.c.CountDocuments(ctx, filter)
}

// ListByTeam returns all memberships for a team.
func (s *Store) ListByTeam(ctx context.Context, teamID primitive.ObjectID) ([]models.TeamMember, error) {
	cur, err := s.c.Find(ctx, bson.M{"team_id": teamID})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var members []models.TeamMember
	if err := cur.All(ctx, &members); err != nil {
		return nil, err
	}
	return members, nil
}
