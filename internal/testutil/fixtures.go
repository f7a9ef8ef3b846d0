package testutil

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/calebdock/comphub/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// WithChiURLParam adds a chi URL parameter to the request context.
// Use this in handler tests that need to access chi.URLParam values.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// CreateOrganization creates a test organization with the given name.
func (f *Fixtures) CreateOrganization(ctx context.Context, name string) models.Organization {
	f.t.Helper()

	now := time.Now().UTC()
	org := models.Organization{
		ID:        primitive.NewObjectID(),
		Name:      name,
		Status:    "active",
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := f.db.Collection("organizations").InsertOne(ctx, org); err != nil {
		f.t.Fatalf("create organization: %v", err)
	}
	return org
}

// CreateUser creates a test user with the given role and a unique email.
func (f *Fixtures) CreateUser(ctx context.Context, role string) models.User {
	f.t.Helper()

	now := time.Now().UTC()
	u := models.User{
		ID:        primitive.NewObjectID(),
		FullName:  "Test " + role,
		Email:     uuid.NewString() + "@test.example",
		Role:      role,
		Status:    "active",
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := f.db.Collection("users").InsertOne(ctx, u); err != nil {
		f.t.Fatalf("create user: %v", err)
	}
	return u
}

// CreateParticipant is shorthand for CreateUser(ctx, "participant").
func (f *Fixtures) CreateParticipant(ctx context.Context) models.User {
	f.t.Helper()
	return f.CreateUser(ctx, "participant")
}

// CreateEvent creates a published event with an open registration
// window and the given capacity (0 means unbounded).
func (f *Fixtures) CreateEvent(ctx context.Context, orgID primitive.ObjectID, maxParticipants int64) models.Event {
	f.t.Helper()

	now := time.Now().UTC()
	ev := models.Event{
		ID:                 primitive.NewObjectID(),
		Name:               "Test Event",
		OrganizationID:     orgID,
		CreatedBy:          primitive.NewObjectID(),
		Status:             models.EventPublished,
		MaxParticipants:    maxParticipants,
		RegistrationOpens:  now.Add(-time.Hour),
		RegistrationCloses: now.Add(time.Hour),
		StartsAt:           now.Add(2 * time.Hour),
		EndsAt:             now.Add(8 * time.Hour),
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if _, err := f.db.Collection("events").InsertOne(ctx, ev); err != nil {
		f.t.Fatalf("create event: %v", err)
	}
	return ev
}

// CreateTeam creates a team with its leader membership row, the same
// shape the coordinator produces.
func (f *Fixtures) CreateTeam(ctx context.Context, eventID, leaderID primitive.ObjectID, maxMembers int64) models.Team {
	f.t.Helper()

	now := time.Now().UTC()
	team := models.Team{
		ID:          primitive.NewObjectID(),
		EventID:     eventID,
		Name:        "Test Team",
		LeaderID:    leaderID,
		MaxMembers:  maxMembers,
		MemberCount: 1,
		InviteCode:  uuid.NewString()[:8],
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if _, err := f.db.Collection("teams").InsertOne(ctx, team); err != nil {
		f.t.Fatalf("create team: %v", err)
	}
	member := models.TeamMember{
		ID:        primitive.NewObjectID(),
		TeamID:    team.ID,
		EventID:   eventID,
		UserID:    leaderID,
		Role:      "leader",
		CreatedAt: now,
	}
	if _, err := f.db.Collection("team_members").InsertOne(ctx, member); err != nil {
		f.t.Fatalf("create team leader membership: %v", err)
	}
	return team
}

// CreateSubmission creates a submitted submission for a team and round.
func (f *Fixtures) CreateSubmission(ctx context.Context, teamID, eventID primitive.ObjectID, round int) models.Submission {
	f.t.Helper()

	now := time.Now().UTC()
	sub := models.Submission{
		ID:          primitive.NewObjectID(),
		TeamID:      teamID,
		EventID:     eventID,
		Round:       round,
		Status:      models.SubmissionSubmitted,
		Title:       "Test Submission",
		SubmittedBy: primitive.NewObjectID(),
		SubmittedAt: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if _, err := f.db.Collection("submissions").InsertOne(ctx, sub); err != nil {
		f.t.Fatalf("create submission: %v", err)
	}
	return sub
}
