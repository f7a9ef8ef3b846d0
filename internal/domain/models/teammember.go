// internal/domain/models/teammember.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TeamMember is the authoritative join between users and teams.
// Exactly one document per (team_id, user_id), and at most one per
// (event_id, user_id): a user belongs to one team per event. The leader
// row is inserted together with the team, so every team has exactly one
// role="leader" membership.
type TeamMember struct {
	ID      primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TeamID  primitive.ObjectID `bson:"team_id" json:"team_id"`
	EventID primitive.ObjectID `bson:"event_id" json:"event_id"`
	UserID  primitive.ObjectID `bson:"user_id" json:"user_id"`
	Role    string             `bson:"role" json:"role"` // "leader" | "member"

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}
