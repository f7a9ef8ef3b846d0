// internal/domain/models/user.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User represents participants, organizers, and judges.
//
// NOTE:
//   - GlobalPoints is mutated only through the ranking engine's atomic
//     increment; nothing else writes the field.
//   - BadgeCount is derived (one increment per badge awarded).
//   - CreatedAt is the leaderboard tie-break key, so it is never rewritten
//     after insert.
type User struct {
	ID             primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	FullName       string              `bson:"full_name" json:"full_name"`
	Email          string              `bson:"email" json:"email"`
	Role           string              `bson:"role" json:"role"` // organizer | judge | participant
	Status         string              `bson:"status,omitempty" json:"status,omitempty"`
	OrganizationID *primitive.ObjectID `bson:"organization_id,omitempty" json:"organization_id,omitempty"`

	GlobalPoints int64 `bson:"global_points" json:"global_points"`
	BadgeCount   int64 `bson:"badge_count" json:"badge_count"`

	CreatedAt    time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at" json:"updated_at"`
	LastActiveAt time.Time `bson:"last_active_at,omitempty" json:"last_active_at,omitempty"`
}
