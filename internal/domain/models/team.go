// internal/domain/models/team.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Team belongs to one event.
//
// NOTE:
//   - InviteCode, when present, is unique across all teams (sparse unique
//     index); an empty code means the team is join-by-id only.
//   - MemberCount counts claimed membership slots and is only changed with
//     a conditional $inc against MaxMembers, same pattern as event capacity.
type Team struct {
	ID       primitive.ObjectID `bson:"_id" json:"id"`
	EventID  primitive.ObjectID `bson:"event_id" json:"event_id"`
	Name     string             `bson:"name" json:"name"`
	LeaderID primitive.ObjectID `bson:"leader_id" json:"leader_id"`

	MaxMembers  int64  `bson:"max_members" json:"max_members"`
	MemberCount int64  `bson:"member_count" json:"member_count"`
	InviteCode  string `bson:"invite_code,omitempty" json:"invite_code,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
