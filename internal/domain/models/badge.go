// internal/domain/models/badge.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Badge is an awarded credential tied to a user, optionally scoped to an
// event. Awarding a badge is the unit event that increments the user's
// global points.
type Badge struct {
	ID      primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	UserID  primitive.ObjectID  `bson:"user_id" json:"user_id"`
	EventID *primitive.ObjectID `bson:"event_id,omitempty" json:"event_id,omitempty"`
	Name    string              `bson:"name" json:"name"`
	Points  int64               `bson:"points" json:"points"`

	AwardedAt time.Time `bson:"awarded_at" json:"awarded_at"`
}
