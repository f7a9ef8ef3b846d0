// internal/domain/models/submission.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Submission workflow states.
const (
	SubmissionPending   = "pending"
	SubmissionSubmitted = "submitted"
	SubmissionEvaluated = "evaluated"
)

// Submission is produced by a team for one round of an event.
type Submission struct {
	ID      primitive.ObjectID `bson:"_id" json:"id"`
	TeamID  primitive.ObjectID `bson:"team_id" json:"team_id"`
	EventID primitive.ObjectID `bson:"event_id" json:"event_id"`
	Round   int                `bson:"round" json:"round"`
	Status  string             `bson:"status" json:"status"`
	Title   string             `bson:"title" json:"title"`

	SubmittedBy primitive.ObjectID `bson:"submitted_by" json:"submitted_by"`
	SubmittedAt time.Time          `bson:"submitted_at,omitempty" json:"submitted_at,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
