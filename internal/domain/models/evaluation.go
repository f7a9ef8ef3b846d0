// internal/domain/models/evaluation.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Evaluation is a judge's score for a submission. It contributes to member
// aggregates only once finalized; Finalized flips exactly once (conditional
// update), which is what keeps concurrent finalizers from double-applying
// the score.
type Evaluation struct {
	ID           primitive.ObjectID `bson:"_id" json:"id"`
	SubmissionID primitive.ObjectID `bson:"submission_id" json:"submission_id"`
	JudgeID      primitive.ObjectID `bson:"judge_id" json:"judge_id"`
	Score        int64              `bson:"score" json:"score"`
	Comments     string             `bson:"comments,omitempty" json:"comments,omitempty"`

	Finalized   bool      `bson:"finalized" json:"finalized"`
	FinalizedAt time.Time `bson:"finalized_at,omitempty" json:"finalized_at,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}
