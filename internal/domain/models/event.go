// internal/domain/models/event.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Event lifecycle states.
const (
	EventDraft     = "draft"
	EventPublished = "published"
	EventOngoing   = "ongoing"
	EventCompleted = "completed"
	EventCancelled = "cancelled"
)

// Event is a competition owned by an organization.
//
// NOTE:
//   - MaxParticipants == 0 means unbounded.
//   - ParticipantCount is the number of claimed registration slots. It is
//     only ever changed with a conditional $inc, which is what makes the
//     capacity bound race-free: the claim and the bound check happen in one
//     document write.
type Event struct {
	ID             primitive.ObjectID `bson:"_id" json:"id"`
	Name           string             `bson:"name" json:"name"`
	Description    string             `bson:"description" json:"description"`
	OrganizationID primitive.ObjectID `bson:"organization_id" json:"organization_id"`
	CreatedBy      primitive.ObjectID `bson:"created_by" json:"created_by"`

	Status           string `bson:"status" json:"status"`
	MaxParticipants  int64  `bson:"max_participants" json:"max_participants"`
	ParticipantCount int64  `bson:"participant_count" json:"participant_count"`

	RegistrationOpens  time.Time `bson:"registration_opens" json:"registration_opens"`
	RegistrationCloses time.Time `bson:"registration_closes" json:"registration_closes"`
	StartsAt           time.Time `bson:"starts_at" json:"starts_at"`
	EndsAt             time.Time `bson:"ends_at" json:"ends_at"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// RegistrationOpen reports whether the event accepts registrations at t.
func (e *Event) RegistrationOpen(t time.Time) bool {
	if e.Status != EventPublished && e.Status != EventOngoing {
		return false
	}
	if !e.RegistrationOpens.IsZero() && t.Before(e.RegistrationOpens) {
		return false
	}
	if !e.RegistrationCloses.IsZero() && t.After(e.RegistrationCloses) {
		return false
	}
	return true
}
