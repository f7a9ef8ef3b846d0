// Package coordinator accepts writes (registrations, team membership,
// submissions, evaluations) and enforces the structural invariants under
// concurrent callers: event capacity, one registration per user per event,
// team capacity, one team per user per event, unique invite codes.
//
// None of the invariants are enforced by check-then-write. Capacity is a
// conditional $inc on the owning document and uniqueness is a declared
// index; a constraint rejection from the store is the race-resolution
// signal.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/calebdock/comphub/internal/app/hub"
	"github.com/calebdock/comphub/internal/app/ranking"
	"github.com/calebdock/comphub/internal/app/store/evaluations"
	"github.com/calebdock/comphub/internal/app/store/events"
	"github.com/calebdock/comphub/internal/app/store/registrations"
	"github.com/calebdock/comphub/internal/app/store/submissions"
	"github.com/calebdock/comphub/internal/app/store/teammembers"
	"github.com/calebdock/comphub/internal/app/store/teams"
	"github.com/calebdock/comphub/internal/app/system/retry"
	domevents "github.com/calebdock/comphub/internal/domain/events"
	"github.com/calebdock/comphub/internal/domain/models"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Constraint violations. These are user-actionable, surfaced to the
// caller, and never retried automatically.
var (
	ErrCapacityExceeded   = errors.New("event is full")
	ErrAlreadyRegistered  = errors.New("user is already registered for this event")
	ErrRegistrationClosed = errors.New("event is not accepting registrations")
	ErrTeamFull           = errors.New("team is full")
	ErrAlreadyOnTeam      = errors.New("user already belongs to a team in this event")
	ErrInvalidInviteCode  = errors.New("invite code does not resolve to an open team")
	ErrInviteCodeTaken    = errors.New("invite code is already in use")
	ErrEventNotFound      = errors.New("event not found")
	ErrTeamNotFound       = errors.New("team not found")
	ErrDuplicateRound     = errors.New("team already has a submission for this round")
	ErrDuplicateJudge     = errors.New("judge has already evaluated this submission")
	ErrAlreadyFinalized   = errors.New("evaluation is already finalized")
)

// ErrUnavailable is returned after bounded retries of a transiently
// failing store.
var ErrUnavailable = errors.New("store unavailable")

// IsConstraintViolation reports whether err belongs to the constraint
// taxonomy (as opposed to transient or unknown failures).
func IsConstraintViolation(err error) bool {
	for _, sentinel := range []error{
		ErrCapacityExceeded, ErrAlreadyRegistered, ErrRegistrationClosed,
		ErrTeamFull, ErrAlreadyOnTeam, ErrInvalidInviteCode, ErrInviteCodeTaken,
		ErrDuplicateRound, ErrDuplicateJudge, ErrAlreadyFinalized,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

// Coordinator wires the stores, the ranking engine, and the hub.
type Coordinator struct {
	events        *eventstore.Store
	registrations *registrationstore.Store
	teams         *teamstore.Store
	members       *memberstore.Store
	submissions   *submissionstore.Store
	evaluations   *evaluationstore.Store
	ranking       *ranking.Engine
	hub           *hub.Hub
	log           *zap.Logger
	retry         retry.Policy
	now           func() time.Time
}

// New constructs a Coordinator.
func New(
	events *eventstore.Store,
	registrations *registrationstore.Store,
	teams *teamstore.Store,
	members *memberstore.Store,
	submissions *submissionstore.Store,
	evaluations *evaluationstore.Store,
	engine *ranking.Engine,
	h *hub.Hub,
	policy retry.Policy,
	logger *zap.Logger,
) *Coordinator {
	return &Coordinator{
		events:        events,
		registrations: registrations,
		teams:         teams,
		members:       members,
		submissions:   submissions,
		evaluations:   evaluations,
		ranking:       engine,
		hub:           h,
		log:           logger,
		retry:         policy,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

func (c *Coordinator) wrap(err error) error {
	if retry.IsTransient(err) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return err
}

/* -------------------------------------------------------------------------- */
/* Events                                                                     */
/* -------------------------------------------------------------------------- */

// CreateEvent inserts the event and announces it when it is born published.
func (c *Coordinator) CreateEvent(ctx context.Context, e models.Event) (models.Event, error) {
	var created models.Event
	err := retry.Do(ctx, c.retry, func(ctx context.Context) error {
		var err error
		created, err = c.events.Create(ctx, e)
		return err
	})
	if err != nil {
		return models.Event{}, c.wrap(err)
	}

	if created.Status == models.EventPublished {
		c.hub.Publish(hub.Message{
			Type: domevents.TypeNewEvent,
			Data: map[string]string{"event_id": created.ID.Hex(), "name": created.Name},
		})
	}
	return created, nil
}

// PublishEvent moves an event to published and announces it.
func (c *Coordinator) PublishEvent(ctx context.Context, eventID primitive.ObjectID) error {
	err := retry.Do(ctx, c.retry, func(ctx context.Context) error {
		return c.events.SetStatus(ctx, eventID, models.EventPublished)
	})
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrEventNotFound
		}
		return c.wrap(err)
	}

	c.hub.Publish(hub.Message{
		Type: domevents.TypeNewEvent,
		Data: map[string]string{"event_id": eventID.Hex()},
	})
	return nil
}

/* -------------------------------------------------------------------------- */
/* Registration                                                               */
/* -------------------------------------------------------------------------- */

// Register creates the registration for (userID, eventID).
//
// The claim-then-insert sequence closes both races:
//  1. ClaimSlot increments participant_count only while it is under the
//     bound, in one document write. Two concurrent calls for the last
//     slot produce exactly one winner.
//  2. The registration insert hits the unique (event_id, user_id) index;
//     a duplicate releases the claimed slot and reports the conflict.
func (c *Coordinator) Register(ctx context.Context, userID, eventID primitive.ObjectID) (models.Registration, error) {
	// Window and lifecycle gate. Time is not a race-sensitive invariant,
	// so a plain read is fine here; capacity is not checked from this
	// snapshot.
	var ev *models.Event
	err := retry.Do(ctx, c.retry, func(ctx context.Context) error {
		var err error
		ev, err = c.events.GetByID(ctx, eventID)
		return err
	})
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Registration{}, ErrEventNotFound
		}
		return models.Registration{}, c.wrap(err)
	}
	if !ev.RegistrationOpen(c.now()) {
		return models.Registration{}, ErrRegistrationClosed
	}

	if err := retry.Do(ctx, c.retry, func(ctx context.Context) error {
		return c.events.ClaimSlot(ctx, eventID)
	}); err != nil {
		if errors.Is(err, eventstore.ErrNoCapacity) {
			// A user already holding a registration gets the precise
			// conflict, not the capacity one. The read happens only on
			// this already-failed path, so it arbitrates nothing.
			if ok, xerr := c.registrations.Exists(ctx, eventID, userID); xerr == nil && ok {
				return models.Registration{}, ErrAlreadyRegistered
			}
			return models.Registration{}, ErrCapacityExceeded
		}
		return models.Registration{}, c.wrap(err)
	}

	var reg models.Registration
	err = retry.Do(ctx, c.retry, func(ctx context.Context) error {
		var err error
		reg, err = c.registrations.Create(ctx, eventID, userID)
		return err
	})
	if err != nil {
		// The slot was claimed but the registration did not land; give
		// the slot back before reporting.
		if rerr := c.events.ReleaseSlot(ctx, eventID); rerr != nil {
			c.log.Error("failed to release claimed slot",
				zap.String("event_id", eventID.Hex()), zap.Error(rerr))
		}
		if errors.Is(err, registrationstore.ErrDuplicate) {
			return models.Registration{}, ErrAlreadyRegistered
		}
		return models.Registration{}, c.wrap(err)
	}

	c.log.Info("registration created",
		zap.String("event_id", eventID.Hex()),
		zap.String("user_id", userID.Hex()))

	c.hub.Publish(hub.Message{
		Type: domevents.TypeNewRegistration,
		Data: domevents.RegistrationData{
			EventID: eventID.Hex(),
			UserID:  userID.Hex(),
		},
	})
	return reg, nil
}

/* -------------------------------------------------------------------------- */
/* Teams                                                                      */
/* -------------------------------------------------------------------------- */

// NewInviteCode returns a short unique-enough join token. Collisions are
// acceptable: the sparse unique index rejects them and the caller simply
// asks for another code.
func NewInviteCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

// CreateTeam inserts the team with its leader membership. The invite
// code's uniqueness is settled by the declared index: of two concurrent
// creations requesting the same code, exactly one succeeds.
func (c *Coordinator) CreateTeam(ctx context.Context, t models.Team) (models.Team, error) {
	var created models.Team
	err := retry.Do(ctx, c.retry, func(ctx context.Context) error {
		var err error
		created, err = c.teams.Create(ctx, t)
		return err
	})
	if err != nil {
		if errors.Is(err, teamstore.ErrInviteCodeTaken) {
			return models.Team{}, ErrInviteCodeTaken
		}
		return models.Team{}, c.wrap(err)
	}

	// The leader occupies the first slot. If the leader already belongs
	// to a team in this event, the membership insert loses and the team
	// shell is removed again.
	if err := c.members.Add(ctx, created.ID, created.EventID, created.LeaderID, "leader"); err != nil {
		if derr := c.teams.Delete(ctx, created.ID); derr != nil {
			c.log.Error("failed to roll back team shell", zap.Error(derr),
				zap.String("team_id", created.ID.Hex()))
		}
		if errors.Is(err, memberstore.ErrAlreadyOnTeam) || errors.Is(err, memberstore.ErrDuplicateMember) {
			return models.Team{}, ErrAlreadyOnTeam
		}
		return models.Team{}, c.wrap(err)
	}

	c.log.Info("team created",
		zap.String("team_id", created.ID.Hex()),
		zap.String("event_id", created.EventID.Hex()),
		zap.String("leader_id", created.LeaderID.Hex()))
	return created, nil
}

// JoinTeam adds userID to a team, by id or by invite code. The capacity
// claim and the membership insert follow the same two-step arbitration as
// Register.
func (c *Coordinator) JoinTeam(ctx context.Context, userID, teamID primitive.ObjectID, inviteCode string) (models.TeamMember, error) {
	var team *models.Team
	var err error
	if inviteCode != "" {
		err = retry.Do(ctx, c.retry, func(ctx context.Context) error {
			team, err = c.teams.GetByInviteCode(ctx, inviteCode)
			return err
		})
		if err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return models.TeamMember{}, ErrInvalidInviteCode
			}
			return models.TeamMember{}, c.wrap(err)
		}
		// A code addressed at a different team than the caller asked for
		// does not grant access either.
		if !teamID.IsZero() && team.ID != teamID {
			return models.TeamMember{}, ErrInvalidInviteCode
		}
	} else {
		err = retry.Do(ctx, c.retry, func(ctx context.Context) error {
			team, err = c.teams.GetByID(ctx, teamID)
			return err
		})
		if err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return models.TeamMember{}, ErrTeamNotFound
			}
			return models.TeamMember{}, c.wrap(err)
		}
	}

	if err := retry.Do(ctx, c.retry, func(ctx context.Context) error {
		return c.teams.ClaimSlot(ctx, team.ID)
	}); err != nil {
		if errors.Is(err, teamstore.ErrTeamFull) {
			return models.TeamMember{}, ErrTeamFull
		}
		return models.TeamMember{}, c.wrap(err)
	}

	if err := c.members.Add(ctx, team.ID, team.EventID, userID, "member"); err != nil {
		if rerr := c.teams.ReleaseSlot(ctx, team.ID); rerr != nil {
			c.log.Error("failed to release team slot",
				zap.String("team_id", team.ID.Hex()), zap.Error(rerr))
		}
		if errors.Is(err, memberstore.ErrAlreadyOnTeam) || errors.Is(err, memberstore.ErrDuplicateMember) {
			return models.TeamMember{}, ErrAlreadyOnTeam
		}
		return models.TeamMember{}, c.wrap(err)
	}

	c.log.Info("team joined",
		zap.String("team_id", team.ID.Hex()),
		zap.String("user_id", userID.Hex()))

	c.hub.Publish(hub.Message{
		Type: domevents.TypeTeamJoined,
		Data: domevents.TeamJoinedData{
			EventID: team.EventID.Hex(),
			TeamID:  team.ID.Hex(),
			UserID:  userID.Hex(),
		},
	})
	return models.TeamMember{
		TeamID:  team.ID,
		EventID: team.EventID,
		UserID:  userID,
		Role:    "member",
	}, nil
}

/* -------------------------------------------------------------------------- */
/* Submissions & evaluations                                                  */
/* -------------------------------------------------------------------------- */

// Submit records a team's work for a round and announces it.
func (c *Coordinator) Submit(ctx context.Context, teamID, eventID, by primitive.ObjectID, round int, title string) (models.Submission, error) {
	sub := models.Submission{
		TeamID:  teamID,
		EventID: eventID,
		Round:   round,
		Title:   title,
	}

	var created models.Submission
	err := retry.Do(ctx, c.retry, func(ctx context.Context) error {
		var err error
		created, err = c.submissions.Create(ctx, sub)
		return err
	})
	if err != nil {
		if errors.Is(err, submissionstore.ErrDuplicateRound) {
			return models.Submission{}, ErrDuplicateRound
		}
		return models.Submission{}, c.wrap(err)
	}
	if err := retry.Do(ctx, c.retry, func(ctx context.Context) error {
		return c.submissions.MarkSubmitted(ctx, created.ID, by)
	}); err != nil {
		return models.Submission{}, c.wrap(err)
	}

	c.hub.Publish(hub.Message{
		Type: domevents.TypeNewSubmission,
		Data: domevents.SubmissionData{
			EventID:      eventID.Hex(),
			TeamID:       teamID.Hex(),
			SubmissionID: created.ID.Hex(),
			Round:        round,
		},
	})
	return created, nil
}

// Evaluate records a judge's draft score for a submission.
func (c *Coordinator) Evaluate(ctx context.Context, submissionID, judgeID primitive.ObjectID, score int64, comments string) (models.Evaluation, error) {
	var ev models.Evaluation
	err := retry.Do(ctx, c.retry, func(ctx context.Context) error {
		var err error
		ev, err = c.evaluations.Create(ctx, models.Evaluation{
			SubmissionID: submissionID,
			JudgeID:      judgeID,
			Score:        score,
			Comments:     comments,
		})
		return err
	})
	if err != nil {
		if errors.Is(err, evaluationstore.ErrDuplicateJudge) {
			return models.Evaluation{}, ErrDuplicateJudge
		}
		return models.Evaluation{}, c.wrap(err)
	}
	return ev, nil
}

// FinalizeEvaluation flips the evaluation to finalized (at most once;
// Finalize is a single-winner transition) and applies the score as a
// point delta to every member of the submitting team. The deltas go
// through the ranking engine, so leaderboard notifications follow
// automatically.
func (c *Coordinator) FinalizeEvaluation(ctx context.Context, evaluationID primitive.ObjectID) error {
	ev, err := c.evaluations.Finalize(ctx, evaluationID)
	if err != nil {
		if errors.Is(err, evaluationstore.ErrAlreadyFinalized) {
			return ErrAlreadyFinalized
		}
		return c.wrap(err)
	}

	sub, err := c.submissions.GetByID(ctx, ev.SubmissionID)
	if err != nil {
		return c.wrap(err)
	}
	if err := c.submissions.MarkEvaluated(ctx, sub.ID); err != nil {
		return c.wrap(err)
	}

	members, err := c.members.ListByTeam(ctx, sub.TeamID)
	if err != nil {
		return c.wrap(err)
	}
	reason := "evaluation:" + ev.ID.Hex()
	for _, m := range members {
		if _, err := c.ranking.ApplyPointDelta(ctx, m.UserID, ev.Score, reason); err != nil {
			// Keep applying to the remaining members; a replay against
			// the evaluation can reconcile the one that failed.
			c.log.Error("failed to apply evaluation delta",
				zap.String("user_id", m.UserID.Hex()),
				zap.String("evaluation_id", ev.ID.Hex()),
				zap.Error(err))
		}
	}
	return nil
}
