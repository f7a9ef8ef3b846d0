package coordinator_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/calebdock/comphub/internal/app/coordinator"
	"github.com/calebdock/comphub/internal/app/hub"
	"github.com/calebdock/comphub/internal/app/ranking"
	badgestore "github.com/calebdock/comphub/internal/app/store/badges"
	evaluationstore "github.com/calebdock/comphub/internal/app/store/evaluations"
	eventstore "github.com/calebdock/comphub/internal/app/store/events"
	registrationstore "github.com/calebdock/comphub/internal/app/store/registrations"
	submissionstore "github.com/calebdock/comphub/internal/app/store/submissions"
	memberstore "github.com/calebdock/comphub/internal/app/store/teammembers"
	teamstore "github.com/calebdock/comphub/internal/app/store/teams"
	userstore "github.com/calebdock/comphub/internal/app/store/users"
	"github.com/calebdock/comphub/internal/app/system/retry"
	domevents "github.com/calebdock/comphub/internal/domain/events"
	"github.com/calebdock/comphub/internal/domain/models"
	"github.com/calebdock/comphub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type env struct {
	coord  *coordinator.Coordinator
	hub    *hub.Hub
	users  *userstore.Store
	events *eventstore.Store
	regs   *registrationstore.Store
	teams  *teamstore.Store
	fx     *testutil.Fixtures
}

func newEnv(t *testing.T, db *mongo.Database) *env {
	t.Helper()

	logger := zap.NewNop()
	users := userstore.New(db)
	events := eventstore.New(db)
	regs := registrationstore.New(db)
	teams := teamstore.New(db)
	members := memberstore.New(db)
	subs := submissionstore.New(db)
	evals := evaluationstore.New(db)
	badges := badgestore.New(db)

	h := hub.New(hub.DefaultSendBuffer, logger)
	t.Cleanup(h.Close)

	engine := ranking.New(users, badges, h, 25, logger)
	coord := coordinator.New(events, regs, teams, members, subs, evals, engine, h, retry.Policy{}, logger)

	return &env{
		coord:  coord,
		hub:    h,
		users:  users,
		events: events,
		regs:   regs,
		teams:  teams,
		fx:     testutil.NewFixtures(t, db),
	}
}

func TestRegister_LastSlotHasOneWinner(t *testing.T) {
	db := testutil.SetupIndexedDB(t)
	ctx := testutil.TestContext(t)
	e := newEnv(t, db)

	ev := e.fx.CreateEvent(ctx, primitive.NewObjectID(), 1)
	alice := e.fx.CreateParticipant(ctx)
	bob := e.fx.CreateParticipant(ctx)

	var wg sync.WaitGroup
	results := make(chan error, 2)
	for _, uid := range []primitive.ObjectID{alice.ID, bob.ID} {
		wg.Add(1)
		go func(uid primitive.ObjectID) {
			defer wg.Done()
			_, err := e.coord.Register(ctx, uid, ev.ID)
			results <- err
		}(uid)
	}
	wg.Wait()
	close(results)

	var won, lost int
	for err := range results {
		switch {
		case err == nil:
			won++
		case errors.Is(err, coordinator.ErrCapacityExceeded):
			lost++
		default:
			t.Fatalf("unexpected register error: %v", err)
		}
	}
	if won != 1 || lost != 1 {
		t.Errorf("got %d winners and %d losers, want exactly 1 of each", won, lost)
	}

	got, err := e.events.GetByID(ctx, ev.ID)
	if err != nil {
		t.Fatalf("reload event: %v", err)
	}
	if got.ParticipantCount != 1 {
		t.Errorf("participant_count: got %d, want 1", got.ParticipantCount)
	}
	count, err := e.regs.CountByEvent(ctx, ev.ID)
	if err != nil {
		t.Fatalf("count registrations: %v", err)
	}
	if count != 1 {
		t.Errorf("registrations: got %d, want 1", count)
	}
}

func TestRegister_DuplicateReleasesClaimedSlot(t *testing.T) {
	db := testutil.SetupIndexedDB(t)
	ctx := testutil.TestContext(t)
	e := newEnv(t, db)

	ev := e.fx.CreateEvent(ctx, primitive.NewObjectID(), 10)
	alice := e.fx.CreateParticipant(ctx)

	if _, err := e.coord.Register(ctx, alice.ID, ev.ID); err != nil {
		t.Fatalf("first register: %v", err)
	}
	_, err := e.coord.Register(ctx, alice.ID, ev.ID)
	if !errors.Is(err, coordinator.ErrAlreadyRegistered) {
		t.Fatalf("second register: got %v, want ErrAlreadyRegistered", err)
	}

	// The slot claimed by the losing attempt must be handed back.
	got, err := e.events.GetByID(ctx, ev.ID)
	if err != nil {
		t.Fatalf("reload event: %v", err)
	}
	if got.ParticipantCount != 1 {
		t.Errorf("participant_count after duplicate: got %d, want 1", got.ParticipantCount)
	}
}

func TestRegister_DuplicateOnFullEventReportsAlreadyRegistered(t *testing.T) {
	db := testutil.SetupIndexedDB(t)
	ctx := testutil.TestContext(t)
	e := newEnv(t, db)

	ev := e.fx.CreateEvent(ctx, primitive.NewObjectID(), 1)
	alice := e.fx.CreateParticipant(ctx)
	bob := e.fx.CreateParticipant(ctx)

	if _, err := e.coord.Register(ctx, alice.ID, ev.ID); err != nil {
		t.Fatalf("register: %v", err)
	}

	// Alice's retry on the now-full event is a duplicate, not a
	// capacity problem; Bob really is out of slots.
	_, err := e.coord.Register(ctx, alice.ID, ev.ID)
	if !errors.Is(err, coordinator.ErrAlreadyRegistered) {
		t.Errorf("registered user on full event: got %v, want ErrAlreadyRegistered", err)
	}
	_, err = e.coord.Register(ctx, bob.ID, ev.ID)
	if !errors.Is(err, coordinator.ErrCapacityExceeded) {
		t.Errorf("new user on full event: got %v, want ErrCapacityExceeded", err)
	}
}

func TestRegister_ClosedEvent(t *testing.T) {
	db := testutil.SetupIndexedDB(t)
	ctx := testutil.TestContext(t)
	e := newEnv(t, db)

	ev := e.fx.CreateEvent(ctx, primitive.NewObjectID(), 10)
	if err := e.events.SetStatus(ctx, ev.ID, "completed"); err != nil {
		t.Fatalf("set status: %v", err)
	}
	alice := e.fx.CreateParticipant(ctx)

	_, err := e.coord.Register(ctx, alice.ID, ev.ID)
	if !errors.Is(err, coordinator.ErrRegistrationClosed) {
		t.Errorf("register on completed event: got %v, want ErrRegistrationClosed", err)
	}
}

func TestRegister_BroadcastsNewRegistration(t *testing.T) {
	db := testutil.SetupIndexedDB(t)
	ctx := testutil.TestContext(t)
	e := newEnv(t, db)

	msgs := e.hub.Subscribe("watcher")

	ev := e.fx.CreateEvent(ctx, primitive.NewObjectID(), 10)
	alice := e.fx.CreateParticipant(ctx)
	if _, err := e.coord.Register(ctx, alice.ID, ev.ID); err != nil {
		t.Fatalf("register: %v", err)
	}

	select {
	case msg := <-msgs:
		if msg.Type != domevents.TypeNewRegistration {
			t.Errorf("broadcast type: got %q, want %q", msg.Type, domevents.TypeNewRegistration)
		}
	default:
		t.Error("expected a new_registration broadcast")
	}
}

func TestCreateTeamAndJoinLifecycle(t *testing.T) {
	db := testutil.SetupIndexedDB(t)
	ctx := testutil.TestContext(t)
	e := newEnv(t, db)

	ev := e.fx.CreateEvent(ctx, primitive.NewObjectID(), 0)
	leader := e.fx.CreateParticipant(ctx)
	joiner := e.fx.CreateParticipant(ctx)
	late := e.fx.CreateParticipant(ctx)

	team, err := e.coord.CreateTeam(ctx, teamFixture(ev.ID, leader.ID, 2, "JOINME42"))
	if err != nil {
		t.Fatalf("create team: %v", err)
	}
	if team.MemberCount != 1 {
		t.Errorf("member_count after create: got %d, want 1 (the leader)", team.MemberCount)
	}

	// Join by invite code fills the last slot.
	if _, err := e.coord.JoinTeam(ctx, joiner.ID, primitive.NilObjectID, "JOINME42"); err != nil {
		t.Fatalf("join by code: %v", err)
	}

	// Full team turns the next joiner away.
	_, err = e.coord.JoinTeam(ctx, late.ID, team.ID, "")
	if !errors.Is(err, coordinator.ErrTeamFull) {
		t.Errorf("join full team: got %v, want ErrTeamFull", err)
	}

	// A member cannot join again.
	_, err = e.coord.JoinTeam(ctx, joiner.ID, team.ID, "")
	if !errors.Is(err, coordinator.ErrAlreadyOnTeam) {
		t.Errorf("rejoin: got %v, want ErrAlreadyOnTeam", err)
	}

	// Unknown invite code resolves to nothing.
	_, err = e.coord.JoinTeam(ctx, late.ID, primitive.NilObjectID, "NOPE0000")
	if !errors.Is(err, coordinator.ErrInvalidInviteCode) {
		t.Errorf("bad code: got %v, want ErrInvalidInviteCode", err)
	}

	got, err := e.teams.GetByID(ctx, team.ID)
	if err != nil {
		t.Fatalf("reload team: %v", err)
	}
	if got.MemberCount != 2 {
		t.Errorf("member_count: got %d, want 2", got.MemberCount)
	}
}

func TestCreateTeam_DuplicateInviteCode(t *testing.T) {
	db := testutil.SetupIndexedDB(t)
	ctx := testutil.TestContext(t)
	e := newEnv(t, db)

	ev := e.fx.CreateEvent(ctx, primitive.NewObjectID(), 0)
	a := e.fx.CreateParticipant(ctx)
	b := e.fx.CreateParticipant(ctx)

	if _, err := e.coord.CreateTeam(ctx, teamFixture(ev.ID, a.ID, 4, "SAMECODE")); err != nil {
		t.Fatalf("first team: %v", err)
	}
	_, err := e.coord.CreateTeam(ctx, teamFixture(ev.ID, b.ID, 4, "SAMECODE"))
	if !errors.Is(err, coordinator.ErrInviteCodeTaken) {
		t.Errorf("second team with same code: got %v, want ErrInviteCodeTaken", err)
	}
}

func TestUserBelongsToOneTeamPerEvent(t *testing.T) {
	db := testutil.SetupIndexedDB(t)
	ctx := testutil.TestContext(t)
	e := newEnv(t, db)

	ev := e.fx.CreateEvent(ctx, primitive.NewObjectID(), 0)
	leader := e.fx.CreateParticipant(ctx)
	wanderer := e.fx.CreateParticipant(ctx)

	teamA, err := e.coord.CreateTeam(ctx, teamFixture(ev.ID, leader.ID, 5, "TEAMAAAA"))
	if err != nil {
		t.Fatalf("team A: %v", err)
	}
	if _, err := e.coord.JoinTeam(ctx, wanderer.ID, teamA.ID, ""); err != nil {
		t.Fatalf("join team A: %v", err)
	}

	// Creating a second team in the same event as leader must fail too:
	// the wanderer already holds a membership row for this event.
	_, err = e.coord.CreateTeam(ctx, teamFixture(ev.ID, wanderer.ID, 5, "TEAMBBBB"))
	if !errors.Is(err, coordinator.ErrAlreadyOnTeam) {
		t.Errorf("second membership in one event: got %v, want ErrAlreadyOnTeam", err)
	}

	// The rejected team shell is rolled back entirely: no leaderless
	// document survives and its invite code is free again.
	if _, err := e.teams.GetByInviteCode(ctx, "TEAMBBBB"); !errors.Is(err, mongo.ErrNoDocuments) {
		t.Errorf("rejected team shell should be deleted, lookup got %v", err)
	}
	freshLeader := e.fx.CreateParticipant(ctx)
	if _, err := e.coord.CreateTeam(ctx, teamFixture(ev.ID, freshLeader.ID, 5, "TEAMBBBB")); err != nil {
		t.Errorf("invite code should be reusable after rollback: %v", err)
	}
}

func TestSubmit_DuplicateRound(t *testing.T) {
	db := testutil.SetupIndexedDB(t)
	ctx := testutil.TestContext(t)
	e := newEnv(t, db)

	ev := e.fx.CreateEvent(ctx, primitive.NewObjectID(), 0)
	leader := e.fx.CreateParticipant(ctx)
	team := e.fx.CreateTeam(ctx, ev.ID, leader.ID, 4)

	if _, err := e.coord.Submit(ctx, team.ID, ev.ID, leader.ID, 1, "entry one"); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	_, err := e.coord.Submit(ctx, team.ID, ev.ID, leader.ID, 1, "entry two")
	if !errors.Is(err, coordinator.ErrDuplicateRound) {
		t.Errorf("second submit same round: got %v, want ErrDuplicateRound", err)
	}

	// A different round is fine.
	if _, err := e.coord.Submit(ctx, team.ID, ev.ID, leader.ID, 2, "entry three"); err != nil {
		t.Errorf("submit round 2: %v", err)
	}
}

func TestFinalizeEvaluation_AppliesScoreToEveryMemberOnce(t *testing.T) {
	db := testutil.SetupIndexedDB(t)
	ctx := testutil.TestContext(t)
	e := newEnv(t, db)

	ev := e.fx.CreateEvent(ctx, primitive.NewObjectID(), 0)
	leader := e.fx.CreateParticipant(ctx)
	mate := e.fx.CreateParticipant(ctx)
	judge := e.fx.CreateUser(ctx, "judge")

	team, err := e.coord.CreateTeam(ctx, teamFixture(ev.ID, leader.ID, 3, "SCOREME1"))
	if err != nil {
		t.Fatalf("create team: %v", err)
	}
	if _, err := e.coord.JoinTeam(ctx, mate.ID, team.ID, ""); err != nil {
		t.Fatalf("join: %v", err)
	}

	sub, err := e.coord.Submit(ctx, team.ID, ev.ID, leader.ID, 1, "final entry")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	eval, err := e.coord.Evaluate(ctx, sub.ID, judge.ID, 40, "solid")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}

	if err := e.coord.FinalizeEvaluation(ctx, eval.ID); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	// Finalizing twice must not double-apply.
	if err := e.coord.FinalizeEvaluation(ctx, eval.ID); !errors.Is(err, coordinator.ErrAlreadyFinalized) {
		t.Fatalf("second finalize: got %v, want ErrAlreadyFinalized", err)
	}

	for _, uid := range []primitive.ObjectID{leader.ID, mate.ID} {
		u, err := e.users.GetByID(ctx, uid)
		if err != nil {
			t.Fatalf("reload user: %v", err)
		}
		if u.GlobalPoints != 40 {
			t.Errorf("user %s points: got %d, want 40", uid.Hex(), u.GlobalPoints)
		}
	}
}

func TestIsConstraintViolation(t *testing.T) {
	for _, err := range []error{
		coordinator.ErrCapacityExceeded,
		coordinator.ErrAlreadyRegistered,
		coordinator.ErrTeamFull,
		coordinator.ErrAlreadyOnTeam,
		coordinator.ErrDuplicateRound,
		coordinator.ErrAlreadyFinalized,
	} {
		if !coordinator.IsConstraintViolation(err) {
			t.Errorf("%v should be a constraint violation", err)
		}
	}
	if coordinator.IsConstraintViolation(coordinator.ErrUnavailable) {
		t.Error("ErrUnavailable is transient exhaustion, not a constraint violation")
	}
	if coordinator.IsConstraintViolation(context.DeadlineExceeded) {
		t.Error("deadline errors are not constraint violations")
	}
}

func teamFixture(eventID, leaderID primitive.ObjectID, maxMembers int64, code string) models.Team {
	return models.Team{
		EventID:    eventID,
		LeaderID:   leaderID,
		Name:       "Racers",
		MaxMembers: maxMembers,
		InviteCode: code,
	}
}
