// internal/app/system/indexes/indexes.go
package indexes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

/*
EnsureAll is called at startup. Each ensure* function is idempotent.
We aggregate errors so any problem is visible and startup can fail fast.

The unique indexes declared here are not an optimization: they are the
arbiter for concurrent register/join races. The application inserts and
treats a duplicate-key rejection as losing the race; it never pre-checks
and then writes.
*/
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string

	if err := ensureUsers(ctx, db); err != nil {
		problems = append(problems, "users: "+err.Error())
	}
	if err := ensureEvents(ctx, db); err != nil {
		problems = append(problems, "events: "+err.Error())
	}
	if err := ensureRegistrations(ctx, db); err != nil {
		problems = append(problems, "registrations: "+err.Error())
	}
	if err := ensureTeams(ctx, db); err != nil {
		problems = append(problems, "teams: "+err.Error())
	}
	if err := ensureTeamMembers(ctx, db); err != nil {
		problems = append(problems, "team_members: "+err.Error())
	}
	if err := ensureSubmissions(ctx, db); err != nil {
		problems = append(problems, "submissions: "+err.Error())
	}
	if err := ensureEvaluations(ctx, db); err != nil {
		problems = append(problems, "evaluations: "+err.Error())
	}
	if err := ensureBadges(ctx, db); err != nil {
		problems = append(problems, "badges: "+err.Error())
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

func keySig(keys bson.D) string {
	parts := make([]string, 0, len(keys))
	for _, kv := range keys {
		parts = append(parts, fmt.Sprintf("%s:%v", kv.Key, kv.Value))
	}
	return strings.Join(parts, ", ")
}

func ensureIndexSet(ctx context.Context, coll *mongo.Collection, models []mongo.IndexModel) error {
	var errs []string

	for _, m := range models {
		var name string
		unique := false
		if m.Options != nil {
			if m.Options.Name != nil {
				name = *m.Options.Name
			}
			if m.Options.Unique != nil {
				unique = *m.Options.Unique
			}
		}

		start := time.Now()
		if _, err := coll.Indexes().CreateOne(ctx, m); err != nil {
			// CreateOne is idempotent when the same name/keys/options already
			// exist; anything else is a real problem.
			zap.L().Warn("index ensure failed",
				zap.String("collection", coll.Name()),
				zap.String("name", name),
				zap.String("keys", keySig(m.Keys.(bson.D))),
				zap.Bool("unique", unique),
				zap.Error(err))
			errs = append(errs, fmt.Sprintf("%s(%s): %v", coll.Name(), name, err))
			continue
		}
		zap.L().Info("index ensured",
			zap.String("collection", coll.Name()),
			zap.String("name", name),
			zap.String("keys", keySig(m.Keys.(bson.D))),
			zap.Bool("unique", unique),
			zap.String("took", time.Since(start).String()))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

/* -------------------------------------------------------------------------- */
/* Collection-specific index sets                                             */
/* -------------------------------------------------------------------------- */

func ensureUsers(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("users")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// Email unique across all users.
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_users_email"),
		},
		// Leaderboard scan order: points desc, then account age asc.
		// _id completes the strict total order for users created in the
		// same instant.
		{
			Keys: bson.D{
				{Key: "global_points", Value: -1},
				{Key: "created_at", Value: 1},
				{Key: "_id", Value: 1},
			},
			Options: options.Index().SetName("leaderboard_order"),
		},
	})
}

func ensureEvents(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("events")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "organization_id", Value: 1},
				{Key: "status", Value: 1},
			},
			Options: options.Index().SetName("events_org_status"),
		},
	})
}

func ensureRegistrations(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("registrations")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// One registration per (event, user). This is the register race
		// arbiter.
		{
			Keys: bson.D{
				{Key: "event_id", Value: 1},
				{Key: "user_id", Value: 1},
			},
			Options: options.Index().SetUnique(true).SetName("uniq_registration_event_user"),
		},
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}},
			Options: options.Index().SetName("registrations_user"),
		},
	})
}

func ensureTeams(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("teams")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// Invite codes are globally unique when present; sparse so teams
		// without a code don't collide on the missing field.
		{
			Keys:    bson.D{{Key: "invite_code", Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true).SetName("uniq_teams_invite_code"),
		},
		{
			Keys:    bson.D{{Key: "event_id", Value: 1}},
			Options: options.Index().SetName("teams_event"),
		},
	})
}

func ensureTeamMembers(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("team_members")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// One membership per (team, user).
		{
			Keys: bson.D{
				{Key: "team_id", Value: 1},
				{Key: "user_id", Value: 1},
			},
			Options: options.Index().SetUnique(true).SetName("uniq_team_member"),
		},
		// One team per (event, user).
		{
			Keys: bson.D{
				{Key: "event_id", Value: 1},
				{Key: "user_id", Value: 1},
			},
			Options: options.Index().SetUnique(true).SetName("uniq_event_member"),
		},
	})
}

func ensureSubmissions(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("submissions")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "team_id", Value: 1},
				{Key: "round", Value: 1},
			},
			Options: options.Index().SetUnique(true).SetName("uniq_submission_team_round"),
		},
		{
			Keys: bson.D{
				{Key: "event_id", Value: 1},
				{Key: "status", Value: 1},
			},
			Options: options.Index().SetName("submissions_event_status"),
		},
	})
}

func ensureEvaluations(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("evaluations")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// One evaluation per judge per submission.
		{
			Keys: bson.D{
				{Key: "submission_id", Value: 1},
				{Key: "judge_id", Value: 1},
			},
			Options: options.Index().SetUnique(true).SetName("uniq_evaluation_submission_judge"),
		},
	})
}

func ensureBadges(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("badges")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "user_id", Value: 1},
				{Key: "awarded_at", Value: -1},
			},
			Options: options.Index().SetName("badges_user_awarded"),
		},
	})
}
