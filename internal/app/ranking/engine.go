// Package ranking maintains each user's aggregate score and the global
// rank order. It holds no durable state of its own: rank and points are
// always derivable by querying the users collection, which makes the
// engine restartable without data loss.
package ranking

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/calebdock/comphub/internal/app/hub"
	"github.com/calebdock/comphub/internal/app/store/badges"
	"github.com/calebdock/comphub/internal/app/store/users"
	"github.com/calebdock/comphub/internal/app/system/retry"
	"github.com/calebdock/comphub/internal/domain/events"
	"github.com/calebdock/comphub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// DefaultTopK is the visible leaderboard window when none is configured.
const DefaultTopK = 25

// ErrUnavailable is returned when the store keeps failing transiently
// after bounded retries.
var ErrUnavailable = errors.New("ranking store unavailable")

// ErrUnknownUser is returned for deltas against a user that does not exist.
var ErrUnknownUser = errors.New("unknown user")

// Entry is one leaderboard row. Rank numbers are 1-based and contiguous;
// tied points never share a rank because the ordering is a strict total
// order (points desc, account age asc, _id asc).
type Entry struct {
	UserID   string `json:"user_id"`
	FullName string `json:"full_name"`
	Points   int64  `json:"points"`
	Rank     int64  `json:"rank"`
}

// Engine applies point deltas and computes leaderboards.
type Engine struct {
	users  *userstore.Store
	badges *badgestore.Store
	hub    *hub.Hub
	log    *zap.Logger

	topK  int64
	retry retry.Policy

	// Last observed top-K window, used to decide whether a delta changed
	// the visible ordering. Guarded by mu; a stale miss only costs one
	// extra leaderboard_update, never a missed one, because the window is
	// re-read from committed state after every delta.
	mu     sync.Mutex
	window []string // user IDs in rank order, points interleaved below
	points []int64
}

// New creates an Engine emitting to h. topK <= 0 selects DefaultTopK.
func New(users *userstore.Store, badges *badgestore.Store, h *hub.Hub, topK int64, logger *zap.Logger) *Engine {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Engine{
		users:  users,
		badges: badges,
		hub:    h,
		log:    logger,
		topK:   topK,
	}
}

// ApplyPointDelta atomically adds delta to the user's global points and
// returns the new total. Concurrent deltas for the same user serialize at
// the store (single $inc per call), so the final total is always the exact
// sum of applied deltas. Emits leaderboard_update when the top-K window's
// membership or ordering changed.
func (e *Engine) ApplyPointDelta(ctx context.Context, userID primitive.ObjectID, delta int64, reason string) (int64, error) {
	return e.applyDelta(ctx, userID, delta, reason, false)
}

// AwardBadge records the badge, bumps the user's points and badge count
// in one atomic write, and announces the award. Awarding a badge is the
// unit event that increments global points.
func (e *Engine) AwardBadge(ctx context.Context, b models.Badge) (models.Badge, int64, error) {
	var awarded models.Badge
	err := retry.Do(ctx, e.retry, func(ctx context.Context) error {
		var err error
		awarded, err = e.badges.Insert(ctx, b)
		return err
	})
	if err != nil {
		if retry.IsTransient(err) {
			return models.Badge{}, 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return models.Badge{}, 0, err
	}

	total, err := e.applyDelta(ctx, b.UserID, b.Points, "badge:"+b.Name, true)
	if err != nil {
		return models.Badge{}, 0, err
	}

	e.hub.Publish(hub.Message{
		Type: events.TypeAnnouncement,
		Data: events.AnnouncementData{
			Title: "badge awarded",
			Body:  b.Name,
		},
	})
	return awarded, total, nil
}

func (e *Engine) applyDelta(ctx context.Context, userID primitive.ObjectID, delta int64, reason string, withBadge bool) (int64, error) {
	var total int64
	err := retry.Do(ctx, e.retry, func(ctx context.Context) error {
		var err error
		total, err = e.users.IncrementPoints(ctx, userID, delta, withBadge)
		return err
	})
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, ErrUnknownUser
		}
		if retry.IsTransient(err) {
			return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return 0, err
	}

	e.log.Debug("point delta applied",
		zap.String("user_id", userID.Hex()),
		zap.Int64("delta", delta),
		zap.Int64("new_total", total),
		zap.String("reason", reason))

	changed, err := e.refreshWindow(ctx)
	if err != nil {
		// The delta is committed; a failed window read only means we
		// cannot tell whether the visible ordering moved. Emit anyway so
		// clients re-fetch rather than going stale.
		e.log.Warn("top-K window refresh failed, emitting unconditionally", zap.Error(err))
		changed = true
	}
	if changed {
		e.hub.Publish(hub.Message{
			Type: events.TypeLeaderboardUpdate,
			Data: events.LeaderboardData{
				UserID:    userID.Hex(),
				NewTotal:  total,
				Reason:    reason,
				TopKDirty: true,
			},
		})
	}
	return total, nil
}

// refreshWindow re-reads the committed top-K window and reports whether
// its membership or ordering differs from the last observation.
func (e *Engine) refreshWindow(ctx context.Context) (bool, error) {
	rows, err := e.users.LeaderboardWindow(ctx, 0, e.topK)
	if err != nil {
		return false, err
	}

	ids := make([]string, len(rows))
	pts := make([]int64, len(rows))
	for i, u := range rows {
		ids[i] = u.ID.Hex()
		pts[i] = u.GlobalPoints
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	changed := len(ids) != len(e.window)
	if !changed {
		for i := range ids {
			if ids[i] != e.window[i] || pts[i] != e.points[i] {
				changed = true
				break
			}
		}
	}
	e.window = ids
	e.points = pts
	return changed, nil
}

// ComputeLeaderboard returns one page of the leaderboard in strict order.
// It reads only committed state; there are no dirty reads of in-flight
// deltas because every delta is a single committed $inc. Re-running on
// unchanged data yields identical output.
func (e *Engine) ComputeLeaderboard(ctx context.Context, offset, limit int64) ([]Entry, error) {
	if limit <= 0 {
		limit = e.topK
	}

	var rows []models.User
	err := retry.Do(ctx, e.retry, func(ctx context.Context) error {
		var err error
		rows, err = e.users.LeaderboardWindow(ctx, offset, limit)
		return err
	})
	if err != nil {
		if retry.IsTransient(err) {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return nil, err
	}

	entries := make([]Entry, len(rows))
	for i, u := range rows {
		entries[i] = Entry{
			UserID:   u.ID.Hex(),
			FullName: u.FullName,
			Points:   u.GlobalPoints,
			Rank:     offset + int64(i) + 1,
		}
	}
	return entries, nil
}

// UserRank returns the single-row leaderboard view for one user.
func (e *Engine) UserRank(ctx context.Context, userID primitive.ObjectID) (Entry, error) {
	u, err := e.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Entry{}, ErrUnknownUser
		}
		return Entry{}, err
	}
	rank, err := e.users.RankOf(ctx, u)
	if err != nil {
		return Entry{}, err
	}
	return Entry{
		UserID:   u.ID.Hex(),
		FullName: u.FullName,
		Points:   u.GlobalPoints,
		Rank:     rank,
	}, nil
}

// RefreshWindow re-reads the watched top-of-leaderboard window from the
// store. Point deltas applied by this process refresh the window on
// their own; the periodic caller exists so that direct store writes
// (imports, repairs) are eventually observed too.
func (e *Engine) RefreshWindow(ctx context.Context) (bool, error) {
	return e.refreshWindow(ctx)
}
