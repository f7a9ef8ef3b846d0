// internal/app/features/leaderboard/handler.go
package leaderboard

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/calebdock/comphub/internal/app/features/shared/httpapi"
	"github.com/calebdock/comphub/internal/app/ranking"
	"github.com/calebdock/comphub/internal/app/system/timeouts"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const (
	defaultLimit = 25
	maxLimit     = 100
)

// Handler serves read-only leaderboard views backed by the ranking engine.
type Handler struct {
	Ranking *ranking.Engine
	Log     *zap.Logger
}

// NewHandler constructs a leaderboard Handler.
func NewHandler(engine *ranking.Engine, logger *zap.Logger) *Handler {
	return &Handler{
		Ranking: engine,
		Log:     logger,
	}
}

// ServeList handles GET /leaderboard?offset=N&limit=M.
//
// Entries come back in strict rank order; equal point totals are broken
// deterministically, so the same query always yields the same ordering.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	offset := parseQueryInt(r, "offset", 0)
	limit := parseQueryInt(r, "limit", defaultLimit)
	if limit > maxLimit {
		limit = maxLimit
	}
	if limit <= 0 || offset < 0 {
		httpapi.WriteError(w, http.StatusBadRequest, "offset and limit must be non-negative")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	entries, err := h.Ranking.ComputeLeaderboard(ctx, offset, limit)
	if err != nil {
		h.Log.Error("leaderboard query failed", zap.Error(err))
		httpapi.WriteError(w, http.StatusServiceUnavailable, "leaderboard unavailable")
		return
	}

	httpapi.WriteJSON(w, http.StatusOK, map[string]any{
		"offset":  offset,
		"limit":   limit,
		"entries": entries,
	})
}

// ServeUserRank handles GET /leaderboard/users/{userID}.
func (h *Handler) ServeUserRank(w http.ResponseWriter, r *http.Request) {
	userID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "userID"))
	if err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	entry, err := h.Ranking.UserRank(ctx, userID)
	if err != nil {
		if errors.Is(err, ranking.ErrUnknownUser) {
			httpapi.WriteError(w, http.StatusNotFound, "user not found")
			return
		}
		h.Log.Error("user rank query failed", zap.Error(err), zap.String("user_id", userID.Hex()))
		httpapi.WriteError(w, http.StatusServiceUnavailable, "leaderboard unavailable")
		return
	}

	httpapi.WriteJSON(w, http.StatusOK, entry)
}

func parseQueryInt(r *http.Request, key string, fallback int64) int64 {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return -1
	}
	return n
}
