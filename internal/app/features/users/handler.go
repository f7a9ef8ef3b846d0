// internal/app/features/users/handler.go
package users

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/calebdock/comphub/internal/app/features/shared/httpapi"
	"github.com/calebdock/comphub/internal/app/ranking"
	badgestore "github.com/calebdock/comphub/internal/app/store/badges"
	userstore "github.com/calebdock/comphub/internal/app/store/users"
	"github.com/calebdock/comphub/internal/app/system/timeouts"
	"github.com/calebdock/comphub/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Handler serves user accounts and badge awards.
type Handler struct {
	Users   *userstore.Store
	Badges  *badgestore.Store
	Ranking *ranking.Engine
	Log     *zap.Logger
}

// NewHandler constructs a users Handler.
func NewHandler(users *userstore.Store, badges *badgestore.Store, engine *ranking.Engine, logger *zap.Logger) *Handler {
	return &Handler{
		Users:   users,
		Badges:  badges,
		Ranking: engine,
		Log:     logger,
	}
}

// createRequest is the JSON body for creating a user.
type createRequest struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

// ServeCreate handles POST /api/users.
func (h *Handler) ServeCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpapi.Decode(r, &req); err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.FullName == "" || req.Email == "" {
		httpapi.WriteError(w, http.StatusBadRequest, "full_name and email are required")
		return
	}
	if req.Role == "" {
		req.Role = "participant"
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	u, err := h.Users.Create(ctx, models.User{
		FullName: req.FullName,
		Email:    req.Email,
		Role:     req.Role,
	})
	if err != nil {
		if errors.Is(err, userstore.ErrDuplicateEmail) {
			httpapi.WriteError(w, http.StatusConflict, err.Error())
			return
		}
		h.Log.Error("user create failed", zap.Error(err), zap.String("email", req.Email))
		httpapi.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	httpapi.WriteJSON(w, http.StatusCreated, u)
}

// ServeGet handles GET /api/users/{userID}.
func (h *Handler) ServeGet(w http.ResponseWriter, r *http.Request) {
	userID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "userID"))
	if err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	u, err := h.Users.GetByID(ctx, userID)
	if err != nil {
		httpapi.WriteError(w, http.StatusNotFound, "user not found")
		return
	}

	httpapi.WriteJSON(w, http.StatusOK, u)
}

// awardRequest is the JSON body for awarding a badge.
type awardRequest struct {
	Name    string `json:"name"`
	Points  int64  `json:"points"`
	EventID string `json:"event_id"`
}

// ServeAwardBadge handles POST /api/users/{userID}/badges. The award
// goes through the ranking engine so the point bump and the broadcast
// happen together.
func (h *Handler) ServeAwardBadge(w http.ResponseWriter, r *http.Request) {
	userID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "userID"))
	if err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	var req awardRequest
	if err := httpapi.Decode(r, &req); err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.Name == "" {
		httpapi.WriteError(w, http.StatusBadRequest, "name is required")
		return
	}

	badge := models.Badge{
		UserID:    userID,
		Name:      req.Name,
		Points:    req.Points,
		AwardedAt: time.Now().UTC(),
	}
	if req.EventID != "" {
		eventID, err := primitive.ObjectIDFromHex(req.EventID)
		if err != nil {
			httpapi.WriteError(w, http.StatusBadRequest, "invalid event id")
			return
		}
		badge.EventID = &eventID
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	awarded, total, err := h.Ranking.AwardBadge(ctx, badge)
	if err != nil {
		switch {
		case errors.Is(err, ranking.ErrUnknownUser):
			httpapi.WriteError(w, http.StatusNotFound, "user not found")
		case errors.Is(err, ranking.ErrUnavailable):
			httpapi.WriteError(w, http.StatusServiceUnavailable, "ranking unavailable")
		default:
			h.Log.Error("badge award failed", zap.Error(err), zap.String("user_id", userID.Hex()))
			httpapi.WriteError(w, http.StatusInternalServerError, "badge award failed")
		}
		return
	}

	httpapi.WriteJSON(w, http.StatusCreated, map[string]any{
		"badge":     awarded,
		"new_total": total,
	})
}

// ServeListBadges handles GET /api/users/{userID}/badges.
func (h *Handler) ServeListBadges(w http.ResponseWriter, r *http.Request) {
	userID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "userID"))
	if err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	badges, err := h.Badges.ListByUser(ctx, userID)
	if err != nil {
		h.Log.Error("badge list failed", zap.Error(err), zap.String("user_id", userID.Hex()))
		httpapi.WriteError(w, http.StatusServiceUnavailable, "badges unavailable")
		return
	}

	httpapi.WriteJSON(w, http.StatusOK, map[string]any{"badges": badges})
}
