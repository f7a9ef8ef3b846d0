// internal/app/features/teams/handler.go
package teams

import (
	"context"
	"net/http"

	"github.com/calebdock/comphub/internal/app/coordinator"
	"github.com/calebdock/comphub/internal/app/features/shared/httpapi"
	memberstore "github.com/calebdock/comphub/internal/app/store/teammembers"
	teamstore "github.com/calebdock/comphub/internal/app/store/teams"
	"github.com/calebdock/comphub/internal/app/system/identity"
	"github.com/calebdock/comphub/internal/app/system/timeouts"
	"github.com/calebdock/comphub/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Handler serves team creation and membership endpoints.
type Handler struct {
	Coord   *coordinator.Coordinator
	Teams   *teamstore.Store
	Members *memberstore.Store
	Log     *zap.Logger
}

// NewHandler constructs a teams Handler.
func NewHandler(coord *coordinator.Coordinator, teams *teamstore.Store, members *memberstore.Store, logger *zap.Logger) *Handler {
	return &Handler{
		Coord:   coord,
		Teams:   teams,
		Members: members,
		Log:     logger,
	}
}

// createRequest is the JSON body for creating a team.
type createRequest struct {
	EventID    string `json:"event_id"`
	Name       string `json:"name"`
	MaxMembers int64  `json:"max_members"`
	InviteCode string `json:"invite_code"`
}

// ServeCreate handles POST /api/teams. The caller becomes the leader.
func (h *Handler) ServeCreate(w http.ResponseWriter, r *http.Request) {
	userID, err := identity.UserID(r)
	if err != nil {
		httpapi.WriteError(w, http.StatusUnauthorized, "missing identity")
		return
	}

	var req createRequest
	if err := httpapi.Decode(r, &req); err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.Name == "" {
		httpapi.WriteError(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.MaxMembers <= 0 {
		httpapi.WriteError(w, http.StatusBadRequest, "max_members must be positive")
		return
	}
	eventID, err := primitive.ObjectIDFromHex(req.EventID)
	if err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, "invalid event id")
		return
	}

	inviteCode := req.InviteCode
	if inviteCode == "" {
		inviteCode = coordinator.NewInviteCode()
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	team, err := h.Coord.CreateTeam(ctx, models.Team{
		EventID:    eventID,
		Name:       req.Name,
		LeaderID:   userID,
		MaxMembers: req.MaxMembers,
		InviteCode: inviteCode,
	})
	if err != nil {
		if !coordinator.IsConstraintViolation(err) {
			h.Log.Error("team create failed", zap.Error(err), zap.String("name", req.Name))
		}
		httpapi.WriteCoordinatorError(w, err)
		return
	}

	httpapi.WriteJSON(w, http.StatusCreated, team)
}

// joinRequest is the JSON body for joining a team. Either team_id or
// invite_code must be present.
type joinRequest struct {
	TeamID     string `json:"team_id"`
	InviteCode string `json:"invite_code"`
}

// ServeJoin handles POST /api/teams/join.
func (h *Handler) ServeJoin(w http.ResponseWriter, r *http.Request) {
	userID, err := identity.UserID(r)
	if err != nil {
		httpapi.WriteError(w, http.StatusUnauthorized, "missing identity")
		return
	}

	var req joinRequest
	if err := httpapi.Decode(r, &req); err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.TeamID == "" && req.InviteCode == "" {
		httpapi.WriteError(w, http.StatusBadRequest, "team_id or invite_code is required")
		return
	}

	teamID := primitive.NilObjectID
	if req.TeamID != "" {
		teamID, err = primitive.ObjectIDFromHex(req.TeamID)
		if err != nil {
			httpapi.WriteError(w, http.StatusBadRequest, "invalid team id")
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	member, err := h.Coord.JoinTeam(ctx, userID, teamID, req.InviteCode)
	if err != nil {
		if !coordinator.IsConstraintViolation(err) {
			h.Log.Error("team join failed", zap.Error(err), zap.String("user_id", userID.Hex()))
		}
		httpapi.WriteCoordinatorError(w, err)
		return
	}

	httpapi.WriteJSON(w, http.StatusCreated, member)
}

// ServeGet handles GET /api/teams/{teamID}, returning the team and its
// roster.
func (h *Handler) ServeGet(w http.ResponseWriter, r *http.Request) {
	teamID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "teamID"))
	if err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, "invalid team id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	team, err := h.Teams.GetByID(ctx, teamID)
	if err != nil {
		httpapi.WriteError(w, http.StatusNotFound, "team not found")
		return
	}
	roster, err := h.Members.ListByTeam(ctx, teamID)
	if err != nil {
		h.Log.Error("roster list failed", zap.Error(err), zap.String("team_id", teamID.Hex()))
		httpapi.WriteError(w, http.StatusServiceUnavailable, "team unavailable")
		return
	}

	httpapi.WriteJSON(w, http.StatusOK, map[string]any{
		"team":    team,
		"members": roster,
	})
}
