// internal/app/features/events/handler.go
package events

import (
	"context"
	"net/http"
	"time"

	"github.com/calebdock/comphub/internal/app/coordinator"
	"github.com/calebdock/comphub/internal/app/features/shared/httpapi"
	eventstore "github.com/calebdock/comphub/internal/app/store/events"
	"github.com/calebdock/comphub/internal/app/system/identity"
	"github.com/calebdock/comphub/internal/app/system/timeouts"
	"github.com/calebdock/comphub/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Handler serves event management endpoints.
type Handler struct {
	Coord  *coordinator.Coordinator
	Events *eventstore.Store
	Log    *zap.Logger
}

// NewHandler constructs an events Handler.
func NewHandler(coord *coordinator.Coordinator, events *eventstore.Store, logger *zap.Logger) *Handler {
	return &Handler{
		Coord:  coord,
		Events: events,
		Log:    logger,
	}
}

// createRequest is the JSON body for creating an event.
type createRequest struct {
	Name               string    `json:"name"`
	Description        string    `json:"description"`
	OrganizationID     string    `json:"organization_id"`
	MaxParticipants    int64     `json:"max_participants"`
	Publish            bool      `json:"publish"`
	RegistrationOpens  time.Time `json:"registration_opens"`
	RegistrationCloses time.Time `json:"registration_closes"`
	StartsAt           time.Time `json:"starts_at"`
	EndsAt             time.Time `json:"ends_at"`
}

// ServeCreate handles POST /api/events.
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
	if req.MaxParticipants < 0 {
		httpapi.WriteError(w, http.StatusBadRequest, "max_participants cannot be negative")
		return
	}
	orgID, err := primitive.ObjectIDFromHex(req.OrganizationID)
	if err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, "invalid organization id")
		return
	}

	status := models.EventDraft
	if req.Publish {
		status = models.EventPublished
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	ev, err := h.Coord.CreateEvent(ctx, models.Event{
		Name:               req.Name,
		Description:        req.Description,
		OrganizationID:     orgID,
		CreatedBy:          userID,
		Status:             status,
		MaxParticipants:    req.MaxParticipants,
		RegistrationOpens:  req.RegistrationOpens,
		RegistrationCloses: req.RegistrationCloses,
		StartsAt:           req.StartsAt,
		EndsAt:             req.EndsAt,
	})
	if err != nil {
		h.Log.Error("event create failed", zap.Error(err), zap.String("name", req.Name))
		httpapi.WriteCoordinatorError(w, err)
		return
	}

	httpapi.WriteJSON(w, http.StatusCreated, ev)
}

// ServePublish handles POST /api/events/{eventID}/publish.
func (h *Handler) ServePublish(w http.ResponseWriter, r *http.Request) {
	eventID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "eventID"))
	if err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, "invalid event id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if err := h.Coord.PublishEvent(ctx, eventID); err != nil {
		httpapi.WriteCoordinatorError(w, err)
		return
	}

	httpapi.WriteJSON(w, http.StatusOK, map[string]string{"status": models.EventPublished})
}

// ServeGet handles GET /api/events/{eventID}.
func (h *Handler) ServeGet(w http.ResponseWriter, r *http.Request) {
	eventID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "eventID"))
	if err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, "invalid event id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	ev, err := h.Events.GetByID(ctx, eventID)
	if err != nil {
		httpapi.WriteError(w, http.StatusNotFound, "event not found")
		return
	}

	httpapi.WriteJSON(w, http.StatusOK, ev)
}

// ServeList handles GET /api/events?org=<id>.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	orgID, err := primitive.ObjectIDFromHex(r.URL.Query().Get("org"))
	if err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, "org query parameter is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	list, err := h.Events.ListByOrg(ctx, orgID, 100)
	if err != nil {
		h.Log.Error("event list failed", zap.Error(err), zap.String("org_id", orgID.Hex()))
		httpapi.WriteError(w, http.StatusServiceUnavailable, "events unavailable")
		return
	}

	httpapi.WriteJSON(w, http.StatusOK, map[string]any{"events": list})
}
