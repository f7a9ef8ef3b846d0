// internal/app/features/registrations/handler.go
package registrations

import (
	"context"
	"net/http"

	"github.com/calebdock/comphub/internal/app/coordinator"
	"github.com/calebdock/comphub/internal/app/features/shared/httpapi"
	registrationstore "github.com/calebdock/comphub/internal/app/store/registrations"
	"github.com/calebdock/comphub/internal/app/system/identity"
	"github.com/calebdock/comphub/internal/app/system/ratelimit"
	"github.com/calebdock/comphub/internal/app/system/timeouts"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Handler serves event registration endpoints.
//
// Capacity and duplicate checks live in the store layer, not here: when
// two requests race for the last slot, the losing one comes back with a
// constraint error and is surfaced as a conflict. The handler never
// pre-checks remaining capacity.
type Handler struct {
	Coord   *coordinator.Coordinator
	Regs    *registrationstore.Store
	Limiter *ratelimit.RegistrationLimiter
	Log     *zap.Logger
}

// NewHandler constructs a registrations Handler.
func NewHandler(coord *coordinator.Coordinator, regs *registrationstore.Store, limiter *ratelimit.RegistrationLimiter, logger *zap.Logger) *Handler {
	return &Handler{
		Coord:   coord,
		Regs:    regs,
		Limiter: limiter,
		Log:     logger,
	}
}

// ServeRegister handles POST /api/events/{eventID}/register.
func (h *Handler) ServeRegister(w http.ResponseWriter, r *http.Request) {
	userID, err := identity.UserID(r)
	if err != nil {
		httpapi.WriteError(w, http.StatusUnauthorized, "missing identity")
		return
	}

	eventID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "eventID"))
	if err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, "invalid event id")
		return
	}

	if h.Limiter != nil {
		if allowed, reason := h.Limiter.Check(r, userID.Hex()); !allowed {
			httpapi.WriteError(w, http.StatusTooManyRequests, reason)
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	reg, err := h.Coord.Register(ctx, userID, eventID)
	if err != nil {
		if !coordinator.IsConstraintViolation(err) {
			h.Log.Error("registration failed",
				zap.Error(err),
				zap.String("event_id", eventID.Hex()),
				zap.String("user_id", userID.Hex()))
		}
		httpapi.WriteCoordinatorError(w, err)
		return
	}

	httpapi.WriteJSON(w, http.StatusCreated, reg)
}

// ServeListByEvent handles GET /api/events/{eventID}/registrations.
func (h *Handler) ServeListByEvent(w http.ResponseWriter, r *http.Request) {
	eventID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "eventID"))
	if err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, "invalid event id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	regs, err := h.Regs.ListByEvent(ctx, eventID, 500)
	if err != nil {
		h.Log.Error("registration list failed", zap.Error(err), zap.String("event_id", eventID.Hex()))
		httpapi.WriteError(w, http.StatusServiceUnavailable, "registrations unavailable")
		return
	}

	httpapi.WriteJSON(w, http.StatusOK, map[string]any{"registrations": regs})
}
