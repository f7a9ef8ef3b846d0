// internal/app/features/heartbeat/handler.go
package heartbeat

import (
	"context"
	"net/http"

	userstore "github.com/calebdock/comphub/internal/app/store/users"
	"github.com/calebdock/comphub/internal/app/system/identity"
	"github.com/calebdock/comphub/internal/app/system/timeouts"
	"go.uber.org/zap"
)

// Handler records liveness pings from connected clients.
type Handler struct {
	Users *userstore.Store
	Log   *zap.Logger
}

// NewHandler creates a new heartbeat handler.
func NewHandler(users *userstore.Store, logger *zap.Logger) *Handler {
	return &Handler{
		Users: users,
		Log:   logger,
	}
}

// ServeHeartbeat handles POST /api/heartbeat.
// Updates the caller's last_active_at timestamp. Failures are logged
// and swallowed; a heartbeat must never surface an error to the client.
func (h *Handler) ServeHeartbeat(w http.ResponseWriter, r *http.Request) {
	userID, err := identity.UserID(r)
	if err != nil {
		w.WriteHeader(http.StatusOK) // silent fail, no identity
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	if err := h.Users.Touch(ctx, userID); err != nil {
		h.Log.Warn("failed to update last_active_at",
			zap.Error(err),
			zap.String("user_id", userID.Hex()))
	}

	w.WriteHeader(http.StatusOK)
}
