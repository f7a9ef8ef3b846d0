// internal/app/features/announcements/handler.go
package announcements

import (
	"net/http"

	"github.com/calebdock/comphub/internal/app/features/shared/httpapi"
	"github.com/calebdock/comphub/internal/app/hub"
	"github.com/calebdock/comphub/internal/app/system/identity"
	domevents "github.com/calebdock/comphub/internal/domain/events"
	"go.uber.org/zap"
)

// Handler broadcasts organizer announcements to connected clients.
// Delivery is at-most-once and in-memory only; an announcement posted
// while a client is disconnected is simply not seen by that client.
type Handler struct {
	Hub *hub.Hub
	Log *zap.Logger
}

// NewHandler constructs an announcements Handler.
func NewHandler(h *hub.Hub, logger *zap.Logger) *Handler {
	return &Handler{
		Hub: h,
		Log: logger,
	}
}

// announceRequest is the JSON body for posting an announcement.
type announceRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// ServeAnnounce handles POST /api/announcements.
func (h *Handler) ServeAnnounce(w http.ResponseWriter, r *http.Request) {
	userID, err := identity.UserID(r)
	if err != nil {
		httpapi.WriteError(w, http.StatusUnauthorized, "missing identity")
		return
	}

	var req announceRequest
	if err := httpapi.Decode(r, &req); err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.Title == "" {
		httpapi.WriteError(w, http.StatusBadRequest, "title is required")
		return
	}

	h.Hub.Publish(hub.Message{
		Type: domevents.TypeAnnouncement,
		Data: domevents.AnnouncementData{
			Title: req.Title,
			Body:  req.Body,
		},
	})

	h.Log.Info("announcement broadcast",
		zap.String("title", req.Title),
		zap.String("posted_by", userID.Hex()))

	httpapi.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "broadcast"})
}
