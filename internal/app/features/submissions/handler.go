// internal/app/features/submissions/handler.go
package submissions

import (
	"context"
	"net/http"

	"github.com/calebdock/comphub/internal/app/coordinator"
	"github.com/calebdock/comphub/internal/app/features/shared/httpapi"
	submissionstore "github.com/calebdock/comphub/internal/app/store/submissions"
	"github.com/calebdock/comphub/internal/app/system/identity"
	"github.com/calebdock/comphub/internal/app/system/timeouts"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Handler serves the submission and evaluation workflow.
type Handler struct {
	Coord *coordinator.Coordinator
	Subs  *submissionstore.Store
	Log   *zap.Logger
}

// NewHandler constructs a submissions Handler.
func NewHandler(coord *coordinator.Coordinator, subs *submissionstore.Store, logger *zap.Logger) *Handler {
	return &Handler{
		Coord: coord,
		Subs:  subs,
		Log:   logger,
	}
}

// submitRequest is the JSON body for submitting work.
type submitRequest struct {
	TeamID  string `json:"team_id"`
	EventID string `json:"event_id"`
	Round   int    `json:"round"`
	Title   string `json:"title"`
}

// ServeSubmit handles POST /api/submissions.
func (h *Handler) ServeSubmit(w http.ResponseWriter, r *http.Request) {
	userID, err := identity.UserID(r)
	if err != nil {
		httpapi.WriteError(w, http.StatusUnauthorized, "missing identity")
		return
	}

	var req submitRequest
	if err := httpapi.Decode(r, &req); err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	teamID, err := primitive.ObjectIDFromHex(req.TeamID)
	if err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, "invalid team id")
		return
	}
	eventID, err := primitive.ObjectIDFromHex(req.EventID)
	if err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, "invalid event id")
		return
	}
	if req.Round < 0 {
		httpapi.WriteError(w, http.StatusBadRequest, "round cannot be negative")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	sub, err := h.Coord.Submit(ctx, teamID, eventID, userID, req.Round, req.Title)
	if err != nil {
		if !coordinator.IsConstraintViolation(err) {
			h.Log.Error("submit failed", zap.Error(err), zap.String("team_id", teamID.Hex()))
		}
		httpapi.WriteCoordinatorError(w, err)
		return
	}

	httpapi.WriteJSON(w, http.StatusCreated, sub)
}

// evaluateRequest is the JSON body for scoring a submission.
type evaluateRequest struct {
	Score    int64  `json:"score"`
	Comments string `json:"comments"`
}

// ServeEvaluate handles POST /api/submissions/{submissionID}/evaluations.
// The caller is the judge.
func (h *Handler) ServeEvaluate(w http.ResponseWriter, r *http.Request) {
	judgeID, err := identity.UserID(r)
	if err != nil {
		httpapi.WriteError(w, http.StatusUnauthorized, "missing identity")
		return
	}
	submissionID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "submissionID"))
	if err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, "invalid submission id")
		return
	}

	var req evaluateRequest
	if err := httpapi.Decode(r, &req); err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	ev, err := h.Coord.Evaluate(ctx, submissionID, judgeID, req.Score, req.Comments)
	if err != nil {
		if !coordinator.IsConstraintViolation(err) {
			h.Log.Error("evaluate failed", zap.Error(err), zap.String("submission_id", submissionID.Hex()))
		}
		httpapi.WriteCoordinatorError(w, err)
		return
	}

	httpapi.WriteJSON(w, http.StatusCreated, ev)
}

// ServeFinalize handles POST /api/submissions/evaluations/{evaluationID}/finalize.
// Finalizing applies the score to every team member's point total; the
// store guarantees it happens at most once no matter how many callers
// race.
func (h *Handler) ServeFinalize(w http.ResponseWriter, r *http.Request) {
	evaluationID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "evaluationID"))
	if err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, "invalid evaluation id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	if err := h.Coord.FinalizeEvaluation(ctx, evaluationID); err != nil {
		if !coordinator.IsConstraintViolation(err) {
			h.Log.Error("finalize failed", zap.Error(err), zap.String("evaluation_id", evaluationID.Hex()))
		}
		httpapi.WriteCoordinatorError(w, err)
		return
	}

	httpapi.WriteJSON(w, http.StatusOK, map[string]string{"status": "finalized"})
}

// ServeListByEvent handles GET /api/submissions?event=<id>.
func (h *Handler) ServeListByEvent(w http.ResponseWriter, r *http.Request) {
	eventID, err := primitive.ObjectIDFromHex(r.URL.Query().Get("event"))
	if err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, "event query parameter is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	subs, err := h.Subs.ListByEvent(ctx, eventID, r.URL.Query().Get("status"))
	if err != nil {
		h.Log.Error("submission list failed", zap.Error(err), zap.String("event_id", eventID.Hex()))
		httpapi.WriteError(w, http.StatusServiceUnavailable, "submissions unavailable")
		return
	}

	httpapi.WriteJSON(w, http.StatusOK, map[string]any{"submissions": subs})
}
