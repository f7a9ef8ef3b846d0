// internal/app/features/submissions/routes.go
package submissions

import (
	"github.com/calebdock/comphub/internal/app/system/identity"
	"github.com/go-chi/chi/v5"
)

// Routes returns the router for submission and evaluation endpoints.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ServeListByEvent)

	r.Group(func(r chi.Router) {
		r.Use(identity.Require)
		r.Post("/", h.ServeSubmit)
		r.Post("/{submissionID}/evaluations", h.ServeEvaluate)
		r.Post("/evaluations/{evaluationID}/finalize", h.ServeFinalize)
	})

	return r
}
