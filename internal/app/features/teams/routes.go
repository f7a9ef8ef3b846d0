// internal/app/features/teams/routes.go
package teams

import (
	"github.com/calebdock/comphub/internal/app/system/identity"
	"github.com/go-chi/chi/v5"
)

// Routes returns the router for team endpoints.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()

	r.Get("/{teamID}", h.ServeGet)

	r.Group(func(r chi.Router) {
		r.Use(identity.Require)
		r.Post("/", h.ServeCreate)
		r.Post("/join", h.ServeJoin)
	})

	return r
}
