// internal/app/features/users/routes.go
package users

import (
	"github.com/calebdock/comphub/internal/app/system/identity"
	"github.com/go-chi/chi/v5"
)

// Routes returns the router for user endpoints.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.ServeCreate)
	r.Get("/{userID}", h.ServeGet)
	r.Get("/{userID}/badges", h.ServeListBadges)

	r.Group(func(r chi.Router) {
		r.Use(identity.Require)
		r.Post("/{userID}/badges", h.ServeAwardBadge)
	})

	return r
}
