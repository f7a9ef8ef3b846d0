// internal/app/features/events/routes.go
package events

import (
	"github.com/calebdock/comphub/internal/app/features/registrations"
	"github.com/calebdock/comphub/internal/app/system/identity"
	"github.com/go-chi/chi/v5"
)

// Routes returns the router for event endpoints. Registration endpoints
// live under the same /events prefix, so their handler is wired here.
func Routes(h *Handler, regs *registrations.Handler) chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ServeList)
	r.Get("/{eventID}", h.ServeGet)
	r.Get("/{eventID}/registrations", regs.ServeListByEvent)

	r.Group(func(r chi.Router) {
		r.Use(identity.Require)
		r.Post("/", h.ServeCreate)
		r.Post("/{eventID}/publish", h.ServePublish)
		r.Post("/{eventID}/register", regs.ServeRegister)
	})

	return r
}
