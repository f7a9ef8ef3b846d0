// internal/app/features/announcements/routes.go
package announcements

import (
	"github.com/calebdock/comphub/internal/app/system/identity"
	"github.com/go-chi/chi/v5"
)

// Routes returns the router for announcement endpoints.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()

	r.Use(identity.Require)
	r.Post("/", h.ServeAnnounce)

	return r
}
