// internal/app/features/ws/routes.go
package ws

import "github.com/go-chi/chi/v5"

// Routes returns the router for the websocket endpoint.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ServeWS)
	return r
}
