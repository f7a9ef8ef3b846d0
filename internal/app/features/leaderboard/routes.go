// internal/app/features/leaderboard/routes.go
package leaderboard

import "github.com/go-chi/chi/v5"

// Routes returns the router for leaderboard endpoints.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ServeList)
	r.Get("/users/{userID}", h.ServeUserRank)
	return r
}
