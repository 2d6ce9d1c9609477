package auth

import (
	"github.com/go-chi/chi/v5"
)

// Routes returns auth routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/register", h.Register)
	r.Post("/login", h.Login)
	r.Post("/refresh", h.Refresh)
	r.Post("/logout", h.Logout)

	return r
}
