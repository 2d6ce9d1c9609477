package chat

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/convo/convo-api/internal/domain/role"
)

// Routes returns conversation routes. The role handler owns role management
// plus the member mute/kick endpoints, which the authorization engine guards.
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler, roles *role.Handler) chi.Router {
	r := chi.NewRouter()

	r.Use(authMiddleware)

	r.Get("/", h.ListConversations)
	r.Post("/", h.CreateConversation)
	r.Get("/socket", h.Socket)

	r.Route("/{conversationID}", func(r chi.Router) {
		r.Get("/", h.GetConversation)
		r.Put("/name", h.Rename)
		r.Put("/avatar", h.UpdateAvatar)

		r.Get("/members", h.ListMembers)
		r.Post("/members", h.AddMembers)
		r.Post("/join", h.Join)
		r.Post("/leave", h.Leave)
		r.Put("/members/{memberID}/mute", roles.MuteMember)
		r.Delete("/members/{memberID}", roles.KickMember)

		r.Get("/messages", h.ListMessages)
		r.Post("/messages", h.SendMessage)
		r.Delete("/messages/{messageID}", h.DeleteMessage)

		r.Mount("/roles", roles.Routes())
	})

	return r
}
