package role

import (
	"github.com/go-chi/chi/v5"
)

// Routes returns the role management subtree, mounted per conversation at
// /conversations/{conversationID}/roles. Auth is applied by the parent router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ListRoles)
	r.Post("/", h.CreateRole)
	r.Put("/order", h.ReorderRoles)

	r.Route("/{roleID}", func(r chi.Router) {
		r.Patch("/", h.UpdateRole)
		r.Delete("/", h.DeleteRole)
		r.Post("/members", h.AddRoleMembers)
		r.Delete("/members/{memberID}", h.RemoveRoleMember)
	})

	return r
}
