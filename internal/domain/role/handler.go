package role

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/convo/convo-api/internal/middleware"
	"github.com/convo/convo-api/internal/pkg/response"
	"github.com/convo/convo-api/internal/pkg/validator"
)

// Handler handles role HTTP requests
type Handler struct {
	service *Service
}

// NewHandler creates role handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// ListRoles lists a conversation's roles
// GET /conversations/{conversationID}/roles
func (h *Handler) ListRoles(w http.ResponseWriter, r *http.Request) {
	actorID := middleware.GetUserID(r.Context())
	conversationID, ok := parseID(w, r, "conversationID")
	if !ok {
		return
	}

	roles, err := h.service.ListRoles(r.Context(), actorID, conversationID)
	if err != nil {
		WriteDenial(w, err)
		return
	}

	out := make([]*RoleResponse, 0, len(roles))
	for _, role := range roles {
		out = append(out, NewRoleResponse(role))
	}
	response.OK(w, out)
}

// CreateRole creates a role
// POST /conversations/{conversationID}/roles
func (h *Handler) CreateRole(w http.ResponseWriter, r *http.Request) {
	actorID := middleware.GetUserID(r.Context())
	conversationID, ok := parseID(w, r, "conversationID")
	if !ok {
		return
	}

	var req CreateRoleRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	role, err := h.service.CreateRole(r.Context(), actorID, conversationID, req.Name)
	if err != nil {
		WriteDenial(w, err)
		return
	}

	response.Created(w, NewRoleResponse(role))
}

// UpdateRole renames or re-permissions a role
// PATCH /conversations/{conversationID}/roles/{roleID}
func (h *Handler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	actorID := middleware.GetUserID(r.Context())
	conversationID, ok := parseID(w, r, "conversationID")
	if !ok {
		return
	}
	roleID, ok := parseID(w, r, "roleID")
	if !ok {
		return
	}

	var req UpdateRoleRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	if err := h.service.UpdateRoleMetadata(r.Context(), actorID, conversationID, roleID, req.Name, req.Permissions); err != nil {
		WriteDenial(w, err)
		return
	}

	response.OK(w, map[string]string{"message": "Role updated"})
}

// DeleteRole deletes a role
// DELETE /conversations/{conversationID}/roles/{roleID}
func (h *Handler) DeleteRole(w http.ResponseWriter, r *http.Request) {
	actorID := middleware.GetUserID(r.Context())
	conversationID, ok := parseID(w, r, "conversationID")
	if !ok {
		return
	}
	roleID, ok := parseID(w, r, "roleID")
	if !ok {
		return
	}

	if err := h.service.DeleteRole(r.Context(), actorID, conversationID, roleID); err != nil {
		WriteDenial(w, err)
		return
	}

	response.NoContent(w)
}

// ReorderRoles reorders role ranks
// PUT /conversations/{conversationID}/roles/order
func (h *Handler) ReorderRoles(w http.ResponseWriter, r *http.Request) {
	actorID := middleware.GetUserID(r.Context())
	conversationID, ok := parseID(w, r, "conversationID")
	if !ok {
		return
	}

	var req ReorderRolesRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	if err := h.service.ReorderRoleLevels(r.Context(), actorID, conversationID, req.RoleIDs); err != nil {
		WriteDenial(w, err)
		return
	}

	response.OK(w, map[string]string{"message": "Roles reordered"})
}

// AddRoleMembers grants a role to members
// POST /conversations/{conversationID}/roles/{roleID}/members
func (h *Handler) AddRoleMembers(w http.ResponseWriter, r *http.Request) {
	actorID := middleware.GetUserID(r.Context())
	conversationID, ok := parseID(w, r, "conversationID")
	if !ok {
		return
	}
	roleID, ok := parseID(w, r, "roleID")
	if !ok {
		return
	}

	var req AddRoleMembersRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	if err := h.service.AddRoleMembers(r.Context(), actorID, conversationID, roleID, req.MemberIDs); err != nil {
		WriteDenial(w, err)
		return
	}

	response.OK(w, map[string]string{"message": "Role members added"})
}

// RemoveRoleMember revokes a role grant
// DELETE /conversations/{conversationID}/roles/{roleID}/members/{memberID}
func (h *Handler) RemoveRoleMember(w http.ResponseWriter, r *http.Request) {
	actorID := middleware.GetUserID(r.Context())
	conversationID, ok := parseID(w, r, "conversationID")
	if !ok {
		return
	}
	roleID, ok := parseID(w, r, "roleID")
	if !ok {
		return
	}
	memberID, ok := parseID(w, r, "memberID")
	if !ok {
		return
	}

	if err := h.service.RemoveRoleMember(r.Context(), actorID, conversationID, roleID, memberID); err != nil {
		WriteDenial(w, err)
		return
	}

	response.NoContent(w)
}

// MuteMember mutes or unmutes a member
// PUT /conversations/{conversationID}/members/{memberID}/mute
func (h *Handler) MuteMember(w http.ResponseWriter, r *http.Request) {
	actorID := middleware.GetUserID(r.Context())
	conversationID, ok := parseID(w, r, "conversationID")
	if !ok {
		return
	}
	memberID, ok := parseID(w, r, "memberID")
	if !ok {
		return
	}

	var req MuteMemberRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	if err := h.service.MuteMember(r.Context(), actorID, conversationID, memberID, req.MutedUntil); err != nil {
		WriteDenial(w, err)
		return
	}

	response.OK(w, map[string]string{"message": "Member mute updated"})
}

// KickMember removes a member from the conversation
// DELETE /conversations/{conversationID}/members/{memberID}
func (h *Handler) KickMember(w http.ResponseWriter, r *http.Request) {
	actorID := middleware.GetUserID(r.Context())
	conversationID, ok := parseID(w, r, "conversationID")
	if !ok {
		return
	}
	memberID, ok := parseID(w, r, "memberID")
	if !ok {
		return
	}

	if err := h.service.KickMember(r.Context(), actorID, conversationID, memberID); err != nil {
		WriteDenial(w, err)
		return
	}

	response.NoContent(w)
}

func parseID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		response.BadRequest(w, "Invalid "+param)
		return uuid.Nil, false
	}
	return id, true
}

// WriteDenial maps engine errors to API responses; the error kind is the
// contract, the message is the stable reason.
func WriteDenial(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrConversationNotFound),
		errors.Is(err, ErrRoleNotFound),
		errors.Is(err, ErrMemberNotFound):
		response.NotFound(w, err.Error())
	case errors.Is(err, ErrNotMember),
		errors.Is(err, ErrMissingPermission),
		errors.Is(err, ErrRankViolation),
		errors.Is(err, ErrOwnerImmune),
		errors.Is(err, ErrAdminImmune),
		errors.Is(err, ErrDefaultRoleProtected),
		errors.Is(err, ErrDirectImmutable):
		response.Forbidden(w, err.Error())
	case errors.Is(err, ErrReservedRoleName),
		errors.Is(err, ErrAlreadyRoleMember),
		errors.Is(err, ErrConcurrentUpdate):
		response.Conflict(w, err.Error())
	case errors.Is(err, ErrReorderTooShort),
		errors.Is(err, ErrDuplicateIDs),
		errors.Is(err, ErrInvalidPermission),
		errors.Is(err, ErrMuteDurationBounds):
		response.BadRequest(w, err.Error())
	default:
		response.InternalError(w)
	}
}
