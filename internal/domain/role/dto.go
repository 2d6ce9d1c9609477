package role

import (
	"time"

	"github.com/google/uuid"
)

// CreateRoleRequest represents request to create a role
type CreateRoleRequest struct {
	Name string `json:"name" validate:"required,min=1,max=64"`
}

// UpdateRoleRequest represents request to rename or re-permission a role
type UpdateRoleRequest struct {
	Name        *string  `json:"name,omitempty" validate:"omitempty,min=1,max=64"`
	Permissions []string `json:"permissions,omitempty" validate:"omitempty,dive,permission"`
}

// ReorderRolesRequest represents request to reorder role ranks
type ReorderRolesRequest struct {
	RoleIDs []uuid.UUID `json:"role_ids" validate:"required,min=2,unique"`
}

// AddRoleMembersRequest represents request to grant a role to members
type AddRoleMembersRequest struct {
	MemberIDs []uuid.UUID `json:"member_ids" validate:"required,min=1,unique"`
}

// MuteMemberRequest represents request to mute a member; a null muted_until
// clears an existing mute
type MuteMemberRequest struct {
	MutedUntil *time.Time `json:"muted_until"`
}

// RoleResponse represents a role with its rank flattened for clients
type RoleResponse struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Permissions []string  `json:"permissions"`
	Rank        *int      `json:"rank,omitempty"`
	IsDefault   bool      `json:"is_default"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewRoleResponse maps a role entity to its response shape
func NewRoleResponse(r *Role) *RoleResponse {
	resp := &RoleResponse{
		ID:          r.ID,
		Name:        r.Name,
		Permissions: r.Permissions,
		IsDefault:   r.IsDefault,
		CreatedAt:   r.CreatedAt,
	}
	if r.Rank.Leveled {
		level := r.Rank.Level
		resp.Rank = &level
	}
	return resp
}
