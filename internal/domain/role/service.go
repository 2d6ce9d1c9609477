package role

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Service exposes the role hierarchy operations. Every mutation is authorized
// through the gate before it touches the store.
type Service struct {
	repo     Repository
	registry Registry
	gate     *Gate
}

// NewService creates the role service
func NewService(repo Repository, registry Registry) *Service {
	return &Service{
		repo:     repo,
		registry: registry,
		gate:     NewGate(repo, registry),
	}
}

// Gate returns the authorization gate for collaborators (message moderation,
// conversation rename/avatar) that guard their own mutations.
func (s *Service) Gate() *Gate {
	return s.gate
}

// ListRoles returns a conversation's roles, highest rank first
func (s *Service) ListRoles(ctx context.Context, actorID, conversationID uuid.UUID) ([]*Role, error) {
	conv, err := s.registry.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, ErrConversationNotFound
	}
	membership, err := s.registry.GetMembership(ctx, conversationID, actorID)
	if err != nil {
		return nil, err
	}
	if membership == nil {
		if conv.Private || conv.Kind == ConversationDirect {
			return nil, ErrConversationNotFound
		}
		return nil, ErrNotMember
	}
	return s.repo.ListByConversation(ctx, conversationID)
}

// CreateRole creates a new role at the bottom of the hierarchy
func (s *Service) CreateRole(ctx context.Context, actorID, conversationID uuid.UUID, name string) (*Role, error) {
	if _, err := s.gate.Authorize(ctx, ActionManageRoles, actorID, conversationID, nil); err != nil {
		return nil, err
	}
	if strings.EqualFold(name, DefaultRoleName) {
		return nil, ErrReservedRoleName
	}

	role, err := s.repo.CreateRole(ctx, conversationID, name)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("conversation_id", conversationID.String()).
		Str("role_id", role.ID.String()).
		Int("rank", role.Rank.Level).
		Msg("Role created")
	return role, nil
}

// DeleteRole removes a role and shifts lower-ranked roles up
func (s *Service) DeleteRole(ctx context.Context, actorID, conversationID, roleID uuid.UUID) error {
	if _, err := s.gate.Authorize(ctx, ActionManageRoles, actorID, conversationID, nil); err != nil {
		return err
	}

	role, err := s.loadRole(ctx, conversationID, roleID)
	if err != nil {
		return err
	}
	if role.IsDefault {
		return ErrDefaultRoleProtected
	}

	return s.repo.DeleteRole(ctx, conversationID, roleID)
}

// ReorderRoleLevels re-packs ranks for the given roles per the dense range
// reorder: selected roles take the window's lowest ranks in the order given,
// unselected roles inside the window are pushed down behind them.
func (s *Service) ReorderRoleLevels(ctx context.Context, actorID, conversationID uuid.UUID, roleIDs []uuid.UUID) error {
	if _, err := s.gate.Authorize(ctx, ActionManageRoles, actorID, conversationID, nil); err != nil {
		return err
	}
	return s.repo.Reorder(ctx, conversationID, roleIDs)
}

// UpdateRoleMetadata renames a role and/or replaces its permission set
func (s *Service) UpdateRoleMetadata(ctx context.Context, actorID, conversationID, roleID uuid.UUID, name *string, permissions []string) error {
	if _, err := s.gate.Authorize(ctx, ActionManageRoles, actorID, conversationID, nil); err != nil {
		return err
	}

	role, err := s.loadRole(ctx, conversationID, roleID)
	if err != nil {
		return err
	}
	if role.IsDefault {
		return ErrDefaultRoleProtected
	}
	if name != nil && strings.EqualFold(*name, DefaultRoleName) {
		return ErrReservedRoleName
	}
	for _, p := range permissions {
		if !IsValidPermission(Permission(p)) {
			return ErrInvalidPermission
		}
	}

	return s.repo.UpdateRole(ctx, roleID, name, permissions)
}

// AddRoleMembers grants a role to each listed member. The actor must outrank
// every target.
func (s *Service) AddRoleMembers(ctx context.Context, actorID, conversationID, roleID uuid.UUID, memberIDs []uuid.UUID) error {
	seen := make(map[uuid.UUID]bool, len(memberIDs))
	for _, id := range memberIDs {
		if seen[id] {
			return ErrDuplicateIDs
		}
		seen[id] = true
	}

	role, err := s.loadRoleAuthorized(ctx, actorID, conversationID, roleID)
	if err != nil {
		return err
	}

	// Authorize every target before the first grant is written; a denial
	// anywhere in the batch must not leave a partial result behind.
	for _, memberID := range memberIDs {
		id := memberID
		if _, err := s.gate.Authorize(ctx, ActionManageRoles, actorID, conversationID, &id); err != nil {
			return err
		}
	}
	return s.repo.AddRoleMembers(ctx, role.ID, memberIDs)
}

// RemoveRoleMember revokes a role grant from a member
func (s *Service) RemoveRoleMember(ctx context.Context, actorID, conversationID, roleID, memberID uuid.UUID) error {
	role, err := s.loadRoleAuthorized(ctx, actorID, conversationID, roleID)
	if err != nil {
		return err
	}
	if _, err := s.gate.Authorize(ctx, ActionManageRoles, actorID, conversationID, &memberID); err != nil {
		return err
	}
	return s.repo.RemoveRoleMember(ctx, role.ID, memberID)
}

// MuteMember mutes a member until the given time, or unmutes on nil. The
// duration bound is validated before authorization runs.
func (s *Service) MuteMember(ctx context.Context, actorID, conversationID, memberID uuid.UUID, mutedUntil *time.Time) error {
	if mutedUntil != nil && !validMuteDeadline(time.Now(), *mutedUntil) {
		return ErrMuteDurationBounds
	}
	if _, err := s.gate.Authorize(ctx, ActionMuteMember, actorID, conversationID, &memberID); err != nil {
		return err
	}
	return s.registry.SetMutedUntil(ctx, conversationID, memberID, mutedUntil)
}

// KickMember removes a member from the conversation
func (s *Service) KickMember(ctx context.Context, actorID, conversationID, memberID uuid.UUID) error {
	if _, err := s.gate.Authorize(ctx, ActionKickMember, actorID, conversationID, &memberID); err != nil {
		return err
	}

	if err := s.registry.RemoveMembership(ctx, conversationID, memberID); err != nil {
		return err
	}

	log.Info().
		Str("conversation_id", conversationID.String()).
		Str("member_id", memberID.String()).
		Msg("Member kicked")
	return nil
}

// Authorize exposes the gate's decision procedure directly
func (s *Service) Authorize(ctx context.Context, action Action, actorID, conversationID uuid.UUID, targetID *uuid.UUID) (*Decision, error) {
	return s.gate.Authorize(ctx, action, actorID, conversationID, targetID)
}

func (s *Service) loadRole(ctx context.Context, conversationID, roleID uuid.UUID) (*Role, error) {
	role, err := s.repo.GetRoleByID(ctx, roleID)
	if err != nil {
		return nil, err
	}
	if role == nil || role.ConversationID != conversationID {
		return nil, ErrRoleNotFound
	}
	return role, nil
}

func (s *Service) loadRoleAuthorized(ctx context.Context, actorID, conversationID, roleID uuid.UUID) (*Role, error) {
	if _, err := s.gate.Authorize(ctx, ActionManageRoles, actorID, conversationID, nil); err != nil {
		return nil, err
	}
	role, err := s.loadRole(ctx, conversationID, roleID)
	if err != nil {
		return nil, err
	}
	if role.IsDefault {
		return nil, ErrDefaultRoleProtected
	}
	return role, nil
}
