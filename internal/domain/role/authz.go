package role

import (
	"context"
	"math"

	"github.com/google/uuid"
)

// Action is a guarded privileged operation
type Action string

const (
	ActionRenameConversation Action = "rename_conversation"
	ActionUpdateAvatar       Action = "update_avatar"
	ActionManageRoles        Action = "manage_roles"
	ActionAddMember          Action = "add_member"
	ActionCreateInvite       Action = "create_invite"
	ActionMuteMember         Action = "mute_member"
	ActionKickMember         Action = "kick_member"
	ActionModerateMessage    Action = "moderate_message"
)

// requiredPermissions maps each action to the permissions that satisfy its
// check; holding any one of them (or admin) passes.
var requiredPermissions = map[Action][]Permission{
	ActionRenameConversation: {PermissionManageChat},
	ActionUpdateAvatar:       {PermissionManageChat},
	ActionManageRoles:        {PermissionManageRole},
	ActionAddMember:          {PermissionManageMember},
	ActionCreateInvite:       {PermissionCreateInvite},
	ActionMuteMember:         {PermissionMuteMember},
	ActionKickMember:         {PermissionKickMember},
	ActionModerateMessage:    {PermissionSendMessage, PermissionManageMessage},
}

// mutatesConversation lists actions that are meaningless on a direct
// conversation and always fail there.
var mutatesConversation = map[Action]bool{
	ActionRenameConversation: true,
	ActionUpdateAvatar:       true,
	ActionManageRoles:        true,
	ActionAddMember:          true,
	ActionCreateInvite:       true,
	ActionMuteMember:         true,
	ActionKickMember:         true,
}

// targetImmunities lists actions subject to owner and admin immunity
var targetImmunities = map[Action]bool{
	ActionMuteMember: true,
	ActionKickMember: true,
}

// Rank sentinels. The owner compares above rank 1; members holding only the
// default role compare below every leveled rank.
const (
	ownerRank       = 0
	defaultOnlyRank = math.MaxInt32
)

// Decision is the read-only outcome of a successful authorization. It carries
// the resolved snapshot; the caller performs the mutation itself.
type Decision struct {
	Action       Action
	Conversation *Conversation
	Actor        *Member
	Target       *Member
}

// Gate combines permission resolution and rank comparison into the decision
// procedure guarding every privileged conversation action.
type Gate struct {
	roles    Repository
	registry Registry
}

// NewGate creates an authorization gate
func NewGate(roles Repository, registry Registry) *Gate {
	return &Gate{roles: roles, registry: registry}
}

// EffectivePermissions returns the union of permissions across held roles
func (g *Gate) EffectivePermissions(m *Member) map[Permission]bool {
	perms := make(map[Permission]bool)
	for _, r := range m.Roles {
		for _, p := range r.Permissions {
			perms[Permission(p)] = true
		}
	}
	return perms
}

// HasAny reports whether m holds admin or any of the required permissions
func (g *Gate) HasAny(m *Member, required []Permission) bool {
	perms := g.EffectivePermissions(m)
	if perms[PermissionAdmin] {
		return true
	}
	for _, p := range required {
		if perms[p] {
			return true
		}
	}
	return false
}

// EffectiveRank returns m's best rank: the owner's synthetic 0, the minimum
// leveled rank across held roles, or the default-only sentinel.
func (g *Gate) EffectiveRank(m *Member) int {
	if m.IsOwner {
		return ownerRank
	}
	rank := defaultOnlyRank
	for _, r := range m.Roles {
		if r.Rank.Leveled && r.Rank.Level < rank {
			rank = r.Rank.Level
		}
	}
	return rank
}

// Outranks reports whether a strictly dominates b
func (g *Gate) Outranks(a, b *Member) bool {
	return g.EffectiveRank(a) < g.EffectiveRank(b)
}

// Authorize runs the layered decision procedure for action, short-circuiting
// on the first failing check:
//
//  1. actor membership, masking existence of private and direct conversations
//  2. direct conversations reject all structural mutation
//  3. permission intersection, with admin as global bypass
//  4. strict rank domination over the target
//  5. owner and admin immunity for mute/kick
//
// A nil error means allowed; the returned Decision is the snapshot the checks
// were judged against.
func (g *Gate) Authorize(ctx context.Context, action Action, actorID, conversationID uuid.UUID, targetID *uuid.UUID) (*Decision, error) {
	conv, err := g.registry.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, ErrConversationNotFound
	}

	actor, err := g.resolveMember(ctx, conv, actorID)
	if err != nil {
		return nil, err
	}
	if actor == nil {
		// Hidden conversations resolve to NotFound for outsiders so the
		// denial does not leak their existence.
		if conv.Private || conv.Kind == ConversationDirect {
			return nil, ErrConversationNotFound
		}
		return nil, ErrNotMember
	}

	if conv.Kind == ConversationDirect && mutatesConversation[action] {
		return nil, ErrDirectImmutable
	}

	if !g.HasAny(actor, requiredPermissions[action]) {
		return nil, ErrMissingPermission
	}

	decision := &Decision{Action: action, Conversation: conv, Actor: actor}
	if targetID == nil {
		return decision, nil
	}

	target, err := g.resolveMember(ctx, conv, *targetID)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, ErrMemberNotFound
	}
	decision.Target = target

	if targetImmunities[action] && target.IsOwner {
		return nil, ErrOwnerImmune
	}
	if !g.Outranks(actor, target) {
		return nil, ErrRankViolation
	}
	if targetImmunities[action] && g.EffectivePermissions(target)[PermissionAdmin] {
		return nil, ErrAdminImmune
	}

	return decision, nil
}

// resolveMember loads membership and held roles; nil when not a member
func (g *Gate) resolveMember(ctx context.Context, conv *Conversation, userID uuid.UUID) (*Member, error) {
	membership, err := g.registry.GetMembership(ctx, conv.ID, userID)
	if err != nil {
		return nil, err
	}
	if membership == nil {
		return nil, nil
	}
	roles, err := g.roles.ListMemberRoles(ctx, conv.ID, userID)
	if err != nil {
		return nil, err
	}
	return &Member{
		Membership: membership,
		Roles:      roles,
		IsOwner:    conv.IsOwner(userID),
	}, nil
}
