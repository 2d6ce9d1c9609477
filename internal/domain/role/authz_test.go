package role

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

type fakeRegistry struct {
	conversations map[uuid.UUID]*Conversation
	memberships   map[uuid.UUID]map[uuid.UUID]*Membership
	muted         map[uuid.UUID]*time.Time
	kicked        []uuid.UUID
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{
		conversations: map[uuid.UUID]*Conversation{},
		memberships:   map[uuid.UUID]map[uuid.UUID]*Membership{},
		muted:         map[uuid.UUID]*time.Time{},
	}
}

func (f *fakeRegistry) GetConversation(ctx context.Context, id uuid.UUID) (*Conversation, error) {
	return f.conversations[id], nil
}

func (f *fakeRegistry) GetMembership(ctx context.Context, conversationID, userID uuid.UUID) (*Membership, error) {
	return f.memberships[conversationID][userID], nil
}

func (f *fakeRegistry) SetMutedUntil(ctx context.Context, conversationID, userID uuid.UUID, until *time.Time) error {
	f.muted[userID] = until
	return nil
}

func (f *fakeRegistry) RemoveMembership(ctx context.Context, conversationID, userID uuid.UUID) error {
	f.kicked = append(f.kicked, userID)
	delete(f.memberships[conversationID], userID)
	return nil
}

type fakeRoleRepo struct {
	roles     map[uuid.UUID]*Role
	grants    map[uuid.UUID][]uuid.UUID // userID -> granted role IDs
	added     map[uuid.UUID][]uuid.UUID // roleID -> userIDs granted in test
	removed   map[uuid.UUID][]uuid.UUID
	deleted   []uuid.UUID
	reordered [][]uuid.UUID
	updated   []uuid.UUID
}

func newFakeRoleRepo() *fakeRoleRepo {
	return &fakeRoleRepo{
		roles:   map[uuid.UUID]*Role{},
		grants:  map[uuid.UUID][]uuid.UUID{},
		added:   map[uuid.UUID][]uuid.UUID{},
		removed: map[uuid.UUID][]uuid.UUID{},
	}
}

func (f *fakeRoleRepo) GetRoleByID(ctx context.Context, id uuid.UUID) (*Role, error) {
	return f.roles[id], nil
}

func (f *fakeRoleRepo) ListByConversation(ctx context.Context, conversationID uuid.UUID) ([]*Role, error) {
	var out []*Role
	for _, r := range f.roles {
		if r.ConversationID == conversationID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRoleRepo) GetDefaultRole(ctx context.Context, conversationID uuid.UUID) (*Role, error) {
	for _, r := range f.roles {
		if r.ConversationID == conversationID && r.IsDefault {
			return r, nil
		}
	}
	return nil, nil
}

func (f *fakeRoleRepo) ListMemberRoles(ctx context.Context, conversationID, userID uuid.UUID) ([]*Role, error) {
	var out []*Role
	for _, id := range f.grants[userID] {
		if r := f.roles[id]; r != nil && r.ConversationID == conversationID {
			out = append(out, r)
		}
	}
	// Every member implicitly holds the default role.
	if def, _ := f.GetDefaultRole(ctx, conversationID); def != nil {
		out = append(out, def)
	}
	return out, nil
}

func (f *fakeRoleRepo) seedDefaultRole(conversationID uuid.UUID) *Role {
	r := &Role{ID: uuid.New(), ConversationID: conversationID, Name: DefaultRoleName, IsDefault: true}
	f.roles[r.ID] = r
	return r
}

func (f *fakeRoleRepo) CreateRole(ctx context.Context, conversationID uuid.UUID, name string) (*Role, error) {
	count := 0
	for _, r := range f.roles {
		if r.ConversationID == conversationID && r.Rank.Leveled {
			count++
		}
	}
	r := &Role{ID: uuid.New(), ConversationID: conversationID, Name: name, Rank: nextRank(count)}
	f.roles[r.ID] = r
	return r, nil
}

func (f *fakeRoleRepo) UpdateRole(ctx context.Context, roleID uuid.UUID, name *string, permissions []string) error {
	f.updated = append(f.updated, roleID)
	return nil
}

func (f *fakeRoleRepo) DeleteRole(ctx context.Context, conversationID, roleID uuid.UUID) error {
	f.deleted = append(f.deleted, roleID)
	delete(f.roles, roleID)
	return nil
}

func (f *fakeRoleRepo) Reorder(ctx context.Context, conversationID uuid.UUID, orderedIDs []uuid.UUID) error {
	f.reordered = append(f.reordered, orderedIDs)
	return nil
}

func (f *fakeRoleRepo) AddRoleMembers(ctx context.Context, roleID uuid.UUID, userIDs []uuid.UUID) error {
	for _, userID := range userIDs {
		f.added[roleID] = append(f.added[roleID], userID)
		f.grants[userID] = append(f.grants[userID], roleID)
	}
	return nil
}

func (f *fakeRoleRepo) RemoveRoleMember(ctx context.Context, roleID, userID uuid.UUID) error {
	f.removed[roleID] = append(f.removed[roleID], userID)
	return nil
}

func (f *fakeRoleRepo) ListRoleMembers(ctx context.Context, roleID uuid.UUID) ([]*RoleMember, error) {
	return nil, nil
}

// fixture wires a group conversation with its default role into the fakes
type fixture struct {
	repo    *fakeRoleRepo
	reg     *fakeRegistry
	conv    *Conversation
	ownerID uuid.UUID
	svc     *Service
}

func newGroupFixture(t *testing.T, private bool) *fixture {
	t.Helper()
	f := &fixture{
		repo:    newFakeRoleRepo(),
		reg:     newFakeRegistry(),
		ownerID: uuid.New(),
	}
	f.conv = &Conversation{
		ID:      uuid.New(),
		Kind:    ConversationGroup,
		Private: private,
		OwnerID: uuid.NullUUID{UUID: f.ownerID, Valid: true},
	}
	f.reg.conversations[f.conv.ID] = f.conv
	f.reg.memberships[f.conv.ID] = map[uuid.UUID]*Membership{}
	f.repo.seedDefaultRole(f.conv.ID)
	f.join(f.ownerID)
	f.svc = NewService(f.repo, f.reg)
	return f
}

func (f *fixture) addRole(rank int, perms ...Permission) *Role {
	strs := make([]string, 0, len(perms))
	for _, p := range perms {
		strs = append(strs, string(p))
	}
	r := &Role{ID: uuid.New(), ConversationID: f.conv.ID, Rank: LeveledRank(rank), Permissions: strs}
	f.repo.roles[r.ID] = r
	return r
}

func (f *fixture) join(userID uuid.UUID, roles ...*Role) uuid.UUID {
	f.reg.memberships[f.conv.ID][userID] = &Membership{
		ConversationID: f.conv.ID,
		UserID:         userID,
		JoinedAt:       time.Now(),
	}
	for _, r := range roles {
		f.repo.grants[userID] = append(f.repo.grants[userID], r.ID)
	}
	return userID
}

func (f *fixture) gate() *Gate { return f.svc.Gate() }

func TestAuthorizeRankBeatsPermission(t *testing.T) {
	f := newGroupFixture(t, false)
	senior := f.addRole(1)
	moderator := f.addRole(2, PermissionMuteMember, PermissionKickMember)

	seniorID := f.join(uuid.New(), senior)
	modID := f.join(uuid.New(), moderator)

	// The moderator holds mute_member but sits below the senior role.
	_, err := f.gate().Authorize(context.Background(), ActionMuteMember, modID, f.conv.ID, &seniorID)
	if !errors.Is(err, ErrRankViolation) {
		t.Fatalf("expected ErrRankViolation, got %v", err)
	}
}

func TestAuthorizeEqualRankDenied(t *testing.T) {
	f := newGroupFixture(t, false)
	moderator := f.addRole(1, PermissionMuteMember)

	actorID := f.join(uuid.New(), moderator)
	targetID := f.join(uuid.New(), moderator)

	_, err := f.gate().Authorize(context.Background(), ActionMuteMember, actorID, f.conv.ID, &targetID)
	if !errors.Is(err, ErrRankViolation) {
		t.Fatalf("expected ErrRankViolation, got %v", err)
	}
}

func TestAuthorizeHigherRankWithPermissionAllowed(t *testing.T) {
	f := newGroupFixture(t, false)
	senior := f.addRole(1, PermissionMuteMember)
	junior := f.addRole(2)

	actorID := f.join(uuid.New(), senior)
	targetID := f.join(uuid.New(), junior)

	decision, err := f.gate().Authorize(context.Background(), ActionMuteMember, actorID, f.conv.ID, &targetID)
	if err != nil {
		t.Fatalf("expected allow, got %v", err)
	}
	if decision.Target == nil || decision.Target.Membership.UserID != targetID {
		t.Fatalf("decision target not resolved")
	}
}

func TestAuthorizeAdminBypassesPermissionsNotRank(t *testing.T) {
	f := newGroupFixture(t, false)
	admin := f.addRole(3, PermissionAdmin)
	junior := f.addRole(2)

	actorID := f.join(uuid.New(), admin)
	targetID := f.join(uuid.New(), junior)

	// admin satisfies the permission layer for any action...
	if _, err := f.gate().Authorize(context.Background(), ActionRenameConversation, actorID, f.conv.ID, nil); err != nil {
		t.Fatalf("expected admin to pass permission check, got %v", err)
	}

	// ...but rank domination still applies against a more senior target.
	_, err := f.gate().Authorize(context.Background(), ActionMuteMember, actorID, f.conv.ID, &targetID)
	if !errors.Is(err, ErrRankViolation) {
		t.Fatalf("expected ErrRankViolation, got %v", err)
	}
}

func TestAuthorizeAdminTargetImmune(t *testing.T) {
	f := newGroupFixture(t, false)
	senior := f.addRole(1, PermissionMuteMember, PermissionKickMember)
	admin := f.addRole(2, PermissionAdmin)

	actorID := f.join(uuid.New(), senior)
	targetID := f.join(uuid.New(), admin)

	for _, action := range []Action{ActionMuteMember, ActionKickMember} {
		_, err := f.gate().Authorize(context.Background(), action, actorID, f.conv.ID, &targetID)
		if !errors.Is(err, ErrAdminImmune) {
			t.Fatalf("%s: expected ErrAdminImmune, got %v", action, err)
		}
	}
}

func TestAuthorizeOwnerTargetImmune(t *testing.T) {
	f := newGroupFixture(t, false)
	senior := f.addRole(1, PermissionMuteMember, PermissionKickMember)
	actorID := f.join(uuid.New(), senior)

	for _, action := range []Action{ActionMuteMember, ActionKickMember} {
		_, err := f.gate().Authorize(context.Background(), action, actorID, f.conv.ID, &f.ownerID)
		if !errors.Is(err, ErrOwnerImmune) {
			t.Fatalf("%s: expected ErrOwnerImmune, got %v", action, err)
		}
	}
}

func TestAuthorizeOwnerOutranksRankOne(t *testing.T) {
	f := newGroupFixture(t, false)
	senior := f.addRole(1)
	moderator := f.addRole(2, PermissionMuteMember)
	targetID := f.join(uuid.New(), senior)

	// Grant the owner a permission-bearing role; its synthetic rank 0 still
	// dominates the rank 1 target.
	f.repo.grants[f.ownerID] = append(f.repo.grants[f.ownerID], moderator.ID)

	if _, err := f.gate().Authorize(context.Background(), ActionMuteMember, f.ownerID, f.conv.ID, &targetID); err != nil {
		t.Fatalf("expected owner to outrank rank 1, got %v", err)
	}
}

func TestAuthorizeOwnerStillNeedsPermission(t *testing.T) {
	f := newGroupFixture(t, false)
	junior := f.addRole(1)
	targetID := f.join(uuid.New(), junior)

	// Ownership grants rank, not permissions.
	_, err := f.gate().Authorize(context.Background(), ActionMuteMember, f.ownerID, f.conv.ID, &targetID)
	if !errors.Is(err, ErrMissingPermission) {
		t.Fatalf("expected ErrMissingPermission, got %v", err)
	}
}

func TestAuthorizeDefaultOnlyMemberRanksLowest(t *testing.T) {
	f := newGroupFixture(t, false)
	moderator := f.addRole(5, PermissionMuteMember)

	actorID := f.join(uuid.New(), moderator)
	targetID := f.join(uuid.New()) // default role only

	if _, err := f.gate().Authorize(context.Background(), ActionMuteMember, actorID, f.conv.ID, &targetID); err != nil {
		t.Fatalf("expected leveled role to outrank default-only member, got %v", err)
	}
}

func TestAuthorizeMissingPermission(t *testing.T) {
	f := newGroupFixture(t, false)
	junior := f.addRole(1)
	actorID := f.join(uuid.New(), junior)

	_, err := f.gate().Authorize(context.Background(), ActionRenameConversation, actorID, f.conv.ID, nil)
	if !errors.Is(err, ErrMissingPermission) {
		t.Fatalf("expected ErrMissingPermission, got %v", err)
	}
}

func TestAuthorizeMasksPrivateConversation(t *testing.T) {
	f := newGroupFixture(t, true)
	outsiderID := uuid.New()

	_, err := f.gate().Authorize(context.Background(), ActionRenameConversation, outsiderID, f.conv.ID, nil)
	if !errors.Is(err, ErrConversationNotFound) {
		t.Fatalf("expected ErrConversationNotFound for outsider on private conversation, got %v", err)
	}
}

func TestAuthorizePublicConversationRevealsNonMembership(t *testing.T) {
	f := newGroupFixture(t, false)
	outsiderID := uuid.New()

	_, err := f.gate().Authorize(context.Background(), ActionRenameConversation, outsiderID, f.conv.ID, nil)
	if !errors.Is(err, ErrNotMember) {
		t.Fatalf("expected ErrNotMember, got %v", err)
	}
}

func TestAuthorizeUnknownConversation(t *testing.T) {
	f := newGroupFixture(t, false)

	_, err := f.gate().Authorize(context.Background(), ActionRenameConversation, f.ownerID, uuid.New(), nil)
	if !errors.Is(err, ErrConversationNotFound) {
		t.Fatalf("expected ErrConversationNotFound, got %v", err)
	}
}

func TestAuthorizeTargetNotMember(t *testing.T) {
	f := newGroupFixture(t, false)
	senior := f.addRole(1, PermissionMuteMember)
	actorID := f.join(uuid.New(), senior)
	strangerID := uuid.New()

	_, err := f.gate().Authorize(context.Background(), ActionMuteMember, actorID, f.conv.ID, &strangerID)
	if !errors.Is(err, ErrMemberNotFound) {
		t.Fatalf("expected ErrMemberNotFound, got %v", err)
	}
}

func TestAuthorizeDirectConversationRejectsMutation(t *testing.T) {
	f := newGroupFixture(t, false)
	direct := &Conversation{ID: uuid.New(), Kind: ConversationDirect, Private: true}
	f.reg.conversations[direct.ID] = direct
	f.reg.memberships[direct.ID] = map[uuid.UUID]*Membership{}

	a, b := uuid.New(), uuid.New()
	for _, id := range []uuid.UUID{a, b} {
		f.reg.memberships[direct.ID][id] = &Membership{ConversationID: direct.ID, UserID: id}
	}

	for _, action := range []Action{ActionRenameConversation, ActionManageRoles, ActionMuteMember, ActionKickMember} {
		var target *uuid.UUID
		if targetImmunities[action] {
			target = &b
		}
		_, err := f.gate().Authorize(context.Background(), action, a, direct.ID, target)
		if !errors.Is(err, ErrDirectImmutable) {
			t.Fatalf("%s: expected ErrDirectImmutable, got %v", action, err)
		}
	}

	// Outsiders cannot learn the direct conversation exists.
	_, err := f.gate().Authorize(context.Background(), ActionRenameConversation, uuid.New(), direct.ID, nil)
	if !errors.Is(err, ErrConversationNotFound) {
		t.Fatalf("expected ErrConversationNotFound, got %v", err)
	}
}

func TestEffectiveRankUsesBestRole(t *testing.T) {
	f := newGroupFixture(t, false)
	mid := f.addRole(3)
	low := f.addRole(6)

	m := &Member{Roles: []*Role{mid, low}}
	if got := f.gate().EffectiveRank(m); got != 3 {
		t.Fatalf("expected rank 3, got %d", got)
	}

	owner := &Member{IsOwner: true, Roles: []*Role{low}}
	if got := f.gate().EffectiveRank(owner); got != ownerRank {
		t.Fatalf("expected owner rank %d, got %d", ownerRank, got)
	}

	defaultOnly := &Member{}
	if got := f.gate().EffectiveRank(defaultOnly); got != defaultOnlyRank {
		t.Fatalf("expected default-only sentinel, got %d", got)
	}
	if !f.gate().Outranks(m, defaultOnly) || f.gate().Outranks(defaultOnly, m) {
		t.Fatalf("default-only member must rank below every leveled rank")
	}
}
