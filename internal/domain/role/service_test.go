package role

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestMuteMemberEnforcesDurationBounds(t *testing.T) {
	f := newGroupFixture(t, false)
	senior := f.addRole(1, PermissionMuteMember)
	junior := f.addRole(2)
	actorID := f.join(uuid.New(), senior)
	targetID := f.join(uuid.New(), junior)

	tooShort := time.Now().Add(30 * time.Second)
	if err := f.svc.MuteMember(context.Background(), actorID, f.conv.ID, targetID, &tooShort); !errors.Is(err, ErrMuteDurationBounds) {
		t.Fatalf("expected ErrMuteDurationBounds for 30s, got %v", err)
	}

	tooLong := time.Now().Add(8 * 24 * time.Hour)
	if err := f.svc.MuteMember(context.Background(), actorID, f.conv.ID, targetID, &tooLong); !errors.Is(err, ErrMuteDurationBounds) {
		t.Fatalf("expected ErrMuteDurationBounds for 8 days, got %v", err)
	}

	ok := time.Now().Add(time.Hour)
	if err := f.svc.MuteMember(context.Background(), actorID, f.conv.ID, targetID, &ok); err != nil {
		t.Fatalf("expected 1h mute to pass, got %v", err)
	}
	if f.reg.muted[targetID] == nil || !f.reg.muted[targetID].Equal(ok) {
		t.Fatalf("mute not recorded")
	}
}

func TestMuteDeadlineBoundsAreExclusive(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name  string
		until time.Time
		want  bool
	}{
		{"below minimum", now.Add(30 * time.Second), false},
		{"exactly one minute", now.Add(MinMuteDuration), false},
		{"just inside minimum", now.Add(MinMuteDuration + time.Second), true},
		{"one hour", now.Add(time.Hour), true},
		{"just inside maximum", now.Add(MaxMuteDuration - time.Second), true},
		{"exactly seven days", now.Add(MaxMuteDuration), false},
		{"beyond maximum", now.Add(8 * 24 * time.Hour), false},
	}
	for _, tc := range cases {
		if got := validMuteDeadline(now, tc.until); got != tc.want {
			t.Errorf("%s: got %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestMuteMemberNilMeansUnmute(t *testing.T) {
	f := newGroupFixture(t, false)
	senior := f.addRole(1, PermissionMuteMember)
	junior := f.addRole(2)
	actorID := f.join(uuid.New(), senior)
	targetID := f.join(uuid.New(), junior)

	until := time.Now().Add(time.Hour)
	f.reg.muted[targetID] = &until

	// Unmute carries no duration, so the bounds check does not apply.
	if err := f.svc.MuteMember(context.Background(), actorID, f.conv.ID, targetID, nil); err != nil {
		t.Fatalf("expected unmute to pass, got %v", err)
	}
	if f.reg.muted[targetID] != nil {
		t.Fatalf("expected mute cleared")
	}
}

func TestKickMemberRemovesMembership(t *testing.T) {
	f := newGroupFixture(t, false)
	senior := f.addRole(1, PermissionKickMember)
	junior := f.addRole(2)
	actorID := f.join(uuid.New(), senior)
	targetID := f.join(uuid.New(), junior)

	if err := f.svc.KickMember(context.Background(), actorID, f.conv.ID, targetID); err != nil {
		t.Fatalf("kick failed: %v", err)
	}
	if len(f.reg.kicked) != 1 || f.reg.kicked[0] != targetID {
		t.Fatalf("membership not removed: %v", f.reg.kicked)
	}
}

func TestCreateRoleRejectsReservedName(t *testing.T) {
	f := newGroupFixture(t, false)
	manager := f.addRole(1, PermissionManageRole)
	actorID := f.join(uuid.New(), manager)

	for _, name := range []string{"everyone", "Everyone", "EVERYONE"} {
		if _, err := f.svc.CreateRole(context.Background(), actorID, f.conv.ID, name); !errors.Is(err, ErrReservedRoleName) {
			t.Fatalf("%q: expected ErrReservedRoleName, got %v", name, err)
		}
	}

	role, err := f.svc.CreateRole(context.Background(), actorID, f.conv.ID, "moderators")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if role.Rank != LeveledRank(2) {
		t.Fatalf("expected new role at rank 2, got %v", role.Rank)
	}
}

func TestDefaultRoleIsProtected(t *testing.T) {
	f := newGroupFixture(t, false)
	manager := f.addRole(1, PermissionManageRole)
	actorID := f.join(uuid.New(), manager)
	memberID := f.join(uuid.New())

	def, err := f.repo.GetDefaultRole(context.Background(), f.conv.ID)
	if err != nil || def == nil {
		t.Fatalf("default role missing: %v", err)
	}

	if err := f.svc.DeleteRole(context.Background(), actorID, f.conv.ID, def.ID); !errors.Is(err, ErrDefaultRoleProtected) {
		t.Fatalf("delete: expected ErrDefaultRoleProtected, got %v", err)
	}

	name := "renamed"
	if err := f.svc.UpdateRoleMetadata(context.Background(), actorID, f.conv.ID, def.ID, &name, nil); !errors.Is(err, ErrDefaultRoleProtected) {
		t.Fatalf("rename: expected ErrDefaultRoleProtected, got %v", err)
	}

	if err := f.svc.AddRoleMembers(context.Background(), actorID, f.conv.ID, def.ID, []uuid.UUID{memberID}); !errors.Is(err, ErrDefaultRoleProtected) {
		t.Fatalf("grant: expected ErrDefaultRoleProtected, got %v", err)
	}

}

func TestUpdateRoleMetadataValidatesPermissions(t *testing.T) {
	f := newGroupFixture(t, false)
	manager := f.addRole(1, PermissionManageRole)
	actorID := f.join(uuid.New(), manager)
	target := f.addRole(2)

	err := f.svc.UpdateRoleMetadata(context.Background(), actorID, f.conv.ID, target.ID, nil, []string{"fly"})
	if !errors.Is(err, ErrInvalidPermission) {
		t.Fatalf("expected ErrInvalidPermission, got %v", err)
	}

	err = f.svc.UpdateRoleMetadata(context.Background(), actorID, f.conv.ID, target.ID, nil, []string{"mute_member", "send_message"})
	if err != nil {
		t.Fatalf("expected valid vocabulary to pass, got %v", err)
	}
	if len(f.repo.updated) != 1 || f.repo.updated[0] != target.ID {
		t.Fatalf("update not forwarded to the store")
	}
}

func TestUpdateRoleMetadataRejectsReservedRename(t *testing.T) {
	f := newGroupFixture(t, false)
	manager := f.addRole(1, PermissionManageRole)
	actorID := f.join(uuid.New(), manager)
	target := f.addRole(2)

	name := "Everyone"
	err := f.svc.UpdateRoleMetadata(context.Background(), actorID, f.conv.ID, target.ID, &name, nil)
	if !errors.Is(err, ErrReservedRoleName) {
		t.Fatalf("expected ErrReservedRoleName, got %v", err)
	}
}

func TestAddRoleMembersRejectsDuplicates(t *testing.T) {
	f := newGroupFixture(t, false)
	manager := f.addRole(1, PermissionManageRole)
	actorID := f.join(uuid.New(), manager)
	target := f.addRole(2)
	memberID := f.join(uuid.New())

	err := f.svc.AddRoleMembers(context.Background(), actorID, f.conv.ID, target.ID, []uuid.UUID{memberID, memberID})
	if !errors.Is(err, ErrDuplicateIDs) {
		t.Fatalf("expected ErrDuplicateIDs, got %v", err)
	}
}

func TestAddRoleMembersRequiresOutrankingEveryTarget(t *testing.T) {
	f := newGroupFixture(t, false)
	manager := f.addRole(2, PermissionManageRole)
	senior := f.addRole(1)
	grantable := f.addRole(3)

	actorID := f.join(uuid.New(), manager)
	peerID := f.join(uuid.New())
	seniorID := f.join(uuid.New(), senior)

	// The failing target comes last: the grants to earlier targets must not
	// be applied either.
	err := f.svc.AddRoleMembers(context.Background(), actorID, f.conv.ID, grantable.ID, []uuid.UUID{peerID, seniorID})
	if !errors.Is(err, ErrRankViolation) {
		t.Fatalf("expected ErrRankViolation for senior target, got %v", err)
	}
	if len(f.repo.added[grantable.ID]) != 0 {
		t.Fatalf("denied batch left %d grant(s) behind", len(f.repo.added[grantable.ID]))
	}

	err = f.svc.AddRoleMembers(context.Background(), actorID, f.conv.ID, grantable.ID, []uuid.UUID{seniorID, peerID})
	if !errors.Is(err, ErrRankViolation) {
		t.Fatalf("expected ErrRankViolation for senior target, got %v", err)
	}
	if len(f.repo.added[grantable.ID]) != 0 {
		t.Fatalf("denied batch left %d grant(s) behind", len(f.repo.added[grantable.ID]))
	}

	if err := f.svc.AddRoleMembers(context.Background(), actorID, f.conv.ID, grantable.ID, []uuid.UUID{peerID}); err != nil {
		t.Fatalf("expected grant to junior to pass, got %v", err)
	}
	if got := f.repo.added[grantable.ID]; len(got) != 1 || got[0] != peerID {
		t.Fatalf("grant not recorded: %v", got)
	}
}

func TestRemoveRoleMemberOwnerCannotBeTarget(t *testing.T) {
	f := newGroupFixture(t, false)
	manager := f.addRole(1, PermissionManageRole)
	target := f.addRole(2)
	actorID := f.join(uuid.New(), manager)
	f.repo.grants[f.ownerID] = append(f.repo.grants[f.ownerID], target.ID)

	err := f.svc.RemoveRoleMember(context.Background(), actorID, f.conv.ID, target.ID, f.ownerID)
	if !errors.Is(err, ErrRankViolation) {
		t.Fatalf("expected ErrRankViolation against the owner, got %v", err)
	}
}

func TestListRolesMasksHiddenConversations(t *testing.T) {
	f := newGroupFixture(t, true)
	outsiderID := uuid.New()

	_, err := f.svc.ListRoles(context.Background(), outsiderID, f.conv.ID)
	if !errors.Is(err, ErrConversationNotFound) {
		t.Fatalf("expected ErrConversationNotFound, got %v", err)
	}

	roles, err := f.svc.ListRoles(context.Background(), f.ownerID, f.conv.ID)
	if err != nil {
		t.Fatalf("member list failed: %v", err)
	}
	if len(roles) != 1 {
		t.Fatalf("expected the default role, got %d roles", len(roles))
	}
}
