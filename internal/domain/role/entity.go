package role

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Permission is one of the closed permission vocabulary
type Permission string

const (
	PermissionAdmin         Permission = "admin"
	PermissionManageRole    Permission = "manage_role"
	PermissionManageChat    Permission = "manage_chat"
	PermissionManageMember  Permission = "manage_member"
	PermissionKickMember    Permission = "kick_member"
	PermissionMuteMember    Permission = "mute_member"
	PermissionSendMessage   Permission = "send_message"
	PermissionManageMessage Permission = "manage_message"
	PermissionCreateInvite  Permission = "create_invite"
	PermissionViewChat      Permission = "view_chat"
)

// ValidPermissions lists every assignable permission
var ValidPermissions = []Permission{
	PermissionAdmin,
	PermissionManageRole,
	PermissionManageChat,
	PermissionManageMember,
	PermissionKickMember,
	PermissionMuteMember,
	PermissionSendMessage,
	PermissionManageMessage,
	PermissionCreateInvite,
	PermissionViewChat,
}

// IsValidPermission reports whether p belongs to the vocabulary
func IsValidPermission(p Permission) bool {
	for _, v := range ValidPermissions {
		if p == v {
			return true
		}
	}
	return false
}

// DefaultRoleName is the reserved name of the implicit "everyone" role
const DefaultRoleName = "everyone"

// Rank is a role's position in the hierarchy: either the unranked default
// role or a positive level where 1 is the highest authority.
// Stored as a nullable integer column; NULL means the default role.
type Rank struct {
	Level   int
	Leveled bool
}

// DefaultRank returns the rank of the default role
func DefaultRank() Rank { return Rank{} }

// LeveledRank returns a numeric rank
func LeveledRank(n int) Rank { return Rank{Level: n, Leveled: true} }

// IsDefault reports whether the rank is the default (unranked) variant
func (r Rank) IsDefault() bool { return !r.Leveled }

// Value implements driver.Valuer; the default rank maps to NULL
func (r Rank) Value() (driver.Value, error) {
	if !r.Leveled {
		return nil, nil
	}
	return int64(r.Level), nil
}

// Scan implements sql.Scanner
func (r *Rank) Scan(src interface{}) error {
	if src == nil {
		*r = Rank{}
		return nil
	}
	switch v := src.(type) {
	case int64:
		*r = Rank{Level: int(v), Leveled: true}
		return nil
	default:
		return fmt.Errorf("role: cannot scan %T into Rank", src)
	}
}

func (r Rank) String() string {
	if !r.Leveled {
		return "default"
	}
	return fmt.Sprintf("%d", r.Level)
}

// Role represents a named, ranked permission set within a conversation
type Role struct {
	ID             uuid.UUID      `db:"id" json:"id"`
	ConversationID uuid.UUID      `db:"conversation_id" json:"conversation_id"`
	Name           string         `db:"name" json:"name"`
	Permissions    pq.StringArray `db:"permissions" json:"permissions"`
	Rank           Rank           `db:"rank" json:"rank,omitempty"`
	IsDefault      bool           `db:"is_default" json:"is_default"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
}

// HasPermission reports whether the role grants p
func (r *Role) HasPermission(p Permission) bool {
	for _, s := range r.Permissions {
		if Permission(s) == p {
			return true
		}
	}
	return false
}

// RoleMember is an explicit role grant to a conversation member
type RoleMember struct {
	RoleID    uuid.UUID `db:"role_id" json:"role_id"`
	UserID    uuid.UUID `db:"user_id" json:"user_id"`
	GrantedAt time.Time `db:"granted_at" json:"granted_at"`
}

// ConversationKind distinguishes two-party chats from owned groups
type ConversationKind string

const (
	ConversationDirect ConversationKind = "direct"
	ConversationGroup  ConversationKind = "group"
)

// Conversation is the engine's view of a conversation; the chat domain owns
// the full record
type Conversation struct {
	ID      uuid.UUID
	Kind    ConversationKind
	Private bool
	OwnerID uuid.NullUUID
}

// IsOwner reports whether userID owns the conversation
func (c *Conversation) IsOwner(userID uuid.UUID) bool {
	return c.OwnerID.Valid && c.OwnerID.UUID == userID
}

// Membership is the engine's view of a conversation member
type Membership struct {
	ConversationID uuid.UUID
	UserID         uuid.UUID
	MutedUntil     *time.Time
	JoinedAt       time.Time
}

// Member bundles everything the gate needs to judge one participant
type Member struct {
	Membership *Membership
	Roles      []*Role
	IsOwner    bool
}

// Mute duration bounds; checked before authorization is evaluated
const (
	MinMuteDuration = time.Minute
	MaxMuteDuration = 7 * 24 * time.Hour
)

// validMuteDeadline reports whether the deadline lands strictly inside the
// allowed mute window. The endpoints themselves are rejected.
func validMuteDeadline(now, until time.Time) bool {
	d := until.Sub(now)
	return d > MinMuteDuration && d < MaxMuteDuration
}
