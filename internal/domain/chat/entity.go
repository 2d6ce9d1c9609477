package chat

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Kind distinguishes two-party chats from owned groups
type Kind string

const (
	KindDirect Kind = "direct"
	KindGroup  Kind = "group"
)

// Conversation represents a chat between two users or a named group
type Conversation struct {
	ID        uuid.UUID      `db:"id" json:"id"`
	Kind      Kind           `db:"kind" json:"kind"`
	Name      sql.NullString `db:"name" json:"name,omitempty"`
	AvatarURL sql.NullString `db:"avatar_url" json:"avatar_url,omitempty"`
	Private   bool           `db:"private" json:"private"`
	OwnerID   uuid.NullUUID  `db:"owner_id" json:"owner_id,omitempty"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
}

// IsOwner checks whether userID owns this conversation. Direct conversations
// have no owner.
func (c *Conversation) IsOwner(userID uuid.UUID) bool {
	return c.OwnerID.Valid && c.OwnerID.UUID == userID
}

// Membership represents a user's participation in a conversation
type Membership struct {
	ConversationID uuid.UUID    `db:"conversation_id" json:"conversation_id"`
	UserID         uuid.UUID    `db:"user_id" json:"user_id"`
	MutedUntil     sql.NullTime `db:"muted_until" json:"muted_until,omitempty"`
	JoinedAt       time.Time    `db:"joined_at" json:"joined_at"`
}

// IsMuted checks whether the member is muted at the given time
func (m *Membership) IsMuted(now time.Time) bool {
	return m.MutedUntil.Valid && m.MutedUntil.Time.After(now)
}

// MessageType represents message type
type MessageType string

const (
	MessageTypeText   MessageType = "text"
	MessageTypeSystem MessageType = "system"
)

// Message represents a chat message
type Message struct {
	ID             uuid.UUID    `db:"id" json:"id"`
	ConversationID uuid.UUID    `db:"conversation_id" json:"conversation_id"`
	SenderID       uuid.UUID    `db:"sender_id" json:"sender_id"`
	Content        string       `db:"content" json:"content"`
	MessageType    MessageType  `db:"message_type" json:"message_type"`
	CreatedAt      time.Time    `db:"created_at" json:"created_at"`
	DeletedAt      sql.NullTime `db:"deleted_at" json:"-"`
}
