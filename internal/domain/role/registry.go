package role

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Registry is the engine's window into the chat domain: conversation and
// membership lookups plus the two membership mutations the engine authorizes
// itself (mute and kick). The chat repository satisfies it through an adapter
// wired in main.
type Registry interface {
	GetConversation(ctx context.Context, id uuid.UUID) (*Conversation, error)
	GetMembership(ctx context.Context, conversationID, userID uuid.UUID) (*Membership, error)
	SetMutedUntil(ctx context.Context, conversationID, userID uuid.UUID, until *time.Time) error
	RemoveMembership(ctx context.Context, conversationID, userID uuid.UUID) error
}
