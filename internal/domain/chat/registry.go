package chat

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/convo/convo-api/internal/domain/role"
)

// RoleRegistry adapts the chat store to the authorization engine's view of
// conversations and memberships. The membership mutations the engine performs
// (mute, kick) land here, so kicks are also announced to connected clients.
type RoleRegistry struct {
	repo Repository
	hub  *Hub
}

// NewRoleRegistry creates the registry the role engine reads through
func NewRoleRegistry(repo Repository, hub *Hub) *RoleRegistry {
	return &RoleRegistry{repo: repo, hub: hub}
}

func (r *RoleRegistry) GetConversation(ctx context.Context, id uuid.UUID) (*role.Conversation, error) {
	conv, err := r.repo.GetConversationByID(ctx, id)
	if err != nil || conv == nil {
		return nil, err
	}
	return &role.Conversation{
		ID:      conv.ID,
		Kind:    role.ConversationKind(conv.Kind),
		Private: conv.Private,
		OwnerID: conv.OwnerID,
	}, nil
}

func (r *RoleRegistry) GetMembership(ctx context.Context, conversationID, userID uuid.UUID) (*role.Membership, error) {
	m, err := r.repo.GetMembership(ctx, conversationID, userID)
	if err != nil || m == nil {
		return nil, err
	}
	out := &role.Membership{
		ConversationID: m.ConversationID,
		UserID:         m.UserID,
		JoinedAt:       m.JoinedAt,
	}
	if m.MutedUntil.Valid {
		t := m.MutedUntil.Time
		out.MutedUntil = &t
	}
	return out, nil
}

func (r *RoleRegistry) SetMutedUntil(ctx context.Context, conversationID, userID uuid.UUID, until *time.Time) error {
	return r.repo.SetMutedUntil(ctx, conversationID, userID, until)
}

// RemoveMembership removes a kicked member and announces the kick to the
// conversation. Voluntary leaves go through the chat service directly and
// are not announced.
func (r *RoleRegistry) RemoveMembership(ctx context.Context, conversationID, userID uuid.UUID) error {
	if err := r.repo.RemoveMembership(ctx, conversationID, userID); err != nil {
		return err
	}
	r.hub.BroadcastEvent(ctx, conversationID, &Event{
		Type:           EventMemberKicked,
		ConversationID: conversationID,
		Data:           map[string]string{"user_id": userID.String()},
	})
	return nil
}
