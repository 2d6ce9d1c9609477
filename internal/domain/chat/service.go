package chat

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/convo/convo-api/internal/domain/role"
	"github.com/convo/convo-api/internal/pkg/imaging"
)

// AvatarStorage uploads processed avatar images and returns a public URL
type AvatarStorage interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// Service handles chat business logic. Privileged conversation mutations go
// through the role gate before touching the store.
type Service struct {
	repo    Repository
	gate    *role.Gate
	hub     *Hub
	storage AvatarStorage
}

// NewService creates chat service
func NewService(repo Repository, gate *role.Gate, hub *Hub, storage AvatarStorage) *Service {
	return &Service{
		repo:    repo,
		gate:    gate,
		hub:     hub,
		storage: storage,
	}
}

// CreateConversation creates a direct or group conversation together with its
// default role. Group conversations are owned by the creator.
func (s *Service) CreateConversation(ctx context.Context, creatorID uuid.UUID, req *CreateConversationRequest) (*Conversation, error) {
	memberIDs := []uuid.UUID{creatorID}
	for _, id := range req.MemberIDs {
		if id == creatorID {
			continue
		}
		memberIDs = append(memberIDs, id)
	}

	conv := &Conversation{
		ID:        uuid.New(),
		Kind:      Kind(req.Kind),
		Private:   req.Private,
		CreatedAt: time.Now(),
	}

	switch conv.Kind {
	case KindDirect:
		if len(memberIDs) != 2 {
			return nil, ErrDirectMemberCount
		}
		// Direct chats are always hidden from non-members.
		conv.Private = true
	case KindGroup:
		conv.OwnerID = uuid.NullUUID{UUID: creatorID, Valid: true}
		if req.Name != "" {
			conv.Name = sql.NullString{String: req.Name, Valid: true}
		}
	}

	// The repository seeds the default role in the same transaction.
	if err := s.repo.CreateConversation(ctx, conv, memberIDs); err != nil {
		return nil, err
	}

	log.Info().
		Str("conversation_id", conv.ID.String()).
		Str("kind", string(conv.Kind)).
		Msg("Conversation created")
	return conv, nil
}

// GetConversation returns a conversation visible to the user. Hidden
// conversations resolve to not-found for outsiders.
func (s *Service) GetConversation(ctx context.Context, userID, conversationID uuid.UUID) (*Conversation, error) {
	conv, err := s.repo.GetConversationByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, ErrConversationNotFound
	}

	membership, err := s.repo.GetMembership(ctx, conversationID, userID)
	if err != nil {
		return nil, err
	}
	if membership == nil {
		if conv.Private || conv.Kind == KindDirect {
			return nil, ErrConversationNotFound
		}
		return nil, ErrNotMember
	}
	return conv, nil
}

// ListConversations returns the user's conversations
func (s *Service) ListConversations(ctx context.Context, userID uuid.UUID) ([]*Conversation, error) {
	return s.repo.ListConversationsByUser(ctx, userID)
}

// Rename renames a group conversation
func (s *Service) Rename(ctx context.Context, actorID, conversationID uuid.UUID, name string) error {
	if _, err := s.gate.Authorize(ctx, role.ActionRenameConversation, actorID, conversationID, nil); err != nil {
		return err
	}
	if err := s.repo.UpdateName(ctx, conversationID, name); err != nil {
		return err
	}
	s.hub.BroadcastEvent(ctx, conversationID, &Event{
		Type:           EventConversationRenamed,
		ConversationID: conversationID,
		Data:           map[string]string{"name": name},
	})
	return nil
}

// UpdateAvatar normalizes and stores a new conversation avatar
func (s *Service) UpdateAvatar(ctx context.Context, actorID, conversationID uuid.UUID, img []byte) (string, error) {
	if _, err := s.gate.Authorize(ctx, role.ActionUpdateAvatar, actorID, conversationID, nil); err != nil {
		return "", err
	}

	processed, err := imaging.NormalizeAvatar(bytes.NewReader(img))
	if err != nil {
		return "", err
	}

	key := fmt.Sprintf("avatars/conversations/%s.jpg", conversationID)
	url, err := s.storage.Upload(ctx, key, processed, "image/jpeg")
	if err != nil {
		return "", err
	}

	if err := s.repo.UpdateAvatarURL(ctx, conversationID, url); err != nil {
		return "", err
	}
	return url, nil
}

// AddMembers adds users to a group conversation
func (s *Service) AddMembers(ctx context.Context, actorID, conversationID uuid.UUID, memberIDs []uuid.UUID) error {
	if _, err := s.gate.Authorize(ctx, role.ActionAddMember, actorID, conversationID, nil); err != nil {
		return err
	}

	now := time.Now()
	for _, userID := range memberIDs {
		existing, err := s.repo.GetMembership(ctx, conversationID, userID)
		if err != nil {
			return err
		}
		if existing != nil {
			return ErrAlreadyMember
		}
		m := &Membership{ConversationID: conversationID, UserID: userID, JoinedAt: now}
		if err := s.repo.AddMembership(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

// JoinConversation joins a public group conversation
func (s *Service) JoinConversation(ctx context.Context, userID, conversationID uuid.UUID) error {
	conv, err := s.repo.GetConversationByID(ctx, conversationID)
	if err != nil {
		return err
	}
	if conv == nil || conv.Private || conv.Kind == KindDirect {
		return ErrConversationNotFound
	}

	existing, err := s.repo.GetMembership(ctx, conversationID, userID)
	if err != nil {
		return err
	}
	if existing != nil {
		return ErrAlreadyMember
	}

	return s.repo.AddMembership(ctx, &Membership{
		ConversationID: conversationID,
		UserID:         userID,
		JoinedAt:       time.Now(),
	})
}

// LeaveConversation removes the user's own membership
func (s *Service) LeaveConversation(ctx context.Context, userID, conversationID uuid.UUID) error {
	conv, err := s.repo.GetConversationByID(ctx, conversationID)
	if err != nil {
		return err
	}
	if conv == nil {
		return ErrConversationNotFound
	}
	if conv.IsOwner(userID) {
		return ErrOwnerCannotLeave
	}
	return s.repo.RemoveMembership(ctx, conversationID, userID)
}

// ListMembers returns a conversation's members
func (s *Service) ListMembers(ctx context.Context, userID, conversationID uuid.UUID) ([]*Membership, error) {
	if _, err := s.GetConversation(ctx, userID, conversationID); err != nil {
		return nil, err
	}
	return s.repo.ListMemberships(ctx, conversationID)
}

// SendMessage posts a message; muted members are rejected
func (s *Service) SendMessage(ctx context.Context, senderID, conversationID uuid.UUID, content string) (*Message, error) {
	if _, err := s.GetConversation(ctx, senderID, conversationID); err != nil {
		return nil, err
	}

	membership, err := s.repo.GetMembership(ctx, conversationID, senderID)
	if err != nil {
		return nil, err
	}
	if membership.IsMuted(time.Now()) {
		return nil, ErrMuted
	}

	msg := &Message{
		ID:             uuid.New(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		MessageType:    MessageTypeText,
		CreatedAt:      time.Now(),
	}
	if err := s.repo.CreateMessage(ctx, msg); err != nil {
		return nil, err
	}

	s.hub.BroadcastEvent(ctx, conversationID, &Event{
		Type:           EventNewMessage,
		ConversationID: conversationID,
		SenderID:       senderID,
		Message:        msg,
	})
	return msg, nil
}

// ListMessages returns messages visible to the user, newest first
func (s *Service) ListMessages(ctx context.Context, userID, conversationID uuid.UUID, limit int, before *time.Time) ([]*Message, error) {
	if _, err := s.GetConversation(ctx, userID, conversationID); err != nil {
		return nil, err
	}
	return s.repo.ListMessages(ctx, conversationID, limit, before)
}

// DeleteMessage deletes the actor's own message, or moderates another
// member's message through the role gate
func (s *Service) DeleteMessage(ctx context.Context, actorID, conversationID, messageID uuid.UUID) error {
	if _, err := s.GetConversation(ctx, actorID, conversationID); err != nil {
		return err
	}

	msg, err := s.repo.GetMessageByID(ctx, messageID)
	if err != nil {
		return err
	}
	if msg == nil || msg.ConversationID != conversationID {
		return ErrMessageNotFound
	}

	if msg.SenderID != actorID {
		if _, err := s.gate.Authorize(ctx, role.ActionModerateMessage, actorID, conversationID, nil); err != nil {
			return err
		}
	}

	if err := s.repo.SoftDeleteMessage(ctx, messageID); err != nil {
		return err
	}

	s.hub.BroadcastEvent(ctx, conversationID, &Event{
		Type:           EventMessageDeleted,
		ConversationID: conversationID,
		MessageID:      messageID,
	})
	return nil
}
