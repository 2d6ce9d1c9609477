package chat

import (
	"time"

	"github.com/google/uuid"
)

// CreateConversationRequest represents request to create a conversation
type CreateConversationRequest struct {
	Kind      string      `json:"kind" validate:"required,oneof=direct group"`
	Name      string      `json:"name,omitempty" validate:"omitempty,min=1,max=128"`
	Private   bool        `json:"private"`
	MemberIDs []uuid.UUID `json:"member_ids" validate:"required,min=1,unique"`
}

// RenameConversationRequest represents request to rename a conversation
type RenameConversationRequest struct {
	Name string `json:"name" validate:"required,min=1,max=128"`
}

// AddMembersRequest represents request to add members
type AddMembersRequest struct {
	MemberIDs []uuid.UUID `json:"member_ids" validate:"required,min=1,unique"`
}

// SendMessageRequest represents request to send a message
type SendMessageRequest struct {
	Content string `json:"content" validate:"required,min=1,max=4000"`
}

// ListMessagesQuery carries message pagination parameters
type ListMessagesQuery struct {
	Limit  int
	Before *time.Time
}
