package chat

import "errors"

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrNotMember            = errors.New("not a member of this conversation")
	ErrAlreadyMember        = errors.New("user is already a member")
	ErrMemberNotFound       = errors.New("member not found")
	ErrMuted                = errors.New("you are muted in this conversation")
	ErrMessageNotFound      = errors.New("message not found")
	ErrDirectMemberCount    = errors.New("direct conversations have exactly two members")
	ErrPrivateConversation  = errors.New("conversation is invite only")
	ErrOwnerCannotLeave     = errors.New("the owner cannot leave the conversation")
)
