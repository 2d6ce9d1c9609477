package role

import "errors"

var (
	// Not found
	ErrConversationNotFound = errors.New("conversation not found")
	ErrRoleNotFound         = errors.New("role not found")
	ErrMemberNotFound       = errors.New("member not found")

	// Forbidden, by reason
	ErrNotMember            = errors.New("not a member of this conversation")
	ErrMissingPermission    = errors.New("missing required permission")
	ErrRankViolation        = errors.New("target holds an equal or higher rank")
	ErrOwnerImmune          = errors.New("the conversation owner cannot be targeted")
	ErrAdminImmune          = errors.New("members with the admin permission cannot be targeted")
	ErrDefaultRoleProtected = errors.New("the default role cannot be modified")
	ErrDirectImmutable      = errors.New("direct conversations cannot be modified")

	// Conflict
	ErrReservedRoleName  = errors.New("role name is reserved")
	ErrAlreadyRoleMember = errors.New("user already holds this role")
	ErrConcurrentUpdate  = errors.New("conflicting concurrent update, retry")

	// Validation
	ErrReorderTooShort    = errors.New("reorder requires at least two roles")
	ErrDuplicateIDs       = errors.New("duplicate ids in list")
	ErrInvalidPermission  = errors.New("unknown permission")
	ErrMuteDurationBounds = errors.New("mute duration must be between 1 minute and 7 days")
)
