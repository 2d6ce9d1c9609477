package chat

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/convo/convo-api/internal/domain/role"
)

// Repository defines chat data access interface
type Repository interface {
	// Conversation operations
	CreateConversation(ctx context.Context, conv *Conversation, memberIDs []uuid.UUID) error
	GetConversationByID(ctx context.Context, id uuid.UUID) (*Conversation, error)
	ListConversationsByUser(ctx context.Context, userID uuid.UUID) ([]*Conversation, error)
	UpdateName(ctx context.Context, id uuid.UUID, name string) error
	UpdateAvatarURL(ctx context.Context, id uuid.UUID, avatarURL string) error

	// Membership operations
	AddMembership(ctx context.Context, m *Membership) error
	RemoveMembership(ctx context.Context, conversationID, userID uuid.UUID) error
	GetMembership(ctx context.Context, conversationID, userID uuid.UUID) (*Membership, error)
	ListMemberships(ctx context.Context, conversationID uuid.UUID) ([]*Membership, error)
	SetMutedUntil(ctx context.Context, conversationID, userID uuid.UUID, until *time.Time) error

	// Message operations
	CreateMessage(ctx context.Context, msg *Message) error
	GetMessageByID(ctx context.Context, id uuid.UUID) (*Message, error)
	ListMessages(ctx context.Context, conversationID uuid.UUID, limit int, before *time.Time) ([]*Message, error)
	SoftDeleteMessage(ctx context.Context, id uuid.UUID) error
}

type repository struct {
	db *sqlx.DB
}

// NewRepository creates new chat repository
func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

// Conversation operations

func (r *repository) CreateConversation(ctx context.Context, conv *Conversation, memberIDs []uuid.UUID) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO conversations (id, kind, name, avatar_url, private, owner_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = tx.ExecContext(ctx, query,
		conv.ID,
		conv.Kind,
		conv.Name,
		conv.AvatarURL,
		conv.Private,
		conv.OwnerID,
		conv.CreatedAt,
	)
	if err != nil {
		return err
	}

	memberQuery := `
		INSERT INTO conversation_members (conversation_id, user_id, joined_at)
		VALUES ($1, $2, $3)
	`
	for _, userID := range memberIDs {
		if _, err := tx.ExecContext(ctx, memberQuery, conv.ID, userID, conv.CreatedAt); err != nil {
			return err
		}
	}

	// Every conversation carries the implicit "everyone" role from birth;
	// it commits with the conversation or not at all.
	if _, err := role.SeedDefaultRole(ctx, tx, conv.ID); err != nil {
		return err
	}

	return tx.Commit()
}

func (r *repository) GetConversationByID(ctx context.Context, id uuid.UUID) (*Conversation, error) {
	query := `SELECT * FROM conversations WHERE id = $1`
	var conv Conversation
	err := r.db.GetContext(ctx, &conv, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &conv, nil
}

func (r *repository) ListConversationsByUser(ctx context.Context, userID uuid.UUID) ([]*Conversation, error) {
	query := `
		SELECT c.* FROM conversations c
		JOIN conversation_members cm ON cm.conversation_id = c.id
		WHERE cm.user_id = $1
		ORDER BY c.created_at DESC
	`
	var convs []*Conversation
	err := r.db.SelectContext(ctx, &convs, query, userID)
	return convs, err
}

func (r *repository) UpdateName(ctx context.Context, id uuid.UUID, name string) error {
	query := `UPDATE conversations SET name = $1 WHERE id = $2`
	_, err := r.db.ExecContext(ctx, query, name, id)
	return err
}

func (r *repository) UpdateAvatarURL(ctx context.Context, id uuid.UUID, avatarURL string) error {
	query := `UPDATE conversations SET avatar_url = $1 WHERE id = $2`
	_, err := r.db.ExecContext(ctx, query, avatarURL, id)
	return err
}

// Membership operations

func (r *repository) AddMembership(ctx context.Context, m *Membership) error {
	query := `
		INSERT INTO conversation_members (conversation_id, user_id, joined_at)
		VALUES ($1, $2, $3)
	`
	_, err := r.db.ExecContext(ctx, query, m.ConversationID, m.UserID, m.JoinedAt)
	return err
}

func (r *repository) RemoveMembership(ctx context.Context, conversationID, userID uuid.UUID) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`DELETE FROM conversation_members WHERE conversation_id = $1 AND user_id = $2`,
		conversationID, userID)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrMemberNotFound
	}

	// Role grants do not survive the membership.
	_, err = tx.ExecContext(ctx, `
		DELETE FROM conversation_role_members crm
		USING conversation_roles cr
		WHERE crm.role_id = cr.id AND cr.conversation_id = $1 AND crm.user_id = $2
	`, conversationID, userID)
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (r *repository) GetMembership(ctx context.Context, conversationID, userID uuid.UUID) (*Membership, error) {
	query := `SELECT * FROM conversation_members WHERE conversation_id = $1 AND user_id = $2`
	var m Membership
	err := r.db.GetContext(ctx, &m, query, conversationID, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

func (r *repository) ListMemberships(ctx context.Context, conversationID uuid.UUID) ([]*Membership, error) {
	query := `SELECT * FROM conversation_members WHERE conversation_id = $1 ORDER BY joined_at ASC`
	var members []*Membership
	err := r.db.SelectContext(ctx, &members, query, conversationID)
	return members, err
}

func (r *repository) SetMutedUntil(ctx context.Context, conversationID, userID uuid.UUID, until *time.Time) error {
	var muted sql.NullTime
	if until != nil {
		muted = sql.NullTime{Time: *until, Valid: true}
	}
	query := `UPDATE conversation_members SET muted_until = $1 WHERE conversation_id = $2 AND user_id = $3`
	result, err := r.db.ExecContext(ctx, query, muted, conversationID, userID)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrMemberNotFound
	}
	return nil
}

// Message operations

func (r *repository) CreateMessage(ctx context.Context, msg *Message) error {
	query := `
		INSERT INTO messages (id, conversation_id, sender_id, content, message_type, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.ExecContext(ctx, query,
		msg.ID,
		msg.ConversationID,
		msg.SenderID,
		msg.Content,
		msg.MessageType,
		msg.CreatedAt,
	)
	return err
}

func (r *repository) GetMessageByID(ctx context.Context, id uuid.UUID) (*Message, error) {
	query := `SELECT * FROM messages WHERE id = $1 AND deleted_at IS NULL`
	var msg Message
	err := r.db.GetContext(ctx, &msg, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &msg, nil
}

func (r *repository) ListMessages(ctx context.Context, conversationID uuid.UUID, limit int, before *time.Time) ([]*Message, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	query := `
		SELECT * FROM messages
		WHERE conversation_id = $1 AND deleted_at IS NULL
	`
	args := []interface{}{conversationID}
	if before != nil {
		query += ` AND created_at < $2`
		args = append(args, *before)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT %d`, limit)

	var msgs []*Message
	err := r.db.SelectContext(ctx, &msgs, query, args...)
	return msgs, err
}

func (r *repository) SoftDeleteMessage(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE messages SET deleted_at = $1 WHERE id = $2 AND deleted_at IS NULL`
	result, err := r.db.ExecContext(ctx, query, time.Now(), id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrMessageNotFound
	}
	return nil
}
