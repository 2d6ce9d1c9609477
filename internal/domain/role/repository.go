package role

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// Repository defines role data access. All rank-mutating methods run as a
// single transaction that locks the owning conversation row, so rank
// mutations on one conversation are linearized while reads stay lock-free.
type Repository interface {
	GetRoleByID(ctx context.Context, id uuid.UUID) (*Role, error)
	ListByConversation(ctx context.Context, conversationID uuid.UUID) ([]*Role, error)
	GetDefaultRole(ctx context.Context, conversationID uuid.UUID) (*Role, error)
	ListMemberRoles(ctx context.Context, conversationID, userID uuid.UUID) ([]*Role, error)

	CreateRole(ctx context.Context, conversationID uuid.UUID, name string) (*Role, error)
	UpdateRole(ctx context.Context, roleID uuid.UUID, name *string, permissions []string) error
	DeleteRole(ctx context.Context, conversationID, roleID uuid.UUID) error
	Reorder(ctx context.Context, conversationID uuid.UUID, orderedIDs []uuid.UUID) error

	AddRoleMembers(ctx context.Context, roleID uuid.UUID, userIDs []uuid.UUID) error
	RemoveRoleMember(ctx context.Context, roleID, userID uuid.UUID) error
	ListRoleMembers(ctx context.Context, roleID uuid.UUID) ([]*RoleMember, error)
}

type repository struct {
	db *sqlx.DB
}

// NewRepository creates a Postgres-backed role repository
func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) GetRoleByID(ctx context.Context, id uuid.UUID) (*Role, error) {
	query := `SELECT * FROM conversation_roles WHERE id = $1`
	var role Role
	err := r.db.GetContext(ctx, &role, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &role, nil
}

func (r *repository) ListByConversation(ctx context.Context, conversationID uuid.UUID) ([]*Role, error) {
	query := `
		SELECT * FROM conversation_roles
		WHERE conversation_id = $1
		ORDER BY rank ASC NULLS LAST
	`
	var roles []*Role
	err := r.db.SelectContext(ctx, &roles, query, conversationID)
	return roles, err
}

func (r *repository) GetDefaultRole(ctx context.Context, conversationID uuid.UUID) (*Role, error) {
	query := `SELECT * FROM conversation_roles WHERE conversation_id = $1 AND is_default = TRUE`
	var role Role
	err := r.db.GetContext(ctx, &role, query, conversationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &role, nil
}

// ListMemberRoles returns the roles a user holds in a conversation: explicit
// grants plus the implicit default role.
func (r *repository) ListMemberRoles(ctx context.Context, conversationID, userID uuid.UUID) ([]*Role, error) {
	query := `
		SELECT cr.* FROM conversation_roles cr
		LEFT JOIN conversation_role_members crm ON crm.role_id = cr.id AND crm.user_id = $2
		WHERE cr.conversation_id = $1 AND (cr.is_default = TRUE OR crm.user_id IS NOT NULL)
		ORDER BY cr.rank ASC NULLS LAST
	`
	var roles []*Role
	err := r.db.SelectContext(ctx, &roles, query, conversationID, userID)
	return roles, err
}

// SeedDefaultRole inserts the default "everyone" role and the rank counter
// row inside the caller's transaction. The chat repository calls this when it
// creates the owning conversation, so a conversation and its default role
// commit together or not at all.
func SeedDefaultRole(ctx context.Context, tx *sqlx.Tx, conversationID uuid.UUID) (*Role, error) {
	role := &Role{
		ID:             uuid.New(),
		ConversationID: conversationID,
		Name:           DefaultRoleName,
		Permissions:    pq.StringArray{},
		Rank:           DefaultRank(),
		IsDefault:      true,
		CreatedAt:      time.Now(),
	}

	query := `
		INSERT INTO conversation_roles (id, conversation_id, name, permissions, rank, is_default, created_at)
		VALUES ($1, $2, $3, $4, $5, TRUE, $6)
	`
	if _, err := tx.ExecContext(ctx, query,
		role.ID, role.ConversationID, role.Name, role.Permissions, role.Rank, role.CreatedAt,
	); err != nil {
		return nil, err
	}

	counterQuery := `
		INSERT INTO conversation_rank_counters (conversation_id, last_rank)
		VALUES ($1, 0)
		ON CONFLICT (conversation_id) DO NOTHING
	`
	if _, err := tx.ExecContext(ctx, counterQuery, conversationID); err != nil {
		return nil, err
	}
	return role, nil
}

func (r *repository) CreateRole(ctx context.Context, conversationID uuid.UUID, name string) (*Role, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := lockConversation(ctx, tx, conversationID); err != nil {
		return nil, err
	}

	count, err := countLeveled(ctx, tx, conversationID)
	if err != nil {
		return nil, err
	}

	role := &Role{
		ID:             uuid.New(),
		ConversationID: conversationID,
		Name:           name,
		Permissions:    pq.StringArray{},
		Rank:           nextRank(count),
		CreatedAt:      time.Now(),
	}

	query := `
		INSERT INTO conversation_roles (id, conversation_id, name, permissions, rank, is_default, created_at)
		VALUES ($1, $2, $3, $4, $5, FALSE, $6)
	`
	if _, err := tx.ExecContext(ctx, query,
		role.ID, role.ConversationID, role.Name, role.Permissions, role.Rank, role.CreatedAt,
	); err != nil {
		return nil, err
	}

	if err := syncCounter(ctx, tx, conversationID, role.Rank.Level); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return role, nil
}

// UpdateRole applies the rename and the permission replacement as one
// statement; a nil name or nil permission slice leaves that column untouched.
func (r *repository) UpdateRole(ctx context.Context, roleID uuid.UUID, name *string, permissions []string) error {
	query := `
		UPDATE conversation_roles
		SET name = COALESCE($1, name), permissions = COALESCE($2, permissions)
		WHERE id = $3
	`
	_, err := r.db.ExecContext(ctx, query, name, pq.StringArray(permissions), roleID)
	return err
}

// DeleteRole removes a leveled role and closes the gap it leaves: every role
// ranked below it moves up by one and the counter is recomputed from the live
// count, all inside one transaction.
func (r *repository) DeleteRole(ctx context.Context, conversationID, roleID uuid.UUID) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := lockConversation(ctx, tx, conversationID); err != nil {
		return err
	}

	var role Role
	err = tx.GetContext(ctx, &role, `SELECT * FROM conversation_roles WHERE id = $1 AND conversation_id = $2`, roleID, conversationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrRoleNotFound
		}
		return err
	}
	if role.Rank.IsDefault() {
		return ErrDefaultRoleProtected
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM conversation_roles WHERE id = $1`, roleID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM conversation_role_members WHERE role_id = $1`, roleID); err != nil {
		return err
	}

	// Two-phase shift so UNIQUE(conversation_id, rank) holds at every step.
	shift := `
		UPDATE conversation_roles SET rank = -(rank - 1)
		WHERE conversation_id = $1 AND rank > $2
	`
	if _, err := tx.ExecContext(ctx, shift, conversationID, role.Rank.Level); err != nil {
		return err
	}
	if err := unstageRanks(ctx, tx, conversationID); err != nil {
		return err
	}

	// Recompute rather than decrement: the live count is the truth.
	count, err := countLeveled(ctx, tx, conversationID)
	if err != nil {
		return err
	}
	if err := syncCounter(ctx, tx, conversationID, count); err != nil {
		return err
	}

	return tx.Commit()
}

// Reorder applies the dense range re-pack to the given role IDs. The rank
// snapshot is read and the new assignment computed inside the conversation
// lock, so two racing reorders serialize.
func (r *repository) Reorder(ctx context.Context, conversationID uuid.UUID, orderedIDs []uuid.UUID) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := lockConversation(ctx, tx, conversationID); err != nil {
		return err
	}

	var roles []*Role
	err = tx.SelectContext(ctx, &roles, `SELECT * FROM conversation_roles WHERE conversation_id = $1`, conversationID)
	if err != nil {
		return err
	}

	plan, err := planReorder(roles, orderedIDs)
	if err != nil {
		return err
	}
	if len(plan) == 0 {
		// Already in the requested order.
		return tx.Commit()
	}

	for id, rank := range plan {
		if _, err := tx.ExecContext(ctx,
			`UPDATE conversation_roles SET rank = $1 WHERE id = $2`, -rank, id,
		); err != nil {
			return err
		}
	}
	if err := unstageRanks(ctx, tx, conversationID); err != nil {
		return err
	}

	return tx.Commit()
}

// AddRoleMembers grants the role to every listed user in one transaction, so
// a failing grant rolls the whole batch back.
func (r *repository) AddRoleMembers(ctx context.Context, roleID uuid.UUID, userIDs []uuid.UUID) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO conversation_role_members (role_id, user_id, granted_at)
		VALUES ($1, $2, $3)
	`
	now := time.Now()
	for _, userID := range userIDs {
		if _, err := tx.ExecContext(ctx, query, roleID, userID, now); err != nil {
			var pqErr *pq.Error
			if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
				return ErrAlreadyRoleMember
			}
			return err
		}
	}
	return tx.Commit()
}

func (r *repository) RemoveRoleMember(ctx context.Context, roleID, userID uuid.UUID) error {
	query := `DELETE FROM conversation_role_members WHERE role_id = $1 AND user_id = $2`
	result, err := r.db.ExecContext(ctx, query, roleID, userID)
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

func (r *repository) ListRoleMembers(ctx context.Context, roleID uuid.UUID) ([]*RoleMember, error) {
	query := `SELECT * FROM conversation_role_members WHERE role_id = $1 ORDER BY granted_at ASC`
	var members []*RoleMember
	err := r.db.SelectContext(ctx, &members, query, roleID)
	return members, err
}

// Transaction helpers

func lockConversation(ctx context.Context, tx *sqlx.Tx, conversationID uuid.UUID) error {
	var id uuid.UUID
	err := tx.GetContext(ctx, &id, `SELECT id FROM conversations WHERE id = $1 FOR UPDATE`, conversationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrConversationNotFound
		}
		return err
	}
	return nil
}

func countLeveled(ctx context.Context, tx *sqlx.Tx, conversationID uuid.UUID) (int, error) {
	var count int
	err := tx.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM conversation_roles WHERE conversation_id = $1 AND rank IS NOT NULL`,
		conversationID)
	return count, err
}

func syncCounter(ctx context.Context, tx *sqlx.Tx, conversationID uuid.UUID, lastRank int) error {
	query := `
		INSERT INTO conversation_rank_counters (conversation_id, last_rank)
		VALUES ($1, $2)
		ON CONFLICT (conversation_id) DO UPDATE SET last_rank = $2
	`
	_, err := tx.ExecContext(ctx, query, conversationID, lastRank)
	return err
}

// unstageRanks flips staged (negated) ranks to their final values.
func unstageRanks(ctx context.Context, tx *sqlx.Tx, conversationID uuid.UUID) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE conversation_roles SET rank = -rank WHERE conversation_id = $1 AND rank < 0`,
		conversationID)
	return err
}
