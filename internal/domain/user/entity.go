package user

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// User represents a user account
type User struct {
	ID           uuid.UUID      `db:"id" json:"id"`
	Username     string         `db:"username" json:"username"`
	Email        string         `db:"email" json:"email"`
	PasswordHash string         `db:"password_hash" json:"-"`
	DisplayName  sql.NullString `db:"display_name" json:"display_name,omitempty"`
	AvatarURL    sql.NullString `db:"avatar_url" json:"avatar_url,omitempty"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	LastLoginAt  sql.NullTime   `db:"last_login_at" json:"last_login_at,omitempty"`
}
