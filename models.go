package identity

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// UserRole is the user's role
type UserRole = string

const (
	// RoleMember is the unprivileged default role
	RoleMember UserRole = "member"
	// RoleAdmin is the administrator role
	RoleAdmin UserRole = "admin"
)

// User is the identity record backing every account. Email is the
// de-duplication key and is stored normalized (lowercase, trimmed); the
// store enforces uniqueness with a constraint so concurrent registrations
// can never produce two records with the same email.
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Role          UserRole   `bun:"user_role,notnull" json:"user_role,omitempty"`
	FirstName     string     `bun:"first_name" json:"first_name,omitempty"`
	LastName      string     `bun:"last_name" json:"last_name,omitempty"`
	Email         string     `bun:"email,notnull,unique" json:"email,omitempty"`
	Phone         string     `bun:"phone_number" json:"phone_number,omitempty"`
	PasswordHash  string     `bun:"password_hash,nullzero" json:"-"`
	IsActive      bool       `bun:"is_active" json:"is_active"`
	IsVerified    bool       `bun:"is_verified" json:"is_verified"`
	IsSuperuser   bool       `bun:"is_superuser" json:"is_superuser"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// IsPrivileged reports whether the user satisfies the
// administrator-or-superuser predicate. Derived on demand, never persisted.
func (u *User) IsPrivileged() bool {
	if u == nil {
		return false
	}
	return u.Role == RoleAdmin || u.IsSuperuser
}

// HasUsablePassword reports whether the account can authenticate with a
// password. Federated-only accounts carry a random placeholder hash; a
// record with no hash at all must never match.
func (u *User) HasUsablePassword() bool {
	return u != nil && u.PasswordHash != ""
}

// AccessToken is an opaque session credential bound to exactly one user.
// The value is cryptographically random; expiry is computed from CreatedAt
// against the configured lifetime, so rows carry no TTL column.
type AccessToken struct {
	bun.BaseModel `bun:"table:access_tokens,alias:tok"`
	Token         string    `bun:"token,pk" json:"-"`
	UserID        uuid.UUID `bun:"user_id,notnull,type:uuid" json:"user_id,omitempty"`
	CreatedAt     time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at,omitempty"`
}

// ExpiresAt returns the instant the token lapses for a given lifetime.
func (t *AccessToken) ExpiresAt(ttl time.Duration) time.Time {
	return t.CreatedAt.Add(ttl)
}
