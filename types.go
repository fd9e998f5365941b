package identity

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// StrategyKind selects which authentication strategy the process runs with.
// The set is closed: password or federated, chosen once at bootstrap.
type StrategyKind string

const (
	// StrategyPassword authenticates locally verified email/password pairs
	StrategyPassword StrategyKind = "password"
	// StrategyFederated authenticates third-party identity assertions
	StrategyFederated StrategyKind = "federated"
)

// ParseStrategyKind validates a configured strategy name
func ParseStrategyKind(s string) (StrategyKind, bool) {
	kind := StrategyKind(s)
	switch kind {
	case StrategyPassword, StrategyFederated:
		return kind, true
	default:
		return "", false
	}
}

// Config holds identity options
type Config interface {
	GetAdminEmail() string
	GetAdminPassword() string
	GetSessionTTL() time.Duration
	GetCookieName() string
	GetPublicURL() string
	GetStrategy() StrategyKind
	GetFederatedJWKSURL() string
	GetFederatedIssuer() string
	GetFederatedAudience() []string
}

// Users is the persistence contract for user records. Operations are atomic
// with respect to a single record; email uniqueness is the store's invariant.
type Users interface {
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Register(ctx context.Context, user *User) (*User, error)
	List(ctx context.Context) ([]*User, error)
}

// AccessTokens is the persistence contract for session credentials.
// Creation is all-or-nothing; Delete is idempotent.
type AccessTokens interface {
	Create(ctx context.Context, userID uuid.UUID) (string, error)
	Resolve(ctx context.Context, token string, maxAge time.Duration) (uuid.UUID, error)
	Delete(ctx context.Context, token string) error
}

// Store is the sole persistence boundary consumed by this package
type Store interface {
	Users() Users
	AccessTokens() AccessTokens
}

// SessionStrategy converts an authenticated user into an opaque bearer
// credential with a fixed lifetime, and resolves a credential back to a user.
type SessionStrategy interface {
	Issue(ctx context.Context, user *User) (string, error)
	Resolve(ctx context.Context, token string) (*User, error)
	Revoke(ctx context.Context, token string) error
}

// Credentials carries the material an AuthStrategy consumes. Password
// strategies read Email/Password, federated strategies read Assertion.
type Credentials struct {
	Email     string
	Password  string
	Assertion string
}

// AuthStrategy is the closed-set authentication contract: password and
// federated variants share the same login/logout/resolve surface so the
// session credential state machine stays single-sourced.
type AuthStrategy interface {
	Kind() StrategyKind
	Login(ctx context.Context, creds Credentials) (*User, error)
	Logout(ctx context.Context, token string) error
	Resolve(ctx context.Context, token string) (*User, error)
}

// PasswordHasher hashes and verifies secrets. The hash primitive itself is
// treated as an opaque one-way function.
type PasswordHasher interface {
	HashPassword(password string) (string, error)
	ComparePasswordAndHash(password, hash string) error
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] IDENTITY "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] IDENTITY "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] IDENTITY "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] IDENTITY "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
