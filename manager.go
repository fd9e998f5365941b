package identity

import (
	"context"
	"net/mail"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/hashid/pkg/hashid"
)

// RegisterUserParams carries the provisioning fields for a new account
type RegisterUserParams struct {
	Email       string
	Password    string
	FirstName   string
	LastName    string
	Phone       string
	Role        UserRole
	IsActive    bool
	IsVerified  bool
	IsSuperuser bool
	// UseHashid derives the user id deterministically from the email
	UseHashid bool
}

// FederatedLoginOptions controls the federated provisioning algorithm
type FederatedLoginOptions struct {
	// AssociateByEmail allows an assertion to resolve to a pre-existing
	// account with the same email. When false, a collision fails instead of
	// silently logging into someone else's account.
	AssociateByEmail bool
	// VerifiedByDefault marks accounts synthesized from assertions verified
	VerifiedByDefault bool
}

// Manager enforces account-provisioning policy on top of the Store
type Manager struct {
	store  Store
	hasher PasswordHasher
	sink   ActivitySink
	logger Logger
}

// NewManager returns a new Manager
func NewManager(store Store) *Manager {
	return &Manager{
		store:  store,
		hasher: NewBcryptHasher(),
		sink:   noopActivitySink{},
		logger: defLogger{},
	}
}

func (m *Manager) WithLogger(logger Logger) *Manager {
	m.logger = logger
	return m
}

// WithActivitySink configures an ActivitySink for audit events
func (m *Manager) WithActivitySink(sink ActivitySink) *Manager {
	m.sink = normalizeActivitySink(sink)
	return m
}

// WithHasher overrides the password hash primitive
func (m *Manager) WithHasher(hasher PasswordHasher) *Manager {
	if hasher != nil {
		m.hasher = hasher
	}
	return m
}

// Register normalizes the email, hashes the secret, and creates the account.
// Fails with ErrUserAlreadyExists when the email is taken.
func (m *Manager) Register(ctx context.Context, params RegisterUserParams) (*User, error) {
	email := NormalizeEmail(params.Email)
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, errors.Wrap(err, errors.CategoryValidation, "invalid email address").
			WithMetadata(map[string]any{"email": params.Email})
	}

	hash, err := m.hasher.HashPassword(params.Password)
	if err != nil {
		var richErr *errors.Error
		if errors.As(err, &richErr) {
			return nil, errors.Wrap(richErr, errors.CategoryValidation, "invalid password provided")
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to hash password")
	}

	user := &User{
		Email:        email,
		PasswordHash: hash,
		FirstName:    params.FirstName,
		LastName:     params.LastName,
		Phone:        params.Phone,
		Role:         params.Role,
		IsActive:     params.IsActive,
		IsVerified:   params.IsVerified,
		IsSuperuser:  params.IsSuperuser,
	}

	if params.UseHashid {
		if id, err := hashid.NewUUID(email); err == nil {
			user.ID = id
		}
	}

	created, err := m.store.Users().Register(ctx, user)
	if err != nil {
		if IsAlreadyExists(err) {
			return nil, err
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "could not create user")
	}

	m.emitEvent(ctx, ActivityEventUserRegistered, created, nil)

	return created, nil
}

// Authenticate verifies an email/password pair. Unknown emails and wrong
// passwords yield the same error, and both cost a hash comparison so timing
// does not leak account existence.
func (m *Manager) Authenticate(ctx context.Context, email, password string) (*User, error) {
	user, err := m.store.Users().GetByEmail(ctx, email)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			m.hasher.ComparePasswordAndHash(password, dummyDigest())
			return nil, ErrInvalidCredentials
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to retrieve user during verification")
	}

	if !user.HasUsablePassword() {
		m.hasher.ComparePasswordAndHash(password, dummyDigest())
		m.emitEvent(ctx, ActivityEventLoginFailure, user, map[string]any{"reason": "no usable password"})
		return nil, ErrInvalidCredentials
	}

	if err := m.hasher.ComparePasswordAndHash(password, user.PasswordHash); err != nil {
		m.emitEvent(ctx, ActivityEventLoginFailure, user, map[string]any{"reason": "password mismatch"})
		return nil, ErrInvalidCredentials
	}

	m.emitEvent(ctx, ActivityEventLoginSuccess, user, nil)

	return user, nil
}

// FederatedLogin converges a third-party identity assertion onto a local
// account by email:
//  1. look up the user by email
//  2. found + association disabled: fail with ErrUserAlreadyExists
//  3. found + association enabled: return the existing user unchanged
//  4. not found: synthesize an account with a random placeholder secret
func (m *Manager) FederatedLogin(ctx context.Context, email string, opts FederatedLoginOptions) (*User, error) {
	user, err := m.store.Users().GetByEmail(ctx, email)
	if err == nil {
		if !opts.AssociateByEmail {
			return nil, ErrUserAlreadyExists
		}
		m.emitEvent(ctx, ActivityEventFederatedLogin, user, map[string]any{"associated": true})
		return user, nil
	}

	if !repository.IsRecordNotFound(err) {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to retrieve user during federated login")
	}

	created, err := m.Register(ctx, RegisterUserParams{
		Email:      email,
		Password:   RandomPassword(),
		Role:       RoleMember,
		IsActive:   true,
		IsVerified: opts.VerifiedByDefault,
	})
	if err != nil {
		return nil, err
	}

	m.emitEvent(ctx, ActivityEventFederatedLogin, created, map[string]any{"associated": false})

	return created, nil
}

// BootstrapAdmin provisions the administrator account idempotently: an
// existing account with the same email is returned as-is.
func (m *Manager) BootstrapAdmin(ctx context.Context, email, password string) (*User, error) {
	if email == "" || password == "" {
		return nil, ErrMissingBootstrapConfig
	}

	user, err := m.Register(ctx, RegisterUserParams{
		Email:       email,
		Password:    password,
		FirstName:   "Root",
		LastName:    "User",
		Role:        RoleAdmin,
		IsActive:    true,
		IsVerified:  true,
		IsSuperuser: true,
	})

	if err == nil {
		return user, nil
	}

	if !IsAlreadyExists(err) {
		return nil, err
	}

	m.logger.Warn("admin user already exists: %s", NormalizeEmail(email))

	return m.store.Users().GetByEmail(ctx, email)
}

// ListUsers returns an unordered projection of all accounts
func (m *Manager) ListUsers(ctx context.Context) ([]*User, error) {
	return m.store.Users().List(ctx)
}

func (m *Manager) emitEvent(ctx context.Context, eventType ActivityEventType, user *User, metadata map[string]any) {
	event := ActivityEvent{
		EventType:  eventType,
		Metadata:   metadata,
		OccurredAt: time.Now(),
	}

	if user != nil {
		event.UserID = user.ID.String()
		event.Email = user.Email
	}

	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}

	if err := normalizeActivitySink(m.sink).Record(ctx, event); err != nil {
		m.logger.Warn("activity sink record error: %v", err)
	}
}
