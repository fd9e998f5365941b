package identity

import (
	"context"
	"time"
)

// DatabaseStrategy implements SessionStrategy over store-persisted opaque
// tokens with a fixed lifetime. Expired and unknown tokens are surfaced to
// callers as the same unauthenticated outcome, so probing a value reveals
// nothing about whether it ever existed.
type DatabaseStrategy struct {
	store  Store
	ttl    time.Duration
	logger Logger
}

var _ SessionStrategy = (*DatabaseStrategy)(nil)

// NewDatabaseStrategy returns a session strategy with the given lifetime
func NewDatabaseStrategy(store Store, ttl time.Duration) *DatabaseStrategy {
	return &DatabaseStrategy{
		store:  store,
		ttl:    ttl,
		logger: defLogger{},
	}
}

func (s *DatabaseStrategy) WithLogger(logger Logger) *DatabaseStrategy {
	s.logger = logger
	return s
}

// TTL returns the configured fixed lifetime
func (s *DatabaseStrategy) TTL() time.Duration {
	return s.ttl
}

// Issue creates a fresh credential for the user. Each login issues a new
// token; there is no renewal transition.
func (s *DatabaseStrategy) Issue(ctx context.Context, user *User) (string, error) {
	if user == nil {
		return "", ErrUnauthenticated
	}
	return s.store.AccessTokens().Create(ctx, user.ID)
}

// Resolve maps a credential back to its user, or ErrUnauthenticated
func (s *DatabaseStrategy) Resolve(ctx context.Context, token string) (*User, error) {
	if token == "" {
		return nil, ErrUnauthenticated
	}

	userID, err := s.store.AccessTokens().Resolve(ctx, token, s.ttl)
	if err != nil {
		return nil, ErrUnauthenticated
	}

	user, err := s.store.Users().GetByID(ctx, userID)
	if err != nil {
		// token outlived its user record
		s.logger.Debug("token resolved to missing user: %s", userID)
		return nil, ErrUnauthenticated
	}

	return user, nil
}

// Revoke deletes the credential; revoking an unknown token is not an error
func (s *DatabaseStrategy) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.store.AccessTokens().Delete(ctx, token)
}

// passwordStrategy authenticates locally verified email/password pairs
type passwordStrategy struct {
	manager  *Manager
	sessions SessionStrategy
}

// NewPasswordStrategy binds the password variant of the closed strategy set
func NewPasswordStrategy(manager *Manager, sessions SessionStrategy) AuthStrategy {
	return &passwordStrategy{manager: manager, sessions: sessions}
}

func (s *passwordStrategy) Kind() StrategyKind {
	return StrategyPassword
}

func (s *passwordStrategy) Login(ctx context.Context, creds Credentials) (*User, error) {
	return s.manager.Authenticate(ctx, creds.Email, creds.Password)
}

func (s *passwordStrategy) Logout(ctx context.Context, token string) error {
	return s.sessions.Revoke(ctx, token)
}

func (s *passwordStrategy) Resolve(ctx context.Context, token string) (*User, error) {
	return s.sessions.Resolve(ctx, token)
}

// federatedStrategy authenticates signed third-party identity assertions
type federatedStrategy struct {
	verifier *AssertionVerifier
	manager  *Manager
	sessions SessionStrategy
	opts     FederatedLoginOptions
}

// NewFederatedStrategy binds the federated variant of the closed strategy set
func NewFederatedStrategy(verifier *AssertionVerifier, manager *Manager, sessions SessionStrategy, opts FederatedLoginOptions) AuthStrategy {
	return &federatedStrategy{
		verifier: verifier,
		manager:  manager,
		sessions: sessions,
		opts:     opts,
	}
}

func (s *federatedStrategy) Kind() StrategyKind {
	return StrategyFederated
}

func (s *federatedStrategy) Login(ctx context.Context, creds Credentials) (*User, error) {
	assertion, err := s.verifier.Verify(creds.Assertion)
	if err != nil {
		return nil, err
	}
	return s.manager.FederatedLogin(ctx, assertion.Email, s.opts)
}

func (s *federatedStrategy) Logout(ctx context.Context, token string) error {
	return s.sessions.Revoke(ctx, token)
}

func (s *federatedStrategy) Resolve(ctx context.Context, token string) (*User, error) {
	return s.sessions.Resolve(ctx, token)
}
