package identity

import (
	"context"
	"database/sql"
	"io/fs"

	"github.com/goliatone/go-errors"
	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// Module is the fully assembled identity subsystem. Construction is
// explicit and ordered — store, manager, session strategy, auth strategy,
// backend, guards — with references passed by hand to the routing layer.
// There is no ambient registry and no process-wide singleton.
type Module struct {
	cfg      Config
	store    BunStore
	manager  *Manager
	sessions *DatabaseStrategy
	strategy AuthStrategy
	backend  *Backend
	guards   *Guards
	admin    *User
}

// BootstrapOption mutates the module during assembly
type BootstrapOption func(*bootstrapOptions)

type bootstrapOptions struct {
	logger   Logger
	sink     ActivitySink
	hasher   PasswordHasher
	verifier *AssertionVerifier
}

// WithBootstrapLogger sets the logger shared by the assembled components
func WithBootstrapLogger(logger Logger) BootstrapOption {
	return func(o *bootstrapOptions) {
		o.logger = logger
	}
}

// WithBootstrapActivitySink sets the audit sink
func WithBootstrapActivitySink(sink ActivitySink) BootstrapOption {
	return func(o *bootstrapOptions) {
		o.sink = sink
	}
}

// WithBootstrapHasher overrides the password hash primitive
func WithBootstrapHasher(hasher PasswordHasher) BootstrapOption {
	return func(o *bootstrapOptions) {
		o.hasher = hasher
	}
}

// WithAssertionVerifier supplies a pre-built federated verifier, bypassing
// the JWKS fetch. Required for federated deployments that pin keys.
func WithAssertionVerifier(v *AssertionVerifier) BootstrapOption {
	return func(o *bootstrapOptions) {
		o.verifier = v
	}
}

// Bootstrap assembles the subsystem over an open database and provisions
// the administrator account from the environment contract. It fails before
// serving anything when the bootstrap values are missing.
func Bootstrap(ctx context.Context, cfg Config, db *bun.DB, opts ...BootstrapOption) (*Module, error) {
	if cfg == nil {
		return nil, ErrMissingBootstrapConfig
	}

	options := &bootstrapOptions{
		logger: defLogger{},
		sink:   noopActivitySink{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(options)
		}
	}

	store := NewStore(db)
	store.MustValidate()

	manager := NewManager(store).
		WithLogger(options.logger).
		WithActivitySink(options.sink)
	if options.hasher != nil {
		manager.WithHasher(options.hasher)
	}

	sessions := NewDatabaseStrategy(store, cfg.GetSessionTTL()).
		WithLogger(options.logger)

	strategy, err := buildStrategy(cfg, manager, sessions, options)
	if err != nil {
		return nil, err
	}

	backend := NewBackend(sessions, NewCookieTransport(cfg)).
		WithLogger(options.logger).
		WithActivitySink(options.sink)

	guards := NewGuards(backend).
		WithLogger(options.logger)

	admin, err := manager.BootstrapAdmin(ctx, cfg.GetAdminEmail(), cfg.GetAdminPassword())
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to bootstrap administrator account")
	}

	return &Module{
		cfg:      cfg,
		store:    store,
		manager:  manager,
		sessions: sessions,
		strategy: strategy,
		backend:  backend,
		guards:   guards,
		admin:    admin,
	}, nil
}

func buildStrategy(cfg Config, manager *Manager, sessions SessionStrategy, options *bootstrapOptions) (AuthStrategy, error) {
	switch cfg.GetStrategy() {
	case StrategyFederated:
		verifier := options.verifier
		if verifier == nil {
			var err error
			verifier, err = NewAssertionVerifier(
				cfg.GetFederatedJWKSURL(),
				cfg.GetFederatedIssuer(),
				cfg.GetFederatedAudience(),
			)
			if err != nil {
				return nil, err
			}
		}
		return NewFederatedStrategy(verifier, manager, sessions, FederatedLoginOptions{
			AssociateByEmail:  true,
			VerifiedByDefault: true,
		}), nil
	default:
		return NewPasswordStrategy(manager, sessions), nil
	}
}

// Store exposes the credential store
func (m *Module) Store() Store {
	return m.store
}

// Manager exposes the user manager
func (m *Module) Manager() *Manager {
	return m.manager
}

// Sessions exposes the session strategy
func (m *Module) Sessions() SessionStrategy {
	return m.sessions
}

// Strategy exposes the configured authentication strategy
func (m *Module) Strategy() AuthStrategy {
	return m.strategy
}

// Backend exposes the authentication backend
func (m *Module) Backend() *Backend {
	return m.backend
}

// Guards exposes the access guards
func (m *Module) Guards() *Guards {
	return m.guards
}

// Admin returns the bootstrapped administrator account
func (m *Module) Admin() *User {
	return m.admin
}

// OpenDatabase opens the default sqlite-backed database, registers the
// package models, and runs the embedded migrations. The persistence config
// is caller-supplied so deployments keep one config source of truth.
func OpenDatabase(ctx context.Context, cfg persistence.Config, dsn string) (*bun.DB, error) {
	db, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to open database")
	}

	persistence.RegisterModel((*User)(nil))
	persistence.RegisterModel((*AccessToken)(nil))

	client, err := persistence.New(cfg, db, sqlitedialect.New())
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to initialize persistence client")
	}

	migrations, err := fs.Sub(GetMigrationsFS(), "data/sql/migrations")
	if err != nil {
		return nil, err
	}

	client.RegisterDialectMigrations(
		migrations,
		persistence.WithDialectSourceLabel("data/sql/migrations"),
		persistence.WithValidationTargets("postgres", "sqlite"),
	)

	if err := client.Migrate(ctx); err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to run migrations")
	}

	return client.DB(), nil
}
