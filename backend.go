package identity

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-router"
)

// CookieTransport carries the session credential on the wire. Max-age
// mirrors the session TTL; Secure is derived from the deployment's public
// URL scheme.
type CookieTransport struct {
	Name   string
	MaxAge time.Duration
	Secure bool
}

// NewCookieTransport derives the transport convention from config
func NewCookieTransport(cfg Config) CookieTransport {
	return CookieTransport{
		Name:   cfg.GetCookieName(),
		MaxAge: cfg.GetSessionTTL(),
		Secure: strings.HasPrefix(cfg.GetPublicURL(), "https://"),
	}
}

// Read extracts the credential from the request, "" when absent
func (t CookieTransport) Read(c router.Context) string {
	return c.Cookies(t.Name)
}

// Write packages a credential per the cookie convention
func (t CookieTransport) Write(c router.Context, token string) {
	c.Cookie(&router.Cookie{
		Name:     t.Name,
		Value:    token,
		Expires:  time.Now().Add(t.MaxAge),
		HTTPOnly: true,
		Secure:   t.Secure,
		SameSite: "Lax",
	})
}

// Clear emits the transport-level clearing instruction
func (t CookieTransport) Clear(c router.Context) {
	c.Cookie(&router.Cookie{
		Name:     t.Name,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   t.Secure,
		SameSite: "Lax",
	})
}

// Backend binds the cookie transport to a session strategy and exposes
// login/logout semantics. Per credential the state machine is
// issued -> active -> revoked-or-expired; a new login always issues a fresh
// credential.
type Backend struct {
	sessions  SessionStrategy
	transport CookieTransport
	sink      ActivitySink
	logger    Logger
}

// NewBackend returns a new authentication backend
func NewBackend(sessions SessionStrategy, transport CookieTransport) *Backend {
	return &Backend{
		sessions:  sessions,
		transport: transport,
		sink:      noopActivitySink{},
		logger:    defLogger{},
	}
}

func (b *Backend) WithLogger(logger Logger) *Backend {
	b.logger = logger
	return b
}

// WithActivitySink configures an ActivitySink for logout events
func (b *Backend) WithActivitySink(sink ActivitySink) *Backend {
	b.sink = normalizeActivitySink(sink)
	return b
}

// Transport exposes the cookie convention for guards and controllers
func (b *Backend) Transport() CookieTransport {
	return b.transport
}

// Login issues a session credential for an already-authenticated user and
// packages it per the transport convention.
func (b *Backend) Login(c router.Context, user *User) error {
	token, err := b.sessions.Issue(c.Context(), user)
	if err != nil {
		b.logger.Error("login issue token error: %v", err)
		return err
	}

	b.transport.Write(c, token)
	return nil
}

// Logout revokes the presented credential and clears the transport
// artifact. A missing or invalid credential fails with ErrUnauthenticated
// and leaves nothing to clear.
func (b *Backend) Logout(c router.Context) error {
	raw := b.transport.Read(c)
	if raw == "" {
		return ErrUnauthenticated
	}

	user, err := b.sessions.Resolve(c.Context(), raw)
	if err != nil {
		return ErrUnauthenticated
	}

	if err := b.sessions.Revoke(c.Context(), raw); err != nil {
		b.logger.Error("logout revoke error: %v", err)
		return err
	}

	b.transport.Clear(c)
	b.emitLogout(c.Context(), user)

	return nil
}

// CurrentUser resolves the request's credential to its user
func (b *Backend) CurrentUser(c router.Context) (*User, error) {
	raw := b.transport.Read(c)
	if raw == "" {
		return nil, ErrUnauthenticated
	}
	return b.sessions.Resolve(c.Context(), raw)
}

func (b *Backend) emitLogout(ctx context.Context, user *User) {
	event := ActivityEvent{
		EventType:  ActivityEventLogout,
		Metadata:   map[string]any{},
		OccurredAt: time.Now(),
	}

	if user != nil {
		event.UserID = user.ID.String()
		event.Email = user.Email
	}

	if err := normalizeActivitySink(b.sink).Record(ctx, event); err != nil {
		b.logger.Warn("activity sink record error: %v", err)
	}
}
