package identity

import (
	"github.com/goliatone/go-router"
)

// Requirements states what a guarded endpoint demands of the resolved user
type Requirements struct {
	Active   bool
	Verified bool
}

// Guards are request-scoped predicates built atop the authentication
// backend, consumed by the routing layer to protect endpoints.
type Guards struct {
	backend *Backend
	logger  Logger
}

// NewGuards returns guards bound to a backend
func NewGuards(backend *Backend) *Guards {
	return &Guards{
		backend: backend,
		logger:  defLogger{},
	}
}

func (g *Guards) WithLogger(logger Logger) *Guards {
	g.logger = logger
	return g
}

// CurrentUser resolves the request's credential. Absent or invalid
// credentials fail with ErrUnauthenticated; a resolved user that misses an
// active/verified requirement fails with ErrForbidden.
func (g *Guards) CurrentUser(c router.Context, req Requirements) (*User, error) {
	user, err := g.backend.CurrentUser(c)
	if err != nil {
		return nil, ErrUnauthenticated
	}

	if err := checkRequirements(user, req); err != nil {
		return nil, err
	}

	return user, nil
}

// OptionalCurrentUser returns (nil, nil) when no credential is presented,
// but still fails when a credential is present and invalid. Use the lenient
// variant to also swallow invalid credentials.
func (g *Guards) OptionalCurrentUser(c router.Context, req Requirements) (*User, error) {
	if g.backend.Transport().Read(c) == "" {
		return nil, nil
	}
	return g.CurrentUser(c, req)
}

// OptionalCurrentUserLenient treats every resolution failure like a missing
// credential and returns (nil, nil).
func (g *Guards) OptionalCurrentUserLenient(c router.Context, req Requirements) (*User, error) {
	user, err := g.CurrentUser(c, req)
	if err != nil {
		g.logger.Debug("optional auth failed, proceeding: %v", err)
		return nil, nil
	}
	return user, nil
}

// RequireUser returns middleware that resolves the current user, enforces
// the requirements, and stashes the user in the request context for
// downstream handlers.
func (g *Guards) RequireUser(req Requirements, errorHandler func(router.Context, error) error) router.MiddlewareFunc {
	if errorHandler == nil {
		errorHandler = func(c router.Context, err error) error {
			return err
		}
	}

	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			user, err := g.CurrentUser(c, req)
			if err != nil {
				return errorHandler(c, err)
			}

			c.SetContext(WithContext(c.Context(), user))
			return hf(c)
		}
	}
}

// RequirePrivileged is RequireUser plus the privilege predicate
func (g *Guards) RequirePrivileged(req Requirements, errorHandler func(router.Context, error) error) router.MiddlewareFunc {
	if errorHandler == nil {
		errorHandler = func(c router.Context, err error) error {
			return err
		}
	}

	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			user, err := g.CurrentUser(c, req)
			if err != nil {
				return errorHandler(c, err)
			}

			if !IsPrivileged(user) {
				return errorHandler(c, ErrForbidden)
			}

			c.SetContext(WithContext(c.Context(), user))
			return hf(c)
		}
	}
}

// IsPrivileged reports whether the user is an administrator or superuser.
// It is a branching predicate, not an access-denial mechanism.
func IsPrivileged(user *User) bool {
	return user.IsPrivileged()
}

func checkRequirements(user *User, req Requirements) error {
	if user == nil {
		return ErrUnauthenticated
	}

	if req.Active && !user.IsActive {
		return ErrForbidden
	}

	if req.Verified && !user.IsVerified {
		return ErrForbidden
	}

	return nil
}
