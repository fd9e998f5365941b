package identity_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	identity "github.com/goliatone/go-identity"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

// fakeStore is an in-memory Store enforcing the same invariants the real
// store gets from its constraints: unique email, atomic token creation.
type fakeStore struct {
	users  *fakeUsers
	tokens *fakeTokens
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users: &fakeUsers{
			byID: map[uuid.UUID]*identity.User{},
		},
		tokens: &fakeTokens{
			byValue: map[string]*identity.AccessToken{},
		},
	}
}

func (s *fakeStore) Users() identity.Users               { return s.users }
func (s *fakeStore) AccessTokens() identity.AccessTokens { return s.tokens }

type fakeUsers struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*identity.User
}

func (f *fakeUsers) GetByID(ctx context.Context, id uuid.UUID) (*identity.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if user, ok := f.byID[id]; ok {
		clone := *user
		return &clone, nil
	}
	return nil, repository.NewRecordNotFound()
}

func (f *fakeUsers) GetByEmail(ctx context.Context, email string) (*identity.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	normalized := identity.NormalizeEmail(email)
	for _, user := range f.byID {
		if user.Email == normalized {
			clone := *user
			return &clone, nil
		}
	}
	return nil, repository.NewRecordNotFound()
}

func (f *fakeUsers) Register(ctx context.Context, user *identity.User) (*identity.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	normalized := identity.NormalizeEmail(user.Email)
	for _, existing := range f.byID {
		if existing.Email == normalized {
			return nil, identity.ErrUserAlreadyExists
		}
	}

	clone := *user
	clone.Email = normalized
	if clone.ID == uuid.Nil {
		clone.ID = uuid.New()
	}
	if clone.Role == "" {
		clone.Role = identity.RoleMember
	}

	f.byID[clone.ID] = &clone

	result := clone
	return &result, nil
}

func (f *fakeUsers) List(ctx context.Context) ([]*identity.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]*identity.User, 0, len(f.byID))
	for _, user := range f.byID {
		clone := *user
		out = append(out, &clone)
	}
	return out, nil
}

type fakeTokens struct {
	mu      sync.Mutex
	byValue map[string]*identity.AccessToken
}

func (f *fakeTokens) Create(ctx context.Context, userID uuid.UUID) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	value := uuid.New().String()
	f.byValue[value] = &identity.AccessToken{
		Token:     value,
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
	}
	return value, nil
}

func (f *fakeTokens) Resolve(ctx context.Context, token string, maxAge time.Duration) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	record, ok := f.byValue[token]
	if !ok {
		return uuid.Nil, repository.NewRecordNotFound()
	}

	if maxAge > 0 && time.Now().After(record.ExpiresAt(maxAge)) {
		delete(f.byValue, token)
		return uuid.Nil, repository.NewRecordNotFound()
	}

	return record.UserID, nil
}

func (f *fakeTokens) Delete(ctx context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.byValue, token)
	return nil
}

// backdate rewinds a token's creation so expiry paths can be exercised
func (f *fakeTokens) backdate(token string, by time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if record, ok := f.byValue[token]; ok {
		record.CreatedAt = record.CreatedAt.Add(-by)
	}
}

// plaintextHasher keeps manager tests fast; bcrypt behavior is covered in
// its own tests.
type plaintextHasher struct{}

func (plaintextHasher) HashPassword(password string) (string, error) {
	if password == "" {
		return "", identity.ErrNoEmptyString
	}
	return "hash:" + password, nil
}

func (plaintextHasher) ComparePasswordAndHash(password, hash string) error {
	if hash != "hash:"+password {
		return identity.ErrMismatchedHashAndPassword
	}
	return nil
}

type captureLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *captureLogger) log(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, fmt.Sprintf(format, args...))
}

func (l *captureLogger) Debug(format string, args ...any) { l.log(format, args...) }
func (l *captureLogger) Info(format string, args ...any)  { l.log(format, args...) }
func (l *captureLogger) Warn(format string, args ...any)  { l.log(format, args...) }
func (l *captureLogger) Error(format string, args ...any) { l.log(format, args...) }

func (l *captureLogger) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string{}, l.lines...)
}

type capturingSink struct {
	mu     sync.Mutex
	events []identity.ActivityEvent
}

func (c *capturingSink) Record(ctx context.Context, evt identity.ActivityEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, evt)
	return nil
}

func (c *capturingSink) byType(t identity.ActivityEventType) []identity.ActivityEvent {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []identity.ActivityEvent
	for _, evt := range c.events {
		if evt.EventType == t {
			out = append(out, evt)
		}
	}
	return out
}
