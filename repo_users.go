package identity

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type users struct {
	repo repository.Repository[*User]
	db   *bun.DB
}

var _ Users = (*users)(nil)

// NewUsersRepository builds the bun-backed Users store
func NewUsersRepository(db *bun.DB) Users {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &users{
		repo: repo,
		db:   db,
	}
}

func (a *users) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	record := &User{}
	err := a.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{"id": id.String()})
		}
		return nil, err
	}

	return record, nil
}

func (a *users) GetByEmail(ctx context.Context, email string) (*User, error) {
	record := &User{}
	err := a.db.NewSelect().
		Model(record).
		Where("lower(?TableAlias.email) = ?", NormalizeEmail(email)).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{"email": email})
		}
		return nil, err
	}

	return record, nil
}

// Register inserts a new account. The unique constraint on email is what
// guarantees concurrent duplicate registrations end with exactly one
// success; the loser observes ErrUserAlreadyExists.
func (a *users) Register(ctx context.Context, record *User) (*User, error) {
	prepareUserDefaults(record)

	created, err := a.repo.CreateTx(ctx, a.db, record)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrUserAlreadyExists
		}
		return nil, err
	}

	return created, nil
}

func (a *users) List(ctx context.Context) ([]*User, error) {
	var records []*User
	if err := a.db.NewSelect().Model(&records).Scan(ctx); err != nil {
		return nil, err
	}
	return records, nil
}

func prepareUserDefaults(record *User) {
	if record == nil {
		return
	}

	if record.Role == "" {
		record.Role = RoleMember
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	record.Email = NormalizeEmail(record.Email)
}

// NormalizeEmail lowercases and trims the comparison key
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// isUniqueViolation walks the wrapped chain down to the driver error. The
// repository layer wraps driver failures in a categorized error whose
// rendered message is generic, so the constraint text only shows up on the
// source error, never on Error() of the wrapper.
func isUniqueViolation(err error) bool {
	for err != nil {
		if isUniqueViolationMessage(err.Error()) {
			return true
		}

		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) && richErr.Source != nil && richErr.Source != err {
			if isUniqueViolationMessage(richErr.Message) {
				return true
			}
			err = richErr.Source
			continue
		}

		err = errors.Unwrap(err)
	}
	return false
}

func isUniqueViolationMessage(msg string) bool {
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "constraint failed: users.email")
}
