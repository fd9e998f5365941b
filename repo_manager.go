package identity

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/uptrace/bun"
)

// BunStore is the concrete Store over a bun database. It adds transactional
// and validation helpers the narrow Store interface does not need.
type BunStore interface {
	Store
	Validate() error
	MustValidate()
	RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error
}

type store struct {
	db     *bun.DB
	users  Users
	tokens AccessTokens
}

// NewStore assembles the bun-backed credential store
func NewStore(db *bun.DB) BunStore {
	return &store{
		db:     db,
		users:  NewUsersRepository(db),
		tokens: NewAccessTokensRepository(db),
	}
}

func (m store) Validate() error {
	if m.users == nil {
		return errors.New("repository users should be initialized")
	}

	if m.tokens == nil {
		return errors.New("repository access tokens should be initialized")
	}

	return nil
}

func (m store) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m store) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m store) Users() Users {
	return m.users
}

func (m store) AccessTokens() AccessTokens {
	return m.tokens
}
