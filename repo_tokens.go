package identity

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// tokenEntropyBytes sizes the random token value; 43 base64 characters.
const tokenEntropyBytes = 32

type accessTokens struct {
	db     *bun.DB
	logger Logger
}

var _ AccessTokens = (*accessTokens)(nil)

// NewAccessTokensRepository builds the bun-backed token store
func NewAccessTokensRepository(db *bun.DB) AccessTokens {
	return &accessTokens{
		db:     db,
		logger: defLogger{},
	}
}

// Create issues a fresh random token bound to userID. A single insert keeps
// creation all-or-nothing: an aborted request either commits the row or
// leaves nothing behind.
func (a *accessTokens) Create(ctx context.Context, userID uuid.UUID) (string, error) {
	record := &AccessToken{
		Token:     newTokenValue(),
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
	}

	if _, err := a.db.NewInsert().Model(record).Exec(ctx); err != nil {
		return "", err
	}

	return record.Token, nil
}

// Resolve maps a token value to its owning user id. Unknown and expired
// tokens both come back as record-not-found; expired rows are removed
// best-effort so the table does not accumulate lapsed credentials.
func (a *accessTokens) Resolve(ctx context.Context, token string, maxAge time.Duration) (uuid.UUID, error) {
	record := &AccessToken{}
	err := a.db.NewSelect().
		Model(record).
		Where("?TableAlias.token = ?", token).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return uuid.Nil, repository.NewRecordNotFound()
		}
		return uuid.Nil, err
	}

	if maxAge > 0 && time.Now().After(record.ExpiresAt(maxAge)) {
		if err := a.Delete(ctx, token); err != nil {
			a.logger.Warn("failed to purge expired token: %v", err)
		}
		return uuid.Nil, repository.NewRecordNotFound()
	}

	return record.UserID, nil
}

// Delete revokes a token. Deleting an unknown or already revoked token is
// not an error.
func (a *accessTokens) Delete(ctx context.Context, token string) error {
	_, err := a.db.NewDelete().
		Model((*AccessToken)(nil)).
		Where("?TableAlias.token = ?", token).
		Exec(ctx)
	return err
}

func newTokenValue() string {
	buf := make([]byte, tokenEntropyBytes)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}
