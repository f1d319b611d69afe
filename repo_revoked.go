package passwordless

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// RevokedTokens is the blacklist of revoked token ids. Rows live until the
// original token would have expired anyway.
type RevokedTokens interface {
	repository.Repository[*RevokedToken]

	// Revoke records the jti. Revoking the same (jti, kind) twice is not an
	// error; the expiry is deterministic from the original token, so the
	// duplicate write is simply dropped.
	Revoke(ctx context.Context, jti string, kind TokenType, expiresAt time.Time) error
	RevokeTx(ctx context.Context, tx bun.IDB, jti string, kind TokenType, expiresAt time.Time) error

	// IsRevoked reports whether an unexpired entry exists for the jti. The
	// lookup is kind agnostic; jtis are random per kind.
	IsRevoked(ctx context.Context, jti string, now time.Time) (bool, error)
	IsRevokedTx(ctx context.Context, tx bun.IDB, jti string, now time.Time) (bool, error)

	// PurgeExpired deletes dead entries; lookups filter them out regardless.
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

type revokedTokens struct {
	repository.Repository[*RevokedToken]
	db *bun.DB
}

var (
	_ RevokedTokens                        = (*revokedTokens)(nil)
	_ repository.Repository[*RevokedToken] = (*revokedTokens)(nil)
)

func NewRevokedTokensRepository(db *bun.DB) RevokedTokens {
	repo := repository.NewRepository[*RevokedToken](db, repository.ModelHandlers[*RevokedToken]{
		NewRecord: func() *RevokedToken { return &RevokedToken{} },
		GetID: func(r *RevokedToken) uuid.UUID {
			if r == nil {
				return uuid.Nil
			}
			return r.ID
		},
		SetID: func(r *RevokedToken, id uuid.UUID) {
			if r != nil {
				r.ID = id
			}
		},
		GetIdentifier: func() string {
			return "jti"
		},
	})

	return &revokedTokens{
		Repository: repo,
		db:         db,
	}
}

func (a *revokedTokens) Revoke(ctx context.Context, jti string, kind TokenType, expiresAt time.Time) error {
	return a.RevokeTx(ctx, a.db, jti, kind, expiresAt)
}

func (a *revokedTokens) RevokeTx(ctx context.Context, tx bun.IDB, jti string, kind TokenType, expiresAt time.Time) error {
	record := &RevokedToken{
		ID:        uuid.New(),
		JTI:       jti,
		TokenType: kind,
		ExpiresAt: expiresAt,
	}

	_, err := tx.NewInsert().
		Model(record).
		On("CONFLICT (jti, token_type) DO NOTHING").
		Exec(ctx)

	return err
}

func (a *revokedTokens) IsRevoked(ctx context.Context, jti string, now time.Time) (bool, error) {
	return a.IsRevokedTx(ctx, a.db, jti, now)
}

func (a *revokedTokens) IsRevokedTx(ctx context.Context, tx bun.IDB, jti string, now time.Time) (bool, error) {
	return tx.NewSelect().
		Model((*RevokedToken)(nil)).
		Where("?TableAlias.jti = ?", jti).
		Where("?TableAlias.expires_at > ?", now).
		Exists(ctx)
}

func (a *revokedTokens) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := a.db.NewDelete().
		Model((*RevokedToken)(nil)).
		Where("?TableAlias.expires_at <= ?", now).
		Exec(ctx)
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}
