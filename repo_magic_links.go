package passwordless

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ConsumeMagicLinkSQL marks one link used if and only if it is still unused
// and unexpired. The single conditional UPDATE is what makes concurrent
// redemptions resolve to exactly one winner.
var ConsumeMagicLinkSQL = `UPDATE "magic_link_tokens" AS "mlt"
SET
	"used" = TRUE
WHERE
	"mlt"."token" = ?
AND "mlt"."user_id" = ?
AND NOT "mlt"."used"
AND "mlt"."expires_at" > ?
RETURNING *;`

// MagicLinks persists single-use login tokens.
type MagicLinks interface {
	repository.Repository[*MagicLink]

	// Consume atomically marks the matching unused, unexpired link as used
	// and returns it. At most one concurrent caller succeeds.
	Consume(ctx context.Context, token string, userID uuid.UUID, now time.Time) (*MagicLink, error)
	ConsumeTx(ctx context.Context, tx bun.IDB, token string, userID uuid.UUID, now time.Time) (*MagicLink, error)

	// InvalidateForUser marks every unused link of the user as used, so only
	// the most recently issued link can ever be redeemed.
	InvalidateForUser(ctx context.Context, userID uuid.UUID) (int64, error)
	InvalidateForUserTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) (int64, error)

	// PurgeExpired deletes links past their expiry. Correctness never depends
	// on it; queries filter expired rows regardless.
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

type magicLinks struct {
	repository.Repository[*MagicLink]
	db *bun.DB
}

var (
	_ MagicLinks                        = (*magicLinks)(nil)
	_ repository.Repository[*MagicLink] = (*magicLinks)(nil)
)

func NewMagicLinksRepository(db *bun.DB) MagicLinks {
	repo := repository.NewRepository[*MagicLink](db, repository.ModelHandlers[*MagicLink]{
		NewRecord: func() *MagicLink { return &MagicLink{} },
		GetID: func(m *MagicLink) uuid.UUID {
			if m == nil {
				return uuid.Nil
			}
			return m.ID
		},
		SetID: func(m *MagicLink, id uuid.UUID) {
			if m != nil {
				m.ID = id
			}
		},
		GetIdentifier: func() string {
			return "token"
		},
	})

	return &magicLinks{
		Repository: repo,
		db:         db,
	}
}

func (a *magicLinks) Consume(ctx context.Context, token string, userID uuid.UUID, now time.Time) (*MagicLink, error) {
	return a.ConsumeTx(ctx, a.db, token, userID, now)
}

func (a *magicLinks) ConsumeTx(ctx context.Context, tx bun.IDB, token string, userID uuid.UUID, now time.Time) (*MagicLink, error) {
	res, err := a.Repository.RawTx(ctx, tx, ConsumeMagicLinkSQL, token, userID, now)
	if err != nil {
		return nil, err
	}

	if len(res) == 0 {
		return nil, repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"user_id": userID.String(),
			})
	}

	return res[0], nil
}

func (a *magicLinks) InvalidateForUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	return a.InvalidateForUserTx(ctx, a.db, userID)
}

func (a *magicLinks) InvalidateForUserTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) (int64, error) {
	res, err := tx.NewUpdate().
		Model((*MagicLink)(nil)).
		Set("used = TRUE").
		Where("?TableAlias.user_id = ?", userID).
		Where("NOT ?TableAlias.used").
		Exec(ctx)
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}

func (a *magicLinks) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := a.db.NewDelete().
		Model((*MagicLink)(nil)).
		Where("?TableAlias.expires_at <= ?", now).
		Exec(ctx)
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}
