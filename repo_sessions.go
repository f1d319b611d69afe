package passwordless

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Sessions persists one row per live refresh token, keyed by jti.
type Sessions interface {
	repository.Repository[*Session]

	// GetByJTI returns the session only while it is unexpired. Expired rows
	// are treated as absent even when they still physically exist.
	GetByJTI(ctx context.Context, jti string, now time.Time) (*Session, error)
	GetByJTITx(ctx context.Context, tx bun.IDB, jti string, now time.Time) (*Session, error)

	// DeleteByJTI removes the session row and reports how many rows went
	// away (0 or 1), so logout stays idempotent.
	DeleteByJTI(ctx context.Context, jti string) (int64, error)
	DeleteByJTITx(ctx context.Context, tx bun.IDB, jti string) (int64, error)

	// ListActiveByUser returns the user's unexpired sessions, newest first.
	ListActiveByUser(ctx context.Context, userID uuid.UUID, now time.Time) ([]*Session, error)
	ListActiveByUserTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, now time.Time) ([]*Session, error)

	// PurgeExpired deletes expired rows; lookups filter them out regardless.
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

type sessions struct {
	repository.Repository[*Session]
	db *bun.DB
}

var (
	_ Sessions                        = (*sessions)(nil)
	_ repository.Repository[*Session] = (*sessions)(nil)
)

func NewSessionsRepository(db *bun.DB) Sessions {
	repo := repository.NewRepository[*Session](db, repository.ModelHandlers[*Session]{
		NewRecord: func() *Session { return &Session{} },
		GetID: func(s *Session) uuid.UUID {
			if s == nil {
				return uuid.Nil
			}
			return s.ID
		},
		SetID: func(s *Session, id uuid.UUID) {
			if s != nil {
				s.ID = id
			}
		},
		GetIdentifier: func() string {
			return "jti"
		},
	})

	return &sessions{
		Repository: repo,
		db:         db,
	}
}

func (a *sessions) GetByJTI(ctx context.Context, jti string, now time.Time) (*Session, error) {
	return a.GetByJTITx(ctx, a.db, jti, now)
}

func (a *sessions) GetByJTITx(ctx context.Context, tx bun.IDB, jti string, now time.Time) (*Session, error) {
	record := &Session{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.jti = ?", jti).
		Where("?TableAlias.expires_at > ?", now).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"jti": jti,
				})
		}
		return nil, err
	}

	return record, nil
}

func (a *sessions) DeleteByJTI(ctx context.Context, jti string) (int64, error) {
	return a.DeleteByJTITx(ctx, a.db, jti)
}

func (a *sessions) DeleteByJTITx(ctx context.Context, tx bun.IDB, jti string) (int64, error) {
	res, err := tx.NewDelete().
		Model((*Session)(nil)).
		Where("?TableAlias.jti = ?", jti).
		Exec(ctx)
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}

func (a *sessions) ListActiveByUser(ctx context.Context, userID uuid.UUID, now time.Time) ([]*Session, error) {
	return a.ListActiveByUserTx(ctx, a.db, userID, now)
}

func (a *sessions) ListActiveByUserTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, now time.Time) ([]*Session, error) {
	var records []*Session
	err := tx.NewSelect().
		Model(&records).
		Where("?TableAlias.user_id = ?", userID).
		Where("?TableAlias.expires_at > ?", now).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	return records, nil
}

func (a *sessions) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := a.db.NewDelete().
		Model((*Session)(nil)).
		Where("?TableAlias.expires_at <= ?", now).
		Exec(ctx)
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}
