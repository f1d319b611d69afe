package passwordless

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Users is the user directory collaborator. The core only ever resolves
// active accounts; missing and deactivated users are the same non-answer.
type Users interface {
	repository.Repository[*User]

	GetActiveByEmail(ctx context.Context, email string) (*User, error)
	GetActiveByEmailTx(ctx context.Context, tx bun.IDB, email string) (*User, error)
	GetActiveByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetActiveByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*User, error)
}

type users struct {
	repository.Repository[*User]
	db *bun.DB
}

var (
	_ Users                        = (*users)(nil)
	_ repository.Repository[*User] = (*users)(nil)
)

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
		Repository: repo,
		db:         db,
	}
}

func (a *users) GetActiveByEmail(ctx context.Context, email string) (*User, error) {
	return a.GetActiveByEmailTx(ctx, a.db, email)
}

func (a *users) GetActiveByEmailTx(ctx context.Context, tx bun.IDB, email string) (*User, error) {
	record := &User{}
	err := tx.NewSelect().
		Model(record).
		Where("lower(?TableAlias.email) = lower(?)", strings.TrimSpace(email)).
		Where("?TableAlias.is_active").
		Limit(1).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"identifier": email,
				})
		}
		return nil, err
	}

	return record, nil
}

func (a *users) GetActiveByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return a.GetActiveByIDTx(ctx, a.db, id)
}

func (a *users) GetActiveByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*User, error) {
	record := &User{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Where("?TableAlias.is_active").
		Limit(1).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"id": id.String(),
				})
		}
		return nil, err
	}

	return record, nil
}
