package passwordless

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// RepositoryManager exposes all repositories
type RepositoryManager interface {
	repository.Validator
	repository.TransactionManager
	Users() Users
	MagicLinks() MagicLinks
	Sessions() Sessions
	RevokedTokens() RevokedTokens
}

type mngr struct {
	db            *bun.DB
	users         Users
	magicLinks    MagicLinks
	sessions      Sessions
	revokedTokens RevokedTokens
}

func NewRepositoryManager(db *bun.DB) RepositoryManager {
	return &mngr{
		db:            db,
		users:         NewUsersRepository(db),
		magicLinks:    NewMagicLinksRepository(db),
		sessions:      NewSessionsRepository(db),
		revokedTokens: NewRevokedTokensRepository(db),
	}
}

func (m mngr) Validate() error {
	if m.users == nil {
		return errors.New("repository users should be initialized")
	}

	if m.magicLinks == nil {
		return errors.New("repository magicLinks should be initialized")
	}

	if m.sessions == nil {
		return errors.New("repository sessions should be initialized")
	}

	if m.revokedTokens == nil {
		return errors.New("repository revokedTokens should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) Users() Users {
	return m.users
}

func (m mngr) MagicLinks() MagicLinks {
	return m.magicLinks
}

func (m mngr) Sessions() Sessions {
	return m.sessions
}

func (m mngr) RevokedTokens() RevokedTokens {
	return m.revokedTokens
}
