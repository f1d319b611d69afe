package passwordless_test

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	passwordless "github.com/goliatone/go-passwordless"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

const sqliteCreateUsers = `CREATE TABLE users (
    id TEXT PRIMARY KEY,
    email TEXT NOT NULL UNIQUE,
    user_role TEXT NOT NULL DEFAULT 'member',
    language TEXT NOT NULL DEFAULT 'en',
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);`

const sqliteCreateMagicLinks = `CREATE TABLE magic_link_tokens (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    token TEXT NOT NULL UNIQUE,
    expires_at TIMESTAMP NOT NULL,
    used BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (user_id) REFERENCES users (id) ON DELETE CASCADE
);`

const sqliteCreateSessions = `CREATE TABLE user_sessions (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    jti TEXT NOT NULL UNIQUE,
    expires_at TIMESTAMP NOT NULL,
    ip_address TEXT,
    user_agent TEXT,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (user_id) REFERENCES users (id) ON DELETE CASCADE
);`

const sqliteCreateBlacklist = `CREATE TABLE token_blacklist (
    id TEXT PRIMARY KEY,
    jti TEXT NOT NULL,
    token_type TEXT NOT NULL,
    expires_at TIMESTAMP NOT NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    CONSTRAINT uq_token_blacklist_jti_kind UNIQUE (jti, token_type)
);`

func setupTestDB(t *testing.T) *bun.DB {
	t.Helper()

	db, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	// a single connection keeps the in-memory database alive and serializes
	// concurrent access the way production postgres would via row locks
	db.SetMaxOpenConns(1)

	bunDB := bun.NewDB(db, sqlitedialect.New())

	for _, schema := range []string{
		sqliteCreateUsers,
		sqliteCreateMagicLinks,
		sqliteCreateSessions,
		sqliteCreateBlacklist,
	} {
		_, err = bunDB.Exec(schema)
		require.NoError(t, err)
	}

	t.Cleanup(func() {
		_ = bunDB.Close()
	})

	return bunDB
}

func seedUser(t *testing.T, db *bun.DB, email string, active bool) *passwordless.User {
	t.Helper()

	user := &passwordless.User{
		ID:       uuid.New(),
		Email:    email,
		Role:     passwordless.RoleMember,
		Language: "en",
		IsActive: active,
	}

	_, err := db.NewInsert().Model(user).Exec(context.Background())
	require.NoError(t, err)

	return user
}

// fixedClock is a manually advanced Clock for deterministic expiry tests.
type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFixedClock() *fixedClock {
	return &fixedClock{
		now: time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC),
	}
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// MockMailer implements passwordless.Mailer for testing
type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) SendLoginEmail(ctx context.Context, recipient, magicLinkURL, language string) (string, error) {
	args := m.Called(ctx, recipient, magicLinkURL, language)
	return args.String(0), args.Error(1)
}

// capturingSink collects activity events for assertions
type capturingSink struct {
	mu     sync.Mutex
	events []passwordless.ActivityEvent
}

func (c *capturingSink) Record(ctx context.Context, evt passwordless.ActivityEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, evt)
	return nil
}

func (c *capturingSink) eventTypes() []passwordless.ActivityEventType {
	c.mu.Lock()
	defer c.mu.Unlock()
	types := make([]passwordless.ActivityEventType, 0, len(c.events))
	for _, evt := range c.events {
		types = append(types, evt.EventType)
	}
	return types
}

func testConfig() passwordless.SimpleConfig {
	return passwordless.SimpleConfig{
		SigningKey:       "test-signing-key",
		Issuer:           "go-passwordless",
		AccessTokenTTL:   15 * time.Minute,
		RefreshTokenTTL:  7 * 24 * time.Hour,
		MagicLinkTTL:     15 * time.Minute,
		MagicLinkBaseURL: "https://app.example.com",
	}
}

type authFixture struct {
	auther *passwordless.Auther
	repo   passwordless.RepositoryManager
	mailer *MockMailer
	clock  *fixedClock
	sink   *capturingSink
	db     *bun.DB
}

func setupAuther(t *testing.T) *authFixture {
	t.Helper()

	db := setupTestDB(t)
	repo := passwordless.NewRepositoryManager(db)
	repo.MustValidate()

	mailer := &MockMailer{}
	clock := newFixedClock()
	sink := &capturingSink{}

	auther := passwordless.NewAuthenticator(repo, mailer, testConfig()).
		WithClock(clock).
		WithActivitySink(sink)

	return &authFixture{
		auther: auther,
		repo:   repo,
		mailer: mailer,
		clock:  clock,
		sink:   sink,
		db:     db,
	}
}
