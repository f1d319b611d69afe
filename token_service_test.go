package passwordless_test

import (
	"testing"
	"time"

	passwordless "github.com/goliatone/go-passwordless"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTokenService(clock passwordless.Clock) passwordless.TokenService {
	return passwordless.NewTokenService(
		[]byte("test-signing-key"),
		"go-passwordless",
		nil,
		clock,
		nil,
	)
}

func testUser() *passwordless.User {
	return &passwordless.User{
		ID:    uuid.New(),
		Email: "alice@example.com",
		Role:  passwordless.RoleAdmin,
	}
}

func TestTokenServiceRoundTrip(t *testing.T) {
	clock := newFixedClock()
	service := newTestTokenService(clock)
	user := testUser()

	tests := []struct {
		name        string
		kind        passwordless.TokenType
		wantJTI     bool
		wantPurpose string
	}{
		{
			name:    "access token carries jti",
			kind:    passwordless.TokenTypeAccess,
			wantJTI: true,
		},
		{
			name:    "refresh token carries jti",
			kind:    passwordless.TokenTypeRefresh,
			wantJTI: true,
		},
		{
			name:        "magic link token carries purpose, no jti",
			kind:        passwordless.TokenTypeMagicLink,
			wantPurpose: passwordless.PurposeMagicLink,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := service.Issue(passwordless.NewUserClaims(user), tt.kind, 15*time.Minute)
			require.NoError(t, err)
			require.NotEmpty(t, raw)

			claims, err := service.Verify(raw, tt.kind)
			require.NoError(t, err)

			assert.Equal(t, user.ID.String(), claims.Subject())
			assert.Equal(t, user.Email, claims.Email())
			assert.Equal(t, string(passwordless.RoleAdmin), claims.Role())
			assert.Equal(t, tt.kind, claims.TokenType())
			assert.True(t, claims.IssuedAt().Equal(clock.Now()))
			assert.True(t, claims.Expires().Equal(clock.Now().Add(15*time.Minute)))

			if tt.wantJTI {
				assert.NotEmpty(t, claims.TokenID())
				_, err := uuid.Parse(claims.TokenID())
				assert.NoError(t, err)
			} else {
				assert.Empty(t, claims.TokenID())
			}

			assert.Equal(t, tt.wantPurpose, claims.Purpose())
		})
	}
}

func TestTokenServiceIssueUniqueJTI(t *testing.T) {
	service := newTestTokenService(newFixedClock())
	user := testUser()

	first, err := service.Issue(passwordless.NewUserClaims(user), passwordless.TokenTypeRefresh, time.Hour)
	require.NoError(t, err)
	second, err := service.Issue(passwordless.NewUserClaims(user), passwordless.TokenTypeRefresh, time.Hour)
	require.NoError(t, err)

	firstJTI, err := service.TokenID(first)
	require.NoError(t, err)
	secondJTI, err := service.TokenID(second)
	require.NoError(t, err)

	assert.NotEqual(t, firstJTI, secondJTI)
}

func TestTokenServiceVerifyRejections(t *testing.T) {
	clock := newFixedClock()
	service := newTestTokenService(clock)
	otherService := passwordless.NewTokenService([]byte("other-key"), "go-passwordless", nil, clock, nil)
	user := testUser()

	accessToken, err := service.Issue(passwordless.NewUserClaims(user), passwordless.TokenTypeAccess, 15*time.Minute)
	require.NoError(t, err)

	forged, err := otherService.Issue(passwordless.NewUserClaims(user), passwordless.TokenTypeAccess, 15*time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name     string
		raw      string
		expected passwordless.TokenType
	}{
		{
			name:     "garbage token",
			raw:      "not-a-token",
			expected: passwordless.TokenTypeAccess,
		},
		{
			name:     "wrong signing key",
			raw:      forged,
			expected: passwordless.TokenTypeAccess,
		},
		{
			name:     "kind mismatch",
			raw:      accessToken,
			expected: passwordless.TokenTypeRefresh,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := service.Verify(tt.raw, tt.expected)
			require.Error(t, err)
			assert.Nil(t, claims)
			// every rejection surfaces the same opaque error so callers
			// cannot distinguish a bad signature from a wrong kind
			assert.True(t, passwordless.IsUnauthorizedError(err))
		})
	}
}

func TestTokenServiceExpiryBoundary(t *testing.T) {
	clock := newFixedClock()
	service := newTestTokenService(clock)
	user := testUser()

	t.Run("expiry equal to now is rejected", func(t *testing.T) {
		raw, err := service.Issue(passwordless.NewUserClaims(user), passwordless.TokenTypeAccess, 0)
		require.NoError(t, err)

		_, err = service.Verify(raw, passwordless.TokenTypeAccess)
		require.Error(t, err)
		assert.True(t, passwordless.IsUnauthorizedError(err))
	})

	t.Run("expiry one second out is accepted", func(t *testing.T) {
		raw, err := service.Issue(passwordless.NewUserClaims(user), passwordless.TokenTypeAccess, time.Second)
		require.NoError(t, err)

		_, err = service.Verify(raw, passwordless.TokenTypeAccess)
		assert.NoError(t, err)
	})

	t.Run("token expires once the clock passes it", func(t *testing.T) {
		raw, err := service.Issue(passwordless.NewUserClaims(user), passwordless.TokenTypeAccess, time.Minute)
		require.NoError(t, err)

		_, err = service.Verify(raw, passwordless.TokenTypeAccess)
		require.NoError(t, err)

		clock.Advance(time.Minute)

		_, err = service.Verify(raw, passwordless.TokenTypeAccess)
		require.Error(t, err)
		assert.True(t, passwordless.IsUnauthorizedError(err))
	})
}

func TestTokenServiceDecodeSkipsExpiryAndKind(t *testing.T) {
	clock := newFixedClock()
	service := newTestTokenService(clock)
	user := testUser()

	raw, err := service.Issue(passwordless.NewUserClaims(user), passwordless.TokenTypeRefresh, time.Minute)
	require.NoError(t, err)

	clock.Advance(time.Hour)

	// expired and never asked for a kind: decode still succeeds
	claims, err := service.Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, passwordless.TokenTypeRefresh, claims.TokenType())

	jti, err := service.TokenID(raw)
	require.NoError(t, err)
	assert.Equal(t, claims.TokenID(), jti)

	// but a tampered signature does fail
	_, err = service.Decode(raw + "x")
	require.Error(t, err)
}

func TestTokenServiceVerifyPurpose(t *testing.T) {
	clock := newFixedClock()
	service := newTestTokenService(clock)

	raw, err := service.Issue(&passwordless.JWTClaims{
		UserEmail:  "alice@example.com",
		PurposeTag: passwordless.PurposeOnetimeForm,
	}, passwordless.TokenTypeOnetime, time.Hour)
	require.NoError(t, err)

	t.Run("matching purpose", func(t *testing.T) {
		claims, err := service.VerifyPurpose(raw, passwordless.PurposeOnetimeForm)
		require.NoError(t, err)
		assert.Equal(t, "alice@example.com", claims.Email())
	})

	t.Run("mismatched purpose", func(t *testing.T) {
		_, err := service.VerifyPurpose(raw, "export_download")
		require.Error(t, err)
		assert.True(t, passwordless.IsUnauthorizedError(err))
	})

	t.Run("magic link token is not a purpose token", func(t *testing.T) {
		magic, err := service.Issue(&passwordless.JWTClaims{UserEmail: "alice@example.com"}, passwordless.TokenTypeMagicLink, time.Hour)
		require.NoError(t, err)

		_, err = service.VerifyPurpose(magic, passwordless.PurposeMagicLink)
		require.Error(t, err)
	})
}

func TestTokenServiceIssuerCheck(t *testing.T) {
	clock := newFixedClock()
	service := newTestTokenService(clock)
	otherIssuer := passwordless.NewTokenService([]byte("test-signing-key"), "someone-else", nil, clock, nil)

	raw, err := otherIssuer.Issue(passwordless.NewUserClaims(testUser()), passwordless.TokenTypeAccess, time.Hour)
	require.NoError(t, err)

	_, err = service.Verify(raw, passwordless.TokenTypeAccess)
	require.Error(t, err)
	assert.True(t, passwordless.IsUnauthorizedError(err))
}
