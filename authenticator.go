package passwordless

import (
	"context"
	"net/url"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Authenticator holds the passwordless login operations.
type Authenticator interface {
	RequestLogin(ctx context.Context, email string) error
	VerifyLogin(ctx context.Context, magicToken string, client ClientInfo) (*TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (string, error)
	Logout(ctx context.Context, refreshToken, accessToken string) error
	Authorize(ctx context.Context, accessToken string) (AuthClaims, error)
	SessionFromToken(ctx context.Context, accessToken string) (*SessionObject, error)
	ActiveSessions(ctx context.Context, userID uuid.UUID) ([]*Session, error)
	RevokeUserSessions(ctx context.Context, userID uuid.UUID) (int, error)
}

// Auther composes the token codec, the stores, and the mail collaborator
// into the login lifecycle. The refresh token state machine is
// issued -> active (any number of refreshes) -> revoked, with no way back.
type Auther struct {
	repo         RepositoryManager
	mailer       Mailer
	tokenService TokenService
	clock        Clock
	logger       Logger
	activitySink ActivitySink
	linkBaseURL  string
	accessTTL    time.Duration
	refreshTTL   time.Duration
	magicLinkTTL time.Duration
}

var _ Authenticator = (*Auther)(nil)

// NewAuthenticator returns a new Authenticator
func NewAuthenticator(repo RepositoryManager, mailer Mailer, opts Config) *Auther {
	clock := SystemClock()

	tokenService := NewTokenService(
		[]byte(opts.GetSigningKey()),
		opts.GetIssuer(),
		opts.GetAudience(),
		clock,
		defLogger{},
	)

	return &Auther{
		repo:         repo,
		mailer:       mailer,
		tokenService: tokenService,
		clock:        clock,
		logger:       defLogger{},
		activitySink: noopActivitySink{},
		linkBaseURL:  opts.GetMagicLinkBaseURL(),
		accessTTL:    opts.GetAccessTokenTTL(),
		refreshTTL:   opts.GetRefreshTokenTTL(),
		magicLinkTTL: opts.GetMagicLinkTTL(),
	}
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithClock replaces the time source for the orchestrator and its default
// token service. Pin it in tests.
func (s *Auther) WithClock(clock Clock) *Auther {
	if clock == nil {
		return s
	}
	s.clock = clock
	if impl, ok := s.tokenService.(*TokenServiceImpl); ok {
		impl.clock = clock
	}
	return s
}

// WithTokenService sets a custom token codec.
func (s *Auther) WithTokenService(service TokenService) *Auther {
	if service != nil {
		s.tokenService = service
	}
	return s
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (s *Auther) WithActivitySink(sink ActivitySink) *Auther {
	s.activitySink = normalizeActivitySink(sink)
	return s
}

// TokenService returns the TokenService instance used by this Authenticator
func (s *Auther) TokenService() TokenService {
	return s.tokenService
}

// RequestLogin issues a fresh magic link for the active user behind email
// and hands it to the mail collaborator. Any previously issued links are
// invalidated first, so only the newest one can be redeemed.
func (s *Auther) RequestLogin(ctx context.Context, email string) error {
	user, err := s.repo.Users().GetActiveByEmail(ctx, email)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			s.logger.Info("login requested for unknown or inactive account")
			return ErrUserNotFound
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to resolve user for login")
	}

	magicToken, err := s.tokenService.Issue(&JWTClaims{
		UserEmail: user.Email,
	}, TokenTypeMagicLink, s.magicLinkTTL)
	if err != nil {
		return err
	}

	now := s.clock.Now()

	err = s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := s.repo.MagicLinks().InvalidateForUserTx(ctx, tx, user.ID); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to invalidate previous magic links")
		}

		link := &MagicLink{
			UserID:    user.ID,
			Token:     magicToken,
			ExpiresAt: now.Add(s.magicLinkTTL),
		}

		if _, err := s.repo.MagicLinks().CreateTx(ctx, tx, link); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create magic link record")
		}

		return nil
	})
	if err != nil {
		return err
	}

	// A mail failure leaves the link record behind on purpose. It is merely
	// undeliverable; the next login request supersedes it.
	messageID, err := s.mailer.SendLoginEmail(ctx, user.Email, s.magicLinkURL(magicToken), user.Language)
	if err != nil {
		s.logger.Error("failed to send magic link email", "user_id", user.ID.String(), "error", err)
		return goerrors.Wrap(err, ErrMagicLinkSendFailed.Category, ErrMagicLinkSendFailed.Message).
			WithTextCode(ErrMagicLinkSendFailed.TextCode)
	}

	s.logger.Info("magic link sent", "user_id", user.ID.String(), "message_id", messageID)
	s.emitAuthEvent(ctx, ActivityEventLoginRequested, s.actorFromUser(user), user.ID.String(), map[string]any{
		"message_id": messageID,
	})

	return nil
}

// VerifyLogin redeems a magic link and starts a session: it verifies the
// signed token, re-resolves the active user, consumes the matching link
// record, invalidates any remaining links, and mints an access/refresh pair
// backed by a Session row.
func (s *Auther) VerifyLogin(ctx context.Context, magicToken string, client ClientInfo) (*TokenPair, error) {
	claims, err := s.tokenService.Verify(magicToken, TokenTypeMagicLink)
	if err != nil {
		s.logger.Info("magic link token rejected", "error", err)
		return nil, ErrMagicLinkInvalid
	}

	// Re-resolve by email so accounts deactivated after issuance cannot
	// complete a login.
	user, err := s.repo.Users().GetActiveByEmail(ctx, claims.Email())
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to resolve user for verification")
	}

	now := s.clock.Now()
	pair := &TokenPair{}

	err = s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := s.repo.MagicLinks().ConsumeTx(ctx, tx, magicToken, user.ID, now); err != nil {
			if repository.IsRecordNotFound(err) {
				return ErrMagicLinkInvalid
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to consume magic link")
		}

		// Second invalidation pass: a still-valid sibling link minted just
		// before this one must not be redeemable after we log the user in.
		if _, err := s.repo.MagicLinks().InvalidateForUserTx(ctx, tx, user.ID); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to invalidate remaining magic links")
		}

		seed := NewUserClaims(user)

		accessToken, err := s.tokenService.Issue(seed, TokenTypeAccess, s.accessTTL)
		if err != nil {
			return err
		}

		refreshToken, err := s.tokenService.Issue(seed, TokenTypeRefresh, s.refreshTTL)
		if err != nil {
			return err
		}

		refreshJTI, err := s.tokenService.TokenID(refreshToken)
		if err != nil {
			return err
		}

		pair.AccessToken = accessToken
		pair.RefreshToken = refreshToken

		session := &Session{
			UserID:    user.ID,
			JTI:       refreshJTI,
			ExpiresAt: now.Add(s.refreshTTL),
			IP:        client.IP,
			UserAgent: client.UserAgent,
		}

		if _, err := s.repo.Sessions().CreateTx(ctx, tx, session); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create user session")
		}

		return nil
	})
	if err != nil {
		s.emitAuthEvent(ctx, ActivityEventLoginFailure, s.actorFromUser(user), user.ID.String(), map[string]any{
			"error": err.Error(),
		})
		return nil, err
	}

	s.logger.Info("magic link verified and tokens created", "user_id", user.ID.String())
	s.emitAuthEvent(ctx, ActivityEventLoginSuccess, s.actorFromUser(user), user.ID.String(), map[string]any{
		"ip":         client.IP,
		"user_agent": client.UserAgent,
	})

	return pair, nil
}

// Refresh mints a new access token for a live refresh token. The refresh
// token and its session stay untouched; sessions are not rotated here.
func (s *Auther) Refresh(ctx context.Context, refreshToken string) (string, error) {
	claims, err := s.tokenService.Verify(refreshToken, TokenTypeRefresh)
	if err != nil {
		return "", err
	}

	jti := claims.TokenID()
	if jti == "" || claims.Subject() == "" {
		return "", ErrUnauthorized
	}

	now := s.clock.Now()

	revoked, err := s.repo.RevokedTokens().IsRevoked(ctx, jti, now)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check token revocation")
	}
	if revoked {
		s.logger.Warn("refresh attempted with revoked token", "jti", jti)
		return "", ErrUnauthorized
	}

	if _, err := s.repo.Sessions().GetByJTI(ctx, jti, now); err != nil {
		if repository.IsRecordNotFound(err) {
			s.logger.Warn("refresh token has no live session", "jti", jti)
			return "", ErrUnauthorized
		}
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up session")
	}

	// Guard against stale claims: the account must still be active and the
	// resolved id must match the token subject.
	user, err := s.repo.Users().GetActiveByEmail(ctx, claims.Email())
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return "", ErrUnauthorized
		}
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to resolve user for refresh")
	}
	if user.ID.String() != claims.Subject() {
		s.logger.Warn("refresh token subject mismatch", "jti", jti)
		return "", ErrUnauthorized
	}

	accessToken, err := s.tokenService.Issue(NewUserClaims(user), TokenTypeAccess, s.accessTTL)
	if err != nil {
		return "", err
	}

	s.logger.Info("access token refreshed", "user_id", user.ID.String())
	s.emitAuthEvent(ctx, ActivityEventTokenRefreshed, s.actorFromUser(user), user.ID.String(), nil)

	return accessToken, nil
}

// Logout tears the session down and blacklists the refresh token. The
// session delete only needs a signature-valid token; blacklisting requires
// full verification to obtain the authoritative expiry. An optional access
// token is blacklisted best-effort.
func (s *Auther) Logout(ctx context.Context, refreshToken, accessToken string) error {
	refreshJTI, err := s.tokenService.TokenID(refreshToken)
	if err != nil || refreshJTI == "" {
		return ErrTokenMalformed
	}

	deleted, err := s.repo.Sessions().DeleteByJTI(ctx, refreshJTI)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to delete session")
	}

	claims, err := s.tokenService.Verify(refreshToken, TokenTypeRefresh)
	if err != nil {
		return err
	}

	if err := s.repo.RevokedTokens().Revoke(ctx, refreshJTI, TokenTypeRefresh, claims.Expires()); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to blacklist refresh token")
	}

	if accessToken != "" {
		s.revokeAccessToken(ctx, accessToken)
	}

	s.logger.Info("user logged out", "jti", refreshJTI, "sessions_deleted", deleted)
	s.emitAuthEvent(ctx, ActivityEventLogout, ActorRef{ID: claims.Subject(), Type: "user"}, claims.Subject(), map[string]any{
		"sessions_deleted": deleted,
	})

	return nil
}

// revokeAccessToken blacklists the supplied access token. Failures are
// logged only; the refresh side of logout already succeeded.
func (s *Auther) revokeAccessToken(ctx context.Context, accessToken string) {
	claims, err := s.tokenService.Verify(accessToken, TokenTypeAccess)
	if err != nil {
		s.logger.Warn("skipping access token blacklisting", "error", err)
		return
	}

	jti := claims.TokenID()
	if jti == "" {
		return
	}

	if err := s.repo.RevokedTokens().Revoke(ctx, jti, TokenTypeAccess, claims.Expires()); err != nil {
		s.logger.Warn("failed to blacklist access token", "jti", jti, "error", err)
	}
}

// Authorize validates an access token for protected resource use: signature,
// kind, expiry, and the revocation list.
func (s *Auther) Authorize(ctx context.Context, accessToken string) (AuthClaims, error) {
	claims, err := s.tokenService.Verify(accessToken, TokenTypeAccess)
	if err != nil {
		return nil, err
	}

	if jti := claims.TokenID(); jti != "" {
		revoked, err := s.repo.RevokedTokens().IsRevoked(ctx, jti, s.clock.Now())
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check token revocation")
		}
		if revoked {
			return nil, ErrUnauthorized
		}
	}

	return claims, nil
}

// SessionFromToken returns the session view behind a verified access token.
func (s *Auther) SessionFromToken(ctx context.Context, accessToken string) (*SessionObject, error) {
	claims, err := s.Authorize(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	return sessionFromAuthClaims(claims), nil
}

// ActiveSessions lists the user's live sessions, one per device.
func (s *Auther) ActiveSessions(ctx context.Context, userID uuid.UUID) ([]*Session, error) {
	return s.repo.Sessions().ListActiveByUser(ctx, userID, s.clock.Now())
}

// RevokeUserSessions deletes every live session of the user and blacklists
// each refresh jti, returning how many sessions were revoked.
func (s *Auther) RevokeUserSessions(ctx context.Context, userID uuid.UUID) (int, error) {
	now := s.clock.Now()
	count := 0

	err := s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		records, err := s.repo.Sessions().ListActiveByUserTx(ctx, tx, userID, now)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to list sessions")
		}

		for _, session := range records {
			if err := s.repo.RevokedTokens().RevokeTx(ctx, tx, session.JTI, TokenTypeRefresh, session.ExpiresAt); err != nil {
				return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to blacklist session token")
			}
			if _, err := s.repo.Sessions().DeleteByJTITx(ctx, tx, session.JTI); err != nil {
				return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to delete session")
			}
			count++
		}

		return nil
	})
	if err != nil {
		return 0, err
	}

	if count > 0 {
		s.emitAuthEvent(ctx, ActivityEventSessionsRevoked, ActorRef{Type: "system"}, userID.String(), map[string]any{
			"sessions_revoked": count,
		})
	}

	return count, nil
}

func (s *Auther) magicLinkURL(token string) string {
	return s.linkBaseURL + "/auth/verify?token=" + url.QueryEscape(token)
}

func (s *Auther) emitAuthEvent(ctx context.Context, eventType ActivityEventType, actor ActorRef, userID string, metadata map[string]any) {
	sink := normalizeActivitySink(s.activitySink)
	event := ActivityEvent{
		EventType:  eventType,
		Actor:      actor,
		UserID:     userID,
		Metadata:   metadata,
		OccurredAt: s.clock.Now(),
	}

	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}

	if err := sink.Record(ctx, event); err != nil {
		s.logger.Warn("activity sink record error: %v", err)
	}
}

func (s *Auther) actorFromUser(user *User) ActorRef {
	if user == nil {
		return ActorRef{Type: "unknown"}
	}

	return ActorRef{
		ID:   user.ID.String(),
		Type: "user",
	}
}
