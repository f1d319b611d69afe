package passwordless

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// TokenService produces and validates the signed tokens used across the
// login lifecycle. A single symmetric key and signing method cover every
// token kind.
type TokenService interface {
	// Issue signs the seed claims with the given kind and ttl. Access and
	// refresh tokens get a fresh random jti; magic link tokens default their
	// purpose tag.
	Issue(seed *JWTClaims, kind TokenType, ttl time.Duration) (string, error)
	// Decode verifies the signature and structure only. It does not check
	// kind or expiry.
	Decode(raw string) (AuthClaims, error)
	// Verify decodes and then enforces kind, issuer, and expiry against the
	// service clock. Every failure mode returns the same opaque error.
	Verify(raw string, expected TokenType) (AuthClaims, error)
	// VerifyPurpose validates a one-time token against its purpose tag.
	VerifyPurpose(raw string, purpose string) (AuthClaims, error)
	// TokenID returns the jti of a signature-valid token without checking
	// kind or expiry.
	TokenID(raw string) (string, error)
}

// TokenServiceImpl implements the TokenService interface
type TokenServiceImpl struct {
	signingKey []byte
	issuer     string
	audience   jwt.ClaimStrings
	clock      Clock
	newTokenID func() string
	logger     Logger
}

// NewTokenService creates a new TokenService instance. A nil clock falls
// back to the system UTC clock, a nil logger to the default logger.
func NewTokenService(signingKey []byte, issuer string, audience []string, clock Clock, logger Logger) TokenService {
	if clock == nil {
		clock = SystemClock()
	}
	if logger == nil {
		logger = defLogger{}
	}

	var aud jwt.ClaimStrings
	if len(audience) > 0 {
		aud = make(jwt.ClaimStrings, len(audience))
		copy(aud, audience)
	}

	return &TokenServiceImpl{
		signingKey: signingKey,
		issuer:     issuer,
		audience:   aud,
		clock:      clock,
		newTokenID: uuid.NewString,
		logger:     logger,
	}
}

// Issue signs a claim set of the given kind
func (ts *TokenServiceImpl) Issue(seed *JWTClaims, kind TokenType, ttl time.Duration) (string, error) {
	if seed == nil {
		seed = &JWTClaims{}
	}

	now := ts.clock.Now()

	claims := *seed
	claims.Type = kind
	claims.RegisteredClaims.Issuer = ts.issuer
	claims.RegisteredClaims.Audience = ts.audience
	claims.RegisteredClaims.IssuedAt = jwt.NewNumericDate(now)
	claims.RegisteredClaims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))

	switch kind {
	case TokenTypeAccess, TokenTypeRefresh:
		claims.RegisteredClaims.ID = ts.newTokenID()
	case TokenTypeMagicLink:
		if claims.PurposeTag == "" {
			claims.PurposeTag = PurposeMagicLink
		}
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &claims)

	signedString, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign JWT")
	}

	return signedString, nil
}

// Decode verifies signature and structure, nothing else
func (ts *TokenServiceImpl) Decode(raw string) (AuthClaims, error) {
	return ts.decode(raw)
}

func (ts *TokenServiceImpl) decode(raw string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(raw, &JWTClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Error("TokenService decode encountered unexpected signing method", "alg", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.signingKey, nil
	}, jwt.WithoutClaimsValidation())

	if err != nil {
		return nil, unauthorized(err)
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok {
		ts.logger.Error("TokenService decode could not map claims")
		return nil, unauthorized(nil)
	}

	return claims, nil
}

// Verify decodes and enforces kind, issuer, and expiry. Signature failures,
// kind mismatches, and expired tokens are indistinguishable from the outside.
func (ts *TokenServiceImpl) Verify(raw string, expected TokenType) (AuthClaims, error) {
	claims, err := ts.decode(raw)
	if err != nil {
		return nil, err
	}

	if claims.Type != expected {
		return nil, unauthorized(nil)
	}

	if expected == TokenTypeMagicLink && claims.PurposeTag != PurposeMagicLink {
		return nil, unauthorized(nil)
	}

	if ts.issuer != "" && claims.RegisteredClaims.Issuer != ts.issuer {
		return nil, unauthorized(nil)
	}

	if err := ts.checkExpiry(claims); err != nil {
		return nil, err
	}

	return claims, nil
}

// VerifyPurpose validates a one-time token against the given purpose tag.
func (ts *TokenServiceImpl) VerifyPurpose(raw string, purpose string) (AuthClaims, error) {
	claims, err := ts.decode(raw)
	if err != nil {
		return nil, err
	}

	if claims.Type != TokenTypeOnetime || claims.PurposeTag == "" || claims.PurposeTag != purpose {
		return nil, unauthorized(nil)
	}

	if err := ts.checkExpiry(claims); err != nil {
		return nil, err
	}

	return claims, nil
}

// TokenID returns the jti of a signature-valid token. Kind and expiry are
// not checked, matching what logout needs for its session delete.
func (ts *TokenServiceImpl) TokenID(raw string) (string, error) {
	claims, err := ts.decode(raw)
	if err != nil {
		return "", err
	}
	return claims.RegisteredClaims.ID, nil
}

// checkExpiry rejects tokens whose expiry is not strictly in the future.
// A token expiring exactly now is already dead.
func (ts *TokenServiceImpl) checkExpiry(claims *JWTClaims) error {
	exp := claims.RegisteredClaims.ExpiresAt
	if exp == nil {
		return unauthorized(nil)
	}
	if !ts.clock.Now().Before(exp.Time) {
		return unauthorized(nil)
	}
	return nil
}

func unauthorized(err error) error {
	if err == nil {
		return ErrUnauthorized
	}
	return goerrors.Wrap(err, ErrUnauthorized.Category, ErrUnauthorized.Message).
		WithTextCode(ErrUnauthorized.TextCode).
		WithCode(goerrors.CodeUnauthorized)
}
