package passwordless

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenType tags every token with its place in the lifecycle.
type TokenType string

const (
	// TokenTypeAccess is a short lived bearer token.
	TokenTypeAccess TokenType = "access"
	// TokenTypeRefresh is a long lived token backed by a Session row.
	TokenTypeRefresh TokenType = "refresh"
	// TokenTypeMagicLink is a single-use login token delivered over email.
	TokenTypeMagicLink TokenType = "magic_link"
	// TokenTypeOnetime is a single-purpose token (e.g. embedded form links).
	TokenTypeOnetime TokenType = "onetime"
)

const (
	// PurposeMagicLink is the purpose tag carried by magic link tokens.
	PurposeMagicLink = "magic_link"
	// PurposeOnetimeForm is the default purpose tag for one-time tokens.
	PurposeOnetimeForm = "onetime_form"
)

// AuthClaims represents a verified, structured claim set.
type AuthClaims interface {
	Subject() string
	Email() string
	Role() string
	TokenType() TokenType
	Purpose() string
	TokenID() string
	Expires() time.Time
	IssuedAt() time.Time
}

// JWTClaims is the concrete implementation of AuthClaims
type JWTClaims struct {
	jwt.RegisteredClaims
	UserEmail  string    `json:"email,omitempty"`
	UserRole   string    `json:"role,omitempty"`
	Type       TokenType `json:"type,omitempty"`
	PurposeTag string    `json:"purpose,omitempty"`
}

// Verify interface compliance
var _ AuthClaims = (*JWTClaims)(nil)

// NewUserClaims seeds the claim set carried by access and refresh tokens.
func NewUserClaims(user *User) *JWTClaims {
	return &JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: user.ID.String(),
		},
		UserEmail: user.Email,
		UserRole:  string(user.Role),
	}
}

// Subject returns the subject claim, the user id for access/refresh tokens
func (c *JWTClaims) Subject() string {
	return c.RegisteredClaims.Subject
}

// Email returns the email claim
func (c *JWTClaims) Email() string {
	return c.UserEmail
}

// Role returns the role claim
func (c *JWTClaims) Role() string {
	return c.UserRole
}

// TokenType returns the lifecycle tag
func (c *JWTClaims) TokenType() TokenType {
	return c.Type
}

// Purpose returns the purpose tag of single-use tokens, empty otherwise
func (c *JWTClaims) Purpose() string {
	return c.PurposeTag
}

// TokenID returns the jti, empty for magic link and one-time tokens
func (c *JWTClaims) TokenID() string {
	return c.RegisteredClaims.ID
}

// Expires returns the expiration time
func (c *JWTClaims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// IssuedAt returns the issuance time
func (c *JWTClaims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}
