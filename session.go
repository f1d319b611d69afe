package passwordless

import (
	"time"

	"github.com/google/uuid"
)

// SessionObject is the caller facing view of a verified access token.
type SessionObject struct {
	UserID         string     `json:"user_id,omitempty"`
	Email          string     `json:"email,omitempty"`
	Role           string     `json:"role,omitempty"`
	TokenID        string     `json:"token_id,omitempty"`
	IssuedAt       *time.Time `json:"issued_at,omitempty"`
	ExpirationDate *time.Time `json:"expiration_date,omitempty"`
}

func (s *SessionObject) GetUserID() string {
	return s.UserID
}

func (s *SessionObject) GetUserUUID() (uuid.UUID, error) {
	return uuid.Parse(s.UserID)
}

// HasRole checks the role claim carried by the token.
func (s *SessionObject) HasRole(role UserRole) bool {
	return UserRole(s.Role) == role
}

func sessionFromAuthClaims(claims AuthClaims) *SessionObject {
	session := &SessionObject{
		UserID:  claims.Subject(),
		Email:   claims.Email(),
		Role:    claims.Role(),
		TokenID: claims.TokenID(),
	}

	if issued := claims.IssuedAt(); !issued.IsZero() {
		session.IssuedAt = &issued
	}

	if expires := claims.Expires(); !expires.IsZero() {
		session.ExpirationDate = &expires
	}

	return session
}
