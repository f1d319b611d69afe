package passwordless

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// UserRole is the user's role
type UserRole string

const (
	// RoleMember is a regular account
	RoleMember UserRole = "member"
	// RoleAdmin is an administrative account
	RoleAdmin UserRole = "admin"
)

// IsValid checks if the role is one of the predefined valid roles
func (r UserRole) IsValid() bool {
	switch r {
	case RoleMember, RoleAdmin:
		return true
	default:
		return false
	}
}

// User is the user model
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Email         string     `bun:"email,notnull,unique" json:"email,omitempty"`
	Role          UserRole   `bun:"user_role,notnull,default:'member'" json:"user_role,omitempty"`
	Language      string     `bun:"language,notnull,default:'en'" json:"language,omitempty"`
	IsActive      bool       `bun:"is_active,notnull,default:true" json:"is_active,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// MagicLink is one single-use login token minted for a user. The used flag
// only ever moves from false to true.
type MagicLink struct {
	bun.BaseModel `bun:"table:magic_link_tokens,alias:mlt"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	UserID        uuid.UUID  `bun:"user_id,notnull,type:uuid" json:"user_id,omitempty"`
	User          *User      `bun:"rel:belongs-to,join:user_id=id" json:"user,omitempty"`
	Token         string     `bun:"token,notnull,unique" json:"token,omitempty"`
	ExpiresAt     time.Time  `bun:"expires_at,notnull" json:"expires_at,omitempty"`
	Used          bool       `bun:"used,notnull,default:false" json:"used,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// Session is the server side record of one active refresh token. A user may
// hold several at once, one per device.
type Session struct {
	bun.BaseModel `bun:"table:user_sessions,alias:uss"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	UserID        uuid.UUID  `bun:"user_id,notnull,type:uuid" json:"user_id,omitempty"`
	User          *User      `bun:"rel:belongs-to,join:user_id=id" json:"user,omitempty"`
	JTI           string     `bun:"jti,notnull,unique" json:"jti,omitempty"`
	ExpiresAt     time.Time  `bun:"expires_at,notnull" json:"expires_at,omitempty"`
	IP            string     `bun:"ip_address" json:"ip_address,omitempty"`
	UserAgent     string     `bun:"user_agent" json:"user_agent,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// RevokedToken is one blacklist entry. Rows are append only and carry the
// expiry of the original token so lookups can skip dead entries.
type RevokedToken struct {
	bun.BaseModel `bun:"table:token_blacklist,alias:tbl"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	JTI           string     `bun:"jti,notnull,unique:token_blacklist_jti_kind" json:"jti,omitempty"`
	TokenType     TokenType  `bun:"token_type,notnull,unique:token_blacklist_jti_kind" json:"token_type,omitempty"`
	ExpiresAt     time.Time  `bun:"expires_at,notnull" json:"expires_at,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}
