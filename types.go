package passwordless

import (
	"context"
	"fmt"
	"time"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Clock is the single source of current time for the package. Every expiry
// comparison goes through it so tests can pin the clock.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time {
	return f()
}

// SystemClock returns UTC wall clock time.
func SystemClock() Clock {
	return ClockFunc(func() time.Time {
		return time.Now().UTC()
	})
}

// Mailer delivers login emails. Implementations own transport, retries, and
// timeouts; the core treats a returned error as delivery failure.
type Mailer interface {
	SendLoginEmail(ctx context.Context, recipient, magicLinkURL, language string) (string, error)
}

// MailerFunc adapts a function to the Mailer interface.
type MailerFunc func(ctx context.Context, recipient, magicLinkURL, language string) (string, error)

func (f MailerFunc) SendLoginEmail(ctx context.Context, recipient, magicLinkURL, language string) (string, error) {
	return f(ctx, recipient, magicLinkURL, language)
}

// ClientInfo carries diagnostic request attributes stored on sessions.
type ClientInfo struct {
	IP        string
	UserAgent string
}

// TokenPair is the result of a successful magic link verification.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Config holds auth options
type Config interface {
	GetSigningKey() string
	GetIssuer() string
	GetAudience() []string
	GetAccessTokenTTL() time.Duration
	GetRefreshTokenTTL() time.Duration
	GetMagicLinkTTL() time.Duration
	GetMagicLinkBaseURL() string
}

// SimpleConfig is a plain struct implementation of Config.
type SimpleConfig struct {
	SigningKey       string
	Issuer           string
	Audience         []string
	AccessTokenTTL   time.Duration
	RefreshTokenTTL  time.Duration
	MagicLinkTTL     time.Duration
	MagicLinkBaseURL string
}

func (c SimpleConfig) GetSigningKey() string { return c.SigningKey }

func (c SimpleConfig) GetIssuer() string { return c.Issuer }

func (c SimpleConfig) GetAudience() []string { return c.Audience }

func (c SimpleConfig) GetAccessTokenTTL() time.Duration {
	if c.AccessTokenTTL == 0 {
		return DefaultAccessTokenTTL
	}
	return c.AccessTokenTTL
}

func (c SimpleConfig) GetRefreshTokenTTL() time.Duration {
	if c.RefreshTokenTTL == 0 {
		return DefaultRefreshTokenTTL
	}
	return c.RefreshTokenTTL
}

func (c SimpleConfig) GetMagicLinkTTL() time.Duration {
	if c.MagicLinkTTL == 0 {
		return DefaultMagicLinkTTL
	}
	return c.MagicLinkTTL
}

func (c SimpleConfig) GetMagicLinkBaseURL() string { return c.MagicLinkBaseURL }

const (
	// DefaultAccessTokenTTL is used when Config.GetAccessTokenTTL returns zero.
	DefaultAccessTokenTTL = 15 * time.Minute
	// DefaultRefreshTokenTTL is used when Config.GetRefreshTokenTTL returns zero.
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
	// DefaultMagicLinkTTL is used when Config.GetMagicLinkTTL returns zero.
	DefaultMagicLinkTTL = 15 * time.Minute
	// DefaultOnetimeTokenTTL is the default expiry for purpose tokens.
	DefaultOnetimeTokenTTL = time.Hour
)

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] AUTH "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] AUTH "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] AUTH "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] AUTH "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
