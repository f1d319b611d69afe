package passwordless

import (
	goerrors "github.com/goliatone/go-errors"
)

const (
	// TextCodeUserNotFound is returned for unknown and inactive accounts alike.
	TextCodeUserNotFound = "USER_NOT_FOUND"
	// TextCodeMagicLinkInvalid covers malformed, expired, and already used links.
	TextCodeMagicLinkInvalid = "MAGIC_LINK_INVALID"
	// TextCodeTokenMalformed is returned when a logout token cannot be decoded.
	TextCodeTokenMalformed = "TOKEN_MALFORMED"
	// TextCodeUnauthorized is the single opaque code for every token rejection.
	TextCodeUnauthorized = "UNAUTHORIZED"
	// TextCodeMagicLinkSendFailed signals a mail collaborator failure.
	TextCodeMagicLinkSendFailed = "MAGIC_LINK_SEND_FAILED"
)

// ErrUserNotFound is returned when no active user matches the identifier.
// Deliberately identical for missing and deactivated accounts so the login
// path cannot be used to enumerate addresses.
var ErrUserNotFound = goerrors.New("no active user for identifier", goerrors.CategoryNotFound).
	WithTextCode(TextCodeUserNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrMagicLinkInvalid is returned when a magic link cannot be redeemed:
// bad signature, wrong purpose, expired, unknown, or already used.
var ErrMagicLinkInvalid = goerrors.New("magic link is invalid or expired", goerrors.CategoryBadInput).
	WithTextCode(TextCodeMagicLinkInvalid).
	WithCode(goerrors.CodeBadRequest)

// ErrTokenMalformed is returned when a token id cannot be derived from a
// logout refresh token.
var ErrTokenMalformed = goerrors.New("token is malformed", goerrors.CategoryBadInput).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(goerrors.CodeBadRequest)

// ErrUnauthorized is the uniform rejection for access and refresh tokens.
// Signature, type, expiry, revocation, and session failures all surface as
// this error so callers cannot tell them apart.
var ErrUnauthorized = goerrors.New("could not validate credentials", goerrors.CategoryAuth).
	WithTextCode(TextCodeUnauthorized).
	WithCode(goerrors.CodeUnauthorized)

// ErrMagicLinkSendFailed is returned when the mail collaborator reports a
// delivery failure. The magic link record stays in place.
var ErrMagicLinkSendFailed = goerrors.New("failed to send magic link email", goerrors.CategoryInternal).
	WithTextCode(TextCodeMagicLinkSendFailed).
	WithCode(goerrors.CodeInternal)

// IsUserNotFoundError reports whether err carries the user-not-found code.
func IsUserNotFoundError(err error) bool {
	return hasTextCode(err, TextCodeUserNotFound)
}

// IsMagicLinkError reports whether err rejects a magic link redemption.
func IsMagicLinkError(err error) bool {
	return hasTextCode(err, TextCodeMagicLinkInvalid)
}

// IsUnauthorizedError reports whether err is a token rejection.
func IsUnauthorizedError(err error) bool {
	return hasTextCode(err, TextCodeUnauthorized)
}

func hasTextCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.TextCode == code
	}
	return false
}
