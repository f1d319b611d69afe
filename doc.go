// Package passwordless implements magic link authentication with a full
// token lifecycle: issuance, verification, refresh, and revocation.
//
// The flow is the following:
//
//  1. A user wants to login and provides their email.
//  2. Auther.RequestLogin mints a single-use magic link token, stores it,
//     and hands it to the Mailer collaborator. Issuing a new link
//     invalidates every previous one for that user.
//  3. The user follows the link; Auther.VerifyLogin consumes it atomically
//     (exactly one redemption wins, however many race) and returns a short
//     lived access token plus a long lived refresh token backed by a
//     Session row.
//  4. Auther.Refresh trades a live refresh token for a fresh access token.
//     The refresh token itself is not rotated.
//  5. Auther.Logout deletes the session and blacklists the token ids; a
//     blacklisted jti is rejected until the token would have expired anyway.
//  6. Auther.Authorize validates access tokens for protected resources,
//     consulting the blacklist on every call.
//
// A user may hold multiple concurrent sessions (multi-device);
// Auther.ActiveSessions lists them and Auther.RevokeUserSessions tears all
// of them down.
//
// Persistence goes through Bun repositories (see RepositoryManager); the
// HTTP surface, mail transport, and connection pooling are collaborator
// concerns and stay outside this package.
package passwordless
