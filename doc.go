// Package goIssuer issues, signs and renews short-lived HS256 bearer tokens.
//
// An [Engine] is assembled with [Builder] from an immutable [Config] and a
// [CredentialVerifier]. [Engine.Issue] resolves credentials to an identity and
// signs a token for it; [Engine.Renew] signs a fresh token for a principal that
// the request layer has already authenticated. Both return either a
// [SignedToken] or an [*AuthError] whose [FailureKind] names the reason; callers
// that only need the binary outcome test errors.Is(err, ErrUnauthorized).
//
// The engine is stateless between calls: validity of a token rests entirely on
// its signature and embedded timestamps. There is no revocation list and no
// persistence of issued tokens.
//
// # Architecture boundaries
//
// Claim construction lives in package claims and HS256 encoding in package jwt.
// HTTP transport (httpapi, middleware), the Redis credential store (credstore)
// and process bootstrap (cmd/tokend) are adapters around the Engine.
package goIssuer
