package middleware

import "net/http"

// Authenticate rejects every request without a valid bearer token.
func Authenticate(auth Authenticator) func(http.Handler) http.Handler {
	return Guard(auth, true)
}

// AuthenticateIfPresent validates a bearer token only when an Authorization
// header is sent. Handlers check PrincipalFromContext to tell the cases apart.
func AuthenticateIfPresent(auth Authenticator) func(http.Handler) http.Handler {
	return Guard(auth, false)
}
