package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/MrEthical07/goIssuer/claims"
)

// Authenticator verifies a bearer token. *goIssuer.Engine satisfies it.
type Authenticator interface {
	Authenticate(token string) (claims.MapPrincipal, error)
}

type principalContextKey struct{}

// PrincipalFromContext returns the principal stored by a guard.
func PrincipalFromContext(ctx context.Context) (claims.MapPrincipal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(claims.MapPrincipal)
	return p, ok && p != nil
}

// WithPrincipal stores p in ctx the way the guards do.
func WithPrincipal(ctx context.Context, p claims.MapPrincipal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// Guard authenticates the Authorization header. With required unset, a request
// carrying no Authorization header passes through anonymously; a header that is
// present but invalid is always rejected.
func Guard(auth Authenticator, required bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" && !required {
				next.ServeHTTP(w, r)
				return
			}
			if auth == nil {
				reject(w)
				return
			}

			token, ok := bearerToken(header)
			if !ok {
				reject(w)
				return
			}

			p, err := auth.Authenticate(token)
			if err != nil {
				reject(w)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

func reject(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.WriteHeader(http.StatusUnauthorized)
}

func bearerToken(value string) (string, bool) {
	const bearer = "bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}
