package goIssuer

import (
	"context"

	"github.com/MrEthical07/goIssuer/claims"
)

// IdentityRecord is what a CredentialVerifier resolves credentials to.
type IdentityRecord = claims.Identity

// Principal is an authenticated caller presented for renewal.
type Principal = claims.Principal

// Credentials is the username/password pair submitted for a fresh token.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// CredentialVerifier resolves credentials against the identity backend.
//
// Lookup returns (nil, nil) when no identity matches. A non-nil error means the
// backend itself failed. Implementations must honor ctx cancellation.
type CredentialVerifier interface {
	Lookup(ctx context.Context, creds Credentials) (*IdentityRecord, error)
}

// VerifierFunc adapts a function to CredentialVerifier.
type VerifierFunc func(ctx context.Context, creds Credentials) (*IdentityRecord, error)

// Lookup implements CredentialVerifier.
func (f VerifierFunc) Lookup(ctx context.Context, creds Credentials) (*IdentityRecord, error) {
	return f(ctx, creds)
}

// SignedToken is the response value of a successful issuance or renewal.
type SignedToken struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}
