package goIssuer

import "errors"

var (
	// ErrUnauthorized is the only outcome callers see for a failed issuance or renewal.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrEmptyIssuer is returned when the issuer string is empty.
	ErrEmptyIssuer = errors.New("issuer is required")
	// ErrEmptyAudience is returned when no audience is configured.
	ErrEmptyAudience = errors.New("at least one audience is required")
	// ErrEmptySigningSecret is returned when the signing secret is empty.
	ErrEmptySigningSecret = errors.New("signing secret is required")
	// ErrInvalidValidFor is returned for a negative token lifetime.
	ErrInvalidValidFor = errors.New("token lifetime must not be negative")
	// ErrInvalidClockSkew is returned for a negative clock skew.
	ErrInvalidClockSkew = errors.New("clock skew must not be negative")
	// ErrInvalidPolicy is returned for an unknown MissingRecordPolicy value.
	ErrInvalidPolicy = errors.New("unknown missing-record policy")
	// ErrVerifierRequired is returned by Build without a CredentialVerifier.
	ErrVerifierRequired = errors.New("credential verifier required")
	// ErrBuilderUsed is returned by a second Build on the same Builder.
	ErrBuilderUsed = errors.New("builder already used")
	// ErrEngineNotReady is wrapped for calls on a nil or closed Engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// FailureKind enumerates every reason an issuance or renewal can end Unauthorized.
type FailureKind uint8

const (
	// FailureVerificationMiss: no identity matched the submitted credentials.
	FailureVerificationMiss FailureKind = iota + 1
	// FailureVerifierError: the identity backend returned an error.
	FailureVerifierError
	// FailureCanceled: the caller's context ended before a token was produced.
	FailureCanceled
	// FailureClaimConversion: a renewal claim could not be converted to its type.
	FailureClaimConversion
	// FailureSigningConfiguration: the signing key is unusable for HS256.
	FailureSigningConfiguration
	// FailureTokenFormat: a claim value is not representable in the payload.
	FailureTokenFormat
	// FailureJTIGeneration: the token identifier source failed.
	FailureJTIGeneration
	// FailurePolicyRejected: the missing-record policy refused to issue.
	FailurePolicyRejected
	// FailureNotReady: the engine is nil or closed.
	FailureNotReady
	// FailureUnauthenticated: renewal was attempted without an authenticated principal.
	FailureUnauthenticated
)

func (k FailureKind) String() string {
	switch k {
	case FailureVerificationMiss:
		return "verification_miss"
	case FailureVerifierError:
		return "verifier_error"
	case FailureCanceled:
		return "canceled"
	case FailureClaimConversion:
		return "claim_conversion"
	case FailureSigningConfiguration:
		return "signing_configuration"
	case FailureTokenFormat:
		return "token_format"
	case FailureJTIGeneration:
		return "jti_generation"
	case FailurePolicyRejected:
		return "policy_rejected"
	case FailureNotReady:
		return "not_ready"
	case FailureUnauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}

// AuthError is the failure variant of Issue and Renew. Its message never carries
// the cause; Unwrap exposes it for local diagnostics only.
type AuthError struct {
	Kind FailureKind
	Err  error
}

func (e *AuthError) Error() string {
	return ErrUnauthorized.Error()
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// Is reports true for ErrUnauthorized so callers can branch without inspecting kinds.
func (e *AuthError) Is(target error) bool {
	return target == ErrUnauthorized
}

func unauthorized(kind FailureKind, cause error) *AuthError {
	return &AuthError{Kind: kind, Err: cause}
}

// FailureKindOf returns the kind carried by err, or 0 when err is not an AuthError.
func FailureKindOf(err error) FailureKind {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr.Kind
	}
	return 0
}
