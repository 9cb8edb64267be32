package goIssuer

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/goIssuer/claims"
	"github.com/MrEthical07/goIssuer/jwt"
	"github.com/rs/zerolog"
)

// Engine issues and renews signed bearer tokens.
//
// An Engine holds no per-request state; Issue, Renew and Authenticate are safe
// for concurrent use. Every failure is reported as an *AuthError matching
// ErrUnauthorized, never as a partially built token.
type Engine struct {
	config   Config
	verifier CredentialVerifier
	signer   *jwt.Manager
	logger   zerolog.Logger
	metrics  *Metrics
	audit    *auditTrail
	closed   atomic.Bool
}

type operation string

const (
	opIssue operation = "issue"
	opRenew operation = "renew"
)

// Issue verifies creds and, when the missing-record policy allows, signs a token
// for the resolved identity. The verifier call is the only suspension point and
// is bounded by ctx.
func (e *Engine) Issue(ctx context.Context, creds Credentials) (SignedToken, error) {
	if e == nil || e.closed.Load() {
		return SignedToken{}, unauthorized(FailureNotReady, ErrEngineNotReady)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	start := time.Now()
	defer func() {
		e.metrics.Observe(MetricIssueLatency, time.Since(start))
	}()

	if err := ctx.Err(); err != nil {
		return e.fail(ctx, opIssue, "", unauthorized(FailureCanceled, err))
	}

	record, err := e.verifier.Lookup(ctx, creds)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return e.fail(ctx, opIssue, "", unauthorized(FailureCanceled, ctxErr))
	}
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return e.fail(ctx, opIssue, "", unauthorized(FailureCanceled, err))
		}
		return e.fail(ctx, opIssue, "", unauthorized(FailureVerifierError, err))
	}

	found := record != nil
	if !e.config.MissingRecordPolicy.shouldIssue(found) {
		if !found {
			return e.fail(ctx, opIssue, "", unauthorized(FailureVerificationMiss, nil))
		}
		return e.fail(ctx, opIssue, userID(*record), unauthorized(FailurePolicyRejected,
			fmt.Errorf("policy %s refuses resolved identities", e.config.MissingRecordPolicy)))
	}

	id := claims.UnsetIdentity()
	if found {
		id = *record
	}

	token, jti, authErr := e.mint(ctx, id)
	if authErr != nil {
		return e.fail(ctx, opIssue, userID(id), authErr)
	}

	e.succeed(ctx, opIssue, userID(id), jti)
	return token, nil
}

// Renew signs a fresh token for an already-authenticated principal, carrying its
// email, primary id, primary group id and role forward. Only jti, iat, nbf and
// exp change. The identity backend is not consulted.
func (e *Engine) Renew(ctx context.Context, principal Principal) (SignedToken, error) {
	if e == nil || e.closed.Load() {
		return SignedToken{}, unauthorized(FailureNotReady, ErrEngineNotReady)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if claims.Absent(principal) {
		return e.fail(ctx, opRenew, "", unauthorized(FailureUnauthenticated, errors.New("no authenticated principal")))
	}
	if err := ctx.Err(); err != nil {
		return e.fail(ctx, opRenew, "", unauthorized(FailureCanceled, err))
	}

	id, err := claims.IdentityFromPrincipal(principal)
	if err != nil {
		return e.fail(ctx, opRenew, "", unauthorized(FailureClaimConversion, err))
	}

	token, jti, authErr := e.mint(ctx, id)
	if authErr != nil {
		return e.fail(ctx, opRenew, userID(id), authErr)
	}

	e.succeed(ctx, opRenew, userID(id), jti)
	return token, nil
}

// Authenticate verifies a bearer token issued by this engine and returns its claims.
// Any verification failure yields ErrUnauthorized.
func (e *Engine) Authenticate(token string) (claims.MapPrincipal, error) {
	if e == nil || e.closed.Load() {
		return nil, ErrUnauthorized
	}

	p, err := e.signer.Parse(token)
	if err != nil {
		e.logger.Debug().Err(err).Msg("bearer token rejected")
		return nil, ErrUnauthorized
	}
	return p, nil
}

// mint draws a jti, builds the claim set and signs it.
func (e *Engine) mint(ctx context.Context, id claims.Identity) (SignedToken, string, *AuthError) {
	jti, err := e.config.JTIGenerator(ctx)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return SignedToken{}, "", unauthorized(FailureCanceled, ctxErr)
	}
	if err != nil {
		return SignedToken{}, "", unauthorized(FailureJTIGeneration, err)
	}
	if jti == "" {
		return SignedToken{}, "", unauthorized(FailureJTIGeneration, errors.New("empty token identifier"))
	}

	issuedAt, notBefore, expiration := e.config.window(e.config.Now())
	set := claims.FromIdentity(id, jti, issuedAt)

	signed, err := e.signer.Sign(set, jwt.Window{NotBefore: notBefore, Expiration: expiration})
	if err != nil {
		return SignedToken{}, "", unauthorized(classifySignError(err), err)
	}

	return SignedToken{
		AccessToken: signed,
		ExpiresIn:   e.config.ExpiresInSeconds(),
	}, jti, nil
}

func classifySignError(err error) FailureKind {
	if errors.Is(err, jwt.ErrSigningKey) {
		return FailureSigningConfiguration
	}
	return FailureTokenFormat
}

func (e *Engine) fail(ctx context.Context, op operation, uid string, authErr *AuthError) (SignedToken, error) {
	if id, ok := failureMetric(authErr.Kind); ok {
		e.metrics.Inc(id)
	}

	event := AuditTokenIssueFailed
	if op == opIssue {
		e.metrics.Inc(MetricIssueUnauthorized)
	} else {
		e.metrics.Inc(MetricRenewUnauthorized)
		event = AuditTokenRenewFailed
	}

	e.logger.Warn().
		Str("op", string(op)).
		Stringer("kind", authErr.Kind).
		Msg("token request unauthorized")
	if authErr.Err != nil {
		e.logger.Debug().
			Str("op", string(op)).
			Stringer("kind", authErr.Kind).
			Err(authErr.Err).
			Msg("token request failure detail")
	}

	e.audit.record(ctx, op, AuditEvent{
		Event:  event,
		UserID: uid,
		Kind:   authErr.Kind.String(),
	})

	return SignedToken{}, authErr
}

func (e *Engine) succeed(ctx context.Context, op operation, uid, jti string) {
	event := AuditTokenIssued
	if op == opIssue {
		e.metrics.Inc(MetricIssueSuccess)
	} else {
		e.metrics.Inc(MetricRenewSuccess)
		event = AuditTokenRenewed
	}

	e.logger.Debug().
		Str("op", string(op)).
		Str("user_id", uid).
		Str("jti", jti).
		Msg("token signed")

	e.audit.record(ctx, op, AuditEvent{
		Event:   event,
		UserID:  uid,
		Success: true,
		JTI:     jti,
	})
}

func userID(id claims.Identity) string {
	if id.PrimaryID == claims.Unset {
		return ""
	}
	return strconv.FormatInt(id.PrimaryID, 10)
}

// ExpiresInSeconds reports the lifetime attached to every issued token.
func (e *Engine) ExpiresInSeconds() int64 {
	if e == nil {
		return 0
	}
	return e.config.ExpiresInSeconds()
}

// MetricsSnapshot returns the current engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}, Histograms: map[MetricID][]uint64{}}
	}
	return e.metrics.Snapshot()
}

// Close flushes the audit dispatcher. Subsequent calls fail with FailureNotReady.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.closed.Store(true)
	e.audit.close()
}
