package jwt

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/MrEthical07/goIssuer/claims"
	"github.com/golang-jwt/jwt/v5"
)

// MinSecretBytes is the shortest HMAC-SHA-256 key the signer accepts (128 bits).
const MinSecretBytes = 16

var (
	// ErrSigningKey reports a signing secret that is structurally unusable for HS256.
	ErrSigningKey = errors.New("invalid signing key")
	// ErrClaimFormat reports a claim that cannot be represented in the token payload.
	ErrClaimFormat = errors.New("claim not representable in token")
	// ErrTokenInvalid is returned by Parse for any token that fails verification.
	ErrTokenInvalid = errors.New("invalid token")
)

// registered claims the signer owns; a claim set may not supply them.
var reservedClaims = map[string]struct{}{
	"iss": {},
	"aud": {},
	"nbf": {},
	"exp": {},
}

// Config holds the immutable signing and verification parameters.
type Config struct {
	Issuer    string
	Audiences []string
	Secret    []byte
	// Leeway is the clock skew tolerated when checking nbf/exp on Parse.
	Leeway time.Duration
	// Now defaults to time.Now.
	Now func() time.Time
}

// Window is the validity interval stamped into a single token.
type Window struct {
	NotBefore  time.Time
	Expiration time.Time
}

// Manager signs claim sets into compact HS256 tokens and verifies them.
//
// A Manager is immutable after NewManager and safe for concurrent use.
type Manager struct {
	issuer    string
	audiences []string
	secret    []byte
	leeway    time.Duration
	now       func() time.Time
}

// NewManager validates cfg and returns a Manager holding private copies of its slices.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Issuer == "" {
		return nil, errors.New("issuer is required")
	}
	if len(cfg.Audiences) == 0 {
		return nil, errors.New("at least one audience is required")
	}
	if len(cfg.Secret) == 0 {
		return nil, fmt.Errorf("%w: hs256 requires a secret", ErrSigningKey)
	}
	if cfg.Leeway < 0 {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Manager{
		issuer:    cfg.Issuer,
		audiences: slices.Clone(cfg.Audiences),
		secret:    slices.Clone(cfg.Secret),
		leeway:    cfg.Leeway,
		now:       cfg.Now,
	}, nil
}

// Sign encodes set plus iss, aud, nbf and exp into a signed token.
//
// Errors wrap ErrSigningKey or ErrClaimFormat. Sign never returns a partial token.
func (m *Manager) Sign(set claims.Set, w Window) (string, error) {
	if len(m.secret) < MinSecretBytes {
		return "", fmt.Errorf("%w: hs256 requires at least %d bytes, got %d", ErrSigningKey, MinSecretBytes, len(m.secret))
	}
	if !w.Expiration.After(w.NotBefore) {
		return "", fmt.Errorf("%w: expiration %s is not after not-before %s", ErrClaimFormat, w.Expiration, w.NotBefore)
	}

	payload := jwt.MapClaims{
		"iss": m.issuer,
		"aud": jwt.ClaimStrings(slices.Clone(m.audiences)),
		"nbf": jwt.NewNumericDate(w.NotBefore),
		"exp": jwt.NewNumericDate(w.Expiration),
	}

	for _, c := range set.All() {
		if _, reserved := reservedClaims[c.Type]; reserved {
			return "", fmt.Errorf("%w: claim %q is reserved", ErrClaimFormat, c.Type)
		}
		if _, dup := payload[c.Type]; dup {
			return "", fmt.Errorf("%w: duplicate claim %q", ErrClaimFormat, c.Type)
		}
		if c.Type == "" || !utf8.ValidString(c.Type) || !utf8.ValidString(c.Value) {
			return "", fmt.Errorf("%w: claim %q is not valid utf-8 text", ErrClaimFormat, c.Type)
		}

		switch c.ValueType {
		case claims.String:
			payload[c.Type] = c.Value
		case claims.Integer64:
			n, err := strconv.ParseInt(c.Value, 10, 64)
			if err != nil {
				return "", fmt.Errorf("%w: claim %q: %w", ErrClaimFormat, c.Type, err)
			}
			payload[c.Type] = n
		default:
			return "", fmt.Errorf("%w: claim %q has unknown value type %d", ErrClaimFormat, c.Type, c.ValueType)
		}
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, payload)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		if errors.Is(err, jwt.ErrInvalidKey) || errors.Is(err, jwt.ErrInvalidKeyType) {
			return "", fmt.Errorf("%w: %w", ErrSigningKey, err)
		}
		return "", fmt.Errorf("%w: %w", ErrClaimFormat, err)
	}

	return signed, nil
}

// Parse verifies tokenStr and returns its claims as a principal.
//
// Only HS256 is accepted, exp is required, nbf/exp are checked with the configured
// leeway, iss must match and at least one aud entry must be a configured audience.
func (m *Manager) Parse(tokenStr string) (claims.MapPrincipal, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(m.leeway),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(m.issuer),
		jwt.WithTimeFunc(m.now),
		jwt.WithJSONNumber(),
	)

	token, err := parser.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	mc, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, jwt.ErrTokenInvalidClaims)
	}

	aud, err := mc.GetAudience()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}
	if !slices.ContainsFunc(aud, func(a string) bool { return slices.Contains(m.audiences, a) }) {
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, jwt.ErrTokenInvalidAudience)
	}

	return principalFromMap(mc), nil
}

func principalFromMap(mc jwt.MapClaims) claims.MapPrincipal {
	out := make(claims.MapPrincipal, len(mc))
	for k, v := range mc {
		switch val := v.(type) {
		case string:
			out[k] = val
		case json.Number:
			out[k] = val.String()
		case bool:
			out[k] = strconv.FormatBool(val)
		case []interface{}:
			parts := make([]string, 0, len(val))
			for _, item := range val {
				parts = append(parts, fmt.Sprint(item))
			}
			out[k] = strings.Join(parts, ",")
		case nil:
			// dropped
		default:
			out[k] = fmt.Sprint(val)
		}
	}
	return out
}
