package goIssuer

import (
	"context"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultClockSkew replaces a configured skew that is unparsable or not positive.
	DefaultClockSkew = 5 * time.Minute
	// DefaultValidFor is the token lifetime used when none is configured.
	DefaultValidFor = 120 * time.Minute
)

// JTIGenerator returns a fresh unique token identifier per call. It may block on
// an entropy source and must honor ctx.
type JTIGenerator func(ctx context.Context) (string, error)

// Config is the process-wide issuer configuration. It is built once at startup
// and treated as immutable; [Builder.Build] takes a private copy.
type Config struct {
	Issuer        string
	Audiences     []string
	SigningSecret []byte
	// ValidFor is the lifetime of every issued token (expiration = issuedAt + ValidFor).
	ValidFor time.Duration
	// ClockSkew is the tolerance applied when verifying nbf/exp.
	ClockSkew time.Duration

	JTIGenerator JTIGenerator
	// Now is the issuance clock; defaults to time.Now.
	Now func() time.Time

	MissingRecordPolicy MissingRecordPolicy

	Metrics MetricsConfig
	Audit   AuditConfig
}

// MetricsConfig toggles in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// RawConfig is the external configuration as read from a file or the environment.
type RawConfig struct {
	Issuer string
	// Audience is a single audience or a comma-joined list.
	Audience  string
	SecretKey string
	// ClockSkew is a number of minutes.
	ClockSkew string
	ValidFor  time.Duration
}

// DefaultConfig returns the defaults applied beneath any caller configuration.
func DefaultConfig() Config {
	return Config{
		ValidFor:     DefaultValidFor,
		ClockSkew:    DefaultClockSkew,
		JTIGenerator: NewUUIDGenerator(),
		Now:          time.Now,
		Metrics: MetricsConfig{
			Enabled: true,
		},
		Audit: AuditConfig{
			BufferSize: 1024,
			DropIfFull: true,
		},
	}
}

// ParseConfig turns raw external values into a validated Config.
func ParseConfig(raw RawConfig) (Config, error) {
	cfg := DefaultConfig()
	cfg.Issuer = raw.Issuer
	cfg.Audiences = ParseAudiences(raw.Audience)
	cfg.SigningSecret = []byte(raw.SecretKey)
	cfg.ClockSkew = NormalizeClockSkew(raw.ClockSkew)
	if raw.ValidFor != 0 {
		cfg.ValidFor = raw.ValidFor
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ParseAudiences splits a comma-joined audience string. A string without a comma
// is a single audience. No whitespace is trimmed and empty segments are kept.
func ParseAudiences(raw string) []string {
	if raw == "" {
		return nil
	}
	if !strings.Contains(raw, ",") {
		return []string{raw}
	}
	return strings.Split(raw, ",")
}

// NormalizeClockSkew parses a number of minutes, ignoring surrounding whitespace.
// Unparsable, non-finite or non-positive values yield DefaultClockSkew.
func NormalizeClockSkew(raw string) time.Duration {
	minutes, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(minutes) || math.IsInf(minutes, 0) || minutes <= 0 {
		return DefaultClockSkew
	}
	// clamp before converting so huge values cannot overflow Duration
	if minutes > float64(math.MaxInt64)/float64(time.Minute) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(minutes * float64(time.Minute))
}

// ClockSkewMinutes reports the effective skew in whole minutes.
func (c Config) ClockSkewMinutes() int64 {
	return int64(c.ClockSkew / time.Minute)
}

// ExpiresInSeconds is the lifetime reported alongside every token.
func (c Config) ExpiresInSeconds() int64 {
	if c.ValidFor <= 0 {
		return 0
	}
	return int64(c.ValidFor / time.Second)
}

// Validate fails fast on configuration that can never produce a usable token.
func (c Config) Validate() error {
	if c.Issuer == "" {
		return ErrEmptyIssuer
	}
	if len(c.Audiences) == 0 {
		return ErrEmptyAudience
	}
	if len(c.SigningSecret) == 0 {
		return ErrEmptySigningSecret
	}
	if c.ValidFor < 0 {
		return ErrInvalidValidFor
	}
	if c.ClockSkew < 0 {
		return ErrInvalidClockSkew
	}
	if !c.MissingRecordPolicy.valid() {
		return ErrInvalidPolicy
	}
	return nil
}

// NewUUIDGenerator returns a JTIGenerator producing random (version 4) UUIDs.
func NewUUIDGenerator() JTIGenerator {
	return func(ctx context.Context) (string, error) {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		id, err := uuid.NewRandom()
		if err != nil {
			return "", err
		}
		return id.String(), nil
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Audiences = slices.Clone(cfg.Audiences)
	out.SigningSecret = slices.Clone(cfg.SigningSecret)
	return out
}

func withDefaults(cfg Config) Config {
	def := DefaultConfig()
	if cfg.ValidFor == 0 {
		cfg.ValidFor = def.ValidFor
	}
	if cfg.ClockSkew <= 0 {
		cfg.ClockSkew = def.ClockSkew
	}
	if cfg.JTIGenerator == nil {
		cfg.JTIGenerator = def.JTIGenerator
	}
	if cfg.Now == nil {
		cfg.Now = def.Now
	}
	if cfg.Audit.BufferSize <= 0 {
		cfg.Audit.BufferSize = def.Audit.BufferSize
	}
	return cfg
}

// window returns the nbf/iat and exp instants for a token issued at now.
func (c Config) window(now time.Time) (issuedAt, notBefore, expiration time.Time) {
	return now, now, now.Add(c.ValidFor)
}
