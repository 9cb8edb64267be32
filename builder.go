package goIssuer

import (
	"github.com/MrEthical07/goIssuer/jwt"
	"github.com/rs/zerolog"
)

// Builder assembles an Engine. A Builder is single-use.
type Builder struct {
	config   Config
	verifier CredentialVerifier
	logger   zerolog.Logger

	auditSink AuditSink

	built bool
}

// New returns a Builder seeded with DefaultConfig and a no-op logger.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
		logger: zerolog.Nop(),
	}
}

// WithConfig replaces the configuration. The Builder keeps a private copy.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithVerifier sets the identity backend used by Issue.
func (b *Builder) WithVerifier(v CredentialVerifier) *Builder {
	b.verifier = v
	return b
}

// WithLogger sets the engine logger. Failure detail is written at debug level only.
func (b *Builder) WithLogger(logger zerolog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithAuditSink sets the audit destination; it is used only when Audit.Enabled is set.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMetricsEnabled toggles in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the Issue latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and returns a ready Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, ErrBuilderUsed
	}

	cfg := withDefaults(cloneConfig(b.config))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.verifier == nil {
		return nil, ErrVerifierRequired
	}

	signer, err := jwt.NewManager(jwt.Config{
		Issuer:    cfg.Issuer,
		Audiences: cfg.Audiences,
		Secret:    cfg.SigningSecret,
		Leeway:    cfg.ClockSkew,
		Now:       cfg.Now,
	})
	if err != nil {
		return nil, err
	}

	b.built = true
	metrics := NewMetrics(cfg.Metrics)

	return &Engine{
		config:   cfg,
		verifier: b.verifier,
		signer:   signer,
		logger:   b.logger.With().Str("component", "token_engine").Logger(),
		metrics:  metrics,
		audit:    newAuditTrail(cfg.Audit, b.auditSink, cfg.Now, metrics),
	}, nil
}
