package goIssuer

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestParseAudiences(t *testing.T) {
	tests := []struct {
		raw  string
		want []string
	}{
		{raw: "a", want: []string{"a"}},
		{raw: "a,b,c", want: []string{"a", "b", "c"}},
		{raw: "a, b", want: []string{"a", " b"}},
		{raw: "a,,b", want: []string{"a", "", "b"}},
		{raw: "a,", want: []string{"a", ""}},
		{raw: "", want: nil},
	}

	for _, tt := range tests {
		if diff := cmp.Diff(tt.want, ParseAudiences(tt.raw)); diff != "" {
			t.Fatalf("ParseAudiences(%q) mismatch (-want +got):\n%s", tt.raw, diff)
		}
	}
}

func TestNormalizeClockSkew(t *testing.T) {
	tests := []struct {
		raw  string
		want time.Duration
	}{
		{raw: "10", want: 10 * time.Minute},
		{raw: "1.5", want: 90 * time.Second},
		{raw: " 10", want: 10 * time.Minute},
		{raw: "10 ", want: 10 * time.Minute},
		{raw: "\t2\n", want: 2 * time.Minute},
		{raw: "1 0", want: DefaultClockSkew},
		{raw: "0", want: DefaultClockSkew},
		{raw: "-3", want: DefaultClockSkew},
		{raw: "x", want: DefaultClockSkew},
		{raw: "", want: DefaultClockSkew},
		{raw: "NaN", want: DefaultClockSkew},
		{raw: "+Inf", want: DefaultClockSkew},
	}

	for _, tt := range tests {
		if got := NormalizeClockSkew(tt.raw); got != tt.want {
			t.Fatalf("NormalizeClockSkew(%q): want %v, got %v", tt.raw, tt.want, got)
		}
	}
}

func TestClockSkewMinutes(t *testing.T) {
	cfg := Config{ClockSkew: NormalizeClockSkew("0")}
	if got := cfg.ClockSkewMinutes(); got != 5 {
		t.Fatalf("expected 5 minutes, got %d", got)
	}
}

func TestConfigValidate(t *testing.T) {
	valid := func() Config {
		cfg := DefaultConfig()
		cfg.Issuer = "issuer"
		cfg.Audiences = []string{"api"}
		cfg.SigningSecret = []byte(testSecret)
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{name: "defaults valid", mutate: func(*Config) {}},
		{name: "zero lifetime valid", mutate: func(c *Config) { c.ValidFor = 0 }},
		{name: "empty issuer", mutate: func(c *Config) { c.Issuer = "" }, wantErr: ErrEmptyIssuer},
		{name: "no audience", mutate: func(c *Config) { c.Audiences = nil }, wantErr: ErrEmptyAudience},
		{name: "empty secret", mutate: func(c *Config) { c.SigningSecret = nil }, wantErr: ErrEmptySigningSecret},
		{name: "negative lifetime", mutate: func(c *Config) { c.ValidFor = -time.Second }, wantErr: ErrInvalidValidFor},
		{name: "negative skew", mutate: func(c *Config) { c.ClockSkew = -time.Second }, wantErr: ErrInvalidClockSkew},
		{name: "legacy policy valid", mutate: func(c *Config) { c.MissingRecordPolicy = IssueOnMissingRecord }},
		{name: "unknown policy", mutate: func(c *Config) { c.MissingRecordPolicy = 9 }, wantErr: ErrInvalidPolicy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == nil && err != nil {
				t.Fatalf("expected valid config, got %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig(RawConfig{
		Issuer:    "issuer",
		Audience:  "web,mobile",
		SecretKey: testSecret,
		ClockSkew: "2",
	})
	if err != nil {
		t.Fatalf("ParseConfig failed: %v", err)
	}

	if diff := cmp.Diff([]string{"web", "mobile"}, cfg.Audiences); diff != "" {
		t.Fatalf("audiences mismatch (-want +got):\n%s", diff)
	}
	if cfg.ClockSkew != 2*time.Minute {
		t.Fatalf("expected 2m skew, got %v", cfg.ClockSkew)
	}
	if cfg.ValidFor != DefaultValidFor {
		t.Fatalf("expected default lifetime, got %v", cfg.ValidFor)
	}
	if cfg.ExpiresInSeconds() != 7200 {
		t.Fatalf("expected 7200s, got %d", cfg.ExpiresInSeconds())
	}
	if cfg.MissingRecordPolicy != RejectMissingRecord {
		t.Fatalf("expected reject policy by default, got %v", cfg.MissingRecordPolicy)
	}
}

func TestParseConfigRejectsMissingFields(t *testing.T) {
	if _, err := ParseConfig(RawConfig{Audience: "api", SecretKey: testSecret}); !errors.Is(err, ErrEmptyIssuer) {
		t.Fatalf("expected ErrEmptyIssuer, got %v", err)
	}
	if _, err := ParseConfig(RawConfig{Issuer: "i", SecretKey: testSecret}); !errors.Is(err, ErrEmptyAudience) {
		t.Fatalf("expected ErrEmptyAudience, got %v", err)
	}
	if _, err := ParseConfig(RawConfig{Issuer: "i", Audience: "api", ValidFor: -time.Minute, SecretKey: testSecret}); !errors.Is(err, ErrInvalidValidFor) {
		t.Fatalf("expected ErrInvalidValidFor, got %v", err)
	}
}

func TestExpiresInSecondsTruncates(t *testing.T) {
	cfg := Config{ValidFor: 1500 * time.Millisecond}
	if got := cfg.ExpiresInSeconds(); got != 1 {
		t.Fatalf("expected 1, got %d", got)
	}
}

func TestConfigWindow(t *testing.T) {
	now := time.Unix(1700000000, 0)
	cfg := Config{ValidFor: 30 * time.Minute}

	iat, nbf, exp := cfg.window(now)
	if !iat.Equal(now) || !nbf.Equal(now) {
		t.Fatalf("iat and nbf must equal now, got %v %v", iat, nbf)
	}
	if exp.Sub(iat) != cfg.ValidFor {
		t.Fatalf("expected exp-iat == ValidFor, got %v", exp.Sub(iat))
	}
}
