package password

import (
	"errors"
	"strings"
	"testing"
)

func fastConfig() Config {
	return Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func newTestHasher(t *testing.T, cfg Config) *Hasher {
	t.Helper()
	h, err := NewHasher(cfg)
	if err != nil {
		t.Fatalf("NewHasher error: %v", err)
	}
	return h
}

func TestHashAndVerify(t *testing.T) {
	h := newTestHasher(t, fastConfig())

	hash, err := h.Hash("P@ssw0rd-Ascii")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$m=8192,t=1,p=1$") {
		t.Fatalf("unexpected PHC prefix: %s", hash)
	}

	ok, err := h.Verify("P@ssw0rd-Ascii", hash)
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if !ok {
		t.Fatal("expected password verification to succeed")
	}

	ok, err = h.Verify("wrong-password", hash)
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if ok {
		t.Fatal("expected wrong password verification to fail")
	}
}

func TestHashUsesFreshSalt(t *testing.T) {
	h := newTestHasher(t, fastConfig())

	a, err := h.Hash("same-password")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	b, err := h.Hash("same-password")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if a == b {
		t.Fatal("expected distinct hashes for the same password")
	}
}

func TestHashMinLength(t *testing.T) {
	cfg := fastConfig()
	cfg.MinLength = 8
	h := newTestHasher(t, cfg)

	if _, err := h.Hash("short"); !errors.Is(err, ErrTooShort) {
		t.Fatalf("expected ErrTooShort, got %v", err)
	}
}

func TestVerifyAcceptsPaddedEncoding(t *testing.T) {
	h := newTestHasher(t, fastConfig())

	hash, err := h.Hash("padded-password")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	parts := strings.Split(hash, "$")
	parts[4] += "=="
	parts[5] += "="

	ok, err := h.Verify("padded-password", strings.Join(parts, "$"))
	if err != nil || !ok {
		t.Fatalf("expected padded encoding to verify, ok=%v err=%v", ok, err)
	}
}

func TestNeedsRehash(t *testing.T) {
	old := newTestHasher(t, fastConfig())
	hash, err := old.Hash("test-password")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	stronger := fastConfig()
	stronger.Time = 2
	need, err := newTestHasher(t, stronger).NeedsRehash(hash)
	if err != nil {
		t.Fatalf("NeedsRehash error: %v", err)
	}
	if !need {
		t.Fatal("expected rehash for weaker stored parameters")
	}

	need, err = old.NeedsRehash(hash)
	if err != nil || need {
		t.Fatalf("expected no rehash with identical parameters, need=%v err=%v", need, err)
	}
}

func TestVerifyMalformedHashes(t *testing.T) {
	h := newTestHasher(t, fastConfig())

	valid, err := h.Hash("malformed-base")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	parts := strings.Split(valid, "$")

	cases := map[string]string{
		"empty":           "",
		"not phc":         "plaintext",
		"bcrypt":          "$2a$10$abcdefghijklmnopqrstuv",
		"wrong algorithm": "$argon2i$" + strings.Join(parts[2:], "$"),
		"wrong version":   "$argon2id$v=16$" + strings.Join(parts[3:], "$"),
		"weak memory":     "$argon2id$v=19$m=1024,t=1,p=1$" + parts[4] + "$" + parts[5],
		"missing param":   "$argon2id$v=19$m=8192,t=1$" + parts[4] + "$" + parts[5],
		"unknown param":   "$argon2id$v=19$m=8192,t=1,x=1$" + parts[4] + "$" + parts[5],
		"short salt":      "$argon2id$" + strings.Join(parts[2:4], "$") + "$c2FsdA$" + parts[5],
		"bad key":         "$argon2id$" + strings.Join(parts[2:5], "$") + "$!!!",
	}

	for name, encoded := range cases {
		if _, err := h.Verify("malformed-base", encoded); !errors.Is(err, ErrInvalidHash) {
			t.Fatalf("%s: expected ErrInvalidHash, got %v", name, err)
		}
	}
}

func TestNewHasherRejectsWeakConfig(t *testing.T) {
	mutations := map[string]func(*Config){
		"memory":      func(c *Config) { c.Memory = 1024 },
		"time":        func(c *Config) { c.Time = 0 },
		"parallelism": func(c *Config) { c.Parallelism = 0 },
		"salt":        func(c *Config) { c.SaltLength = 8 },
		"key":         func(c *Config) { c.KeyLength = 8 },
		"min length":  func(c *Config) { c.MinLength = -1 },
	}

	for name, mutate := range mutations {
		cfg := fastConfig()
		mutate(&cfg)
		if _, err := NewHasher(cfg); !errors.Is(err, ErrWeakConfig) {
			t.Fatalf("%s: expected ErrWeakConfig, got %v", name, err)
		}
	}
}

func TestDefaultConfigValid(t *testing.T) {
	if _, err := NewHasher(DefaultConfig()); err != nil {
		t.Fatalf("DefaultConfig must be valid: %v", err)
	}
}
