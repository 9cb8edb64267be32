package rate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T, cfg Config) (*Limiter, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return New(rdb, cfg), mr
}

func TestLimiterBlocksAfterMaxAttempts(t *testing.T) {
	l, _ := newTestLimiter(t, Config{Prefix: "t", MaxAttempts: 3, Window: time.Minute})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := l.Fail(ctx, "alice"); err != nil {
			t.Fatalf("attempt %d: unexpected %v", i, err)
		}
	}
	if err := l.Allow(ctx, "alice"); err != nil {
		t.Fatalf("expected allow below limit, got %v", err)
	}
	if err := l.Fail(ctx, "alice"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited on exhausting attempt, got %v", err)
	}
	if err := l.Allow(ctx, "alice"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if err := l.Allow(ctx, "bob"); err != nil {
		t.Fatalf("subjects must be independent, got %v", err)
	}
}

func TestLimiterWindowExpires(t *testing.T) {
	l, mr := newTestLimiter(t, Config{Prefix: "t", MaxAttempts: 1, Window: time.Minute})
	ctx := context.Background()

	_ = l.Fail(ctx, "alice")
	if ttl := mr.TTL("t:alice"); ttl != time.Minute {
		t.Fatalf("expected window ttl 1m, got %v", ttl)
	}

	mr.FastForward(2 * time.Minute)
	if err := l.Allow(ctx, "alice"); err != nil {
		t.Fatalf("expected allow after window, got %v", err)
	}
}

func TestLimiterReset(t *testing.T) {
	l, _ := newTestLimiter(t, Config{MaxAttempts: 1})
	ctx := context.Background()

	_ = l.Fail(ctx, "alice")
	if err := l.Reset(ctx, "alice"); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if n, err := l.Attempts(ctx, "alice"); err != nil || n != 0 {
		t.Fatalf("expected 0 attempts after reset, got %d (%v)", n, err)
	}
}

func TestLimiterDisabled(t *testing.T) {
	l, mr := newTestLimiter(t, Config{MaxAttempts: 0})
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		if err := l.Fail(ctx, "alice"); err != nil {
			t.Fatalf("disabled limiter must not fail: %v", err)
		}
	}
	if len(mr.Keys()) != 0 {
		t.Fatalf("disabled limiter must not write keys, got %v", mr.Keys())
	}
}

func TestLimiterRedisUnavailable(t *testing.T) {
	l, mr := newTestLimiter(t, Config{MaxAttempts: 3})
	mr.Close()

	if err := l.Allow(context.Background(), "alice"); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
}
