package middleware

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestDistributedRateLimiter_Allow(t *testing.T) {
	mr, client := newTestRedis(t)
	config := &RateLimitConfig{RequestsPerWindow: 3, WindowDuration: time.Minute, BurstSize: 1}
	limiter := NewDistributedRateLimiter(client, config, "")
	ctx := context.Background()

	allowed := 0
	for i := 0; i < 6; i++ {
		ok, err := limiter.Allow(ctx, "ip:192.0.2.1")
		if err != nil {
			t.Fatalf("Allow() error = %v", err)
		}
		if ok {
			allowed++
		}
	}
	if allowed != 4 {
		t.Errorf("allowed = %d, want 4", allowed)
	}

	if ttl := mr.TTL("ssomap:ratelimit:ip:192.0.2.1"); ttl != time.Minute {
		t.Errorf("TTL = %v, want %v", ttl, time.Minute)
	}

	mr.FastForward(time.Minute + time.Second)
	if ok, _ := limiter.Allow(ctx, "ip:192.0.2.1"); !ok {
		t.Error("request should pass once the window expires")
	}
}

func TestDistributedRateLimiter_RemainingAndReset(t *testing.T) {
	_, client := newTestRedis(t)
	config := &RateLimitConfig{RequestsPerWindow: 5, WindowDuration: time.Minute}
	limiter := NewDistributedRateLimiter(client, config, "test")
	ctx := context.Background()

	remaining, err := limiter.Remaining(ctx, "k")
	if err != nil || remaining != 5 {
		t.Fatalf("Remaining() = %d, %v; want 5, nil", remaining, err)
	}

	limiter.Allow(ctx, "k")
	limiter.Allow(ctx, "k")
	if remaining, _ = limiter.Remaining(ctx, "k"); remaining != 3 {
		t.Errorf("Remaining() = %d, want 3", remaining)
	}

	if err := limiter.Reset(ctx, "k"); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	if remaining, _ = limiter.Remaining(ctx, "k"); remaining != 5 {
		t.Errorf("Remaining() after reset = %d, want 5", remaining)
	}
}

func TestDistributedRateLimiter_RedisDown(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatal(err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	limiter := NewDistributedRateLimiter(client, nil, "")
	mr.Close()

	if _, err := limiter.Allow(context.Background(), "k"); err == nil {
		t.Error("expected error when redis is unavailable")
	}
}
