package middleware

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testConfig() *RateLimitConfig {
	return &RateLimitConfig{
		RequestsPerWindow: 10,
		WindowDuration:    time.Second,
		BurstSize:         2,
	}
}

func TestRateLimiter_Allow(t *testing.T) {
	config := testConfig()
	limiter := NewRateLimiter(config)
	now := time.Unix(1700000000, 0)
	limiter.now = func() time.Time { return now }

	key := "ip:10.0.0.1"

	allowedCount := 0
	for i := 0; i < config.RequestsPerWindow+config.BurstSize+5; i++ {
		if ok, _ := limiter.Allow(context.Background(), key); ok {
			allowedCount++
		}
	}

	expected := config.RequestsPerWindow + config.BurstSize
	if allowedCount != expected {
		t.Errorf("Allowed %d requests, want %d", allowedCount, expected)
	}

	now = now.Add(time.Second)
	if ok, _ := limiter.Allow(context.Background(), key); !ok {
		t.Error("Should allow request after refill")
	}
}

func TestRateLimiter_KeysAreIndependent(t *testing.T) {
	limiter := NewRateLimiter(&RateLimitConfig{RequestsPerWindow: 1, WindowDuration: time.Minute})

	if ok, _ := limiter.Allow(context.Background(), "ip:a"); !ok {
		t.Fatal("first request for a should pass")
	}
	if ok, _ := limiter.Allow(context.Background(), "ip:a"); ok {
		t.Error("second request for a should be limited")
	}
	if ok, _ := limiter.Allow(context.Background(), "ip:b"); !ok {
		t.Error("b should have its own bucket")
	}
}

func TestRateLimiter_Remaining(t *testing.T) {
	config := testConfig()
	limiter := NewRateLimiter(config)
	key := "ip:10.0.0.1"

	if got := limiter.Remaining(key); got != 12 {
		t.Errorf("Remaining() = %d, want 12", got)
	}

	for i := 0; i < 5; i++ {
		limiter.Allow(context.Background(), key)
	}

	if got := limiter.Remaining(key); got != 7 {
		t.Errorf("Remaining() = %d, want 7", got)
	}
}

func TestRateLimiter_Cleanup(t *testing.T) {
	limiter := NewRateLimiter(testConfig())
	now := time.Unix(1700000000, 0)
	limiter.now = func() time.Time { return now }

	limiter.Allow(context.Background(), "ip:old")
	now = now.Add(3 * time.Second)
	limiter.Allow(context.Background(), "ip:new")
	limiter.Cleanup()

	if _, ok := limiter.buckets["ip:old"]; ok {
		t.Error("idle bucket should be removed")
	}
	if _, ok := limiter.buckets["ip:new"]; !ok {
		t.Error("active bucket should be kept")
	}
}

type errLimiter struct{}

func (errLimiter) Allow(context.Context, string) (bool, error) {
	return false, errors.New("redis down")
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimitMiddleware_Handler(t *testing.T) {
	config := &RateLimitConfig{RequestsPerWindow: 2, WindowDuration: time.Minute}
	handler := NewRateLimitMiddleware(NewRateLimiter(config), config, nil).Handler(okHandler())

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/sso/login", nil)
		req.RemoteAddr = "192.0.2.10:5555"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)

		if i == 2 {
			if rec.Header().Get("Retry-After") != "60" {
				t.Errorf("Retry-After = %q, want 60", rec.Header().Get("Retry-After"))
			}
			if rec.Header().Get("X-RateLimit-Remaining") != "0" {
				t.Errorf("X-RateLimit-Remaining = %q, want 0", rec.Header().Get("X-RateLimit-Remaining"))
			}
		}
	}

	want := []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}
	for i := range want {
		if codes[i] != want[i] {
			t.Errorf("request %d: status = %d, want %d", i, codes[i], want[i])
		}
	}
}

func TestRateLimitMiddleware_LimiterError(t *testing.T) {
	tests := []struct {
		name     string
		failOpen bool
		want     int
	}{
		{name: "fail open", failOpen: true, want: http.StatusOK},
		{name: "fail closed", failOpen: false, want: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewRateLimitMiddleware(errLimiter{}, nil, nil)
			m.SetFailOpen(tt.failOpen)

			rec := httptest.NewRecorder()
			m.Handler(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/sso/login", nil))

			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestClientIP(t *testing.T) {
	m := NewRateLimitMiddleware(NewRateLimiter(testConfig()), nil, nil)
	if err := m.SetTrustedProxies([]string{"10.0.0.0/8", "192.0.2.200"}); err != nil {
		t.Fatalf("SetTrustedProxies() error = %v", err)
	}

	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		trusted    []*net.IPNet
		want       string
	}{
		{name: "remote addr", remoteAddr: "192.0.2.1:1234", want: "192.0.2.1"},
		{name: "remote addr without port", remoteAddr: "192.0.2.1", want: "192.0.2.1"},
		{name: "forwarded for ignored without trusted proxies", remoteAddr: "192.0.2.1:1", headers: map[string]string{"X-Forwarded-For": "203.0.113.5"}, want: "192.0.2.1"},
		{name: "real ip ignored without trusted proxies", remoteAddr: "192.0.2.1:1", headers: map[string]string{"X-Real-IP": "203.0.113.9"}, want: "192.0.2.1"},
		{name: "forwarded for from untrusted peer", remoteAddr: "192.0.2.1:1", headers: map[string]string{"X-Forwarded-For": "203.0.113.5"}, trusted: m.trusted, want: "192.0.2.1"},
		{name: "forwarded for behind proxy", remoteAddr: "10.0.0.1:1", headers: map[string]string{"X-Forwarded-For": "203.0.113.5"}, trusted: m.trusted, want: "203.0.113.5"},
		{name: "spoofed leftmost hop is skipped", remoteAddr: "10.0.0.1:1", headers: map[string]string{"X-Forwarded-For": "198.51.100.7, 203.0.113.5, 10.0.0.2"}, trusted: m.trusted, want: "203.0.113.5"},
		{name: "single trusted address", remoteAddr: "192.0.2.200:1", headers: map[string]string{"X-Forwarded-For": "203.0.113.5"}, trusted: m.trusted, want: "203.0.113.5"},
		{name: "real ip behind proxy", remoteAddr: "10.0.0.1:1", headers: map[string]string{"X-Real-IP": "203.0.113.9"}, trusted: m.trusted, want: "203.0.113.9"},
		{name: "proxy without headers", remoteAddr: "10.0.0.1:1", trusted: m.trusted, want: "10.0.0.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := clientIP(req, tt.trusted); got != tt.want {
				t.Errorf("clientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSetTrustedProxies_Invalid(t *testing.T) {
	m := NewRateLimitMiddleware(NewRateLimiter(testConfig()), nil, nil)
	for _, bad := range []string{"not-an-ip", "10.0.0.0/33"} {
		if err := m.SetTrustedProxies([]string{bad}); err == nil {
			t.Errorf("SetTrustedProxies(%q) error = nil", bad)
		}
	}
}

func TestRateLimitMiddleware_RotatingForwardedFor(t *testing.T) {
	config := &RateLimitConfig{RequestsPerWindow: 2, WindowDuration: time.Minute}
	handler := NewRateLimitMiddleware(NewRateLimiter(config), config, nil).Handler(okHandler())

	var limited int
	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodPost, "/sso/login", nil)
		req.RemoteAddr = "192.0.2.10:5555"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("203.0.113.%d", i))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code == http.StatusTooManyRequests {
			limited++
		}
	}

	if limited != 3 {
		t.Errorf("limited %d requests, want 3", limited)
	}
}
