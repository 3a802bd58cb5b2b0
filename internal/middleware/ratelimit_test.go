package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRateLimitConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  RateLimitConfig
		wantErr bool
	}{
		{
			name:    "valid config",
			config:  RateLimitConfig{RequestsPerWindow: 10, WindowDuration: time.Minute},
			wantErr: false,
		},
		{
			name:    "zero requests",
			config:  RateLimitConfig{RequestsPerWindow: 0, WindowDuration: time.Minute},
			wantErr: true,
		},
		{
			name:    "zero window",
			config:  RateLimitConfig{RequestsPerWindow: 10, WindowDuration: 0},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestInMemoryRateLimitStore_Allow(t *testing.T) {
	store := NewInMemoryRateLimitStore()
	config := RateLimitConfig{RequestsPerWindow: 3, WindowDuration: time.Minute}
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, _ := store.Allow(ctx, "client-1", config)
		if !allowed {
			t.Fatalf("Request %d should be allowed", i+1)
		}
	}

	allowed, retryAfter := store.Allow(ctx, "client-1", config)
	if allowed {
		t.Error("Fourth request should be blocked")
	}
	if retryAfter <= 0 {
		t.Errorf("Expected positive retryAfter, got %d", retryAfter)
	}

	// A different key has its own window
	if allowed, _ := store.Allow(ctx, "client-2", config); !allowed {
		t.Error("Different key should be allowed")
	}
}

func TestInMemoryRateLimitStore_WindowReset(t *testing.T) {
	store := NewInMemoryRateLimitStore()
	config := RateLimitConfig{RequestsPerWindow: 1, WindowDuration: 50 * time.Millisecond}
	ctx := context.Background()

	if allowed, _ := store.Allow(ctx, "client-1", config); !allowed {
		t.Fatal("First request should be allowed")
	}
	if allowed, _ := store.Allow(ctx, "client-1", config); allowed {
		t.Fatal("Second request in window should be blocked")
	}

	time.Sleep(60 * time.Millisecond)

	if allowed, _ := store.Allow(ctx, "client-1", config); !allowed {
		t.Error("Request after window reset should be allowed")
	}
}

func TestInMemoryRateLimitStore_Cleanup(t *testing.T) {
	store := NewInMemoryRateLimitStore()
	config := RateLimitConfig{RequestsPerWindow: 1, WindowDuration: 10 * time.Millisecond}
	ctx := context.Background()

	store.Allow(ctx, "client-1", config)
	time.Sleep(20 * time.Millisecond)
	store.Cleanup()

	store.mu.RLock()
	defer store.mu.RUnlock()
	if len(store.buckets) != 0 {
		t.Errorf("Expected no buckets after cleanup, got %d", len(store.buckets))
	}
}

func TestRateLimiter_Blocks(t *testing.T) {
	store := NewInMemoryRateLimitStore()
	config := RateLimitConfig{RequestsPerWindow: 2, WindowDuration: time.Minute}
	handler := RateLimiter(store, config, IPKeyFunc())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/compare", nil)
		req.RemoteAddr = "192.0.2.1:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("Request %d status = %d, want 200", i+1, rec.Code)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/compare", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("Status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("Expected Retry-After header")
	}
	if rec.Header().Get("X-RateLimit-Reset") == "" {
		t.Error("Expected X-RateLimit-Reset header")
	}
}

func TestIPKeyFunc(t *testing.T) {
	keyFunc := IPKeyFunc()

	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{
			name:       "remote addr with port",
			remoteAddr: "192.0.2.1:1234",
			want:       "192.0.2.1",
		},
		{
			name:       "x-forwarded-for single",
			remoteAddr: "10.0.0.1:1234",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.5"},
			want:       "203.0.113.5",
		},
		{
			name:       "x-forwarded-for chain uses first",
			remoteAddr: "10.0.0.1:1234",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.5, 10.0.0.2"},
			want:       "203.0.113.5",
		},
		{
			name:       "x-real-ip",
			remoteAddr: "10.0.0.1:1234",
			headers:    map[string]string{"X-Real-IP": "203.0.113.9"},
			want:       "203.0.113.9",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := keyFunc(req); got != tt.want {
				t.Errorf("keyFunc() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestArtistKeyFunc(t *testing.T) {
	keyFunc := ArtistKeyFunc()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	if got := keyFunc(req); got != "ip:192.0.2.1" {
		t.Errorf("Unauthenticated key = %q, want ip:192.0.2.1", got)
	}

	req = req.WithContext(SetArtistID(req.Context(), "artist-42"))
	if got := keyFunc(req); got != "artist:artist-42" {
		t.Errorf("Authenticated key = %q, want artist:artist-42", got)
	}
}
