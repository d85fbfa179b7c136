package httpapi

import (
	"net/http"
	"strconv"
	"testing"
	"time"
)

func TestRateLimiting_429Response(t *testing.T) {
	srv, _ := newTestServer(t)
	srv.RateLimitConfig = RateLimitInfo{
		WindowSeconds: 60,
		MaxRequests:   10, // Very low for testing
		Burst:         2,  // Allow only 2 requests in burst
	}
	router := routes(srv)

	body := map[string]any{"data": map[string]any{"dayPart": "Lunch"}, "timestamp": 1}

	// Burst is 2, so first 2 should succeed, 3rd should fail with 429
	for i := 1; i <= 3; i++ {
		w := doRequest(t, router, http.MethodPost, "/api/sync/daypart_2024-06-01", body, "X-Device-ID", "device-a")

		t.Logf("Request %d: status=%d", i, w.Code)

		for _, h := range []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "X-RateLimit-Burst"} {
			if w.Header().Get(h) == "" {
				t.Errorf("Request %d: %s header missing", i, h)
			}
		}

		if i <= 2 {
			if w.Code != http.StatusOK {
				t.Errorf("Request %d: expected 200, got %d", i, w.Code)
			}
			continue
		}

		if w.Code != http.StatusTooManyRequests {
			t.Fatalf("Request %d: expected 429, got %d", i, w.Code)
		}
		retryAfter, err := strconv.Atoi(w.Header().Get("Retry-After"))
		if err != nil || retryAfter < 1 {
			t.Errorf("Retry-After = %q, want a positive integer", w.Header().Get("Retry-After"))
		}
		var resp errorResponse
		decodeBody(t, w, &resp)
		if resp.Error == "" {
			t.Error("429 response should have an error message")
		}
	}

	// A different device has its own bucket.
	w := doRequest(t, router, http.MethodPost, "/api/sync/daypart_2024-06-01", body, "X-Device-ID", "device-b")
	if w.Code != http.StatusOK {
		t.Errorf("other device: expected 200, got %d", w.Code)
	}

	// Reads are never limited.
	w = doRequest(t, router, http.MethodGet, "/api/sync/daypart_2024-06-01", nil, "X-Device-ID", "device-a")
	if w.Code != http.StatusOK {
		t.Errorf("GET: expected 200, got %d", w.Code)
	}
}

func TestBucket_Refill(t *testing.T) {
	start := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	b := newBucket(1, 1000, start) // refills a token every millisecond

	if d := b.take(start); !d.allowed {
		t.Fatal("first request should be allowed")
	}
	if d := b.take(start); d.allowed {
		t.Fatal("empty bucket should refuse")
	} else if !d.retryAt.After(start) {
		t.Errorf("retryAt = %v, want after %v", d.retryAt, start)
	}
	if d := b.take(start.Add(10 * time.Millisecond)); !d.allowed {
		t.Fatal("bucket should have refilled")
	}
}

func TestLimiter_SweepsIdleBuckets(t *testing.T) {
	now := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	l := newLimiter(RateLimitInfo{WindowSeconds: 60, MaxRequests: 60, Burst: 5})
	l.now = func() time.Time { return now }
	l.lastSweep = now

	l.allow("device:a")
	now = now.Add(2 * time.Hour)
	l.allow("device:b")

	if _, ok := l.buckets["device:a"]; ok {
		t.Error("idle bucket should have been swept")
	}
	if len(l.buckets) != 1 {
		t.Errorf("buckets = %d, want 1", len(l.buckets))
	}
}

func TestClientIdentity(t *testing.T) {
	srv, _ := newTestServer(t)
	srv.RateLimitConfig = RateLimitInfo{WindowSeconds: 60, MaxRequests: 1, Burst: 1}
	router := routes(srv)

	body := map[string]any{"data": map[string]any{}, "timestamp": 1}
	// Without a device ID the remote address is the identity.
	first := doRequest(t, router, http.MethodPost, "/api/sync/k", body)
	second := doRequest(t, router, http.MethodPost, "/api/sync/k", body)
	if first.Code != http.StatusOK || second.Code != http.StatusTooManyRequests {
		t.Errorf("got %d then %d, want 200 then 429", first.Code, second.Code)
	}
}
