package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestLimiter(perMinute int, clock *time.Time) *Limiter {
	rl := NewLimiter(Config{RequestsPerMinute: perMinute, CleanupInterval: time.Hour})
	rl.now = func() time.Time { return *clock }
	return rl
}

func TestAllowPerKey(t *testing.T) {
	clock := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	rl := newTestLimiter(2, &clock)
	defer rl.Stop()

	if !rl.Allow("tenant-a") || !rl.Allow("tenant-a") {
		t.Fatal("first two requests should pass")
	}
	if rl.Allow("tenant-a") {
		t.Error("third request within the minute should be rejected")
	}
	if !rl.Allow("tenant-b") {
		t.Error("other keys have their own bucket")
	}

	clock = clock.Add(time.Minute)
	if !rl.Allow("tenant-a") {
		t.Error("window should reset after a minute")
	}

	if got := rl.GetMetrics(); got.TotalHits != 1 || got.ClientCount != 2 {
		t.Errorf("metrics = %+v, want 1 hit and 2 clients", got)
	}
}

func TestWindowDoesNotSlideOnRejectedTraffic(t *testing.T) {
	clock := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	rl := newTestLimiter(1, &clock)
	defer rl.Stop()

	rl.Allow("k")
	for i := 0; i < 2; i++ {
		clock = clock.Add(20 * time.Second)
		if rl.Allow("k") {
			t.Fatalf("request %d inside the window should be rejected", i+2)
		}
	}
	// Rejected requests do not push the window forward.
	clock = clock.Add(20 * time.Second)
	if !rl.Allow("k") {
		t.Error("expected a fresh window")
	}
}

func TestRetryAfter(t *testing.T) {
	clock := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	rl := newTestLimiter(1, &clock)
	defer rl.Stop()

	if got := rl.RetryAfter("unknown"); got != 0 {
		t.Errorf("RetryAfter(unknown) = %d, want 0", got)
	}
	rl.Allow("k")
	clock = clock.Add(45 * time.Second)
	if got := rl.RetryAfter("k"); got != 15 {
		t.Errorf("RetryAfter = %d, want 15", got)
	}
}

func TestCleanupStaleEntries(t *testing.T) {
	clock := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	rl := newTestLimiter(5, &clock)
	defer rl.Stop()

	rl.Allow("old")
	clock = clock.Add(11 * time.Minute)
	rl.Allow("fresh")
	rl.cleanupStaleEntries()

	if got := rl.GetMetrics().ClientCount; got != 1 {
		t.Errorf("ClientCount = %d, want 1", got)
	}
}

func TestMiddleware(t *testing.T) {
	clock := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	rl := newTestLimiter(1, &clock)
	defer rl.Stop()

	h := rl.Middleware(func(r *http.Request) string { return r.Header.Get("X-Key") }, nil)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) }))

	do := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Key", "a")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	if rec := do(); rec.Code != http.StatusNoContent {
		t.Fatalf("first request status = %d", rec.Code)
	}
	rec := do()
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "60" {
		t.Errorf("Retry-After = %q, want 60", rec.Header().Get("Retry-After"))
	}
}

func TestStopIsIdempotent(t *testing.T) {
	rl := NewLimiter(DefaultConfig())
	rl.Stop()
	rl.Stop()
}
