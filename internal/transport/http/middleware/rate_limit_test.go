package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap/zaptest"
)

type fakeRateLimitStore struct {
	count     int
	countErr  error
	oldest    time.Time
	hasOldest bool

	recordCalls int
}

func (f *fakeRateLimitStore) TrimWindow(_ context.Context, _ string, _ time.Duration, _ time.Time) error {
	return nil
}

func (f *fakeRateLimitStore) CountAttempts(_ context.Context, _ string, _ time.Duration, _ time.Time) (int, error) {
	return f.count, f.countErr
}

func (f *fakeRateLimitStore) RecordAttempt(_ context.Context, _ string, _ time.Time) error {
	f.recordCalls++
	return nil
}

func (f *fakeRateLimitStore) OldestAttempt(_ context.Context, _ string, _ time.Duration, _ time.Time) (time.Time, bool, error) {
	return f.oldest, f.hasOldest, nil
}

func rateLimitRouter(limiter *RateLimiter, rule RateLimitRule) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(limiter.RateLimit(rule))
	router.GET("/", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return router
}

func TestRateLimiterAllowsWhenBelowLimit(t *testing.T) {
	now := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	store := &fakeRateLimitStore{
		count:     2,
		oldest:    now.Add(-30 * time.Second),
		hasOldest: true,
	}

	limiter := NewRateLimiter(store, zaptest.NewLogger(t)).WithClock(func() time.Time { return now })
	router := rateLimitRouter(limiter, RateLimitRule{
		Name:   "login",
		Limit:  5,
		Window: time.Minute,
		Identifier: func(c *gin.Context) (string, bool) {
			return "192.0.2.1", true
		},
	})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if store.recordCalls != 1 {
		t.Fatalf("expected record attempt to be called once, got %d", store.recordCalls)
	}
	if got := rr.Header().Get("X-RateLimit-Remaining"); got != "2" {
		t.Fatalf("expected remaining 2, got %q", got)
	}
}

func TestRateLimiterBlocksWhenLimitReached(t *testing.T) {
	now := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	store := &fakeRateLimitStore{
		count:     5,
		oldest:    now.Add(-10 * time.Second),
		hasOldest: true,
	}

	limiter := NewRateLimiter(store, zaptest.NewLogger(t)).WithClock(func() time.Time { return now })
	router := rateLimitRouter(limiter, RateLimitRule{
		Name:   "login",
		Limit:  5,
		Window: time.Minute,
		Identifier: func(c *gin.Context) (string, bool) {
			return "192.0.2.1", true
		},
	})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rr.Code)
	}
	if store.recordCalls != 0 {
		t.Fatal("a rejected request must not record an attempt")
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Fatal("blocked response must carry Retry-After")
	}
}

func TestRateLimiterFailsOpenOnStoreErrors(t *testing.T) {
	store := &fakeRateLimitStore{countErr: context.DeadlineExceeded}

	limiter := NewRateLimiter(store, zaptest.NewLogger(t))
	router := rateLimitRouter(limiter, RateLimitRule{
		Name:   "login",
		Limit:  1,
		Window: time.Minute,
		Identifier: func(c *gin.Context) (string, bool) {
			return "192.0.2.1", true
		},
	})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("store failure must not block traffic, got %d", rr.Code)
	}
}
