// Package middleware provides HTTP middleware for the chatwave API.
package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/observer/chatwave/internal/auth"
)

const minBurst = 5

// RateLimiter keeps one token bucket per user. The same limiter guards HTTP
// requests and inbound WebSocket frames.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[uuid.UUID]*rate.Limiter
	every   rate.Limit
	burst   int
}

// NewRateLimiter allows perMinute actions per user, with a burst of a tenth
// of that (never below minBurst)
func NewRateLimiter(perMinute int) *RateLimiter {
	return &RateLimiter{
		buckets: make(map[uuid.UUID]*rate.Limiter),
		every:   rate.Every(time.Minute / time.Duration(max(perMinute, 1))),
		burst:   max(perMinute/10, minBurst),
	}
}

func (rl *RateLimiter) bucket(userID uuid.UUID) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.buckets[userID]
	if !ok {
		b = rate.NewLimiter(rl.every, rl.burst)
		rl.buckets[userID] = b
	}
	return b
}

// Allow reports whether userID may perform one more action now
func (rl *RateLimiter) Allow(userID uuid.UUID) bool {
	return rl.bucket(userID).Allow()
}

// Len is the number of users currently tracked
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.buckets)
}

// Middleware rejects authenticated callers over their budget with 429.
// Anonymous requests pass through; the auth middleware refuses them later.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if userID, ok := auth.GetUserID(r.Context()); ok && !rl.Allow(userID) {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"code":"rate_limited","error":"rate limit exceeded, please try again later"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Run calls Cleanup every interval until ctx is done
func (rl *RateLimiter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.Cleanup()
		}
	}
}

// Cleanup forgets users whose bucket has refilled; a new bucket for them
// would start in the same state.
func (rl *RateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	for userID, b := range rl.buckets {
		if b.Tokens() >= float64(rl.burst) {
			delete(rl.buckets, userID)
		}
	}
}
