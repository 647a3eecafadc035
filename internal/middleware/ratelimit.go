package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/prepstack/testcenter-backend/internal/response"
)

// RateLimiter is a per-IP token bucket. Answer saves are the chatty path, so
// the login and start endpoints get a much tighter budget than the rest.
type RateLimiter struct {
	mu       sync.Mutex
	buckets  map[string]*bucket
	capacity int
	window   time.Duration
}

type bucket struct {
	remaining int
	refilled  time.Time
}

// NewRateLimiter creates a RateLimiter allowing capacity requests per window.
func NewRateLimiter(capacity int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		buckets:  make(map[string]*bucket),
		capacity: capacity,
		window:   window,
	}

	go func() {
		for range time.Tick(time.Minute) {
			rl.evictIdle()
		}
	}()

	return rl
}

// Middleware returns a Gin middleware that rate-limits requests by client IP.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()

		rl.mu.Lock()
		b, ok := rl.buckets[ip]
		if !ok {
			b = &bucket{remaining: rl.capacity, refilled: time.Now()}
			rl.buckets[ip] = b
		}

		if windows := int(time.Since(b.refilled) / rl.window); windows > 0 {
			b.remaining += windows * rl.capacity
			if b.remaining > rl.capacity {
				b.remaining = rl.capacity
			}
			b.refilled = time.Now()
		}

		if b.remaining <= 0 {
			rl.mu.Unlock()
			response.AbortFail(c, http.StatusTooManyRequests, response.ErrRateLimitExceeded)
			return
		}

		b.remaining--
		rl.mu.Unlock()
		c.Next()
	}
}

func (rl *RateLimiter) evictIdle() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for ip, b := range rl.buckets {
		if time.Since(b.refilled) > 3*time.Minute {
			delete(rl.buckets, ip)
		}
	}
}
