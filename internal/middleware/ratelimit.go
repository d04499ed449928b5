package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/vigil-exam/vigil/internal/response"
)

// RateLimiter is a per-IP token bucket. It guards the login endpoints
// against credential stuffing; attempt traffic is never routed through it
// because a taker mid-exam must not be throttled into a false outage.
type RateLimiter struct {
	mu       sync.Mutex
	buckets  map[string]*bucket
	rate     int
	interval time.Duration
}

type bucket struct {
	tokens  int
	touched time.Time
}

// NewRateLimiter allows rate requests per interval for each client IP.
func NewRateLimiter(rate int, interval time.Duration) *RateLimiter {
	rl := &RateLimiter{
		buckets:  make(map[string]*bucket),
		rate:     rate,
		interval: interval,
	}

	go func() {
		for range time.Tick(time.Minute) {
			rl.evictStale()
		}
	}()

	return rl
}

// Middleware rejects over-limit requests with 429 and the standard error
// envelope.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.allow(c.ClientIP()) {
			response.AbortFail(c, http.StatusTooManyRequests, response.ErrRateLimitExceeded)
			return
		}
		c.Next()
	}
}

func (rl *RateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.buckets[ip]
	if !ok {
		b = &bucket{tokens: rl.rate, touched: time.Now()}
		rl.buckets[ip] = b
	}

	if refill := int(time.Since(b.touched)/rl.interval) * rl.rate; refill > 0 {
		b.tokens += refill
		if b.tokens > rl.rate {
			b.tokens = rl.rate
		}
		b.touched = time.Now()
	}

	if b.tokens <= 0 {
		return false
	}
	b.tokens--
	return true
}

func (rl *RateLimiter) evictStale() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for ip, b := range rl.buckets {
		if time.Since(b.touched) > 3*time.Minute {
			delete(rl.buckets, ip)
		}
	}
}
