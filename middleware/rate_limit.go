package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// requestWindow tracks requests from one client IP within the current window
type requestWindow struct {
	Count   int
	FirstAt time.Time
}

// RateLimiter caps per-IP request rates on endpoints that fan out to
// upstream providers, so one client cannot burn the provider quota the
// whole service depends on.
type RateLimiter struct {
	mu       sync.Mutex
	windows  map[string]*requestWindow
	maxHits  int
	window   time.Duration
	stopOnce sync.Once
	stop     chan struct{}
}

// NewRateLimiter creates a rate limiter allowing maxHits requests per
// window per client IP. A background goroutine evicts expired windows.
func NewRateLimiter(maxHits int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		windows: make(map[string]*requestWindow),
		maxHits: maxHits,
		window:  window,
		stop:    make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

// Stop terminates the cleanup goroutine.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stop:
			return
		}
	}
}

func (rl *RateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	for ip, w := range rl.windows {
		if now.Sub(w.FirstAt) > rl.window {
			delete(rl.windows, ip)
		}
	}
}

// Allow records one request for the IP and reports whether it fits the
// window, along with the wait time when it does not.
func (rl *RateLimiter) Allow(ip string) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	w, exists := rl.windows[ip]

	if !exists || now.Sub(w.FirstAt) > rl.window {
		rl.windows[ip] = &requestWindow{Count: 1, FirstAt: now}
		return true, 0
	}

	if w.Count >= rl.maxHits {
		return false, rl.window - now.Sub(w.FirstAt)
	}

	w.Count++
	return true, 0
}

// Middleware rejects over-limit requests with 429 and a Retry-After hint.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, wait := rl.Allow(c.ClientIP())
		if !ok {
			retryAfter := int(wait.Seconds()) + 1
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":      "rate limit exceeded",
				"retryAfter": retryAfter,
			})
			return
		}
		c.Next()
	}
}
