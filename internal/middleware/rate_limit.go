package middleware

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// RateLimiter implements a sliding-window in-memory rate limiter
type RateLimiter struct {
	mu       sync.RWMutex
	requests map[string][]time.Time
	limit    int           // Max requests
	window   time.Duration // Time window
	stop     chan struct{}
	stopOnce sync.Once
}

// NewRateLimiter creates a new rate limiter. Call Stop to end its cleanup goroutine.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
		stop:     make(chan struct{}),
	}

	go rl.cleanup()

	return rl
}

// Allow checks if a request is allowed for the given key
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	valid := rl.pruneLocked(key, now)

	if len(valid) >= rl.limit {
		rl.requests[key] = valid
		return false
	}

	rl.requests[key] = append(valid, now)
	return true
}

// pruneLocked drops timestamps outside the window for key. Caller must hold rl.mu.
func (rl *RateLimiter) pruneLocked(key string, now time.Time) []time.Time {
	windowStart := now.Add(-rl.window)
	var valid []time.Time
	for _, t := range rl.requests[key] {
		if t.After(windowStart) {
			valid = append(valid, t)
		}
	}
	return valid
}

// Remaining returns the number of remaining requests for a key
func (rl *RateLimiter) Remaining(key string) int {
	rl.mu.RLock()
	defer rl.mu.RUnlock()

	windowStart := time.Now().Add(-rl.window)
	count := 0
	for _, t := range rl.requests[key] {
		if t.After(windowStart) {
			count++
		}
	}

	if remaining := rl.limit - count; remaining > 0 {
		return remaining
	}
	return 0
}

// Reset returns the time when the oldest request for key leaves the window
func (rl *RateLimiter) Reset(key string) time.Time {
	rl.mu.RLock()
	defer rl.mu.RUnlock()

	requests := rl.requests[key]
	if len(requests) == 0 {
		return time.Now()
	}

	oldest := requests[0]
	for _, t := range requests {
		if t.Before(oldest) {
			oldest = t
		}
	}
	return oldest.Add(rl.window)
}

// Stop ends the cleanup goroutine.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

// cleanup periodically removes old entries
func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(rl.window)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
		}

		rl.mu.Lock()
		now := time.Now()
		for key := range rl.requests {
			if valid := rl.pruneLocked(key, now); len(valid) == 0 {
				delete(rl.requests, key)
			} else {
				rl.requests[key] = valid
			}
		}
		rl.mu.Unlock()
	}
}

// ConnectRateLimiter limits how often one client address may open a stream.
type ConnectRateLimiter struct {
	limiter *RateLimiter
	limit   int
}

// NewConnectRateLimiter allows perMinute stream connects per client IP.
// A non-positive perMinute disables the limit.
func NewConnectRateLimiter(perMinute int) *ConnectRateLimiter {
	if perMinute <= 0 {
		return &ConnectRateLimiter{}
	}
	return &ConnectRateLimiter{
		limiter: NewRateLimiter(perMinute, time.Minute),
		limit:   perMinute,
	}
}

// Limit is the middleware. It relies on chi's RealIP having normalized RemoteAddr.
func (rl *ConnectRateLimiter) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rl.limiter == nil {
			next.ServeHTTP(w, r)
			return
		}

		key := ClientIP(r)
		if !rl.limiter.Allow(key) {
			retryAfter := int64(time.Until(rl.limiter.Reset(key)).Seconds()) + 1
			if retryAfter < 1 {
				retryAfter = 1
			}
			w.Header().Set("Retry-After", strconv.FormatInt(retryAfter, 10))
			WriteErrorWithDetails(w, http.StatusTooManyRequests, "TOO_MANY_REQUESTS",
				"Too many stream connections. Please try again later.",
				map[string]any{"retry_after": retryAfter})
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(rl.limiter.Remaining(key)))
		next.ServeHTTP(w, r)
	})
}

// Stop releases the limiter's background goroutine.
func (rl *ConnectRateLimiter) Stop() {
	if rl.limiter != nil {
		rl.limiter.Stop()
	}
}

// ClientIP returns the host part of the request's remote address.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
