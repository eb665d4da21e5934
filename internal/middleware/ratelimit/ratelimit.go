// Package ratelimit limits how often a client may attempt an action within
// a sliding time window.
package ratelimit

import (
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// Limiter counts attempts per key (usually the client IP). Every attempt is
// recorded, successful or not; once MaxAttempts fall inside Window further
// attempts are refused until the oldest one ages out.
type Limiter struct {
	mu           sync.Mutex
	attempts     map[string][]time.Time
	stopCleanup  chan struct{}
	shutdownOnce sync.Once
	now          func() time.Time

	maxAttempts     int
	window          time.Duration
	cleanupInterval time.Duration

	limited int64
}

type Config struct {
	MaxAttempts     int
	Window          time.Duration
	CleanupInterval time.Duration
}

// DefaultConfig allows five login attempts per five minutes.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:     5,
		Window:          5 * time.Minute,
		CleanupInterval: 5 * time.Minute,
	}
}

// NewLimiter creates a limiter and starts its cleanup goroutine. Call Stop
// when done.
func NewLimiter(config Config) *Limiter {
	def := DefaultConfig()
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = def.MaxAttempts
	}
	if config.Window <= 0 {
		config.Window = def.Window
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = def.CleanupInterval
	}

	rl := &Limiter{
		attempts:        make(map[string][]time.Time),
		stopCleanup:     make(chan struct{}),
		now:             time.Now,
		maxAttempts:     config.MaxAttempts,
		window:          config.Window,
		cleanupInterval: config.CleanupInterval,
	}
	go rl.startCleanup()
	return rl
}

// Allow records an attempt for key and reports whether it is within the limit.
// Refused attempts are not recorded.
func (rl *Limiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	recent := rl.prune(key, now)
	if len(recent) >= rl.maxAttempts {
		atomic.AddInt64(&rl.limited, 1)
		return false
	}
	rl.attempts[key] = append(recent, now)
	return true
}

// RetryAfter is how long key has to wait until its next attempt is allowed.
func (rl *Limiter) RetryAfter(key string) time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	recent := rl.prune(key, now)
	if len(recent) < rl.maxAttempts {
		return 0
	}
	return recent[0].Add(rl.window).Sub(now)
}

// Reset forgets all attempts for key.
func (rl *Limiter) Reset(key string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.attempts, key)
}

// prune drops attempts older than the window. Keys without recent attempts
// are removed from the map. Caller holds mu.
func (rl *Limiter) prune(key string, now time.Time) []time.Time {
	list := rl.attempts[key]
	i := 0
	for i < len(list) && now.Sub(list[i]) >= rl.window {
		i++
	}
	list = list[i:]
	if len(list) == 0 {
		delete(rl.attempts, key)
		return nil
	}
	rl.attempts[key] = list
	return list
}

func (rl *Limiter) startCleanup() {
	ticker := time.NewTicker(rl.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanupStaleEntries()
		case <-rl.stopCleanup:
			return
		}
	}
}

func (rl *Limiter) cleanupStaleEntries() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for key := range rl.attempts {
		rl.prune(key, now)
	}
}

// ActiveClients returns the number of currently tracked keys
func (rl *Limiter) ActiveClients() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.attempts)
}

// Stop shuts down the cleanup goroutine. It is safe to call more than once.
func (rl *Limiter) Stop() {
	rl.shutdownOnce.Do(func() {
		close(rl.stopCleanup)
	})
}

type Metrics struct {
	LimitedAttempts int64
	ClientCount     int64
}

func (rl *Limiter) GetMetrics() Metrics {
	return Metrics{
		LimitedAttempts: atomic.LoadInt64(&rl.limited),
		ClientCount:     int64(rl.ActiveClients()),
	}
}

// Middleware limits requests matched by match. Other requests pass through
// untouched. onLimit writes the refusal; nil uses a plain 429.
func (rl *Limiter) Middleware(match func(*http.Request) bool, extractIP func(*http.Request) string, onLimit func(http.ResponseWriter, *http.Request)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if match != nil && !match(r) {
				next.ServeHTTP(w, r)
				return
			}
			key := extractIP(r)
			if !rl.Allow(key) {
				if wait := rl.RetryAfter(key); wait > 0 {
					w.Header().Set("Retry-After", strconv.Itoa(int(wait.Seconds())+1))
				}
				if onLimit != nil {
					onLimit(w, r)
				} else {
					http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
				}
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
