package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
	"propflow/internal/pkg/errors"
)

const limiterIdleTTL = 10 * time.Minute

type limiterEntry struct {
	limiter    *rate.Limiter
	mu         sync.Mutex
	lastAccess time.Time
}

// RateLimiter keeps one token bucket per key, refilled at perMinute/60 per
// second with a burst of perMinute.
type RateLimiter struct {
	store     sync.Map // map[string]*limiterEntry
	perMinute int
	done      chan struct{}
	stopOnce  sync.Once
}

func NewRateLimiter(perMinute int) *RateLimiter {
	if perMinute <= 0 {
		perMinute = 600
	}
	rl := &RateLimiter{
		perMinute: perMinute,
		done:      make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.done) })
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(limiterIdleTTL)
	defer ticker.Stop()

	for {
		select {
		case <-rl.done:
			return
		case now := <-ticker.C:
			rl.store.Range(func(key, value interface{}) bool {
				e := value.(*limiterEntry)
				e.mu.Lock()
				if now.Sub(e.lastAccess) > limiterIdleTTL {
					rl.store.Delete(key)
				}
				e.mu.Unlock()
				return true
			})
		}
	}
}

func (rl *RateLimiter) Allow(key string) bool {
	now := time.Now()

	val, _ := rl.store.LoadOrStore(key, &limiterEntry{
		limiter:    rate.NewLimiter(rate.Limit(float64(rl.perMinute)/60.0), rl.perMinute),
		lastAccess: now,
	})

	e := val.(*limiterEntry)
	e.mu.Lock()
	e.lastAccess = now
	e.mu.Unlock()

	return e.limiter.AllowN(now, 1)
}

// Handle limits requests per organization, falling back to the remote
// address for unscoped callers.
func (rl *RateLimiter) Handle(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := "ip:" + r.RemoteAddr
		if tenant, ok := TenantFrom(r.Context()); ok && tenant.OrgID != "" {
			key = "org:" + tenant.OrgID
		}

		if !rl.Allow(key) {
			retryAfter := int(time.Minute.Seconds()) / rl.perMinute
			if retryAfter < 1 {
				retryAfter = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			errors.WriteError(w, http.StatusTooManyRequests, errors.ErrCodeRateLimitExceeded, "Rate limit exceeded", nil)
			return
		}

		next(w, r)
	}
}
