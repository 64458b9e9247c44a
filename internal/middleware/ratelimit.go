package middleware

import (
	"strconv"
	"sync"
	"time"

	"maternity-companion-server/internal/utils"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// idleBucketTTL is the minimum time an untouched bucket is kept. The actual
// TTL is never shorter than a full refill, so a dropped bucket loses no state.
const idleBucketTTL = 10 * time.Minute

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// UserRateLimiter hands out one token bucket per authenticated user.
type UserRateLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*bucket
	limit     rate.Limit
	burst     int
	idleTTL   time.Duration
	lastSweep time.Time
	now       func() time.Time
}

// NewUserRateLimiter allows perMinute requests per user with the given burst.
// perMinute <= 0 disables limiting.
func NewUserRateLimiter(perMinute, burst int) *UserRateLimiter {
	if burst <= 0 {
		burst = 1
	}
	limit := rate.Inf
	ttl := idleBucketTTL
	if perMinute > 0 {
		limit = rate.Limit(float64(perMinute) / 60.0)
		if refill := time.Duration(burst) * time.Minute / time.Duration(perMinute); refill > ttl {
			ttl = refill
		}
	}
	return &UserRateLimiter{
		limiters:  make(map[string]*bucket),
		limit:     limit,
		burst:     burst,
		idleTTL:   ttl,
		lastSweep: time.Now(),
		now:       time.Now,
	}
}

func (l *UserRateLimiter) get(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) >= l.idleTTL {
		l.sweep(now)
	}

	b, ok := l.limiters[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[key] = b
	}
	b.lastSeen = now
	return b.limiter
}

// sweep drops buckets idle for at least idleTTL. Callers hold mu.
func (l *UserRateLimiter) sweep(now time.Time) {
	for key, b := range l.limiters {
		if now.Sub(b.lastSeen) >= l.idleTTL {
			delete(l.limiters, key)
		}
	}
	l.lastSweep = now
}

// Len reports how many buckets are tracked.
func (l *UserRateLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}

// Middleware rejects requests over the user's budget with 429. It must run
// after AuthMiddleware; unauthenticated requests are keyed by client IP.
func (l *UserRateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key, ok := GetUserIDFromContext(c)
		if !ok {
			key = "ip:" + c.ClientIP()
		}

		r := l.get(key).Reserve()
		if delay := r.Delay(); delay > 0 {
			r.Cancel()
			c.Header("Retry-After", strconv.Itoa(int(delay/time.Second)+1))
			utils.TooManyRequests(c, "Too many requests, please slow down")
			c.Abort()
			return
		}
		c.Next()
	}
}
