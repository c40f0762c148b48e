package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// IPRateLimiter keeps one token bucket per client address
type IPRateLimiter struct {
	visitors map[string]*visitor
	mu       sync.Mutex
	rate     rate.Limit
	burst    int
	ttl      time.Duration
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewIPRateLimiter creates a limiter allowing rps requests per second per
// address with the given burst. Entries idle for ttl are dropped by Cleanup.
func NewIPRateLimiter(rps float64, burst int, ttl time.Duration) *IPRateLimiter {
	return &IPRateLimiter{
		visitors: make(map[string]*visitor),
		rate:     rate.Limit(rps),
		burst:    burst,
		ttl:      ttl,
	}
}

// Allow reports whether ip may proceed now
func (rl *IPRateLimiter) Allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, exists := rl.visitors[ip]
	if !exists {
		v = &visitor{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.visitors[ip] = v
	}
	v.lastSeen = time.Now()
	return v.limiter.Allow()
}

// Cleanup drops visitors not seen since before now minus ttl
func (rl *IPRateLimiter) Cleanup(now time.Time) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	removed := 0
	for ip, v := range rl.visitors {
		if now.Sub(v.lastSeen) > rl.ttl {
			delete(rl.visitors, ip)
			removed++
		}
	}
	return removed
}

// Run calls Cleanup every minute until ctx is done
func (rl *IPRateLimiter) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			rl.Cleanup(now)
		}
	}
}

// Middleware throttles by client IP. Plain text routes get the "fail" literal.
func (rl *IPRateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.Allow(c.ClientIP()) {
			abortRateLimited(c, 0)
			return
		}
		c.Next()
	}
}

// OrderLimiter is a fixed-window counter per user kept in Redis so every
// gateway replica shares it
type OrderLimiter struct {
	client redis.Cmdable
	limit  int
	window time.Duration
	now    func() time.Time
	logger *slog.Logger
}

// NewOrderLimiter creates a limiter admitting limit order creations per window
func NewOrderLimiter(logger *slog.Logger, client redis.Cmdable, limit int, window time.Duration) *OrderLimiter {
	return &OrderLimiter{
		client: client,
		limit:  limit,
		window: window,
		now:    time.Now,
		logger: logger,
	}
}

func (l *OrderLimiter) key(userID uuid.UUID, windowStart time.Time) string {
	return fmt.Sprintf("ratelimit:orders:%s:%d", userID, windowStart.Unix())
}

// Allow counts one attempt for userID and reports whether it fits the window.
// retryAfter is the time left in the current window.
func (l *OrderLimiter) Allow(ctx context.Context, userID uuid.UUID) (allowed bool, retryAfter time.Duration, err error) {
	now := l.now()
	windowStart := now.Truncate(l.window)
	key := l.key(userID, windowStart)

	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return false, 0, fmt.Errorf("failed to increment rate limit counter: %w", err)
	}
	if count == 1 {
		if err := l.client.Expire(ctx, key, l.window).Err(); err != nil {
			return false, 0, fmt.Errorf("failed to set rate limit expiry: %w", err)
		}
	}

	return count <= int64(l.limit), windowStart.Add(l.window).Sub(now), nil
}

// Middleware throttles authenticated users. A Redis outage lets requests through.
func (l *OrderLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := GetUserID(c)
		if !ok {
			c.Next()
			return
		}

		allowed, retryAfter, err := l.Allow(c.Request.Context(), userID)
		if err != nil {
			l.logger.Warn("Order rate limiter unavailable", "user_id", userID.String(), "error", err)
			c.Next()
			return
		}
		if !allowed {
			abortRateLimited(c, retryAfter)
			return
		}
		c.Next()
	}
}

func abortRateLimited(c *gin.Context, retryAfter time.Duration) {
	if retryAfter > 0 {
		c.Header("Retry-After", strconv.Itoa(int(retryAfter.Seconds())+1))
	}
	if c.GetBool(PlainTextKey) {
		c.Abort()
		c.String(http.StatusTooManyRequests, "fail")
		return
	}
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
		"success": false,
		"error":   "RateLimited",
	})
}
