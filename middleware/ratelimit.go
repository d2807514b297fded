package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/Lupao-eth/triptask-backend/observability"

	"github.com/gin-gonic/gin"
)

// Limiter is a fixed-window counter keyed by client IP, one instance
// per route class. Counters are process-local: across replicas each
// instance enforces its own budget, which is a documented limitation of
// this deployment shape, not something to correct here.
type Limiter struct {
	class   string
	limit   int
	window  time.Duration
	metrics *observability.Metrics

	mu   sync.Mutex
	hits map[string]*bucket
}

type bucket struct {
	count   int
	resetAt time.Time
}

func NewLimiter(class string, limit int, window time.Duration, metrics *observability.Metrics) *Limiter {
	return &Limiter{
		class:   class,
		limit:   limit,
		window:  window,
		metrics: metrics,
		hits:    make(map[string]*bucket),
	}
}

// Allow counts a hit for key and reports whether it is inside the
// current window's budget.
func (l *Limiter) Allow(key string) bool {
	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.hits[key]
	if !ok || now.After(b.resetAt) {
		l.hits[key] = &bucket{count: 1, resetAt: now.Add(l.window)}
		l.maybeSweep(now)
		return true
	}
	b.count++
	return b.count <= l.limit
}

// maybeSweep drops expired buckets once the map grows. Called with the
// lock held.
func (l *Limiter) maybeSweep(now time.Time) {
	if len(l.hits) < 4096 {
		return
	}
	for k, b := range l.hits {
		if now.After(b.resetAt) {
			delete(l.hits, k)
		}
	}
}

// Handler rejects over-budget requests before they reach anything
// downstream.
func (l *Limiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.Allow(c.ClientIP()) {
			if l.metrics != nil {
				l.metrics.RateLimitRejected.WithLabelValues(l.class).Inc()
			}
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "⛔ Too many requests. Please try again later."})
			c.Abort()
			return
		}
		c.Next()
	}
}
