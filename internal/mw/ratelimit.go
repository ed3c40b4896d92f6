package mw

import (
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// ClientRateLimiter stores a rate limiter for each client key.
type ClientRateLimiter struct {
	clients map[string]*rate.Limiter
	mu      *sync.RWMutex
	r       rate.Limit
	b       int
}

// NewClientRateLimiter creates a new ClientRateLimiter.
func NewClientRateLimiter(r rate.Limit, b int) *ClientRateLimiter {
	return &ClientRateLimiter{
		clients: make(map[string]*rate.Limiter),
		mu:      &sync.RWMutex{},
		r:       r,
		b:       b,
	}
}

// addClient creates a new rate limiter for a client key.
func (l *ClientRateLimiter) addClient(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	// Another request may have raced us here.
	if limiter, exists := l.clients[key]; exists {
		return limiter
	}
	limiter := rate.NewLimiter(l.r, l.b)
	l.clients[key] = limiter
	return limiter
}

// GetLimiter returns the rate limiter for a client key.
func (l *ClientRateLimiter) GetLimiter(key string) *rate.Limiter {
	l.mu.RLock()
	limiter, exists := l.clients[key]
	l.mu.RUnlock()

	if !exists {
		return l.addClient(key)
	}
	return limiter
}

// ClientKey identifies the caller by the configured header, falling back to the client IP.
func ClientKey(c *gin.Context, header string) string {
	if header != "" {
		if v := strings.TrimSpace(c.GetHeader(header)); v != "" {
			return v
		}
	}
	return c.ClientIP()
}

// RateLimiter is a middleware for per-client rate limiting.
func RateLimiter(r rate.Limit, b int, header string) gin.HandlerFunc {
	limiter := NewClientRateLimiter(r, b)
	return func(c *gin.Context) {
		if !limiter.GetLimiter(ClientKey(c, header)).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}
