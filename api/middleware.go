package api

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
)

type rateLimiter struct {
	requests map[string]*clientRequests
	mu       sync.Mutex
}

type clientRequests struct {
	count    int
	lastSeen time.Time
}

const (
	maxRequests    = 100             // Maximum requests per window
	windowDuration = time.Minute * 5 // Window duration
)

// RateLimit returns a per-IP rate limiting middleware. Requests presenting
// a valid API key bypass the limit.
func RateLimit(validKey func(string) bool) mux.MiddlewareFunc {
	limiter := &rateLimiter{requests: make(map[string]*clientRequests)}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apiKey := r.Header.Get("Authorization")
			if apiKey != "" && validKey(apiKey) {
				next.ServeHTTP(w, r)
				return
			}

			clientIP := r.RemoteAddr

			limiter.mu.Lock()

			// Clean up old entries
			now := time.Now()
			for ip, req := range limiter.requests {
				if now.Sub(req.lastSeen) > windowDuration {
					delete(limiter.requests, ip)
				}
			}

			client, exists := limiter.requests[clientIP]
			if !exists {
				client = &clientRequests{lastSeen: now}
				limiter.requests[clientIP] = client
			}

			// Reset the window if it has expired
			if now.Sub(client.lastSeen) > windowDuration {
				client.count = 0
				client.lastSeen = now
			}

			if client.count >= maxRequests {
				limiter.mu.Unlock()
				w.Header().Set("X-RateLimit-Limit", strconv.Itoa(maxRequests))
				w.Header().Set("X-RateLimit-Remaining", "0")
				w.Header().Set("X-RateLimit-Reset", client.lastSeen.Add(windowDuration).Format(time.RFC3339))
				http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
				return
			}

			client.count++
			client.lastSeen = now
			remaining := maxRequests - client.count
			reset := client.lastSeen.Add(windowDuration)
			limiter.mu.Unlock()

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(maxRequests))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			w.Header().Set("X-RateLimit-Reset", reset.Format(time.RFC3339))

			next.ServeHTTP(w, r)
		})
	}
}
