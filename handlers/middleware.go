package handlers

import (
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/shelfmark/shelfmark/lib/validation"
	"golang.org/x/time/rate"
)

// RateLimiter hands out a token bucket per client address. Used on the
// search-as-you-type endpoint, where every keystroke is a request.
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientLimiter
	rate    rate.Limit
	burst   int
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	return &RateLimiter{
		clients: make(map[string]*clientLimiter),
		rate:    rate.Limit(perSecond),
		burst:   burst,
	}
}

func (rl *RateLimiter) allow(addr string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	// Prune buckets idle for a while so the map stays bounded.
	if len(rl.clients) > 1024 {
		cutoff := time.Now().Add(-10 * time.Minute)
		for key, c := range rl.clients {
			if c.lastSeen.Before(cutoff) {
				delete(rl.clients, key)
			}
		}
	}

	c, ok := rl.clients[addr]
	if !ok {
		c = &clientLimiter{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.clients[addr] = c
	}
	c.lastSeen = time.Now()
	return c.limiter.Allow()
}

// Middleware rejects clients that exceed their budget with 429.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		addr := r.RemoteAddr
		if host, _, err := net.SplitHostPort(addr); err == nil {
			addr = host
		}
		if !rl.allow(addr) {
			validation.WriteError(w, errors.New("too many requests, slow down"), http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}
