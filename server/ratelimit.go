package server

import (
	"net"
	"net/http"
	"sync"

	"golang.org/x/time/rate"
)

const maxLimiters = 10000

// rateLimiter keeps one token bucket per remote host
type rateLimiter struct {
	locker   *sync.Mutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
}

func newRateLimiter(perSecond float64, burst int) *rateLimiter {
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	if burst <= 0 {
		burst = 1
	}
	return &rateLimiter{
		locker:   new(sync.Mutex),
		limiters: make(map[string]*rate.Limiter),
		rate:     limit,
		burst:    burst,
	}
}

func (rl *rateLimiter) get(key string) *rate.Limiter {
	rl.locker.Lock()
	defer rl.locker.Unlock()
	limiter, ok := rl.limiters[key]
	if !ok {
		// TODO: evict idle limiters by last use instead of dropping all of them
		if len(rl.limiters) >= maxLimiters {
			rl.limiters = make(map[string]*rate.Limiter)
		}
		limiter = rate.NewLimiter(rl.rate, rl.burst)
		rl.limiters[key] = limiter
	}
	return limiter
}

func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			key = r.RemoteAddr
		}
		if !rl.get(key).Allow() {
			writeJSON(w, http.StatusTooManyRequests, errResponse{Error: "rate limit exceeded", Code: "RateLimited"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
