package httpadapter

import (
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

// TrafficConfig shapes inbound load. RateLimitRPS of zero disables the
// limiter; MaxInFlight of zero disables the backpressure gate.
type TrafficConfig struct {
	RateLimitRPS     float64
	RateLimitBurst   int
	MaxInFlight      int
	BackpressureWait time.Duration
}

func (c TrafficConfig) normalize() TrafficConfig {
	out := c
	if out.RateLimitRPS > 0 && out.RateLimitBurst <= 0 {
		out.RateLimitBurst = int(out.RateLimitRPS)
		if out.RateLimitBurst < 1 {
			out.RateLimitBurst = 1
		}
	}
	if out.MaxInFlight > 0 && out.BackpressureWait <= 0 {
		out.BackpressureWait = 100 * time.Millisecond
	}
	return out
}

func rateLimitMiddleware(next http.Handler, cfg TrafficConfig) http.Handler {
	if cfg.RateLimitRPS <= 0 {
		return next
	}

	limiter := rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			retryAfter := int(1/cfg.RateLimitRPS) + 1
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// backpressureMiddleware bounds concurrent requests. A request waits at
// most wait for a slot, then the service sheds it with 503 instead of
// queueing unboundedly.
func backpressureMiddleware(next http.Handler, maxInFlight int, wait time.Duration) http.Handler {
	if maxInFlight <= 0 {
		return next
	}

	slots := make(chan struct{}, maxInFlight)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		timer := time.NewTimer(wait)
		defer timer.Stop()

		select {
		case slots <- struct{}{}:
			defer func() { <-slots }()
			next.ServeHTTP(w, r)
		case <-timer.C:
			writeError(w, http.StatusServiceUnavailable, "server is overloaded, try again later")
		case <-r.Context().Done():
			writeError(w, http.StatusServiceUnavailable, "request cancelled while waiting for capacity")
		}
	})
}
