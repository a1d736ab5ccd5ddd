package httpadapter

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

// rateLimitMiddleware refuses requests above the configured sustained rate
// with 429 and a Retry-After hint. onThrottle may be nil.
func rateLimitMiddleware(next http.Handler, rps float64, burst int, onThrottle func()) http.Handler {
	if burst < 1 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(rps), burst)
	retryAfter := strconv.Itoa(int(math.Max(1, math.Ceil(1/rps))))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			if onThrottle != nil {
				onThrottle()
			}
			w.Header().Set("Retry-After", retryAfter)
			writeError(w, http.StatusTooManyRequests, "rate_limited",
				"request rate limit exceeded, retry later")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// backpressureMiddleware caps in-flight requests. A request that cannot
// acquire a slot within wait is refused with 503 instead of queueing
// unboundedly behind slow model calls.
func backpressureMiddleware(next http.Handler, limit int, wait time.Duration, onThrottle func()) http.Handler {
	if limit < 1 {
		limit = 1
	}
	slots := make(chan struct{}, limit)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		timer := time.NewTimer(wait)
		defer timer.Stop()

		select {
		case slots <- struct{}{}:
			defer func() { <-slots }()
			next.ServeHTTP(w, r)
		case <-timer.C:
			if onThrottle != nil {
				onThrottle()
			}
			writeError(w, http.StatusServiceUnavailable, "overloaded",
				"server is at capacity, retry later")
		case <-r.Context().Done():
			writeError(w, http.StatusServiceUnavailable, "overloaded",
				"request cancelled while waiting for capacity")
		}
	})
}
