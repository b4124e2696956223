package middleware

import (
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/erickerk/elitetrack/internal/auth"
)

// RateLimit returns middleware that locks out client IPs producing repeated
// failure responses (401 unless failureCodes are given). It sits in front of
// the per-identifier limiter so that one address cannot spread guesses across
// many accounts or invite tokens.
// Returns 429 Too Many Requests with Retry-After header while locked.
func RateLimit(rl *auth.RateLimiter, failureCodes ...int) func(http.Handler) http.Handler {
	if len(failureCodes) == 0 {
		failureCodes = []int{http.StatusUnauthorized}
	}
	counted := make(map[int]bool, len(failureCodes))
	for _, code := range failureCodes {
		counted[code] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := auth.AddressKey(GetClientIP(r))

			status, err := rl.IsLimited(r.Context(), key)
			if err != nil {
				log.Printf("IP rate limit check failed: %v", err)
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{
					"error": "Service temporarily unavailable",
				})
				return
			}
			if status.Limited {
				log.Printf("Rate limit exceeded for %s on %s %s", key, r.Method, r.URL.Path)
				w.Header().Set("Retry-After", strconv.Itoa(RetryAfterSeconds(status.RemainingMinutes())))
				writeJSON(w, http.StatusTooManyRequests, map[string]string{
					"error": "Too many requests, please try again later",
				})
				return
			}

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			if counted[rec.status] {
				if _, err := rl.RecordFailure(r.Context(), key); err != nil {
					log.Printf("Failed to record IP failure: %v", err)
				}
			}
		})
	}
}

// RetryAfterSeconds converts whole lockout minutes to a Retry-After value
func RetryAfterSeconds(minutes int) int {
	if minutes < 1 {
		minutes = 1
	}
	return minutes * 60
}

type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (r *statusRecorder) WriteHeader(code int) {
	if !r.wroteHeader {
		r.status = code
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	r.wroteHeader = true
	return r.ResponseWriter.Write(b)
}

// GetClientIP extracts the client IP address from the request.
// Checks X-Forwarded-For (first IP), X-Real-IP, then RemoteAddr.
func GetClientIP(r *http.Request) string {
	// X-Forwarded-For: client, proxy1, proxy2
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ip := strings.TrimSpace(strings.SplitN(xff, ",", 2)[0])
		if ip != "" {
			return ip
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		// RemoteAddr might not have a port
		return r.RemoteAddr
	}
	return host
}
