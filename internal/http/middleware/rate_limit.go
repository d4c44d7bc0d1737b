package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/civiclabs/ballotbox/internal/http/response"
	"github.com/civiclabs/ballotbox/internal/repo/redisrepo"
)

// RateLimitByIP caps requests per client address for one route group.
func RateLimitByIP(repo redisrepo.RateLimitRepository, prefix string, requests int, window time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := prefix + ":" + ClientIP(r).String()

			allowed, err := repo.CheckRateLimit(r.Context(), key, requests, window)
			if err == nil && !allowed {
				response.RateLimit(w, "Too many requests, try again later")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RateLimitByUser caps requests per authenticated user. It must run after
// RequireRole so the claims are present; unauthenticated requests pass
// through untouched.
func RateLimitByUser(repo redisrepo.RateLimitRepository, prefix string, requests int, window time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := ClaimsFrom(r)
			if claims != nil {
				key := prefix + ":" + strconv.FormatInt(claims.Sub, 10)
				allowed, err := repo.CheckRateLimit(r.Context(), key, requests, window)
				if err == nil && !allowed {
					response.RateLimit(w, "Too many requests, try again later")
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP extracts the originating address, preferring proxy headers.
func ClientIP(r *http.Request) net.IP {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first := strings.TrimSpace(strings.Split(fwd, ",")[0])
		if ip := net.ParseIP(first); ip != nil {
			return ip
		}
	}
	if real := r.Header.Get("X-Real-IP"); real != "" {
		if ip := net.ParseIP(real); ip != nil {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return net.ParseIP(host)
}
