package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/civiclabs/ballotbox/internal/http/response"
	"github.com/civiclabs/ballotbox/pkg/auth"
	"github.com/civiclabs/ballotbox/pkg/logger"
)

type claimsKeyType struct{}

var claimsKey claimsKeyType

// ClaimsFrom returns the verified claims placed by RequireRole, or nil.
func ClaimsFrom(r *http.Request) *auth.Claims {
	claims, _ := r.Context().Value(claimsKey).(*auth.Claims)
	return claims
}

// RequireRole authenticates the bearer token and enforces the role.
// An empty role accepts any authenticated user.
func RequireRole(role, secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				response.Unauthorized(w, "Missing or invalid authorization header")
				return
			}

			token := strings.TrimPrefix(authHeader, "Bearer ")
			claims, err := auth.Parse(token, secret)
			if err != nil {
				response.Unauthorized(w, "Invalid token")
				return
			}

			if role != "" && claims.Role != role {
				response.Forbidden(w, "Insufficient permissions")
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			ctx = context.WithValue(ctx, logger.UserIDKey, claims.Sub)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
