package middleware

import (
	"net/http"
	"strconv"

	"github.com/vetriapp/vetri-backend/internal/api/response"
	"github.com/vetriapp/vetri-backend/internal/ratelimit"
)

// RateLimitMiddleware throttles authenticated requests per user.
type RateLimitMiddleware struct {
	limiter *ratelimit.Limiter
	rule    ratelimit.Rule
}

// NewRateLimitMiddleware creates a rate limit middleware using the given rule.
func NewRateLimitMiddleware(limiter *ratelimit.Limiter, rule ratelimit.Rule) *RateLimitMiddleware {
	return &RateLimitMiddleware{limiter: limiter, rule: rule}
}

// Limit applies rate limiting keyed by the authenticated user ID. Must run
// after Authenticate.
func (m *RateLimitMiddleware) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := GetUserID(r.Context())
		if !ok {
			response.Unauthorized(w, "unauthorized")
			return
		}

		identifier := strconv.FormatInt(userID, 10)
		allowed, err := m.limiter.Allow(r.Context(), identifier, m.rule)
		if err != nil {
			// Limiter failed open; let the request through.
			next.ServeHTTP(w, r)
			return
		}

		if remaining, err := m.limiter.Remaining(r.Context(), identifier, m.rule); err == nil {
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		}

		if !allowed {
			response.Error(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}
