package middleware

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/IgorGrieder/link-redirector/internal/constants"
	"github.com/IgorGrieder/link-redirector/internal/infrastructure/logger"
	"github.com/IgorGrieder/link-redirector/pkg/httputils"
	"go.uber.org/zap"
)

const limiterTimeout = 200 * time.Millisecond

// WindowCounter counts hits for a key within the current fixed window.
type WindowCounter interface {
	Incr(ctx context.Context, key string) (int64, error)
}

// RateLimitMiddleware caps requests per client IP per minute. When the
// counter is unreachable requests pass through.
func RateLimitMiddleware(counter WindowCounter, limitPerMinute int) func(http.Handler) http.Handler {
	if limitPerMinute <= 0 {
		limitPerMinute = 60
	}
	limit := int64(limitPerMinute)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), limiterTimeout)
			count, err := counter.Incr(ctx, rateLimitKey(r))
			cancel()

			if err != nil {
				logger.Warn("rate limiter unavailable", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			remaining := max(limit-count, 0)
			w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(limit, 10))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
			if count > limit {
				w.Header().Set("Retry-After", "60")
				httputils.WriteAPIError(w, r, constants.ErrRateLimited)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func rateLimitKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return "ip:" + host
	}
	return "ip:unknown"
}
