package middleware

import (
	"net/http"
	"slices"

	"github.com/rs/cors"
)

// CORSMiddleware allows the given origins ("*" for any). Credentials are only
// allowed for an explicit origin list.
func CORSMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	wildcard := len(allowedOrigins) == 0 || slices.Contains(allowedOrigins, "*")
	if wildcard {
		allowedOrigins = []string{"*"}
	}

	c := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodDelete,
			http.MethodOptions,
			http.MethodHead,
		},
		AllowedHeaders: []string{
			"Content-Type",
			"Authorization",
			"Accept",
			"Origin",
			"X-Requested-With",
			"X-Correlation-Id",
			// OpenTelemetry headers
			"traceparent",
			"tracestate",
			"baggage",
		},
		ExposedHeaders:   []string{"X-Correlation-Id", "X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"},
		AllowCredentials: !wildcard,
	})

	return c.Handler
}
