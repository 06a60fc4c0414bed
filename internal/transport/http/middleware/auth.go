package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/IgorGrieder/link-redirector/internal/constants"
	"github.com/IgorGrieder/link-redirector/internal/infrastructure/logger"
	"github.com/IgorGrieder/link-redirector/pkg/httputils"
	"go.uber.org/zap"
)

const AuthorizationHeader = "Authorization"

var (
	ErrMissingCredential  = errors.New("missing credential")
	ErrInvalidCredential  = errors.New("invalid credential")
	ErrGuardNotConfigured = errors.New("no credential configured")
)

// Guard checks a presented credential against the one shared secret.
type Guard struct {
	digest     [sha256.Size]byte
	configured bool
}

// NewGuard builds a guard for secret. An empty secret yields a guard that
// denies every request.
func NewGuard(secret string) *Guard {
	if secret == "" {
		return &Guard{}
	}
	return &Guard{digest: sha256.Sum256([]byte(secret)), configured: true}
}

// Authorize compares fixed-size digests so neither the content nor the length
// of the secret leaks through timing.
func (g *Guard) Authorize(credential string) error {
	if !g.configured {
		return ErrGuardNotConfigured
	}
	if credential == "" {
		return ErrMissingCredential
	}
	presented := sha256.Sum256([]byte(credential))
	if subtle.ConstantTimeCompare(presented[:], g.digest[:]) != 1 {
		return ErrInvalidCredential
	}
	return nil
}

// credentialFrom reads the Authorization header, accepting a raw secret or a
// Bearer token.
func credentialFrom(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get(AuthorizationHeader))
	if len(raw) > 7 && strings.EqualFold(raw[:7], "bearer ") {
		return strings.TrimSpace(raw[7:])
	}
	return raw
}

// RequireAuth rejects requests the guard does not authorize.
func RequireAuth(g *Guard) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch err := g.Authorize(credentialFrom(r)); {
			case err == nil:
				next.ServeHTTP(w, r)
			case errors.Is(err, ErrGuardNotConfigured):
				logger.Error("mutation rejected: AUTH_TOKEN is not configured", zap.String("path", r.URL.Path))
				httputils.WriteAPIError(w, r, constants.ErrAuthNotConfigured)
			default:
				httputils.WriteAPIError(w, r, constants.ErrUnauthorized)
			}
		})
	}
}
