package auth

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	logger "github.com/sirupsen/logrus"
)

type contextKey string

const CallerKey contextKey = "caller"

// GetCallerFromContext reports whether the request passed token auth and
// under which label.
func GetCallerFromContext(ctx context.Context) (string, bool) {
	caller, ok := ctx.Value(CallerKey).(string)
	return caller, ok
}

// RequireToken guards mutating portal endpoints with a static bearer
// token. An empty configured token disables the check, which is the
// development default.
func RequireToken(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			header := r.Header.Get("Authorization")
			presented := strings.TrimPrefix(header, "Bearer ")
			if presented == header ||
				subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
				logger.WithField("remote", r.RemoteAddr).Warn("rejected request with bad token")
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), CallerKey, "portal")
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
