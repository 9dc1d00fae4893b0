package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/calluna/rewardbox/internal/auth"
)

// userIDHeader is set by the upstream gateway after it authenticates the
// session. This service trusts it; it never sees credentials.
const userIDHeader = "X-User-ID"

// RequireUser extracts the trusted caller identity and stores it in the
// request context. Requests without a usable ID are rejected.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimSpace(r.Header.Get(userIDHeader))
		userID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || userID <= 0 {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		ctx := auth.WithUserID(r.Context(), userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin gates the administrative surface behind a bearer key checked
// against a bcrypt hash. An empty hash disables the surface entirely.
func RequireAdmin(keyHash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if keyHash == "" {
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
			key, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok {
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
			if err := bcrypt.CompareHashAndPassword([]byte(keyHash), []byte(strings.TrimSpace(key))); err != nil {
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
