package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// TokenAuthMiddleware admits requests carrying one of tokens as a Bearer
// token. With no tokens configured every request is refused.
func TokenAuthMiddleware(tokens []string, next http.Handler) http.Handler {
	allowed := make([][]byte, 0, len(tokens))
	for _, t := range tokens {
		if t = strings.TrimSpace(t); t != "" {
			allowed = append(allowed, []byte(t))
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			jsonError(w, http.StatusUnauthorized, "Unauthorized: missing Bearer token")
			return
		}
		token := []byte(strings.TrimSpace(strings.TrimPrefix(auth, "Bearer ")))

		ok := false
		for _, a := range allowed {
			if subtle.ConstantTimeCompare(token, a) == 1 {
				ok = true
			}
		}
		if !ok {
			jsonError(w, http.StatusUnauthorized, "Unauthorized: invalid token")
			return
		}
		next.ServeHTTP(w, r)
	})
}
