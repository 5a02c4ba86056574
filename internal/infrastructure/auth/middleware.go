package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/dpetrov/speedrun-tracker/internal/infrastructure/redis"
)

type contextKey int

const claimsKey contextKey = 0

// ClaimsFromContext returns the session claims stored by Middleware.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(*Claims)
	return claims, ok
}

// Middleware verifies the session cookie and checks the token against
// the redis copy so that logout actually revokes it. Failures answer
// with the not-authenticated envelope (code 3).
func Middleware(tokens *TokenManager, redisClient redis.RedisClient) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(CookieName)
			if err != nil || cookie.Value == "" {
				reject(w)
				return
			}

			claims, err := tokens.Verify(cookie.Value)
			if err != nil {
				reject(w)
				return
			}

			storedToken, err := redisClient.Get(r.Context(), fmt.Sprintf("user:%d:token", claims.UserID))
			if err != nil || storedToken != cookie.Value {
				slog.Warn("invalid or revoked token", "user_id", claims.UserID, "error", err)
				reject(w)
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func reject(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"data": struct{}{},
		"msg":  "Not authenticated",
		"code": 3,
	})
}
