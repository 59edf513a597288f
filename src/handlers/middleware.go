package handlers

import (
	"context"
	"net/http"
	"strings"

	"golang.org/x/time/rate"

	"github.com/username/nestegg/backend/src/logger"
)

type contextKey string

const authTokenContextKey = contextKey("authToken")

// BearerTokenMiddleware stores the caller's bearer token in the request
// context so that it can be forwarded to the position backend. The token is
// not validated here; the backend does that.
func BearerTokenMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		tokenString := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		if tokenString != "" {
			r = r.WithContext(context.WithValue(r.Context(), authTokenContextKey, tokenString))
		}
		next.ServeHTTP(w, r)
	})
}

func AuthTokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(authTokenContextKey).(string)
	return token
}

// RateLimitMiddleware rejects requests beyond the limiter's budget.
func RateLimitMiddleware(limiter *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
				logger.L.Warn("Rate limit exceeded",
					"method", r.Method,
					"path", r.URL.Path,
					"remoteAddr", r.RemoteAddr)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// CORSMiddleware allows credentialed requests from the configured origins.
func CORSMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if allowed[origin] {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, DELETE")
				w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization, X-Requested-With, If-None-Match")
				w.Header().Set("Access-Control-Expose-Headers", "ETag")
				w.Header().Add("Vary", "Origin")
			}

			if r.Method == http.MethodOptions {
				logger.L.Debug("Handling OPTIONS preflight request", "path", r.URL.Path, "origin", origin)
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
