package handler

import (
	"context"
	"net/http"
	"strings"

	"bond-log-enhancer/internal/domain"
)

// TokenValidator checks a bearer token. *repository.SupabaseClient implements it.
type TokenValidator interface {
	ValidateToken(token string) (*domain.SupabaseUser, error)
}

// AuthMiddleware validates Supabase JWT tokens
type AuthMiddleware struct {
	validator TokenValidator
	logger    domain.Logger
}

// NewAuthMiddleware creates the bearer-token middleware
func NewAuthMiddleware(validator TokenValidator, logger domain.Logger) *AuthMiddleware {
	return &AuthMiddleware{validator: validator, logger: logger}
}

// Middleware rejects requests without a valid token and stores the user and
// token in the request context.
func (m *AuthMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeError(w, http.StatusUnauthorized, "Authorization header required")
			return
		}

		// Extract token from "Bearer <token>" format
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			writeError(w, http.StatusUnauthorized, "Invalid authorization header format")
			return
		}

		token := strings.TrimSpace(parts[1])
		if token == "" {
			writeError(w, http.StatusUnauthorized, "Token required")
			return
		}

		user, err := m.validator.ValidateToken(token)
		if err != nil {
			m.logger.Error("Token validation failed", err, "token", redact(token))
			writeError(w, http.StatusUnauthorized, "Invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, user)
		ctx = context.WithValue(ctx, tokenContextKey, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// PassThrough is used when Supabase is not configured.
func PassThrough(next http.Handler) http.Handler {
	return next
}

func redact(token string) string {
	if len(token) <= 10 {
		return "..."
	}
	return token[:10] + "..."
}
