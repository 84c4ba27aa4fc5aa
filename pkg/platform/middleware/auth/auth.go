// Package auth binds bearer tokens to wallet addresses on the request
// context. Requests without an Authorization header pass through anonymous;
// handlers that need a caller reject them there. A present but invalid token
// is always rejected.
package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"meroku/pkg/domain"
	"meroku/pkg/requestcontext"
)

// TokenValidator defines the interface for validating wallet tokens.
type TokenValidator interface {
	ValidateToken(tokenString string) (domain.Address, error)
}

func Authenticate(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			const bearerPrefix = "Bearer "
			after, ok := strings.CutPrefix(authHeader, bearerPrefix)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			addr, err := validator.ValidateToken(after)
			if err != nil {
				ctx := r.Context()
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"Invalid or expired token"}`))
				return
			}

			ctx := requestcontext.WithCaller(r.Context(), addr)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
