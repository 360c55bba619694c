package middleware

import (
	"log/slog"
	"net/http"

	"github.com/iudanet/bookclub/internal/server/handlers"
)

// AuthMiddleware пропускает только запросы с валидным access-токеном
func AuthMiddleware(logger *slog.Logger, tokens *handlers.Tokens) func(http.Handler) http.Handler {
	return authMiddleware(logger, tokens, true)
}

// OptionalAuth пропускает запросы без Authorization как анонимные.
// Переданный, но невалидный токен по-прежнему отклоняется.
func OptionalAuth(logger *slog.Logger, tokens *handlers.Tokens) func(http.Handler) http.Handler {
	return authMiddleware(logger, tokens, false)
}

func authMiddleware(logger *slog.Logger, tokens *handlers.Tokens, required bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") == "" && !required {
				next.ServeHTTP(w, r)
				return
			}

			raw, err := handlers.BearerToken(r)
			if err != nil {
				logger.Warn("Missing or malformed Authorization header")
				http.Error(w, "Unauthorized: missing token", http.StatusUnauthorized)
				return
			}

			claims, err := tokens.Parse(raw)
			if err != nil {
				logger.Warn("Invalid access token", "error", err)
				http.Error(w, "Unauthorized: invalid token", http.StatusUnauthorized)
				return
			}

			reader := claims.Reader()
			logger.Debug("Reader authenticated", "user_id", reader.ID, "username", reader.Username)

			next.ServeHTTP(w, r.WithContext(handlers.WithReader(r.Context(), reader)))
		})
	}
}
