package middleware

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/bookclub/internal/models"
	"github.com/iudanet/bookclub/internal/server/handlers"
)

// setupTestLogger creates a logger for testing
func setupTestLogger() *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: slog.LevelError,
	}
	handler := slog.NewTextHandler(os.Stdout, opts)
	return slog.New(handler)
}

var ana = &models.User{ID: "user123", Username: "ana", DisplayName: "Ana Clara"}

func signed(t *testing.T, tokens *handlers.Tokens) string {
	t.Helper()
	token, _, err := tokens.Access(ana)
	require.NoError(t, err)
	return token
}

func TestAuthMiddleware(t *testing.T) {
	logger := setupTestLogger()
	tokens := handlers.NewTokens([]byte("test-secret-key"), 15*time.Minute, time.Hour)

	valid := signed(t, tokens)
	expired := signed(t, handlers.NewTokens([]byte("test-secret-key"), -time.Minute, time.Hour))
	foreign := signed(t, handlers.NewTokens([]byte("another-secret"), 15*time.Minute, time.Hour))

	tests := []struct {
		name     string
		header   string
		wantCode int
		wantBody string
	}{
		{name: "valid token", header: "Bearer " + valid, wantCode: http.StatusOK},
		{name: "scheme is case insensitive", header: "bearer " + valid, wantCode: http.StatusOK},
		{name: "missing header", wantCode: http.StatusUnauthorized, wantBody: "missing token"},
		{name: "basic scheme", header: "Basic " + valid, wantCode: http.StatusUnauthorized, wantBody: "missing token"},
		{name: "empty bearer", header: "Bearer ", wantCode: http.StatusUnauthorized, wantBody: "missing token"},
		{name: "expired token", header: "Bearer " + expired, wantCode: http.StatusUnauthorized, wantBody: "invalid token"},
		{name: "signed with other secret", header: "Bearer " + foreign, wantCode: http.StatusUnauthorized, wantBody: "invalid token"},
		{name: "garbage", header: "Bearer not.a.jwt", wantCode: http.StatusUnauthorized, wantBody: "invalid token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got handlers.Reader
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				reader, ok := handlers.ReaderFrom(r.Context())
				require.True(t, ok, "reader should be in context")
				got = reader
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			AuthMiddleware(logger, tokens)(next).ServeHTTP(w, req)

			assert.Equal(t, tt.wantCode, w.Code)
			if tt.wantCode == http.StatusOK {
				assert.Equal(t, handlers.Reader{ID: "user123", Username: "ana", DisplayName: "Ana Clara"}, got)
				return
			}
			assert.Contains(t, w.Body.String(), tt.wantBody)
		})
	}
}

func TestOptionalAuth(t *testing.T) {
	logger := setupTestLogger()
	tokens := handlers.NewTokens([]byte("test-secret-key"), 15*time.Minute, time.Hour)
	token := signed(t, tokens)

	tests := []struct {
		name     string
		header   string
		wantCode int
		wantUser string
	}{
		{
			name:     "anonymous",
			wantCode: http.StatusOK,
		},
		{
			name:     "valid token",
			header:   "Bearer " + token,
			wantCode: http.StatusOK,
			wantUser: "user123",
		},
		{
			name:     "invalid token is still rejected",
			header:   "Bearer garbage",
			wantCode: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotUser string
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotUser, _ = handlers.GetUserID(r.Context())
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodPost, "/api/v1/collections/livros/watch", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			w := httptest.NewRecorder()
			OptionalAuth(logger, tokens)(handler).ServeHTTP(w, req)

			assert.Equal(t, tt.wantCode, w.Code)
			assert.Equal(t, tt.wantUser, gotUser)
		})
	}
}
