package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/bookclub/internal/crypto"
	"github.com/iudanet/bookclub/internal/server/storage/sqlite"
	"github.com/iudanet/bookclub/pkg/api"
)

type authFixture struct {
	handler *AuthHandler
	store   *sqlite.Storage
	tokens  *Tokens
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()

	store, err := sqlite.New(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = store.Close()
	})

	tokens := NewTokens([]byte("test-secret-key-32-bytes-long!!!"), 15*time.Minute, 24*time.Hour)
	return &authFixture{
		handler: NewAuthHandler(setupTestLogger(), store, tokens),
		store:   store,
		tokens:  tokens,
	}
}

func (f *authFixture) post(t *testing.T, h http.HandlerFunc, bearer string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(http.MethodPost, "/", &buf)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	h(w, req)
	return w
}

func (f *authFixture) register(t *testing.T, username, displayName string) string {
	t.Helper()

	w := f.post(t, f.handler.Register, "", api.RegisterRequest{
		Username:    username,
		DisplayName: displayName,
		AuthKeyHash: "hash-" + username,
		PublicSalt:  "c2FsdA==",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp api.RegisterResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.NotEmpty(t, resp.UserID)
	return resp.UserID
}

func (f *authFixture) login(t *testing.T, username string) api.TokenResponse {
	t.Helper()

	w := f.post(t, f.handler.Login, "", api.LoginRequest{Username: username, AuthKeyHash: "hash-" + username})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp api.TokenResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp
}

func TestAuthHandler_Register(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	anaID := f.register(t, "ana", "Ana Clara")

	stored, err := f.store.GetUserByUsername(ctx, "ana")
	require.NoError(t, err)
	assert.Equal(t, anaID, stored.ID)
	assert.Equal(t, "Ana Clara", stored.DisplayName)
	// хеш клиента не хранится в открытом виде
	assert.NotEqual(t, "hash-ana", stored.AuthKeyHash)
	assert.NoError(t, crypto.CheckAuthKeyHash(stored.AuthKeyHash, "hash-ana"))

	t.Run("display name defaults to username", func(t *testing.T) {
		f.register(t, "bia", "")
		stored, err := f.store.GetUserByUsername(ctx, "bia")
		require.NoError(t, err)
		assert.Equal(t, "bia", stored.DisplayName)
	})

	tests := []struct {
		name string
		req  api.RegisterRequest
		code int
	}{
		{
			name: "taken username",
			req:  api.RegisterRequest{Username: "ana", AuthKeyHash: "h", PublicSalt: "s"},
			code: http.StatusConflict,
		},
		{
			name: "invalid username",
			req:  api.RegisterRequest{Username: "a b", AuthKeyHash: "h", PublicSalt: "s"},
			code: http.StatusBadRequest,
		},
		{
			name: "missing salt",
			req:  api.RegisterRequest{Username: "caio", AuthKeyHash: "h"},
			code: http.StatusBadRequest,
		},
		{
			name: "display name too long",
			req:  api.RegisterRequest{Username: "caio", DisplayName: strings.Repeat("x", 200), AuthKeyHash: "h", PublicSalt: "s"},
			code: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.post(t, f.handler.Register, "", tt.req)
			assert.Equal(t, tt.code, w.Code, w.Body.String())
		})
	}
}

func TestAuthHandler_GetSalt(t *testing.T) {
	f := newAuthFixture(t)
	f.register(t, "ana", "")

	mux := http.NewServeMux()
	mux.HandleFunc("GET /salt/{username}", f.handler.GetSalt)

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/salt/ana", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var resp api.SaltResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "c2FsdA==", resp.PublicSalt)

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/salt/bia", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAuthHandler_Login(t *testing.T) {
	f := newAuthFixture(t)
	anaID := f.register(t, "ana", "Ana Clara")

	resp := f.login(t, "ana")
	assert.Equal(t, anaID, resp.UserID)
	assert.Equal(t, "Ana Clara", resp.DisplayName)
	assert.Equal(t, int64(900), resp.ExpiresIn)
	assert.NotEmpty(t, resp.RefreshToken)

	// имя попадает и в сам access-токен
	claims, err := f.tokens.Parse(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, Reader{ID: anaID, Username: "ana", DisplayName: "Ana Clara"}, claims.Reader())

	stored, err := f.store.GetUserByUsername(context.Background(), "ana")
	require.NoError(t, err)
	assert.NotNil(t, stored.LastLogin)

	for name, req := range map[string]api.LoginRequest{
		"wrong key":      {Username: "ana", AuthKeyHash: "hash-bia"},
		"unknown reader": {Username: "bia", AuthKeyHash: "hash-bia"},
	} {
		t.Run(name, func(t *testing.T) {
			w := f.post(t, f.handler.Login, "", req)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}

	t.Run("missing key", func(t *testing.T) {
		w := f.post(t, f.handler.Login, "", api.LoginRequest{Username: "ana"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestAuthHandler_RefreshRotates(t *testing.T) {
	f := newAuthFixture(t)
	anaID := f.register(t, "ana", "Ana Clara")
	first := f.login(t, "ana")

	w := f.post(t, f.handler.Refresh, first.RefreshToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var second api.TokenResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&second))
	assert.Equal(t, anaID, second.UserID)
	assert.Equal(t, "Ana Clara", second.DisplayName)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)

	// повторный обмен того же токена
	w = f.post(t, f.handler.Refresh, first.RefreshToken, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.post(t, f.handler.Refresh, "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	t.Run("expired session", func(t *testing.T) {
		f.handler.now = func() time.Time { return time.Now().Add(25 * time.Hour) }
		t.Cleanup(func() { f.handler.now = time.Now })

		w := f.post(t, f.handler.Refresh, second.RefreshToken, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "expired")
	})
}

func TestAuthHandler_Logout(t *testing.T) {
	f := newAuthFixture(t)
	anaID := f.register(t, "ana", "")
	first := f.login(t, "ana")
	second := f.login(t, "ana")

	w := f.post(t, f.handler.Logout, "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req = req.WithContext(WithReader(req.Context(), Reader{ID: anaID, Username: "ana"}))
	w = httptest.NewRecorder()
	f.handler.Logout(w, req)
	require.Equal(t, http.StatusNoContent, w.Code)

	// выход закрывает сессии всех устройств
	for _, session := range []string{first.RefreshToken, second.RefreshToken} {
		w := f.post(t, f.handler.Refresh, session, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	}
}
