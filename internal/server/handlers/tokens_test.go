package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/bookclub/internal/models"
)

func TestTokens_Parse(t *testing.T) {
	secret := []byte("test-secret-key")
	tokens := NewTokens(secret, 15*time.Minute, time.Hour)
	now := time.Now()

	forge := func(method jwt.SigningMethod, key any, claims ReaderClaims) string {
		raw, err := jwt.NewWithClaims(method, claims).SignedString(key)
		require.NoError(t, err)
		return raw
	}
	base := jwt.RegisteredClaims{
		Subject:   "user123",
		Issuer:    tokenIssuer,
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
	}

	t.Run("round trip", func(t *testing.T) {
		raw, ttl, err := tokens.Access(&models.User{ID: "user123", Username: "ana", DisplayName: "Ana"})
		require.NoError(t, err)
		assert.Equal(t, int64(900), ttl)

		claims, err := tokens.Parse(raw)
		require.NoError(t, err)
		assert.Equal(t, Reader{ID: "user123", Username: "ana", DisplayName: "Ana"}, claims.Reader())
	})

	otherIssuer := base
	otherIssuer.Issuer = "elsewhere"
	noSubject := base
	noSubject.Subject = ""
	noExpiry := base
	noExpiry.ExpiresAt = nil

	rejected := map[string]string{
		"unsigned":     forge(jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, ReaderClaims{RegisteredClaims: base}),
		"hs512":        forge(jwt.SigningMethodHS512, secret, ReaderClaims{RegisteredClaims: base}),
		"other issuer": forge(jwt.SigningMethodHS256, secret, ReaderClaims{RegisteredClaims: otherIssuer}),
		"no subject":   forge(jwt.SigningMethodHS256, secret, ReaderClaims{RegisteredClaims: noSubject}),
		"no expiry":    forge(jwt.SigningMethodHS256, secret, ReaderClaims{RegisteredClaims: noExpiry}),
	}
	for name, raw := range rejected {
		t.Run(name, func(t *testing.T) {
			_, err := tokens.Parse(raw)
			assert.Error(t, err)
		})
	}
}

func TestTokens_Session(t *testing.T) {
	tokens := NewTokens([]byte("k"), time.Minute, time.Hour)
	at := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	tokens.now = func() time.Time { return at }

	a, err := tokens.Session("user123")
	require.NoError(t, err)
	b, err := tokens.Session("user123")
	require.NoError(t, err)

	assert.NotEqual(t, a.Token, b.Token)
	assert.Equal(t, "user123", a.UserID)
	assert.Equal(t, at.Add(time.Hour), a.ExpiresAt)
}

func TestBearerToken(t *testing.T) {
	for header, want := range map[string]string{
		"Bearer abc":  "abc",
		"bearer abc":  "abc",
		"Bearer":      "",
		"Token abc":   "",
		"":            "",
		"Bearer   x ": "x",
	} {
		r := httptest.NewRequest(http.MethodPost, "/", nil)
		r.Header.Set("Authorization", header)
		got, err := BearerToken(r)
		if want == "" {
			assert.ErrorIs(t, err, ErrNoBearer, header)
			continue
		}
		assert.Equal(t, want, got, header)
	}
}
