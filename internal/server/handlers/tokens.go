package handlers

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/iudanet/bookclub/internal/models"
)

const tokenIssuer = "bookclub"

// ErrNoBearer is returned by BearerToken when the request carries no usable
// Authorization header.
var ErrNoBearer = errors.New("missing bearer token")

// ReaderClaims is the payload of an access token. Subject is the reader ID.
type ReaderClaims struct {
	Username    string `json:"username"`
	DisplayName string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Reader returns the request identity carried by the claims
func (c *ReaderClaims) Reader() Reader {
	return Reader{ID: c.Subject, Username: c.Username, DisplayName: c.DisplayName}
}

// Tokens signs access tokens and mints refresh sessions.
type Tokens struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewTokens(secret []byte, accessTTL, refreshTTL time.Duration) *Tokens {
	return &Tokens{
		secret:     secret,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

// Access signs an HS256 access token for the reader and returns it with its
// lifetime in seconds.
func (t *Tokens) Access(user *models.User) (string, int64, error) {
	now := t.now()
	claims := ReaderClaims{
		Username:    user.Username,
		DisplayName: user.DisplayName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.accessTTL)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", 0, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, int64(t.accessTTL.Seconds()), nil
}

// Parse verifies an access token and returns its claims
func (t *Tokens) Parse(raw string) (*ReaderClaims, error) {
	claims := &ReaderClaims{}
	_, err := jwt.ParseWithClaims(raw, claims,
		func(*jwt.Token) (any, error) { return t.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}
	return claims, nil
}

// Session mints a random refresh token for userID
func (t *Tokens) Session(userID string) (*models.RefreshToken, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}
	now := t.now()
	return &models.RefreshToken{
		Token:     base64.RawURLEncoding.EncodeToString(buf),
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(t.refreshTTL),
	}, nil
}

// BearerToken extracts the token from "Authorization: Bearer <token>"
func BearerToken(r *http.Request) (string, error) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", ErrNoBearer
	}
	return strings.TrimSpace(token), nil
}
