package crypto

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// ErrAuthKeyMismatch is returned when a presented auth key hash does not
// match the sealed one.
var ErrAuthKeyMismatch = errors.New("invalid auth key")

// HashAuthKey хеширует auth_key с использованием SHA256.
// Результат отправляется на сервер вместо самого ключа
func HashAuthKey(authKey []byte) (string, error) {
	if len(authKey) == 0 {
		return "", fmt.Errorf("auth key cannot be empty")
	}

	hash := sha256.Sum256(authKey)
	return hex.EncodeToString(hash[:]), nil
}

// SealAuthKeyHash prepares a client auth key hash for storage on the
// server. A leaked users table then cannot be replayed as a login.
func SealAuthKeyHash(authKeyHash string) (string, error) {
	if authKeyHash == "" {
		return "", fmt.Errorf("auth key hash cannot be empty")
	}
	sealed, err := bcrypt.GenerateFromPassword([]byte(authKeyHash), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to seal auth key hash: %w", err)
	}
	return string(sealed), nil
}

// CheckAuthKeyHash сравнивает присланный хеш с сохраненным
func CheckAuthKeyHash(sealed, authKeyHash string) error {
	if sealed == "" || authKeyHash == "" {
		return fmt.Errorf("auth key hash cannot be empty")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(sealed), []byte(authKeyHash)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrAuthKeyMismatch
		}
		return fmt.Errorf("failed to check auth key hash: %w", err)
	}
	return nil
}
