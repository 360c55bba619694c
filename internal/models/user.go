package models

import "time"

// User представляет читателя в системе
type User struct {
	CreatedAt   time.Time  `json:"created_at"`           // время создания
	LastLogin   *time.Time `json:"last_login,omitempty"` // время последнего входа
	ID          string     `json:"id"`                   // UUID пользователя
	Username    string     `json:"username"`             // уникальный username
	DisplayName string     `json:"display_name"`         // имя, которое видят другие читатели
	AuthKeyHash string     `json:"auth_key_hash"`        // bcrypt хеш от SHA256(auth_key)
	PublicSalt  string     `json:"public_salt"`          // base64 encoded salt (32 bytes)
}

// RefreshToken представляет refresh token пользователя
type RefreshToken struct {
	ExpiresAt time.Time `json:"expires_at"` // время истечения
	CreatedAt time.Time `json:"created_at"` // время создания
	Token     string    `json:"token"`      // значение токена
	UserID    string    `json:"user_id"`    // ID пользователя
}

// Actor is the authenticated reader driving mutations.
type Actor struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}
