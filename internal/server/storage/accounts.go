package storage

import (
	"context"
	"time"

	"github.com/iudanet/bookclub/internal/models"
)

// AccountStorage keeps readers and their sign-in sessions. A session is a
// refresh token; it is consumed on every refresh and replaced by a new one.
type AccountStorage interface {
	// CreateUser registers a reader
	// Returns ErrUserAlreadyExists if the username is taken
	CreateUser(ctx context.Context, user *models.User) error

	// GetUserByUsername returns ErrUserNotFound for unknown usernames
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)

	// OpenSession stores a new refresh token and stamps the reader's last login
	OpenSession(ctx context.Context, token *models.RefreshToken) error

	// RotateSession consumes the refresh token old and stores next in its
	// place, in one transaction. It returns the reader the session belongs to.
	// Returns ErrTokenNotFound for unknown or already used tokens and
	// ErrTokenExpired for tokens past their expiry at now
	RotateSession(ctx context.Context, old string, next *models.RefreshToken, now time.Time) (*models.User, error)

	// CloseSessions drops every refresh token of the reader and returns how many
	CloseSessions(ctx context.Context, userID string) (int, error)

	// PurgeSessions removes refresh tokens that expired before now
	PurgeSessions(ctx context.Context, now time.Time) (int, error)
}
