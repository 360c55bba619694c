package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iudanet/bookclub/internal/models"
	"github.com/iudanet/bookclub/internal/server/storage"
)

const userColumns = `id, username, display_name, auth_key_hash, public_salt, created_at, last_login`

// CreateUser registers a reader
func (s *Storage) CreateUser(ctx context.Context, user *models.User) error {
	query := `INSERT INTO users (` + userColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		user.ID, user.Username, user.DisplayName,
		user.AuthKeyHash, user.PublicSalt,
		user.CreatedAt, user.LastLogin,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: users.username") {
			return storage.ErrUserAlreadyExists
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// GetUserByUsername looks a reader up by login name
func (s *Storage) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username)
	return scanUser(row)
}

// OpenSession stores a refresh token and stamps the reader's last login
func (s *Storage) OpenSession(ctx context.Context, token *models.RefreshToken) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE users SET last_login = ? WHERE id = ?`, token.CreatedAt, token.UserID)
		if err != nil {
			return fmt.Errorf("failed to stamp last login: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return storage.ErrUserNotFound
		}
		return insertSession(ctx, tx, token)
	})
}

// RotateSession consumes old and stores next for the same reader
func (s *Storage) RotateSession(ctx context.Context, old string, next *models.RefreshToken, now time.Time) (*models.User, error) {
	var user *models.User
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var (
			userID    string
			expiresAt int64
		)
		// DELETE ... RETURNING: токен можно обменять только один раз
		err := tx.QueryRowContext(ctx,
			`DELETE FROM sessions WHERE token = ? RETURNING user_id, expires_at`, old,
		).Scan(&userID, &expiresAt)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return storage.ErrTokenNotFound
			}
			return fmt.Errorf("failed to consume session: %w", err)
		}
		if !now.Before(time.Unix(0, expiresAt)) {
			return storage.ErrTokenExpired
		}

		user, err = scanUser(tx.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, userID))
		if err != nil {
			return err
		}

		next.UserID = userID
		return insertSession(ctx, tx, next)
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// CloseSessions drops every session of the reader
func (s *Storage) CloseSessions(ctx context.Context, userID string) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = ?`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to close sessions: %w", err)
	}
	return affected(res)
}

// PurgeSessions removes sessions that expired before now
func (s *Storage) PurgeSessions(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, now.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to purge sessions: %w", err)
	}
	return affected(res)
}

func insertSession(ctx context.Context, tx *sql.Tx, token *models.RefreshToken) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO sessions (token, user_id, expires_at, created_at) VALUES (?, ?, ?, ?)`,
		token.Token, token.UserID, token.ExpiresAt.UnixNano(), token.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func scanUser(row scanner) (*models.User, error) {
	var (
		user      models.User
		lastLogin sql.NullTime
	)
	err := row.Scan(
		&user.ID, &user.Username, &user.DisplayName,
		&user.AuthKeyHash, &user.PublicSalt,
		&user.CreatedAt, &lastLogin,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	if lastLogin.Valid {
		user.LastLogin = &lastLogin.Time
	}
	return &user, nil
}

func affected(res sql.Result) (int, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(n), nil
}
