// Package auth keeps the signed-in reader. It is the actor collaborator of
// every collection store: Current tells who acts, Watch tells when it changes.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/iudanet/bookclub/internal/client/storage"
	"github.com/iudanet/bookclub/internal/crypto"
	"github.com/iudanet/bookclub/internal/models"
	"github.com/iudanet/bookclub/internal/validation"
	pkgapi "github.com/iudanet/bookclub/pkg/api"
)

// ErrNotLoggedIn is returned by operations that need a session
var ErrNotLoggedIn = errors.New("not logged in")

// refreshMargin обновляем access token заранее, чтобы запрос не ушел с истекшим
const refreshMargin = 30 * time.Second

// APIClient is the part of the server API the session talks to
type APIClient interface {
	Register(ctx context.Context, req pkgapi.RegisterRequest) (*pkgapi.RegisterResponse, error)
	GetSalt(ctx context.Context, username string) (*pkgapi.SaltResponse, error)
	Login(ctx context.Context, req pkgapi.LoginRequest) (*pkgapi.TokenResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*pkgapi.TokenResponse, error)
	Logout(ctx context.Context, accessToken string) error
}

// Session is the current reader of this device.
type Session struct {
	client   APIClient
	store    storage.AuthStorage
	logger   *slog.Logger
	current  *storage.AuthData
	watchers map[int]func(models.Actor, bool)
	now      func() time.Time
	nextID   int
	mu       sync.RWMutex
	// refreshMu сериализует обновление токенов
	refreshMu sync.Mutex
}

// NewSession создает сессию без активного читателя
func NewSession(client APIClient, store storage.AuthStorage, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		client:   client,
		store:    store,
		logger:   logger,
		watchers: make(map[int]func(models.Actor, bool)),
		now:      time.Now,
	}
}

// Current returns the signed-in reader.
func (s *Session) Current() (models.Actor, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return models.Actor{}, false
	}
	return actorOf(s.current), true
}

// Username returns the login of the signed-in reader.
func (s *Session) Username() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return ""
	}
	return s.current.Username
}

// Watch registers fn to be called after every actor change. The returned
// function unregisters it.
func (s *Session) Watch(fn func(models.Actor, bool)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.watchers[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.watchers, id)
	}
}

// Register создает учетную запись и сразу выполняет вход
func (s *Session) Register(ctx context.Context, username, displayName, password string) (models.Actor, error) {
	if err := validation.ValidateUsername(username); err != nil {
		return models.Actor{}, fmt.Errorf("invalid username: %w", err)
	}
	if err := validation.ValidatePassword(password); err != nil {
		return models.Actor{}, fmt.Errorf("invalid password: %w", err)
	}
	if displayName == "" {
		displayName = username
	}
	if err := validation.ValidateDisplayName(displayName); err != nil {
		return models.Actor{}, fmt.Errorf("invalid display name: %w", err)
	}

	// 1. Генерируем публичную соль
	salt, err := crypto.GenerateSaltBase64()
	if err != nil {
		return models.Actor{}, fmt.Errorf("failed to generate salt: %w", err)
	}

	// 2. Деривируем auth key и хешируем его для отправки на сервер
	authKeyHash, err := authKeyHash(password, username, salt)
	if err != nil {
		return models.Actor{}, err
	}

	// 3. Отправляем запрос на регистрацию
	_, err = s.client.Register(ctx, pkgapi.RegisterRequest{
		Username:    username,
		DisplayName: displayName,
		AuthKeyHash: authKeyHash,
		PublicSalt:  salt,
	})
	if err != nil {
		return models.Actor{}, fmt.Errorf("registration failed: %w", err)
	}

	return s.login(ctx, username, authKeyHash, salt)
}

// Login выполняет вход и делает читателя текущим актором
func (s *Session) Login(ctx context.Context, username, password string) (models.Actor, error) {
	if err := validation.ValidateUsername(username); err != nil {
		return models.Actor{}, fmt.Errorf("invalid username: %w", err)
	}
	if err := validation.ValidatePassword(password); err != nil {
		return models.Actor{}, fmt.Errorf("invalid password: %w", err)
	}

	// 1. Получаем public_salt с сервера
	saltResp, err := s.client.GetSalt(ctx, username)
	if err != nil {
		return models.Actor{}, fmt.Errorf("failed to get salt: %w", err)
	}

	// 2. Деривируем auth key
	hash, err := authKeyHash(password, username, saltResp.PublicSalt)
	if err != nil {
		return models.Actor{}, err
	}

	return s.login(ctx, username, hash, saltResp.PublicSalt)
}

func (s *Session) login(ctx context.Context, username, authKeyHash, salt string) (models.Actor, error) {
	resp, err := s.client.Login(ctx, pkgapi.LoginRequest{
		Username:    username,
		AuthKeyHash: authKeyHash,
	})
	if err != nil {
		return models.Actor{}, fmt.Errorf("login failed: %w", err)
	}

	data := &storage.AuthData{
		Username:     username,
		UserID:       resp.UserID,
		DisplayName:  resp.DisplayName,
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		PublicSalt:   salt,
		ExpiresAt:    s.now().Add(time.Duration(resp.ExpiresIn) * time.Second).Unix(),
	}
	if err := s.store.SaveAuth(ctx, data); err != nil {
		return models.Actor{}, fmt.Errorf("failed to save session: %w", err)
	}

	s.logger.Info("Logged in", "username", username, "user_id", resp.UserID)
	s.set(data)
	return actorOf(data), nil
}

// Restore loads the session saved by an earlier run. A missing session is
// not an error.
func (s *Session) Restore(ctx context.Context) (models.Actor, bool, error) {
	data, err := s.store.GetAuth(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrAuthNotFound) {
			return models.Actor{}, false, nil
		}
		return models.Actor{}, false, fmt.Errorf("failed to load session: %w", err)
	}
	if data.UserID == "" {
		return models.Actor{}, false, nil
	}

	s.set(data)
	return actorOf(data), true, nil
}

// Logout выполняет выход: сервер уведомляется по возможности,
// локальная сессия удаляется всегда
func (s *Session) Logout(ctx context.Context) error {
	s.mu.RLock()
	current := s.current
	s.mu.RUnlock()

	if current != nil {
		if err := s.client.Logout(ctx, current.AccessToken); err != nil {
			// Не прерываем процесс, если сервер недоступен
			s.logger.Warn("Failed to logout on server", "error", err)
		}
	}

	if err := s.store.DeleteAuth(ctx); err != nil && !errors.Is(err, storage.ErrAuthNotFound) {
		return fmt.Errorf("failed to delete local session: %w", err)
	}

	s.set(nil)
	return nil
}

// AccessToken returns a valid access token, refreshing it when it is about
// to expire. Without a session it returns an empty token.
func (s *Session) AccessToken(ctx context.Context) (string, error) {
	s.mu.RLock()
	current := s.current
	s.mu.RUnlock()

	if current == nil {
		return "", nil
	}
	if s.now().Add(refreshMargin).Unix() < current.ExpiresAt {
		return current.AccessToken, nil
	}
	return s.refresh(ctx)
}

func (s *Session) refresh(ctx context.Context) (string, error) {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	s.mu.RLock()
	current := s.current
	s.mu.RUnlock()
	if current == nil {
		return "", ErrNotLoggedIn
	}
	// другой вызов мог уже обновить токен
	if s.now().Add(refreshMargin).Unix() < current.ExpiresAt {
		return current.AccessToken, nil
	}

	resp, err := s.client.Refresh(ctx, current.RefreshToken)
	if err != nil {
		return "", fmt.Errorf("failed to refresh token: %w", err)
	}

	updated := *current
	updated.AccessToken = resp.AccessToken
	updated.RefreshToken = resp.RefreshToken
	updated.ExpiresAt = s.now().Add(time.Duration(resp.ExpiresIn) * time.Second).Unix()

	if err := s.store.SaveAuth(ctx, &updated); err != nil {
		return "", fmt.Errorf("failed to save refreshed session: %w", err)
	}

	s.mu.Lock()
	// актор не меняется, наблюдателей не уведомляем
	if s.current != nil && s.current.UserID == updated.UserID {
		s.current = &updated
	}
	s.mu.Unlock()

	s.logger.Debug("Access token refreshed", "user_id", updated.UserID)
	return updated.AccessToken, nil
}

func (s *Session) set(data *storage.AuthData) {
	s.mu.Lock()
	prev := s.current
	s.current = data

	changed := (prev == nil) != (data == nil) ||
		(prev != nil && data != nil && prev.UserID != data.UserID)

	var watchers []func(models.Actor, bool)
	if changed {
		watchers = make([]func(models.Actor, bool), 0, len(s.watchers))
		for _, fn := range s.watchers {
			watchers = append(watchers, fn)
		}
	}
	s.mu.Unlock()

	var actor models.Actor
	if data != nil {
		actor = actorOf(data)
	}
	for _, fn := range watchers {
		fn(actor, data != nil)
	}
}

func actorOf(data *storage.AuthData) models.Actor {
	name := data.DisplayName
	if name == "" {
		name = data.Username
	}
	return models.Actor{ID: data.UserID, DisplayName: name}
}

func authKeyHash(password, username, salt string) (string, error) {
	key, err := crypto.DeriveAuthKeyFromBase64Salt(password, username, salt)
	if err != nil {
		return "", fmt.Errorf("failed to derive auth key: %w", err)
	}
	hash, err := crypto.HashAuthKey(key)
	if err != nil {
		return "", fmt.Errorf("failed to hash auth key: %w", err)
	}
	return hash, nil
}
