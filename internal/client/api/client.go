// Package api is the HTTP client of the bookclub server. Besides the auth
// endpoints it implements remote.Store on top of long-poll watches.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/iudanet/bookclub/internal/remote"
	"github.com/iudanet/bookclub/pkg/api"
)

// DefaultWatchWait is how long the server may hold a watch request.
// It stays below the HTTP client timeout.
const DefaultWatchWait = 20

// TokenSource supplies the access token for authenticated requests.
// An empty token sends the request anonymously.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// Client представляет HTTP клиент для взаимодействия с сервером
type Client struct {
	httpClient *http.Client
	tokens     TokenSource
	baseURL    string
	watchWait  int
	mu         sync.RWMutex
}

var _ remote.Store = (*Client)(nil)

// NewClient создает новый API клиент
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:   baseURL,
		watchWait: DefaultWatchWait,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			// Настройка обработки редиректов
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				// Ограничиваем количество редиректов
				if len(via) >= 10 {
					return fmt.Errorf("stopped after 10 redirects")
				}
				// Копируем заголовки Authorization при редиректе
				if len(via) > 0 && via[0].Header.Get("Authorization") != "" {
					req.Header.Set("Authorization", via[0].Header.Get("Authorization"))
				}
				return nil
			},
		},
	}
}

// SetTokenSource sets where access tokens come from.
func (c *Client) SetTokenSource(ts TokenSource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens = ts
}

// SetWatchWait changes how many seconds the server may hold a watch.
func (c *Client) SetWatchWait(seconds int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.watchWait = seconds
}

// Register регистрирует нового пользователя
func (c *Client) Register(ctx context.Context, req api.RegisterRequest) (*api.RegisterResponse, error) {
	var resp api.RegisterResponse
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/auth/register", "", req, &resp); err != nil {
		return nil, fmt.Errorf("register request failed: %w", err)
	}
	return &resp, nil
}

// GetSalt получает public_salt пользователя
func (c *Client) GetSalt(ctx context.Context, username string) (*api.SaltResponse, error) {
	var resp api.SaltResponse
	path := "/api/v1/auth/salt/" + url.PathEscape(username)
	if err := c.doRequest(ctx, http.MethodGet, path, "", nil, &resp); err != nil {
		return nil, fmt.Errorf("get salt request failed: %w", err)
	}
	return &resp, nil
}

// Login выполняет аутентификацию пользователя
func (c *Client) Login(ctx context.Context, req api.LoginRequest) (*api.TokenResponse, error) {
	var resp api.TokenResponse
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/auth/login", "", req, &resp); err != nil {
		return nil, fmt.Errorf("login request failed: %w", err)
	}
	return &resp, nil
}

// Refresh обменивает refresh token на новую пару токенов
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*api.TokenResponse, error) {
	var resp api.TokenResponse
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/auth/refresh", refreshToken, nil, &resp); err != nil {
		return nil, fmt.Errorf("refresh request failed: %w", err)
	}
	return &resp, nil
}

// Logout отзывает refresh токены пользователя на сервере
func (c *Client) Logout(ctx context.Context, accessToken string) error {
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/auth/logout", accessToken, nil, nil); err != nil {
		return fmt.Errorf("logout request failed: %w", err)
	}
	return nil
}

// Subscribe implements remote.Store with a long-poll loop. The first
// watch returns at once; later ones wait for a newer revision.
func (c *Client) Subscribe(ctx context.Context, collection string, q api.Query) (<-chan remote.Event, error) {
	if collection == "" {
		return nil, fmt.Errorf("%w: collection is required", remote.ErrInvalid)
	}

	out := make(chan remote.Event)
	go func() {
		defer close(out)

		var after int64
		for {
			snap, changed, err := c.watch(ctx, collection, q, after)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				select {
				case out <- remote.Event{Err: err}:
				case <-ctx.Done():
				}
				return
			}
			if !changed {
				continue
			}
			after = snap.Revision

			select {
			case out <- remote.Event{Snapshot: snap}:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

func (c *Client) watch(ctx context.Context, collection string, q api.Query, after int64) (api.Snapshot, bool, error) {
	c.mu.RLock()
	wait := c.watchWait
	c.mu.RUnlock()

	token, err := c.accessToken(ctx)
	if err != nil {
		return api.Snapshot{}, false, err
	}

	req := api.WatchRequest{Query: q, After: after, WaitSeconds: wait}
	var snap api.Snapshot
	status, err := c.do(ctx, http.MethodPost, collectionPath(collection)+"/watch", token, req, &snap)
	if err != nil {
		return api.Snapshot{}, false, fmt.Errorf("watch %s failed: %w", collection, err)
	}
	if status == http.StatusNoContent {
		return api.Snapshot{}, false, nil
	}
	return snap, true, nil
}

// Create implements remote.Store.
func (c *Client) Create(ctx context.Context, collection string, fields map[string]any) (string, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return "", err
	}

	var resp api.CreateResponse
	err = c.doRequest(ctx, http.MethodPost, collectionPath(collection)+"/documents", token, api.CreateRequest{Fields: fields}, &resp)
	if err != nil {
		return "", fmt.Errorf("create in %s failed: %w", collection, err)
	}
	return resp.ID, nil
}

// Update implements remote.Store.
func (c *Client) Update(ctx context.Context, collection, id string, patch api.Patch) error {
	token, err := c.accessToken(ctx)
	if err != nil {
		return err
	}

	path := collectionPath(collection) + "/documents/" + url.PathEscape(id)
	if err := c.doRequest(ctx, http.MethodPatch, path, token, patch, nil); err != nil {
		return fmt.Errorf("update %s/%s failed: %w", collection, id, err)
	}
	return nil
}

// Delete implements remote.Store.
func (c *Client) Delete(ctx context.Context, collection, id string) error {
	token, err := c.accessToken(ctx)
	if err != nil {
		return err
	}

	path := collectionPath(collection) + "/documents/" + url.PathEscape(id)
	if err := c.doRequest(ctx, http.MethodDelete, path, token, nil, nil); err != nil {
		return fmt.Errorf("delete %s/%s failed: %w", collection, id, err)
	}
	return nil
}

func collectionPath(collection string) string {
	return "/api/v1/collections/" + url.PathEscape(collection)
}

func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.RLock()
	ts := c.tokens
	c.mu.RUnlock()

	if ts == nil {
		return "", nil
	}
	token, err := ts.AccessToken(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get access token: %w", err)
	}
	return token, nil
}

// doRequest выполняет HTTP запрос
func (c *Client) doRequest(ctx context.Context, method, path, token string, body, result any) error {
	_, err := c.do(ctx, method, path, token, body, result)
	return err
}

func (c *Client) do(ctx context.Context, method, path, token string, body, result any) (int, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	// Читаем тело ответа
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("failed to read response body: %w", err)
	}

	// Проверяем статус код
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, statusError(resp.StatusCode, respBody)
	}

	// Декодируем успешный ответ
	if result != nil && len(respBody) > 0 && resp.StatusCode != http.StatusNoContent {
		if err := json.Unmarshal(respBody, result); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return resp.StatusCode, nil
}

// statusError builds an error for a non-2xx response that errors.Is can
// match against the remote sentinels.
func statusError(code int, body []byte) error {
	var sentinel error
	switch code {
	case http.StatusUnauthorized:
		sentinel = remote.ErrUnauthorized
	case http.StatusForbidden:
		sentinel = remote.ErrForbidden
	case http.StatusNotFound:
		sentinel = remote.ErrNotFound
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		sentinel = remote.ErrInvalid
	}

	var errResp api.ErrorResponse
	msg := ""
	if err := json.Unmarshal(body, &errResp); err == nil && (errResp.Message != "" || errResp.Error != "") {
		msg = errResp.Message
		if msg == "" {
			msg = errResp.Error
		}
		msg = fmt.Sprintf("server error (%d): %s", code, msg)
	} else {
		msg = fmt.Sprintf("request failed with status %d: %s", code, string(body))
	}

	if sentinel == nil {
		return errors.New(msg)
	}
	return fmt.Errorf("%s: %w", msg, sentinel)
}
