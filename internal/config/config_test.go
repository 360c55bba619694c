package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/bookclub/internal/document"
)

func TestLoadServer_Defaults(t *testing.T) {
	cfg, err := LoadServer("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Address)
	assert.Equal(t, 15*time.Minute, cfg.AccessTokenTTL)
	assert.Len(t, cfg.Collections, 8)
	// без секрета сервер не стартует
	assert.ErrorIs(t, cfg.Validate(), ErrInvalid)
}

func TestLoadServer_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
address: ":9090"
jwt_secret: "0123456789abcdef0123456789abcdef"
access_token_ttl: 5m
watch_wait: 10s
collections:
  - name: livros
    public: true
  - name: reviews
    relations:
      - field: likedBy
        counter: likes
`), 0o600))

	t.Setenv("BOOKCLUB_ADDRESS", ":7070")
	t.Setenv("BOOKCLUB_RATE_LIMIT", "7")

	cfg, err := LoadServer(path)
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.Address)
	assert.Equal(t, 5*time.Minute, cfg.AccessTokenTTL)
	assert.Equal(t, 10*time.Second, cfg.WatchWait)
	assert.Equal(t, 7, cfg.RateLimit)
	assert.Equal(t, []Collection{
		{Name: "livros", Public: true},
		{Name: "reviews", Relations: []document.Relation{{Field: "likedBy", Counter: "likes"}}},
	}, cfg.Collections)
	assert.NoError(t, cfg.Validate())
}

func TestLoadServer_Errors(t *testing.T) {
	_, err := LoadServer(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("address: [unclosed"), 0o600))
	_, err = LoadServer(path)
	require.Error(t, err)

	t.Setenv("BOOKCLUB_WATCH_WAIT", "soon")
	_, err = LoadServer("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BOOKCLUB_WATCH_WAIT")
}

func TestServer_Validate(t *testing.T) {
	valid := func() *Server {
		cfg := DefaultServer()
		cfg.JWTSecret = "0123456789abcdef0123456789abcdef"
		return cfg
	}

	tests := []struct {
		name   string
		modify func(*Server)
		ok     bool
	}{
		{name: "valid", modify: func(*Server) {}, ok: true},
		{name: "short secret", modify: func(c *Server) { c.JWTSecret = "short" }},
		{name: "zero ttl", modify: func(c *Server) { c.AccessTokenTTL = 0 }},
		{name: "zero wait", modify: func(c *Server) { c.WatchWait = 0 }},
		{name: "no collections", modify: func(c *Server) { c.Collections = nil }},
		{name: "duplicate collection", modify: func(c *Server) {
			c.Collections = []Collection{{Name: "a"}, {Name: "a"}}
		}},
		{name: "unnamed collection", modify: func(c *Server) {
			c.Collections = []Collection{{Public: true}}
		}},
		{name: "relation without field", modify: func(c *Server) {
			c.Collections = []Collection{{Name: "reviews", Relations: []document.Relation{{Counter: "likes"}}}}
		}},
		{name: "counter mirrors itself", modify: func(c *Server) {
			c.Collections = []Collection{{Name: "reviews", Relations: []document.Relation{{Field: "likes", Counter: "likes"}}}}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalid)
			}
		})
	}
}

func TestRelationsOf(t *testing.T) {
	rels := RelationsOf(DefaultCollections())

	assert.Equal(t, []document.Relation{{Field: "likedBy", Counter: "likes"}}, rels["reviews"])
	assert.Equal(t, []document.Relation{{Field: "membros"}}, rels["comunidades"])
	assert.NotContains(t, rels, "livros")
}

func TestLoadClient(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server_url: https://club.example\n"), 0o600))
	t.Setenv("BOOKCLUB_CLIENT_DB", "/tmp/x.db")

	cfg, err := LoadClient(path)
	require.NoError(t, err)
	assert.Equal(t, "https://club.example", cfg.ServerURL)
	assert.Equal(t, "/tmp/x.db", cfg.DatabasePath)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name    string
		want    slog.Level
		wantErr bool
	}{
		{name: "debug", want: slog.LevelDebug},
		{name: "INFO", want: slog.LevelInfo},
		{name: "warn", want: slog.LevelWarn},
		{name: "error", want: slog.LevelError},
		{name: "loud", want: slog.LevelInfo, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLevel(tt.name)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalid)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}
