// Package config loads server and client settings. Values come from
// built-in defaults, then an optional YAML file, then BOOKCLUB_*
// environment variables. Command-line flags are applied by the caller last.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/iudanet/bookclub/internal/document"
)

// EnvPrefix is the prefix of every environment override
const EnvPrefix = "BOOKCLUB_"

// ErrInvalid is returned when a loaded configuration cannot be used
var ErrInvalid = errors.New("invalid configuration")

// Collection describes one remote collection served by the server.
type Collection struct {
	Name string `yaml:"name"`
	// Relations are the arrays other readers may join or leave
	Relations []document.Relation `yaml:"relations,omitempty"`
	// Public collections are readable without a token
	Public bool `yaml:"public"`
}

// Server is the configuration of cmd/server.
type Server struct {
	Address         string        `yaml:"address"`
	DatabasePath    string        `yaml:"database_path"`
	JWTSecret       string        `yaml:"jwt_secret"`
	LogLevel        string        `yaml:"log_level"`
	Collections     []Collection  `yaml:"collections"`
	AccessTokenTTL  time.Duration `yaml:"access_token_ttl"`
	RefreshTokenTTL time.Duration `yaml:"refresh_token_ttl"`
	RateLimitWindow time.Duration `yaml:"rate_limit_window"`
	WatchWait       time.Duration `yaml:"watch_wait"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	RateLimit       int           `yaml:"rate_limit"`
}

// Client is the configuration of cmd/client.
type Client struct {
	ServerURL    string `yaml:"server_url"`
	DatabasePath string `yaml:"database_path"`
	LogLevel     string `yaml:"log_level"`
}

// DefaultCollections is the catalogue of the reading club.
func DefaultCollections() []Collection {
	return []Collection{
		{Name: "reviews", Relations: []document.Relation{{Field: "likedBy", Counter: "likes"}}},
		{Name: "comunidades", Relations: []document.Relation{{Field: "membros"}}},
		{Name: "eventos", Public: true},
		{Name: "citacoes"},
		{Name: "favorites"},
		{Name: "livros", Public: true},
		{Name: "stickers"},
		{Name: "progress"},
	}
}

// RelationsOf returns the relations of every collection by name.
func RelationsOf(collections []Collection) map[string][]document.Relation {
	out := make(map[string][]document.Relation, len(collections))
	for _, c := range collections {
		if len(c.Relations) > 0 {
			out[c.Name] = c.Relations
		}
	}
	return out
}

// DefaultServer returns the built-in server configuration.
func DefaultServer() *Server {
	return &Server{
		Address:         ":8080",
		DatabasePath:    "bookclub.db",
		LogLevel:        "info",
		Collections:     DefaultCollections(),
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 30 * 24 * time.Hour,
		RateLimit:       100,
		RateLimitWindow: time.Minute,
		WatchWait:       25 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

// DefaultClient returns the built-in client configuration.
func DefaultClient() *Client {
	return &Client{
		ServerURL:    "http://localhost:8080",
		DatabasePath: "bookclub-client.db",
		LogLevel:     "warn",
	}
}

// LoadServer reads path (if not empty) over the defaults and applies the
// environment.
func LoadServer(path string) (*Server, error) {
	cfg := DefaultServer()
	if err := loadFile(path, cfg); err != nil {
		return nil, err
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadClient reads path (if not empty) over the defaults and applies the
// environment.
func LoadClient(path string) (*Client, error) {
	cfg := DefaultClient()
	if err := loadFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.applyEnv(os.LookupEnv)
	return cfg, nil
}

func loadFile(path string, into any) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, into); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}

type lookupFunc func(string) (string, bool)

func (c *Server) applyEnv(lookup lookupFunc) error {
	setString(lookup, "ADDRESS", &c.Address)
	setString(lookup, "DATABASE_PATH", &c.DatabasePath)
	setString(lookup, "JWT_SECRET", &c.JWTSecret)
	setString(lookup, "LOG_LEVEL", &c.LogLevel)

	for name, dst := range map[string]*time.Duration{
		"ACCESS_TOKEN_TTL":  &c.AccessTokenTTL,
		"REFRESH_TOKEN_TTL": &c.RefreshTokenTTL,
		"RATE_LIMIT_WINDOW": &c.RateLimitWindow,
		"WATCH_WAIT":        &c.WatchWait,
		"SHUTDOWN_TIMEOUT":  &c.ShutdownTimeout,
	} {
		v, ok := lookup(EnvPrefix + name)
		if !ok {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
		}
		*dst = d
	}

	if v, ok := lookup(EnvPrefix + "RATE_LIMIT"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sRATE_LIMIT: %w", EnvPrefix, err)
		}
		c.RateLimit = n
	}
	return nil
}

func (c *Client) applyEnv(lookup lookupFunc) {
	setString(lookup, "SERVER_URL", &c.ServerURL)
	setString(lookup, "CLIENT_DB", &c.DatabasePath)
	setString(lookup, "LOG_LEVEL", &c.LogLevel)
}

func setString(lookup lookupFunc, name string, dst *string) {
	if v, ok := lookup(EnvPrefix + name); ok && v != "" {
		*dst = v
	}
}

// Validate checks that the server can start with this configuration.
func (c *Server) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("%w: jwt secret is required", ErrInvalid)
	}
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("%w: jwt secret must be at least 32 bytes", ErrInvalid)
	}
	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 {
		return fmt.Errorf("%w: token lifetimes must be positive", ErrInvalid)
	}
	if c.WatchWait <= 0 {
		return fmt.Errorf("%w: watch wait must be positive", ErrInvalid)
	}
	if len(c.Collections) == 0 {
		return fmt.Errorf("%w: no collections configured", ErrInvalid)
	}
	seen := make(map[string]bool, len(c.Collections))
	for _, col := range c.Collections {
		if col.Name == "" {
			return fmt.Errorf("%w: collection without a name", ErrInvalid)
		}
		if seen[col.Name] {
			return fmt.Errorf("%w: duplicate collection %q", ErrInvalid, col.Name)
		}
		seen[col.Name] = true
		for _, rel := range col.Relations {
			if rel.Field == "" || rel.Field == rel.Counter {
				return fmt.Errorf("%w: collection %q has an invalid relation", ErrInvalid, col.Name)
			}
		}
	}
	return nil
}

// ParseLevel converts a log level name (debug, info, warn, error) to slog.Level.
func ParseLevel(name string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return slog.LevelInfo, fmt.Errorf("%w: log level %q", ErrInvalid, name)
	}
	return level, nil
}
