// Package cli is the command line front end of the reading club client.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/iudanet/bookclub/internal/client/api"
	"github.com/iudanet/bookclub/internal/client/auth"
	"github.com/iudanet/bookclub/internal/client/bookclub"
	"github.com/iudanet/bookclub/internal/client/iocli"
	"github.com/iudanet/bookclub/internal/client/mutation"
	"github.com/iudanet/bookclub/internal/client/storage/boltdb"
	"github.com/iudanet/bookclub/internal/config"
	"github.com/iudanet/bookclub/internal/models"
)

// PasswordEnv is the environment variable checked before any other password source
const PasswordEnv = config.EnvPrefix + "PASSWORD"

// defaultSyncWait сколько ждем первый снапшот, прежде чем читать кеш
const defaultSyncWait = 5 * time.Second

// Options are the persistent flags of the root command
type Options struct {
	ConfigPath   string
	ServerURL    string
	DBPath       string
	LogLevel     string
	Password     string
	PasswordFile string
	SyncWait     time.Duration
}

// Session is the signed-in reader the commands act as
type Session interface {
	Register(ctx context.Context, username, displayName, password string) (models.Actor, error)
	Login(ctx context.Context, username, password string) (models.Actor, error)
	Logout(ctx context.Context) error
	Current() (models.Actor, bool)
	Username() string
}

// readiness is a collection store a command reads from
type readiness interface {
	Collection() string
	WaitReady(ctx context.Context) error
}

type Cli struct {
	io      iocli.IO
	session Session
	app     *bookclub.App
	opts    Options
	closers []func()
}

// New creates a Cli writing to io. Collaborators are opened from the
// configuration when the first command runs.
func New(io iocli.IO) *Cli {
	return &Cli{io: io, opts: Options{SyncWait: defaultSyncWait}}
}

// open reads the configuration and wires the session and the collection
// stores. It is a no-op when they are already set.
func (c *Cli) open(ctx context.Context) error {
	if c.app != nil {
		return nil
	}

	cfg, err := config.LoadClient(c.opts.ConfigPath)
	if err != nil {
		return err
	}
	// Флаги имеют наивысший приоритет
	if c.opts.ServerURL != "" {
		cfg.ServerURL = c.opts.ServerURL
	}
	if c.opts.DBPath != "" {
		cfg.DatabasePath = c.opts.DBPath
	}
	if c.opts.LogLevel != "" {
		cfg.LogLevel = c.opts.LogLevel
	}

	level, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	store, err := boltdb.New(ctx, cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	c.closers = append(c.closers, func() {
		if err := store.Close(); err != nil {
			logger.Error("failed to close database", "error", err)
		}
	})

	client := api.NewClient(cfg.ServerURL)
	session := auth.NewSession(client, store, logger)
	client.SetTokenSource(session)
	if _, _, err := session.Restore(ctx); err != nil {
		logger.Warn("Failed to restore session", "error", err)
	}

	c.session = session
	c.app = bookclub.New(bookclub.Config{
		Remote:  client,
		Session: session,
		KV:      store,
		Logger:  logger,
	})
	return nil
}

// Close releases what open acquired
func (c *Cli) Close() {
	if c.app != nil {
		c.app.Stop()
	}
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}

// withApp starts the stores, waits for the ones the command reads and runs fn.
// A store that does not synchronize in time is read from the local cache.
func (c *Cli) withApp(ctx context.Context, stores []readiness, fn func(ctx context.Context) error) error {
	if err := c.app.Start(ctx); err != nil {
		c.io.Printf("⚠️  Working offline: %v\n", err)
	}
	defer c.app.Stop()

	wait := c.opts.SyncWait
	if wait <= 0 {
		wait = defaultSyncWait
	}
	waitCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	for _, s := range stores {
		if err := s.WaitReady(waitCtx); err != nil {
			c.io.Printf("⚠️  %s is not synchronized, showing cached data\n", s.Collection())
		}
	}
	return fn(ctx)
}

// withReader is withApp for commands that act as the signed-in reader
func (c *Cli) withReader(ctx context.Context, stores []readiness, fn func(ctx context.Context, actor models.Actor) error) error {
	actor, err := c.actor()
	if err != nil {
		return err
	}
	return c.withApp(ctx, stores, func(ctx context.Context) error {
		return fn(ctx, actor)
	})
}

// actor returns the signed-in reader or an error telling how to sign in
func (c *Cli) actor() (models.Actor, error) {
	actor, ok := c.session.Current()
	if !ok {
		return models.Actor{}, errNotLoggedIn
	}
	return actor, nil
}

var errNotLoggedIn = errors.New("not logged in. Please run 'bookclub login' first")

// report prints the outcome of a mutation
func (c *Cli) report(res mutation.Result, format string, args ...any) error {
	if res.Err != nil {
		if errors.Is(res.Err, mutation.ErrUnauthenticated) {
			return errNotLoggedIn
		}
		return res.Err
	}
	c.io.Printf("✓ "+format+"\n", args...)
	return nil
}

// getPassword retrieves the password from various sources with priority:
// 1. Environment variable BOOKCLUB_PASSWORD
// 2. File from --password-file
// 3. Command-line parameter --password
// 4. Interactive prompt (fallback)
func (c *Cli) getPassword(prompt string) (string, error) {
	// Priority 1: Environment variable
	if envPassword := os.Getenv(PasswordEnv); envPassword != "" {
		return envPassword, nil
	}

	// Priority 2: File
	if c.opts.PasswordFile != "" {
		content, err := os.ReadFile(c.opts.PasswordFile)
		if err != nil {
			return "", fmt.Errorf("failed to read password file: %w", err)
		}
		// Убираем trailing newline/whitespace
		password := strings.TrimSpace(string(content))
		if password == "" {
			return "", fmt.Errorf("password file is empty")
		}
		return password, nil
	}

	// Priority 3: CLI parameter
	if c.opts.Password != "" {
		return c.opts.Password, nil
	}

	// Priority 4: Interactive prompt (fallback)
	password, err := c.io.ReadPassword(prompt)
	if err != nil {
		return "", fmt.Errorf("failed to read password from stdin: %w", err)
	}
	if password == "" {
		return "", fmt.Errorf("password cannot be empty")
	}
	return password, nil
}

// isInteractive reports whether the password will be prompted for
func (c *Cli) isInteractive() bool {
	return os.Getenv(PasswordEnv) == "" && c.opts.PasswordFile == "" && c.opts.Password == ""
}
