// Package server assembles the bookclub HTTP API: routes, middleware and
// the listener lifecycle.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/iudanet/bookclub/internal/config"
	"github.com/iudanet/bookclub/internal/server/handlers"
	"github.com/iudanet/bookclub/internal/server/hub"
	"github.com/iudanet/bookclub/internal/server/middleware"
	"github.com/iudanet/bookclub/internal/server/storage"
)

// sessionPurgeInterval is how often expired sessions are purged.
const sessionPurgeInterval = time.Hour

// Storage is everything the server persists.
type Storage interface {
	storage.AccountStorage
	storage.DocumentStorage
	handlers.Pinger
}

// Server serves the bookclub API on a TCP listener. Run blocks until the
// context is cancelled and in-flight requests drain.
type Server struct {
	cfg     *config.Server
	logger  *slog.Logger
	store   Storage
	limiter *middleware.RateLimiter
	handler http.Handler
	ready   chan struct{}
	addr    net.Addr
}

// New wires handlers and middleware. cfg must be valid.
func New(cfg *config.Server, store Storage, logger *slog.Logger, version string) *Server {
	tokens := handlers.NewTokens([]byte(cfg.JWTSecret), cfg.AccessTokenTTL, cfg.RefreshTokenTTL)

	s := &Server{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		limiter: middleware.NewRateLimiter(cfg.RateLimit, cfg.RateLimitWindow, logger),
		ready:   make(chan struct{}),
	}

	authHandler := handlers.NewAuthHandler(logger, store, tokens)
	healthHandler := handlers.NewHealthHandler(logger, store, version)
	collectionsHandler := handlers.NewCollectionsHandler(logger, store, hub.New(), cfg.Collections, cfg.WatchWait)

	limited := s.limiter.Middleware()
	required := middleware.AuthMiddleware(logger, tokens)
	optional := middleware.OptionalAuth(logger, tokens)

	mux := http.NewServeMux()

	// Auth: лимит по IP против перебора паролей
	mux.Handle("POST /api/v1/auth/register", limited(http.HandlerFunc(authHandler.Register)))
	mux.Handle("GET /api/v1/auth/salt/{username}", limited(http.HandlerFunc(authHandler.GetSalt)))
	mux.Handle("POST /api/v1/auth/login", limited(http.HandlerFunc(authHandler.Login)))
	mux.Handle("POST /api/v1/auth/refresh", limited(http.HandlerFunc(authHandler.Refresh)))
	mux.Handle("POST /api/v1/auth/logout", required(http.HandlerFunc(authHandler.Logout)))

	mux.HandleFunc("GET /api/v1/health", healthHandler.Health)

	// Публичные коллекции читаются без токена, остальное проверяет handler
	mux.Handle("POST /api/v1/collections/{collection}/watch", optional(http.HandlerFunc(collectionsHandler.Watch)))
	mux.Handle("POST /api/v1/collections/{collection}/documents", required(http.HandlerFunc(collectionsHandler.Create)))
	mux.Handle("PATCH /api/v1/collections/{collection}/documents/{id}", required(http.HandlerFunc(collectionsHandler.Update)))
	mux.Handle("DELETE /api/v1/collections/{collection}/documents/{id}", required(http.HandlerFunc(collectionsHandler.Delete)))

	// Цепочка: recovery -> logging -> mux
	s.handler = middleware.RecoveryMiddleware(logger)(
		middleware.LoggingWithSkip(logger, []string{"/api/v1/health"})(mux),
	)

	return s
}

// Handler returns the complete HTTP handler
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Ready is closed once the listener is bound
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Addr returns the resolved listen address. Only valid after Ready is closed.
func (s *Server) Addr() net.Addr {
	return s.addr
}

// Run listens on cfg.Address and serves until ctx is cancelled.
// Long-poll watches end with 204 as soon as shutdown starts.
func (s *Server) Run(ctx context.Context) error {
	defer s.limiter.Stop()

	listener, err := net.Listen("tcp", s.cfg.Address)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.Address, err)
	}
	s.addr = listener.Addr()
	close(s.ready)

	g, gctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Watch держит ответ до WatchWait
		WriteTimeout: s.cfg.WatchWait + 30*time.Second,
		IdleTimeout:  2 * time.Minute,
		BaseContext: func(net.Listener) context.Context {
			return gctx
		},
	}

	s.logger.Info("http server listening", "address", s.addr.String())

	g.Go(func() error {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("http server shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("http server shutdown error", "error", err)
			return fmt.Errorf("http server shutdown: %w", err)
		}
		s.logger.Info("http server stopped")
		return nil
	})

	g.Go(func() error {
		s.purgeSessions(gctx)
		return nil
	})

	return g.Wait()
}

// purgeSessions periodically removes expired refresh sessions
func (s *Server) purgeSessions(ctx context.Context) {
	ticker := time.NewTicker(sessionPurgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := s.store.PurgeSessions(ctx, now)
			if err != nil {
				if ctx.Err() == nil {
					s.logger.Error("failed to purge sessions", "error", err)
				}
				continue
			}
			if n > 0 {
				s.logger.Info("expired sessions purged", "count", n)
			}
		}
	}
}
