// Package server assembles the HTTP server and its background workers.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/hrygo/libris/internal/profile"
	"github.com/hrygo/libris/plugin/notify"
	"github.com/hrygo/libris/server/internal/observability"
	ratelimit "github.com/hrygo/libris/server/middleware"
	apiv1 "github.com/hrygo/libris/server/router/api/v1"
	"github.com/hrygo/libris/server/service/library"
	"github.com/hrygo/libris/store"
	"github.com/hrygo/libris/store/cache"
)

type Server struct {
	Profile *profile.Profile
	Store   *store.Store
	Cache   *cache.Cache[any]
	Library *library.Service
	Metrics *observability.Metrics

	logger     *slog.Logger
	echoServer *echo.Echo
	cancel     context.CancelFunc
	group      *errgroup.Group
}

// NewServer wires the cache, library service and REST routes over store.
func NewServer(_ context.Context, profile *profile.Profile, store *store.Store, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	metrics := observability.NewMetrics(1000)
	engine, err := cache.New[any](cache.Config{
		Capacity:   profile.CacheCapacity,
		DefaultTTL: profile.CacheDefaultTTL,
		Metrics:    metrics,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create cache")
	}
	svc := library.NewService(store, library.NewCache(engine, logger), notify.NewMockNotifier(logger), library.WithLogger(logger))

	s := &Server{
		Profile: profile,
		Store:   store,
		Cache:   engine,
		Library: svc,
		Metrics: metrics,
		logger:  logger,
	}

	echoServer := echo.New()
	echoServer.HideBanner = true
	echoServer.HidePort = true
	echoServer.HTTPErrorHandler = apiv1.HTTPErrorHandler(logger)
	echoServer.Use(middleware.Recover())
	echoServer.Use(observability.RequestLogger(logger, metrics))
	echoServer.Use(ratelimit.RateLimit(ratelimit.NewRateLimiter(profile.RateLimit, profile.RateBurst)))
	s.echoServer = echoServer

	apiv1.NewAPIV1Service(profile, svc, metrics).RegisterRoutes(echoServer)
	return s, nil
}

// Start listens on the configured address and starts the cache sweeper.
// It returns once the listener is bound.
func (s *Server) Start(ctx context.Context) error {
	address := fmt.Sprintf("%s:%d", s.Profile.Addr, s.Profile.Port)
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return errors.Wrap(err, "failed to start server")
	}
	s.echoServer.Listener = listener

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	g, ctx := errgroup.WithContext(ctx)
	s.group = g

	g.Go(func() error {
		if err := s.echoServer.Start(address); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "http server")
		}
		return nil
	})
	if s.Profile.CacheSweepInterval > 0 {
		sweeper := cache.NewSweeper(s.Cache, s.Profile.CacheSweepInterval, s.logger)
		g.Go(func() error {
			return sweeper.Run(ctx)
		})
	}

	s.logger.Info("libris started",
		slog.String("address", listener.Addr().String()),
		slog.String("mode", s.Profile.Mode),
		slog.String("version", s.Profile.Version),
	)
	return nil
}

// Wait blocks until the server and its workers have stopped.
func (s *Server) Wait() error {
	if s.group == nil {
		return nil
	}
	return s.group.Wait()
}

// Shutdown stops accepting requests, stops background workers and closes the store.
func (s *Server) Shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	s.logger.Info("server shutting down")
	if err := s.echoServer.Shutdown(ctx); err != nil {
		s.logger.Error("failed to shutdown server", slog.String("error", err.Error()))
	}
	if s.cancel != nil {
		s.cancel()
	}
	if err := s.Wait(); err != nil {
		s.logger.Error("background worker failed", slog.String("error", err.Error()))
	}
	if err := s.Store.Close(); err != nil {
		s.logger.Error("failed to close database", slog.String("error", err.Error()))
	}
	s.logger.Info("libris stopped properly")
}

// Handler exposes the HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echoServer
}
