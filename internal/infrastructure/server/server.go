package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	apihttp "github.com/blitzwolfz/aion-terminal/internal/api/http"
	"github.com/blitzwolfz/aion-terminal/internal/api/middleware"
	"github.com/blitzwolfz/aion-terminal/internal/api/ws"
	"github.com/blitzwolfz/aion-terminal/internal/domain/scraper"
	"github.com/blitzwolfz/aion-terminal/internal/domain/terminal"
	"github.com/blitzwolfz/aion-terminal/internal/infrastructure/config"
	"github.com/blitzwolfz/aion-terminal/internal/infrastructure/logging"
	"github.com/blitzwolfz/aion-terminal/internal/infrastructure/monitoring"
	"github.com/blitzwolfz/aion-terminal/internal/infrastructure/process"
	"github.com/blitzwolfz/aion-terminal/internal/infrastructure/shell"
	"github.com/blitzwolfz/aion-terminal/internal/infrastructure/store"
)

// ShutdownTimeout bounds Run's graceful shutdown once its context ends.
const ShutdownTimeout = 10 * time.Second

// Server wraps the HTTP server and dependencies
type Server struct {
	config  *config.Config
	logger  *logging.Logger
	metrics *monitoring.Metrics

	router     *gin.Engine
	httpServer *http.Server

	store   *store.Store
	shells  *shell.Resolver
	hub     *ws.Hub
	manager *terminal.Manager

	stopWatch context.CancelFunc
	watchDone chan struct{}

	closeOnce sync.Once
	closeErr  error
}

// New creates a new server instance. cfg paths must already be resolved.
func New(cfg *config.Config, logger *logging.Logger) (*Server, error) {
	if logger == nil {
		logger = logging.FromLevel(cfg.Logging.Level, cfg.Logging.Development)
	}

	logger.Info("Initializing terminal backend",
		zap.String("addr", cfg.Server.Host+":"+cfg.Server.Port),
		zap.String("db", cfg.Store.Path),
		zap.String("shell_config", cfg.Shell.ConfigPath),
	)

	// Metrics live on a private registry next to the runtime collectors
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := monitoring.NewMetrics(registry)

	usage, err := store.Open(cfg.Store.Path)
	if err != nil {
		return nil, err
	}

	shells, err := shell.NewResolver(cfg.Shell.ConfigPath, logger.Component("shell"))
	if err != nil {
		usage.Close()
		return nil, err
	}

	scr := scraper.New(usage, scraper.Options{
		Agent:          cfg.Scraper.Agent,
		PersistTimeout: cfg.Scraper.PersistTimeout,
		Logger:         logger.Component("scraper"),
		Recorder:       metrics,
	})

	hub := ws.NewHub(ws.HubOptions{
		Recorder: metrics,
		Logger:   logger.Component("ws"),
	})

	manager := terminal.NewManager(process.NewSpawner(), shells, terminal.Options{
		Sink:           hub,
		Ingester:       scr,
		Recorder:       metrics,
		Logger:         logger.Component("terminal"),
		DefaultCols:    cfg.Terminal.DefaultCols,
		DefaultRows:    cfg.Terminal.DefaultRows,
		KillGrace:      cfg.Terminal.KillGrace,
		DrainTimeout:   cfg.Terminal.DrainTimeout,
		ReadBufferSize: cfg.Terminal.ReadBufferSize,
	})

	// Create router
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Add middleware
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(logger.Component("http")))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		rl := middleware.DefaultRateLimitConfig()
		rl.RequestsPerSecond = cfg.RateLimit.RequestsPerSecond
		rl.Burst = cfg.RateLimit.Burst
		router.Use(middleware.RateLimit(rl))
	}

	// Register routes
	handlers := apihttp.NewHandlers(manager, usage, shells, metrics, logger.Component("http"))
	handlers.Register(router)

	wsHandler := ws.NewHandler(hub, manager, logger.Component("ws"))
	router.GET("/stream", wsHandler.HandleConnection)

	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})))

	s := &Server{
		config:  cfg,
		logger:  logger,
		metrics: metrics,
		router:  router,
		httpServer: &http.Server{
			Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		store:     usage,
		shells:    shells,
		hub:       hub,
		manager:   manager,
		stopWatch: func() {},
		watchDone: make(chan struct{}),
	}

	if cfg.Shell.Watch {
		var watchCtx context.Context
		watchCtx, s.stopWatch = context.WithCancel(context.Background())
		go func() {
			defer close(s.watchDone)
			if err := shells.Watch(watchCtx); err != nil {
				logger.Warn("Shell config watcher stopped", zap.Error(err))
			}
		}()
	} else {
		close(s.watchDone)
	}

	logger.Info("Server initialized successfully")
	return s, nil
}

// Handler returns the HTTP handler, for embedding and tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run listens on the configured address and serves until ctx ends, then
// shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx ends or the server fails.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.logger.Info("Starting HTTP server", zap.String("addr", ln.Addr().String()))

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		closeCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return errors.Join(fmt.Errorf("http server: %w", err), s.Close(closeCtx))
	case <-ctx.Done():
	}

	closeCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	return s.Close(closeCtx)
}

// Close gracefully shuts down the server: websocket clients first, then
// HTTP, then every live session, then the store.
func (s *Server) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		s.logger.Info("Shutting down server...")

		var errs []error

		// Hijacked websocket connections are not covered by http.Server.Shutdown
		s.hub.Close()

		if err := s.httpServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}

		if err := s.manager.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("session shutdown: %w", err))
		}
		s.logger.Info("Terminal sessions closed")

		s.stopWatch()
		<-s.watchDone

		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close store: %w", err))
		}

		// Sync logger before exit
		_ = s.logger.Sync()

		s.closeErr = errors.Join(errs...)
	})
	return s.closeErr
}
