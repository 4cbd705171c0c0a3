package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sam-thetutor/herlock/internal/config"
	"github.com/sam-thetutor/herlock/internal/handlers"
	"github.com/sam-thetutor/herlock/internal/ledger"
	"github.com/sam-thetutor/herlock/internal/middleware"
	"github.com/sam-thetutor/herlock/internal/services"
	"github.com/sam-thetutor/herlock/internal/session"
	"github.com/sam-thetutor/herlock/pkg/logger"
	"github.com/sam-thetutor/herlock/pkg/metrics"
	"github.com/sam-thetutor/herlock/pkg/ratelimiter"
)

// Server represents the main application server
type Server struct {
	httpServer     *http.Server
	config         *config.Config
	sessionService *services.SessionService
	ledgerClient   *ledger.Client
	sessionManager *session.Manager
	healthService  *services.HealthService
	collector      *metrics.Collector
	rateLimiter    *ratelimiter.RateLimiter
	router         *handlers.Router
}

func main() {
	cfg := config.LoadConfig()

	loggerConfig := &logger.Config{
		Level:       cfg.Logging.Level,
		Environment: cfg.Logging.Environment,
		OutputPaths: cfg.Logging.OutputPaths,
	}
	if err := logger.Initialize(loggerConfig); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	log := logger.GetLogger()

	log.Info("Starting herlock gateway",
		zap.String("host", cfg.Server.Host),
		zap.String("port", cfg.Server.Port),
		zap.String("ledger_endpoint", cfg.Ledger.Endpoint),
		zap.String("mongodb_uri", cfg.MongoDB.URI),
		zap.Int("rate_limit_rpm", cfg.RateLimit.RequestsPerMinute),
		zap.String("environment", cfg.Logging.Environment),
	)

	server, err := NewServer(cfg)
	if err != nil {
		log.Fatal("Failed to create server", zap.Error(err))
	}

	if err := server.Start(); err != nil {
		log.Fatal("Server failed to start", zap.Error(err))
	}
}

// NewServer creates a new server instance with all dependencies
func NewServer(cfg *config.Config) (*Server, error) {
	log := logger.GetLogger()

	log.Info("Initializing server components")

	collector := metrics.NewCollector()

	log.Debug("Initializing session service")
	sessionService, err := services.NewSessionService(&cfg.MongoDB, &cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize session service: %w", err)
	}

	log.Debug("Initializing ledger client")
	ledgerClient := ledger.NewClient(&cfg.Ledger, collector)

	sessionManager := session.NewManager(ledgerClient, &cfg.Cache, collector, log)

	healthService := services.NewHealthService(sessionService, ledgerClient)
	if check := healthService.CheckLedger(); check.Status != services.HealthStatusHealthy {
		log.Warn("Ledger health check failed", zap.String("message", check.Message))
	} else {
		log.Info("Ledger connection healthy")
	}

	rateLimiter := ratelimiter.New(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.WindowSize)

	healthHandler := handlers.NewHealthHandler(healthService, collector)
	router := handlers.NewRouter(ledgerClient, sessionService, sessionManager, healthHandler)

	log.Info("Server components initialized successfully")

	return &Server{
		config:         cfg,
		sessionService: sessionService,
		ledgerClient:   ledgerClient,
		sessionManager: sessionManager,
		healthService:  healthService,
		collector:      collector,
		rateLimiter:    rateLimiter,
		router:         router,
	}, nil
}

// Start starts the HTTP server with graceful shutdown handling
func (s *Server) Start() error {
	log := logger.GetLogger()

	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	s.setupMiddleware(engine)

	s.router.SetupHealthRoutes(engine)
	s.router.SetupRoutes(engine)

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", s.config.Server.Host, s.config.Server.Port),
		Handler:           engine,
		ReadTimeout:       s.config.Server.ReadTimeout,
		WriteTimeout:      s.config.Server.WriteTimeout,
		IdleTimeout:       s.config.Server.IdleTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	log.Info("HTTP server configured",
		zap.String("address", s.httpServer.Addr),
		zap.Duration("read_timeout", s.config.Server.ReadTimeout),
		zap.Duration("write_timeout", s.config.Server.WriteTimeout),
	)

	s.startCleanupRoutines()

	go func() {
		log.Info("Starting HTTP server", zap.String("address", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	return s.waitForShutdown()
}

// setupMiddleware configures the middleware stack
func (s *Server) setupMiddleware(engine *gin.Engine) {
	engine.Use(logger.RecoveryMiddleware())
	engine.Use(logger.LoggingMiddleware())
	engine.Use(middleware.PerformanceMiddleware(s.collector))
	engine.Use(s.corsMiddleware())
	engine.Use(s.rateLimiter.Middleware())
}

// corsMiddleware adds CORS headers for the dashboard origin
func (s *Server) corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

// startCleanupRoutines starts background cleanup tasks: rate limiter
// window expiry and stale session reaping
func (s *Server) startCleanupRoutines() {
	log := logger.GetLogger()

	go func() {
		ticker := time.NewTicker(s.config.RateLimit.CleanupInterval)
		defer ticker.Stop()
		for range ticker.C {
			s.rateLimiter.Cleanup()
		}
	}()

	go func() {
		ticker := time.NewTicker(s.config.Cache.SessionCleanupInterval)
		defer ticker.Stop()
		for range ticker.C {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			removed, err := s.sessionService.CleanupStale(ctx, s.config.Cache.SessionInactivityLimit)
			if err != nil {
				cancel()
				log.Error("Session cleanup failed", zap.Error(err))
				continue
			}

			// evict live contexts whose records the cleanup just removed,
			// otherwise their caches and pollers outlive the session
			survivors, err := s.sessionService.ActiveSessionIDs(ctx)
			cancel()
			if err != nil {
				log.Error("Active session lookup failed", zap.Error(err))
				continue
			}
			evicted := s.sessionManager.EvictExcept(func(id string) bool {
				_, ok := survivors[id]
				return ok
			})
			if removed > 0 || evicted > 0 {
				log.Info("Reaped stale sessions",
					zap.Int64("records", removed),
					zap.Int("contexts", evicted),
				)
			}
		}
	}()

	log.Info("Background cleanup routines started")
}

// waitForShutdown waits for interrupt signal and performs graceful shutdown
func (s *Server) waitForShutdown() error {
	log := logger.GetLogger()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	log.Info("Received shutdown signal", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
		return err
	}

	s.cleanup()

	log.Info("Server gracefully stopped")
	return nil
}

// cleanup tears down sessions and closes upstream connections
func (s *Server) cleanup() {
	log := logger.GetLogger()

	log.Info("Cleaning up services...")

	if s.sessionManager != nil {
		s.sessionManager.CloseAll()
	}

	if s.sessionService != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := s.sessionService.Close(ctx); err != nil {
			log.Error("Error closing session service", zap.Error(err))
		}
		cancel()
	}

	if err := logger.GetLogger().Sync(); err != nil {
		fmt.Printf("Error syncing logger: %v\n", err)
	}

	log.Info("Cleanup completed")
}
