package server

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	apihttp "github.com/agentfs/agentfs/internal/api/http"
	"github.com/agentfs/agentfs/internal/api/middleware"
	"github.com/agentfs/agentfs/internal/backend"
	"github.com/agentfs/agentfs/internal/backend/composite"
	"github.com/agentfs/agentfs/internal/backend/disk"
	"github.com/agentfs/agentfs/internal/backend/memory"
	"github.com/agentfs/agentfs/internal/backend/sandbox"
	"github.com/agentfs/agentfs/internal/infrastructure/config"
	"github.com/agentfs/agentfs/internal/infrastructure/logging"
	"github.com/agentfs/agentfs/internal/infrastructure/monitoring"
)

// Server wraps the HTTP server and dependencies
type Server struct {
	router    *gin.Engine
	backend   backend.Backend
	sandboxes *sandbox.Manager
	logger    *zap.Logger
	config    *config.Config
	metrics   *monitoring.Metrics
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config) (*Server, error) {
	// Initialize logger
	logger := buildLogger(cfg.Logging)

	logger.Info("Initializing agentfs server",
		zap.String("port", cfg.Server.Port),
		zap.String("mounts", cfg.MountsPath),
	)

	// Initialize metrics first (needed by other components)
	metrics := monitoring.NewMetrics()

	// Load the mount table and assemble the backend topology
	mounts := config.DefaultMounts()
	if cfg.MountsPath != "" {
		loaded, err := config.LoadMounts(cfg.MountsPath)
		if err != nil {
			return nil, fmt.Errorf("load mounts: %w", err)
		}
		mounts = loaded
	}
	b, err := BuildBackend(mounts)
	if err != nil {
		return nil, fmt.Errorf("build backend: %w", err)
	}
	logger.Info("Storage topology assembled",
		zap.String("default", mounts.Default.Kind),
		zap.Int("mounts", len(mounts.Mounts)),
	)

	// Initialize the sandbox manager
	sandboxCfg := sandbox.Config{
		Timeout:        time.Duration(cfg.Sandbox.CommandTimeoutSeconds) * time.Second,
		MaxOutputBytes: cfg.Sandbox.MaxOutputBytes,
	}
	sandboxes := sandbox.NewManager(sandboxCfg, logger)
	if cfg.Sandbox.DockerImage != "" {
		sandboxes = sandboxes.WithDocker(cfg.Sandbox.DockerImage)
		logger.Info("Sandboxes will run in containers",
			zap.String("image", cfg.Sandbox.DockerImage),
		)
	}

	// Create router
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Add middleware
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}

	// Create handlers
	handlers := apihttp.NewHandlers(b, sandboxes, metrics, logger)

	// Register routes
	router.GET("/", handlers.Root)
	router.GET("/health", handlers.Health)

	// File contract
	v1 := router.Group("/v1")
	v1.GET("/fs/list", handlers.List)
	v1.GET("/fs/read", handlers.Read)
	v1.POST("/fs/write", handlers.Write)
	v1.POST("/fs/edit", handlers.Edit)
	v1.GET("/fs/glob", handlers.Glob)
	v1.GET("/fs/grep", handlers.Grep)

	// Sandbox lifecycle
	v1.POST("/sandboxes", handlers.CreateSandbox)
	v1.GET("/sandboxes", handlers.ListSandboxes)
	v1.POST("/sandboxes/:id/execute", handlers.ExecuteInSandbox)
	v1.DELETE("/sandboxes/:id", handlers.StopSandbox)

	// Metrics endpoints
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/metrics/json", handlers.MetricsJSON)

	logger.Info("Server initialized successfully")

	return &Server{
		router:    router,
		backend:   b,
		sandboxes: sandboxes,
		logger:    logger,
		config:    cfg,
		metrics:   metrics,
	}, nil
}

// buildLogger honors the configured level and mode, falling back to the
// default production logger when the level does not parse.
func buildLogger(cfg config.LogConfig) *zap.Logger {
	logger, err := logging.New(logging.Config{
		Level:       cfg.Level,
		Development: cfg.Development,
	})
	if err != nil {
		return logging.NewDefault()
	}
	return logger
}

// BuildBackend assembles the storage topology described by a mount table.
// With no mounts the default backend serves everything directly; otherwise
// it becomes the fallback of a composite router.
func BuildBackend(mounts *config.MountTable) (backend.Backend, error) {
	fallback, err := buildOne(mounts.Default.Kind, mounts.Default.Root, false)
	if err != nil {
		return nil, fmt.Errorf("default backend: %w", err)
	}
	if len(mounts.Mounts) == 0 {
		return fallback, nil
	}

	routes := make([]composite.Route, 0, len(mounts.Mounts))
	for _, m := range mounts.Mounts {
		b, err := buildOne(m.Kind, m.Root, m.Virtual)
		if err != nil {
			return nil, fmt.Errorf("mount %s: %w", m.Prefix, err)
		}
		routes = append(routes, composite.Route{Prefix: m.Prefix, Backend: b})
	}
	return composite.New(fallback, routes...), nil
}

func buildOne(kind, root string, virtual bool) (backend.Backend, error) {
	switch kind {
	case "memory":
		return memory.New(), nil
	case "disk":
		if virtual {
			return disk.New(root, disk.WithVirtualMode())
		}
		return disk.New(root)
	default:
		return nil, fmt.Errorf("unknown backend kind %q", kind)
	}
}

// Router exposes the gin engine for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Run starts the HTTP server
func (s *Server) Run() error {
	addr := s.config.Server.Host + ":" + s.config.Server.Port
	s.logger.Info("Starting HTTP server", zap.String("addr", addr))
	return s.router.Run(addr)
}

// Close gracefully shuts down the server
func (s *Server) Close() error {
	s.logger.Info("Shutting down server...")

	// Stop every live sandbox before exit
	s.sandboxes.CloseAll()

	// Sync logger before exit
	s.logger.Sync()

	return nil
}
