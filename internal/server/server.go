package server

import (
	"context"
	"time"

	"github.com/GriffinCanCode/SessionOS/backend/internal/config"
	"github.com/GriffinCanCode/SessionOS/backend/internal/gateway"
	"github.com/GriffinCanCode/SessionOS/backend/internal/http"
	"github.com/GriffinCanCode/SessionOS/backend/internal/logging"
	"github.com/GriffinCanCode/SessionOS/backend/internal/middleware"
	"github.com/GriffinCanCode/SessionOS/backend/internal/monitoring"
	"github.com/GriffinCanCode/SessionOS/backend/internal/registry"
	"github.com/GriffinCanCode/SessionOS/backend/internal/session"
	"github.com/GriffinCanCode/SessionOS/backend/internal/ws"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server wraps the HTTP server and dependencies
type Server struct {
	router   *gin.Engine
	log      *logging.Logger
	gateway  *gateway.Client
	specs    *gateway.SpecRegistry
	registry *registry.Manager
	hub      *ws.Hub
	cancel   context.CancelFunc
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config, log *logging.Logger) (*Server, error) {
	ctx, cancel := context.WithCancel(context.Background())

	// Gateway client and kernelspec cache
	client := gateway.NewClient(cfg.Gateway, log)
	specs := gateway.NewSpecRegistry(client, cfg.Gateway.SpecsRefresh, log)
	specs.Start(ctx)

	metrics := monitoring.NewMetrics()
	hub := ws.NewHub(log, metrics)

	deps := session.Deps{
		Directory: client,
		Specs:     specs,
		Prompter:  hub,
		Confirmer: hub,
		Leases:    monitoring.NewLeaseProvider(metrics),
		Reporter:  hub,
		Logger:    log,
	}
	sessions := registry.NewManager(deps, cfg.Session, metrics, log)

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	if cfg.RateLimit.Enabled {
		router.Use(middleware.RateLimit(cfg.RateLimit))
	}
	router.Use(monitoring.Middleware(metrics))

	handlers := http.NewHandlers(sessions, specs, metrics, hub.Forward)

	// Health and metrics
	router.GET("/", handlers.Root)
	router.GET("/health", handlers.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Session collection
	router.GET("/sessions", handlers.ListSessions)
	router.POST("/sessions", handlers.CreateSession)

	// Single-session operations, keyed by ?path=
	router.GET("/session", handlers.GetSession)
	router.DELETE("/session", handlers.DeleteSession)
	router.POST("/session/change-kernel", handlers.ChangeKernel)
	router.POST("/session/select-kernel", handlers.SelectKernel)
	router.POST("/session/restart", handlers.RestartKernel)
	router.POST("/session/shutdown", handlers.ShutdownSession)

	// Kernelspec inspection
	router.GET("/kernelspecs", handlers.ListKernelSpecs)

	// WebSocket
	router.GET("/ws", hub.HandleConnection)

	return &Server{
		router:   router,
		log:      log,
		gateway:  client,
		specs:    specs,
		registry: sessions,
		hub:      hub,
		cancel:   cancel,
	}, nil
}

// Run starts the server
func (s *Server) Run(addr string) error {
	s.log.Info("Starting session service", zap.String("addr", addr))
	return s.router.Run(addr)
}

// Close cleans up resources
func (s *Server) Close() error {
	s.cancel()
	s.specs.Close()
	s.registry.Close()
	return nil
}

func corsMiddleware() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	})
}
