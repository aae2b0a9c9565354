package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"verity-ai-gateway/config"
	"verity-ai-gateway/internal/pkg/logger"
	"verity-ai-gateway/internal/services"
)

// HealthChecker is implemented by every service that can report liveness.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

type Server struct {
	cfg        *config.Config
	httpServer *http.Server
	logger     *logger.Logger
}

func New(cfg *config.Config, orchestrator *services.Orchestrator, checkers map[string]HealthChecker, log *logger.Logger) *Server {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(log))

	handler := newChatHandler(orchestrator, log)
	api := engine.Group("/api")
	api.POST("/chat", handler.Chat)

	engine.GET("/health", healthHandler(checkers))

	return &Server{
		cfg:    cfg,
		logger: log,
		httpServer: &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           engine,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Handler exposes the routed handler, used by tests and embedding callers.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) Start() error {
	s.logger.Info("http server starting", "port", s.cfg.Port, "environment", s.cfg.Environment)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}

func requestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}

func healthHandler(checkers map[string]HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		status := http.StatusOK
		report := make(map[string]string, len(checkers))
		for name, checker := range checkers {
			if err := checker.HealthCheck(ctx); err != nil {
				report[name] = err.Error()
				status = http.StatusServiceUnavailable
			} else {
				report[name] = "ok"
			}
		}
		c.JSON(status, gin.H{"status": http.StatusText(status), "services": report})
	}
}
