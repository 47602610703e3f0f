package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/isdmx/codelab/config"
	"github.com/isdmx/codelab/explain"
	"github.com/isdmx/codelab/sandbox"
)

// Server is the HTTP API server
type Server struct {
	config     *config.Config
	logger     *zap.Logger
	executor   sandbox.Executor
	explainer  explain.Explainer
	mcpHandler http.Handler
	router     *gin.Engine
	httpServer *http.Server
}

// Option customizes a Server
type Option func(*Server)

// WithMCPHandler mounts an MCP transport at /mcp
func WithMCPHandler(h http.Handler) Option {
	return func(s *Server) {
		s.mcpHandler = h
	}
}

// New creates the HTTP server and registers its routes
func New(cfg *config.Config, logger *zap.Logger, executor sandbox.Executor, explainer explain.Explainer, opts ...Option) *Server {
	s := &Server{
		config:    cfg,
		logger:    logger.Named("http"),
		executor:  executor,
		explainer: explainer,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.router = s.routes()
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		// an execution may compile and run, each bounded by the sandbox timeout
		WriteTimeout: 2*cfg.GetTimeout() + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s
}

func (s *Server) routes() *gin.Engine {
	router := gin.New()
	// only listed proxies may set the client address used for rate limiting
	if err := router.SetTrustedProxies(s.config.Server.TrustedProxies); err != nil {
		s.logger.Error("invalid trusted proxies, forwarding headers ignored", zap.Error(err))
		_ = router.SetTrustedProxies(nil)
	}
	router.Use(
		s.recovery(),
		requestID(),
		s.accessLog(),
		cors.New(cors.Config{
			AllowAllOrigins: true,
			AllowMethods:    []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowHeaders:    []string{"Origin", "Content-Length", "Content-Type", "Authorization", RequestIDHeader},
			ExposeHeaders:   []string{RequestIDHeader},
			MaxAge:          12 * time.Hour,
		}),
	)

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	if s.config.RateLimit.Enabled {
		limiter := NewIPRateLimiter(s.config.RateLimit.RequestsPerSecond, s.config.RateLimit.Burst)
		api.Use(limiter.Middleware())
	}
	api.POST("/execute", s.handleExecute)
	api.POST("/explain", s.handleExplain)

	if s.mcpHandler != nil {
		router.Any("/mcp", gin.WrapH(s.mcpHandler))
	}

	return router
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on the configured port and serves in the background
func (s *Server) Start(_ context.Context) error {
	listener, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}

	s.logger.Info("starting HTTP server", zap.String("addr", listener.Addr().String()))

	go func() {
		if serveErr := s.httpServer.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			s.logger.Error("HTTP server stopped unexpectedly", zap.Error(serveErr))
		}
	}()

	return nil
}

// Stop gracefully shuts the server down
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping HTTP server")
	if timeout := s.config.GetShutdownTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return s.httpServer.Shutdown(ctx)
}
