package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rickgao/irc-ingest/internal/config"
	"github.com/rickgao/irc-ingest/internal/connection"
	"github.com/rickgao/irc-ingest/internal/router"
	"github.com/rickgao/irc-ingest/internal/version"
	"github.com/rickgao/irc-ingest/internal/writer"
)

// ConnectionStats is implemented by *connection.Supervisor.
type ConnectionStats interface {
	Stats() connection.Stats
}

// RouterStats is implemented by *router.Router.
type RouterStats interface {
	Stats() router.Stats
}

// WriterStats is implemented by the writers.
type WriterStats interface {
	Stats() writer.WriterMetrics
}

// Sources are the components whose state the server reports.
type Sources struct {
	Connection ConnectionStats
	Router     RouterStats
	Writers    map[string]WriterStats
}

// Server is the admin HTTP server.
type Server struct {
	cfg     config.MetricsConfig
	sources Sources
	logger  *slog.Logger
	engine  *gin.Engine
	srv     *http.Server
	done    chan struct{}
}

// New creates the server and registers its routes.
func New(cfg config.MetricsConfig, sources Sources, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	// Debug mode prints the route table to gin.DefaultWriter, which is stdout
	mode := cfg.GinMode
	if mode == "" {
		mode = gin.ReleaseMode
	}
	gin.SetMode(mode)
	if mode == gin.DebugMode {
		gin.DefaultWriter = os.Stderr
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		cfg:     cfg,
		sources: sources,
		logger:  logger,
		engine:  engine,
		done:    make(chan struct{}),
	}

	engine.GET("/health", s.health)
	engine.GET("/stats", s.stats)
	engine.GET("/version", func(c *gin.Context) { c.JSON(http.StatusOK, version.Get()) })
	engine.GET(cfg.Path, gin.WrapH(promhttp.Handler()))

	return s
}

// Handler returns the HTTP handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start listens on the configured port and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	addr := net.JoinHostPort("", strconv.Itoa(s.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	s.srv = &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       30 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		defer close(s.done)
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("admin server failed", "error", err)
		}
	}()

	s.logger.Info("admin server started", "addr", ln.Addr().String(), "metrics_path", s.cfg.Path)
	return nil
}

// Stop shuts the server down, waiting for in-flight requests up to ctx.
func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	err := s.srv.Shutdown(ctx)
	<-s.done
	s.logger.Info("admin server stopped")
	return err
}

// health reports 200 while an IRC session is registered, 503 otherwise.
func (s *Server) health(c *gin.Context) {
	st := s.sources.Connection.Stats()
	status, code := "ok", http.StatusOK
	if !st.Connected {
		status, code = "disconnected", http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status":     status,
		"nick":       st.Nick,
		"reconnects": st.Reconnects,
	})
}

func (s *Server) stats(c *gin.Context) {
	writers := make(map[string]writer.WriterMetrics, len(s.sources.Writers))
	for name, w := range s.sources.Writers {
		writers[name] = w.Stats()
	}

	resp := gin.H{
		"connection": s.sources.Connection.Stats(),
		"writers":    writers,
	}
	if s.sources.Router != nil {
		resp["router"] = s.sources.Router.Stats()
	}
	c.JSON(http.StatusOK, resp)
}
