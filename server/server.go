package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/kbukum/dictation/component"
	"github.com/kbukum/dictation/logger"
	"github.com/kbukum/dictation/observability"
	"github.com/kbukum/dictation/server/endpoint"
	"github.com/kbukum/dictation/server/middleware"
)

// Server serves the Gin engine over HTTP/1.1 and cleartext HTTP/2.
type Server struct {
	cfg    Config
	engine *gin.Engine
	http   *http.Server
	log    *logger.Logger

	addr atomic.Pointer[net.TCPAddr]
}

func New(cfg Config, log *logger.Logger) *Server {
	mode := gin.ReleaseMode
	if zerolog.GlobalLevel() <= zerolog.DebugLevel {
		mode = gin.DebugMode
	}
	gin.SetMode(mode)

	engine := gin.New()
	return &Server{
		cfg:    cfg,
		engine: engine,
		log:    log.WithComponent("server"),
		http: &http.Server{
			Addr:         cfg.Addr(),
			Handler:      h2c.NewHandler(engine, &http2.Server{IdleTimeout: cfg.IdleTimeout}),
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
	}
}

// GinEngine is where routes are registered.
func (s *Server) GinEngine() *gin.Engine { return s.engine }

// Handler is the root handler, h2c included.
func (s *Server) Handler() http.Handler { return s.http.Handler }

// ApplyMiddleware installs the standard stack. metrics may be nil.
func (s *Server) ApplyMiddleware(metrics *observability.Metrics) {
	s.engine.Use(
		middleware.Recovery(),
		middleware.RequestID(),
		middleware.Telemetry(metrics),
		middleware.CORS(s.cfg.CORS),
		middleware.BodySizeLimit(s.cfg.MaxUploadMB<<20),
		middleware.RequestLogger(),
	)
}

// RegisterDefaultEndpoints adds /health, /alive and /info.
func (s *Server) RegisterDefaultEndpoints(service string, checker endpoint.HealthChecker) {
	s.engine.GET("/health", endpoint.Health(service, checker))
	s.engine.GET("/alive", endpoint.Liveness(service))
	s.engine.GET("/info", endpoint.Info(service))
}

// Addr is the bound address once listening, the configured one before.
func (s *Server) Addr() string {
	if a := s.addr.Load(); a != nil {
		return a.String()
	}
	return s.http.Addr
}

// Start binds the port and serves in the background. A bind failure fails
// startup.
func (s *Server) Start(context.Context) error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("server: bind %s: %w", s.http.Addr, err)
	}
	s.addr.Store(ln.Addr().(*net.TCPAddr))
	s.log.Info("HTTP server listening", map[string]interface{}{"addr": s.Addr()})

	go func() {
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("HTTP server stopped", map[string]interface{}{logger.FieldError: err.Error()})
		}
	}()
	return nil
}

// Stop stops accepting requests and waits up to ShutdownTimeout for
// in-flight ones. Hijacked websockets are closed by their sessions.
func (s *Server) Stop(ctx context.Context) error {
	if s.cfg.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
		defer cancel()
	}
	if err := s.http.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	s.log.Info("HTTP server stopped")
	return nil
}

// Component adapts a Server to the component registry.
type Component struct{ *Server }

var (
	_ component.Component   = Component{}
	_ component.Describable = Component{}
)

func NewComponent(s *Server) Component { return Component{s} }

func (Component) Name() string { return "http-server" }

func (c Component) Health(context.Context) component.Health {
	h := component.Health{Name: c.Name(), Status: component.StatusHealthy}
	if c.addr.Load() == nil {
		h.Status, h.Message = component.StatusUnhealthy, "not listening"
	}
	return h
}

func (c Component) Describe() component.Description {
	return component.Description{
		Name:    "HTTP Server",
		Type:    "server",
		Details: c.Addr(),
		Port:    c.cfg.Port,
	}
}
