package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"pkceflow/pkg/logging"
	"pkceflow/pkg/oauth"
)

const (
	// DefaultCallbackPath is used when Options.CallbackPath is empty.
	DefaultCallbackPath = "/callback"

	// DefaultReadHeaderTimeout is the default timeout for reading request headers.
	DefaultReadHeaderTimeout = 10 * time.Second
	// DefaultWriteTimeout is the default timeout for writing responses.
	DefaultWriteTimeout = 120 * time.Second
	// DefaultIdleTimeout is the default idle timeout for keepalive connections.
	DefaultIdleTimeout = 120 * time.Second

	shutdownTimeout = 5 * time.Second
)

// Options configures a Server.
type Options struct {
	// ClockSkew is passed to TokenManager.AccessToken.
	ClockSkew time.Duration

	// CallbackPath is the path component of the registered redirect URI.
	CallbackPath string

	// Now reports the current time for /status. Defaults to time.Now.
	Now func() time.Time
}

// Server serves one OAuth session over HTTP.
type Server struct {
	orch   *oauth.Orchestrator
	tokens *oauth.TokenManager
	opts   Options
	engine *gin.Engine
}

// New creates a Server around orch and the TokenManager it stores into.
func New(orch *oauth.Orchestrator, opts Options) *Server {
	if opts.CallbackPath == "" {
		opts.CallbackPath = DefaultCallbackPath
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	s := &Server{
		orch:   orch,
		tokens: orch.Tokens(),
		opts:   opts,
	}
	s.engine = s.routes()
	return s
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestID(), accessLog())

	r.GET("/healthz", s.handleHealth)
	r.GET("/status", s.handleStatus)
	r.GET("/login", s.handleLogin)
	r.GET(s.opts.CallbackPath, s.handleCallback)

	token := r.Group("/token", noStore(), requireRequestedWith())
	{
		token.GET("", s.handleToken)
		token.POST("/refresh", s.handleRefresh)
		token.DELETE("", s.handleLogout)
	}

	return r
}

// Handler returns the HTTP handler, for use with httptest or a custom server.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, listener)
}

// Serve serves on listener until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	httpServer := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: DefaultReadHeaderTimeout,
		WriteTimeout:      DefaultWriteTimeout,
		IdleTimeout:       DefaultIdleTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Serve(listener)
	}()

	logging.Info("Server", "Session server listening on http://%s", listener.Addr())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	logging.Info("Server", "Shutting down session server")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}
