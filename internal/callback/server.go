package callback

import (
	"context"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"pkceflow/pkg/logging"
)

// shutdownDelay gives the browser time to receive the result page before
// the listener goes away.
const shutdownDelay = time.Second

var pages = template.Must(template.New("pages").Parse(`
{{define "success"}}<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>Signed in</title></head>
<body style="font-family: sans-serif; text-align: center; margin-top: 4em">
<h1>Authentication complete</h1>
<p>You can close this window and return to the terminal.</p>
</body></html>{{end}}
{{define "error"}}<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>Sign-in failed</title></head>
<body style="font-family: sans-serif; text-align: center; margin-top: 4em">
<h1>Authentication failed</h1>
<p><code>{{.Error}}</code></p>
{{if .Description}}<p>{{.Description}}</p>{{end}}
<p>Return to the terminal and try again.</p>
</body></html>{{end}}
`))

// Result is what the authorization server sent back in the redirect.
type Result struct {
	// Code is the authorization code.
	Code string

	// State must match a state issued by the orchestrator.
	State string

	// Error is the OAuth error code when the user or server denied the request.
	Error string

	// ErrorDescription is a human-readable error description.
	ErrorDescription string
}

// IsError returns true if the redirect carried an error instead of a code.
func (r *Result) IsError() bool {
	return r.Error != ""
}

// Server is a temporary loopback HTTP server for receiving one redirect.
// It starts, waits for a single callback, then shuts down.
type Server struct {
	addr string
	path string

	server   *http.Server
	listener net.Listener
	resultCh chan *Result
	errorCh  chan error
	once     sync.Once
	stopOnce sync.Once
	baseURL  string
}

// NewServer creates a listener for redirectURI. The URI's host and port
// are where it binds and its path is the only route served. Port 0 picks a
// free port; RedirectURI reports the final URI.
func NewServer(redirectURI string) (*Server, error) {
	u, err := url.Parse(redirectURI)
	if err != nil {
		return nil, fmt.Errorf("invalid redirect URI %q: %w", redirectURI, err)
	}
	if u.Scheme != "http" {
		return nil, fmt.Errorf("redirect URI %q must use http for a local listener", redirectURI)
	}
	if u.Port() == "" {
		return nil, fmt.Errorf("redirect URI %q must include a port", redirectURI)
	}

	path := u.Path
	if path == "" {
		path = "/"
	}

	return &Server{
		addr:     u.Host,
		path:     path,
		resultCh: make(chan *Result, 1),
		errorCh:  make(chan error, 1),
	}, nil
}

// Start begins listening. The server stops when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to start callback server on %s: %w", s.addr, err)
	}

	s.listener = listener
	s.baseURL = "http://" + listener.Addr().String()

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.SetHTMLTemplate(pages)
	engine.GET(s.path, s.handleCallback)

	s.server = &http.Server{
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			select {
			case s.errorCh <- err:
			default:
			}
		}
	}()

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	logging.Debug("Callback", "Listening for redirect on %s%s", s.baseURL, s.path)
	return nil
}

// RedirectURI returns the URI the listener answers on.
func (s *Server) RedirectURI() string {
	return s.baseURL + s.path
}

// Wait blocks until the redirect arrives, the server fails or ctx ends.
func (s *Server) Wait(ctx context.Context) (*Result, error) {
	select {
	case result := <-s.resultCh:
		return result, nil
	case err := <-s.errorCh:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Server) handleCallback(c *gin.Context) {
	handled := false
	s.once.Do(func() {
		handled = true
		s.processCallback(c)
	})

	if !handled {
		c.String(http.StatusBadRequest, "Callback already processed")
	}
}

// processCallback runs exactly once via sync.Once.
func (s *Server) processCallback(c *gin.Context) {
	c.Header("X-Content-Type-Options", "nosniff")
	c.Header("X-Frame-Options", "DENY")
	c.Header("Content-Security-Policy", "default-src 'none'; style-src 'unsafe-inline'")
	c.Header("Referrer-Policy", "no-referrer")
	c.Header("Cache-Control", "no-store")

	result := &Result{
		Code:             c.Query("code"),
		State:            c.Query("state"),
		Error:            c.Query("error"),
		ErrorDescription: c.Query("error_description"),
	}

	switch {
	case result.IsError():
		c.HTML(http.StatusOK, "error", gin.H{"Error": result.Error, "Description": result.ErrorDescription})
	case result.Code == "" || result.State == "":
		result.Error = "invalid_request"
		result.ErrorDescription = "redirect is missing code or state"
		c.HTML(http.StatusBadRequest, "error", gin.H{"Error": result.Error, "Description": result.ErrorDescription})
	default:
		c.HTML(http.StatusOK, "success", nil)
	}

	select {
	case s.resultCh <- result:
	default:
	}

	go func() {
		time.Sleep(shutdownDelay)
		s.Stop()
	}()
}

// Stop gracefully shuts down the server. It is safe to call more than once.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		if s.server != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = s.server.Shutdown(ctx)
		}
		if s.listener != nil {
			_ = s.listener.Close()
		}
	})
}
