package cmd

import (
	"context"
	"fmt"
	"net/url"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"pkceflow/internal/server"
	"pkceflow/pkg/logging"
)

// serveAddress overrides settings.listenAddress.
var serveAddress string

// serveCmd runs the session server until interrupted.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a loopback session server that hands out fresh access tokens",
	Long: `Starts an HTTP server that owns one OAuth session.

Visit /login to authenticate. Afterwards local tools can fetch a valid access
token from GET /token; refreshes are performed once no matter how many
clients ask at the same time.

The listen address defaults to settings.listenAddress, which should match the
host and port of the configured redirect URI so the callback reaches this
server.

Routes:
  GET    /login          start a login
  GET    /callback       redirect target (path taken from the redirect URI)
  GET    /token          current access token
  POST   /token/refresh  force a refresh
  DELETE /token          log out
  GET    /status         session summary
  GET    /healthz        liveness

POST and DELETE requests must carry an X-Requested-With header.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddress, "listen", "", "Listen address (default from settings.listenAddress)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	orch, _, err := newClient(cfg)
	if err != nil {
		return err
	}

	redirect, err := url.Parse(cfg.Client.RedirectURI)
	if err != nil {
		return fmt.Errorf("invalid redirect URI: %w", err)
	}

	addr := cfg.Settings.ListenAddress
	if serveAddress != "" {
		addr = serveAddress
	}
	if redirect.Host != addr {
		logging.Warn("CLI", "Redirect URI host %s differs from listen address %s; callbacks must be forwarded", redirect.Host, addr)
	}

	gin.SetMode(gin.ReleaseMode)
	srv := server.New(orch, server.Options{
		ClockSkew:    cfg.Settings.ClockSkew,
		CallbackPath: redirect.Path,
	})

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(cmd.ErrOrStderr(), "Session server running. Log in at http://%s/login\n", addr)
	return srv.Run(ctx, addr)
}
