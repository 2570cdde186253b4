package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"pkceflow/internal/config"
	"pkceflow/pkg/logging"
	"pkceflow/pkg/oauth"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid arguments).
	ExitCodeError = 1
	// ExitCodeConfigError indicates the configuration could not be loaded or is invalid.
	ExitCodeConfigError = 2
	// ExitCodeAuthFailed indicates the OAuth flow failed.
	ExitCodeAuthFailed = 3
)

// Persistent flags shared by every command.
var (
	cfgFile  string
	logLevel string
)

// rootCmd represents the base command for the pkceflow application.
// It is the entry point when the application is called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "pkceflow",
	Short: "Obtain and refresh OAuth2 tokens with Authorization Code + PKCE",
	Long: `pkceflow logs in to an OAuth2 authorization server using the
Authorization Code grant with PKCE, and keeps the resulting access token
fresh for local tools.

Use 'pkceflow login' for a one-off browser login, or 'pkceflow serve' to run
a loopback session server other tools can fetch tokens from.`,
	// SilenceUsage prevents Cobra from printing the usage message on errors that are handled by the application.
	SilenceUsage: true,
}

// SetVersion sets the version for the root command.
// This function is typically called from the main package to inject the application version at build time.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute is the main entry point for the CLI application.
// This function is called by main.main().
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "pkceflow version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(getExitCode(err))
	}
}

// AuthFailedError reports a login that did not produce a token.
type AuthFailedError struct {
	Reason string
	Err    error
}

func (e *AuthFailedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("authentication failed: %s: %v", e.Reason, e.Err)
	}
	return "authentication failed: " + e.Reason
}

func (e *AuthFailedError) Unwrap() error {
	return e.Err
}

// getExitCode determines the appropriate exit code based on the error type.
// This provides semantic exit codes for scripting and automation.
func getExitCode(err error) int {
	if config.IsConfigError(err) {
		return ExitCodeConfigError
	}

	var authFailed *AuthFailedError
	if errors.As(err, &authFailed) {
		return ExitCodeAuthFailed
	}

	var exchangeErr *oauth.TokenExchangeError
	if errors.As(err, &exchangeErr) || errors.Is(err, oauth.ErrInvalidState) {
		return ExitCodeAuthFailed
	}

	return ExitCodeError
}

// loadConfig loads the configuration file and initialises logging from it.
// The --log-level flag wins over the file.
func loadConfig() (config.Config, error) {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return config.Config{}, err
	}

	level := cfg.Settings.LogLevel
	if logLevel != "" {
		level = logLevel
	}
	parsed, err := logging.ParseLogLevel(level)
	if err != nil {
		var errs config.ValidationErrors
		errs.Add("--log-level", err.Error(), level)
		return config.Config{}, errs
	}

	logging.Init(logging.Options{
		Level:  parsed,
		Format: cfg.Settings.LogFormat,
		Output: os.Stderr,
	})

	return cfg, nil
}

// clientOptions builds the oauth options shared by the orchestrator and
// token manager.
func clientOptions(settings config.Settings) []oauth.Option {
	return []oauth.Option{
		oauth.WithHTTPTimeout(settings.HTTPTimeout),
		oauth.WithFlowTTL(settings.FlowTTL),
	}
}

// newClient constructs the token manager and orchestrator for cfg.
func newClient(cfg config.Config) (*oauth.Orchestrator, *oauth.TokenManager, error) {
	opts := clientOptions(cfg.Settings)

	tokens, err := oauth.NewTokenManager(cfg.Client, opts...)
	if err != nil {
		return nil, nil, err
	}

	orch, err := oauth.NewOrchestrator(cfg.Client, tokens, opts...)
	if err != nil {
		return nil, nil, err
	}

	return orch, tokens, nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/pkceflow/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (overrides the config file)")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newSelfUpdateCmd())
}
