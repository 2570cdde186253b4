package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/briandowns/spinner"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"pkceflow/internal/browser"
	"pkceflow/internal/callback"
	"pkceflow/internal/formatting"
	"pkceflow/pkg/logging"
	"pkceflow/pkg/oauth"
)

// Login-specific flags
var (
	loginNoBrowser  bool
	loginPrintToken bool
	loginOutput     string
)

// loginCmd represents the login command
var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in through the browser and print the resulting token",
	Long: `Runs the OAuth2 Authorization Code flow with PKCE.

A temporary listener is started on the configured redirect URI, the
authorization URL is opened in the browser, and the returned code is
exchanged for tokens. The token is held in memory only.

Examples:
  pkceflow login                       # Open the browser and wait
  pkceflow login --no-browser          # Print the URL instead
  pkceflow login --print-token -o json # Emit the access token as JSON`,
	Args: cobra.NoArgs,
	RunE: runLogin,
}

func init() {
	rootCmd.AddCommand(loginCmd)

	loginCmd.Flags().BoolVar(&loginNoBrowser, "no-browser", false, "Print the authorization URL instead of opening a browser")
	loginCmd.Flags().BoolVar(&loginPrintToken, "print-token", false, "Include the access token in the output")
	loginCmd.Flags().StringVarP(&loginOutput, "output", "o", "table", "Output format: table, json, yaml")
}

func runLogin(cmd *cobra.Command, args []string) error {
	format, err := formatting.ParseFormat(loginOutput)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	orch, _, err := newClient(cfg)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, cfg.Settings.CallbackTimeout)
	defer cancel()

	listener, err := callback.NewServer(cfg.Client.RedirectURI)
	if err != nil {
		return err
	}
	if err := listener.Start(ctx); err != nil {
		return err
	}
	defer listener.Stop()

	authURL, err := orch.BeginFlow()
	if err != nil {
		return fmt.Errorf("failed to start authorization flow: %w", err)
	}

	errOut := cmd.ErrOrStderr()
	if loginNoBrowser {
		fmt.Fprintf(errOut, "Open this URL in your browser to log in:\n\n  %s\n\n", authURL)
	} else if err := browser.Open(authURL); err != nil {
		logging.Warn("CLI", "Could not open browser: %v", err)
		fmt.Fprintf(errOut, "Could not open a browser. Open this URL to log in:\n\n  %s\n\n", authURL)
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Writer = errOut
	s.Suffix = " Waiting for the browser redirect..."
	s.Start()

	result, err := listener.Wait(ctx)
	s.Stop()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return &AuthFailedError{Reason: fmt.Sprintf("no redirect received within %v", cfg.Settings.CallbackTimeout)}
		}
		return &AuthFailedError{Reason: "callback listener failed", Err: err}
	}
	if result.IsError() {
		reason := result.Error
		if result.ErrorDescription != "" {
			reason += ": " + result.ErrorDescription
		}
		return &AuthFailedError{Reason: reason}
	}

	record, err := orch.HandleCallback(ctx, result.Code, result.State)
	if err != nil {
		fmt.Fprintln(errOut, text.FgRed.Sprint("Login failed"))
		return err
	}

	if format == formatting.FormatTable {
		fmt.Fprintln(errOut, text.FgGreen.Sprint("Login successful"))
	}

	fields, view := describeRecord(record, time.Now(), loginPrintToken)
	return formatting.NewFormatter(format).Format(cmd.OutOrStdout(), fields, view)
}

// recordView is the machine-readable form of a token record.
type recordView struct {
	AccessToken     string    `json:"access_token,omitempty" yaml:"access_token,omitempty"`
	TokenType       string    `json:"token_type" yaml:"token_type"`
	Scope           string    `json:"scope,omitempty" yaml:"scope,omitempty"`
	ExpiresAt       time.Time `json:"expires_at" yaml:"expires_at"`
	HasRefreshToken bool      `json:"has_refresh_token" yaml:"has_refresh_token"`
	Subject         string    `json:"subject,omitempty" yaml:"subject,omitempty"`
	Email           string    `json:"email,omitempty" yaml:"email,omitempty"`
}

// describeRecord renders record for output. The access token is included
// only when showToken is set; the refresh token never is.
func describeRecord(record oauth.TokenRecord, now time.Time, showToken bool) ([]formatting.Field, recordView) {
	view := recordView{
		TokenType:       record.TokenType,
		Scope:           record.Scope,
		ExpiresAt:       record.ExpiresAt,
		HasRefreshToken: record.HasRefreshToken(),
	}

	status := formatting.Field{Key: "Status", Value: "Authenticated", Color: formatting.ColorGood}
	if record.IsExpiredWithMargin(now, 0) {
		status = formatting.Field{Key: "Status", Value: "Expired", Color: formatting.ColorBad}
	}

	fields := []formatting.Field{
		status,
		{Key: "Token type", Value: record.TokenType},
		{Key: "Expires", Value: fmt.Sprintf("%s (in %s)", record.ExpiresAt.Format(time.RFC3339), formatRemaining(record.ExpiresAt.Sub(now)))},
	}

	if record.Scope != "" {
		fields = append(fields, formatting.Field{Key: "Scope", Value: record.Scope})
	}

	if record.HasRefreshToken() {
		fields = append(fields, formatting.Field{Key: "Refresh", Value: "Available", Color: formatting.ColorGood})
	} else {
		fields = append(fields, formatting.Field{Key: "Refresh", Value: "Not available (re-auth required on expiry)", Color: formatting.ColorWarn})
	}

	if claims, err := record.Claims(); err == nil {
		view.Subject = claims.Subject
		view.Email = claims.Email
		if claims.Email != "" {
			fields = append(fields, formatting.Field{Key: "Email", Value: claims.Email})
		}
		if claims.Subject != "" {
			fields = append(fields, formatting.Field{Key: "Subject", Value: claims.Subject, Color: formatting.ColorMuted})
		}
	}

	if showToken {
		view.AccessToken = record.AccessToken
		fields = append(fields, formatting.Field{Key: "Access token", Value: record.AccessToken})
	}

	return fields, view
}

// formatRemaining renders a duration rounded to seconds, or "expired".
func formatRemaining(d time.Duration) string {
	if d <= 0 {
		return "expired"
	}
	return d.Round(time.Second).String()
}
