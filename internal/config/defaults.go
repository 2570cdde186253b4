package config

import (
	"time"

	"pkceflow/pkg/logging"
	"pkceflow/pkg/oauth"
)

const (
	// DefaultListenAddress is the loopback address used for the redirect listener.
	DefaultListenAddress = "127.0.0.1:8085"

	// DefaultCallbackPath is the path the authorization server redirects to.
	DefaultCallbackPath = "/callback"

	// DefaultRedirectURI matches DefaultListenAddress and DefaultCallbackPath.
	DefaultRedirectURI = "http://" + DefaultListenAddress + DefaultCallbackPath

	// DefaultCallbackTimeout is how long `login` waits for the redirect.
	DefaultCallbackTimeout = 5 * time.Minute
)

// GetDefaultConfig returns the configuration used when no file is present.
// The client registration fields stay empty; they must come from the file
// or the environment.
func GetDefaultConfig() Config {
	return Config{
		Client: oauth.ClientConfig{
			RedirectURI: DefaultRedirectURI,
		},
		Settings: Settings{
			ClockSkew:       oauth.DefaultExpiryMargin,
			FlowTTL:         oauth.DefaultFlowTTL,
			HTTPTimeout:     oauth.DefaultHTTPTimeout,
			CallbackTimeout: DefaultCallbackTimeout,
			ListenAddress:   DefaultListenAddress,
			LogLevel:        logging.LevelInfo.String(),
			LogFormat:       logging.FormatText,
		},
	}
}
