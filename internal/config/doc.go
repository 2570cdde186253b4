// Package config loads the pkceflow configuration.
//
// Configuration comes from a single YAML file, ~/.config/pkceflow/config.yaml
// by default or the path given with --config, layered over built-in defaults.
// PKCEFLOW_* environment variables override the client registration fields.
//
// # File Format
//
//	client:
//	  clientID: my-cli
//	  redirectURI: http://127.0.0.1:8085/callback
//	  authorizationURL: https://auth.example.com/authorize
//	  tokenURL: https://auth.example.com/oauth/token
//	  scope: openid profile offline_access
//	  audience: https://api.example.com
//	settings:
//	  clockSkew: 30s
//	  flowTTL: 10m
//	  httpTimeout: 30s
//	  callbackTimeout: 5m
//	  listenAddress: 127.0.0.1:8085
//	  logLevel: info
//	  logFormat: text
//
// # Environment
//
//	PKCEFLOW_CLIENT_ID, PKCEFLOW_CLIENT_SECRET, PKCEFLOW_REDIRECT_URI,
//	PKCEFLOW_AUTHORIZATION_URL, PKCEFLOW_TOKEN_URL, PKCEFLOW_SCOPE,
//	PKCEFLOW_AUDIENCE, PKCEFLOW_CONNECTION, PKCEFLOW_ORGANISATION
//
// # Errors
//
// File problems are reported as *ConfigurationError, invalid client
// registration as *oauth.ConfigError and invalid settings as
// ValidationErrors. IsConfigError matches all three.
package config
