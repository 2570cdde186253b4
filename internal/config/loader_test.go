package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pkceflow/pkg/oauth"
)

const validYAML = `client:
  clientID: abc
  redirectURI: https://app.example/cb
  authorizationURL: https://auth.example/authorize
  tokenURL: https://auth.example/oauth/token
  scope: openid offline_access
settings:
  clockSkew: 45s
  flowTTL: 2m
  logLevel: debug
  logFormat: json
`

// withEnv replaces the environment lookup for the duration of the test.
func withEnv(t *testing.T, env map[string]string) {
	t.Helper()
	original := lookupEnv
	lookupEnv = func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
	t.Cleanup(func() { lookupEnv = original })
}

// withHome points the default config path into dir.
func withHome(t *testing.T, dir string) {
	t.Helper()
	original := osUserHomeDir
	osUserHomeDir = func() (string, error) { return dir, nil }
	t.Cleanup(func() { osUserHomeDir = original })
}

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadConfig_FromFile(t *testing.T) {
	withEnv(t, nil)
	path := writeConfig(t, t.TempDir(), validYAML)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "abc", cfg.Client.ClientID)
	assert.Equal(t, "https://auth.example/oauth/token", cfg.Client.TokenURL)
	assert.Equal(t, "openid offline_access", cfg.Client.Scope)
	assert.Equal(t, 45*time.Second, cfg.Settings.ClockSkew)
	assert.Equal(t, 2*time.Minute, cfg.Settings.FlowTTL)
	assert.Equal(t, "debug", cfg.Settings.LogLevel)
	assert.Equal(t, "json", cfg.Settings.LogFormat)

	// Unset settings keep their defaults.
	assert.Equal(t, oauth.DefaultHTTPTimeout, cfg.Settings.HTTPTimeout)
	assert.Equal(t, DefaultListenAddress, cfg.Settings.ListenAddress)
}

func TestLoadConfig_DefaultPathMissingUsesEnvironment(t *testing.T) {
	withHome(t, t.TempDir())
	withEnv(t, map[string]string{
		"PKCEFLOW_CLIENT_ID":         "env-client",
		"PKCEFLOW_AUTHORIZATION_URL": "https://auth.example/authorize",
		"PKCEFLOW_TOKEN_URL":         "https://auth.example/oauth/token",
	})

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "env-client", cfg.Client.ClientID)
	assert.Equal(t, DefaultRedirectURI, cfg.Client.RedirectURI)
	assert.Equal(t, GetDefaultConfig().Settings, cfg.Settings)
}

func TestLoadConfig_EnvironmentOverridesFile(t *testing.T) {
	path := writeConfig(t, t.TempDir(), validYAML)
	withEnv(t, map[string]string{
		"PKCEFLOW_CLIENT_ID":     "override",
		"PKCEFLOW_SCOPE":         "",
		"PKCEFLOW_AUDIENCE":      " https://api.example ",
		"PKCEFLOW_ORGANISATION":  "org_1",
		"PKCEFLOW_CONNECTION":    "github",
		"PKCEFLOW_CLIENT_SECRET": "s3cret",
	})

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "override", cfg.Client.ClientID)
	assert.Empty(t, cfg.Client.Scope, "a variable set to empty clears the file value")
	assert.Equal(t, "https://api.example", cfg.Client.Audience)
	assert.Equal(t, "org_1", cfg.Client.Organisation)
	assert.Equal(t, "github", cfg.Client.Connection)
	assert.Equal(t, "s3cret", cfg.Client.ClientSecret)
}

func TestLoadConfig_Errors(t *testing.T) {
	withEnv(t, nil)

	t.Run("explicit path missing", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))

		var cfgErr *ConfigurationError
		require.ErrorAs(t, err, &cfgErr)
		assert.Equal(t, ErrorTypeIO, cfgErr.ErrorType)
		assert.True(t, errors.Is(err, os.ErrNotExist))
		assert.True(t, IsConfigError(err))
	})

	t.Run("malformed yaml", func(t *testing.T) {
		path := writeConfig(t, t.TempDir(), "client: [unterminated")
		_, err := LoadConfig(path)

		var cfgErr *ConfigurationError
		require.ErrorAs(t, err, &cfgErr)
		assert.Equal(t, ErrorTypeParse, cfgErr.ErrorType)
	})

	t.Run("missing client id", func(t *testing.T) {
		path := writeConfig(t, t.TempDir(), "client:\n  tokenURL: https://auth.example/token\n")
		_, err := LoadConfig(path)

		var clientErr *oauth.ConfigError
		require.ErrorAs(t, err, &clientErr)
		assert.Equal(t, "client_id", clientErr.Field)
		assert.True(t, IsConfigError(err))
	})

	t.Run("invalid settings", func(t *testing.T) {
		path := writeConfig(t, t.TempDir(), validYAML+"  httpTimeout: 0s\n  listenAddress: nope\n")
		_, err := LoadConfig(path)

		var validationErrs ValidationErrors
		require.ErrorAs(t, err, &validationErrs)
		assert.Len(t, validationErrs, 2)
		assert.True(t, IsConfigError(err))
	})
}

func TestValidateSettings(t *testing.T) {
	valid := GetDefaultConfig().Settings
	assert.NoError(t, ValidateSettings(valid))

	bad := valid
	bad.ClockSkew = -time.Second
	bad.LogLevel = "loud"
	bad.LogFormat = "xml"

	err := ValidateSettings(bad)
	var validationErrs ValidationErrors
	require.ErrorAs(t, err, &validationErrs)

	fields := make([]string, 0, len(validationErrs))
	for _, e := range validationErrs {
		fields = append(fields, e.Field)
	}
	assert.ElementsMatch(t, []string{"settings.clockSkew", "settings.logLevel", "settings.logFormat"}, fields)
}

func TestIsConfigError(t *testing.T) {
	assert.False(t, IsConfigError(errors.New("boom")))
	assert.False(t, IsConfigError(nil))
	assert.True(t, IsConfigError(&oauth.ConfigError{Field: "token_url", Reason: "is required"}))
}
