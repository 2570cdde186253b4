package oauth

import (
	"net/url"
	"strings"
)

// ClientConfig holds the client registration and endpoint settings.
// It is supplied once at construction and never modified afterwards.
type ClientConfig struct {
	// ClientID is the identifier issued by the authorization server.
	ClientID string `yaml:"clientID"`

	// ClientSecret is only sent on refresh requests, and only when set.
	ClientSecret string `yaml:"clientSecret,omitempty"`

	// RedirectURI must match the URI registered with the authorization server.
	RedirectURI string `yaml:"redirectURI"`

	// AuthorizationURL is the authorization endpoint the user is sent to.
	AuthorizationURL string `yaml:"authorizationURL"`

	// TokenURL is the token endpoint used for code exchange and refresh.
	TokenURL string `yaml:"tokenURL"`

	// Optional parameters. Empty values are omitted from requests so the
	// server applies its own defaults.
	Scope        string `yaml:"scope,omitempty"`
	Audience     string `yaml:"audience,omitempty"`
	Connection   string `yaml:"connection,omitempty"`
	Organisation string `yaml:"organisation,omitempty"`
	Prompt       string `yaml:"prompt,omitempty"`
}

// Validate checks that every required field is present and that the
// endpoint URLs are absolute. It returns a *ConfigError for the first problem.
func (c ClientConfig) Validate() error {
	required := []struct {
		field string
		value string
	}{
		{"client_id", c.ClientID},
		{"redirect_uri", c.RedirectURI},
		{"authorization_url", c.AuthorizationURL},
		{"token_url", c.TokenURL},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return &ConfigError{Field: r.field, Reason: "is required"}
		}
	}

	absolute := []struct {
		field string
		value string
	}{
		{"redirect_uri", c.RedirectURI},
		{"authorization_url", c.AuthorizationURL},
		{"token_url", c.TokenURL},
	}
	for _, a := range absolute {
		u, err := url.Parse(a.value)
		if err != nil {
			return &ConfigError{Field: a.field, Reason: "is not a valid URL", Err: err}
		}
		if u.Scheme == "" || u.Host == "" {
			return &ConfigError{Field: a.field, Reason: "must be an absolute URL"}
		}
	}

	return nil
}
