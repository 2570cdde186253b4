package config

import (
	"time"

	"pkceflow/pkg/oauth"
)

// Config is the top-level configuration structure for pkceflow.
type Config struct {
	Client   oauth.ClientConfig `yaml:"client"`
	Settings Settings           `yaml:"settings"`
}

// Settings holds runtime knobs that are not part of the OAuth client
// registration.
type Settings struct {
	// ClockSkew is subtracted from token lifetimes when deciding whether a
	// cached access token can still be used.
	ClockSkew time.Duration `yaml:"clockSkew,omitempty"`

	// FlowTTL bounds how long a started login can be completed.
	FlowTTL time.Duration `yaml:"flowTTL,omitempty"`

	// HTTPTimeout applies to each token endpoint request.
	HTTPTimeout time.Duration `yaml:"httpTimeout,omitempty"`

	// CallbackTimeout bounds how long `login` waits for the browser redirect.
	CallbackTimeout time.Duration `yaml:"callbackTimeout,omitempty"`

	// ListenAddress is where the callback listener and `serve` bind.
	ListenAddress string `yaml:"listenAddress,omitempty"`

	LogLevel  string `yaml:"logLevel,omitempty"`
	LogFormat string `yaml:"logFormat,omitempty"`
}
